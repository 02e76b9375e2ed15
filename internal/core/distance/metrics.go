// Package distance implements the pairwise metrics computed between two
// count vectors. Every function takes two equal-length vectors and returns a
// single value; undefined quotients yield NaN rather than an error.
package distance

import (
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Func computes one metric between u and v.
type Func func(u, v []float64) float64

// Euclidean returns the L2 distance.
func Euclidean(u, v []float64) float64 {
	return floats.Distance(u, v, 2)
}

// SqEuclidean returns the squared L2 distance.
func SqEuclidean(u, v []float64) float64 {
	if len(u) == 0 {
		return 0
	}
	d := vek.Sub(u, v)
	return vek.Dot(d, d)
}

// Manhattan returns the L1 distance.
func Manhattan(u, v []float64) float64 {
	return floats.Distance(u, v, 1)
}

// Chebyshev returns the L-infinity distance.
func Chebyshev(u, v []float64) float64 {
	return floats.Distance(u, v, math.Inf(1))
}

// Minkowski returns the Lp distance function for exponent p.
func Minkowski(p float64) Func {
	return func(u, v []float64) float64 {
		return floats.Distance(u, v, p)
	}
}

// SEuclidean is the standardized Euclidean distance where each dimension is
// scaled by the sample variance of that dimension over the two vectors.
// Dimensions where both vectors agree have zero variance and make the result NaN.
func SEuclidean(u, v []float64) float64 {
	var sum float64
	pair := make([]float64, 2)
	for i := range u {
		pair[0], pair[1] = u[i], v[i]
		d := u[i] - v[i]
		sum += d * d / stat.Variance(pair, nil)
	}
	return math.Sqrt(sum)
}

// BrayCurtis returns sum|u-v| / sum|u+v|.
func BrayCurtis(u, v []float64) float64 {
	var num, den float64
	for i := range u {
		num += math.Abs(u[i] - v[i])
		den += math.Abs(u[i] + v[i])
	}
	return num / den
}

// Canberra returns sum |u-v| / (|u|+|v|), skipping terms where both are zero.
func Canberra(u, v []float64) float64 {
	var sum float64
	for i := range u {
		den := math.Abs(u[i]) + math.Abs(v[i])
		if den == 0 {
			continue
		}
		sum += math.Abs(u[i]-v[i]) / den
	}
	return sum
}

// Cosine returns 1 minus the cosine similarity. A zero vector has similarity
// 0 with everything, so its distance is 1.
func Cosine(u, v []float64) float64 {
	if len(u) == 0 {
		return 1
	}
	uu := vek.Dot(u, u)
	vv := vek.Dot(v, v)
	if uu == 0 || vv == 0 {
		return 1
	}
	if floats.Equal(u, v) {
		return 0
	}
	return clip(1-vek.Dot(u, v)/math.Sqrt(uu*vv), 0, 2)
}

// Correlation returns 1 minus the Pearson correlation of u and v.
func Correlation(u, v []float64) float64 {
	if len(u) == 0 {
		return math.NaN()
	}
	cu := centered(u)
	cv := centered(v)
	uv := floats.Dot(cu, cv)
	uu := floats.Dot(cu, cu)
	vv := floats.Dot(cv, cv)
	return clip(1-uv/math.Sqrt(uu*vv), 0, 2)
}

// Hamming returns the fraction of positions where u and v differ.
func Hamming(u, v []float64) float64 {
	var diff int
	for i := range u {
		if u[i] != v[i] {
			diff++
		}
	}
	return float64(diff) / float64(len(u))
}

// Jaccard returns the fraction of positions, among those where either vector
// is nonzero, where the vectors differ. Two all-zero vectors have distance 0.
func Jaccard(u, v []float64) float64 {
	var unequal, nonzero int
	for i := range u {
		if u[i] == 0 && v[i] == 0 {
			continue
		}
		nonzero++
		if u[i] != v[i] {
			unequal++
		}
	}
	if nonzero == 0 {
		return 0
	}
	return float64(unequal) / float64(nonzero)
}

// Dice returns (ntf+nft) / (2ntt+ntf+nft).
func Dice(u, v []float64) float64 {
	c := tally(u, v)
	return (c.tf + c.ft) / (2*c.tt + c.tf + c.ft)
}

// Kulsinski returns (ntf+nft-ntt+n) / (ntf+nft+n).
func Kulsinski(u, v []float64) float64 {
	c := tally(u, v)
	return (c.tf + c.ft - c.tt + c.n) / (c.tf + c.ft + c.n)
}

// RogersTanimoto returns R / (ntt+nff+R) with R = 2(ntf+nft).
func RogersTanimoto(u, v []float64) float64 {
	c := tally(u, v)
	r := 2 * (c.tf + c.ft)
	return r / (c.tt + c.ff + r)
}

// RussellRao returns (n-ntt) / n.
func RussellRao(u, v []float64) float64 {
	c := tally(u, v)
	return (c.n - c.tt) / c.n
}

// SokalMichener returns R / (ntt+nff+R) with R = 2(ntf+nft).
func SokalMichener(u, v []float64) float64 {
	c := tally(u, v)
	r := 2 * (c.tf + c.ft)
	return r / (c.tt + c.ff + r)
}

// SokalSneath returns R / (ntt+R) with R = 2(ntf+nft).
func SokalSneath(u, v []float64) float64 {
	c := tally(u, v)
	r := 2 * (c.tf + c.ft)
	return r / (c.tt + r)
}

// Yule returns 2*ntf*nft / (ntt*nff + ntf*nft), or 0 when ntf*nft is 0.
func Yule(u, v []float64) float64 {
	c := tally(u, v)
	halfR := c.tf * c.ft
	if halfR == 0 {
		return 0
	}
	return 2 * halfR / (c.tt*c.ff + halfR)
}

// counts holds the generalized boolean contingency sums. For 0/1 vectors
// they are the usual counts; for raw counts they are the same polynomials
// evaluated on the integer values.
type counts struct {
	tt, tf, ft, ff, n float64
}

func tally(u, v []float64) counts {
	n := float64(len(u))
	if len(u) == 0 {
		return counts{}
	}
	tt := vek.Dot(u, v)
	su := vek.Sum(u)
	sv := vek.Sum(v)
	return counts{
		tt: tt,
		tf: su - tt,
		ft: sv - tt,
		ff: n - su - sv + tt,
		n:  n,
	}
}

func centered(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	floats.AddConst(-stat.Mean(x, nil), out)
	return out
}

func clip(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	return math.Max(lo, math.Min(hi, x))
}
