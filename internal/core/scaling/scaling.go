// Package scaling rescales a metric vector within itself and repairs the
// non-finite entries left behind by degenerate inputs.
package scaling

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// Policy decides what Repair does when no entry is finite.
type Policy int

const (
	// PolicyFill writes the configured fill value into every slot.
	PolicyFill Policy = iota
	// PolicyPropagate leaves the non-finite mean in every slot.
	PolicyPropagate
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	if p == PolicyPropagate {
		return "propagate"
	}
	return "fill"
}

// ParsePolicy maps a configuration name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fill":
		return PolicyFill, nil
	case "propagate":
		return PolicyPropagate, nil
	default:
		return PolicyFill, fmt.Errorf("unknown repair policy %q", name)
	}
}

// Config holds configuration for scaling and repair.
type Config struct {
	// Low and High bound the feature range.
	Low  float64
	High float64
	// Precision is the number of decimal digits kept after scaling.
	Precision int
	Policy    Policy
	// FillValue is used by PolicyFill. Nil means Low.
	FillValue *float64
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Low:       0,
		High:      1,
		Precision: 5,
		Policy:    PolicyFill,
	}
}

// Fill returns the value written by PolicyFill when no entry is finite.
func (c Config) Fill() float64 {
	if c.FillValue == nil {
		return c.Low
	}
	return *c.FillValue
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if !isFinite(c.Low) || !isFinite(c.High) {
		return errors.New("feature range bounds must be finite")
	}
	if c.Low >= c.High {
		return errors.New("feature range low must be below high")
	}
	if c.Precision < 0 || c.Precision > 15 {
		return errors.New("precision must be between 0 and 15")
	}
	if c.FillValue != nil {
		fill := *c.FillValue
		if !isFinite(fill) {
			return errors.New("fill value must be finite")
		}
		if fill < c.Low || fill > c.High {
			return fmt.Errorf("fill value %g outside feature range [%g, %g]", fill, c.Low, c.High)
		}
	}
	return nil
}

// MinMax maps the finite entries of x onto [low, high] using the minimum and
// maximum of x itself, rounding each to precision decimals. Non-finite entries
// stay non-finite. When every finite entry is equal the range is zero and all
// entries become NaN.
func MinMax(x domain.MetricVector, low, high float64, precision int) domain.MetricVector {
	out := make(domain.MetricVector, len(x))

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range x {
		if !isFinite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	span := hi - lo
	factor := math.Pow(10, float64(precision))
	for i, v := range x {
		if !isFinite(v) {
			out[i] = math.NaN()
			continue
		}
		scaled := (v-lo)/span*(high-low) + low
		out[i] = math.Round(scaled*factor) / factor
	}
	return out
}

// Repair replaces every non-finite entry with the mean of the finite entries,
// computed once before any substitution. It returns the repaired vector and
// the number of slots replaced. With no finite entry the mean is undefined and
// policy decides the outcome.
func Repair(x domain.MetricVector, policy Policy, fill float64) (domain.MetricVector, int) {
	out := x.Clone()

	var sum float64
	var finite int
	for _, v := range x {
		if isFinite(v) {
			sum += v
			finite++
		}
	}

	mean := sum / float64(finite)
	if finite == 0 && policy == PolicyFill {
		mean = fill
	}

	repaired := 0
	for i, v := range out {
		if !isFinite(v) {
			out[i] = mean
			repaired++
		}
	}
	return out, repaired
}

// Apply runs MinMax then Repair with c.
func (c Config) Apply(x domain.MetricVector) (scaled, repaired domain.MetricVector, n int) {
	scaled = MinMax(x, c.Low, c.High, c.Precision)
	repaired, n = Repair(scaled, c.Policy, c.Fill())
	return scaled, repaired, n
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
