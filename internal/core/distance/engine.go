package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/pool"
)

// Family groups metrics by their mathematical origin.
type Family int

const (
	FamilyEuclidean Family = iota
	FamilyManhattan
	FamilyCorrelation
	// FamilySet metrics are classically defined over boolean vectors.
	FamilySet
	FamilyOther
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyEuclidean:
		return "euclidean"
	case FamilyManhattan:
		return "manhattan"
	case FamilyCorrelation:
		return "correlation"
	case FamilySet:
		return "set"
	default:
		return "other"
	}
}

// Metric is one named entry of the metric list.
type Metric struct {
	Name   string
	Family Family
	Func   Func
}

// ReferenceNames is the declared metric order of the feature vector.
var ReferenceNames = []string{
	"euclidean", "l2", "l1", "manhattan", "cityblock", "braycurtis",
	"canberra", "chebyshev", "correlation", "cosine", "dice", "hamming",
	"jaccard", "kulsinski", "matching", "minkowski", "rogerstanimoto",
	"russellrao", "seuclidean", "sokalmichener", "sokalsneath",
	"sqeuclidean", "yule",
}

// DefaultMinkowskiP is the exponent used for the minkowski metric.
const DefaultMinkowskiP = 2.0

// Lookup returns the metric registered under name.
func Lookup(name string, minkowskiP float64) (Metric, bool) {
	switch name {
	case "euclidean", "l2":
		return Metric{Name: name, Family: FamilyEuclidean, Func: Euclidean}, true
	case "sqeuclidean":
		return Metric{Name: name, Family: FamilyEuclidean, Func: SqEuclidean}, true
	case "seuclidean":
		return Metric{Name: name, Family: FamilyEuclidean, Func: SEuclidean}, true
	case "minkowski":
		return Metric{Name: name, Family: FamilyEuclidean, Func: Minkowski(minkowskiP)}, true
	case "manhattan", "cityblock", "l1":
		return Metric{Name: name, Family: FamilyManhattan, Func: Manhattan}, true
	case "correlation":
		return Metric{Name: name, Family: FamilyCorrelation, Func: Correlation}, true
	case "cosine":
		return Metric{Name: name, Family: FamilyCorrelation, Func: Cosine}, true
	case "dice":
		return Metric{Name: name, Family: FamilySet, Func: Dice}, true
	case "jaccard":
		return Metric{Name: name, Family: FamilySet, Func: Jaccard}, true
	case "kulsinski":
		return Metric{Name: name, Family: FamilySet, Func: Kulsinski}, true
	case "matching", "hamming":
		return Metric{Name: name, Family: FamilySet, Func: Hamming}, true
	case "rogerstanimoto":
		return Metric{Name: name, Family: FamilySet, Func: RogersTanimoto}, true
	case "russellrao":
		return Metric{Name: name, Family: FamilySet, Func: RussellRao}, true
	case "sokalmichener":
		return Metric{Name: name, Family: FamilySet, Func: SokalMichener}, true
	case "sokalsneath":
		return Metric{Name: name, Family: FamilySet, Func: SokalSneath}, true
	case "yule":
		return Metric{Name: name, Family: FamilySet, Func: Yule}, true
	case "braycurtis":
		return Metric{Name: name, Family: FamilyOther, Func: BrayCurtis}, true
	case "canberra":
		return Metric{Name: name, Family: FamilyOther, Func: Canberra}, true
	case "chebyshev":
		return Metric{Name: name, Family: FamilyOther, Func: Chebyshev}, true
	}
	return Metric{}, false
}

// Config holds configuration for the metric engine.
type Config struct {
	// Metrics is the ordered list of metric names. Empty means ReferenceNames.
	Metrics    []string
	MinkowskiP float64
	// BinarizeSetMetrics thresholds counts to 0/1 before set metrics.
	// Off by default: set metrics see the raw counts.
	BinarizeSetMetrics bool
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Metrics:    append([]string(nil), ReferenceNames...),
		MinkowskiP: DefaultMinkowskiP,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MinkowskiP < 1 || math.IsNaN(c.MinkowskiP) {
		return errors.New("minkowski p must be at least 1")
	}
	seen := make(map[string]bool, len(c.Metrics))
	for _, name := range c.Metrics {
		if _, ok := Lookup(name, c.MinkowskiP); !ok {
			return fmt.Errorf("unknown metric %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate metric %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Engine computes the configured metric list between two vectors.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	metrics  []Metric
	binarize bool
	scratch  *pool.Floats
}

// NewEngine creates a metric engine.
func NewEngine(config Config) (*Engine, error) {
	if len(config.Metrics) == 0 {
		config.Metrics = ReferenceNames
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	metrics := make([]Metric, 0, len(config.Metrics))
	for _, name := range config.Metrics {
		m, _ := Lookup(name, config.MinkowskiP)
		metrics = append(metrics, m)
	}

	return &Engine{
		metrics:  metrics,
		binarize: config.BinarizeSetMetrics,
		scratch:  pool.NewSlices[float64](256),
	}, nil
}

// Names returns the metric names in vector order.
func (e *Engine) Names() []string {
	names := make([]string, len(e.metrics))
	for i, m := range e.metrics {
		names[i] = m.Name
	}
	return names
}

// Len returns the length of every vector produced by Compute.
func (e *Engine) Len() int {
	return len(e.metrics)
}

// Compute evaluates every metric between u and v in declared order.
// The vectors must have equal length.
func (e *Engine) Compute(u, v []float64) domain.MetricVector {
	if len(u) != len(v) {
		panic(fmt.Sprintf("distance: vector lengths differ (%d != %d)", len(u), len(v)))
	}

	bu, bv := u, v
	if e.binarize {
		pu := e.scratch.Get(len(u))
		pv := e.scratch.Get(len(v))
		defer e.scratch.Put(pu)
		defer e.scratch.Put(pv)
		bu = binarize(u, *pu)
		bv = binarize(v, *pv)
	}

	out := make(domain.MetricVector, len(e.metrics))
	for i, m := range e.metrics {
		if m.Family == FamilySet {
			out[i] = m.Func(bu, bv)
			continue
		}
		out[i] = m.Func(u, v)
	}
	return out
}

func binarize(src, dst []float64) []float64 {
	for i, x := range src {
		if x != 0 {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
	return dst
}
