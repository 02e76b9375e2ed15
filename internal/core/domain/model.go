package domain

// RawPair holds the two input texts of a single request.
type RawPair struct {
	S1 string
	S2 string
}

// WordBag maps tokens to occurrence counts and remembers the order in which
// tokens were first seen.
type WordBag struct {
	Counts map[string]int
	Order  []string
}

// NewWordBag creates an empty bag with room for n distinct tokens.
func NewWordBag(n int) WordBag {
	return WordBag{
		Counts: make(map[string]int, n),
		Order:  make([]string, 0, n),
	}
}

// Add counts one occurrence of token.
func (b *WordBag) Add(token string) {
	if b.Counts == nil {
		b.Counts = make(map[string]int)
	}
	if _, ok := b.Counts[token]; !ok {
		b.Order = append(b.Order, token)
	}
	b.Counts[token]++
}

// Count returns the number of occurrences of token, 0 if absent.
func (b WordBag) Count(token string) int {
	return b.Counts[token]
}

// Len returns the number of distinct tokens.
func (b WordBag) Len() int {
	return len(b.Order)
}

// Vocabulary is the ordered union of the tokens of both bags.
type Vocabulary []string

// CountVector is positionally aligned with a Vocabulary.
type CountVector []int

// Floats converts the counts to float64 for metric computation.
func (c CountVector) Floats() []float64 {
	out := make([]float64, len(c))
	for i, n := range c {
		out[i] = float64(n)
	}
	return out
}

// MetricVector holds one value per configured metric, in metric order.
type MetricVector []float64

// Clone returns a copy of the vector.
func (m MetricVector) Clone() MetricVector {
	out := make(MetricVector, len(m))
	copy(out, m)
	return out
}

// Decision is the classifier's answer for one MetricVector.
type Decision struct {
	Label float64 `json:"label"`
	Score float64 `json:"score"`
	// Raw is the unparsed classifier response, when one exists.
	Raw string `json:"raw,omitempty"`
}

// Result holds the outcome of a feature extraction, including the
// intermediate artifacts for diagnostics.
type Result struct {
	Name       string
	Vocabulary Vocabulary
	Counts1    CountVector
	Counts2    CountVector
	// Raw holds the metric values before scaling.
	Raw MetricVector
	// Scaled holds the min-max scaled values before repair.
	Scaled MetricVector
	// Features is the final vector handed to the classifier.
	Features MetricVector
	// Repaired is the number of non-finite slots that were replaced.
	Repaired int
	Details  map[string]interface{}
}
