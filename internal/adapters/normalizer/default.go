package normalizer

import (
	"strings"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

// Punctuation is the fixed, locale-independent set of characters removed
// before tokenization.
const Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var punctuationRemover = strings.NewReplacer(punctuationPairs()...)

func punctuationPairs() []string {
	pairs := make([]string, 0, 2*len(Punctuation))
	for _, r := range Punctuation {
		pairs = append(pairs, string(r), "")
	}
	return pairs
}

// IsPunct reports whether b belongs to the punctuation set.
func IsPunct(b byte) bool {
	return strings.IndexByte(Punctuation, b) >= 0
}

// DefaultNormalizer implements the default text normalization strategy.
type DefaultNormalizer struct{}

// NewDefaultNormalizer creates a new default normalizer.
func NewDefaultNormalizer() ports.Normalizer {
	return &DefaultNormalizer{}
}

// Strip removes every punctuation character from text.
func (n *DefaultNormalizer) Strip(text string) string {
	return punctuationRemover.Replace(text)
}

// Bag removes punctuation, splits on whitespace and counts each token.
// Tokens are case-sensitive.
func (n *DefaultNormalizer) Bag(text string) domain.WordBag {
	words := strings.Fields(n.Strip(text))
	bag := domain.NewWordBag(len(words))
	for _, w := range words {
		bag.Add(w)
	}
	return bag
}
