package ports

import "github.com/baditaflorin/go_pair_features/internal/core/domain"

// Normalizer turns one raw text into a bag of words.
type Normalizer interface {
	Bag(text string) domain.WordBag
}
