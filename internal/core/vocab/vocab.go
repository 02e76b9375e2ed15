// Package vocab aligns two word bags onto one shared vocabulary.
package vocab

import "github.com/baditaflorin/go_pair_features/internal/core/domain"

// Unify returns the ordered union of the tokens of both bags: every token of
// a in first-seen order, then the tokens only present in b in first-seen order.
// The same Vocabulary must be used to vectorize both bags.
func Unify(a, b domain.WordBag) domain.Vocabulary {
	vocab := make(domain.Vocabulary, 0, a.Len()+b.Len())
	vocab = append(vocab, a.Order...)
	for _, tok := range b.Order {
		if _, seen := a.Counts[tok]; !seen {
			vocab = append(vocab, tok)
		}
	}
	return vocab
}

// Vectorize projects bag onto vocab, emitting 0 for absent tokens.
func Vectorize(bag domain.WordBag, vocab domain.Vocabulary) domain.CountVector {
	vec := make(domain.CountVector, len(vocab))
	for i, tok := range vocab {
		vec[i] = bag.Count(tok)
	}
	return vec
}
