package normalizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/pool"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

const (
	actionKeep byte = iota
	actionDrop
	actionSplit
)

// OptimizedNormalizer builds bags in a single pass over the input using a
// precomputed ASCII decision table and pooled token buffers.
type OptimizedNormalizer struct {
	// Pre-computed decision table for ASCII characters (0-127)
	asciiTable [utf8.RuneSelf]byte

	bytePool *pool.Bytes
}

// NewOptimizedNormalizer creates a new optimized normalizer
func NewOptimizedNormalizer() ports.Normalizer {
	n := &OptimizedNormalizer{
		bytePool: pool.NewSlices[byte](64),
	}

	for i := 0; i < utf8.RuneSelf; i++ {
		b := byte(i)
		switch {
		case IsPunct(b):
			n.asciiTable[i] = actionDrop
		case unicode.IsSpace(rune(b)):
			n.asciiTable[i] = actionSplit
		default:
			n.asciiTable[i] = actionKeep
		}
	}

	return n
}

// Bag produces the same bag as DefaultNormalizer without building the
// intermediate stripped string.
func (n *OptimizedNormalizer) Bag(text string) domain.WordBag {
	bag := domain.NewWordBag(0)
	if len(text) == 0 {
		return bag
	}

	buffer := n.bytePool.Get(0)
	defer n.bytePool.Put(buffer)

	flush := func() {
		if len(*buffer) > 0 {
			bag.Add(string(*buffer))
			*buffer = (*buffer)[:0]
		}
	}

	for i := 0; i < len(text); {
		b := text[i]
		if b < utf8.RuneSelf {
			switch n.asciiTable[b] {
			case actionKeep:
				*buffer = append(*buffer, b)
			case actionSplit:
				flush()
			}
			i++
			continue
		}

		// Non-ASCII runes are never punctuation here, only whitespace splits.
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			flush()
		} else {
			*buffer = append(*buffer, text[i:i+size]...)
		}
		i += size
	}
	flush()

	return bag
}

// NormalizerFactory creates the appropriate normalizer based on performance requirements
type NormalizerFactory struct{}

// NewNormalizerFactory creates a new normalizer factory
func NewNormalizerFactory() *NormalizerFactory {
	return &NormalizerFactory{}
}

// NormalizerType selects a normalizer implementation.
type NormalizerType int

const (
	// DefaultNormalizerType strips punctuation then splits with strings.Fields
	DefaultNormalizerType NormalizerType = iota
	// OptimizedNormalizerType uses buffer pooling and a single pass
	OptimizedNormalizerType
)

// String returns the configuration name of the type.
func (t NormalizerType) String() string {
	switch t {
	case OptimizedNormalizerType:
		return "optimized"
	default:
		return "default"
	}
}

// ParseNormalizerType maps a configuration name to a NormalizerType.
func ParseNormalizerType(name string) (NormalizerType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultNormalizerType, nil
	case "optimized":
		return OptimizedNormalizerType, nil
	default:
		return DefaultNormalizerType, fmt.Errorf("unknown normalizer %q", name)
	}
}

// CreateNormalizer creates a normalizer of the specified type
func (f *NormalizerFactory) CreateNormalizer(normalizerType NormalizerType) ports.Normalizer {
	switch normalizerType {
	case OptimizedNormalizerType:
		return NewOptimizedNormalizer()
	default:
		return NewDefaultNormalizer()
	}
}
