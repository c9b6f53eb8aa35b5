package model

import (
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	"github.com/cespare/xxhash/v2"
)

// Default thresholds and dimensionality of the bag-of-characters model.
const (
	DefaultIdenticalAngle = 0.9
	DefaultFoldAngle      = 0.55
	DefaultDimensions     = 1 << 16
)

// Options configures a BagOfChars model. Zero values fall back to the
// defaults.
type Options struct {
	IdenticalAngle float64
	FoldAngle      float64
	Dimensions     int
	// StopWords replaces DefaultStopWords when non-nil.
	StopWords      []string
	MinTokenLen    int
}

// BagOfChars embeds each word as its character counts plus its
// boundary-marked character bigrams. Words sharing most characters in the
// same order land close to each other; anagrams and inflections do not
// collapse into the same point.
type BagOfChars struct {
	identical float64
	fold      float64
	dims      int
	tokenizer *Tokenizer
}

// NewBagOfChars creates a BagOfChars model.
func NewBagOfChars(opts Options) *BagOfChars {
	if opts.IdenticalAngle <= 0 {
		opts.IdenticalAngle = DefaultIdenticalAngle
	}
	if opts.FoldAngle <= 0 {
		opts.FoldAngle = DefaultFoldAngle
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultDimensions
	}
	return &BagOfChars{
		identical: opts.IdenticalAngle,
		fold:      opts.FoldAngle,
		dims:      opts.Dimensions,
		tokenizer: NewTokenizer(opts.StopWords, opts.MinTokenLen),
	}
}

func (m *BagOfChars) IdenticalAngle() float64 { return m.identical }

func (m *BagOfChars) FoldAngle() float64 { return m.fold }

func (m *BagOfChars) NumOfDimensions() int { return m.dims }

func (m *BagOfChars) CosAngle(a, b *vector.Vector) float64 {
	return vector.CosAngle(a, b)
}

func (m *BagOfChars) CreateEmbedding(value string, label bool) []*vector.Vector {
	tokens := m.tokenizer.Tokenize(value)
	vectors := make([]*vector.Vector, 0, len(tokens))
	for _, tok := range tokens {
		v := m.embed(tok.Term)
		if label {
			v.Label = tok.Term
		}
		vectors = append(vectors, v)
	}
	return vectors
}

func (m *BagOfChars) embed(word string) *vector.Vector {
	components := make(map[int32]float32)
	runes := []rune(word)
	for _, r := range runes {
		components[m.component("1", string(r))]++
	}
	bounded := make([]rune, 0, len(runes)+2)
	bounded = append(bounded, '^')
	bounded = append(bounded, runes...)
	bounded = append(bounded, '$')
	for i := 0; i+1 < len(bounded); i++ {
		components[m.component("2", string(bounded[i:i+2]))]++
	}
	return vector.FromMap(m.dims, components, "")
}

func (m *BagOfChars) component(kind, gram string) int32 {
	return int32(xxhash.Sum64String(kind+gram) % uint64(m.dims))
}
