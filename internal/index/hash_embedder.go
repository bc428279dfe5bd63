package index

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase words, skipping words of two
// characters or fewer.
func Tokenize(text string) []string {
	f := func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsNumber(c)
	}
	fields := strings.FieldsFunc(text, f)
	var tokens []string
	for _, field := range fields {
		if len(field) > 2 {
			tokens = append(tokens, strings.ToLower(field))
		}
	}
	return tokens
}

// hashBias keeps every vector non-zero so normalization is always defined.
const hashBias = 0.05

// HashEmbedder embeds text as a hashed term-frequency vector. It needs no
// model server and is deterministic, so it serves offline builds and tests.
// The last dimension holds a small constant bias.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns an embedder producing vectors of length dims.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims < 2 {
		dims = 2
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float64, h.dims)
	tokens := Tokenize(text)
	buckets := uint32(h.dims - 1)
	for _, token := range tokens {
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		v[hasher.Sum32()%buckets] += 1 / float64(len(tokens))
	}
	v[h.dims-1] = hashBias

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dims)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}
