// Package embedding turns text into vectors through Azure OpenAI.
package embedding

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"
)

// Dimension is the vector size of the embedding deployment the store was
// built for.
const Dimension = 1536

var (
	ErrEmptyText          = errors.New("embedding: text must be non-empty")
	ErrMissingCredentials = errors.New("embedding: missing Azure OpenAI key, endpoint or deployment")
	ErrEmptyResponse      = errors.New("embedding: provider returned no embedding")
	ErrDimensionMismatch  = errors.New("embedding: unexpected vector dimension")
)

// Creator generates one embedding per text.
type Creator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContentHash is the de-duplication key of a text: sha256 over its lowercased
// UTF-8 bytes.
func ContentHash(text string) []byte {
	sum := sha256.Sum256([]byte(strings.ToLower(text)))
	return sum[:]
}
