package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/resintel/pkg/resintel/ingest"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// DefaultHashingDimension is the bucket count of the hashing embedder.
const DefaultHashingDimension = 256

// HashingEmbedder is a deterministic signed feature-hashing embedder over the
// ingest tokenizer. It needs no model and is used offline and in tests.
type HashingEmbedder struct {
	dim       int
	tokenizer *ingest.Tokenizer
}

// NewHashingEmbedder returns an embedder with dim buckets.
func NewHashingEmbedder(dim int, tokenizer *ingest.Tokenizer) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	if tokenizer == nil {
		tokenizer = ingest.NewTokenizer(nil)
	}
	return &HashingEmbedder{dim: dim, tokenizer: tokenizer}
}

func (h *HashingEmbedder) Name() string { return "hashing" }

func (h *HashingEmbedder) Dimension() int { return h.dim }

// Embed returns L2-normalized rows. A text with no tokens embeds to the zero vector.
func (h *HashingEmbedder) Embed(ctx context.Context, texts []string) (*mat.Dense, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: nothing to embed", internalerr.ErrInvalidInput)
	}
	out := mat.NewDense(len(texts), h.dim, nil)
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := out.RawRowView(i)
		for _, tok := range h.tokenizer.Tokenize(text) {
			bucket, sign := h.hash(tok)
			row[bucket] += sign
		}
		var norm float64
		for _, v := range row {
			norm += v * v
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
	}
	return out, nil
}

func (h *HashingEmbedder) hash(tok string) (int, float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(tok))
	sum := f.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(h.dim)), sign
}
