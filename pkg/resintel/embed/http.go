package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "text-embedding-3-small"
	DefaultBatchSize = 64
)

// HTTPEmbedder calls an OpenAI-compatible embeddings endpoint in batches.
type HTTPEmbedder struct {
	BaseURL    string
	APIKey     string
	Model      string
	BatchSize  int
	HTTPClient *http.Client

	// dimension is learned from the first response; Embed runs concurrently.
	dimension atomic.Int64
}

// NewHTTPEmbedder applies defaults to cfg.
func NewHTTPEmbedder(cfg Config) *HTTPEmbedder {
	e := &HTTPEmbedder{
		BaseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BatchSize: cfg.BatchSize,
	}
	if e.BaseURL == "" {
		e.BaseURL = DefaultBaseURL
	}
	if e.Model == "" {
		e.Model = DefaultModel
	}
	if e.BatchSize <= 0 {
		e.BatchSize = DefaultBatchSize
	}
	timeout := 60 * time.Second
	if cfg.TimeoutS > 0 {
		timeout = time.Duration(cfg.TimeoutS) * time.Second
	}
	e.HTTPClient = &http.Client{Timeout: timeout}
	return e
}

func (e *HTTPEmbedder) Name() string { return "openai:" + e.Model }

func (e *HTTPEmbedder) Dimension() int { return int(e.dimension.Load()) }

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed sends texts in batches of BatchSize and stacks the rows in input order.
// Any transport or shape failure is ErrModelUnavailable.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) (*mat.Dense, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: nothing to embed", internalerr.ErrInvalidInput)
	}

	var data []float64
	dim := 0
	for start := 0; start < len(texts); start += e.BatchSize {
		end := min(start+e.BatchSize, len(texts))
		batch := texts[start:end]

		var out embeddingResponse
		if err := e.postJSON(ctx, embeddingRequest{Input: batch, Model: e.Model}, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", internalerr.ErrModelUnavailable, err)
		}
		if len(out.Data) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
				internalerr.ErrModelUnavailable, len(out.Data), len(batch))
		}

		rows := make([][]float64, len(batch))
		for i, item := range out.Data {
			idx := item.Index
			if idx < 0 || idx >= len(batch) || rows[idx] != nil {
				idx = i
			}
			rows[idx] = item.Embedding
		}
		for _, row := range rows {
			if dim == 0 {
				dim = len(row)
				data = make([]float64, 0, dim*len(texts))
			}
			if len(row) == 0 || len(row) != dim {
				return nil, fmt.Errorf("%w: inconsistent embedding width", internalerr.ErrModelUnavailable)
			}
			data = append(data, row...)
		}
	}

	e.dimension.Store(int64(dim))
	return mat.NewDense(len(texts), dim, data), nil
}

func (e *HTTPEmbedder) postJSON(ctx context.Context, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := e.BaseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d for %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
