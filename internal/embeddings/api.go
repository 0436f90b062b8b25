package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

// ApiEmbedder calls an HTTP embedding service. The service accepts a
// JSON batch and returns one vector per sentence.
type ApiEmbedder struct {
	url    string
	model  string
	client *http.Client
	dim    atomic.Int64
}

func NewApi(url, model string, dimension int) *ApiEmbedder {
	e := &ApiEmbedder{url: url, model: model, client: &http.Client{}}
	e.dim.Store(int64(dimension))
	return e
}

func (e *ApiEmbedder) Model() string { return e.model }

// Dimension returns the configured dimension, or the dimension observed
// on the first successful call when none was configured.
func (e *ApiEmbedder) Dimension() int { return int(e.dim.Load()) }

func (e *ApiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedRequest(ctx, texts)
}

func (e *ApiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedRequest(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embedRequest struct {
	Sentences []string `json:"sentences"`
	Model     string   `json:"model,omitempty"`
}

func (e *ApiEmbedder) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(&embedRequest{Sentences: texts, Model: e.model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if retryableStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var vecs [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vecs); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrRejected, len(vecs), len(texts))
	}
	if len(vecs) > 0 && e.dim.Load() == 0 {
		e.dim.Store(int64(len(vecs[0])))
	}
	return vecs, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

var _ Embedder = (*ApiEmbedder)(nil)
