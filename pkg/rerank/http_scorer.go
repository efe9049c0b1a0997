package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CrossEncoderConfig points at an HTTP rerank service (text-embeddings
// style API: POST /rerank with a query and candidate texts).
type CrossEncoderConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPScorer scores pairs through a remote cross-encoder endpoint.
type HTTPScorer struct {
	url    string
	client *http.Client
}

func NewHTTPScorer(cfg CrossEncoderConfig) (*HTTPScorer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rerank: endpoint URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPScorer{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// ScoreBatch scores every text against the query in one call. The service
// returns (index, score) pairs in its own order; scores are mapped back to
// input positions.
func (s *HTTPScorer) ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("rerank: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rerank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: call %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank: %s returned %d: %s", s.url, resp.StatusCode, excerpt)
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("rerank: %s returned %d scores for %d texts", s.url, len(results), len(texts))
	}

	scores := make([]float64, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("rerank: %s returned out-of-range index %d", s.url, r.Index)
		}
		scores[r.Index] = r.Score
	}
	return scores, nil
}

// Score sends a single (query, text) pair and returns the model score.
func (s *HTTPScorer) Score(ctx context.Context, query, text string) (float64, error) {
	scores, err := s.ScoreBatch(ctx, query, []string{text})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}
