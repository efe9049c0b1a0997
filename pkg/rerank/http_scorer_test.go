package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPScorer_ScoreBatch(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "which db", req.Query)
		require.Len(t, req.Texts, 3)

		// Services return results in score order, not input order.
		json.NewEncoder(w).Encode([]rerankResult{
			{Index: 2, Score: 0.9},
			{Index: 0, Score: 0.4},
			{Index: 1, Score: 0.1},
		})
	}))
	defer ts.Close()

	s, err := NewHTTPScorer(CrossEncoderConfig{URL: ts.URL})
	require.NoError(t, err)

	scores, err := s.ScoreBatch(context.Background(), "which db", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.1, 0.9}, scores, "scores mapped back to input positions")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPScorer_ScoreDelegatesToBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 0.7}})
	}))
	defer ts.Close()

	s, err := NewHTTPScorer(CrossEncoderConfig{URL: ts.URL})
	require.NoError(t, err)

	score, err := s.Score(context.Background(), "q", "text")
	require.NoError(t, err)
	assert.Equal(t, 0.7, score)
}

func TestHTTPScorer_BadResponses(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		}))
		defer ts.Close()
		s, err := NewHTTPScorer(CrossEncoderConfig{URL: ts.URL})
		require.NoError(t, err)
		_, err = s.ScoreBatch(context.Background(), "q", []string{"a"})
		assert.ErrorContains(t, err, "503")
	})

	t.Run("score count mismatch", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 0.5}})
		}))
		defer ts.Close()
		s, err := NewHTTPScorer(CrossEncoderConfig{URL: ts.URL})
		require.NoError(t, err)
		_, err = s.ScoreBatch(context.Background(), "q", []string{"a", "b"})
		assert.ErrorContains(t, err, "1 scores for 2 texts")
	})

	t.Run("out of range index", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]rerankResult{{Index: 5, Score: 0.5}})
		}))
		defer ts.Close()
		s, err := NewHTTPScorer(CrossEncoderConfig{URL: ts.URL})
		require.NoError(t, err)
		_, err = s.ScoreBatch(context.Background(), "q", []string{"a"})
		assert.ErrorContains(t, err, "out-of-range")
	})
}

func TestNewHTTPScorer_RequiresURL(t *testing.T) {
	_, err := NewHTTPScorer(CrossEncoderConfig{})
	assert.Error(t, err)
}
