package rerank

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// stubIndex serves a fixed candidate list so tests control backend order.
type stubIndex struct {
	index.Index
	candidates []index.Candidate
	err        error
}

func (s *stubIndex) Name() string { return "stub" }

func (s *stubIndex) Query(_ context.Context, _ string, _ tenant.Key, limit int) ([]index.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.candidates) > limit {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

type scoreFunc func(query, text string) (float64, error)

func (f scoreFunc) Score(_ context.Context, query, text string) (float64, error) {
	return f(query, text)
}

func useScorer(t *testing.T, s Scorer, err error) {
	t.Helper()
	SetScorerFactory(func() (Scorer, error) { return s, err })
	t.Cleanup(func() { SetScorerFactory(nil) })
}

func candidates(texts ...string) []index.Candidate {
	out := make([]index.Candidate, len(texts))
	for i, txt := range texts {
		out[i] = index.Candidate{Text: txt, Score: float64(len(texts) - i)}
	}
	return out
}

var testKey = tenant.Key{ProjectID: "p1", Scope: "s1"}

func TestRetrieve_NativeOrderWhenRerankDisabled(t *testing.T) {
	idx := &stubIndex{candidates: candidates("a", "b", "c", "d")}
	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 3})

	got, reranked, err := p.Retrieve(context.Background(), idx, "q", testKey, false)
	require.NoError(t, err)
	assert.False(t, reranked)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestRetrieve_ReordersByScore(t *testing.T) {
	idx := &stubIndex{candidates: candidates("low", "mid", "high")}
	byText := map[string]float64{"low": 0.1, "mid": 0.5, "high": 0.9}
	useScorer(t, scoreFunc(func(_, text string) (float64, error) {
		return byText[text], nil
	}), nil)

	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 2})
	got, reranked, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)
	assert.True(t, reranked)
	assert.Equal(t, []string{"high", "mid"}, got)
}

func TestRetrieve_TiesKeepBackendOrder(t *testing.T) {
	idx := &stubIndex{candidates: candidates("first", "second", "third")}
	useScorer(t, scoreFunc(func(_, _ string) (float64, error) { return 0.5, nil }), nil)

	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 3})
	got, _, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestRetrieve_ScorerFailureFallsBack(t *testing.T) {
	idx := &stubIndex{candidates: candidates("a", "b", "c")}
	useScorer(t, scoreFunc(func(_, _ string) (float64, error) {
		return 0, errors.New("model crashed")
	}), nil)

	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 2})
	got, reranked, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err, "scorer failure must not surface")
	assert.False(t, reranked)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRetrieve_NoFactoryFallsBack(t *testing.T) {
	SetScorerFactory(nil)
	idx := &stubIndex{candidates: candidates("a", "b")}

	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 5})
	got, reranked, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)
	assert.False(t, reranked)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRetrieve_FactoryErrorFallsBack(t *testing.T) {
	idx := &stubIndex{candidates: candidates("a", "b")}
	useScorer(t, nil, errors.New("model file missing"))

	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 5})
	got, reranked, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)
	assert.False(t, reranked)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRetrieve_BackendErrorSurfaces(t *testing.T) {
	idx := &stubIndex{err: index.ErrUnavailable}
	p := NewPipeline(Config{Enabled: true})

	_, _, err := p.Retrieve(context.Background(), idx, "q", testKey, false)
	assert.ErrorIs(t, err, index.ErrUnavailable)
}

func TestRetrieve_EmptyResults(t *testing.T) {
	idx := &stubIndex{}
	p := NewPipeline(Config{Enabled: true})

	got, _, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// batchScorer counts round trips so tests can prove the pool is scored in
// one call.
type batchScorer struct {
	calls  atomic.Int32
	byText map[string]float64
	err    error
}

func (b *batchScorer) Score(_ context.Context, _, text string) (float64, error) {
	return b.byText[text], nil
}

func (b *batchScorer) ScoreBatch(_ context.Context, _ string, texts []string) ([]float64, error) {
	b.calls.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	out := make([]float64, len(texts))
	for i, txt := range texts {
		out[i] = b.byText[txt]
	}
	return out, nil
}

func TestRetrieve_BatchScorerUsesOneRoundTrip(t *testing.T) {
	idx := &stubIndex{candidates: candidates("low", "mid", "high")}
	bs := &batchScorer{byText: map[string]float64{"low": 0.1, "mid": 0.5, "high": 0.9}}
	useScorer(t, bs, nil)

	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 3})
	got, reranked, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)
	assert.True(t, reranked)
	assert.Equal(t, []string{"high", "mid", "low"}, got)
	assert.Equal(t, int32(1), bs.calls.Load(), "whole pool scored in one call")
}

func TestRetrieve_BatchScorerFailureFallsBack(t *testing.T) {
	idx := &stubIndex{candidates: candidates("a", "b")}
	useScorer(t, &batchScorer{err: errors.New("service down")}, nil)

	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 2})
	got, reranked, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)
	assert.False(t, reranked)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSharedScorer_ConstructedOnce(t *testing.T) {
	var built atomic.Int32
	SetScorerFactory(func() (Scorer, error) {
		built.Add(1)
		time.Sleep(10 * time.Millisecond)
		return scoreFunc(func(_, _ string) (float64, error) { return 1, nil }), nil
	})
	t.Cleanup(func() { SetScorerFactory(nil) })

	idx := &stubIndex{candidates: candidates("a", "b")}
	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 2})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), built.Load(), "scorer should be built exactly once")
}

func TestResetScorer_Reconstructs(t *testing.T) {
	var built atomic.Int32
	SetScorerFactory(func() (Scorer, error) {
		built.Add(1)
		return scoreFunc(func(_, _ string) (float64, error) { return 1, nil }), nil
	})
	t.Cleanup(func() { SetScorerFactory(nil) })

	idx := &stubIndex{candidates: candidates("a")}
	p := NewPipeline(Config{Enabled: true, CandidateK: 10, TopN: 1})

	_, _, err := p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)
	ResetScorer()
	_, _, err = p.Retrieve(context.Background(), idx, "q", testKey, true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), built.Load())
}

func TestPipeline_DefaultsAndClamps(t *testing.T) {
	p := NewPipeline(Config{})
	assert.Equal(t, 20, p.cfg.CandidateK)
	assert.Equal(t, 5, p.cfg.TopN)

	p = NewPipeline(Config{CandidateK: 3, TopN: 8})
	assert.Equal(t, 8, p.cfg.CandidateK, "candidate pool never smaller than topN")
}

// Retrieval never crosses tenants even when another tenant's text is a far
// better lexical match for the query.
func TestRetrieve_TenantIsolation(t *testing.T) {
	idx := index.NewMemoryIndex("mem")
	alpha := tenant.Key{ProjectID: "proj-alpha", Scope: "prod"}
	beta := tenant.Key{ProjectID: "proj-beta", Scope: "prod"}

	docs := []index.Document{
		{Text: "alpha deploy notes for the search cluster", Tenant: alpha},
		{Text: "beta secret deploy credentials for the search cluster", Tenant: beta},
	}
	for i := range docs {
		hash, err := tenant.Fingerprint(docs[i].Tenant, docs[i].Text)
		require.NoError(t, err)
		docs[i].ContentHash = hash
		require.NoError(t, idx.Insert(context.Background(), docs[i]))
	}

	p := NewPipeline(Config{Enabled: false, CandidateK: 10, TopN: 5})
	got, _, err := p.Retrieve(context.Background(), idx, "secret deploy credentials search cluster", alpha, false)
	require.NoError(t, err)
	for _, txt := range got {
		assert.NotContains(t, txt, "beta secret")
	}
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "alpha deploy notes")
}
