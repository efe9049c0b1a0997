// Package rerank implements two-stage retrieval: over-fetch candidates from
// a backend, score them with a cross-encoder, return the top N. The cross
// encoder is strictly optional at runtime: any scoring failure falls back
// to backend-native order rather than failing the retrieval.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// Scorer scores a (query, candidate-text) pair for relevance.
type Scorer interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// BatchScorer scores every candidate in one round trip. Scorers that can,
// should: the pipeline prefers this path and falls back to per-candidate
// Score calls otherwise.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Factory constructs the process-wide scorer on first use.
type Factory func() (Scorer, error)

// ErrNoScorer is reported (and then recovered from) when no factory is wired.
var ErrNoScorer = errors.New("no cross-encoder configured")

// The scorer is a process-wide singleton: model-backed cross-encoders are
// expensive to construct, so exactly one instance serves all tenants. The
// mutex is held across construction, which gives the required state machine
// for free: a second concurrent first-caller blocks until the instance is
// ready instead of racing a second construction.
var (
	scorerMu sync.Mutex
	scorer   Scorer
	factory  Factory
)

// SetScorerFactory wires the constructor used on first access and drops any
// previously built instance.
func SetScorerFactory(f Factory) {
	scorerMu.Lock()
	defer scorerMu.Unlock()
	factory = f
	scorer = nil
}

// ResetScorer clears the singleton so the next access reconstructs. Test hook.
func ResetScorer() {
	scorerMu.Lock()
	defer scorerMu.Unlock()
	scorer = nil
}

func sharedScorer() (Scorer, error) {
	scorerMu.Lock()
	defer scorerMu.Unlock()
	if scorer != nil {
		return scorer, nil
	}
	if factory == nil {
		return nil, ErrNoScorer
	}
	s, err := factory()
	if err != nil {
		return nil, err
	}
	scorer = s
	return s, nil
}

// Config shapes the candidate pool and the returned slice.
type Config struct {
	Enabled    bool
	CandidateK int // over-fetch size, default 20
	TopN       int // returned size, default 5
}

// Pipeline runs candidate retrieval and optional reranking against any
// backend adapter.
type Pipeline struct {
	cfg Config
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.CandidateK <= 0 {
		cfg.CandidateK = 20
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	if cfg.CandidateK < cfg.TopN {
		cfg.CandidateK = cfg.TopN
	}
	return &Pipeline{cfg: cfg}
}

// Retrieve fetches up to CandidateK tenant-scoped candidates and returns the
// TopN texts. The second return reports whether cross-encoder order was
// actually applied. Backend failures surface; scorer failures never do, the
// un-reranked head of the candidate pool is returned instead.
func (p *Pipeline) Retrieve(ctx context.Context, idx index.Index, query string, key tenant.Key, rerank bool) ([]string, bool, error) {
	candidates, err := idx.Query(ctx, query, key, p.cfg.CandidateK)
	if err != nil {
		return nil, false, err
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}

	if !rerank || !p.cfg.Enabled {
		return texts(head(candidates, p.cfg.TopN)), false, nil
	}

	s, err := sharedScorer()
	if err != nil {
		log.Printf("[rerank] scorer unavailable, returning native order: %v", err)
		return texts(head(candidates, p.cfg.TopN)), false, nil
	}

	scores, err := scoreAll(ctx, s, query, candidates)
	if err != nil {
		log.Printf("[rerank] scoring failed, returning native order: %v", err)
		return texts(head(candidates, p.cfg.TopN)), false, nil
	}

	type scored struct {
		candidate index.Candidate
		score     float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{candidate: c, score: scores[i]}
	}

	// Stable sort keeps backend order for equal scores.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]index.Candidate, 0, p.cfg.TopN)
	for _, sc := range ranked {
		out = append(out, sc.candidate)
		if len(out) == p.cfg.TopN {
			break
		}
	}
	return texts(out), true, nil
}

// scoreAll scores the whole candidate pool, in one round trip when the
// scorer supports batching.
func scoreAll(ctx context.Context, s Scorer, query string, candidates []index.Candidate) ([]float64, error) {
	if bs, ok := s.(BatchScorer); ok {
		scores, err := bs.ScoreBatch(ctx, query, texts(candidates))
		if err != nil {
			return nil, err
		}
		if len(scores) != len(candidates) {
			return nil, fmt.Errorf("scorer returned %d scores for %d candidates", len(scores), len(candidates))
		}
		return scores, nil
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		v, err := s.Score(ctx, query, c.Text)
		if err != nil {
			return nil, err
		}
		scores[i] = v
	}
	return scores, nil
}

func head(candidates []index.Candidate, n int) []index.Candidate {
	if len(candidates) > n {
		return candidates[:n]
	}
	return candidates
}

func texts(candidates []index.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Text
	}
	return out
}
