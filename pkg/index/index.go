// Package index defines the capability interface shared by the two storage
// backends (property graph and vector store) plus the concrete adapters.
// The ingestion orchestrator, dedup engine, reranking pipeline and tenant
// registry all depend on Index only, never on a concrete backend.
package index

import (
	"context"
	"errors"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// ErrUnavailable wraps connection and timeout failures from either backend.
var ErrUnavailable = errors.New("backend unavailable")

// Document is one stored unit. ContentHash is always recomputed by the
// ingestion path, never caller-supplied, and doubles as the backend-level
// identifier so a second write upserts instead of appending.
type Document struct {
	Text        string
	Tenant      tenant.Key
	Source      string
	FilePath    string
	ContentHash string
}

// Candidate is one retrieval hit in backend-native relevance order.
type Candidate struct {
	Text  string
	Score float64
}

// GraphStats breaks a graph tenant count down by node kind.
type GraphStats struct {
	Total    int64
	Chunks   int64
	Entities int64
}

// Index is the uniform capability surface over a storage backend.
//
// Insert must be idempotent by Document.ContentHash. ExistsByHash is a cheap
// existence probe that transfers no payload or vector data. Query returns up
// to limit candidates filtered by exact tenant match. DeleteByTenant sweeps
// every stored unit under the key; an empty scope widens the sweep to the
// whole project. DistinctValues enumerates stored values of one allowlisted
// metadata key, optionally restricted to a project.
type Index interface {
	Name() string
	Insert(ctx context.Context, doc Document) error
	ExistsByHash(ctx context.Context, key tenant.Key, hash string) (bool, error)
	Query(ctx context.Context, text string, key tenant.Key, limit int) ([]Candidate, error)
	DeleteByTenant(ctx context.Context, key tenant.Key) error
	CountByTenant(ctx context.Context, key tenant.Key) (int64, error)
	DistinctValues(ctx context.Context, metaKey string, key tenant.Key) ([]string, error)
}

// Embedder turns text into a vector. Implemented by the Ollama client; the
// vector adapter treats it as an opaque capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerateFunc is a minimal function signature for calling a text-completion
// service. The graph adapter uses it for entity extraction only; its output
// is never interpreted by the core beyond JSON parsing.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)
