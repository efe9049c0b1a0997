// Package ingest orchestrates document ingestion: validation, chunking,
// per-chunk deduplication and the backend write, plus the batch path with
// per-item failure isolation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/chunk"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/dedup"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

var (
	// ErrEmptyText rejects blank documents before any backend call.
	ErrEmptyText = errors.New("text must not be empty")

	// ErrDocumentTooLarge is returned for oversized input when auto-chunking
	// is disabled.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")
)

// Config bounds document size and shapes chunking.
type Config struct {
	MaxDocumentSize int
	ChunkSize       int
	ChunkOverlap    int
}

// Orchestrator runs the ingestion pipeline against any backend adapter.
type Orchestrator struct {
	cfg Config
}

func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// Request is one document to ingest. SkipDuplicates enables the dedup probe;
// AutoChunk allows oversized text to be split instead of rejected.
type Request struct {
	Text           string
	Tenant         tenant.Key
	Source         string
	FilePath       string
	AutoChunk      bool
	SkipDuplicates bool
}

// Status classifies a single-document outcome.
type Status string

const (
	StatusIngested Status = "ingested"
	StatusSkipped  Status = "skipped"
	StatusPartial  Status = "partial" // multi-chunk input, some new and some duplicate
)

// Result is the per-document outcome with a per-chunk breakdown.
type Result struct {
	Status        Status
	Hash          string // content hash of the whole input
	ChunksTotal   int    // windows produced by the chunker; 0 when no split happened
	ChunksWritten int
	ChunksSkipped int
}

// Ingest validates, chunks if needed, deduplicates per chunk and writes each
// surviving chunk. Chunks written before an error stay written; writes are
// idempotent by hash, so a retry converges instead of duplicating.
func (o *Orchestrator) Ingest(ctx context.Context, idx index.Index, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, ErrEmptyText
	}
	if err := req.Tenant.Validate(); err != nil {
		return Result{}, err
	}

	docHash, err := tenant.Fingerprint(req.Tenant, req.Text)
	if err != nil {
		return Result{}, err
	}

	pieces := []string{req.Text}
	chunked := false
	if chunk.NeedsChunking(req.Text, o.cfg.MaxDocumentSize) {
		if !req.AutoChunk {
			return Result{}, fmt.Errorf("%w: %d bytes > %d byte limit",
				ErrDocumentTooLarge, len(req.Text), o.cfg.MaxDocumentSize)
		}
		pieces, err = chunk.Split(req.Text, o.cfg.ChunkSize, o.cfg.ChunkOverlap)
		if err != nil {
			return Result{}, err
		}
		chunked = true
		log.Printf("[ingest] splitting %d byte document for %s into %d chunks",
			len(req.Text), req.Tenant, len(pieces))
	}

	res := Result{Hash: docHash}
	if chunked {
		res.ChunksTotal = len(pieces)
	}

	for _, piece := range pieces {
		hash := docHash
		if chunked {
			// Each chunk is independently deduplicable under its own hash.
			if hash, err = tenant.Fingerprint(req.Tenant, piece); err != nil {
				return res, err
			}
		}

		proceed := true
		if req.SkipDuplicates {
			decision, derr := dedup.ShouldIngest(ctx, idx, req.Tenant, piece)
			if derr != nil {
				return res, derr
			}
			proceed = decision.Proceed
			hash = decision.Hash
		}
		if !proceed {
			res.ChunksSkipped++
			continue
		}

		doc := index.Document{
			Text:        piece,
			Tenant:      req.Tenant,
			Source:      req.Source,
			FilePath:    req.FilePath,
			ContentHash: hash,
		}
		if err := idx.Insert(ctx, doc); err != nil {
			return res, fmt.Errorf("%s write: %w", idx.Name(), err)
		}
		res.ChunksWritten++
	}

	switch {
	case res.ChunksWritten == 0:
		res.Status = StatusSkipped
	case res.ChunksSkipped > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusIngested
	}
	return res, nil
}

// BatchFailure records why one batch item failed, by position.
type BatchFailure struct {
	Index  int
	Reason string
}

// BatchOutcome aggregates a batch run. Ingested+Skipped+Errors always equals
// the number of input items; Chunks sums the windows produced by chunking.
type BatchOutcome struct {
	Ingested int
	Skipped  int
	Errors   int
	Chunks   int
	Failures []BatchFailure
}

// IngestBatch runs each item through the single-document path. Items are
// isolated: one failure increments Errors, keeps its cause, and processing
// continues. The cause is both retained on the outcome and logged, never
// collapsed into a bare counter.
func (o *Orchestrator) IngestBatch(ctx context.Context, idx index.Index, items []Request) BatchOutcome {
	var out BatchOutcome
	for i, item := range items {
		res, err := o.Ingest(ctx, idx, item)
		out.Chunks += res.ChunksTotal
		if err != nil {
			out.Errors++
			out.Failures = append(out.Failures, BatchFailure{Index: i, Reason: err.Error()})
			log.Printf("[ingest] batch item %d failed for %s: %v", i, item.Tenant, err)
			continue
		}
		if res.Status == StatusSkipped {
			out.Skipped++
		} else {
			out.Ingested++
		}
	}
	return out
}
