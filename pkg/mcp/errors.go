package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/chunk"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/ingest"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// Error kinds surfaced to MCP clients. Kinds are stable strings clients can
// branch on; the message stays human oriented.
const (
	KindValidation       = "validation_error"
	KindDisallowedKey    = "disallowed_key"
	KindDocumentTooLarge = "document_too_large"
	KindChunkConfig      = "invalid_chunk_config"
	KindUnavailable      = "backend_unavailable"
	KindTimeout          = "timeout"
	KindInternal         = "internal_error"
)

// errEmptyQuery rejects blank retrieval queries before touching a backend.
var errEmptyQuery = errors.New("query must not be empty")

// errEmptyBatch rejects batch calls with no documents.
var errEmptyBatch = errors.New("documents must not be empty")

// errInvalidTarget rejects unknown backend selectors.
var errInvalidTarget = errors.New(`target must be "graph", "vector" or "both"`)

// classifyError maps an internal error to a client-facing kind. Internal
// detail (connection strings, Cypher text) never leaks past the message the
// sentinel itself carries.
func classifyError(err error) string {
	switch {
	case errors.Is(err, tenant.ErrEmptyProjectID),
		errors.Is(err, tenant.ErrEmptyScope),
		errors.Is(err, tenant.ErrInvalidEncoding),
		errors.Is(err, ingest.ErrEmptyText),
		errors.Is(err, errEmptyQuery),
		errors.Is(err, errEmptyBatch),
		errors.Is(err, errInvalidTarget):
		return KindValidation
	case errors.Is(err, tenant.ErrDisallowedKey):
		return KindDisallowedKey
	case errors.Is(err, ingest.ErrDocumentTooLarge):
		return KindDocumentTooLarge
	case errors.Is(err, chunk.ErrInvalidConfig):
		return KindChunkConfig
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, index.ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// toolError is what a failed tool call serializes to.
type toolError struct {
	kind    string
	message string
}

func (e *toolError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func newToolError(err error) *toolError {
	return &toolError{kind: classifyError(err), message: err.Error()}
}
