package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/chunk"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/ingest"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{tenant.ErrEmptyProjectID, KindValidation},
		{tenant.ErrEmptyScope, KindValidation},
		{ingest.ErrEmptyText, KindValidation},
		{tenant.ErrDisallowedKey, KindDisallowedKey},
		{ingest.ErrDocumentTooLarge, KindDocumentTooLarge},
		{chunk.ErrInvalidConfig, KindChunkConfig},
		{context.DeadlineExceeded, KindTimeout},
		{index.ErrUnavailable, KindUnavailable},
		{fmt.Errorf("write failed: %w", index.ErrUnavailable), KindUnavailable},
		{errors.New("somebody tripped over a cable"), KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, classifyError(tc.err), tc.err.Error())
	}
}

func TestRenderToolError_HidesNothingItShould(t *testing.T) {
	msg := renderToolError(newToolError(fmt.Errorf("graph write: %w", index.ErrUnavailable)))
	assert.Contains(t, msg, KindUnavailable)
	assert.Contains(t, msg, "graph write")
}
