package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// failingProbe wraps an Index so the existence probe always errors.
type failingProbe struct {
	index.Index
}

func (failingProbe) ExistsByHash(context.Context, tenant.Key, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestShouldIngest_NewContent(t *testing.T) {
	idx := index.NewMemoryIndex("vector")
	key := tenant.Key{ProjectID: "P1", Scope: "S1"}

	d, err := ShouldIngest(context.Background(), idx, key, "fresh content")
	require.NoError(t, err)
	assert.True(t, d.Proceed)
	assert.False(t, d.ProbeFailed)
	assert.Len(t, d.Hash, 64)
}

func TestShouldIngest_Duplicate(t *testing.T) {
	idx := index.NewMemoryIndex("vector")
	key := tenant.Key{ProjectID: "P1", Scope: "S1"}
	hash, err := tenant.Fingerprint(key, "already stored")
	require.NoError(t, err)
	require.NoError(t, idx.Insert(context.Background(), index.Document{
		Text: "already stored", Tenant: key, ContentHash: hash,
	}))

	d, err := ShouldIngest(context.Background(), idx, key, "already stored")
	require.NoError(t, err)
	assert.False(t, d.Proceed)
	assert.Equal(t, hash, d.Hash)
}

func TestShouldIngest_SameTextOtherTenantProceeds(t *testing.T) {
	idx := index.NewMemoryIndex("vector")
	a := tenant.Key{ProjectID: "P1", Scope: "S1"}
	b := tenant.Key{ProjectID: "P2", Scope: "S1"}
	hash, _ := tenant.Fingerprint(a, "shared text")
	require.NoError(t, idx.Insert(context.Background(), index.Document{
		Text: "shared text", Tenant: a, ContentHash: hash,
	}))

	d, err := ShouldIngest(context.Background(), idx, b, "shared text")
	require.NoError(t, err)
	assert.True(t, d.Proceed)
}

func TestShouldIngest_FailsOpenOnProbeError(t *testing.T) {
	idx := failingProbe{index.NewMemoryIndex("graph")}
	key := tenant.Key{ProjectID: "P1", Scope: "S1"}

	d, err := ShouldIngest(context.Background(), idx, key, "content behind a broken backend")
	require.NoError(t, err, "a probe failure must never surface as an error")
	assert.True(t, d.Proceed, "probe failure must not block ingestion")
	assert.True(t, d.ProbeFailed)
	assert.NotEmpty(t, d.Hash)
}

func TestShouldIngest_InvalidEncoding(t *testing.T) {
	idx := index.NewMemoryIndex("vector")
	_, err := ShouldIngest(context.Background(), idx, tenant.Key{ProjectID: "p", Scope: "s"}, string([]byte{0xff}))
	assert.ErrorIs(t, err, tenant.ErrInvalidEncoding)
}
