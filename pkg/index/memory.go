package index

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// MemoryIndex is an in-process Index keyed by content hash. It backs unit
// tests and local development; it honors the same tenant-isolation and
// upsert-by-hash contracts as the real adapters.
type MemoryIndex struct {
	name string

	mu   sync.Mutex
	docs map[string]Document
}

func NewMemoryIndex(name string) *MemoryIndex {
	return &MemoryIndex{name: name, docs: map[string]Document{}}
}

func (m *MemoryIndex) Name() string { return m.name }

func (m *MemoryIndex) Insert(_ context.Context, doc Document) error {
	if _, err := tenant.BuildMetadata(doc.Tenant, doc.Source, doc.ContentHash, doc.FilePath); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ContentHash] = doc // upsert
	return nil
}

func (m *MemoryIndex) ExistsByHash(_ context.Context, key tenant.Key, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[hash]
	return ok && matchesTenant(doc, key), nil
}

func (m *MemoryIndex) Query(_ context.Context, text string, key tenant.Key, limit int) ([]Candidate, error) {
	terms := queryTerms(text)
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Candidate
	for _, doc := range m.docs {
		if !matchesTenant(doc, key) {
			continue
		}
		score := 0
		lower := strings.ToLower(doc.Text)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > 0 {
			out = append(out, Candidate{Text: doc.Text, Score: float64(score)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryIndex) DeleteByTenant(_ context.Context, key tenant.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, doc := range m.docs {
		if matchesTenant(doc, key) {
			delete(m.docs, hash)
		}
	}
	return nil
}

func (m *MemoryIndex) CountByTenant(_ context.Context, key tenant.Key) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, doc := range m.docs {
		if matchesTenant(doc, key) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryIndex) DistinctValues(_ context.Context, metaKey string, key tenant.Key) ([]string, error) {
	if err := tenant.ValidateKeys(tenant.Metadata{metaKey: ""}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]struct{}{}
	var out []string
	for _, doc := range m.docs {
		if key.ProjectID != "" && doc.Tenant.ProjectID != key.ProjectID {
			continue
		}
		var v string
		switch metaKey {
		case tenant.MetaProjectID:
			v = doc.Tenant.ProjectID
		case tenant.MetaTenantScope:
			v = doc.Tenant.Scope
		case tenant.MetaSource:
			v = doc.Source
		case tenant.MetaFilePath:
			v = doc.FilePath
		case tenant.MetaContentHash:
			v = doc.ContentHash
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stats mirrors the graph adapter's per-tenant node breakdown. Every stored
// unit is a chunk; there is no entity extraction in memory.
func (m *MemoryIndex) Stats(_ context.Context, key tenant.Key) (GraphStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s GraphStats
	for _, doc := range m.docs {
		if matchesTenant(doc, key) {
			s.Total++
			s.Chunks++
		}
	}
	return s, nil
}

// Len reports the number of stored units across all tenants.
func (m *MemoryIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func matchesTenant(doc Document, key tenant.Key) bool {
	if doc.Tenant.ProjectID != key.ProjectID {
		return false
	}
	return key.Scope == "" || doc.Tenant.Scope == key.Scope
}
