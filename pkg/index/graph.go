package index

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// GraphConfig configures the Neo4j-backed property graph adapter.
type GraphConfig struct {
	URL      string
	Username string
	Password string

	// ExtractTimeout bounds one async entity-extraction pass.
	ExtractTimeout time.Duration
}

// GraphIndex stores chunks as :Chunk nodes and derives :Entity nodes plus
// relationships from each chunk through the text-completion service. The
// extraction output is opaque to the rest of the system; retrieval and
// deletion only rely on the tenant properties every node carries.
type GraphIndex struct {
	cfg      GraphConfig
	generate GenerateFunc // nil disables extraction
}

// NewGraphIndex returns a graph adapter. generate may be nil, in which case
// chunks are stored without entity extraction.
func NewGraphIndex(cfg GraphConfig, generate GenerateFunc) *GraphIndex {
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 5 * time.Minute
	}
	return &GraphIndex{cfg: cfg, generate: generate}
}

func (g *GraphIndex) Name() string { return "graph" }

func (g *GraphIndex) session(ctx context.Context) (neo4j.SessionWithContext, error) {
	driver, err := cachedGraphDriver(g.cfg.URL, g.cfg.Username, g.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return driver.NewSession(ctx, neo4j.SessionConfig{}), nil
}

// Insert upserts the chunk node keyed by content hash and, when a generator
// is configured, kicks off entity extraction in the background. A repeated
// hash merges onto the existing node instead of creating a second one.
func (g *GraphIndex) Insert(ctx context.Context, doc Document) error {
	meta, err := tenant.BuildMetadata(doc.Tenant, doc.Source, doc.ContentHash, doc.FilePath)
	if err != nil {
		return err
	}
	props := map[string]any{"text": doc.Text}
	for k, v := range meta {
		props[k] = v
	}

	sess, err := g.session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	_, err = sess.Run(ctx,
		"MERGE (c:Chunk {content_hash: $content_hash}) SET c += $props",
		map[string]any{"content_hash": doc.ContentHash, "props": props})
	if err != nil {
		return fmt.Errorf("graph insert: %w: %v", ErrUnavailable, err)
	}

	if g.generate != nil {
		go g.extractAsync(doc)
	}
	return nil
}

// ExistsByHash probes for the hash under an exact tenant match. No payload
// leaves the backend, only the boolean.
func (g *GraphIndex) ExistsByHash(ctx context.Context, key tenant.Key, hash string) (bool, error) {
	sess, err := g.session(ctx)
	if err != nil {
		return false, err
	}
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		"MATCH (c:Chunk {project_id: $project_id, tenant_scope: $tenant_scope, content_hash: $content_hash}) "+
			"RETURN count(c) > 0 AS exists",
		map[string]any{
			"project_id":   key.ProjectID,
			"tenant_scope": key.Scope,
			"content_hash": hash,
		})
	if err != nil {
		return false, fmt.Errorf("graph exists probe: %w: %v", ErrUnavailable, err)
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return false, fmt.Errorf("graph exists probe: %w: %v", ErrUnavailable, err)
	}
	v, _ := rec.Get("exists")
	b, _ := v.(bool)
	return b, nil
}

// Query scores tenant-scoped chunks by how many query terms they contain.
// Ordering is backend-native relevance only; the reranking pipeline applies
// the real cross-encoder ordering on top.
func (g *GraphIndex) Query(ctx context.Context, text string, key tenant.Key, limit int) ([]Candidate, error) {
	terms := queryTerms(text)
	if len(terms) == 0 {
		return nil, nil
	}
	sess, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close(ctx)

	match, params := tenantPattern("c:Chunk", key)
	params["terms"] = terms
	params["limit"] = limit
	res, err := sess.Run(ctx,
		"MATCH ("+match+") "+
			"WITH c, size([term IN $terms WHERE toLower(c.text) CONTAINS term]) AS score "+
			"WHERE score > 0 "+
			"RETURN c.text AS text, score ORDER BY score DESC LIMIT $limit",
		params)
	if err != nil {
		return nil, fmt.Errorf("graph query: %w: %v", ErrUnavailable, err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph query: %w: %v", ErrUnavailable, err)
	}

	out := make([]Candidate, 0, len(records))
	for _, rec := range records {
		t, _ := rec.Get("text")
		s, _ := rec.Get("score")
		text, _ := t.(string)
		score, _ := s.(int64)
		out = append(out, Candidate{Text: text, Score: float64(score)})
	}
	return out, nil
}

// DeleteByTenant removes every node under the key; chunk and entity nodes
// both carry the tenant properties, so one sweep covers them all. An empty
// scope deletes the whole project.
func (g *GraphIndex) DeleteByTenant(ctx context.Context, key tenant.Key) error {
	sess, err := g.session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	match, params := tenantPattern("n", key)
	_, err = sess.Run(ctx, "MATCH ("+match+") DETACH DELETE n", params)
	if err != nil {
		return fmt.Errorf("graph delete: %w: %v", ErrUnavailable, err)
	}
	return nil
}

func (g *GraphIndex) CountByTenant(ctx context.Context, key tenant.Key) (int64, error) {
	stats, err := g.Stats(ctx, key)
	if err != nil {
		return 0, err
	}
	return stats.Total, nil
}

// Stats splits the tenant's node count into chunk and entity nodes.
func (g *GraphIndex) Stats(ctx context.Context, key tenant.Key) (GraphStats, error) {
	sess, err := g.session(ctx)
	if err != nil {
		return GraphStats{}, err
	}
	defer sess.Close(ctx)

	match, params := tenantPattern("n", key)
	res, err := sess.Run(ctx,
		"MATCH ("+match+") RETURN count(n) AS total, "+
			"count(CASE WHEN 'Chunk' IN labels(n) THEN 1 END) AS chunks, "+
			"count(CASE WHEN 'Entity' IN labels(n) THEN 1 END) AS entities",
		params)
	if err != nil {
		return GraphStats{}, fmt.Errorf("graph stats: %w: %v", ErrUnavailable, err)
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return GraphStats{}, fmt.Errorf("graph stats: %w: %v", ErrUnavailable, err)
	}
	total, _ := rec.Get("total")
	chunks, _ := rec.Get("chunks")
	entities, _ := rec.Get("entities")
	stats := GraphStats{}
	stats.Total, _ = total.(int64)
	stats.Chunks, _ = chunks.(int64)
	stats.Entities, _ = entities.(int64)
	return stats, nil
}

// DistinctValues enumerates distinct stored values for one allowlisted
// metadata key. With a non-empty project the scan is restricted to it.
func (g *GraphIndex) DistinctValues(ctx context.Context, metaKey string, key tenant.Key) ([]string, error) {
	if err := tenant.ValidateKeys(tenant.Metadata{metaKey: ""}); err != nil {
		return nil, err
	}
	sess, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close(ctx)

	var cypher string
	params := map[string]any{"key": metaKey}
	if key.ProjectID == "" {
		cypher = "MATCH (n) WHERE n[$key] IS NOT NULL RETURN DISTINCT n[$key] AS value"
	} else {
		cypher = "MATCH (n {project_id: $project_id}) WHERE n[$key] IS NOT NULL RETURN DISTINCT n[$key] AS value"
		params["project_id"] = key.ProjectID
	}
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("graph distinct %q: %w: %v", metaKey, ErrUnavailable, err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph distinct %q: %w: %v", metaKey, ErrUnavailable, err)
	}

	var out []string
	for _, rec := range records {
		v, _ := rec.Get("value")
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (g *GraphIndex) extractAsync(doc Document) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.ExtractTimeout)
	defer cancel()
	if err := g.extract(ctx, doc); err != nil {
		log.Printf("[graph] entity extraction failed for %s (hash %.8s): %v",
			doc.Tenant, doc.ContentHash, err)
	}
}

// tenantPattern renders a node pattern with exact-match tenant properties.
// An empty scope matches all scopes of the project.
func tenantPattern(node string, key tenant.Key) (string, map[string]any) {
	if key.Scope == "" {
		return node + " {project_id: $project_id}",
			map[string]any{"project_id": key.ProjectID}
	}
	return node + " {project_id: $project_id, tenant_scope: $tenant_scope}",
		map[string]any{"project_id": key.ProjectID, "tenant_scope": key.Scope}
}

func queryTerms(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(fields))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
