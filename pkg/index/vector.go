package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// VectorConfig configures the Qdrant-backed vector adapter.
type VectorConfig struct {
	Host       string
	Port       int
	Collection string
	VectorSize int
}

// VectorIndex embeds documents through the Embedder capability and stores
// them as points whose IDs derive deterministically from the content hash,
// so re-writing the same hash upserts the existing point.
type VectorIndex struct {
	cfg      VectorConfig
	embedder Embedder

	ensureOnce sync.Once
	ensureErr  error
}

func NewVectorIndex(cfg VectorConfig, embedder Embedder) *VectorIndex {
	if cfg.Collection == "" {
		cfg.Collection = "nexus_rag"
	}
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = 768
	}
	return &VectorIndex{cfg: cfg, embedder: embedder}
}

func (v *VectorIndex) Name() string { return "vector" }

func (v *VectorIndex) client() (*qdrant.Client, error) {
	c, err := cachedVectorClient(v.cfg.Host, v.cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c, nil
}

// ensureCollection creates the collection on first use. Guarded by Once so
// concurrent first inserts race neither the check nor the creation.
func (v *VectorIndex) ensureCollection(ctx context.Context, c *qdrant.Client) error {
	v.ensureOnce.Do(func() {
		exists, err := c.CollectionExists(ctx, v.cfg.Collection)
		if err != nil {
			v.ensureErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		if exists {
			return
		}
		err = c.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: v.cfg.Collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(v.cfg.VectorSize),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			v.ensureErr = fmt.Errorf("create collection: %w: %v", ErrUnavailable, err)
		}
	})
	return v.ensureErr
}

// pointID maps a content hash onto a stable UUID. Same hash, same point:
// this is what turns a duplicate write into an upsert at the backend.
func pointID(contentHash string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(contentHash)).String()
}

func (v *VectorIndex) Insert(ctx context.Context, doc Document) error {
	meta, err := tenant.BuildMetadata(doc.Tenant, doc.Source, doc.ContentHash, doc.FilePath)
	if err != nil {
		return err
	}
	vec, err := v.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	c, err := v.client()
	if err != nil {
		return err
	}
	if err := v.ensureCollection(ctx, c); err != nil {
		return err
	}

	payload := map[string]any{"text": doc.Text}
	for k, val := range meta {
		payload[k] = val
	}
	_, err = c.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: v.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID(doc.ContentHash)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return fmt.Errorf("vector insert: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// ExistsByHash scrolls for at most one matching point with payload and
// vectors disabled, so only the existence signal crosses the wire.
func (v *VectorIndex) ExistsByHash(ctx context.Context, key tenant.Key, hash string) (bool, error) {
	c, err := v.client()
	if err != nil {
		return false, err
	}
	filter := tenantFilter(key)
	filter.Must = append(filter.Must, qdrant.NewMatch(tenant.MetaContentHash, hash))

	points, err := c.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: v.cfg.Collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return false, fmt.Errorf("vector exists probe: %w: %v", ErrUnavailable, err)
	}
	return len(points) > 0, nil
}

func (v *VectorIndex) Query(ctx context.Context, text string, key tenant.Key, limit int) ([]Candidate, error) {
	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	c, err := v.client()
	if err != nil {
		return nil, err
	}

	points, err := c.Query(ctx, &qdrant.QueryPoints{
		CollectionName: v.cfg.Collection,
		Query:          qdrant.NewQuery(vec...),
		Filter:         tenantFilter(key),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayloadInclude("text"),
	})
	if err != nil {
		return nil, fmt.Errorf("vector query: %w: %v", ErrUnavailable, err)
	}

	out := make([]Candidate, 0, len(points))
	for _, p := range points {
		text := ""
		if val, ok := p.Payload["text"]; ok {
			text = val.GetStringValue()
		}
		out = append(out, Candidate{Text: text, Score: float64(p.Score)})
	}
	return out, nil
}

func (v *VectorIndex) DeleteByTenant(ctx context.Context, key tenant.Key) error {
	c, err := v.client()
	if err != nil {
		return err
	}
	_, err = c.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: v.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(tenantFilter(key)),
	})
	if err != nil {
		return fmt.Errorf("vector delete: %w: %v", ErrUnavailable, err)
	}
	return nil
}

func (v *VectorIndex) CountByTenant(ctx context.Context, key tenant.Key) (int64, error) {
	c, err := v.client()
	if err != nil {
		return 0, err
	}
	n, err := c.Count(ctx, &qdrant.CountPoints{
		CollectionName: v.cfg.Collection,
		Filter:         tenantFilter(key),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("vector count: %w: %v", ErrUnavailable, err)
	}
	return int64(n), nil
}

// DistinctValues pages through the collection collecting distinct payload
// values for one allowlisted key. Uses the raw points client because the
// convenience Scroll wrapper does not expose the continuation offset.
func (v *VectorIndex) DistinctValues(ctx context.Context, metaKey string, key tenant.Key) ([]string, error) {
	if err := tenant.ValidateKeys(tenant.Metadata{metaKey: ""}); err != nil {
		return nil, err
	}
	c, err := v.client()
	if err != nil {
		return nil, err
	}

	var filter *qdrant.Filter
	if key.ProjectID != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(tenant.MetaProjectID, key.ProjectID)},
		}
	}

	seen := map[string]struct{}{}
	var out []string
	var offset *qdrant.PointId
	for {
		resp, err := c.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: v.cfg.Collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(1000)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude(metaKey),
		})
		if err != nil {
			return nil, fmt.Errorf("vector distinct %q: %w: %v", metaKey, ErrUnavailable, err)
		}
		for _, p := range resp.GetResult() {
			if val, ok := p.Payload[metaKey]; ok {
				s := val.GetStringValue()
				if s == "" {
					continue
				}
				if _, dup := seen[s]; !dup {
					seen[s] = struct{}{}
					out = append(out, s)
				}
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	return out, nil
}

// tenantFilter builds the exact-match payload filter for a key. Empty scope
// filters by project only (aggregate reads and project-wide deletes).
func tenantFilter(key tenant.Key) *qdrant.Filter {
	must := []*qdrant.Condition{qdrant.NewMatch(tenant.MetaProjectID, key.ProjectID)}
	if key.Scope != "" {
		must = append(must, qdrant.NewMatch(tenant.MetaTenantScope, key.Scope))
	}
	return &qdrant.Filter{Must: must}
}
