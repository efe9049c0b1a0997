// Package registry answers cross-backend administrative questions: which
// tenants exist, how much each one stores, and tenant-wide deletion. Both
// backends are consulted; one being unreachable degrades the answer instead
// of failing it, and the response says so.
package registry

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

type Registry struct {
	graph  index.Index
	vector index.Index
}

func New(graph, vector index.Index) *Registry {
	return &Registry{graph: graph, vector: vector}
}

// Listing is a deduplicated union of values across backends. Partial is set
// when one backend could not contribute.
type Listing struct {
	Values  []string
	Partial bool
}

// ProjectIDs lists every project id stored in either backend.
func (r *Registry) ProjectIDs(ctx context.Context) (Listing, error) {
	return r.distinct(ctx, tenant.MetaProjectID, tenant.Key{})
}

// Scopes lists the tenant scopes stored under projectID. An empty projectID
// lists scopes across all projects.
func (r *Registry) Scopes(ctx context.Context, projectID string) (Listing, error) {
	return r.distinct(ctx, tenant.MetaTenantScope, tenant.Key{ProjectID: projectID})
}

func (r *Registry) distinct(ctx context.Context, metaKey string, key tenant.Key) (Listing, error) {
	seen := map[string]struct{}{}
	var listing Listing
	var firstErr error
	reached := 0

	for _, idx := range []index.Index{r.graph, r.vector} {
		values, err := idx.DistinctValues(ctx, metaKey, key)
		if err != nil {
			log.Printf("[registry] %s listing %s failed: %v", idx.Name(), metaKey, err)
			listing.Partial = true
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", idx.Name(), err)
			}
			continue
		}
		reached++
		for _, v := range values {
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				listing.Values = append(listing.Values, v)
			}
		}
	}
	if reached == 0 {
		return Listing{}, fmt.Errorf("list %s: no backend reachable: %w", metaKey, firstErr)
	}
	sort.Strings(listing.Values)
	return listing, nil
}

// Stats is the per-tenant storage breakdown. Counts from an unreachable
// backend stay zero and Partial is set.
type Stats struct {
	GraphTotal    int64
	GraphChunks   int64
	GraphEntities int64
	VectorDocs    int64
	Total         int64
	Partial       bool
}

// graphStatser is the optional finer breakdown the graph adapter offers on
// top of the plain Index contract.
type graphStatser interface {
	Stats(ctx context.Context, key tenant.Key) (index.GraphStats, error)
}

// Stats reports storage counts for the tenant. Scope may be empty to cover
// the whole project.
func (r *Registry) Stats(ctx context.Context, key tenant.Key) (Stats, error) {
	if err := key.ValidateProject(); err != nil {
		return Stats{}, err
	}

	var out Stats
	reached := 0
	var firstErr error

	if gs, ok := r.graph.(graphStatser); ok {
		stats, err := gs.Stats(ctx, key)
		if err != nil {
			log.Printf("[registry] graph stats for %s failed: %v", key, err)
			out.Partial = true
			firstErr = fmt.Errorf("graph: %w", err)
		} else {
			reached++
			out.GraphTotal = stats.Total
			out.GraphChunks = stats.Chunks
			out.GraphEntities = stats.Entities
		}
	} else {
		total, err := r.graph.CountByTenant(ctx, key)
		if err != nil {
			log.Printf("[registry] graph count for %s failed: %v", key, err)
			out.Partial = true
			firstErr = fmt.Errorf("graph: %w", err)
		} else {
			reached++
			out.GraphTotal = total
			out.GraphChunks = total
		}
	}

	docs, err := r.vector.CountByTenant(ctx, key)
	if err != nil {
		log.Printf("[registry] vector count for %s failed: %v", key, err)
		out.Partial = true
		if firstErr == nil {
			firstErr = fmt.Errorf("vector: %w", err)
		}
	} else {
		reached++
		out.VectorDocs = docs
	}

	if reached == 0 {
		return Stats{}, fmt.Errorf("tenant stats: no backend reachable: %w", firstErr)
	}
	out.Total = out.GraphTotal + out.VectorDocs
	return out, nil
}

// DeleteReport is one backend's verbatim deletion outcome. Outcomes are
// never collapsed into a single verdict: a half-deleted tenant must be
// visible as exactly that.
type DeleteReport struct {
	Backend string `json:"backend"`
	Status  string `json:"status"` // "deleted" or "error"
	Error   string `json:"error,omitempty"`
}

// DeleteTenant removes the tenant's data from both backends and reports each
// backend separately. Scope may be empty to delete the whole project. The
// returned error covers key validation only; backend failures live in the
// reports.
func (r *Registry) DeleteTenant(ctx context.Context, key tenant.Key) ([]DeleteReport, error) {
	if err := key.ValidateProject(); err != nil {
		return nil, err
	}

	reports := make([]DeleteReport, 0, 2)
	for _, idx := range []index.Index{r.graph, r.vector} {
		rep := DeleteReport{Backend: idx.Name(), Status: "deleted"}
		if err := idx.DeleteByTenant(ctx, key); err != nil {
			log.Printf("[registry] %s delete for %s failed: %v", idx.Name(), key, err)
			rep.Status = "error"
			rep.Error = err.Error()
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
