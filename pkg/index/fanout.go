package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// Fanout presents several backends as one Index. Writes go to every backend;
// a document counts as stored only once all of them have it, so a retry
// after a partial write converges through the per-backend upserts.
type Fanout struct {
	indexes []Index
}

func NewFanout(indexes ...Index) *Fanout {
	return &Fanout{indexes: indexes}
}

func (f *Fanout) Name() string { return "fanout" }

// Insert writes to every backend and reports all failures together. Backends
// that succeeded keep the document; the hash-keyed upsert makes the retry
// safe for them.
func (f *Fanout) Insert(ctx context.Context, doc Document) error {
	var errs []error
	for _, idx := range f.indexes {
		if err := idx.Insert(ctx, doc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", idx.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ExistsByHash reports a duplicate only when every backend holds the hash.
// A document missing from one backend is re-ingested everywhere, which the
// upserts absorb, rather than left half-stored.
func (f *Fanout) ExistsByHash(ctx context.Context, key tenant.Key, hash string) (bool, error) {
	for _, idx := range f.indexes {
		ok, err := idx.ExistsByHash(ctx, key, hash)
		if err != nil {
			return false, fmt.Errorf("%s: %w", idx.Name(), err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Query asks the backends in order and returns the first answer. Later
// backends only serve when every earlier one is unreachable.
func (f *Fanout) Query(ctx context.Context, text string, key tenant.Key, limit int) ([]Candidate, error) {
	var firstErr error
	for _, idx := range f.indexes {
		out, err := idx.Query(ctx, text, key, limit)
		if err == nil {
			return out, nil
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", idx.Name(), err)
		}
	}
	if firstErr == nil {
		return nil, nil
	}
	return nil, firstErr
}

func (f *Fanout) DeleteByTenant(ctx context.Context, key tenant.Key) error {
	var errs []error
	for _, idx := range f.indexes {
		if err := idx.DeleteByTenant(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", idx.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CountByTenant reports the largest per-backend count rather than a sum; the
// same document lives in every backend, so summing would double count.
func (f *Fanout) CountByTenant(ctx context.Context, key tenant.Key) (int64, error) {
	var max int64
	reached := false
	var firstErr error
	for _, idx := range f.indexes {
		n, err := idx.CountByTenant(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", idx.Name(), err)
			}
			continue
		}
		reached = true
		if n > max {
			max = n
		}
	}
	if !reached {
		return 0, firstErr
	}
	return max, nil
}

func (f *Fanout) DistinctValues(ctx context.Context, metaKey string, key tenant.Key) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	var firstErr error
	reached := false
	for _, idx := range f.indexes {
		values, err := idx.DistinctValues(ctx, metaKey, key)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", idx.Name(), err)
			}
			continue
		}
		reached = true
		for _, v := range values {
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	if !reached {
		return nil, firstErr
	}
	return out, nil
}
