// Package dedup decides whether a piece of content needs to be written, by
// probing the target backend for its tenant-scoped fingerprint.
package dedup

import (
	"context"
	"log"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// Decision is the explicit probe outcome. ProbeFailed distinguishes "backend
// said not found" from "backend could not answer"; callers branching on
// Proceed alone still get the fail-open behavior.
type Decision struct {
	Proceed     bool
	Hash        string
	ProbeFailed bool
}

// ShouldIngest fingerprints the text and probes idx for it. A successful
// probe that finds the hash yields Proceed=false. A failed probe yields
// Proceed=true with ProbeFailed set: when a backend is degraded the system
// prefers risking a duplicate (which the upsert-by-hash write absorbs) over
// silently losing data. The only error returned is a fingerprint failure;
// probe failures are logged, never surfaced.
func ShouldIngest(ctx context.Context, idx index.Index, key tenant.Key, text string) (Decision, error) {
	hash, err := tenant.Fingerprint(key, text)
	if err != nil {
		return Decision{}, err
	}

	exists, err := idx.ExistsByHash(ctx, key, hash)
	if err != nil {
		log.Printf("[dedup] %s probe failed for %s (hash %.8s), failing open: %v",
			idx.Name(), key, hash, err)
		return Decision{Proceed: true, Hash: hash, ProbeFailed: true}, nil
	}
	return Decision{Proceed: !exists, Hash: hash}, nil
}
