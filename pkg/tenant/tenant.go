// Package tenant defines the (project_id, scope) key that isolates every
// stored unit, the content fingerprint derived from it, and the metadata
// property guard that keeps tenant metadata inside a fixed allowlist.
package tenant

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyProjectID is returned when a write-side operation is missing its project.
	ErrEmptyProjectID = errors.New("project_id must not be empty")

	// ErrEmptyScope is returned when a write-side operation is missing its scope.
	// Read-side aggregates may use an empty scope; writes never may.
	ErrEmptyScope = errors.New("scope must not be empty")

	// ErrInvalidEncoding is returned when fingerprint input is not valid UTF-8.
	ErrInvalidEncoding = errors.New("text is not valid UTF-8")
)

// Key identifies a tenant. Every stored unit carries exactly one Key and every
// read/delete is filtered by it. Scope may be empty only for aggregate reads.
type Key struct {
	ProjectID string
	Scope     string
}

// Validate checks the key for write-side use: both fields must be non-blank.
func (k Key) Validate() error {
	if strings.TrimSpace(k.ProjectID) == "" {
		return ErrEmptyProjectID
	}
	if strings.TrimSpace(k.Scope) == "" {
		return ErrEmptyScope
	}
	return nil
}

// ValidateProject checks only the project half, for aggregate reads and
// project-wide deletes where an empty scope means "all scopes".
func (k Key) ValidateProject() error {
	if strings.TrimSpace(k.ProjectID) == "" {
		return ErrEmptyProjectID
	}
	return nil
}

// String renders the key for log lines.
func (k Key) String() string {
	if k.Scope == "" {
		return k.ProjectID
	}
	return k.ProjectID + "/" + k.Scope
}

// Fingerprint returns the SHA-256 hex digest over project_id, scope and text,
// NUL-separated. The separator cannot appear in either tenant field, so
// ("ab","c") and ("a","bc") never collide. Identical text under the same key
// always produces the same digest, which is what makes backend writes
// idempotent: the digest is the storage-level identifier.
func Fingerprint(k Key, text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", ErrInvalidEncoding
	}
	h := sha256.New()
	h.Write([]byte(k.ProjectID))
	h.Write([]byte{0})
	h.Write([]byte(k.Scope))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// metaKeyProject and friends are the only property names a stored unit may
// carry. The set is a fixed contract, not configuration: dynamic keys would
// flow into Cypher MATCH clauses and qdrant payload filters verbatim.
const (
	MetaProjectID   = "project_id"
	MetaTenantScope = "tenant_scope"
	MetaSource      = "source"
	MetaContentHash = "content_hash"
	MetaFilePath    = "file_path"
)

var allowedMetaKeys = map[string]struct{}{
	MetaProjectID:   {},
	MetaTenantScope: {},
	MetaSource:      {},
	MetaContentHash: {},
	MetaFilePath:    {},
}

// ErrDisallowedKey is returned when a metadata property falls outside the allowlist.
var ErrDisallowedKey = errors.New("disallowed metadata key")

// Metadata is the property set persisted alongside a stored unit.
type Metadata map[string]string

// ValidateKeys rejects any property name outside the allowlist. This is the
// sole gate between caller-supplied metadata and the backends' query
// languages; every write must pass through it.
func ValidateKeys(m Metadata) error {
	for key := range m {
		if _, ok := allowedMetaKeys[key]; !ok {
			return fmt.Errorf("%w: %q", ErrDisallowedKey, key)
		}
	}
	return nil
}

// BuildMetadata constructs the property set for one stored unit. source and
// filePath are optional; contentHash must be the recomputed per-unit digest.
func BuildMetadata(k Key, source, contentHash, filePath string) (Metadata, error) {
	m := Metadata{
		MetaProjectID:   k.ProjectID,
		MetaTenantScope: k.Scope,
		MetaContentHash: contentHash,
	}
	if source != "" {
		m[MetaSource] = source
	}
	if filePath != "" {
		m[MetaFilePath] = filePath
	}
	if err := ValidateKeys(m); err != nil {
		return nil, err
	}
	return m, nil
}
