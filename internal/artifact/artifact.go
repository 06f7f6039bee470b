// Package artifact implements the content-addressed, immutable blob store
// (C1) that backs every tool, resource, and dashboard body in the registry.
package artifact

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
)

// Kind is the shape of an artifact body.
type Kind string

const (
	KindScript Kind = "script"
	KindSelect Kind = "select"
	KindUI     Kind = "ui"
)

// ErrNotFound is returned by Get when no artifact has the given digest.
var ErrNotFound = errors.New("artifact: not found")

// ErrCorrupt is returned when a stored body's recomputed digest no longer
// matches its key — indicates storage-layer corruption or tampering.
var ErrCorrupt = errors.New("artifact: digest mismatch")

// Artifact is an immutable textual blob referenced by its strong digest.
type Artifact struct {
	Digest string
	Body   string
	Kind   Kind
}

// Digest returns the content address of body: lowercase hex SHA-256.
func Digest(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Store is a content-addressed, append-only artifact table.
type Store struct {
	db    *sql.DB
	table string
}

// NewStore wraps db, using the given table name (post schema-prefix/override
// resolution — see internal/registry.NameMapper).
func NewStore(db *sql.DB, table string) *Store {
	return &Store{db: db, table: table}
}

// EnsureSchema creates the artifacts table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			digest TEXT PRIMARY KEY,
			body   TEXT NOT NULL,
			kind   TEXT NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("artifact: ensuring schema: %w", err)
	}
	return nil
}

// Put computes the digest of body and inserts it if absent. Idempotent:
// calling Put twice with the same body and kind returns the same digest and
// leaves the store unchanged (P7).
func (s *Store) Put(ctx context.Context, body string, kind Kind) (string, error) {
	digest := Digest(body)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (digest, body, kind) VALUES (?, ?, ?)
		 ON CONFLICT (digest) DO NOTHING`, s.table),
		digest, body, string(kind))
	if err != nil {
		return "", fmt.Errorf("artifact: put: %w", err)
	}
	return digest, nil
}

// Exists reports whether digest is present, without fetching or verifying
// its body. Used by internal/registry to enforce the "referenced digest
// exists" invariant (§4.2) without paying for a full integrity check.
func (s *Store) Exists(ctx context.Context, digest string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT 1 FROM %s WHERE digest = ?`, s.table), digest).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("artifact: checking existence: %w", err)
	}
	return true, nil
}

// Get returns the body and kind stored under digest, verifying integrity by
// recomputing the digest of the loaded body (P1).
func (s *Store) Get(ctx context.Context, digest string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT body, kind FROM %s WHERE digest = ?`, s.table), digest)

	var body, kind string
	if err := row.Scan(&body, &kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("artifact: get: %w", err)
	}

	if Digest(body) != digest {
		return nil, ErrCorrupt
	}

	return &Artifact{Digest: digest, Body: body, Kind: Kind(kind)}, nil
}
