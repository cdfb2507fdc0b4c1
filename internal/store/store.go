// Package store provides the persistence backends for frame entries and
// subregion rosters: a plain JSON file, a seeded atomic-write JSON file, and
// a relational store over postgres or sqlite.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dinukastorehub-cmd/ODF-data/internal/frame"
)

// ErrNotFound is returned when a (region, sub) key has no entry.
var ErrNotFound = errors.New("not found")

// StoredEntry is a raw persisted entry together with its key. The payload may
// predate the current schema; callers normalize before use.
type StoredEntry struct {
	Region string
	Sub    string
	Raw    json.RawMessage
}

// Store is the storage contract the core depends on. Writes are full
// replacements, never patches. ReplaceRoster applies the membership
// replacement, cascade deletes and default-entry creations as one atomic
// unit when the backend supports transactions, and reports how many default
// entries were actually created (existing entries are never clobbered).
type Store interface {
	GetEntry(ctx context.Context, region, sub string) (json.RawMessage, error)
	PutEntry(ctx context.Context, region, sub string, entry *frame.Entry) error
	DeleteEntry(ctx context.Context, region, sub string) (bool, error)
	ListEntries(ctx context.Context) ([]StoredEntry, error)
	ListRegions(ctx context.Context) ([]string, error)
	ListSubregions(ctx context.Context, region string) ([]string, error)
	ReplaceRoster(ctx context.Context, region string, subs, removed []string, created []*frame.Entry) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
