package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dinukastorehub-cmd/ODF-data/internal/cache"
	"github.com/dinukastorehub-cmd/ODF-data/internal/config"
	"github.com/dinukastorehub-cmd/ODF-data/internal/frame"
	"github.com/dinukastorehub-cmd/ODF-data/internal/search"
	"github.com/dinukastorehub-cmd/ODF-data/internal/store"
)

type dataStore interface {
	GetEntry(context.Context, string, string) (json.RawMessage, error)
	PutEntry(context.Context, string, string, *frame.Entry) error
	DeleteEntry(context.Context, string, string) (bool, error)
	ListEntries(context.Context) ([]store.StoredEntry, error)
	ListRegions(context.Context) ([]string, error)
	ListSubregions(context.Context, string) ([]string, error)
	ReplaceRoster(context.Context, string, []string, []string, []*frame.Entry) (int, error)
	Ping(ctx context.Context) error
}

type entryCache interface {
	Get(ctx context.Context, region, sub string) ([]byte, bool)
	Set(ctx context.Context, region, sub string, payload []byte) error
	Invalidate(ctx context.Context, region, sub string) error
}

// RosterResult reports what a roster reconciliation changed.
type RosterResult struct {
	Added        []string `json:"added"`
	Removed      []string `json:"removed"`
	CreatedCount int      `json:"createdCount"`
	Subregions   []string `json:"subregions"`
}

type Service struct {
	cfg   config.Config
	store dataStore
	cache entryCache
}

func New(cfg config.Config, dataStore store.Store) *Service {
	return &Service{cfg: cfg, store: dataStore}
}

func NewWithCache(cfg config.Config, dataStore store.Store, entryCache *cache.EntryCache) *Service {
	return &Service{cfg: cfg, store: dataStore, cache: entryCache}
}

func (s *Service) MaxBodyBytes() int64 {
	if s.cfg.MaxBodyBytes > 0 {
		return s.cfg.MaxBodyBytes
	}
	return 1 << 20
}

// GetEntry loads and re-normalizes a stored entry. When normalization
// produced a material change (schema drift repaired on read), the canonical
// form is written back opportunistically; a failed write-back is logged and
// the read still succeeds.
func (s *Service) GetEntry(ctx context.Context, region, sub string) (*frame.Entry, error) {
	region, sub, err := entryKey(region, sub)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, ok := s.cache.Get(ctx, region, sub); ok {
			if entry, valid := frame.Normalize(payload); valid {
				entry.Region, entry.Sub = region, sub
				return entry, nil
			}
		}
	}

	raw, err := s.store.GetEntry(ctx, region, sub)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError("no entry for this region and subregion")
	}
	if err != nil {
		return nil, fmt.Errorf("load entry: %w", err)
	}

	entry, valid := frame.Normalize(raw)
	if !valid {
		return nil, domainError(500, "ENTRY_CORRUPT", "stored entry is malformed", nil)
	}
	entry.Region, entry.Sub = region, sub

	if frame.NeedsPersist(raw, entry) {
		if err := s.store.PutEntry(ctx, region, sub, entry); err != nil {
			log.Printf("write-back of normalized entry %s/%s failed: %v", region, sub, err)
		}
	}

	s.cacheEntry(ctx, entry)
	return entry, nil
}

// SaveEntry normalizes a submitted raw entry and fully replaces the stored
// one. There is no partial patch path and no concurrency control: the last
// writer wins.
func (s *Service) SaveEntry(ctx context.Context, region, sub string, raw []byte) (*frame.Entry, error) {
	region, sub, err := entryKey(region, sub)
	if err != nil {
		return nil, err
	}

	entry, valid := frame.Normalize(raw)
	if !valid {
		return nil, validationError("entry payload must be an object with a ports array")
	}
	entry.Region, entry.Sub = region, sub
	entry.LastSave = time.Now().UTC().Format(time.RFC3339)

	if err := s.store.PutEntry(ctx, region, sub, entry); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}
	s.cacheEntry(ctx, entry)
	return entry, nil
}

func (s *Service) DeleteEntry(ctx context.Context, region, sub string) error {
	region, sub, err := entryKey(region, sub)
	if err != nil {
		return err
	}

	existed, err := s.store.DeleteEntry(ctx, region, sub)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if !existed {
		return notFoundError("no entry for this region and subregion")
	}
	s.invalidateEntry(ctx, region, sub)
	return nil
}

func (s *Service) ListRegions(ctx context.Context) ([]string, error) {
	regions, err := s.store.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return regions, nil
}

func (s *Service) ListSubregions(ctx context.Context, region string) ([]string, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, validationError("region is required")
	}
	subs, err := s.store.ListSubregions(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("list subregions: %w", err)
	}
	return subs, nil
}

// ReconcileRoster replaces a region's subregion roster and drives the frame
// entry lifecycle: removed subs lose their entries (ports cascade, no
// confirmation), added subs gain a default entry unless one already exists.
// Against a transactional store the whole reconciliation is all-or-nothing.
func (s *Service) ReconcileRoster(ctx context.Context, region string, desired []string) (RosterResult, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return RosterResult{}, validationError("region is required")
	}

	subs := normalizeSubs(desired)

	current, err := s.store.ListSubregions(ctx, region)
	if err != nil {
		return RosterResult{}, fmt.Errorf("load roster: %w", err)
	}

	added, removed := diffSubs(subs, current)

	defaults := make([]*frame.Entry, len(added))
	for i, sub := range added {
		defaults[i] = frame.DefaultEntry(region, sub)
	}

	created, err := s.store.ReplaceRoster(ctx, region, subs, removed, defaults)
	if err != nil {
		return RosterResult{}, fmt.Errorf("reconcile roster: %w", err)
	}

	for _, sub := range removed {
		s.invalidateEntry(ctx, region, sub)
	}
	for _, sub := range added {
		s.invalidateEntry(ctx, region, sub)
	}

	return RosterResult{
		Added:        added,
		Removed:      removed,
		CreatedCount: created,
		Subregions:   subs,
	}, nil
}

// Search runs an unindexed keyword scan over every stored entry. Entries
// whose payloads no longer normalize are skipped rather than failing the
// whole query.
func (s *Service) Search(ctx context.Context, keyword string, limit int) (search.Response, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return search.Response{}, validationError("keyword is required")
	}

	stored, err := s.store.ListEntries(ctx)
	if err != nil {
		return search.Response{}, fmt.Errorf("load entries: %w", err)
	}

	indexed := make([]search.Indexed, 0, len(stored))
	for _, item := range stored {
		entry, valid := frame.Normalize(item.Raw)
		if !valid {
			continue
		}
		entry.Region, entry.Sub = item.Region, item.Sub
		indexed = append(indexed, search.Indexed{Region: item.Region, Sub: item.Sub, Entry: entry})
	}

	results := search.Find(indexed, keyword, limit)
	return search.Response{Results: results, Total: len(results), Keyword: keyword}, nil
}

// Ping verifies the storage collaborator is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) cacheEntry(ctx context.Context, entry *frame.Entry) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, entry.Region, entry.Sub, payload); err != nil {
		log.Printf("cache entry %s/%s failed: %v", entry.Region, entry.Sub, err)
	}
}

func (s *Service) invalidateEntry(ctx context.Context, region, sub string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, region, sub); err != nil {
		log.Printf("invalidate entry %s/%s failed: %v", region, sub, err)
	}
}

func entryKey(region, sub string) (string, string, error) {
	region = strings.TrimSpace(region)
	sub = strings.TrimSpace(sub)
	if region == "" || sub == "" {
		return "", "", validationError("region and sub are required")
	}
	return region, sub, nil
}

// normalizeSubs trims, drops empties and de-duplicates while preserving
// first-seen order, which is the order the roster is persisted in.
func normalizeSubs(desired []string) []string {
	subs := []string{}
	seen := make(map[string]struct{}, len(desired))
	for _, sub := range desired {
		trimmed := strings.TrimSpace(sub)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		subs = append(subs, trimmed)
	}
	return subs
}

func diffSubs(desired, current []string) (added, removed []string) {
	desiredSet := make(map[string]struct{}, len(desired))
	for _, sub := range desired {
		desiredSet[sub] = struct{}{}
	}
	currentSet := make(map[string]struct{}, len(current))
	for _, sub := range current {
		currentSet[sub] = struct{}{}
	}

	added = []string{}
	for _, sub := range desired {
		if _, ok := currentSet[sub]; !ok {
			added = append(added, sub)
		}
	}
	removed = []string{}
	for _, sub := range current {
		if _, ok := desiredSet[sub]; !ok {
			removed = append(removed, sub)
		}
	}
	return added, removed
}
