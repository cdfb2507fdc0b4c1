package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dinukastorehub-cmd/ODF-data/internal/frame"
)

// fileDocument is the on-disk shape shared by both file backends: one JSON
// document holding every entry and every roster.
type fileDocument struct {
	Entries map[string]map[string]json.RawMessage `json:"entries"`
	Rosters map[string][]string                   `json:"rosters"`
}

func newFileDocument() *fileDocument {
	return &fileDocument{
		Entries: make(map[string]map[string]json.RawMessage),
		Rosters: make(map[string][]string),
	}
}

// FileStore persists the whole document with read-modify-write under a
// process-local mutex. Concurrent writers in separate processes race on the
// same file; last write wins.
type FileStore struct {
	path     string
	seedPath string
	atomic   bool

	mu sync.Mutex
}

// NewFileStore opens the original plain-write file backend.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewSeedFileStore opens the file backend that bootstraps from a seed file
// when the data file does not exist yet, and persists atomically via a
// temp-file rename.
func NewSeedFileStore(path, seedPath string) *FileStore {
	return &FileStore{path: path, seedPath: seedPath, atomic: true}
}

func (s *FileStore) load() (*fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) && s.seedPath != "" {
		data, err = os.ReadFile(s.seedPath)
	}
	if errors.Is(err, os.ErrNotExist) {
		return newFileDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	doc := newFileDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]map[string]json.RawMessage)
	}
	if doc.Rosters == nil {
		doc.Rosters = make(map[string][]string)
	}
	return doc, nil
}

func (s *FileStore) save(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	if !s.atomic {
		if err := os.WriteFile(s.path, data, 0o644); err != nil {
			return fmt.Errorf("write data file: %w", err)
		}
		return nil
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

func (s *FileStore) GetEntry(_ context.Context, region, sub string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	raw, ok := doc.Entries[region][sub]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (s *FileStore) PutEntry(_ context.Context, region, sub string, entry *frame.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if doc.Entries[region] == nil {
		doc.Entries[region] = make(map[string]json.RawMessage)
	}
	doc.Entries[region][sub] = raw
	return s.save(doc)
}

func (s *FileStore) DeleteEntry(_ context.Context, region, sub string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := doc.Entries[region][sub]; !ok {
		return false, nil
	}
	delete(doc.Entries[region], sub)
	if len(doc.Entries[region]) == 0 {
		delete(doc.Entries, region)
	}
	if err := s.save(doc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) ListEntries(_ context.Context) ([]StoredEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	entries := make([]StoredEntry, 0)
	for _, region := range sortedKeys(doc.Entries) {
		subs := doc.Entries[region]
		subNames := make([]string, 0, len(subs))
		for sub := range subs {
			subNames = append(subNames, sub)
		}
		sort.Strings(subNames)
		for _, sub := range subNames {
			entries = append(entries, StoredEntry{Region: region, Sub: sub, Raw: subs[sub]})
		}
	}
	return entries, nil
}

func (s *FileStore) ListRegions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for region := range doc.Entries {
		seen[region] = struct{}{}
	}
	for region := range doc.Rosters {
		seen[region] = struct{}{}
	}
	regions := make([]string, 0, len(seen))
	for region := range seen {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions, nil
}

func (s *FileStore) ListSubregions(_ context.Context, region string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	subs := doc.Rosters[region]
	if subs == nil {
		return []string{}, nil
	}
	listed := make([]string, len(subs))
	copy(listed, subs)
	return listed, nil
}

func (s *FileStore) ReplaceRoster(_ context.Context, region string, subs, removed []string, created []*frame.Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return 0, err
	}

	membership := make([]string, len(subs))
	copy(membership, subs)
	doc.Rosters[region] = membership

	for _, sub := range removed {
		delete(doc.Entries[region], sub)
	}
	if len(doc.Entries[region]) == 0 {
		delete(doc.Entries, region)
	}

	createdCount := 0
	for _, entry := range created {
		if _, exists := doc.Entries[entry.Region][entry.Sub]; exists {
			continue
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return 0, fmt.Errorf("encode default entry: %w", err)
		}
		if doc.Entries[entry.Region] == nil {
			doc.Entries[entry.Region] = make(map[string]json.RawMessage)
		}
		doc.Entries[entry.Region][entry.Sub] = raw
		createdCount++
	}

	if err := s.save(doc); err != nil {
		return 0, err
	}
	return createdCount, nil
}

func (s *FileStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.load()
	return err
}

func (s *FileStore) Close() error { return nil }

func sortedKeys(m map[string]map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
