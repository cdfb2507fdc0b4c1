package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dinukastorehub-cmd/ODF-data/internal/frame"
)

func TestFileStore_EntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "data.json"))

	if _, err := fs.GetEntry(ctx, "R1", "S1"); err != ErrNotFound {
		t.Fatalf("GetEntry before put = %v, want ErrNotFound", err)
	}

	entry := frame.DefaultEntry("R1", "S1")
	if err := fs.PutEntry(ctx, "R1", "S1", entry); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}

	raw, err := fs.GetEntry(ctx, "R1", "S1")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	loaded, ok := frame.Normalize(raw)
	if !ok {
		t.Fatal("stored entry did not normalize")
	}
	if len(loaded.Ports) != frame.DefaultPortCount {
		t.Errorf("loaded ports = %d, want %d", len(loaded.Ports), frame.DefaultPortCount)
	}
}

func TestFileStore_DeleteEntry(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "data.json"))

	if existed, err := fs.DeleteEntry(ctx, "R1", "S1"); err != nil || existed {
		t.Fatalf("delete of absent entry = (%v, %v), want (false, nil)", existed, err)
	}

	if err := fs.PutEntry(ctx, "R1", "S1", frame.DefaultEntry("R1", "S1")); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if existed, err := fs.DeleteEntry(ctx, "R1", "S1"); err != nil || !existed {
		t.Fatalf("delete = (%v, %v), want (true, nil)", existed, err)
	}
	if _, err := fs.GetEntry(ctx, "R1", "S1"); err != ErrNotFound {
		t.Fatalf("GetEntry after delete = %v, want ErrNotFound", err)
	}
}

func TestFileStore_ListEntriesSorted(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "data.json"))

	for _, key := range [][2]string{{"R2", "B"}, {"R1", "Z"}, {"R1", "A"}} {
		if err := fs.PutEntry(ctx, key[0], key[1], frame.DefaultEntry(key[0], key[1])); err != nil {
			t.Fatalf("PutEntry %v: %v", key, err)
		}
	}

	entries, err := fs.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	keys := make([][2]string, len(entries))
	for i, entry := range entries {
		keys[i] = [2]string{entry.Region, entry.Sub}
	}
	want := [][2]string{{"R1", "A"}, {"R1", "Z"}, {"R2", "B"}}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestFileStore_ReplaceRoster(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "data.json"))

	if err := fs.PutEntry(ctx, "R1", "OLD", frame.DefaultEntry("R1", "OLD")); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if err := fs.PutEntry(ctx, "R1", "KEEP", frame.DefaultEntry("R1", "KEEP")); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}

	created, err := fs.ReplaceRoster(ctx, "R1",
		[]string{"KEEP", "NEW"},
		[]string{"OLD"},
		[]*frame.Entry{frame.DefaultEntry("R1", "NEW")},
	)
	if err != nil {
		t.Fatalf("ReplaceRoster: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}

	subs, err := fs.ListSubregions(ctx, "R1")
	if err != nil {
		t.Fatalf("ListSubregions: %v", err)
	}
	if len(subs) != 2 || subs[0] != "KEEP" || subs[1] != "NEW" {
		t.Errorf("subregions = %v, want [KEEP NEW]", subs)
	}

	if _, err := fs.GetEntry(ctx, "R1", "OLD"); err != ErrNotFound {
		t.Errorf("removed sub still has entry: %v", err)
	}
	if _, err := fs.GetEntry(ctx, "R1", "NEW"); err != nil {
		t.Errorf("added sub has no entry: %v", err)
	}
	if _, err := fs.GetEntry(ctx, "R1", "KEEP"); err != nil {
		t.Errorf("kept sub lost its entry: %v", err)
	}
}

func TestFileStore_ReplaceRosterKeepsExistingEntry(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "data.json"))

	existing := frame.DefaultEntry("R1", "S1")
	existing.Ports[0].Status = frame.StatusActive
	if err := fs.PutEntry(ctx, "R1", "S1", existing); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}

	created, err := fs.ReplaceRoster(ctx, "R1",
		[]string{"S1"},
		nil,
		[]*frame.Entry{frame.DefaultEntry("R1", "S1")},
	)
	if err != nil {
		t.Fatalf("ReplaceRoster: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0 for existing entry", created)
	}

	raw, err := fs.GetEntry(ctx, "R1", "S1")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	loaded, _ := frame.Normalize(raw)
	if loaded.Ports[0].Status != frame.StatusActive {
		t.Errorf("existing entry clobbered: port 1 status = %q", loaded.Ports[0].Status)
	}
}

func TestFileStore_ListRegionsMergesEntriesAndRosters(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "data.json"))

	if err := fs.PutEntry(ctx, "Western", "S1", frame.DefaultEntry("Western", "S1")); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if _, err := fs.ReplaceRoster(ctx, "Southern", []string{"S9"}, nil, nil); err != nil {
		t.Fatalf("ReplaceRoster: %v", err)
	}

	regions, err := fs.ListRegions(ctx)
	if err != nil {
		t.Fatalf("ListRegions: %v", err)
	}
	if len(regions) != 2 || regions[0] != "Southern" || regions[1] != "Western" {
		t.Errorf("regions = %v, want [Southern Western]", regions)
	}
}

func TestSeedFileStore_BootstrapsFromSeed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	dataPath := filepath.Join(dir, "data.json")

	seed := map[string]any{
		"entries": map[string]any{
			"R1": map[string]any{
				"S1": map[string]any{"ports": []any{}, "displayCount": 0},
			},
		},
		"rosters": map[string]any{"R1": []string{"S1"}},
	}
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	if err := os.WriteFile(seedPath, payload, 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	fs := NewSeedFileStore(dataPath, seedPath)
	if _, err := fs.GetEntry(ctx, "R1", "S1"); err != nil {
		t.Fatalf("seeded entry missing: %v", err)
	}

	// A write materializes the data file; the seed is no longer consulted.
	if err := fs.PutEntry(ctx, "R1", "S2", frame.DefaultEntry("R1", "S2")); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if _, err := os.Stat(dataPath); err != nil {
		t.Fatalf("data file not written: %v", err)
	}
	if _, err := os.Stat(dataPath + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}
