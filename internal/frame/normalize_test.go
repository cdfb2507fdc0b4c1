package frame

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestNormalize_RejectsNonEntries(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"invalid json", `{"ports":`},
		{"scalar", `42`},
		{"array root", `[1,2,3]`},
		{"null root", `null`},
		{"missing ports", `{"region":"R1"}`},
		{"ports is object", `{"ports":{"0":{}}}`},
		{"ports is string", `{"ports":"none"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if entry, ok := Normalize([]byte(tc.raw)); ok || entry != nil {
				t.Errorf("Normalize(%q) accepted, want rejection", tc.raw)
			}
		})
	}
}

func TestNormalize_DisplayCountGrowsToPorts(t *testing.T) {
	raw := `{"displayCount":5,"ports":[{},{},{},{},{},{},{},{}]}`
	entry, ok := Normalize([]byte(raw))
	if !ok {
		t.Fatal("normalize rejected valid entry")
	}
	if entry.DisplayCount != 8 {
		t.Errorf("DisplayCount = %d, want 8", entry.DisplayCount)
	}
	if len(entry.Ports) != 8 {
		t.Errorf("ports = %d, want 8", len(entry.Ports))
	}
}

func TestNormalize_ReassignsIDsAndLabels(t *testing.T) {
	raw := `{"ports":[{"id":7,"label":"weird"},{"id":7,"label":""},{}]}`
	entry, ok := Normalize([]byte(raw))
	if !ok {
		t.Fatal("normalize rejected valid entry")
	}
	for i, port := range entry.Ports {
		if port.ID != i+1 {
			t.Errorf("port %d id = %d, want %d", i, port.ID, i+1)
		}
		want := fmt.Sprintf("PORT-%03d", i+1)
		if port.Label != want {
			t.Errorf("port %d label = %q, want %q", i, port.Label, want)
		}
	}
}

func TestNormalize_DerivesSchemaFromFirstMapShapedPort(t *testing.T) {
	raw := `{"ports":[
		{"customFields":["loose"]},
		{"customFields":{"Distance":"10km","Splice":"S-4"}},
		{"customFields":["3km","S-9"]}
	]}`
	entry, ok := Normalize([]byte(raw))
	if !ok {
		t.Fatal("normalize rejected valid entry")
	}
	if len(entry.ExtraFieldDefs) != 2 || entry.ExtraFieldDefs[0] != "Distance" || entry.ExtraFieldDefs[1] != "Splice" {
		t.Fatalf("ExtraFieldDefs = %v, want [Distance Splice]", entry.ExtraFieldDefs)
	}
	// Array-shaped ports resolve positionally against the derived schema.
	if got, _ := entry.Ports[0].CustomFields.Get("Distance"); got != "loose" {
		t.Errorf("port 1 Distance = %q, want %q", got, "loose")
	}
	if got, _ := entry.Ports[2].CustomFields.Get("Splice"); got != "S-9" {
		t.Errorf("port 3 Splice = %q, want %q", got, "S-9")
	}
}

func TestNormalize_ExplicitDefsWinOverDerivation(t *testing.T) {
	raw := `{"extraFieldDefs":["Color"],"ports":[{"customFields":{"Distance":"10km"}}]}`
	entry, ok := Normalize([]byte(raw))
	if !ok {
		t.Fatal("normalize rejected valid entry")
	}
	if len(entry.ExtraFieldDefs) != 1 || entry.ExtraFieldDefs[0] != "Color" {
		t.Fatalf("ExtraFieldDefs = %v, want [Color]", entry.ExtraFieldDefs)
	}
	if got, ok := entry.Ports[0].CustomFields.Get("Color"); !ok || got != "" {
		t.Errorf("Color = (%q, %v), want empty present value", got, ok)
	}
}

func TestNormalize_RawDefsAlignPositionsButOutputIsClean(t *testing.T) {
	// Empty and duplicate labels keep their slots for positional alignment
	// even though they never become keys.
	raw := `{"extraFieldDefs":["","Distance"],"ports":[{"customFields":["skip","10km"]}]}`
	entry, ok := Normalize([]byte(raw))
	if !ok {
		t.Fatal("normalize rejected valid entry")
	}
	if len(entry.ExtraFieldDefs) != 1 || entry.ExtraFieldDefs[0] != "Distance" {
		t.Fatalf("ExtraFieldDefs = %v, want [Distance]", entry.ExtraFieldDefs)
	}
	if got, _ := entry.Ports[0].CustomFields.Get("Distance"); got != "10km" {
		t.Errorf("Distance = %q, want %q", got, "10km")
	}
}

func TestNormalize_TextAndDateCleanup(t *testing.T) {
	raw := `{"ports":[{
		"status":" ACTIVE ",
		"destination":null,
		"notes":"null",
		"lastMaintained":"2024-03-05T10:30:00Z",
		"fiberType":"not-a-date"
	}]}`
	entry, ok := Normalize([]byte(raw))
	if !ok {
		t.Fatal("normalize rejected valid entry")
	}
	port := entry.Ports[0]
	if port.Status != "ACTIVE" {
		t.Errorf("status = %q, want trimmed ACTIVE", port.Status)
	}
	if port.Destination != "" {
		t.Errorf("destination = %q, want empty for null", port.Destination)
	}
	if port.Notes != "" {
		t.Errorf("notes = %q, want empty for literal null", port.Notes)
	}
	if port.LastMaintained != "2024-03-05" {
		t.Errorf("lastMaintained = %q, want 2024-03-05", port.LastMaintained)
	}
	if port.FiberType != "not-a-date" {
		t.Errorf("fiberType = %q, want carried through", port.FiberType)
	}
}

func TestNormalize_CarriesUnknownTopLevelKeys(t *testing.T) {
	raw := `{"ports":[],"siteCode":"CMB-07","audit":{"by":"nimal"}}`
	entry, ok := Normalize([]byte(raw))
	if !ok {
		t.Fatal("normalize rejected valid entry")
	}
	if string(entry.Extra["siteCode"]) != `"CMB-07"` {
		t.Errorf("siteCode = %s, want carried raw", entry.Extra["siteCode"])
	}
	if string(entry.Extra["audit"]) != `{"by":"nimal"}` {
		t.Errorf("audit = %s, want carried raw", entry.Extra["audit"])
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	round, ok := Normalize(encoded)
	if !ok {
		t.Fatal("round-trip rejected")
	}
	if string(round.Extra["siteCode"]) != `"CMB-07"` {
		t.Errorf("round-trip siteCode = %s", round.Extra["siteCode"])
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := `{"region":"R1","sub":"HUB-2","displayCount":1,"extraFieldDefs":["Distance"],"ports":[
		{"status":"faulty ","lastMaintained":"2023/06/10","customFields":["10km"]},
		{"customFields":{"Distance":"2km"}}
	],"legacyFlag":true}`

	first, ok := Normalize([]byte(raw))
	if !ok {
		t.Fatal("first normalize rejected valid entry")
	}
	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, ok := Normalize(encoded)
	if !ok {
		t.Fatal("second normalize rejected canonical entry")
	}
	reencoded, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if string(encoded) != string(reencoded) {
		t.Errorf("normalize not idempotent:\nfirst:  %s\nsecond: %s", encoded, reencoded)
	}
	if NeedsPersist(encoded, second) {
		t.Error("canonical entry flagged as needing persistence")
	}
}

func TestNeedsPersist(t *testing.T) {
	canonical, ok := Normalize([]byte(`{"displayCount":2,"ports":[{"id":1,"label":"PORT-001"},{"id":2,"label":"PORT-002"}]}`))
	if !ok {
		t.Fatal("normalize rejected valid entry")
	}

	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"unchanged", `{"displayCount":2,"ports":[{"id":1,"label":"PORT-001"},{"id":2,"label":"PORT-002"}]}`, false},
		{"count drift", `{"displayCount":1,"ports":[{"id":1,"label":"PORT-001"},{"id":2,"label":"PORT-002"}]}`, true},
		{"id drift", `{"displayCount":2,"ports":[{"id":9,"label":"PORT-001"},{"id":2,"label":"PORT-002"}]}`, true},
		{"label drift", `{"displayCount":2,"ports":[{"id":1,"label":"p1"},{"id":2,"label":"PORT-002"}]}`, true},
		{"invalid original", `not json`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsPersist([]byte(tc.raw), canonical); got != tc.want {
				t.Errorf("NeedsPersist = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDefaultEntry(t *testing.T) {
	entry := DefaultEntry("R1", "HUB-9")

	if entry.Region != "R1" || entry.Sub != "HUB-9" {
		t.Errorf("identity = %s/%s, want R1/HUB-9", entry.Region, entry.Sub)
	}
	if entry.DisplayCount != DefaultPortCount {
		t.Errorf("DisplayCount = %d, want %d", entry.DisplayCount, DefaultPortCount)
	}
	if len(entry.Ports) != DefaultPortCount {
		t.Fatalf("ports = %d, want %d", len(entry.Ports), DefaultPortCount)
	}
	for i, port := range entry.Ports {
		if port.ID != i+1 {
			t.Fatalf("port %d id = %d", i, port.ID)
		}
		if port.Status != StatusInactive {
			t.Fatalf("port %d status = %q, want INACTIVE", i, port.Status)
		}
		if port.LastMaintained == "" {
			t.Fatalf("port %d lastMaintained empty", i)
		}
	}
	if entry.Ports[0].Label != "PORT-001" || entry.Ports[95].Label != "PORT-096" {
		t.Errorf("labels = %q..%q", entry.Ports[0].Label, entry.Ports[95].Label)
	}
	if entry.LastSave == "" {
		t.Error("LastSave empty")
	}
}
