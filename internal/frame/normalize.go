package frame

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// entryKeys are the fixed top-level keys owned by normalization; everything
// else on a raw entry is carried through untouched.
var entryKeys = map[string]struct{}{
	"region":         {},
	"sub":            {},
	"ports":          {},
	"displayCount":   {},
	"extraFieldDefs": {},
	"lastSave":       {},
}

// dateLayouts are the timestamp shapes accepted for date-valued port fields.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// Normalize converts a raw entry of any historical shape into the canonical
// form. It reports ok=false when the input is absent, not a JSON object, or
// its ports field is not a sequence; malformed field data never fails, it
// degrades to defaults. Normalization is idempotent.
func Normalize(raw []byte) (*Entry, bool) {
	if len(bytes.TrimSpace(raw)) == 0 || !gjson.ValidBytes(raw) {
		return nil, false
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, false
	}
	rawPorts := root.Get("ports")
	if !rawPorts.IsArray() {
		return nil, false
	}
	items := rawPorts.Array()

	// A submitted count below the actual port sequence length is ignored:
	// the count only ever grows to match real data, never shrinks it.
	desired := len(items)
	if submitted := int(root.Get("displayCount").Int()); submitted > desired {
		desired = submitted
	}
	if len(items) > desired {
		items = items[:desired]
	}

	defs := deriveFieldDefs(root, items)

	ports := make([]Port, len(items))
	for i, item := range items {
		ports[i] = Port{
			ID:                i + 1,
			Label:             PortLabel(i + 1),
			Status:            cleanText(item.Get("status")),
			FiberType:         cleanText(item.Get("fiberType")),
			ConnectorType:     cleanText(item.Get("connectorType")),
			Destination:       cleanText(item.Get("destination")),
			OTDRDistance:      cleanText(item.Get("otdrDistance")),
			OTDRDistanceValue: cleanText(item.Get("otdrDistanceValue")),
			LastMaintained:    cleanDate(item.Get("lastMaintained")),
			BranchingJoint:    cleanText(item.Get("branchingJoint")),
			CxLocation:        cleanText(item.Get("cxLocation")),
			Notes:             cleanText(item.Get("notes")),
			CustomFields:      ResolveCustomFields(item, defs),
		}
	}

	entry := &Entry{
		Region:         root.Get("region").String(),
		Sub:            root.Get("sub").String(),
		DisplayCount:   len(ports),
		Ports:          ports,
		ExtraFieldDefs: cleanLabels(defs),
		LastSave:       root.Get("lastSave").String(),
	}
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if _, fixed := entryKeys[name]; !fixed {
			if entry.Extra == nil {
				entry.Extra = make(map[string]json.RawMessage)
			}
			entry.Extra[name] = json.RawMessage(value.Raw)
		}
		return true
	})
	return entry, true
}

// NeedsPersist reports whether a read-path normalization produced a material
// change that is worth writing back: the entry did not exist before, or its
// displayCount, port count, or any port's (id, label) pair differ.
func NeedsPersist(raw []byte, normalized *Entry) bool {
	if normalized == nil {
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 || !gjson.ValidBytes(raw) {
		return true
	}
	original := gjson.ParseBytes(raw)
	if !original.IsObject() {
		return true
	}
	if int(original.Get("displayCount").Int()) != normalized.DisplayCount {
		return true
	}
	originalPorts := original.Get("ports").Array()
	if len(originalPorts) != len(normalized.Ports) {
		return true
	}
	for i, port := range normalized.Ports {
		if int(originalPorts[i].Get("id").Int()) != port.ID {
			return true
		}
		if originalPorts[i].Get("label").String() != port.Label {
			return true
		}
	}
	return false
}

// deriveFieldDefs picks the field schema for an entry: an explicit non-empty
// definitions list wins; otherwise the keys of the first port carrying a
// map-shaped customFields container; otherwise no schema.
func deriveFieldDefs(root gjson.Result, items []gjson.Result) []string {
	explicit := root.Get("extraFieldDefs")
	if explicit.IsArray() {
		if listed := explicit.Array(); len(listed) > 0 {
			defs := make([]string, len(listed))
			for i, label := range listed {
				defs[i] = label.String()
			}
			return defs
		}
	}
	for _, item := range items {
		container := item.Get("customFields")
		if !container.IsObject() {
			continue
		}
		var defs []string
		container.ForEach(func(key, _ gjson.Result) bool {
			defs = append(defs, key.String())
			return true
		})
		return defs
	}
	return nil
}

// cleanLabels trims, drops empties and de-duplicates a label list, matching
// the key set ResolveCustomFields produces for it.
func cleanLabels(defs []string) []string {
	cleaned := []string{}
	seen := make(map[string]struct{}, len(defs))
	for _, label := range defs {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}

// cleanText resolves a raw scalar to trimmed text; JSON null, empty and the
// literal string "null" all become the empty string.
func cleanText(value gjson.Result) string {
	if !value.Exists() || value.Type == gjson.Null {
		return ""
	}
	text := strings.TrimSpace(value.String())
	if strings.EqualFold(text, "null") {
		return ""
	}
	return text
}

// cleanDate normalizes a date-valued field to a bare calendar date when the
// value parses as one of the known timestamp shapes, and leaves it as-is
// otherwise.
func cleanDate(value gjson.Result) string {
	text := cleanText(value)
	if text == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return text
}
