// Package frame holds the canonical record model for distribution-frame
// inventories and the normalization logic that converts schema-drifted
// input into it.
package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Port status values.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
	StatusFaulty   = "FAULTY"
)

// DefaultPortCount is the port capacity of a roster-created frame entry.
const DefaultPortCount = 96

// Port is one connector slot on a frame. Field names are a wire contract
// with existing clients and must not change.
type Port struct {
	ID                int    `json:"id"`
	Label             string `json:"label"`
	Status            string `json:"status"`
	FiberType         string `json:"fiberType"`
	ConnectorType     string `json:"connectorType"`
	Destination       string `json:"destination"`
	OTDRDistance      string `json:"otdrDistance"`
	OTDRDistanceValue string `json:"otdrDistanceValue"`
	LastMaintained    string `json:"lastMaintained"`
	BranchingJoint    string `json:"branchingJoint"`
	CxLocation        string `json:"cxLocation"`
	Notes             string `json:"notes"`
	CustomFields      Fields `json:"customFields"`
}

// Entry is the canonical record for one frame at a (region, sub) location.
// Unknown top-level fields from raw input are carried through in Extra;
// the fixed keys always win on serialization.
type Entry struct {
	Region         string
	Sub            string
	DisplayCount   int
	Ports          []Port
	ExtraFieldDefs []string
	LastSave       string
	Extra          map[string]json.RawMessage
}

func (e *Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extra)+6)
	for key, value := range e.Extra {
		out[key] = value
	}
	ports := e.Ports
	if ports == nil {
		ports = []Port{}
	}
	defs := e.ExtraFieldDefs
	if defs == nil {
		defs = []string{}
	}
	fixed := map[string]any{
		"region":         e.Region,
		"sub":            e.Sub,
		"displayCount":   e.DisplayCount,
		"ports":          ports,
		"extraFieldDefs": defs,
		"lastSave":       e.LastSave,
	}
	for key, value := range fixed {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal entry field %s: %w", key, err)
		}
		out[key] = encoded
	}
	return json.Marshal(out)
}

// PortLabel derives the deterministic label for a 1-based port id.
func PortLabel(id int) string {
	return fmt.Sprintf("PORT-%03d", id)
}

// DefaultEntry builds the frame entry created when a subregion joins the
// roster: a full complement of inactive ports with no custom schema.
func DefaultEntry(region, sub string) *Entry {
	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	ports := make([]Port, DefaultPortCount)
	for i := range ports {
		ports[i] = Port{
			ID:             i + 1,
			Label:          PortLabel(i + 1),
			Status:         StatusInactive,
			LastMaintained: today,
			CustomFields:   Fields{},
		}
	}
	return &Entry{
		Region:         region,
		Sub:            sub,
		DisplayCount:   DefaultPortCount,
		Ports:          ports,
		ExtraFieldDefs: []string{},
		LastSave:       now.Format(time.RFC3339),
	}
}

// Field is one label/value pair of a port's custom fields.
type Field struct {
	Label string
	Value string
}

// Fields is an ordered label→string mapping. It serializes as a JSON
// object, never an array, and keeps insertion order so the serialized
// keys follow the field schema.
type Fields []Field

// Get returns the value for label and whether the label is present.
func (f Fields) Get(label string) (string, bool) {
	for _, field := range f {
		if field.Label == label {
			return field.Value, true
		}
	}
	return "", false
}

// Labels returns the labels in order.
func (f Fields) Labels() []string {
	labels := make([]string, len(f))
	for i, field := range f {
		labels[i] = field.Label
	}
	return labels
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		label, err := json.Marshal(field.Label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(label)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		if parsed.Type == gjson.Null {
			*f = nil
			return nil
		}
		return fmt.Errorf("custom fields must be an object")
	}
	fields := Fields{}
	parsed.ForEach(func(key, value gjson.Result) bool {
		fields = append(fields, Field{Label: key.String(), Value: value.String()})
		return true
	})
	*f = fields
	return nil
}
