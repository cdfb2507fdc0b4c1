package frame

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ResolveCustomFields reconciles a raw port's custom-field values against an
// ordered definition list. Three historical encodings of the customFields
// container are supported, in priority order per label:
//
//  1. map-shaped container keyed by label
//  2. flat value sequence, aligned by the label's position in defs
//  3. sequence of {value} records, aligned the same way
//
// Labels are trimmed; labels that are empty after trimming contribute no key,
// and duplicate labels collapse onto their first occurrence.
func ResolveCustomFields(port gjson.Result, defs []string) Fields {
	container := port.Get("customFields")
	var items []gjson.Result
	if container.IsArray() {
		items = container.Array()
	}

	resolved := Fields{}
	seen := make(map[string]struct{}, len(defs))
	for position, label := range defs {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}

		value := ""
		if mapped, ok := objectValue(container, trimmed); ok {
			value = mapped.String()
		} else if position < len(items) && !items[position].IsObject() {
			value = items[position].String()
		} else if position < len(items) {
			value = items[position].Get("value").String()
		}
		resolved = append(resolved, Field{Label: trimmed, Value: value})
	}
	return resolved
}

// objectValue looks up an exact key in a map-shaped result without going
// through gjson path syntax, so labels containing path metacharacters
// resolve correctly.
func objectValue(container gjson.Result, key string) (gjson.Result, bool) {
	if !container.IsObject() {
		return gjson.Result{}, false
	}
	var found gjson.Result
	ok := false
	container.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
			ok = true
			return false
		}
		return true
	})
	return found, ok
}
