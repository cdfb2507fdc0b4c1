// Package search implements unindexed keyword search over canonical frame
// entries. It is a linear scan by design; no index is maintained.
package search

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/dinukastorehub-cmd/ODF-data/internal/frame"
)

// DefaultLimit caps the number of matches returned by a single query.
const DefaultLimit = 100

// previewLimit is the maximum matched-preview length in characters.
const previewLimit = 160

// Indexed is one searchable entry together with its storage identity.
type Indexed struct {
	Region string
	Sub    string
	Entry  *frame.Entry
}

// Match is a single addressable search hit.
type Match struct {
	Region         string `json:"region"`
	Sub            string `json:"sub"`
	StorageKey     string `json:"storageKey"`
	LocatorPath    string `json:"locatorPath"`
	MatchedPreview string `json:"matchedPreview"`
	Link           string `json:"link"`
	ExactLink      string `json:"exactLink"`
	PortNumber     *int   `json:"portNumber"`
	FieldPath      string `json:"fieldPath"`
	Keyword        string `json:"keyword"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Match `json:"results"`
	Total   int     `json:"total"`
	Keyword string  `json:"keyword"`
}

// Find scans entries for a case-insensitive substring match against keyword
// and returns up to limit addressable matches. Per entry the storage metadata
// is tested first, then the entry's value graph is walked recursively; the
// scan stops issuing matches the instant the cap is reached.
func Find(entries []Indexed, keyword string, limit int) []Match {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return []Match{}
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}

	s := &scanner{needle: needle, keyword: strings.TrimSpace(keyword), limit: limit, results: []Match{}}
	for _, entry := range entries {
		if !s.scanEntry(entry) {
			break
		}
	}
	return s.results
}

type pathToken struct {
	name    string
	index   int
	isIndex bool
}

type scanner struct {
	needle  string
	keyword string
	limit   int
	results []Match
}

func (s *scanner) scanEntry(entry Indexed) bool {
	storageKey := entry.Region + "/" + entry.Sub

	meta := storageKey + " " + entry.Region + " " + entry.Sub
	if strings.Contains(strings.ToLower(meta), s.needle) {
		if !s.add(Match{
			Region:         entry.Region,
			Sub:            entry.Sub,
			StorageKey:     storageKey,
			MatchedPreview: clipPreview(meta),
			Link:           deepLink(entry.Region, entry.Sub, nil),
			ExactLink:      deepLink(entry.Region, entry.Sub, nil),
			Keyword:        s.keyword,
		}) {
			return false
		}
	}

	encoded, err := json.Marshal(entry.Entry)
	if err != nil {
		return true
	}
	return s.walk(entry, storageKey, gjson.ParseBytes(encoded), nil)
}

func (s *scanner) walk(entry Indexed, storageKey string, value gjson.Result, path []pathToken) bool {
	if value.IsArray() || value.IsObject() {
		isArray := value.IsArray()
		index := 0
		proceed := true
		value.ForEach(func(key, child gjson.Result) bool {
			var token pathToken
			if isArray {
				token = pathToken{index: index, isIndex: true}
				index++
			} else {
				token = pathToken{name: key.String()}
			}
			proceed = s.walk(entry, storageKey, child, append(path, token))
			return proceed
		})
		return proceed
	}

	text := value.String()
	if !strings.Contains(strings.ToLower(text), s.needle) {
		return true
	}

	portNumber, fieldPath := portLocation(path)
	return s.add(Match{
		Region:         entry.Region,
		Sub:            entry.Sub,
		StorageKey:     storageKey,
		LocatorPath:    renderPath(storageKey, path),
		MatchedPreview: clipPreview(text),
		Link:           deepLink(entry.Region, entry.Sub, nil),
		ExactLink:      deepLink(entry.Region, entry.Sub, portNumber),
		PortNumber:     portNumber,
		FieldPath:      fieldPath,
		Keyword:        s.keyword,
	})
}

// add appends a match and reports whether the scan may continue.
func (s *scanner) add(match Match) bool {
	s.results = append(s.results, match)
	return len(s.results) < s.limit
}

// portLocation extracts the 1-based port number and the sub-path after the
// port index from a token path that passes through a ports collection.
func portLocation(path []pathToken) (*int, string) {
	for i := 0; i+1 < len(path); i++ {
		if !path[i].isIndex && path[i].name == "ports" && path[i+1].isIndex {
			number := path[i+1].index + 1
			return &number, renderFieldPath(path[i+2:])
		}
	}
	return nil, ""
}

func renderPath(storageKey string, path []pathToken) string {
	var b strings.Builder
	b.WriteString(storageKey)
	for _, token := range path {
		if token.isIndex {
			b.WriteString("[" + strconv.Itoa(token.index) + "]")
		} else {
			b.WriteString("." + token.name)
		}
	}
	return b.String()
}

func renderFieldPath(path []pathToken) string {
	parts := make([]string, 0, len(path))
	for _, token := range path {
		if token.isIndex {
			parts = append(parts, strconv.Itoa(token.index))
		} else {
			parts = append(parts, token.name)
		}
	}
	return strings.Join(parts, ".")
}

// deepLink builds the path-plus-query locator consumed by the UI: region and
// sub always, 1-based port only when the match sits inside one.
func deepLink(region, sub string, portNumber *int) string {
	query := url.Values{}
	query.Set("region", region)
	query.Set("sub", sub)
	if portNumber != nil {
		query.Set("port", strconv.Itoa(*portNumber))
	}
	return "/panel?" + query.Encode()
}

func clipPreview(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(collapsed) <= previewLimit {
		return collapsed
	}
	clipped := string([]rune(collapsed)[:previewLimit])
	return strings.TrimRight(clipped, " ") + "…"
}
