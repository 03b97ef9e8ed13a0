// internal/books/filter.go
package books

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Filter narrows a listing. A nil field means the stage is not applied;
// stages compose by intersection.
type Filter struct {
	Name     *string
	Reading  *bool
	Finished *bool
}

// ParseFilter reads the name, reading and finished query parameters.
// reading and finished select on a numeric value of 0 or 1; a blank value
// counts as 0 and any other value disables that stage.
func ParseFilter(q url.Values) Filter {
	var f Filter
	if q.Has("name") {
		name := q.Get("name")
		f.Name = &name
	}
	f.Reading = parseFlag(q, "reading")
	f.Finished = parseFlag(q, "finished")
	return f
}

func parseFlag(q url.Values, key string) *bool {
	if !q.Has(key) {
		return nil
	}
	raw := strings.TrimSpace(q.Get(key))
	n := 0.0
	if raw != "" {
		var err error
		if n, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil
		}
	}
	switch n {
	case 0:
		v := false
		return &v
	case 1:
		v := true
		return &v
	default:
		return nil
	}
}

// Values encodes the filter back into query parameters.
func (f Filter) Values() url.Values {
	q := url.Values{}
	if f.Name != nil {
		q.Set("name", *f.Name)
	}
	if f.Reading != nil {
		q.Set("reading", flagValue(*f.Reading))
	}
	if f.Finished != nil {
		q.Set("finished", flagValue(*f.Finished))
	}
	return q
}

func flagValue(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// matcher evaluates a Filter against books. It owns a collator, which is not
// safe for concurrent use, so build one per listing.
type matcher struct {
	filter   Filter
	collator *collate.Collator
}

func newMatcher(f Filter) *matcher {
	m := &matcher{filter: f}
	if f.Name != nil {
		m.collator = collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	}
	return m
}

func (m *matcher) match(b Book) bool {
	if m.filter.Name != nil && !m.nameMatches(b.Name) {
		return false
	}
	if m.filter.Reading != nil && b.Reading != *m.filter.Reading {
		return false
	}
	if m.filter.Finished != nil && b.Finished != *m.filter.Finished {
		return false
	}
	return true
}

// nameMatches reports whether any whitespace-separated token of name equals
// the query, ignoring case and diacritics. Substrings do not match.
func (m *matcher) nameMatches(name string) bool {
	query := *m.filter.Name
	for _, token := range strings.Fields(name) {
		if m.collator.CompareString(token, query) == 0 {
			return true
		}
	}
	return false
}
