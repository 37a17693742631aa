package plugin

import (
	"strings"

	"golang.org/x/text/cases"
)

// Matcher filters records by a case-folded substring of their name
type Matcher struct {
	query  string
	folder cases.Caser
}

// NewMatcher creates a matcher for query. An empty query matches everything.
func NewMatcher(query string) *Matcher {
	folder := cases.Fold()
	return &Matcher{
		query:  folder.String(strings.TrimSpace(query)),
		folder: folder,
	}
}

// Match reports whether the record's name contains the query
func (m *Matcher) Match(r Record) bool {
	return m.MatchString(r.Name())
}

// MatchString reports whether s contains the query
func (m *Matcher) MatchString(s string) bool {
	if m.query == "" {
		return true
	}
	return strings.Contains(m.folder.String(s), m.query)
}

// Filter returns the matching records in their original order
func (m *Matcher) Filter(records []Record) []Record {
	if m.query == "" {
		return records
	}
	var out []Record
	for _, r := range records {
		if m.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
