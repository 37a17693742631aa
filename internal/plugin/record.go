// Package plugin defines the plugin record carried through the fetch, cache,
// favorites and publish stages, and the identifier used to track it.
package plugin

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// Well-known record keys. Everything else is pass-through metadata.
const (
	KeyName        = "Name"
	KeyURL         = "URL"
	KeyHash        = "Hash"
	KeyFavorite    = "is_favorite"
	KeyAuthor      = "Author"
	KeyDescription = "Description"
	KeyIconURL     = "IconUrl"
	KeyVersion     = "AssemblyVersion"
	KeyAPILevel    = "DalamudApiLevel"
	KeyTestingAPI  = "TestingDalamudApiLevel"
)

// DerivedKeys are the keys added by the pipeline rather than the feed
var DerivedKeys = []string{KeyURL, KeyHash, KeyFavorite}

// Record is one plugin entry as served by a feed, plus derived fields
type Record map[string]any

// Identify returns the stable identifier for a (feed URL, name) pair
func Identify(url, name string) string {
	sum := md5.Sum([]byte(url + name))
	return hex.EncodeToString(sum[:])
}

func (r Record) str(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// Name returns the display name, or "" if missing
func (r Record) Name() string { return r.str(KeyName) }

// URL returns the feed URL the record came from
func (r Record) URL() string { return r.str(KeyURL) }

// Hash returns the record identifier
func (r Record) Hash() string { return r.str(KeyHash) }

func (r Record) Author() string { return r.str(KeyAuthor) }

func (r Record) Description() string { return r.str(KeyDescription) }

func (r Record) IconURL() string { return r.str(KeyIconURL) }

// Version returns the assembly version when the feed provides one
func (r Record) Version() string { return r.str(KeyVersion) }

// IsFavorite reports the is_favorite flag
func (r Record) IsFavorite() bool {
	b, _ := r[KeyFavorite].(bool)
	return b
}

// SetFavorite sets the is_favorite flag
func (r Record) SetFavorite(v bool) {
	r[KeyFavorite] = v
}

// HasName reports whether the record carries a string Name
func (r Record) HasName() bool {
	_, ok := r[KeyName].(string)
	return ok
}

// EnsureHash fills Hash from URL+Name when absent and returns it.
// Returns "" when the record lacks either field.
func (r Record) EnsureHash() string {
	if h := r.Hash(); h != "" {
		return h
	}
	if _, ok := r[KeyURL].(string); !ok || !r.HasName() {
		return ""
	}
	h := Identify(r.URL(), r.Name())
	r[KeyHash] = h
	return h
}

// APILevel derives the effective API level. A lower testing level wins;
// records declaring neither level report 0.
func (r Record) APILevel() int {
	level, _ := toInt(r[KeyAPILevel])
	if testing, ok := toInt(r[KeyTestingAPI]); ok && testing < level {
		level = testing
	}
	return level
}

// Clone returns a shallow copy
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Without returns a copy without the given keys
func (r Record) Without(keys ...string) Record {
	c := r.Clone()
	for _, k := range keys {
		delete(c, k)
	}
	return c
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
