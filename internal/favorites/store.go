// Package favorites persists the user's selection as a map from record
// identifier to a boolean, independent of the fetch cache.
package favorites

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/plugin"
)

// Store is the favorites file. Every Set rewrites the whole file.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]bool
	loaded  bool
}

// NewStore creates a store backed by path. Nothing is read until first use.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the favorites file path
func (s *Store) Path() string {
	return s.path
}

// Reload discards the in-memory map and rereads the file
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.ensureLoaded()
}

func (s *Store) ensureLoaded() {
	if s.loaded {
		return
	}
	s.entries = read(s.path)
	s.loaded = true
}

// Get returns the flag for id, false when absent
func (s *Store) Get(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return s.entries[id]
}

// Set stores the flag for id and persists the whole map immediately
func (s *Store) Set(id string, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	prev, existed := s.entries[id]
	s.entries[id] = favorite
	if err := s.write(); err != nil {
		if existed {
			s.entries[id] = prev
		} else {
			delete(s.entries, id)
		}
		return err
	}
	return nil
}

// Favorited returns every identifier whose flag is true, sorted
func (s *Store) Favorited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	ids := make([]string, 0, len(s.entries))
	for id, fav := range s.entries {
		if fav {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of the map
func (s *Store) Snapshot() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	out := make(map[string]bool, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Apply sets is_favorite on every record from the stored map
func (s *Store) Apply(records []plugin.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	for _, r := range records {
		r.SetFavorite(s.entries[r.EnsureHash()])
	}
}

func (s *Store) write() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.entries); err != nil {
		return myerrors.NewPathError(s.path, "encode favorites", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return myerrors.NewPathError(s.path, "write favorites", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return myerrors.NewPathError(s.path, "write favorites", err)
	}
	return nil
}

// read loads the favorites file. Missing or unreadable files are empty.
//
// Besides the {id: bool} form it accepts {id: {record}} (treated as true)
// and a top-level array of records carrying URL and Name, each hashed and
// treated as true. The next write stores the boolean form.
func read(path string) map[string]bool {
	entries := make(map[string]bool)
	logger := log.WithField("favorites", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithError(err).Warn("Cannot read favorites, starting empty")
		}
		return entries
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return entries
	}

	switch data[0] {
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			logger.WithError(err).Warn("Favorites file is corrupt, starting empty")
			return entries
		}
		for id, v := range raw {
			var b bool
			if err := json.Unmarshal(v, &b); err == nil {
				entries[id] = b
				continue
			}
			v = bytes.TrimSpace(v)
			if len(v) > 0 && v[0] == '{' {
				entries[id] = true
			}
		}
	case '[':
		var legacy []struct {
			URL  string `json:"URL"`
			Name string `json:"Name"`
		}
		if err := json.Unmarshal(data, &legacy); err != nil {
			logger.WithError(err).Warn("Favorites file is corrupt, starting empty")
			return entries
		}
		for _, l := range legacy {
			if l.URL == "" || l.Name == "" {
				continue
			}
			entries[plugin.Identify(l.URL, l.Name)] = true
		}
		logger.WithField("count", len(entries)).Info("Migrated list-form favorites")
	default:
		logger.Warn("Favorites file is corrupt, starting empty")
	}

	return entries
}
