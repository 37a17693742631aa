// Package cache keeps the most recent fetch result on disk together with
// its fetch time, stored as cache_plugin_time in the settings file.
package cache

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samhoang/myrepo/internal/config"
	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/plugin"
)

// MaxAge is the freshness window of a cached fetch
const MaxAge = 24 * time.Hour

// Store is the fetch cache
type Store struct {
	path     string
	settings *config.Settings
	now      func() time.Time
}

// NewStore creates a cache store writing records to path and the
// timestamp to settings
func NewStore(path string, settings *config.Settings) *Store {
	return &Store{
		path:     path,
		settings: settings,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Path returns the cache file path
func (s *Store) Path() string {
	return s.path
}

// Status describes the stored cache
type Status struct {
	FetchedAt time.Time
	Age       time.Duration
	Valid     bool // timestamp parsed
	Exists    bool // cache file present
}

// Fresh reports whether a load with maxAge would hit
func (st Status) Fresh(maxAge time.Duration) bool {
	return st.Valid && st.Exists && st.Age < maxAge
}

// Status inspects the cache without reading records
func (s *Store) Status() Status {
	var st Status
	if ts, err := config.ParseTime(s.settings.CachePluginTime); err == nil {
		st.FetchedAt = ts
		st.Age = s.now().Sub(ts)
		st.Valid = true
	}
	if _, err := os.Stat(s.path); err == nil {
		st.Exists = true
	}
	return st
}

// Load returns the cached records when the stored timestamp parses and is
// younger than maxAge. Any other condition is a miss, never an error.
func (s *Store) Load(maxAge time.Duration) ([]plugin.Record, bool) {
	logger := log.WithField("cache", s.path)

	ts, err := config.ParseTime(s.settings.CachePluginTime)
	if err != nil {
		logger.WithField("cache_plugin_time", s.settings.CachePluginTime).Debug("Cache timestamp unusable")
		return nil, false
	}
	if age := s.now().Sub(ts); age >= maxAge {
		logger.WithField("age", age.Round(time.Second)).Debug("Cache expired")
		return nil, false
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithError(err).Warn("Cannot read cache")
		}
		return nil, false
	}

	records, err := decodeRecords(data)
	if err != nil {
		logger.WithError(err).Warn("Cache is corrupt")
		return nil, false
	}

	for _, r := range records {
		r.EnsureHash()
	}
	return records, true
}

// Save overwrites the cache with records and stamps the current time
func (s *Store) Save(records []plugin.Record) error {
	if records == nil {
		records = []plugin.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return myerrors.NewPathError(s.path, "encode cache", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return myerrors.NewPathError(s.path, "write cache", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return myerrors.NewPathError(s.path, "write cache", err)
	}

	s.settings.CachePluginTime = config.FormatTime(s.now())
	return s.settings.Save()
}

// Invalidate deletes the cache so the next load misses
func (s *Store) Invalidate() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return myerrors.NewPathError(s.path, "remove cache", err)
	}

	if s.settings.CachePluginTime == "" {
		return nil
	}
	s.settings.CachePluginTime = ""
	return s.settings.Save()
}

func decodeRecords(data []byte) ([]plugin.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []plugin.Record
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}
