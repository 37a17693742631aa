package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"

	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/plugin"
)

// LedgerVersion is the current ledger format version
const LedgerVersion = 1

// Entry records one published plugin
type Entry struct {
	Name     string    `toml:"name"`
	URL      string    `toml:"url"`
	Checksum string    `toml:"checksum"`
	Updated  time.Time `toml:"updated"`
}

// Ledger remembers what the last publish wrote, keyed by identifier
type Ledger struct {
	Version   int              `toml:"version"`
	Published map[string]Entry `toml:"published"`

	path string
}

// NewLedger creates an empty ledger
func NewLedger(path string) *Ledger {
	return &Ledger{
		Version:   LedgerVersion,
		Published: make(map[string]Entry),
		path:      path,
	}
}

// LoadLedger reads the ledger. Missing or corrupt files yield an empty one.
func LoadLedger(path string) *Ledger {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithField("ledger", path).WithError(err).Warn("Cannot read publish ledger")
		}
		return NewLedger(path)
	}

	l := NewLedger(path)
	if err := toml.Unmarshal(data, l); err != nil {
		log.WithField("ledger", path).WithError(err).Warn("Publish ledger is corrupt, starting empty")
		return NewLedger(path)
	}
	if l.Published == nil {
		l.Published = make(map[string]Entry)
	}
	return l
}

// Save writes the ledger to disk
func (l *Ledger) Save() error {
	data, err := toml.Marshal(l)
	if err != nil {
		return myerrors.NewPathError(l.path, "encode ledger", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return myerrors.NewPathError(l.path, "write ledger", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return myerrors.NewPathError(l.path, "write ledger", err)
	}
	return nil
}

// Diff compares records about to be published with the ledger and returns
// the names of new or changed records and of previously published ones that
// are no longer included.
func (l *Ledger) Diff(records []plugin.Record) (changed, dropped []string) {
	current := make(map[string]struct{}, len(records))
	for _, r := range records {
		hash := r.Hash()
		current[hash] = struct{}{}
		prev, ok := l.Published[hash]
		if !ok || prev.Checksum != Checksum(r) {
			changed = append(changed, r.Name())
		}
	}

	for hash, e := range l.Published {
		if _, ok := current[hash]; !ok {
			dropped = append(dropped, e.Name)
		}
	}
	sort.Strings(dropped)
	return changed, dropped
}

// Replace resets the ledger to exactly the given records
func (l *Ledger) Replace(records []plugin.Record, now time.Time) {
	next := make(map[string]Entry, len(records))
	for _, r := range records {
		hash := r.Hash()
		sum := Checksum(r)
		updated := now
		if prev, ok := l.Published[hash]; ok && prev.Checksum == sum {
			updated = prev.Updated
		}
		next[hash] = Entry{
			Name:     r.Name(),
			URL:      r.URL(),
			Checksum: sum,
			Updated:  updated,
		}
	}
	l.Published = next
	l.Version = LedgerVersion
}

// Checksum fingerprints a record's feed metadata, ignoring is_favorite
func Checksum(r plugin.Record) string {
	// map keys marshal in sorted order, so equal content hashes equally
	data, err := json.Marshal(r.Without(plugin.KeyFavorite))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
