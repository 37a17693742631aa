// Package publish writes the favorited subset of the working list as the
// published manifest and pushes it with git.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/plugin"
)

// State is a step of a publish run
type State int

const (
	Idle State = iota
	Reading
	Matching
	Writing
	Committing
	Pushing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case Matching:
		return "matching"
	case Writing:
		return "writing"
	case Committing:
		return "committing"
	case Pushing:
		return "pushing"
	case Done:
		return "done"
	}
	return "unknown"
}

// VCSResult reports the three git steps. Warning holds the first failure.
type VCSResult struct {
	Staged    bool
	Committed bool
	Pushed    bool
	Skipped   bool
	Warning   error
}

// Result summarizes a publish run
type Result struct {
	State     State
	Manifest  string
	Published []string // names written to the manifest
	Changed   []string // new or changed since the previous publish
	Dropped   []string // published last time, not any more
	Missing   []string // favorited identifiers absent from the working list
	VCS       VCSResult
}

// Count returns the number of new or changed records
func (r *Result) Count() int {
	return len(r.Changed)
}

// Options tune a single run
type Options struct {
	SkipVCS bool // write the manifest only
}

// Publisher writes the manifest and drives git
type Publisher struct {
	ManifestPath string
	LedgerPath   string
	StripDerived bool // drop URL, Hash and is_favorite from manifest entries

	vcs VCS
	now func() time.Time
}

// New creates a publisher
func New(manifestPath, ledgerPath string, vcs VCS) *Publisher {
	return &Publisher{
		ManifestPath: manifestPath,
		LedgerPath:   ledgerPath,
		vcs:          vcs,
		now:          time.Now,
	}
}

// SetClock replaces the time source
func (p *Publisher) SetClock(now func() time.Time) {
	p.now = now
}

// Publish writes every record of working whose identifier is favorited.
// Only reading, matching and writing failures return an error. Git
// failures are reported in Result.VCS and the run still reaches Done.
// The ledger advances only after a successful push.
func (p *Publisher) Publish(ctx context.Context, working []plugin.Record, favorites map[string]bool, opts Options) (*Result, error) {
	result := &Result{State: Idle, Manifest: p.ManifestPath}
	logger := log.WithField("manifest", p.ManifestPath)

	result.State = Reading
	ledger := LoadLedger(p.LedgerPath)

	result.State = Matching
	matched := Match(working, favorites)
	result.Published = lo.Map(matched, func(r plugin.Record, _ int) string { return r.Name() })
	result.Missing = missing(working, favorites)
	result.Changed, result.Dropped = ledger.Diff(matched)

	for _, id := range result.Missing {
		logger.WithField("hash", id).Info("Favorited plugin no longer in any feed, skipped")
	}

	result.State = Writing
	if err := p.writeManifest(matched); err != nil {
		return result, err
	}

	logger.WithFields(log.Fields{
		"published": len(matched),
		"changed":   len(result.Changed),
		"dropped":   len(result.Dropped),
	}).Info("Manifest written")

	if opts.SkipVCS || p.vcs == nil {
		result.VCS.Skipped = true
		result.State = Done
		return result, nil
	}

	result.State = Committing
	result.VCS.Staged = p.step(&result.VCS, func() error { return p.vcs.Stage(ctx) })
	result.VCS.Committed = p.step(&result.VCS, func() error { return p.vcs.Commit(ctx, CommitMessage) })

	result.State = Pushing
	result.VCS.Pushed = p.step(&result.VCS, func() error { return p.vcs.Push(ctx) })

	if result.VCS.Warning != nil {
		logger.WithError(result.VCS.Warning).Warn("Version control step failed")
	}
	if result.VCS.Pushed {
		ledger.Replace(matched, p.now())
		if err := ledger.Save(); err != nil {
			logger.WithError(err).Warn("Cannot save publish ledger")
		}
	}

	result.State = Done
	return result, nil
}

// step runs fn and records its error as the warning if none is set yet
func (p *Publisher) step(vr *VCSResult, fn func() error) bool {
	if err := fn(); err != nil {
		if vr.Warning == nil {
			vr.Warning = err
		}
		return false
	}
	return true
}

func (p *Publisher) writeManifest(records []plugin.Record) error {
	out := make([]plugin.Record, 0, len(records))
	for _, r := range records {
		if p.StripDerived {
			r = r.Without(plugin.DerivedKeys...)
		}
		out = append(out, r)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(out); err != nil {
		return myerrors.NewPathError(p.ManifestPath, "encode manifest", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.ManifestPath), 0755); err != nil {
		return myerrors.NewPathError(p.ManifestPath, "write manifest", err)
	}
	if err := os.WriteFile(p.ManifestPath, buf.Bytes(), 0644); err != nil {
		return myerrors.NewPathError(p.ManifestPath, "write manifest", err)
	}
	return nil
}

// Match returns the records whose identifier is favorited, in working
// list order, keeping only the first record per identifier
func Match(working []plugin.Record, favorites map[string]bool) []plugin.Record {
	seen := make(map[string]struct{})
	var matched []plugin.Record
	for _, r := range working {
		hash := r.EnsureHash()
		if hash == "" || !favorites[hash] {
			continue
		}
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		matched = append(matched, r)
	}
	return matched
}

func missing(working []plugin.Record, favorites map[string]bool) []string {
	present := make(map[string]struct{}, len(working))
	for _, r := range working {
		present[r.Hash()] = struct{}{}
	}

	ids := lo.Filter(lo.Keys(favorites), func(id string, _ int) bool {
		_, ok := present[id]
		return favorites[id] && !ok
	})
	sort.Strings(ids)
	return ids
}
