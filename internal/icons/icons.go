// Package icons downloads plugin icons into a local cache directory.
package icons

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/plugin"
)

const (
	// Concurrency bounds parallel downloads
	Concurrency = 4
	// Timeout applies to each download
	Timeout = 5 * time.Second
)

// Outcome is the result for one record
type Outcome struct {
	Name   string
	URL    string
	Path   string
	Cached bool // file already existed
	Err    error
}

// Report collects outcomes in input order
type Report struct {
	Outcomes []Outcome
}

// Downloaded counts icons fetched during this run
func (r *Report) Downloaded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil && !o.Cached {
			n++
		}
	}
	return n
}

// Failed returns outcomes with an error
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Cache stores icons as <dir>/<md5(icon url)>.png
type Cache struct {
	dir    string
	client *http.Client
}

// NewCache creates an icon cache. A nil client uses http.DefaultClient.
func NewCache(dir string, client *http.Client) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{dir: dir, client: client}
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// PathFor returns the cache file for an icon URL
func (c *Cache) PathFor(iconURL string) string {
	sum := md5.Sum([]byte(iconURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".png")
}

// Fetch downloads the icons of records that carry an http(s) IconUrl.
// Records without one are left out of the report.
func (c *Cache) Fetch(ctx context.Context, records []plugin.Record) (*Report, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, myerrors.NewPathError(c.dir, "create icon cache", err)
	}

	var outcomes []Outcome
	for _, r := range records {
		if !fetchable(r.IconURL()) {
			continue
		}
		outcomes = append(outcomes, Outcome{
			Name: r.Name(),
			URL:  r.IconURL(),
			Path: c.PathFor(r.IconURL()),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Concurrency)
	for i := range outcomes {
		o := &outcomes[i]
		g.Go(func() error {
			// per-icon failures stay in the outcome; the group never fails
			if _, err := os.Stat(o.Path); err == nil {
				o.Cached = true
				return nil
			}
			o.Err = c.download(gctx, o.URL, o.Path)
			if o.Err != nil {
				log.WithFields(log.Fields{"plugin": o.Name, "icon": o.URL}).WithError(o.Err).Warn("Icon download failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Outcomes: outcomes}
	log.WithFields(log.Fields{
		"downloaded": report.Downloaded(),
		"failed":     len(report.Failed()),
		"dir":        c.dir,
	}).Info("Icon cache updated")
	return report, nil
}

func (c *Cache) download(ctx context.Context, iconURL, path string) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	// write to a temp file so an interrupted download never looks cached
	tmp, err := os.CreateTemp(filepath.Dir(path), ".icon-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fetchable(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
