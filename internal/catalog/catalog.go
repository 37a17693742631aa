// Package catalog ties the fetch, cache, favorites and publish stages into
// the working list front-ends operate on.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/samhoang/myrepo/internal/cache"
	"github.com/samhoang/myrepo/internal/config"
	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/favorites"
	"github.com/samhoang/myrepo/internal/feed"
	"github.com/samhoang/myrepo/internal/icons"
	"github.com/samhoang/myrepo/internal/plugin"
	"github.com/samhoang/myrepo/internal/publish"
)

// Options override collaborators, mostly for tests
type Options struct {
	HTTPClient   *http.Client // feed and icon client; built from settings when nil
	VCS          publish.VCS  // git in the data directory when nil
	Now          func() time.Time
	FetchOptions []feed.Option
}

// LoadResult describes where the working list came from
type LoadResult struct {
	Records   int
	FromCache bool
	Feeds     []feed.Status // empty when served from cache
	Failures  []feed.Status
}

// Catalog holds the working list and the stores behind it
type Catalog struct {
	paths     *config.Paths
	settings  *config.Settings
	cache     *cache.Store
	favorites *favorites.Store
	fetcher   *feed.Fetcher
	publisher *publish.Publisher
	icons     *icons.Cache
	now       func() time.Time

	records []plugin.Record
	loaded  bool
}

// Open loads settings from the data directory and wires the stores
func Open(paths *config.Paths, opts Options) (*Catalog, error) {
	if !paths.IsInitialized() {
		return nil, myerrors.ErrNotInitialized
	}

	settings, err := config.LoadSettings(paths.SettingsPath)
	if err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		client, err = feed.NewHTTPClient(settings.Proxy, feed.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("proxy %q: %w", settings.Proxy, err)
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	vcs := opts.VCS
	if vcs == nil {
		vcs = publish.NewGit(paths.Dir, settings.GitRemote, settings.GitBranch)
	}

	c := &Catalog{
		paths:     paths,
		settings:  settings,
		cache:     cache.NewStore(paths.Resolve(settings.CachePluginFP), settings),
		favorites: favorites.NewStore(paths.Resolve(settings.MyPluginFP)),
		fetcher: feed.NewFetcher(client,
			append([]feed.Option{feed.WithRetries(settings.Retries())}, opts.FetchOptions...)...),
		publisher: publish.New(paths.Resolve(settings.ManifestFP), paths.Resolve(settings.PublishLedgerFP), vcs),
		icons:     icons.NewCache(paths.Resolve(settings.IconCacheDir), client),
		now:       now,
	}
	c.cache.SetClock(now)
	c.publisher.SetClock(now)
	c.publisher.StripDerived = settings.ManifestStripDerived

	return c, nil
}

// Settings returns the loaded settings
func (c *Catalog) Settings() *config.Settings {
	return c.settings
}

// Paths returns the resolved data directory paths
func (c *Catalog) Paths() *config.Paths {
	return c.paths
}

// CacheStatus reports the cache timestamp and age
func (c *Catalog) CacheStatus() cache.Status {
	return c.cache.Status()
}

// Load rebuilds the working list. Unless force is set a fresh, non-empty
// cache is used; otherwise every feed is fetched and the result cached.
func (c *Catalog) Load(ctx context.Context, force bool) (*LoadResult, error) {
	if !force {
		if records, ok := c.cache.Load(cache.MaxAge); ok && len(records) > 0 {
			c.setWorking(records)
			log.WithField("records", len(records)).Debug("Working list loaded from cache")
			return &LoadResult{Records: len(records), FromCache: true}, nil
		}
	}

	urls, err := c.feedURLs()
	if err != nil {
		return nil, err
	}

	result := c.fetcher.Fetch(ctx, urls)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// an outage would otherwise stamp an empty cache as fresh
	if len(result.Records) > 0 {
		if err := c.cache.Save(result.Records); err != nil {
			log.WithError(err).Warn("Cannot write plugin cache")
		}
	}
	c.setWorking(result.Records)

	return &LoadResult{
		Records:  len(result.Records),
		Feeds:    result.Feeds,
		Failures: result.Failed(),
	}, nil
}

func (c *Catalog) feedURLs() ([]string, error) {
	path := c.paths.Resolve(c.settings.RepoIndexFP)
	urls, err := feed.ReadIndex(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WithField("index", path).Warn("Feed index missing, nothing to fetch")
			return nil, nil
		}
		return nil, err
	}
	if len(urls) == 0 {
		log.WithField("index", path).Warn(myerrors.ErrEmptyIndex.Error())
	}
	return urls, nil
}

func (c *Catalog) setWorking(records []plugin.Record) {
	c.favorites.Apply(records)
	c.records = records
	c.loaded = true
}

// Loaded reports whether a working list is present
func (c *Catalog) Loaded() bool {
	return c.loaded
}

// Records returns the working list
func (c *Catalog) Records() []plugin.Record {
	return c.records
}

// Find returns the first working record with the given identifier
func (c *Catalog) Find(hash string) (plugin.Record, bool) {
	return lo.Find(c.records, func(r plugin.Record) bool {
		return r.Hash() == hash
	})
}

// Search filters the working list by a case-insensitive name query
func (c *Catalog) Search(query string, onlyFavorites bool) []plugin.Record {
	records := c.records
	if onlyFavorites {
		records = lo.Filter(records, func(r plugin.Record, _ int) bool {
			return r.IsFavorite()
		})
	}
	return plugin.NewMatcher(query).Filter(records)
}

// Favorites returns the favorited identifiers, sorted
func (c *Catalog) Favorites() []string {
	return c.favorites.Favorited()
}

// IsFavorite reports the stored flag for an identifier
func (c *Catalog) IsFavorite(hash string) bool {
	return c.favorites.Get(hash)
}

// SetFavorite marks or unmarks a working record and persists the change.
// Unfavoriting an identifier that dropped out of every feed is allowed so
// stale favorites can be cleaned up.
func (c *Catalog) SetFavorite(hash string, favorite bool) error {
	matches := lo.Filter(c.records, func(r plugin.Record, _ int) bool {
		return r.Hash() == hash
	})
	if len(matches) == 0 && (favorite || !c.favorites.Get(hash)) {
		return myerrors.NewRecordError(hash, "set favorite", myerrors.ErrRecordNotFound)
	}

	if err := c.favorites.Set(hash, favorite); err != nil {
		return myerrors.NewRecordError(hash, "set favorite", err)
	}
	for _, r := range matches {
		r.SetFavorite(favorite)
	}

	c.settings.MyPluginTime = config.FormatTime(c.now())
	if err := c.settings.Save(); err != nil {
		log.WithError(err).Warn("Cannot stamp my_plugin_time")
	}

	log.WithFields(log.Fields{"hash": hash, "favorite": favorite}).Debug("Favorite updated")
	return nil
}

// Toggle flips the favorite flag and returns the new value
func (c *Catalog) Toggle(hash string) (bool, error) {
	next := !c.favorites.Get(hash)
	if err := c.SetFavorite(hash, next); err != nil {
		return false, err
	}
	return next, nil
}

// Invalidate drops the cache so the next Load fetches
func (c *Catalog) Invalidate() error {
	return c.cache.Invalidate()
}

// Publish writes the manifest for the current favorites and runs git.
// The working list is loaded first when needed.
func (c *Catalog) Publish(ctx context.Context, opts publish.Options) (*publish.Result, error) {
	if !c.loaded {
		if _, err := c.Load(ctx, false); err != nil {
			return nil, err
		}
	}
	return c.publisher.Publish(ctx, c.records, c.favorites.Snapshot(), opts)
}

// FetchIcons downloads icons of favorited working records
func (c *Catalog) FetchIcons(ctx context.Context) (*icons.Report, error) {
	if !c.loaded {
		if _, err := c.Load(ctx, false); err != nil {
			return nil, err
		}
	}
	favorited := lo.Filter(c.records, func(r plugin.Record, _ int) bool {
		return r.IsFavorite()
	})
	return c.icons.Fetch(ctx, favorited)
}

// Init creates the data directory with default settings and an empty feed
// index. An existing data directory is an error unless force is set, in
// which case settings are reset to defaults and the index is kept.
func Init(paths *config.Paths, force bool) error {
	if paths.IsInitialized() && !force {
		return myerrors.ErrAlreadyExists
	}

	if err := os.MkdirAll(paths.Dir, 0755); err != nil {
		return myerrors.NewPathError(paths.Dir, "create data directory", err)
	}

	settings := config.DefaultSettings()
	settings.SetPath(paths.SettingsPath)
	if err := settings.Save(); err != nil {
		return err
	}

	index := paths.Resolve(settings.RepoIndexFP)
	if _, err := os.Stat(index); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(index), 0755); err != nil {
			return myerrors.NewPathError(index, "create feed index", err)
		}
		header := feed.CommentPrefix + " one feed URL per line; lines starting with " + feed.CommentPrefix + " are ignored\n"
		if err := os.WriteFile(index, []byte(header), 0644); err != nil {
			return myerrors.NewPathError(index, "create feed index", err)
		}
	}

	log.WithField("dir", paths.Dir).Info("Initialized data directory")
	return nil
}
