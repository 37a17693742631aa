package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhoang/myrepo/internal/config"
	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/plugin"
	"github.com/samhoang/myrepo/internal/publish"
)

type nopVCS struct{ calls int }

func (v *nopVCS) Stage(ctx context.Context) error { v.calls++; return nil }

func (v *nopVCS) Commit(ctx context.Context, message string) error { v.calls++; return nil }

func (v *nopVCS) Push(ctx context.Context) error { v.calls++; return nil }

type fixture struct {
	paths *config.Paths
	srv   *httptest.Server
	hits  *int32
	vcs   *nopVCS
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch r.URL.Path {
		case "/a.json":
			w.Write([]byte(`[{"Name":"Alpha","Author":"x","DalamudApiLevel":9},{"Name":"Beta"}]`))
		case "/b.json":
			w.Write([]byte(`[{"Name":"Alpha"},{"Name":"Gamma","IconUrl":"` + "http://" + r.Host + `/icon.png"}]`))
		case "/icon.png":
			w.Write([]byte("icon"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	paths, err := config.ResolvePaths(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, Init(paths, false))

	index := strings.Join([]string{
		srv.URL + "/a.json",
		"## disabled " + srv.URL + "/never.json",
		srv.URL + "/b.json",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(paths.Dir, config.DefaultRepoIndex), []byte(index), 0644))

	return &fixture{
		paths: paths,
		srv:   srv,
		hits:  &hits,
		vcs:   &nopVCS{},
		now:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local),
	}
}

func (f *fixture) open(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(f.paths, Options{
		HTTPClient: f.srv.Client(),
		VCS:        f.vcs,
		Now:        func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return c
}

func names(records []plugin.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name())
	}
	return out
}

func TestOpenRequiresInit(t *testing.T) {
	paths, err := config.ResolvePaths(t.TempDir())
	require.NoError(t, err)

	_, err = Open(paths, Options{})
	assert.ErrorIs(t, err, myerrors.ErrNotInitialized)
}

func TestInit(t *testing.T) {
	paths, err := config.ResolvePaths(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	require.NoError(t, Init(paths, false))
	assert.FileExists(t, paths.SettingsPath)
	assert.FileExists(t, filepath.Join(paths.Dir, config.DefaultRepoIndex))

	assert.ErrorIs(t, Init(paths, false), myerrors.ErrAlreadyExists)

	// force keeps a user-maintained index
	index := filepath.Join(paths.Dir, config.DefaultRepoIndex)
	require.NoError(t, os.WriteFile(index, []byte("http://feed\n"), 0644))
	require.NoError(t, Init(paths, true))
	data, err := os.ReadFile(index)
	require.NoError(t, err)
	assert.Equal(t, "http://feed\n", string(data))
}

func TestLoadFetchesThenUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.open(t)
	res, err := c.Load(ctx, false)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 4, res.Records)
	assert.Len(t, res.Feeds, 2, "comment line is not requested")
	assert.Empty(t, res.Failures)
	assert.Equal(t, []string{"Alpha", "Beta", "Alpha", "Gamma"}, names(c.Records()))
	assert.Equal(t, int32(2), atomic.LoadInt32(f.hits))

	for _, r := range c.Records() {
		assert.Equal(t, plugin.Identify(r.URL(), r.Name()), r.Hash())
		assert.False(t, r.IsFavorite())
	}

	// a second process within the window reads the cache
	f.now = f.now.Add(23 * time.Hour)
	again := f.open(t)
	res, err = again.Load(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 4, res.Records)
	assert.Equal(t, int32(2), atomic.LoadInt32(f.hits))

	// past the window the feeds are fetched again
	f.now = f.now.Add(2 * time.Hour)
	expired := f.open(t)
	res, err = expired.Load(ctx, false)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, int32(4), atomic.LoadInt32(f.hits))
}

func TestLoadForceAndInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.open(t)

	_, err := c.Load(ctx, false)
	require.NoError(t, err)

	res, err := c.Load(ctx, true)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, int32(4), atomic.LoadInt32(f.hits))

	require.NoError(t, c.Invalidate())
	assert.False(t, c.CacheStatus().Exists)
	res, err = c.Load(ctx, false)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestLoadReportsFailedFeeds(t *testing.T) {
	f := newFixture(t)
	index := f.srv.URL + "/a.json\n" + f.srv.URL + "/gone.json\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.paths.Dir, config.DefaultRepoIndex), []byte(index), 0644))

	c := f.open(t)
	res, err := c.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, f.srv.URL+"/gone.json", res.Failures[0].URL)
}

func TestLoadMissingIndexIsEmpty(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.paths.Dir, config.DefaultRepoIndex)))

	c := f.open(t)
	res, err := c.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, res.Records)
	assert.Empty(t, c.Records())
	assert.False(t, c.CacheStatus().Exists, "empty fetch is not cached")
}

func TestSetFavoritePersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.open(t)
	_, err := c.Load(ctx, false)
	require.NoError(t, err)

	beta := plugin.Identify(f.srv.URL+"/a.json", "Beta")
	require.NoError(t, c.SetFavorite(beta, true))

	r, ok := c.Find(beta)
	require.True(t, ok)
	assert.True(t, r.IsFavorite())

	data, err := os.ReadFile(filepath.Join(f.paths.Dir, config.DefaultMyPlugins))
	require.NoError(t, err)
	var stored map[string]bool
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, map[string]bool{beta: true}, stored)

	settings, err := config.LoadSettings(f.paths.SettingsPath)
	require.NoError(t, err)
	assert.Equal(t, config.FormatTime(f.now), settings.MyPluginTime)

	// favorites survive a restart and are applied to cached records
	reopened := f.open(t)
	_, err = reopened.Load(ctx, false)
	require.NoError(t, err)
	r, ok = reopened.Find(beta)
	require.True(t, ok)
	assert.True(t, r.IsFavorite())
	assert.Equal(t, []string{beta}, reopened.Favorites())
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	_, err := c.Load(context.Background(), false)
	require.NoError(t, err)

	gamma := plugin.Identify(f.srv.URL+"/b.json", "Gamma")
	on, err := c.Toggle(gamma)
	require.NoError(t, err)
	assert.True(t, on)

	off, err := c.Toggle(gamma)
	require.NoError(t, err)
	assert.False(t, off)
	assert.False(t, c.IsFavorite(gamma))
}

func TestSetFavoriteUnknownHash(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	_, err := c.Load(context.Background(), false)
	require.NoError(t, err)

	err = c.SetFavorite("deadbeef", true)
	assert.ErrorIs(t, err, myerrors.ErrRecordNotFound)

	var recErr *myerrors.RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "deadbeef", recErr.Hash)

	_, err = c.Toggle("deadbeef")
	assert.ErrorIs(t, err, myerrors.ErrRecordNotFound)
}

func TestUnfavoriteStaleIdentifier(t *testing.T) {
	f := newFixture(t)
	stale := plugin.Identify("http://removed", "Old")
	favs := map[string]bool{stale: true}
	data, err := json.Marshal(favs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.paths.Dir, config.DefaultMyPlugins), data, 0644))

	c := f.open(t)
	_, err = c.Load(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, c.SetFavorite(stale, false))
	assert.Empty(t, c.Favorites())
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	_, err := c.Load(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"Alpha", "Alpha"}, names(c.Search("ALP", false)))
	assert.Len(t, c.Search("", false), 4)
	assert.Empty(t, c.Search("", true))

	require.NoError(t, c.SetFavorite(plugin.Identify(f.srv.URL+"/b.json", "Gamma"), true))
	assert.Equal(t, []string{"Gamma"}, names(c.Search("", true)))
	assert.Empty(t, c.Search("alpha", true))
}

func TestPublishFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.open(t)
	_, err := c.Load(ctx, false)
	require.NoError(t, err)

	alphaB := plugin.Identify(f.srv.URL+"/b.json", "Alpha")
	beta := plugin.Identify(f.srv.URL+"/a.json", "Beta")
	require.NoError(t, c.SetFavorite(beta, true))
	require.NoError(t, c.SetFavorite(alphaB, true))

	result, err := c.Publish(ctx, publish.Options{})
	require.NoError(t, err)
	assert.Equal(t, publish.Done, result.State)
	assert.Equal(t, []string{"Beta", "Alpha"}, result.Published)
	assert.Equal(t, 3, f.vcs.calls)

	data, err := os.ReadFile(filepath.Join(f.paths.Dir, config.DefaultManifest))
	require.NoError(t, err)
	var manifest []map[string]any
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Len(t, manifest, 2)
	assert.Equal(t, f.srv.URL+"/b.json", manifest[1]["URL"])
	assert.FileExists(t, filepath.Join(f.paths.Dir, config.DefaultPublishLedger))
}

func TestPublishLoadsWhenNeeded(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)

	result, err := c.Publish(context.Background(), publish.Options{SkipVCS: true})
	require.NoError(t, err)
	assert.True(t, c.Loaded())
	assert.Empty(t, result.Published)
	assert.True(t, result.VCS.Skipped)
	assert.Zero(t, f.vcs.calls)
}

func TestFetchIconsForFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.open(t)
	_, err := c.Load(ctx, false)
	require.NoError(t, err)

	report, err := c.FetchIcons(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes, "nothing favorited yet")

	require.NoError(t, c.SetFavorite(plugin.Identify(f.srv.URL+"/b.json", "Gamma"), true))
	report, err = c.FetchIcons(ctx)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.NoError(t, report.Outcomes[0].Err)
	assert.FileExists(t, report.Outcomes[0].Path)
	assert.Equal(t, filepath.Join(f.paths.Dir, config.DefaultIconCache), filepath.Dir(report.Outcomes[0].Path))
}
