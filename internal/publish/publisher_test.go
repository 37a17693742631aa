package publish

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/plugin"
)

type fakeVCS struct {
	calls     []string
	stageErr  error
	commitErr error
	pushErr   error
	message   string
}

func (f *fakeVCS) Stage(ctx context.Context) error {
	f.calls = append(f.calls, "stage")
	return f.stageErr
}

func (f *fakeVCS) Commit(ctx context.Context, message string) error {
	f.calls = append(f.calls, "commit")
	f.message = message
	return f.commitErr
}

func (f *fakeVCS) Push(ctx context.Context) error {
	f.calls = append(f.calls, "push")
	return f.pushErr
}

func rec(url, name string, extra ...any) plugin.Record {
	r := plugin.Record{
		plugin.KeyName:     name,
		plugin.KeyURL:      url,
		plugin.KeyHash:     plugin.Identify(url, name),
		plugin.KeyFavorite: false,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		r[extra[i].(string)] = extra[i+1]
	}
	return r
}

func newTestPublisher(t *testing.T, vcs VCS) (*Publisher, string) {
	t.Helper()
	dir := t.TempDir()
	p := New(filepath.Join(dir, "PluginMaster.json"), filepath.Join(dir, "publish.toml"), vcs)
	p.SetClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })
	return p, dir
}

func readManifest(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestPublishOnlyFavoritedAndPresent(t *testing.T) {
	vcs := &fakeVCS{}
	p, _ := newTestPublisher(t, vcs)

	a := rec("http://a", "A")
	b := rec("http://a", "B")
	c := rec("http://b", "C")
	gone := plugin.Identify("http://a", "Removed")

	favorites := map[string]bool{
		a.Hash(): true,
		b.Hash(): false,
		c.Hash(): true,
		gone:     true,
	}

	result, err := p.Publish(context.Background(), []plugin.Record{a, b, c}, favorites, Options{})
	require.NoError(t, err)

	assert.Equal(t, Done, result.State)
	assert.Equal(t, []string{"A", "C"}, result.Published)
	assert.Equal(t, []string{gone}, result.Missing)

	manifest := readManifest(t, p.ManifestPath)
	require.Len(t, manifest, 2)
	assert.Equal(t, "A", manifest[0]["Name"])
	assert.Equal(t, "C", manifest[1]["Name"])

	assert.Equal(t, []string{"stage", "commit", "push"}, vcs.calls)
	assert.Equal(t, CommitMessage, vcs.message)
	assert.Equal(t, VCSResult{Staged: true, Committed: true, Pushed: true}, result.VCS)
}

func TestPublishFirstMatchPerHash(t *testing.T) {
	p, _ := newTestPublisher(t, &fakeVCS{})

	first := rec("http://a", "A", "Version", "1")
	second := rec("http://a", "A", "Version", "2")

	result, err := p.Publish(context.Background(), []plugin.Record{first, second},
		map[string]bool{first.Hash(): true}, Options{})
	require.NoError(t, err)

	manifest := readManifest(t, p.ManifestPath)
	require.Len(t, manifest, 1)
	assert.Equal(t, "1", manifest[0]["Version"])
	assert.Len(t, result.Published, 1)
}

func TestPublishEmptyFavoritesWritesEmptyManifest(t *testing.T) {
	p, _ := newTestPublisher(t, &fakeVCS{})

	result, err := p.Publish(context.Background(), []plugin.Record{rec("http://a", "A")}, nil, Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(p.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))
	assert.Empty(t, result.Published)
}

func TestPublishKeepsNonASCIIAndHTML(t *testing.T) {
	p, _ := newTestPublisher(t, &fakeVCS{})
	r := rec("http://a", "插件", "Description", "<b>fast</b> & small")

	_, err := p.Publish(context.Background(), []plugin.Record{r}, map[string]bool{r.Hash(): true}, Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(p.ManifestPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "插件")
	assert.Contains(t, string(data), "<b>fast</b> & small")
	assert.Contains(t, string(data), "\n    {", "four space indent")
}

func TestPublishStripDerived(t *testing.T) {
	p, _ := newTestPublisher(t, &fakeVCS{})
	p.StripDerived = true
	r := rec("http://a", "A", "Author", "me")

	_, err := p.Publish(context.Background(), []plugin.Record{r}, map[string]bool{r.Hash(): true}, Options{})
	require.NoError(t, err)

	manifest := readManifest(t, p.ManifestPath)
	require.Len(t, manifest, 1)
	assert.Equal(t, map[string]any{"Name": "A", "Author": "me"}, manifest[0])
	assert.Equal(t, "http://a", r.URL(), "working list record is untouched")
}

func TestPublishVCSFailuresAreWarnings(t *testing.T) {
	commitErr := myerrors.NewCommandError("git commit -m update Repo", 1, "nothing to commit")
	pushErr := myerrors.NewCommandError("git push", 128, "no upstream")
	vcs := &fakeVCS{commitErr: commitErr, pushErr: pushErr}
	p, _ := newTestPublisher(t, vcs)
	r := rec("http://a", "A")

	result, err := p.Publish(context.Background(), []plugin.Record{r}, map[string]bool{r.Hash(): true}, Options{})
	require.NoError(t, err)

	assert.Equal(t, Done, result.State)
	assert.Equal(t, []string{"stage", "commit", "push"}, vcs.calls, "every step runs")
	assert.True(t, result.VCS.Staged)
	assert.False(t, result.VCS.Committed)
	assert.False(t, result.VCS.Pushed)
	assert.Same(t, commitErr, result.VCS.Warning, "first failure is reported")
	assert.FileExists(t, p.ManifestPath)
}

func TestPublishWriteFailureIsFatal(t *testing.T) {
	vcs := &fakeVCS{}
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// parent of the manifest is a regular file, so the write must fail
	p := New(filepath.Join(blocker, "PluginMaster.json"), filepath.Join(dir, "publish.toml"), vcs)
	r := rec("http://a", "A")

	result, err := p.Publish(context.Background(), []plugin.Record{r}, map[string]bool{r.Hash(): true}, Options{})
	require.Error(t, err)

	var pathErr *myerrors.PathError
	assert.True(t, errors.As(err, &pathErr))
	assert.Equal(t, Writing, result.State)
	assert.Empty(t, vcs.calls, "git must not run without a manifest")
}

func TestPublishSkipVCS(t *testing.T) {
	vcs := &fakeVCS{}
	p, _ := newTestPublisher(t, vcs)

	result, err := p.Publish(context.Background(), nil, nil, Options{SkipVCS: true})
	require.NoError(t, err)

	assert.True(t, result.VCS.Skipped)
	assert.Empty(t, vcs.calls)
	assert.Equal(t, Done, result.State)
}

func TestPublishReportsChangesAgainstLedger(t *testing.T) {
	p, _ := newTestPublisher(t, &fakeVCS{})
	ctx := context.Background()

	a := rec("http://a", "A", "Version", "1")
	b := rec("http://a", "B")
	favs := map[string]bool{a.Hash(): true, b.Hash(): true}

	first, err := p.Publish(ctx, []plugin.Record{a, b}, favs, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, first.Changed)
	assert.Equal(t, 2, first.Count())

	// unchanged publish reports nothing new
	second, err := p.Publish(ctx, []plugin.Record{a, b}, favs, Options{})
	require.NoError(t, err)
	assert.Empty(t, second.Changed)

	// A updated upstream, B unfavorited; toggling is_favorite alone is not a change
	a2 := rec("http://a", "A", "Version", "2")
	a2.SetFavorite(true)
	favs[b.Hash()] = false
	third, err := p.Publish(ctx, []plugin.Record{a2, b}, favs, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, third.Changed)
	assert.Equal(t, []string{"B"}, third.Dropped)
}

func TestPublishWithoutPushKeepsLedger(t *testing.T) {
	vcs := &fakeVCS{}
	p, _ := newTestPublisher(t, vcs)
	ctx := context.Background()

	a := rec("http://a", "A")
	favs := map[string]bool{a.Hash(): true}

	local, err := p.Publish(ctx, []plugin.Record{a}, favs, Options{SkipVCS: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, local.Changed)
	assert.NoFileExists(t, p.LedgerPath)

	pushed, err := p.Publish(ctx, []plugin.Record{a}, favs, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, pushed.Changed, "nothing reached the remote before")
	assert.FileExists(t, p.LedgerPath)
}

func TestPublishFailedPushKeepsLedger(t *testing.T) {
	vcs := &fakeVCS{pushErr: myerrors.NewCommandError("git push", 128, "no upstream")}
	p, _ := newTestPublisher(t, vcs)
	ctx := context.Background()

	a := rec("http://a", "A")
	favs := map[string]bool{a.Hash(): true}

	first, err := p.Publish(ctx, []plugin.Record{a}, favs, Options{})
	require.NoError(t, err)
	assert.False(t, first.VCS.Pushed)

	vcs.pushErr = nil
	second, err := p.Publish(ctx, []plugin.Record{a}, favs, Options{})
	require.NoError(t, err)
	assert.True(t, second.VCS.Pushed)
	assert.Equal(t, []string{"A"}, second.Changed)

	third, err := p.Publish(ctx, []plugin.Record{a}, favs, Options{})
	require.NoError(t, err)
	assert.Empty(t, third.Changed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pushing", Pushing.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "unknown", State(99).String())
}
