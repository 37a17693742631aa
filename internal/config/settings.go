package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	myerrors "github.com/samhoang/myrepo/internal/errors"
)

// TimeLayout is the timestamp format used for cache_plugin_time and my_plugin_time
const TimeLayout = "2006-01-02 15:04:05"

// Defaults for settings keys
const (
	DefaultRepoIndex     = "RepoIndex.txt"
	DefaultCachePlugins  = "cache_plugin.json"
	DefaultMyPlugins     = "MyRepo.json"
	DefaultManifest      = "PluginMaster.json"
	DefaultPublishLedger = "publish.toml"
	DefaultIconCache     = "icon_cache"
	DefaultFetchRetries  = 1
)

// Proxy is a host:port proxy address. It also accepts the object form
// {"https": "host:port"} written by older settings files.
type Proxy string

func (p *Proxy) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Proxy(strings.TrimSpace(s))
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("proxy: expected string, null or object: %w", err)
	}
	for _, key := range []string{"https", "http"} {
		if v := strings.TrimSpace(m[key]); v != "" {
			*p = Proxy(v)
			return nil
		}
	}
	*p = ""
	return nil
}

func (p Proxy) MarshalJSON() ([]byte, error) {
	if p == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

// URL returns the proxy as a URL, or nil when no proxy is configured
func (p Proxy) URL() (*url.URL, error) {
	s := string(p)
	if s == "" {
		return nil, nil
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	return url.Parse(s)
}

// Settings represents settings.json
type Settings struct {
	Proxy                Proxy  `json:"proxy"`
	RepoIndexFP          string `json:"repo_index_fp"`
	CachePluginFP        string `json:"cache_plugin_fp"`
	MyPluginFP           string `json:"my_plugin_fp"`
	CachePluginTime      string `json:"cache_plugin_time"`
	MyPluginTime         string `json:"my_plugin_time"`
	ManifestFP           string `json:"manifest_fp"`
	PublishLedgerFP      string `json:"publish_ledger_fp"`
	IconCacheDir         string `json:"icon_cache_dir"`
	GitRemote            string `json:"git_remote"`
	GitBranch            string `json:"git_branch"`
	FetchRetries         *int   `json:"fetch_retries,omitempty"`
	ManifestStripDerived bool   `json:"manifest_strip_derived"`

	path  string
	extra map[string]json.RawMessage
}

// DefaultSettings returns settings with every path at its default
func DefaultSettings() *Settings {
	return &Settings{
		RepoIndexFP:     DefaultRepoIndex,
		CachePluginFP:   DefaultCachePlugins,
		MyPluginFP:      DefaultMyPlugins,
		ManifestFP:      DefaultManifest,
		PublishLedgerFP: DefaultPublishLedger,
		IconCacheDir:    DefaultIconCache,
	}
}

// LoadSettings reads settings.json. A missing file yields defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	s.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, myerrors.NewPathError(path, "read settings", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, myerrors.NewPathError(path, "parse settings",
			fmt.Errorf("%w: %v", myerrors.ErrInvalidSettings, err))
	}
	if err := json.Unmarshal(data, &s.extra); err != nil {
		return nil, myerrors.NewPathError(path, "parse settings",
			fmt.Errorf("%w: %v", myerrors.ErrInvalidSettings, err))
	}
	s.fillDefaults()

	return s, nil
}

func (s *Settings) fillDefaults() {
	d := DefaultSettings()
	if s.RepoIndexFP == "" {
		s.RepoIndexFP = d.RepoIndexFP
	}
	if s.CachePluginFP == "" {
		s.CachePluginFP = d.CachePluginFP
	}
	if s.MyPluginFP == "" {
		s.MyPluginFP = d.MyPluginFP
	}
	if s.ManifestFP == "" {
		s.ManifestFP = d.ManifestFP
	}
	if s.PublishLedgerFP == "" {
		s.PublishLedgerFP = d.PublishLedgerFP
	}
	if s.IconCacheDir == "" {
		s.IconCacheDir = d.IconCacheDir
	}
}

// Path returns the file the settings are saved to
func (s *Settings) Path() string {
	return s.path
}

// SetPath sets the file the settings are saved to
func (s *Settings) SetPath(path string) {
	s.path = path
}

// Retries returns the configured feed retry count
func (s *Settings) Retries() int {
	if s.FetchRetries == nil || *s.FetchRetries < 0 {
		return DefaultFetchRetries
	}
	return *s.FetchRetries
}

// Save rewrites settings.json, keeping keys this version does not know
func (s *Settings) Save() error {
	known, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return err
	}

	merged := make(map[string]json.RawMessage, len(s.extra)+len(fields))
	for k, v := range s.extra {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(merged); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return myerrors.NewPathError(s.path, "save settings", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return myerrors.NewPathError(s.path, "save settings", err)
	}
	s.extra = merged
	return nil
}

// FormatTime renders t in TimeLayout
func FormatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp in local time
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.Local)
}
