package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samhoang/myrepo/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print settings.json with resolved paths",
	RunE:  runConfigShow,
}

var configProxyUnset bool

var configProxyCmd = &cobra.Command{
	Use:   "proxy [host:port]",
	Short: "Show or set the HTTP proxy used for feeds and icons",
	Long: `Show or set the proxy. The value is a host:port pair or a full URL.

Examples:
  myrepo config proxy
  myrepo config proxy 127.0.0.1:7890
  myrepo config proxy --unset`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigProxy,
}

func init() {
	configProxyCmd.Flags().BoolVar(&configProxyUnset, "unset", false, "Remove the proxy")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configProxyCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	s := c.Settings()
	p := c.Paths()

	fmt.Printf("Data directory: %s\n", p.Dir)
	fmt.Printf("Settings file:  %s\n\n", p.SettingsPath)

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Resolved paths:")
	for _, kv := range [][2]string{
		{"repo_index_fp", s.RepoIndexFP},
		{"cache_plugin_fp", s.CachePluginFP},
		{"my_plugin_fp", s.MyPluginFP},
		{"manifest_fp", s.ManifestFP},
		{"publish_ledger_fp", s.PublishLedgerFP},
		{"icon_cache_dir", s.IconCacheDir},
	} {
		fmt.Printf("  %-18s %s\n", kv[0], p.Resolve(kv[1]))
	}
	return nil
}

func runConfigProxy(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	s := c.Settings()

	switch {
	case configProxyUnset:
		s.Proxy = ""
	case len(args) == 1:
		s.Proxy = config.Proxy(strings.TrimSpace(args[0]))
		if _, err := s.Proxy.URL(); err != nil {
			return fmt.Errorf("invalid proxy %q: %w", args[0], err)
		}
	default:
		if s.Proxy == "" {
			fmt.Println("No proxy configured")
		} else {
			fmt.Println(s.Proxy)
		}
		return nil
	}

	if err := s.Save(); err != nil {
		return err
	}
	if s.Proxy == "" {
		fmt.Println("Proxy removed")
	} else {
		fmt.Printf("Proxy set to %s\n", s.Proxy)
	}
	return nil
}
