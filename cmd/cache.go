package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/samhoang/myrepo/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the plugin cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show when the cache was filled and whether it is still fresh",
	RunE:  runCacheStatus,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cache so the next command fetches every feed",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}

	st := c.CacheStatus()
	fmt.Printf("Cache file: %s\n", c.Paths().Resolve(c.Settings().CachePluginFP))
	if !st.Exists {
		fmt.Println("Status:     empty")
		return nil
	}
	if !st.Valid {
		fmt.Println("Status:     stale (no usable timestamp)")
		return nil
	}

	state := "fresh"
	if !st.Fresh(cache.MaxAge) {
		state = "stale"
	}
	fmt.Printf("Fetched:    %s (%s ago)\n", st.FetchedAt.Format("2006-01-02 15:04:05"), st.Age.Round(time.Minute))
	fmt.Printf("Status:     %s (max age %s)\n", state, cache.MaxAge)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	if err := c.Invalidate(); err != nil {
		return err
	}
	fmt.Println("Cache cleared")
	return nil
}
