package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch every feed in the index and refresh the cache",
	Long: `Load the working list of plugins.

Without --force a cache younger than 24 hours is reused. Feeds that fail to
download or parse are skipped and reported; the rest are merged, with the
first occurrence of each (feed URL, name) pair kept.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVarP(&fetchForce, "force", "f", false, "Ignore the cache and fetch every feed")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}

	res, err := c.Load(cmd.Context(), fetchForce)
	if err != nil {
		return err
	}

	if res.FromCache {
		st := c.CacheStatus()
		fmt.Printf("Loaded %d plugins from cache (fetched %s). Use --force to refresh.\n",
			res.Records, st.FetchedAt.Format("2006-01-02 15:04"))
		return nil
	}

	fmt.Printf("Fetched %d plugins from %d feeds\n", res.Records, len(res.Feeds))
	for _, st := range res.Feeds {
		mark := "✓"
		detail := fmt.Sprintf("%d kept", st.Kept)
		if st.Dropped > 0 {
			detail += fmt.Sprintf(", %d dropped", st.Dropped)
		}
		if st.Err != nil {
			mark = "✗"
			detail = st.Err.Error()
		}
		fmt.Printf("  %s %s (%s)\n", mark, st.URL, detail)
	}

	if n := len(res.Failures); n > 0 {
		fmt.Printf("\n%d feed(s) skipped\n", n)
	}
	return nil
}
