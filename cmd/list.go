package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	listFavorites bool
	listSearch    string
	listJSON      bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List plugins in the working list",
	Long: `List plugins from the cache, fetching first when the cache is stale.

Examples:
  myrepo list
  myrepo list --favorites
  myrepo list --search chat
  myrepo list --favorites --json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false, "Only favorited plugins")
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Case-insensitive name filter")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print records as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	if _, err := c.Load(cmd.Context(), false); err != nil {
		return err
	}

	records := c.Search(listSearch, listFavorites)

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if records == nil {
			return enc.Encode([]any{})
		}
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No plugins found")
		return nil
	}

	renderRecords(os.Stdout, records)
	fmt.Printf("\n%d plugin(s), %d favorited overall\n", len(records), len(c.Favorites()))
	return nil
}
