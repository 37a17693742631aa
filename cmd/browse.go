package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samhoang/myrepo/internal/picker"
)

var browseFavorites bool

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Pick favorites interactively",
	Long: `Open an interactive list of the working plugins.

Keys: ↑/↓ navigate, space toggles a favorite (saved immediately),
/ searches by name, q quits.`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().BoolVar(&browseFavorites, "favorites", false, "Only show favorited plugins")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return errors.New("browse needs an interactive terminal; use 'myrepo fav' instead")
	}

	c, err := openCatalog()
	if err != nil {
		return err
	}
	if _, err := c.Load(cmd.Context(), false); err != nil {
		return err
	}

	items := picker.ItemsFromRecords(c.Search("", browseFavorites))
	final, err := picker.Run("Plugins", items, c.SetFavorite)
	if err != nil {
		return fmt.Errorf("picker failed: %w", err)
	}

	if n := final.Toggled(); n > 0 {
		fmt.Printf("Saved %d change(s); %d plugin(s) favorited\n", n, len(c.Favorites()))
	}
	return nil
}
