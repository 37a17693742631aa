package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samhoang/myrepo/internal/catalog"
	"github.com/samhoang/myrepo/internal/plugin"
)

var favCmd = &cobra.Command{
	Use:     "fav",
	Aliases: []string{"favorite"},
	Short:   "Manage favorited plugins",
	Long: `Mark plugins for publishing. Changes are written to MyRepo.json immediately.

Examples:
  myrepo fav add 3f2a9c1d
  myrepo fav remove 3f2a9c1d
  myrepo fav toggle 3f2a 77b0
  myrepo fav list`,
}

var favAddCmd = &cobra.Command{
	Use:   "add <hash>...",
	Short: "Favorite plugins",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFavorites(cmd, args, func(c *catalog.Catalog, hash string) (bool, error) {
			return true, c.SetFavorite(hash, true)
		})
	},
}

var favRemoveCmd = &cobra.Command{
	Use:     "remove <hash>...",
	Aliases: []string{"rm"},
	Short:   "Unfavorite plugins",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFavorites(cmd, args, func(c *catalog.Catalog, hash string) (bool, error) {
			return false, c.SetFavorite(hash, false)
		})
	},
}

var favToggleCmd = &cobra.Command{
	Use:   "toggle <hash>...",
	Short: "Flip the favorite flag of plugins",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFavorites(cmd, args, func(c *catalog.Catalog, hash string) (bool, error) {
			return c.Toggle(hash)
		})
	},
}

var favListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorited plugins, including ones no feed serves any more",
	RunE:  runFavList,
}

func init() {
	favCmd.AddCommand(favAddCmd)
	favCmd.AddCommand(favRemoveCmd)
	favCmd.AddCommand(favToggleCmd)
	favCmd.AddCommand(favListCmd)
	rootCmd.AddCommand(favCmd)
}

func setFavorites(cmd *cobra.Command, args []string, apply func(*catalog.Catalog, string) (bool, error)) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	if _, err := c.Load(cmd.Context(), false); err != nil {
		return err
	}

	for _, arg := range args {
		hash, err := resolveHash(c, arg)
		if err != nil {
			return err
		}
		on, err := apply(c, hash)
		if err != nil {
			return err
		}

		name := hash
		if r, ok := c.Find(hash); ok {
			name = r.Name()
		}
		if on {
			fmt.Printf("★ %s\n", name)
		} else {
			fmt.Printf("☆ %s\n", name)
		}
	}
	return nil
}

func runFavList(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	if _, err := c.Load(cmd.Context(), false); err != nil {
		return err
	}

	ids := c.Favorites()
	if len(ids) == 0 {
		fmt.Println("No favorites yet. Use 'myrepo browse' or 'myrepo fav add <hash>'.")
		return nil
	}

	var present []plugin.Record
	var missing []string
	for _, id := range ids {
		if r, ok := c.Find(id); ok {
			present = append(present, r)
		} else {
			missing = append(missing, id)
		}
	}

	if len(present) > 0 {
		renderRecords(os.Stdout, present)
	}
	if len(missing) > 0 {
		fmt.Printf("\nNot served by any feed (skipped on publish):\n")
		for _, id := range missing {
			fmt.Printf("  %s\n", id)
		}
	}
	return nil
}
