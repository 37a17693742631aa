package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/myrepo/internal/publish"
)

var publishNoPush bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Write PluginMaster.json from favorites and push it",
	Long: `Write every favorited plugin of the working list to the manifest, then run
git add, git commit -m "update Repo" and git push in the data directory.

Favorites no feed serves any more are skipped. Git failures are reported as
warnings; the manifest is written either way.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishNoPush, "no-push", false, "Write the manifest only, skip git")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}

	res, err := c.Publish(cmd.Context(), publish.Options{SkipVCS: publishNoPush})
	if err != nil {
		if res != nil {
			return fmt.Errorf("publish stopped while %s: %w", res.State, err)
		}
		return err
	}

	fmt.Printf("Wrote %d plugin(s) to %s\n", len(res.Published), res.Manifest)
	printNames("New or changed", res.Changed)
	printNames("Dropped", res.Dropped)
	if len(res.Missing) > 0 {
		fmt.Printf("Skipped %d favorite(s) no feed serves any more\n", len(res.Missing))
	}

	if res.VCS.Skipped {
		fmt.Println("Git skipped (--no-push)")
		return nil
	}

	fmt.Printf("git add: %s  git commit: %s  git push: %s\n",
		okMark(res.VCS.Staged), okMark(res.VCS.Committed), okMark(res.VCS.Pushed))
	if res.VCS.Warning != nil {
		fmt.Printf("⚠ %v\n", res.VCS.Warning)
	}
	return nil
}

func printNames(label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", label, len(names))
	for _, n := range names {
		fmt.Printf("  - %s\n", n)
	}
}

func okMark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
