package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/myrepo/internal/catalog"
	"github.com/samhoang/myrepo/internal/config"
	myerrors "github.com/samhoang/myrepo/internal/errors"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create settings.json and RepoIndex.txt in the data directory",
	Long: `Initialize a data directory.

This command:
1. Creates settings.json with default file names
2. Creates an empty RepoIndex.txt if none exists

Add one feed URL per line to RepoIndex.txt, then run 'myrepo fetch'.
The data directory is usually a clone of the git repository you publish to.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reset settings.json to defaults")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	paths, err := config.ResolvePaths(flagDir)
	if err != nil {
		return err
	}

	if err := catalog.Init(paths, initForce); err != nil {
		if errors.Is(err, myerrors.ErrAlreadyExists) {
			return fmt.Errorf("%w in %s\n\nUse --force to reset settings.json", err, paths.Dir)
		}
		return err
	}

	fmt.Printf("Initialized %s\n", paths.Dir)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add feed URLs to %s\n", config.DefaultRepoIndex)
	fmt.Println("  2. myrepo fetch")
	fmt.Println("  3. myrepo browse (or myrepo fav add <hash>)")
	fmt.Println("  4. myrepo publish")
	return nil
}
