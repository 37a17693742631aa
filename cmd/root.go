package cmd

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samhoang/myrepo/internal/catalog"
	"github.com/samhoang/myrepo/internal/config"
	myerrors "github.com/samhoang/myrepo/internal/errors"
)

var Version = "dev"

var (
	flagDir     string
	flagVerbose bool
	flagQuiet   bool
	flagLogJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "myrepo",
	Short: "Curate and publish a personal plugin repository",
	Long: `myrepo fetches plugin lists from the feeds named in RepoIndex.txt, keeps a
24 hour local cache, lets you mark favorites, and publishes the favorited
plugins as PluginMaster.json pushed with git.

The data directory (settings.json, caches, the manifest) is the current
directory unless --dir or MYREPO_DIR points elsewhere.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	Run:               runRoot,
}

func runRoot(cmd *cobra.Command, args []string) {
	paths, err := config.ResolvePaths(flagDir)
	if err != nil {
		cmd.Help()
		return
	}

	if !paths.IsInitialized() {
		fmt.Println("myrepo - personal plugin repository curator")
		fmt.Println()
		fmt.Printf("No settings.json in %s. Get started with:\n", paths.Dir)
		fmt.Println()
		fmt.Println("  myrepo init      Create settings.json and RepoIndex.txt")
		fmt.Println("  myrepo --help    Show all commands")
		return
	}

	cmd.Help()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	if flagVerbose && flagQuiet {
		return errors.New("--verbose and --quiet are mutually exclusive")
	}

	log.SetOutput(os.Stderr)
	switch {
	case flagVerbose:
		log.SetLevel(log.DebugLevel)
	case flagQuiet:
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	if flagLogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	}
	return nil
}

// openCatalog resolves the data directory and opens the catalog in it
func openCatalog() (*catalog.Catalog, error) {
	paths, err := config.ResolvePaths(flagDir)
	if err != nil {
		return nil, err
	}

	c, err := catalog.Open(paths, catalog.Options{})
	if errors.Is(err, myerrors.ErrNotInitialized) {
		return nil, fmt.Errorf("%w (data directory %s)", err, paths.Dir)
	}
	return c, err
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "d", "", "Data directory (default $MYREPO_DIR or the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log debug details")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Log as JSON")
}
