package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var iconsCmd = &cobra.Command{
	Use:   "icons",
	Short: "Download icons of favorited plugins",
	Long: `Download the IconUrl of every favorited plugin into the icon cache
directory (icon_cache by default). Icons already on disk are reused.`,
	RunE: runIcons,
}

func init() {
	rootCmd.AddCommand(iconsCmd)
}

func runIcons(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}

	report, err := c.FetchIcons(cmd.Context())
	if err != nil {
		return err
	}

	cached := len(report.Outcomes) - report.Downloaded() - len(report.Failed())
	fmt.Printf("Icons: %d downloaded, %d cached, %d failed\n",
		report.Downloaded(), cached, len(report.Failed()))
	for _, o := range report.Failed() {
		fmt.Printf("  ✗ %s: %v\n", o.Name, o.Err)
	}
	return nil
}
