package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samhoang/myrepo/internal/cache"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for myrepo. Plugin hashes complete from
the local cache.

Bash:
  $ source <(myrepo completion bash)

Zsh:
  $ myrepo completion zsh > "${fpath[1]}/_myrepo"

Fish:
  $ myrepo completion fish > ~/.config/fish/completions/myrepo.fish

PowerShell:
  PS> myrepo completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

// completeHashes offers identifiers from a fresh cache only, so completion
// never triggers a network fetch
func completeHashes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	c, err := openCatalog()
	if err != nil || !c.CacheStatus().Fresh(cache.MaxAge) {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if _, err := c.Load(cmd.Context(), false); err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var out []string
	for _, r := range c.Records() {
		if strings.HasPrefix(r.Hash(), toComplete) {
			out = append(out, r.Hash()+"\t"+r.Name())
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)

	showCmd.ValidArgsFunction = completeHashes
	favAddCmd.ValidArgsFunction = completeHashes
	favRemoveCmd.ValidArgsFunction = completeHashes
	favToggleCmd.ValidArgsFunction = completeHashes
}
