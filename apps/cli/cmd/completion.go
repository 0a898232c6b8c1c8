package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for courier.

Bash:
  $ source <(courier completion bash)

Zsh:
  $ courier completion zsh > "${fpath[1]}/_courier"

Fish:
  $ courier completion fish > ~/.config/fish/completions/courier.fish

PowerShell:
  PS> courier completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  requireArgs(cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(w, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
		return nil
	},
}
