package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for kthresher.

To load completions:

Bash:
  $ source <(kthresher completion bash)
  # To load completions for each session, execute once:
  $ kthresher completion bash > /etc/bash_completion.d/kthresher

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ kthresher completion zsh > "${fpath[1]}/_kthresher"

Fish:
  $ kthresher completion fish | source
  # To load completions for each session, execute once:
  $ kthresher completion fish > ~/.config/fish/completions/kthresher.fish

PowerShell:
  PS> kthresher completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Run: func(cmd *cobra.Command, args []string) {
			switch args[0] {
			case "bash":
				root.GenBashCompletion(os.Stdout)
			case "zsh":
				root.GenZshCompletion(os.Stdout)
			case "fish":
				root.GenFishCompletion(os.Stdout, true)
			case "powershell":
				root.GenPowerShellCompletionWithDesc(os.Stdout)
			}
		},
	}
}
