package cli

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guiyumin/mediasnap/internal/core/i18n"
)

// completionGenerators writes the completion script for each shell
var completionGenerators = map[string]func(io.Writer) error{
	"bash":       rootCmd.GenBashCompletion,
	"zsh":        rootCmd.GenZshCompletion,
	"fish":       func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
	"powershell": rootCmd.GenPowerShellCompletion,
}

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Generate shell completion script",
	Long: `Generate a completion script. Config keys, batch files and languages
are completed as well as commands.

  bash:        source <(mediasnap completion bash)
  zsh:         mediasnap completion zsh > "${fpath[1]}/_mediasnap"
  fish:        mediasnap completion fish > ~/.config/fish/completions/mediasnap.fish
  powershell:  mediasnap completion powershell >> $PROFILE`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: shellNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, ok := completionGenerators[args[0]]
		if !ok {
			return cmd.Help()
		}
		return gen(os.Stdout)
	},
}

func shellNames() []string {
	names := make([]string, 0, len(completionGenerators))
	for name := range completionGenerators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	rootCmd.AddCommand(completionCmd)

	configGetCmd.ValidArgsFunction = completeConfigKey
	configSetCmd.ValidArgsFunction = completeConfigKey
	configUnsetCmd.ValidArgsFunction = completeConfigKey

	rootCmd.MarkFlagFilename("file", "txt")
	streamCmd.MarkFlagFilename("output")
}

// completeConfigKey completes the key of get/set/unset and, for set, the
// value of keys with a closed set of values
func completeConfigKey(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		var completions []string
		for _, k := range configKeys {
			if strings.HasPrefix(k.name, toComplete) {
				completions = append(completions, k.name+"\t"+k.desc)
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	case 1:
		if cmd == configSetCmd {
			return configValueChoices(args[0], toComplete), cobra.ShellCompDirectiveNoFileComp
		}
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func configValueChoices(key, toComplete string) []string {
	var choices []string
	switch key {
	case "language":
		for _, lang := range i18n.SupportedLanguages {
			choices = append(choices, lang.Code+"\t"+lang.Name)
		}
	case "log.json":
		choices = []string{"true", "false"}
	case "log.level":
		choices = []string{"debug", "info", "warn", "error"}
	}

	var out []string
	for _, c := range choices {
		if strings.HasPrefix(c, toComplete) {
			out = append(out, c)
		}
	}
	return out
}
