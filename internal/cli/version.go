package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/guiyumin/mediasnap/internal/core/platform"
	"github.com/guiyumin/mediasnap/internal/core/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and supported platforms",
	RunE: func(cmd *cobra.Command, args []string) error {
		platforms := lo.Map(platform.Supported, func(p platform.Platform, _ int) string {
			return p.DisplayName()
		})
		if jsonOutput {
			return printJSON(os.Stdout, jsonObject{
				"version":   version.Version,
				"os":        runtime.GOOS,
				"arch":      runtime.GOARCH,
				"platforms": platforms,
			})
		}
		fmt.Printf("mediasnap %s %s/%s\n", version.Version, runtime.GOOS, runtime.GOARCH)
		fmt.Printf("platforms: %s\n", strings.Join(platforms, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
