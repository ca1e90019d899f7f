package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guiyumin/mediasnap/internal/core/config"
)

var initDefaults bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the mediasnap config file",
	Long: `Walk through language, output directory, Instagram partner key and
upstream timeout, then write config.yml. An existing config is loaded as the
starting point.

Use --defaults to write a default config without prompting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if initDefaults {
			if err := config.Init(); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", color.GreenString("Created"), config.SavePath())
			return nil
		}

		cfg, err := config.RunInitWizard()
		if err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}

		fmt.Printf("\n%s %s\n", color.GreenString("Saved"), config.SavePath())
		if cfg.Instagram.PartnerAPIKey == "" {
			fmt.Println(hintStyle.Render("  No partner key set; Instagram resolution skips the partner API."))
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "write defaults without the wizard (fails if a config exists)")
	rootCmd.AddCommand(initCmd)
}
