package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guiyumin/mediasnap/internal/core/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mediasnap configuration",
	Long:  "View and modify mediasnap settings",
}

// mediasnap config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadOrDefault()
		bold := color.New(color.Bold)

		bold.Println("Current configuration:")
		for _, k := range configKeys {
			value := k.get(cfg)
			if k.secret {
				value = config.MaskSecret(value)
			}
			if value == "" {
				value = color.HiBlackString("(default)")
			}
			fmt.Printf("  %-26s %s\n", k.name, value)
		}
		fmt.Printf("\n  %-26s %s\n", "config file", config.SavePath())
	},
}

// mediasnap config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

// mediasnap config set KEY [VALUE] - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Secret keys (instagram.partner_api_key, server.api_key) are read from the
terminal without echo when the value is omitted.

Examples:
  mediasnap config set language zh
  mediasnap config set timeout 30s
  mediasnap config set instagram.partner_api_key`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		k := lookupConfigKey(key)
		if k == nil {
			exitWithError(unknownKeyError(key, "set"))
		}

		var value string
		if len(args) == 2 {
			value = args[1]
		} else if k.secret && term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Printf("%s: ", key)
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				exitWithError(fmt.Errorf("failed to read value: %w", err))
			}
			value = strings.TrimSpace(string(b))
		} else {
			exitWithError(fmt.Errorf("missing value for %s", key))
		}

		cfg := config.LoadOrDefault()
		if err := k.set(cfg, value); err != nil {
			exitWithError(err)
		}
		if err := config.Save(cfg); err != nil {
			exitWithError(fmt.Errorf("failed to save config: %w", err))
		}

		if k.secret {
			value = config.MaskSecret(value)
		}
		fmt.Printf("Set %s = %s\n", key, value)
	},
}

// mediasnap config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value from config.yml.

Examples:
  mediasnap config get language
  mediasnap config get server.port`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		k := lookupConfigKey(args[0])
		if k == nil {
			exitWithError(unknownKeyError(args[0], "get"))
		}
		fmt.Println(k.get(config.LoadOrDefault()))
	},
}

// mediasnap config unset KEY - reset a config value to its default
var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Unset a configuration value",
	Long: `Unset (clear) a configuration value in config.yml so the default applies.

Examples:
  mediasnap config unset instagram.partner_api_key`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		k := lookupConfigKey(key)
		if k == nil {
			exitWithError(unknownKeyError(key, "unset"))
		}

		cfg := config.LoadOrDefault()
		k.unset(cfg)
		if err := config.Save(cfg); err != nil {
			exitWithError(fmt.Errorf("failed to save config: %w", err))
		}

		fmt.Printf("Unset %s\n", key)
	},
}

// configKey binds a dotted key name to a config field
type configKey struct {
	name   string
	desc   string
	secret bool
	get    func(*config.Config) string
	set    func(*config.Config, string) error
	unset  func(*config.Config)
}

func stringKey(name, desc string, secret bool, field func(*config.Config) *string) configKey {
	return configKey{
		name:   name,
		desc:   desc,
		secret: secret,
		get:    func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error {
			*field(c) = v
			return nil
		},
		unset: func(c *config.Config) { *field(c) = "" },
	}
}

func intKey(name, desc string, field func(*config.Config) *int) configKey {
	return configKey{
		name: name,
		desc: desc,
		get: func(c *config.Config) string {
			if v := *field(c); v != 0 {
				return strconv.Itoa(v)
			}
			return ""
		},
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid number for %s: %s", name, v)
			}
			*field(c) = n
			return nil
		},
		unset: func(c *config.Config) { *field(c) = 0 },
	}
}

var configKeys = []configKey{
	stringKey("language", "Language code (en, zh)", false, func(c *config.Config) *string { return &c.Language }),
	stringKey("output_dir", "Default directory for `mediasnap stream`", false, func(c *config.Config) *string { return &c.OutputDir }),
	{
		name: "timeout",
		desc: "Upstream request timeout (e.g., 15s)",
		get: func(c *config.Config) string {
			if c.Timeout > 0 {
				return c.Timeout.String()
			}
			return ""
		},
		set: func(c *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid duration for timeout: %s", v)
			}
			c.Timeout = d
			return nil
		},
		unset: func(c *config.Config) { c.Timeout = 0 },
	},
	stringKey("user_agent", "User-Agent sent upstream", false, func(c *config.Config) *string { return &c.UserAgent }),
	stringKey("instagram.partner_api_key", "Instagram partner API key", true, func(c *config.Config) *string { return &c.Instagram.PartnerAPIKey }),
	stringKey("instagram.partner_api_url", "Instagram partner API endpoint", false, func(c *config.Config) *string { return &c.Instagram.PartnerAPIURL }),
	stringKey("instagram.aggregator_url", "Instagram aggregator endpoint", false, func(c *config.Config) *string { return &c.Instagram.AggregatorURL }),
	stringKey("instagram.scraper_url", "Instagram scraper endpoint", false, func(c *config.Config) *string { return &c.Instagram.ScraperURL }),
	stringKey("starmaker.cdn_primary", "Primary StarMaker CDN template", false, func(c *config.Config) *string { return &c.StarMaker.CDNPrimary }),
	stringKey("starmaker.cdn_secondary", "Secondary StarMaker CDN template", false, func(c *config.Config) *string { return &c.StarMaker.CDNSecondary }),
	intKey("server.port", "Server listen port", func(c *config.Config) *int { return &c.Server.Port }),
	intKey("server.max_concurrent", "Max concurrent resolution jobs", func(c *config.Config) *int { return &c.Server.MaxConcurrent }),
	stringKey("server.api_key", "Server API key", true, func(c *config.Config) *string { return &c.Server.APIKey }),
	intKey("relay.buffer_size", "Relay read-ahead buffer in bytes", func(c *config.Config) *int { return &c.Relay.BufferSize }),
	stringKey("log.level", "Log level (debug, info, warn, error)", false, func(c *config.Config) *string { return &c.Log.Level }),
	{
		name: "log.json",
		desc: "Log as JSON (true, false)",
		get:  func(c *config.Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean for log.json: %s", v)
			}
			c.Log.JSON = b
			return nil
		},
		unset: func(c *config.Config) { c.Log.JSON = false },
	},
}

func lookupConfigKey(name string) *configKey {
	for i := range configKeys {
		if configKeys[i].name == name {
			return &configKeys[i]
		}
	}
	return nil
}

func unknownKeyError(key, verb string) error {
	return fmt.Errorf("unknown config key: %s\nRun 'mediasnap config %s --help' or 'mediasnap config show' to see supported keys", key, verb)
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)

	rootCmd.AddCommand(configCmd)
}
