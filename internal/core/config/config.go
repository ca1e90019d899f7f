package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "mediasnap"

	// PartnerAPIKeyEnv overrides instagram.partner_api_key when set
	PartnerAPIKeyEnv = "MEDIASNAP_PARTNER_API_KEY"

	DefaultTimeout       = 15 * time.Second
	DefaultPort          = 8080
	DefaultMaxConcurrent = 10
	DefaultBufferSize    = 1 << 20
)

// ConfigDir returns the standard config directory for mediasnap.
// Windows: %APPDATA%\mediasnap\
// macOS/Linux: ~/.config/mediasnap/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/mediasnap/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// Language for messages (e.g., "en", "zh")
	Language string `yaml:"language,omitempty"`

	// Default output directory for `mediasnap stream`
	OutputDir string `yaml:"output_dir,omitempty"`

	// Timeout bounds every upstream request (e.g., "15s")
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// UserAgent sent to upstream services
	UserAgent string `yaml:"user_agent,omitempty"`

	Instagram InstagramConfig `yaml:"instagram,omitempty"`
	StarMaker StarMakerConfig `yaml:"starmaker,omitempty"`

	// Server configuration for `mediasnap serve`
	Server ServerConfig `yaml:"server,omitempty"`

	Relay RelayConfig `yaml:"relay,omitempty"`
	Log   LogConfig   `yaml:"log,omitempty"`
}

// InstagramConfig holds the Instagram resolution endpoints. Empty values
// use the built-in defaults.
type InstagramConfig struct {
	// PartnerAPIKey enables the partner API strategy
	PartnerAPIKey string `yaml:"partner_api_key,omitempty"`
	PartnerAPIURL string `yaml:"partner_api_url,omitempty"`
	AggregatorURL string `yaml:"aggregator_url,omitempty"`
	ScraperURL    string `yaml:"scraper_url,omitempty"`
}

// StarMakerConfig holds the CDN URL templates, with "{id}" standing for
// the recording id
type StarMakerConfig struct {
	CDNPrimary   string `yaml:"cdn_primary,omitempty"`
	CDNSecondary string `yaml:"cdn_secondary,omitempty"`
}

// ServerConfig holds HTTP server settings for `mediasnap serve`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8080)
	Port int `yaml:"port,omitempty"`

	// MaxConcurrent is the max number of concurrent resolution jobs (default: 10)
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// APIKey for authentication (optional, if set mutating requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`
}

// RelayConfig holds stream relay settings
type RelayConfig struct {
	// BufferSize is the read-ahead buffer in bytes (default: 1 MiB)
	BufferSize int `yaml:"buffer_size,omitempty"`
}

// LogConfig holds logging settings
type LogConfig struct {
	// Level is a logrus level name (default: info)
	Level string `yaml:"level,omitempty"`

	// JSON switches to the JSON formatter
	JSON bool `yaml:"json,omitempty"`
}

// NewLogger builds a logger from the log settings
func (l LogConfig) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if l.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// UpstreamTimeout returns the per-request timeout, falling back to the default
func (c *Config) UpstreamTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// ListenPort returns the server port, falling back to the default
func (c *Config) ListenPort() int {
	if c.Server.Port > 0 {
		return c.Server.Port
	}
	return DefaultPort
}

// JobConcurrency returns the job worker count, falling back to the default
func (c *Config) JobConcurrency() int {
	if c.Server.MaxConcurrent > 0 {
		return c.Server.MaxConcurrent
	}
	return DefaultMaxConcurrent
}

// RelayBufferSize returns the relay buffer size, falling back to the default
func (c *Config) RelayBufferSize() int {
	if c.Relay.BufferSize > 0 {
		return c.Relay.BufferSize
	}
	return DefaultBufferSize
}

// DefaultDownloadDir returns the default download directory
// Windows: ~/Downloads/mediasnap
// macOS: ~/Downloads/mediasnap
// Linux: ~/downloads
func DefaultDownloadDir() string {
	// Docker: use the default container path (users mount their volume here)
	if IsRunningInDocker() {
		return "/home/mediasnap/downloads"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./downloads"
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return filepath.Join(home, "Downloads", AppDirName)
	default:
		// Linux and others
		return filepath.Join(home, "downloads")
	}
}

// IsRunningInDocker detects if we're running inside a Docker container
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Language:  "en",
		OutputDir: DefaultDownloadDir(),
		Timeout:   DefaultTimeout,
		Server: ServerConfig{
			Port:          DefaultPort,
			MaxConcurrent: DefaultMaxConcurrent,
		},
		Relay: RelayConfig{BufferSize: DefaultBufferSize},
		Log:   LogConfig{Level: "info"},
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/mediasnap/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path and applies environment overrides
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.OutputDir = expandPath(cfg.OutputDir)
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if key := strings.TrimSpace(os.Getenv(PartnerAPIKeyEnv)); key != "" {
		c.Instagram.PartnerAPIKey = key
	}
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes to ensure cross-platform compatibility
// for configuration files.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/mediasnap/config.yml
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveTo(cfg, configPath)
}

// SaveTo writes the config to path, creating its directory
func SaveTo(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# mediasnap configuration file\n# Run 'mediasnap init' to regenerate with defaults\n\n"
	content := header + string(data)

	// The file may hold a partner API key
	return os.WriteFile(path, []byte(content), 0600)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
		cfg.applyEnv()
	}
	return cfg
}
