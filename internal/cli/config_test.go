package cli

import (
	"testing"
	"time"

	"github.com/guiyumin/mediasnap/internal/core/config"
)

func TestConfigKeysRoundTrip(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(*config.Config) bool
	}{
		{"language", "zh", func(c *config.Config) bool { return c.Language == "zh" }},
		{"timeout", "30s", func(c *config.Config) bool { return c.Timeout == 30*time.Second }},
		{"instagram.partner_api_key", "pk-123", func(c *config.Config) bool { return c.Instagram.PartnerAPIKey == "pk-123" }},
		{"starmaker.cdn_secondary", "https://cdn.example.com/{id}.mp4", func(c *config.Config) bool {
			return c.StarMaker.CDNSecondary == "https://cdn.example.com/{id}.mp4"
		}},
		{"server.port", "9000", func(c *config.Config) bool { return c.Server.Port == 9000 }},
		{"relay.buffer_size", "262144", func(c *config.Config) bool { return c.Relay.BufferSize == 262144 }},
		{"log.json", "true", func(c *config.Config) bool { return c.Log.JSON }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			k := lookupConfigKey(tt.key)
			if k == nil {
				t.Fatalf("unknown key %s", tt.key)
			}

			cfg := &config.Config{}
			if err := k.set(cfg, tt.value); err != nil {
				t.Fatalf("set error: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("set(%q) did not update the field", tt.value)
			}
			if got := k.get(cfg); got != tt.value {
				t.Errorf("get() = %q, want %q", got, tt.value)
			}

			k.unset(cfg)
			if tt.check(cfg) {
				t.Error("unset() left the value in place")
			}
		})
	}
}

func TestConfigKeysRejectBadValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"timeout", "soon"},
		{"timeout", "-5s"},
		{"server.port", "eighty"},
		{"server.max_concurrent", "-1"},
		{"log.json", "maybe"},
	}

	for _, tt := range tests {
		k := lookupConfigKey(tt.key)
		if k == nil {
			t.Fatalf("unknown key %s", tt.key)
		}
		if err := k.set(&config.Config{}, tt.value); err == nil {
			t.Errorf("set(%s, %q) succeeded, want error", tt.key, tt.value)
		}
	}
}

func TestLookupUnknownKey(t *testing.T) {
	if lookupConfigKey("twitter.auth_token") != nil {
		t.Error("expected nil for an unknown key")
	}
}

func TestConfigKeysAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range configKeys {
		if seen[k.name] {
			t.Errorf("duplicate key %s", k.name)
		}
		seen[k.name] = true
	}
}
