// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads the engine configuration from a YAML file with
// flag overrides.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the engine configuration.
type Config struct {
	// ServerHost is this deployment's hostname, embedded in every signed
	// assertion.
	ServerHost string `koanf:"server_host"`

	// CookieDomain scopes the session cookie.
	CookieDomain string `koanf:"cookie_domain"`

	// DatabaseURL is the PostgreSQL DSN.
	DatabaseURL string `koanf:"database_url"`

	// Redis, when set, keeps the login throttle in Redis instead of
	// PostgreSQL.
	Redis RedisConfig `koanf:"redis"`

	// SigningKeyPath is the PEM file holding the active RSA private key.
	SigningKeyPath string `koanf:"signing_key_path"`

	// ActiveKeyID is the current signing keypair version.
	ActiveKeyID int `koanf:"active_key_id"`

	// RetiredKeyIDs lists compromised or rotated-out key versions that
	// must be rejected.
	RetiredKeyIDs []int `koanf:"retired_key_ids"`

	// TrustedProxies are the CIDRs whose X-Forwarded-For entries may be
	// skipped when resolving the client IP.
	TrustedProxies []string `koanf:"trusted_proxies"`

	// RelayFeedURL serves the private-relay IP ranges; empty disables
	// the feed.
	RelayFeedURL string `koanf:"relay_feed_url"`

	// RelayFeedSchedule is the cron spec for feed refreshes.
	RelayFeedSchedule string `koanf:"relay_feed_schedule"`

	// Origins is the ordered CORS rule list; the last matching rule
	// wins.
	Origins []OriginRule `koanf:"origins"`

	// Names configures the username policy.
	Names NamesConfig `koanf:"names"`

	// Federated configures the fallback identity-token verifier; an
	// empty endpoint disables federated logins.
	Federated FederatedConfig `koanf:"federated"`

	// BcryptCost is the cost factor for new password hashes.
	BcryptCost int `koanf:"bcrypt_cost"`

	// ObservabilityAddr is the /metrics and health probe listen address.
	ObservabilityAddr string `koanf:"observability_addr"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`
}

// RedisConfig configures the optional Redis throttle store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
}

// FederatedConfig points at an identity provider's tokeninfo endpoint.
type FederatedConfig struct {
	Endpoint string `koanf:"endpoint"`
	Audience string `koanf:"audience"`
}

// OriginRule is one CORS table entry.
type OriginRule struct {
	Pattern string `koanf:"pattern"`
	Prefix  string `koanf:"prefix"`
}

// NamesConfig is the username policy.
type NamesConfig struct {
	ReservedPrefix string   `koanf:"reserved_prefix"`
	MaxLength      int      `koanf:"max_length"`
	BannedWords    []string `koanf:"banned_words"`
	BannedPatterns []string `koanf:"banned_patterns"`
}

// Load reads the config file and applies flag overrides. flags may be
// nil. DATABASE_URL from the environment overrides an empty database_url
// so deployments can keep the DSN out of the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := &Config{
		ActiveKeyID:       1,
		RelayFeedSchedule: "@every 6h",
		ObservabilityAddr: "127.0.0.1:9100",
		LogFormat:         "json",
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.ServerHost == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server_host is required")
	}
	if c.ActiveKeyID < 1 {
		return oops.Code("CONFIG_INVALID").Errorf("active_key_id must be positive")
	}
	return nil
}
