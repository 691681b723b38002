package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Daemon     DaemonConfig     `koanf:"daemon"`
	Cache      CacheConfig      `koanf:"cache"`
	Prefetch   PrefetchConfig   `koanf:"prefetch"`
	Protocol   ProtocolConfig   `koanf:"protocol"`
	Sources    SourcesConfig    `koanf:"sources"`
	Summarizer SummarizerConfig `koanf:"summarizer"`
	Prompts    PromptsConfig    `koanf:"prompts"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type DaemonConfig struct {
	DataPath            string `koanf:"data_path"`
	ShutdownTimeout     string `koanf:"shutdown_timeout"`
	HealthCheckInterval string `koanf:"health_check_interval"`
	LockTimeout         string `koanf:"lock_timeout"`
	LockRetry           string `koanf:"lock_retry"`
}

type CacheConfig struct {
	SourceTTL       string `koanf:"source_ttl"`
	SummaryTTL      string `koanf:"summary_ttl"`
	Retention       string `koanf:"retention"`
	CleanupSchedule string `koanf:"cleanup_schedule"`
}

type PrefetchConfig struct {
	Interval           string `koanf:"interval"`
	AggressiveInterval string `koanf:"aggressive_interval"`
	Lookahead          string `koanf:"lookahead"`
	MaxMeetings        int    `koanf:"max_meetings"`
	FetchTimeout       string `koanf:"fetch_timeout"`
	QuietHoursStart    int    `koanf:"quiet_hours_start"`
	QuietHoursEnd      int    `koanf:"quiet_hours_end"`
	ShutdownTimeout    string `koanf:"shutdown_timeout"`
}

type ProtocolConfig struct {
	ConfigPath     string `koanf:"config_path"`
	StartupTimeout string `koanf:"startup_timeout"`
	CallTimeout    string `koanf:"call_timeout"`
}

type SourcesConfig struct {
	Slack SlackSourceConfig `koanf:"slack"`
	Jira  JiraSourceConfig  `koanf:"jira"`
}

type SlackSourceConfig struct {
	Enabled    bool   `koanf:"enabled"`
	UserToken  string `koanf:"user_token"`
	MaxResults int    `koanf:"max_results"`
}

type JiraSourceConfig struct {
	Project    string `koanf:"project"`
	MaxResults int    `koanf:"max_results"`
}

type SummarizerConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	APIKey   string `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
	Timeout  string `koanf:"timeout"`
}

type PromptsConfig struct {
	OverridesPath string `koanf:"overrides_path"`
}

const (
	DefaultServerPort            = 8321
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "10s"
	DefaultServerWriteTimeout    = "30s"
	DefaultServerIdleTimeout     = "60s"
	DefaultServerShutdownTimeout = "5s"

	DefaultDaemonShutdownTimeout     = "30s"
	DefaultDaemonHealthCheckInterval = "30s"
	DefaultDaemonLockTimeout         = "10s"
	DefaultDaemonLockRetry           = "100ms"

	DefaultCacheSourceTTL       = "4h"
	DefaultCacheSummaryTTL      = "6h"
	DefaultCacheRetention       = "24h"
	DefaultCacheCleanupSchedule = "0 4 * * *"

	DefaultPrefetchInterval           = "10m"
	DefaultPrefetchAggressiveInterval = "60s"
	DefaultPrefetchLookahead          = "2h"
	DefaultPrefetchMaxMeetings        = 5
	DefaultPrefetchFetchTimeout       = "45s"
	DefaultPrefetchQuietHoursStart    = 22
	DefaultPrefetchQuietHoursEnd      = 6
	DefaultPrefetchShutdownTimeout    = "30s"

	DefaultProtocolStartupTimeout = "10s"
	DefaultProtocolCallTimeout    = "30s"

	DefaultSlackMaxResults = 10
	DefaultJiraMaxResults  = 15

	DefaultSummarizerProvider = "openai"
	DefaultSummarizerModel    = "gpt-4o-mini"
	DefaultSummarizerTimeout  = "60s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                   DefaultServerPort,
		"server.log_level":              DefaultServerLogLevel,
		"server.read_timeout":           DefaultServerReadTimeout,
		"server.write_timeout":          DefaultServerWriteTimeout,
		"server.idle_timeout":           DefaultServerIdleTimeout,
		"server.shutdown_timeout":       DefaultServerShutdownTimeout,
		"daemon.data_path":              filepath.Join(os.Getenv("HOME"), ".prepd"),
		"daemon.shutdown_timeout":       DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":  DefaultDaemonHealthCheckInterval,
		"daemon.lock_timeout":           DefaultDaemonLockTimeout,
		"daemon.lock_retry":             DefaultDaemonLockRetry,
		"cache.source_ttl":              DefaultCacheSourceTTL,
		"cache.summary_ttl":             DefaultCacheSummaryTTL,
		"cache.retention":               DefaultCacheRetention,
		"cache.cleanup_schedule":        DefaultCacheCleanupSchedule,
		"prefetch.interval":             DefaultPrefetchInterval,
		"prefetch.aggressive_interval":  DefaultPrefetchAggressiveInterval,
		"prefetch.lookahead":            DefaultPrefetchLookahead,
		"prefetch.max_meetings":         DefaultPrefetchMaxMeetings,
		"prefetch.fetch_timeout":        DefaultPrefetchFetchTimeout,
		"prefetch.quiet_hours_start":    DefaultPrefetchQuietHoursStart,
		"prefetch.quiet_hours_end":      DefaultPrefetchQuietHoursEnd,
		"prefetch.shutdown_timeout":     DefaultPrefetchShutdownTimeout,
		"protocol.config_path":          filepath.Join(os.Getenv("HOME"), ".prepd", "tool.json"),
		"protocol.startup_timeout":      DefaultProtocolStartupTimeout,
		"protocol.call_timeout":         DefaultProtocolCallTimeout,
		"sources.slack.max_results":     DefaultSlackMaxResults,
		"sources.jira.max_results":      DefaultJiraMaxResults,
		"summarizer.provider":           DefaultSummarizerProvider,
		"summarizer.model":              DefaultSummarizerModel,
		"summarizer.timeout":            DefaultSummarizerTimeout,
		"prompts.overrides_path":        filepath.Join(os.Getenv("HOME"), ".prepd", "prompts.json"),
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".prepd", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("PREPD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PREPD_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	if cfg.Sources.Slack.UserToken == "" {
		cfg.Sources.Slack.UserToken = os.Getenv("SLACK_USER_TOKEN")
	}
	if cfg.Summarizer.APIKey == "" {
		switch cfg.Summarizer.Provider {
		case "openai":
			cfg.Summarizer.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.Summarizer.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			cfg.Summarizer.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	return &cfg, nil
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	for _, p := range []*string{
		&cfg.Daemon.DataPath,
		&cfg.Protocol.ConfigPath,
		&cfg.Prompts.OverridesPath,
	} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		if expanded != "" {
			*p = expanded
		}
	}

	return nil
}

// ExpandPath resolves environment variables and "~/" home shortcuts.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(trimmed)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if expanded == "~" {
			expanded = home
		} else {
			expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~/"))
		}
	}

	return filepath.Clean(expanded), nil
}
