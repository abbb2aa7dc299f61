package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "CHANNEL_RELAY_CONFIG"
	databasePathEnv   = "DATABASE_PATH"
	logLevelEnv       = "LOG_LEVEL"
	logPathEnv        = "LOG_PATH"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	geminiModelEnv    = "GEMINI_MODEL"
	rewritePromptEnv  = "REWRITE_PROMPT"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	targetChatIDEnv   = "TARGET_CHANNEL_ID"
	channelLinkEnv    = "CHANNEL_LINK"
	rssFeedsEnv       = "RSS_FEEDS"
	sourceChannelsEnv = "TELEGRAM_SOURCE_CHANNELS"
	postsPerDayEnv    = "POSTS_PER_DAY"
	jitterMinutesEnv  = "SCHEDULE_JITTER_MINUTES"
	maxPerSourceEnv   = "MAX_POSTS_TO_FETCH"
	adminAddrEnv      = "ADMIN_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sources  SourcesConfig  `yaml:"sources"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Telegram TelegramConfig `yaml:"telegram"`
	Admin    AdminConfig    `yaml:"admin"`
}

// LoggingConfig controls verbosity and the optional log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DatabaseConfig locates the sqlite publication ledger.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig defines the publication cadence and ledger retention.
type ScheduleConfig struct {
	PostsPerDay     int    `yaml:"postsPerDay"`
	JitterMinutes   int    `yaml:"jitterMinutes"`
	RetentionDays   int    `yaml:"retentionDays"`
	MaintenanceSpec string `yaml:"maintenanceSpec"`
}

// SourcesConfig enumerates the upstreams to harvest.
type SourcesConfig struct {
	Feeds           []string `yaml:"feeds"`
	Channels        []string `yaml:"channels"`
	MaxPerSource    int      `yaml:"maxPerSource"`
	ExtractFullText bool     `yaml:"extractFullText"`
	MinBodyRunes    int      `yaml:"minBodyRunes"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"apiKey"`
	RewritePrompt string `yaml:"rewritePrompt"`
}

// TelegramConfig wires all data required for publishing and for
// reading public channel previews.
type TelegramConfig struct {
	BotToken       string `yaml:"botToken"`
	TargetChatID   string `yaml:"targetChatId"`
	ChannelLink    string `yaml:"channelLink"`
	PreviewBaseURL string `yaml:"previewBaseUrl"`
}

// AdminConfig enables the local admin API when an address is set.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// MissingError reports required settings that are still absent after
// file, environment and defaults were all applied.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "config: missing required settings: " + strings.Join(e.Keys, ", ")
}

// Validate checks the credentials the pipeline cannot run without.
func (c Config) Validate() error {
	var missing []string
	if c.Gemini.APIKey == "" {
		missing = append(missing, geminiAPIKeyEnv)
	}
	if c.Telegram.BotToken == "" {
		missing = append(missing, telegramTokenEnv)
	}
	if c.Telegram.TargetChatID == "" {
		missing = append(missing, targetChatIDEnv)
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return nil
}

// Load reads YAML configuration (if present) and applies environment
// overrides. An unreadable or unparsable file falls back to defaults;
// only Validate failures are fatal to the caller.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logPathEnv); v != "" {
		c.Logging.File = filepath.Join(v, "channelrelay.log")
	}

	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv(rewritePromptEnv); v != "" {
		c.Gemini.RewritePrompt = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(targetChatIDEnv); v != "" {
		c.Telegram.TargetChatID = v
	}
	if v := os.Getenv(channelLinkEnv); v != "" {
		c.Telegram.ChannelLink = v
	}

	if v := os.Getenv(rssFeedsEnv); v != "" {
		c.Sources.Feeds = splitList(v)
	}
	if v := os.Getenv(sourceChannelsEnv); v != "" {
		c.Sources.Channels = splitList(v)
	}
	if n, ok := intEnv(maxPerSourceEnv); ok {
		c.Sources.MaxPerSource = n
	}

	if n, ok := intEnv(postsPerDayEnv); ok {
		c.Schedule.PostsPerDay = n
	}
	if n, ok := intEnv(jitterMinutesEnv); ok {
		c.Schedule.JitterMinutes = n
	}

	if v := os.Getenv(adminAddrEnv); v != "" {
		c.Admin.Addr = v
	}
}

func intEnv(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Printf("config: ignoring %s=%q: not a non-negative integer", name, raw)
		return 0, false
	}
	return n, true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.Schedule.PostsPerDay > 0 {
		base.Schedule.PostsPerDay = override.Schedule.PostsPerDay
	}
	if override.Schedule.JitterMinutes > 0 {
		base.Schedule.JitterMinutes = override.Schedule.JitterMinutes
	}
	if override.Schedule.RetentionDays > 0 {
		base.Schedule.RetentionDays = override.Schedule.RetentionDays
	}
	if override.Schedule.MaintenanceSpec != "" {
		base.Schedule.MaintenanceSpec = override.Schedule.MaintenanceSpec
	}

	if len(override.Sources.Feeds) > 0 {
		base.Sources.Feeds = override.Sources.Feeds
	}
	if len(override.Sources.Channels) > 0 {
		base.Sources.Channels = override.Sources.Channels
	}
	if override.Sources.MaxPerSource > 0 {
		base.Sources.MaxPerSource = override.Sources.MaxPerSource
	}
	if override.Sources.ExtractFullText {
		base.Sources.ExtractFullText = true
	}
	if override.Sources.MinBodyRunes > 0 {
		base.Sources.MinBodyRunes = override.Sources.MinBodyRunes
	}

	if override.Gemini.Endpoint != "" {
		base.Gemini.Endpoint = override.Gemini.Endpoint
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.APIKey != "" {
		base.Gemini.APIKey = override.Gemini.APIKey
	}
	if override.Gemini.RewritePrompt != "" {
		base.Gemini.RewritePrompt = override.Gemini.RewritePrompt
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.TargetChatID != "" {
		base.Telegram.TargetChatID = override.Telegram.TargetChatID
	}
	if override.Telegram.ChannelLink != "" {
		base.Telegram.ChannelLink = override.Telegram.ChannelLink
	}
	if override.Telegram.PreviewBaseURL != "" {
		base.Telegram.PreviewBaseURL = override.Telegram.PreviewBaseURL
	}

	if override.Admin.Addr != "" {
		base.Admin.Addr = override.Admin.Addr
	}

	return base
}

const defaultRewritePrompt = `You are the voice of a tech news channel ({channel_link}): a seasoned,
mildly ironic engineer who explains things without hype.
Rewrite the post below in your own words. Keep every fact intact, drop
advertising and calls to subscribe, use Telegram Markdown sparingly.
Finish with one short takeaway line and relevant #hashtags.

Post:
{text}`

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: "./data/channelrelay.db"},
		Schedule: ScheduleConfig{
			PostsPerDay:     3,
			JitterMinutes:   30,
			RetentionDays:   90,
			MaintenanceSpec: "0 4 * * *",
		},
		Sources: SourcesConfig{
			MaxPerSource: 10,
			MinBodyRunes: 280,
		},
		Gemini: GeminiConfig{
			Endpoint:      "https://generativelanguage.googleapis.com/v1beta",
			Model:         "gemini-2.0-flash-exp",
			RewritePrompt: defaultRewritePrompt,
		},
		Telegram: TelegramConfig{
			PreviewBaseURL: "https://t.me",
		},
	}
}
