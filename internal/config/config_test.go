package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		configPathEnv, databasePathEnv, logLevelEnv, logPathEnv,
		geminiAPIKeyEnv, geminiModelEnv, rewritePromptEnv,
		telegramTokenEnv, targetChatIDEnv, channelLinkEnv,
		rssFeedsEnv, sourceChannelsEnv,
		postsPerDayEnv, jitterMinutesEnv, maxPerSourceEnv, adminAddrEnv,
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load("")

	if cfg.Schedule.PostsPerDay != 3 {
		t.Fatalf("expected 3 posts per day, got %d", cfg.Schedule.PostsPerDay)
	}
	if cfg.Schedule.JitterMinutes != 30 {
		t.Fatalf("expected 30 jitter minutes, got %d", cfg.Schedule.JitterMinutes)
	}
	if cfg.Sources.MaxPerSource != 10 {
		t.Fatalf("expected 10 max per source, got %d", cfg.Sources.MaxPerSource)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash-exp" {
		t.Fatalf("unexpected default model: %s", cfg.Gemini.Model)
	}
	if cfg.Telegram.PreviewBaseURL != "https://t.me" {
		t.Fatalf("unexpected preview base: %s", cfg.Telegram.PreviewBaseURL)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	clearEnv(t)

	raw := `
schedule:
  postsPerDay: 6
sources:
  feeds:
    - https://example.org/rss
telegram:
  channelLink: https://t.me/mychannel
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(postsPerDayEnv, "5")
	t.Setenv(rssFeedsEnv, "https://env.example/rss, https://env.example/atom")

	cfg := Load(path)

	if cfg.Schedule.PostsPerDay != 5 {
		t.Fatalf("env must win over file, got %d", cfg.Schedule.PostsPerDay)
	}
	if len(cfg.Sources.Feeds) != 2 || cfg.Sources.Feeds[1] != "https://env.example/atom" {
		t.Fatalf("unexpected feeds: %v", cfg.Sources.Feeds)
	}
	if cfg.Telegram.ChannelLink != "https://t.me/mychannel" {
		t.Fatalf("file value lost: %s", cfg.Telegram.ChannelLink)
	}
	// Untouched values stay at defaults.
	if cfg.Sources.MaxPerSource != 10 {
		t.Fatalf("default lost after merge: %d", cfg.Sources.MaxPerSource)
	}
}

func TestLoadIgnoresBadNumbers(t *testing.T) {
	clearEnv(t)

	t.Setenv(postsPerDayEnv, "lots")

	cfg := Load("")
	if cfg.Schedule.PostsPerDay != 3 {
		t.Fatalf("bad env value should be ignored, got %d", cfg.Schedule.PostsPerDay)
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	clearEnv(t)

	cfg := Load("")
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var missing *MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %T", err)
	}
	if len(missing.Keys) != 3 {
		t.Fatalf("expected 3 missing keys, got %v", missing.Keys)
	}
}

func TestValidatePassesWhenCredentialsSet(t *testing.T) {
	clearEnv(t)

	t.Setenv(geminiAPIKeyEnv, "key")
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(targetChatIDEnv, "@target")

	cfg := Load("")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
