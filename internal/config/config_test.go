package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrennanTM/vacraft/internal/insights"
	"github.com/BrennanTM/vacraft/internal/llm"
	"github.com/BrennanTM/vacraft/internal/metrics"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := FromSources("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, "UserName", cfg.Pipeline.Events.PlaceholderUser)
	assert.Equal(t, 50, cfg.Top)
	assert.Equal(t, metrics.RankByTime, cfg.RankKey)
	assert.Equal(t, insights.ModeTemplate, cfg.Insights)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, time.UTC, cfg.Pipeline.Events.Location)
}

func TestExplicitFileMustExist(t *testing.T) {
	_, err := FromSources(filepath.Join(t.TempDir(), "missing.json5"), envMap(nil))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileLocalAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vacraft.json5", `{
		// course export settings
		session_timeout: "45m",
		placeholder_user: "Invite",
		top: 10,
		rank: "visits",
		timezone: "America/New_York",
		timestamp_columns: ["When"],
		llm: {provider: "openai", model: "gpt-4o", timeout: "20s", max_tokens: 512},
	}`)
	writeFile(t, dir, "vacraft.local.json5", `{top: 25, out_dir: "reports"}`)

	cfg, err := FromSources(path, envMap(map[string]string{
		"VACRAFT_RANK":           "pages",
		"VACRAFT_WORKERS":        "3",
		"VACRAFT_OPENAI_API_KEY": "sk-test",
		"VACRAFT_LOG_LEVEL":      "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, "Invite", cfg.Pipeline.Events.PlaceholderUser)
	assert.Equal(t, []string{"When"}, cfg.Pipeline.Events.TimestampColumns)
	assert.Equal(t, "America/New_York", cfg.Pipeline.Events.Location.String())
	assert.Equal(t, 25, cfg.Top, "local file overrides base file")
	assert.Equal(t, "reports", cfg.OutDir)
	assert.Equal(t, metrics.RankByPages, cfg.RankKey, "environment overrides files")
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.OpenAI.Model)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 512, cfg.InsightsConfig.MaxTokens)
}

func TestInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{"zero timeout", `{session_timeout: "0s"}`, nil},
		{"negative timeout", `{session_timeout: "-5m"}`, nil},
		{"bad duration", `{session_timeout: "half an hour"}`, nil},
		{"unknown rank", `{rank: "charisma"}`, nil},
		{"unknown insights mode", `{insights: "oracle"}`, nil},
		{"unknown timezone", `{timezone: "Mars/Olympus"}`, nil},
		{"bad workers env", `{}`, map[string]string{"VACRAFT_WORKERS": "many"}},
		{"negative top env", `{}`, map[string]string{"VACRAFT_TOP": "-1"}},
		{"bad log level", `{log_level: "loud"}`, nil},
		{"malformed json5", `{top: }`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "vacraft.json5", tt.file)
			_, err := FromSources(path, envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "vacraft.local.json5"), localName(filepath.Join("dir", "vacraft.json5")))
	assert.Equal(t, "settings.local", localName("settings"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "VACRAFT_TOP=7\nVACRAFT_RANK=completion\n")

	t.Setenv("VACRAFT_TOP", "")
	os.Unsetenv("VACRAFT_TOP")
	t.Setenv("VACRAFT_RANK", "visits")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "7", os.Getenv("VACRAFT_TOP"))
	assert.Equal(t, "visits", os.Getenv("VACRAFT_RANK"), "existing variables win over .env")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}
