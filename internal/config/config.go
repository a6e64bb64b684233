// Package config resolves vacraft settings from defaults, a json5 file with
// an optional .local override, a .env file and VACRAFT_* variables. Command
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"

	"github.com/BrennanTM/vacraft/internal/insights"
	"github.com/BrennanTM/vacraft/internal/llm"
	"github.com/BrennanTM/vacraft/internal/metrics"
	"github.com/BrennanTM/vacraft/internal/pipeline"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "vacraft.json5"

// File is the on-disk form. Zero values mean "not set".
type File struct {
	SessionTimeout   string   `json:"session_timeout"`
	PlaceholderUser  string   `json:"placeholder_user"`
	ZeroDatePrefix   string   `json:"zero_date_prefix"`
	UserColumn       string   `json:"user_column"`
	PageColumn       string   `json:"page_column"`
	TimestampColumns []string `json:"timestamp_columns"`
	TimestampLayouts []string `json:"timestamp_layouts"`
	Timezone         string   `json:"timezone"`
	Workers          int      `json:"workers"`
	Top              int      `json:"top"`
	Rank             string   `json:"rank"`
	OutDir           string   `json:"out_dir"`
	DB               string   `json:"db"`
	Insights         string   `json:"insights"`
	Title            string   `json:"title"`
	KeepRuns         int      `json:"keep_runs"`
	LogLevel         string   `json:"log_level"`
	LLM              LLMFile  `json:"llm"`
}

// LLMFile selects the insights provider. API keys only come from the
// environment.
type LLMFile struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	BaseURL   string `json:"base_url"`
	Timeout   string `json:"timeout"`
	MaxTokens int    `json:"max_tokens"`
}

// Config is the resolved configuration.
type Config struct {
	Pipeline pipeline.Options

	Top      int
	RankKey  metrics.RankKey
	OutDir   string
	DBPath   string
	Insights insights.Mode
	Title    string
	KeepRuns int
	LogLevel slog.Level

	LLM            llm.Config
	InsightsConfig insights.Config
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pipeline:       pipeline.DefaultOptions(),
		Top:            50,
		RankKey:        metrics.RankByTime,
		OutDir:         "out",
		Insights:       insights.ModeTemplate,
		KeepRuns:       20,
		LogLevel:       slog.LevelInfo,
		LLM:            llm.DefaultConfig(),
		InsightsConfig: insights.DefaultConfig(),
	}
}

// Load reads path (DefaultFile when empty), the .env file beside it and the
// process environment.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(filepath.Dir(orDefault(path)), ".env")); err != nil {
		return nil, err
	}
	return FromSources(path, os.Getenv)
}

// LoadDotEnv exports the variables of a .env file that are not already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromSources resolves configuration from the file at path and variables
// looked up with getenv. An explicit path must exist; the default file is
// optional.
func FromSources(path string, getenv func(string) string) (*Config, error) {
	f, err := ReadFile(orDefault(path))
	if errors.Is(err, os.ErrNotExist) && path == "" {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := f.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg, err := f.resolve(getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func orDefault(path string) string {
	if path == "" {
		return DefaultFile
	}
	return path
}

// ReadFile reads a json5 config file and merges <name>.local.<ext> over it.
// It returns os.ErrNotExist when neither file exists.
func ReadFile(name string) (File, error) {
	var out File
	found := false

	base, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		found = true
	}

	local := localName(name)
	override, err := os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(override) > 0 {
		var o File
		if err := json5.Unmarshal(override, &o); err != nil {
			return out, fmt.Errorf("parse %s: %w", local, err)
		}
		if err := mergo.Merge(&out, o, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", local, err)
		}
		slog.Debug("merging config with local overrides", "local", local)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// localName turns "dir/vacraft.json5" into "dir/vacraft.local.json5".
func localName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func (f *File) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"SESSION_TIMEOUT":  &f.SessionTimeout,
		"PLACEHOLDER_USER": &f.PlaceholderUser,
		"ZERO_DATE_PREFIX": &f.ZeroDatePrefix,
		"TIMEZONE":         &f.Timezone,
		"RANK":             &f.Rank,
		"OUT_DIR":          &f.OutDir,
		"DB":               &f.DB,
		"INSIGHTS":         &f.Insights,
		"LOG_LEVEL":        &f.LogLevel,
	}
	for suffix, field := range strs {
		if v := getenv(llm.EnvPrefix + suffix); v != "" {
			*field = v
		}
	}
	ints := map[string]*int{
		"WORKERS":   &f.Workers,
		"TOP":       &f.Top,
		"KEEP_RUNS": &f.KeepRuns,
	}
	for suffix, field := range ints {
		v := getenv(llm.EnvPrefix + suffix)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", llm.EnvPrefix, suffix, err)
		}
		*field = n
	}
	return nil
}

func (f *File) resolve(getenv func(string) string) (*Config, error) {
	cfg := Default()
	ev := &cfg.Pipeline.Events

	if f.SessionTimeout != "" {
		d, err := time.ParseDuration(f.SessionTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse session_timeout: %w", err)
		}
		cfg.Pipeline.Timeout = d
	}
	setString(&ev.PlaceholderUser, f.PlaceholderUser)
	setString(&ev.ZeroDatePrefix, f.ZeroDatePrefix)
	setString(&ev.UserColumn, f.UserColumn)
	setString(&ev.PageColumn, f.PageColumn)
	if len(f.TimestampColumns) > 0 {
		ev.TimestampColumns = f.TimestampColumns
	}
	if len(f.TimestampLayouts) > 0 {
		ev.Layouts = f.TimestampLayouts
	}
	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		ev.Location = loc
	}
	cfg.Pipeline.Workers = f.Workers
	if f.Top != 0 {
		cfg.Top = f.Top
	}
	if f.KeepRuns != 0 {
		cfg.KeepRuns = f.KeepRuns
	}
	if f.Rank != "" {
		cfg.RankKey = metrics.RankKey(strings.ToLower(f.Rank))
	}
	if f.Insights != "" {
		cfg.Insights = insights.Mode(strings.ToLower(f.Insights))
	}
	setString(&cfg.OutDir, f.OutDir)
	setString(&cfg.DBPath, f.DB)
	setString(&cfg.Title, f.Title)
	if f.LogLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(f.LogLevel)); err != nil {
			return nil, fmt.Errorf("parse log_level: %w", err)
		}
	}

	if err := f.LLM.apply(&cfg.LLM, &cfg.InsightsConfig); err != nil {
		return nil, err
	}
	if err := cfg.LLM.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l LLMFile) apply(c *llm.Config, ic *insights.Config) error {
	setString(&c.Provider, l.Provider)
	switch c.Provider {
	case llm.ProviderAnthropic:
		setString(&c.Anthropic.Model, l.Model)
		setString(&c.Anthropic.BaseURL, l.BaseURL)
	case llm.ProviderOpenAI:
		setString(&c.OpenAI.Model, l.Model)
		setString(&c.OpenAI.BaseURL, l.BaseURL)
	case llm.ProviderGemini:
		setString(&c.Gemini.Model, l.Model)
	case llm.ProviderOpenRouter:
		setString(&c.OpenRouter.Model, l.Model)
		setString(&c.OpenRouter.BaseURL, l.BaseURL)
	}
	if l.Timeout != "" {
		d, err := time.ParseDuration(l.Timeout)
		if err != nil {
			return fmt.Errorf("parse llm.timeout: %w", err)
		}
		c.Timeout = d
	}
	if l.MaxTokens > 0 {
		ic.MaxTokens = l.MaxTokens
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.Timeout <= 0 {
		return fmt.Errorf("session timeout must be positive, got %s", c.Pipeline.Timeout)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Pipeline.Workers)
	}
	if c.Top < 0 {
		return fmt.Errorf("top must not be negative, got %d", c.Top)
	}
	if _, err := metrics.ParseRankKey(string(c.RankKey)); err != nil {
		return err
	}
	if _, err := insights.ParseMode(string(c.Insights)); err != nil {
		return err
	}
	if len(c.Pipeline.Events.Layouts) == 0 {
		return errors.New("at least one timestamp layout is required")
	}
	return nil
}
