// Package config loads service settings from defaults, an optional YAML file
// and the environment (including a .env file), in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/p-shah256/resume-optimizer/internal/llm"
	"github.com/p-shah256/resume-optimizer/internal/render"
	"github.com/p-shah256/resume-optimizer/internal/sections"
	"github.com/p-shah256/resume-optimizer/internal/storage"
)

type Config struct {
	Port int `yaml:"port"`

	LLM struct {
		Provider      string        `yaml:"provider"`
		GeminiKey     string        `yaml:"gemini_key"`
		GeminiModel   string        `yaml:"gemini_model"`
		OpenAIKey     string        `yaml:"openai_api_key"`
		OpenAIBaseURL string        `yaml:"openai_base_url"`
		OpenAIModel   string        `yaml:"openai_model"`
		Timeout       time.Duration `yaml:"timeout"`
		Attempts      int           `yaml:"attempts"`
		LineGuard     bool          `yaml:"line_guard"`
	} `yaml:"llm"`

	Storage struct {
		Driver       string        `yaml:"driver"`
		Dir          string        `yaml:"dir"`
		SQLitePath   string        `yaml:"sqlite_path"`
		DatabaseURL  string        `yaml:"database_url"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"storage"`

	Sections struct {
		HeadingRule     string `yaml:"heading_rule"`
		DuplicatePolicy string `yaml:"duplicate_policy"`
		EmptySections   string `yaml:"empty_sections"`
	} `yaml:"sections"`

	Render struct {
		UnresolvedPlaceholders string  `yaml:"unresolved_placeholders"`
		Margins                float64 `yaml:"margins"`
		CenterHeader           bool    `yaml:"center_header"`
	} `yaml:"render"`

	MaxUploadMB  int64   `yaml:"max_upload_mb"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	RateBurst    int     `yaml:"rate_burst"`

	DiscordToken string `yaml:"discord_bot_token"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() *Config {
	c := &Config{Port: 8080}
	c.LLM.Provider = llm.ProviderGemini
	c.LLM.Timeout = 30 * time.Second
	c.LLM.Attempts = 3
	c.LLM.LineGuard = true
	c.Storage.Driver = storage.DriverNone
	c.Storage.Dir = "artifacts"
	c.Storage.SQLitePath = "data/optimizer.db"
	c.Storage.WriteTimeout = storage.DefaultWriteTimeout
	c.Sections.HeadingRule = sections.RuleCaps
	c.Sections.DuplicatePolicy = "append"
	c.Sections.EmptySections = "drop"
	c.Render.UnresolvedPlaceholders = "fail"
	c.Render.Margins = render.DefaultMargins
	c.MaxUploadMB = 10
	c.RateLimitRPS = 5
	c.RateBurst = 10
	c.LogLevel = "info"
	return c
}

// Load reads .env (if present), then CONFIG_FILE (if set), then environment
// variables, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Error loading .env file", "error", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []string
	parse := func(key string, fn func(string) error) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			}
		}
	}

	parse("PORT", func(v string) (err error) { c.Port, err = strconv.Atoi(v); return })

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("GEMINI_KEY", &c.LLM.GeminiKey)
	str("GEMINI_MODEL", &c.LLM.GeminiModel)
	str("OPENAI_API_KEY", &c.LLM.OpenAIKey)
	str("OPENAI_BASE_URL", &c.LLM.OpenAIBaseURL)
	str("OPENAI_MODEL", &c.LLM.OpenAIModel)
	parse("REWRITE_TIMEOUT", func(v string) (err error) { c.LLM.Timeout, err = time.ParseDuration(v); return })
	parse("REWRITE_ATTEMPTS", func(v string) (err error) { c.LLM.Attempts, err = strconv.Atoi(v); return })
	parse("LINE_GUARD", func(v string) (err error) { c.LLM.LineGuard, err = strconv.ParseBool(v); return })

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DIR", &c.Storage.Dir)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("DATABASE_URL", &c.Storage.DatabaseURL)
	parse("STORAGE_WRITE_TIMEOUT", func(v string) (err error) { c.Storage.WriteTimeout, err = time.ParseDuration(v); return })

	str("HEADING_RULE", &c.Sections.HeadingRule)
	str("DUPLICATE_POLICY", &c.Sections.DuplicatePolicy)
	str("EMPTY_SECTIONS", &c.Sections.EmptySections)

	str("UNRESOLVED_PLACEHOLDERS", &c.Render.UnresolvedPlaceholders)
	parse("PAGE_MARGINS", func(v string) (err error) { c.Render.Margins, err = strconv.ParseFloat(v, 64); return })
	parse("CENTER_HEADER", func(v string) (err error) { c.Render.CenterHeader, err = strconv.ParseBool(v); return })

	parse("MAX_UPLOAD_MB", func(v string) (err error) { c.MaxUploadMB, err = strconv.ParseInt(v, 10, 64); return })
	parse("RATE_LIMIT_RPS", func(v string) (err error) { c.RateLimitRPS, err = strconv.ParseFloat(v, 64); return })
	parse("RATE_LIMIT_BURST", func(v string) (err error) { c.RateBurst, err = strconv.Atoi(v); return })

	str("DISCORD_BOT_TOKEN", &c.DiscordToken)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks that enum settings parse and that the selected provider and
// storage driver have what they need.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if c.Port <= 0 || c.Port > 65535 {
		add("port %d out of range", c.Port)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case llm.ProviderGemini:
		if c.LLM.GeminiKey == "" {
			add("GEMINI_KEY is required for provider gemini")
		}
	case llm.ProviderOpenAI:
		if c.LLM.OpenAIKey == "" && c.LLM.OpenAIBaseURL == "" {
			add("OPENAI_API_KEY or OPENAI_BASE_URL is required for provider openai")
		}
	case llm.ProviderNone:
	default:
		add("unknown LLM provider %q", c.LLM.Provider)
	}
	if c.LLM.Attempts < 1 {
		add("rewrite attempts must be at least 1")
	}
	if c.LLM.Timeout <= 0 {
		add("rewrite timeout must be positive")
	}

	switch strings.ToLower(c.Storage.Driver) {
	case storage.DriverNone, storage.DriverMemory:
	case storage.DriverLocal:
		if c.Storage.Dir == "" {
			add("STORAGE_DIR is required for driver local")
		}
	case storage.DriverSQLite:
		if c.Storage.SQLitePath == "" {
			add("SQLITE_PATH is required for driver sqlite")
		}
	case storage.DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			add("DATABASE_URL is required for driver postgres")
		}
	default:
		add("unknown storage driver %q", c.Storage.Driver)
	}

	if _, err := sections.HeadingRule(c.Sections.HeadingRule); err != nil {
		add("%v", err)
	}
	if _, err := sections.ParseDuplicatePolicy(c.Sections.DuplicatePolicy); err != nil {
		add("%v", err)
	}
	if _, err := sections.ParseEmptyPolicy(c.Sections.EmptySections); err != nil {
		add("%v", err)
	}
	if _, err := render.ParseUnresolvedPolicy(c.Render.UnresolvedPlaceholders); err != nil {
		add("%v", err)
	}
	if c.MaxUploadMB <= 0 {
		add("max upload size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider:      c.LLM.Provider,
		GeminiKey:     c.LLM.GeminiKey,
		GeminiModel:   c.LLM.GeminiModel,
		OpenAIKey:     c.LLM.OpenAIKey,
		OpenAIBaseURL: c.LLM.OpenAIBaseURL,
		OpenAIModel:   c.LLM.OpenAIModel,
	}
}

func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver:      c.Storage.Driver,
		Dir:         c.Storage.Dir,
		SQLitePath:  c.Storage.SQLitePath,
		DatabaseURL: c.Storage.DatabaseURL,
	}
}

// Extractor builds a section extractor from the configured policies.
func (c *Config) Extractor() (*sections.Extractor, error) {
	heading, err := sections.HeadingRule(c.Sections.HeadingRule)
	if err != nil {
		return nil, err
	}
	dup, err := sections.ParseDuplicatePolicy(c.Sections.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	empty, err := sections.ParseEmptyPolicy(c.Sections.EmptySections)
	if err != nil {
		return nil, err
	}
	return &sections.Extractor{Heading: heading, Duplicates: dup, EmptySections: empty}, nil
}

func (c *Config) RenderOptions() (render.Options, error) {
	unresolved, err := render.ParseUnresolvedPolicy(c.Render.UnresolvedPlaceholders)
	if err != nil {
		return render.Options{}, err
	}
	return render.Options{
		Template: render.TemplateOptions{Unresolved: unresolved},
		Rebuild:  render.RebuildOptions{Margins: c.Render.Margins, CenterHeader: c.Render.CenterHeader},
	}, nil
}
