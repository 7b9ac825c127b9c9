package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode            Mode   `toml:"mode"`
	Port            string `toml:"port"`
	LogLevel        string `toml:"log_level"`
	DefaultLanguage string `toml:"default_language"`
	WidgetURL       string `toml:"widget_url"`

	LLM       LLMConfig       `toml:"llm"`
	Storage   StorageConfig   `toml:"storage"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Chat      ChatConfig      `toml:"chat"`
	Fetch     FetchConfig     `toml:"fetch"`
	Auth      AuthConfig      `toml:"auth"`

	AutosaveDelayRaw string        `toml:"autosave_delay"`
	AutosaveDelay    time.Duration `toml:"-"`
}

type LLMConfig struct {
	Backend       string `toml:"backend"` // "mock", "gemini" or "vertex"
	APIKey        string `toml:"api_key"`
	Project       string `toml:"project"`
	Location      string `toml:"location"`
	SynthModel    string `toml:"synth_model"`
	FallbackModel string `toml:"fallback_model"`
	ChatModel     string `toml:"chat_model"`
}

type StorageConfig struct {
	Backend   string `toml:"backend"` // "memory", "firestore" or "badger"
	BadgerDir string `toml:"badger_dir"`
	Blobs     string `toml:"blobs"` // "inline", "memory", "badger" or "gcs"
	GCSBucket string `toml:"gcs_bucket"`
}

type SynthesisConfig struct {
	Strategy        string        `toml:"strategy"` // "schema" or "two-phase"
	SearchAugmented bool          `toml:"search_augmented"`
	MaxAttempts     int           `toml:"max_attempts"`
	BackoffRaw      string        `toml:"retry_backoff"`
	Backoff         time.Duration `toml:"-"`
}

type ChatConfig struct {
	Strategy        string `toml:"strategy"` // "structured" or "search"
	SearchAugmented bool   `toml:"search_augmented"`
	SparseBelow     int    `toml:"sparse_below"`
}

type FetchConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type AuthConfig struct {
	StaticTokens []string `toml:"static_tokens"` // "token:email"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func defaults(mode Mode) *Config {
	cfg := &Config{
		Mode:             mode,
		Port:             "8080",
		LogLevel:         "info",
		DefaultLanguage:  "es",
		AutosaveDelayRaw: "1s",
		LLM: LLMConfig{
			Backend:       "mock",
			Location:      "us-central1",
			SynthModel:    "gemini-2.5-flash",
			FallbackModel: "gemini-2.5-flash-lite",
			ChatModel:     "gemini-2.5-flash",
		},
		Storage: StorageConfig{
			Backend:   "memory",
			BadgerDir: "./data",
			Blobs:     "memory",
		},
		Synthesis: SynthesisConfig{
			Strategy:    "schema",
			MaxAttempts: 3,
			BackoffRaw:  "2s",
		},
		Chat: ChatConfig{
			Strategy:    "structured",
			SparseBelow: 1,
		},
		Fetch: FetchConfig{RequestsPerSecond: 1},
	}
	if mode == ModeGCP {
		cfg.LLM.Backend = "vertex"
		cfg.Storage.Backend = "firestore"
		cfg.Storage.Blobs = "inline"
	}
	return cfg
}

// Load builds the config from defaults, the optional TOML file named by
// BRANDBOT_CONFIG, then BRANDBOT_* environment variables.
func Load() (*Config, error) {
	var file []byte
	if path := os.Getenv("BRANDBOT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		file = data
	}

	// The mode selects the defaults, so resolve it before anything else.
	var head struct {
		Mode Mode `toml:"mode"`
	}
	if file != nil {
		if err := toml.Unmarshal(file, &head); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if head.Mode == "" {
		head.Mode = ModeLocal
	}
	cfg := defaults(Mode(getEnv("BRANDBOT_MODE", string(head.Mode))))

	if file != nil {
		if err := toml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error
	cfg.Mode = Mode(getEnv("BRANDBOT_MODE", string(cfg.Mode)))
	// PORT is what Cloud Run injects.
	cfg.Port = getEnv("BRANDBOT_PORT", getEnv("PORT", cfg.Port))
	cfg.LogLevel = getEnv("BRANDBOT_LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLanguage = getEnv("BRANDBOT_DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.WidgetURL = getEnv("BRANDBOT_WIDGET_URL", cfg.WidgetURL)
	cfg.AutosaveDelayRaw = getEnv("BRANDBOT_AUTOSAVE_DELAY", cfg.AutosaveDelayRaw)

	cfg.LLM.Backend = getEnv("BRANDBOT_LLM_BACKEND", cfg.LLM.Backend)
	cfg.LLM.APIKey = getEnv("BRANDBOT_GEMINI_API_KEY", getEnv("GEMINI_API_KEY", cfg.LLM.APIKey))
	cfg.LLM.Project = getEnv("BRANDBOT_GCP_PROJECT", cfg.LLM.Project)
	cfg.LLM.Location = getEnv("BRANDBOT_GCP_LOCATION", cfg.LLM.Location)
	cfg.LLM.SynthModel = getEnv("BRANDBOT_SYNTH_MODEL", cfg.LLM.SynthModel)
	cfg.LLM.FallbackModel = getEnv("BRANDBOT_FALLBACK_MODEL", cfg.LLM.FallbackModel)
	cfg.LLM.ChatModel = getEnv("BRANDBOT_CHAT_MODEL", cfg.LLM.ChatModel)

	cfg.Storage.Backend = getEnv("BRANDBOT_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.BadgerDir = getEnv("BRANDBOT_BADGER_DIR", cfg.Storage.BadgerDir)
	cfg.Storage.Blobs = getEnv("BRANDBOT_BLOB_BACKEND", cfg.Storage.Blobs)
	cfg.Storage.GCSBucket = getEnv("BRANDBOT_GCS_BUCKET", cfg.Storage.GCSBucket)

	cfg.Synthesis.Strategy = getEnv("BRANDBOT_SYNTH_STRATEGY", cfg.Synthesis.Strategy)
	cfg.Synthesis.SearchAugmented = getBoolEnv("BRANDBOT_SYNTH_SEARCH", cfg.Synthesis.SearchAugmented)
	if cfg.Synthesis.MaxAttempts, err = getIntEnv("BRANDBOT_SYNTH_MAX_ATTEMPTS", cfg.Synthesis.MaxAttempts); err != nil {
		return err
	}
	cfg.Synthesis.BackoffRaw = getEnv("BRANDBOT_SYNTH_BACKOFF", cfg.Synthesis.BackoffRaw)

	cfg.Chat.Strategy = getEnv("BRANDBOT_CHAT_STRATEGY", cfg.Chat.Strategy)
	cfg.Chat.SearchAugmented = getBoolEnv("BRANDBOT_CHAT_SEARCH", cfg.Chat.SearchAugmented)
	if cfg.Chat.SparseBelow, err = getIntEnv("BRANDBOT_CHAT_SPARSE_BELOW", cfg.Chat.SparseBelow); err != nil {
		return err
	}

	cfg.Fetch.Enabled = getBoolEnv("BRANDBOT_FETCH_URLS", cfg.Fetch.Enabled)
	if cfg.Fetch.RequestsPerSecond, err = getFloatEnv("BRANDBOT_FETCH_RPS", cfg.Fetch.RequestsPerSecond); err != nil {
		return err
	}

	if v := os.Getenv("BRANDBOT_STATIC_TOKENS"); v != "" {
		cfg.Auth.StaticTokens = strings.Split(v, ",")
	}
	return nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: %q is not one of %s", field, v, strings.Join(allowed, ", "))
}

func (c *Config) validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(oneOf("mode", string(c.Mode), string(ModeLocal), string(ModeGCP)))
	add(oneOf("llm.backend", c.LLM.Backend, "mock", "gemini", "vertex"))
	add(oneOf("storage.backend", c.Storage.Backend, "memory", "firestore", "badger"))
	add(oneOf("storage.blobs", c.Storage.Blobs, "inline", "memory", "badger", "gcs"))
	add(oneOf("synthesis.strategy", c.Synthesis.Strategy, "schema", "two-phase"))
	add(oneOf("chat.strategy", c.Chat.Strategy, "structured", "search"))

	var err error
	if c.Synthesis.Backoff, err = time.ParseDuration(c.Synthesis.BackoffRaw); err != nil {
		add(fmt.Errorf("synthesis.retry_backoff: %w", err))
	}
	if c.AutosaveDelay, err = time.ParseDuration(c.AutosaveDelayRaw); err != nil {
		add(fmt.Errorf("autosave_delay: %w", err))
	}
	if c.Synthesis.MaxAttempts < 1 {
		add(errors.New("synthesis.max_attempts must be at least 1"))
	}

	if c.LLM.Backend == "gemini" && c.LLM.APIKey == "" {
		add(errors.New("BRANDBOT_GEMINI_API_KEY must be set for the gemini backend"))
	}
	needsProject := c.LLM.Backend == "vertex" || c.Storage.Backend == "firestore"
	if needsProject && c.LLM.Project == "" {
		add(errors.New("BRANDBOT_GCP_PROJECT must be set for vertex or firestore"))
	}
	if c.Storage.Blobs == "gcs" && c.Storage.GCSBucket == "" {
		add(errors.New("BRANDBOT_GCS_BUCKET must be set for gcs blobs"))
	}
	if c.Storage.Blobs == "badger" && c.Storage.Backend != "badger" {
		add(errors.New("badger blobs require the badger storage backend"))
	}
	return errors.Join(errs...)
}
