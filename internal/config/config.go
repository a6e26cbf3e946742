// Package config loads recordpilot's runtime configuration.
//
// Sources are applied in order, later wins: built-in defaults, an optional
// YAML file, a .env file and finally the process environment. The result is
// checked with validator struct tags before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all recordpilot configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store"`
	LLM          LLMConfig          `yaml:"llm"`
	HTTP         HTTPConfig         `yaml:"http"`
	WhatsApp     WhatsAppConfig     `yaml:"whatsapp"`
	Redis        RedisConfig        `yaml:"redis"`
	Logs         LogsConfig         `yaml:"logs"`
	Conversation ConversationConfig `yaml:"conversation"`
}

// StoreConfig locates the SQLite database and the side-channel CSV logs.
type StoreConfig struct {
	DataDir  string `yaml:"data_dir" validate:"required"`
	FileName string `yaml:"file_name" validate:"required"`
	// SideLogDir holds thoughts.csv and reminders.csv. Defaults to DataDir.
	SideLogDir string `yaml:"side_log_dir"`
}

// LLMConfig configures the Gemini oracle.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model" validate:"required"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     string  `yaml:"timeout" validate:"duration"`
}

// HTTPConfig configures the web chat and webhook server.
type HTTPConfig struct {
	Addr            string `yaml:"addr" validate:"required"`
	Mode            string `yaml:"mode" validate:"oneof=debug release test"`
	ShutdownTimeout string `yaml:"shutdown_timeout" validate:"duration"`
}

// WhatsAppConfig configures the WhatsApp Cloud API transport.
type WhatsAppConfig struct {
	Enabled       bool   `yaml:"enabled"`
	VerifyToken   string `yaml:"verify_token" validate:"required_if=Enabled true"`
	AccessToken   string `yaml:"access_token" validate:"required_if=Enabled true"`
	PhoneNumberID string `yaml:"phone_number_id" validate:"required_if=Enabled true"`
	// AppSecret, when set, is used to check X-Hub-Signature-256 on webhooks.
	AppSecret  string `yaml:"app_secret"`
	APIBase    string `yaml:"api_base" validate:"required,url"`
	APIVersion string `yaml:"api_version" validate:"required"`
	// DefaultRegion is the ISO country used to read numbers without a
	// leading +.
	DefaultRegion string `yaml:"default_region" validate:"required,len=2"`
}

// RedisConfig enables cross-replica conversation locks and webhook dedup.
// An empty Addr keeps everything in-process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	LockTTL  string `yaml:"lock_ttl" validate:"duration"`
	LockWait string `yaml:"lock_wait" validate:"duration"`
	DedupTTL string `yaml:"dedup_ttl" validate:"duration"`
}

// LogsConfig configures logging.
type LogsConfig struct {
	Mode     string `yaml:"mode" validate:"oneof=dev prod"`
	Level    string `yaml:"level" validate:"oneof=debug info warn error"`
	HashSalt string `yaml:"hash_salt"`
}

// ConversationConfig tunes the agent loop.
type ConversationConfig struct {
	Owner    string `yaml:"owner"`
	Window   int    `yaml:"window" validate:"gte=2"`
	MaxSteps int    `yaml:"max_steps" validate:"gte=1,lte=50"`
	IdleTTL  string `yaml:"idle_ttl" validate:"duration"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Store: StoreConfig{
			DataDir:  filepath.Join(home, ".recordpilot"),
			FileName: "records.db",
		},
		LLM: LLMConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
			Timeout:     "60s",
		},
		HTTP: HTTPConfig{
			Addr:            ":8000",
			Mode:            "release",
			ShutdownTimeout: "10s",
		},
		WhatsApp: WhatsAppConfig{
			APIBase:       "https://graph.facebook.com",
			APIVersion:    "v23.0",
			DefaultRegion: "DE",
		},
		Redis: RedisConfig{
			LockTTL:  "30s",
			LockWait: "2m",
			DedupTTL: "24h",
		},
		Logs: LogsConfig{
			Mode:  "prod",
			Level: "info",
		},
		Conversation: ConversationConfig{
			Window:   16,
			MaxSteps: 8,
			IdleTTL:  "24h",
		},
	}
}

// Load builds the configuration from path (optional, missing is fine) and
// the given .env files. With no env files, ./.env is read when present.
// A non-empty process environment variable wins over its .env value.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := decodeYAML(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	dotenv, err := readDotenv(envFiles)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})

	if cfg.Store.SideLogDir == "" {
		cfg.Store.SideLogDir = cfg.Store.DataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func readDotenv(files []string) (map[string]string, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil, nil
		}
		files = []string{".env"}
	}
	values, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("config: read env file: %w", err)
	}
	return values, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ─── Environment ─────────────────────────────────────────────────────────────

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	str(&c.Store.DataDir, "RECORDPILOT_DATA_DIR")
	str(&c.Store.SideLogDir, "RECORDPILOT_SIDE_LOG_DIR")

	str(&c.LLM.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	str(&c.LLM.Model, "RECORDPILOT_MODEL")

	str(&c.HTTP.Addr, "RECORDPILOT_HTTP_ADDR")
	if port, ok := lookup("PORT"); ok && port != "" {
		c.HTTP.Addr = ":" + port
	}

	str(&c.WhatsApp.VerifyToken, "VERIFY_TOKEN")
	str(&c.WhatsApp.AccessToken, "ACCESS_TOKEN")
	str(&c.WhatsApp.PhoneNumberID, "PHONE_NUMBER_ID")
	str(&c.WhatsApp.AppSecret, "APP_SECRET")
	if v, ok := lookup("WHATSAPP_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WhatsApp.Enabled = b
		}
	}

	str(&c.Redis.Addr, "REDIS_ADDR")
	str(&c.Redis.Password, "REDIS_PASSWORD")
	num(&c.Redis.DB, "REDIS_DB")

	str(&c.Logs.Mode, "LOG_MODE")
	str(&c.Logs.Level, "LOG_LEVEL")
	str(&c.Logs.HashSalt, "LOG_HASH_SALT")

	str(&c.Conversation.Owner, "RECORDPILOT_OWNER")
	num(&c.Conversation.MaxSteps, "RECORDPILOT_MAX_STEPS")
}

// ─── Validation ──────────────────────────────────────────────────────────────

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		d, err := time.ParseDuration(s)
		return err == nil && d > 0
	})
	return v
}

// Validate checks the struct tags. All failures are reported together.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

// RequireLLM reports whether an LLM key is configured. Only the commands
// that run the agent loop need one.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("config: LLM API key not configured (set GEMINI_API_KEY or llm.api_key)")
	}
	return nil
}

// ─── Durations ───────────────────────────────────────────────────────────────

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LLMTimeout returns the per-request LLM timeout.
func (c *Config) LLMTimeout() time.Duration { return duration(c.LLM.Timeout, 60*time.Second) }

// ShutdownTimeout returns the HTTP graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return duration(c.HTTP.ShutdownTimeout, 10*time.Second)
}

// LockTTL returns the Redis conversation lock TTL.
func (c *Config) LockTTL() time.Duration { return duration(c.Redis.LockTTL, 30*time.Second) }

// LockWait returns how long a message waits for a busy conversation.
func (c *Config) LockWait() time.Duration { return duration(c.Redis.LockWait, 2*time.Minute) }

// DedupTTL returns how long processed WhatsApp message ids are remembered.
func (c *Config) DedupTTL() time.Duration { return duration(c.Redis.DedupTTL, 24*time.Hour) }

// IdleTTL returns how long an idle conversation is kept in memory.
func (c *Config) IdleTTL() time.Duration { return duration(c.Conversation.IdleTTL, 24*time.Hour) }

// DBPath returns the full path of the SQLite database.
func (c *Config) DBPath() string { return filepath.Join(c.Store.DataDir, c.Store.FileName) }
