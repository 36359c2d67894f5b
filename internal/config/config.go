package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is read when STUDYBUDDY_CONFIG is not set. A missing file is fine.
	DefaultConfigPath = "studybuddy.yml"

	defaultPort        = "8080"
	defaultEnv         = "development"
	defaultFrontendURL = "http://localhost:5173"
	defaultModel       = "gemini-2.5-flash"
	defaultTTSModel    = "gemini-2.5-flash-preview-tts"
	defaultVoice       = "Kore"
	defaultSQLitePath  = "studybuddy.db"
	defaultPdftoppm    = "pdftoppm"
	defaultMaxUploadMB = 64
)

// Study time storage backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds runtime configuration for the server and the CLI.
type Config struct {
	Port          string `yaml:"port"`
	Env           string `yaml:"env"` // "development" | "production"
	LogLevel      string `yaml:"log_level"`
	FrontendURL   string `yaml:"frontend_url"`
	SessionSecret string `yaml:"session_secret"`

	Gemini GeminiConfig `yaml:"gemini"`

	StudyTime StudyTimeConfig `yaml:"study_time"`

	PdftoppmPath string `yaml:"pdftoppm_path"`
	MaxUploadMB  int    `yaml:"max_upload_mb"`
	AudioPlayer  string `yaml:"audio_player"` // command that plays WAV from stdin, CLI only

	R2 R2Config `yaml:"r2"`
}

type GeminiConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	TTSModel string `yaml:"tts_model"`
	Voice    string `yaml:"voice"`
}

type StudyTimeConfig struct {
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
}

// R2Config is optional; uploads are archived only when every field is set.
type R2Config struct {
	AccountID       string `yaml:"account_id"`
	BucketName      string `yaml:"bucket_name"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicURL       string `yaml:"public_url"`
}

// Enabled reports whether all R2 settings are present.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.BucketName != "" && r.AccessKeyID != "" &&
		r.SecretAccessKey != "" && r.PublicURL != ""
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Port:        defaultPort,
		Env:         defaultEnv,
		LogLevel:    "info",
		FrontendURL: defaultFrontendURL,
		Gemini: GeminiConfig{
			Model:    defaultModel,
			TTSModel: defaultTTSModel,
			Voice:    defaultVoice,
		},
		StudyTime: StudyTimeConfig{
			Backend:    BackendSQLite,
			SQLitePath: defaultSQLitePath,
		},
		PdftoppmPath: defaultPdftoppm,
		MaxUploadMB:  defaultMaxUploadMB,
	}
}

// Load builds the configuration from .env, an optional YAML file and the
// process environment, in that order of increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading .env file: %w", err)
		}
		log.Println("Warning: .env file not found. Relying on system environment variables.")
	}

	cfg := Default()

	path := getEnv("STUDYBUDDY_CONFIG", DefaultConfigPath)
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.FrontendURL = strings.TrimSuffix(getEnv("FRONTEND_URL", c.FrontendURL), "/")
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)

	// The browser build used API_KEY; GEMINI_API_KEY wins when both are set.
	c.Gemini.APIKey = getEnv("API_KEY", c.Gemini.APIKey)
	c.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.Model = getEnv("GEMINI_MODEL", c.Gemini.Model)
	c.Gemini.TTSModel = getEnv("GEMINI_TTS_MODEL", c.Gemini.TTSModel)
	c.Gemini.Voice = getEnv("GEMINI_VOICE", c.Gemini.Voice)

	c.StudyTime.Backend = strings.ToLower(getEnv("STUDYTIME_BACKEND", c.StudyTime.Backend))
	c.StudyTime.SQLitePath = getEnv("SQLITE_PATH", c.StudyTime.SQLitePath)
	c.StudyTime.DatabaseURL = getEnv("DATABASE_URL", c.StudyTime.DatabaseURL)
	c.StudyTime.RedisURL = getEnv("REDIS_URL", c.StudyTime.RedisURL)

	c.PdftoppmPath = getEnv("PDFTOPPM_PATH", c.PdftoppmPath)
	c.MaxUploadMB = getIntEnv("MAX_UPLOAD_MB", c.MaxUploadMB)
	c.AudioPlayer = getEnv("AUDIO_PLAYER", c.AudioPlayer)

	c.R2.AccountID = getEnv("CLOUDFLARE_ACCOUNT_ID", c.R2.AccountID)
	c.R2.BucketName = getEnv("R2_BUCKET_NAME", c.R2.BucketName)
	c.R2.AccessKeyID = getEnv("R2_ACCESS_KEY_ID", c.R2.AccessKeyID)
	c.R2.SecretAccessKey = getEnv("R2_SECRET_ACCESS_KEY", c.R2.SecretAccessKey)
	c.R2.PublicURL = getEnv("R2_PUBLIC_URL", c.R2.PublicURL)
}

// Validate checks combinations that would only fail later at runtime.
// A missing Gemini key is not an error here: the gateway reports it on first use.
func (c *Config) Validate() error {
	switch c.StudyTime.Backend {
	case BackendSQLite:
		if c.StudyTime.SQLitePath == "" {
			return errors.New("SQLITE_PATH must be set for the sqlite study time backend")
		}
	case BackendPostgres:
		if c.StudyTime.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for the postgres study time backend")
		}
	case BackendRedis:
		if c.StudyTime.RedisURL == "" {
			return errors.New("REDIS_URL must be set for the redis study time backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown study time backend %q", c.StudyTime.Backend)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MaxUploadBytes is the multipart memory limit for document uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: ignoring non-numeric %s=%q", key, v)
		return def
	}
	return n
}
