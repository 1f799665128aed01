package config

import (
	"flag"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	pkgRetry "github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/retry"
)

// environments in which the error-simulation API is reachable.
var simulationEnvironments = []string{"local", "development", "testing", "staging"}

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR,notEmpty"`

	// Database configuration
	DatabaseURL         string        `env:"DATABASE_URL,notEmpty"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
	MigrationsSource    string        `env:"MIGRATIONS_SOURCE"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL,notEmpty"`

	// Localization
	Locale           string   `env:"LOCALE" envDefault:"en"`
	AvailableLocales []string `env:"AVAILABLE_LOCALES" envDefault:"en,it"`
	TranslationsFile string   `env:"TRANSLATIONS_FILE"`

	// Upload policy declared by the application
	UploadCfg UploadConfig `envPrefix:"UPLOAD_"`

	// Limits imposed by the hosting platform, as size strings ("8M")
	PlatformCfg PlatformConfig `envPrefix:"PLATFORM_"`

	// Storage for accepted files
	StorageDir string `env:"STORAGE_DIR,notEmpty"`

	// Virus scanning
	ScanCfg ScanConfig `envPrefix:"SCAN_"`

	// Error management
	ErrorDefinitionsFile string        `env:"ERROR_DEFINITIONS_FILE"`
	SimulationTTL        time.Duration `env:"SIMULATION_TTL" envDefault:"1h"`

	// Team notifications (optional)
	NotifyCfg NotifyConfig `envPrefix:"NOTIFY_"`

	// Client pipeline configuration, used by the uploadctl binary
	ClientCfg ClientConfig `envPrefix:"CLIENT_"`

	// Environment (set from flag, not from env var)
	Environment string
}

// UploadConfig is the application-declared upload policy
type UploadConfig struct {
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS" envDefault:"jpg,jpeg,png,gif,webp,pdf,mp3,wav,mp4"`
	AllowedMimeTypes  []string `env:"ALLOWED_MIME_TYPES" envDefault:"image/jpeg,image/png,image/gif,image/webp,application/pdf,audio/mpeg,audio/wav,video/mp4"`
	MaxFileSize       int64    `env:"MAX_FILE_SIZE" envDefault:"104857600"`
	MaxTotalSize      int64    `env:"MAX_TOTAL_SIZE" envDefault:"524288000"`
	MaxFiles          int      `env:"MAX_FILES" envDefault:"20"`
	DefaultUploadType string   `env:"DEFAULT_UPLOAD_TYPE" envDefault:"egi"`
}

// PlatformConfig mirrors the hosting platform's request-size ceilings
type PlatformConfig struct {
	PostMaxSize       string `env:"POST_MAX_SIZE" envDefault:"1G"`
	UploadMaxFilesize string `env:"UPLOAD_MAX_FILESIZE" envDefault:"1G"`
	MaxFileUploads    int    `env:"MAX_FILE_UPLOADS" envDefault:"20"`
}

// ScanConfig tunes the asynchronous virus-scan worker pool
type ScanConfig struct {
	Enabled         bool `env:"ENABLED" envDefault:"true"`
	Workers         int  `env:"WORKERS" envDefault:"2"`
	QueueSize       int  `env:"QUEUE_SIZE" envDefault:"64"`
	ContinueOnError bool `env:"CONTINUE_ON_ERROR" envDefault:"false"`
}

// NotifyConfig holds Telegram team-notification configuration
type NotifyConfig struct {
	Enabled          bool   `env:"ENABLED" envDefault:"false"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`
}

// ClientConfig configures the upload client pipeline
type ClientConfig struct {
	HTTPClientConfig
	CSRFToken   string          `env:"CSRF_TOKEN"`
	Concurrency int             `env:"CONCURRENCY" envDefault:"3"`
	ScanTimeout time.Duration   `env:"SCAN_TIMEOUT" envDefault:"2m"`
	Retry       pkgRetry.Config `envPrefix:"RETRY_"`
}

// HTTPClientConfig holds outbound HTTP client tuning
type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"5m"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"30s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"30s"`
	Url                   string        `env:"SERVICE_URL"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = *envFlag

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// SimulationAllowed reports whether the error-simulation API may be
// exposed in the configured environment.
func (c *Config) SimulationAllowed() bool {
	return slices.Contains(simulationEnvironments, strings.ToLower(c.Environment))
}

func validateConfig(cfg *Config) error {
	var errors []string

	// Validate Database configuration
	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		errors = append(errors, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
	}

	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		errors = append(errors, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
	}

	// Validate upload policy
	if cfg.UploadCfg.MaxFileSize < 1 {
		errors = append(errors, fmt.Sprintf("UPLOAD_MAX_FILE_SIZE must be positive, got %d", cfg.UploadCfg.MaxFileSize))
	}

	if cfg.UploadCfg.MaxTotalSize < cfg.UploadCfg.MaxFileSize {
		errors = append(errors, fmt.Sprintf("UPLOAD_MAX_TOTAL_SIZE must be at least UPLOAD_MAX_FILE_SIZE(%d), got %d", cfg.UploadCfg.MaxFileSize, cfg.UploadCfg.MaxTotalSize))
	}

	if cfg.UploadCfg.MaxFiles < 1 || cfg.UploadCfg.MaxFiles > 100 {
		errors = append(errors, fmt.Sprintf("UPLOAD_MAX_FILES must be between 1 and 100, got %d", cfg.UploadCfg.MaxFiles))
	}

	// Validate localization
	if !slices.Contains(cfg.AvailableLocales, cfg.Locale) {
		errors = append(errors, fmt.Sprintf("LOCALE %q is not among AVAILABLE_LOCALES %v", cfg.Locale, cfg.AvailableLocales))
	}

	// Validate scan worker pool
	if cfg.ScanCfg.Workers < 1 || cfg.ScanCfg.Workers > 32 {
		errors = append(errors, fmt.Sprintf("SCAN_WORKERS must be between 1 and 32, got %d", cfg.ScanCfg.Workers))
	}

	// Validate client retry policy
	if cfg.ClientCfg.Retry.Attempts < 1 || cfg.ClientCfg.Retry.Attempts > 10 {
		errors = append(errors, fmt.Sprintf("CLIENT_RETRY_ATTEMPTS must be between 1 and 10, got %d", cfg.ClientCfg.Retry.Attempts))
	}

	// Validate team notifications
	if cfg.NotifyCfg.Enabled && cfg.NotifyCfg.TelegramBotToken == "" {
		errors = append(errors, "NOTIFY_TELEGRAM_BOT_TOKEN is required when NOTIFY_ENABLED is true")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
