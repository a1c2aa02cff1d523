package app

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"tggate/cmd/internal/credstore"

	"github.com/BurntSushi/toml"
)

// ErrConfig is returned when startup configuration is missing or invalid.
var ErrConfig = errors.New("invalid configuration")

const defaultPort = "3000"

// Config contains all runtime configuration.
// Precedence: defaults, then the TOML file, then environment variables.
type Config struct {
	APIID    int
	APIHash  string
	Password string

	HTTPAddr string

	LogLevel         string
	LogFormat        string
	TelegramLogLevel string

	SessionFile       string
	SessionPassphrase string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	ConnectRetries int
	PairingTimeout time.Duration
	MaxBodyBytes   int64
	WSOrigins      []string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	// WriteTimeout is disabled by default: /send may wait on an operator scan.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// DefaultConfig returns the built-in defaults. Application credentials have none.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:          net.JoinHostPort("0.0.0.0", defaultPort),
		LogLevel:          "info",
		LogFormat:         "json",
		TelegramLogLevel:  "warn",
		SessionFile:       credstore.DefaultFilename,
		DBMaxConns:        4,
		ConnectRetries:    5,
		MaxBodyBytes:      1 << 20,
		WSOrigins:         []string{"localhost", "127.0.0.1"},
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

type fileConfig struct {
	APIID             int64    `toml:"api_id"`
	APIHash           string   `toml:"api_hash"`
	Password          string   `toml:"password"`
	Port              int      `toml:"port"`
	HTTPAddr          string   `toml:"http_addr"`
	LogLevel          string   `toml:"log_level"`
	LogFormat         string   `toml:"log_format"`
	TelegramLogLevel  string   `toml:"telegram_log_level"`
	SessionFile       string   `toml:"session_file"`
	SessionPassphrase string   `toml:"session_passphrase"`
	DatabaseURL       string   `toml:"database_url"`
	ConnectRetries    int      `toml:"connect_retries"`
	PairingTimeout    string   `toml:"pairing_timeout"`
	MaxBodyBytes      int64    `toml:"max_body_bytes"`
	WSOrigins         []string `toml:"ws_origins"`
}

// LoadConfig builds the configuration. path may be empty, in which case
// TGGATE_CONFIG is consulted.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = EnvString("TGGATE_CONFIG", "")
	}
	if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := overlayEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.APIID <= 0 {
		return Config{}, fmt.Errorf("%w: TELEGRAM_API_ID is required", ErrConfig)
	}
	if cfg.APIHash == "" {
		return Config{}, fmt.Errorf("%w: TELEGRAM_API_HASH is required", ErrConfig)
	}
	switch cfg.LogFormat {
	case "json", "pretty":
	default:
		return Config{}, fmt.Errorf("%w: log format %q (want json or pretty)", ErrConfig, cfg.LogFormat)
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("%w: load %s: %w", ErrConfig, path, err)
	}

	if meta.IsDefined("api_id") {
		if raw.APIID <= 0 || raw.APIID > int64(^uint32(0)>>1) {
			return fmt.Errorf("%w: api_id must be a positive 32-bit integer", ErrConfig)
		}
		cfg.APIID = int(raw.APIID)
	}
	if meta.IsDefined("api_hash") {
		cfg.APIHash = strings.TrimSpace(raw.APIHash)
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("port") {
		cfg.HTTPAddr = net.JoinHostPort("0.0.0.0", strconv.Itoa(raw.Port))
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(raw.LogFormat))
	}
	if meta.IsDefined("telegram_log_level") {
		cfg.TelegramLogLevel = strings.TrimSpace(raw.TelegramLogLevel)
	}
	if meta.IsDefined("session_file") {
		cfg.SessionFile = strings.TrimSpace(raw.SessionFile)
	}
	if meta.IsDefined("session_passphrase") {
		cfg.SessionPassphrase = raw.SessionPassphrase
	}
	if meta.IsDefined("database_url") {
		cfg.DatabaseURL = strings.TrimSpace(raw.DatabaseURL)
	}
	if meta.IsDefined("connect_retries") && raw.ConnectRetries > 0 {
		cfg.ConnectRetries = raw.ConnectRetries
	}
	if meta.IsDefined("pairing_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PairingTimeout))
		if err != nil || d < 0 {
			return fmt.Errorf("%w: parse pairing_timeout %q", ErrConfig, raw.PairingTimeout)
		}
		cfg.PairingTimeout = d
	}
	if meta.IsDefined("max_body_bytes") && raw.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = raw.MaxBodyBytes
	}
	if meta.IsDefined("ws_origins") {
		cfg.WSOrigins = raw.WSOrigins
	}
	return nil
}

func overlayEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_API_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 32)
		if err != nil || id <= 0 {
			return fmt.Errorf("%w: TELEGRAM_API_ID %q is not a positive integer", ErrConfig, v)
		}
		cfg.APIID = int(id)
	}
	cfg.APIHash = EnvString("TELEGRAM_API_HASH", cfg.APIHash)
	// Not trimmed: whitespace may be part of a password.
	if v := os.Getenv("TELEGRAM_PASSWORD"); v != "" {
		cfg.Password = v
	}

	if port := EnvString("PORT", ""); port != "" {
		cfg.HTTPAddr = net.JoinHostPort("0.0.0.0", port)
	}
	cfg.HTTPAddr = EnvString("TGGATE_HTTP_ADDR", cfg.HTTPAddr)

	cfg.LogLevel = EnvString("TGGATE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(EnvString("TGGATE_LOG_FORMAT", cfg.LogFormat))
	cfg.TelegramLogLevel = EnvString("TGGATE_TELEGRAM_LOG_LEVEL", cfg.TelegramLogLevel)

	cfg.SessionFile = EnvString("TGGATE_SESSION_FILE", cfg.SessionFile)
	cfg.SessionPassphrase = EnvString("TGGATE_SESSION_PASSPHRASE", cfg.SessionPassphrase)

	cfg.DatabaseURL = EnvString("TGGATE_DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxConns = EnvInt32("TGGATE_DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.DBMinConns = EnvInt32("TGGATE_DB_MIN_CONNS", cfg.DBMinConns)

	cfg.ConnectRetries = EnvInt("TGGATE_CONNECT_RETRIES", cfg.ConnectRetries)
	cfg.PairingTimeout = EnvDuration("TGGATE_PAIRING_TIMEOUT", cfg.PairingTimeout)
	cfg.MaxBodyBytes = EnvInt64("TGGATE_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.WSOrigins = EnvList("TGGATE_WS_ORIGINS", cfg.WSOrigins)

	cfg.ReadHeaderTimeout = EnvDuration("TGGATE_HTTP_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout)
	cfg.ReadTimeout = EnvDuration("TGGATE_HTTP_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = EnvDuration("TGGATE_HTTP_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = EnvDuration("TGGATE_HTTP_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = EnvDuration("TGGATE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.MaxHeaderBytes = EnvInt("TGGATE_HTTP_MAX_HEADER_BYTES", cfg.MaxHeaderBytes)
	return nil
}
