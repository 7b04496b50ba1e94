package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds the entire configuration document for the watchdog. It
// supports three-layer configuration priority:
// 1. Default values (lowest priority)
// 2. Environment variables (medium priority)
// 3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	 WithTelegramCredentials(token, chatID),
//	 WithCheckInterval(5*time.Minute),
//	)
//	if err != nil {
//	 log.Fatal(err)
//	}
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Domains []string `json:"domains"`
	Check CheckConfig `json:"check"`
	Notification NotificationConfig `json:"notification"`
	History HistoryConfig `json:"history"`
	DailyReport DailyReportConfig `json:"daily_report"`
	HTTPAPI HTTPAPIConfig `json:"http_api"`
	Logging LoggingConfig `json:"logging"`
	Development DevelopmentConfig `json:"development"`
	Resilience ResilienceConfig `json:"resilience"`

	// logger is used for logging during config loading/parsing. Excluded
	// from JSON.
	logger Logger `json:"-"`

	// mu guards every field above once the process is running: the
	// scheduler reads it once per cycle via Snapshot/Endpoints, and the
	// gateway's command dispatcher writes it in response to admin commands.
	mu sync.RWMutex `json:"-"`
}

// RLock acquires the config's read lock. Call before reading any field
// directly; Snapshot and Endpoints take it internally.
func (c *Config) RLock() { c.mu.RLock() }

// RUnlock releases the config's read lock.
func (c *Config) RUnlock() { c.mu.RUnlock() }

// Lock acquires the config's write lock, for admin-command mutation.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config's write lock.
func (c *Config) Unlock() { c.mu.Unlock() }

// Mutate runs fn with the write lock held, a convenience for the gateway's
// command handlers that change a handful of fields atomically.
func (c *Config) Mutate(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// Logger returns the process-wide logger NewConfig attached, for callers
// (chiefly gateway.Server's HTTP middleware) that need the context-aware
// Logger interface rather than the domain packages' pkg/logger.Logger.
func (c *Config) Logger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// Endpoints returns the flat endpoint set: Domains when no groups are
// configured, or the union of every group's Domains otherwise.
func (c *Config) Endpoints() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.Telegram.Groups) == 0 {
		out := make([]string, len(c.Domains))
		copy(out, c.Domains)
		return out
	}

	seen := make(map[string]struct{})
	var out []string
	for _, g := range c.Telegram.Groups {
		for _, d := range g.Domains {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				out = append(out, d)
			}
		}
	}
	return out
}

// TelegramConfig holds the credentials and routing table for the outbound
// messenger.
type TelegramConfig struct {
	BotToken string `json:"bot_token" env:"PULSEGUARD_TELEGRAM_TOKEN"`
	ChatID string `json:"chat_id" env:"PULSEGUARD_TELEGRAM_CHAT_ID"`
	AdminUsers []string `json:"admin_users" env:"PULSEGUARD_TELEGRAM_ADMINS"`
	Groups map[string]GroupConfig `json:"groups"`
}

// GroupConfig describes one multi-group routing target. When Groups is
// non-empty it supersedes the top-level Domains list.
type GroupConfig struct {
	Name string `json:"name"`
	Domains []string `json:"domains"`
	Admins []string `json:"admins"`
}

// CheckConfig controls the cycle scheduler and worker pool.
type CheckConfig struct {
	IntervalMinutes int `json:"interval_minutes" env:"PULSEGUARD_CHECK_INTERVAL_MINUTES" default:"5"`
	TimeoutSeconds int `json:"timeout_seconds" env:"PULSEGUARD_CHECK_TIMEOUT_SECONDS" default:"10"`
	RetryCount int `json:"retry_count" env:"PULSEGUARD_CHECK_RETRY_COUNT" default:"1"`
	RetryDelaySeconds int `json:"retry_delay_seconds" env:"PULSEGUARD_CHECK_RETRY_DELAY_SECONDS" default:"2"`
	MaxConcurrent int `json:"max_concurrent" env:"PULSEGUARD_CHECK_MAX_CONCURRENT" default:"20"`
	AutoAdjustConcurrent bool `json:"auto_adjust_concurrent" env:"PULSEGUARD_CHECK_AUTO_ADJUST" default:"true"`
	BatchNotify bool `json:"batch_notify" env:"PULSEGUARD_CHECK_BATCH_NOTIFY" default:"true"`
	ShowETA bool `json:"show_eta" env:"PULSEGUARD_CHECK_SHOW_ETA" default:"true"`
}

// NotificationConfig controls the notification policy engine.
type NotificationConfig struct {
	Level string `json:"level" env:"PULSEGUARD_NOTIFICATION_LEVEL" default:"smart"`
	FailureThreshold int `json:"failure_threshold" env:"PULSEGUARD_NOTIFICATION_FAILURE_THRESHOLD" default:"3"`
	CooldownMinutes int `json:"cooldown_minutes" env:"PULSEGUARD_NOTIFICATION_COOLDOWN_MINUTES" default:"30"`
	NotifyOnRecovery bool `json:"notify_on_recovery" env:"PULSEGUARD_NOTIFICATION_NOTIFY_ON_RECOVERY" default:"true"`
}

// HistoryConfig controls retention of HistoryRecord entries in the tracker.
type HistoryConfig struct {
	Enabled bool `json:"enabled" env:"PULSEGUARD_HISTORY_ENABLED" default:"true"`
	RetentionDays int `json:"retention_days" env:"PULSEGUARD_HISTORY_RETENTION_DAYS" default:"30"`
}

// DailyReportConfig controls the independent daily-summary task.
type DailyReportConfig struct {
	Enabled bool `json:"enabled" env:"PULSEGUARD_DAILY_REPORT_ENABLED" default:"false"`
	Time string `json:"time" env:"PULSEGUARD_DAILY_REPORT_TIME" default:"09:00"`
}

// HTTPAPIConfig controls the inbound HTTP API exposed by gateway.Server.
type HTTPAPIConfig struct {
	Enabled bool `json:"enabled" env:"PULSEGUARD_HTTP_API_ENABLED" default:"false"`
	Host string `json:"host" env:"PULSEGUARD_HTTP_API_HOST" default:"0.0.0.0"`
	Port int `json:"port" env:"PULSEGUARD_HTTP_API_PORT" default:"8080"`
	Auth HTTPAuthConfig `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	AllowedIPs []string `json:"allowed_ips" env:"PULSEGUARD_HTTP_API_ALLOWED_IPS"`
	CORS CORSConfig `json:"cors"`

	ReadTimeout time.Duration `json:"read_timeout" env:"PULSEGUARD_HTTP_API_READ_TIMEOUT" default:"10s"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"PULSEGUARD_HTTP_API_READ_HEADER_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `json:"write_timeout" env:"PULSEGUARD_HTTP_API_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout time.Duration `json:"idle_timeout" env:"PULSEGUARD_HTTP_API_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"PULSEGUARD_HTTP_API_SHUTDOWN_TIMEOUT" default:"10s"`
}

// HTTPAuthConfig controls bearer/API-key auth on the inbound HTTP API.
type HTTPAuthConfig struct {
	Enabled bool `json:"enabled" env:"PULSEGUARD_HTTP_API_AUTH_ENABLED" default:"false"`
	APIKey string `json:"api_key" env:"PULSEGUARD_HTTP_API_KEY"`
}

// RateLimitConfig controls the token-bucket limiter in front of the inbound
// HTTP API (golang.org/x/time/rate).
type RateLimitConfig struct {
	Enabled bool `json:"enabled" env:"PULSEGUARD_HTTP_API_RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int `json:"requests_per_minute" env:"PULSEGUARD_HTTP_API_RATE_LIMIT_RPM" default:"60"`
}

// CORSConfig contains Cross-Origin Resource Sharing (CORS) configuration.
// Supports wildcard domains (e.g., *.example.com) and wildcard ports (e.g.,
// http://localhost:*).
type CORSConfig struct {
	Enabled bool `json:"enabled" env:"PULSEGUARD_CORS_ENABLED" default:"false"`
	AllowedOrigins []string `json:"allowed_origins" env:"PULSEGUARD_CORS_ORIGINS"`
	AllowedMethods []string `json:"allowed_methods" env:"PULSEGUARD_CORS_METHODS" default:"GET,POST,OPTIONS"`
	AllowedHeaders []string `json:"allowed_headers" env:"PULSEGUARD_CORS_HEADERS" default:"Content-Type,Authorization"`
	ExposedHeaders []string `json:"exposed_headers" env:"PULSEGUARD_CORS_EXPOSED_HEADERS"`
	AllowCredentials bool `json:"allow_credentials" env:"PULSEGUARD_CORS_CREDENTIALS" default:"false"`
	MaxAge int `json:"max_age" env:"PULSEGUARD_CORS_MAX_AGE" default:"86400"`
}

// ResilienceConfig contains fault tolerance and resilience patterns
// configuration for the notifier client.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	Retry RetryConfig `json:"retry"`
}

// CircuitBreakerConfig defines circuit breaker pattern settings.
type CircuitBreakerConfig struct {
	Enabled bool `json:"enabled" env:"PULSEGUARD_CB_ENABLED" default:"true"`
	Threshold int `json:"threshold" env:"PULSEGUARD_CB_THRESHOLD" default:"5"`
	Timeout time.Duration `json:"timeout" env:"PULSEGUARD_CB_TIMEOUT" default:"30s"`
	HalfOpenRequests int `json:"half_open_requests" env:"PULSEGUARD_CB_HALF_OPEN" default:"3"`
}

// RetryConfig defines retry pattern settings with exponential backoff.
// Formula: interval = min(InitialInterval * (Multiplier ^ attempt), MaxInterval).
// The notifier's retry loop waits InitialInterval before the first retry;
// every later wait is drawn uniformly below that interval (full jitter).
type RetryConfig struct {
	MaxAttempts int `json:"max_attempts" env:"PULSEGUARD_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialInterval time.Duration `json:"initial_interval" env:"PULSEGUARD_RETRY_INITIAL_INTERVAL" default:"1s"`
	MaxInterval time.Duration `json:"max_interval" env:"PULSEGUARD_RETRY_MAX_INTERVAL" default:"30s"`
	Multiplier float64 `json:"multiplier" env:"PULSEGUARD_RETRY_MULTIPLIER" default:"2.0"`
}

// LoggingConfig contains logging configuration. Supports structured (JSON)
// and human-readable (text) formats.
type LoggingConfig struct {
	Level string `json:"level" env:"PULSEGUARD_LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"PULSEGUARD_LOG_FORMAT" default:"json"`
	Output string `json:"output" env:"PULSEGUARD_LOG_OUTPUT" default:"stdout"`
	File string `json:"file" env:"PULSEGUARD_LOG_FILE"`
	MaxSizeMB int `json:"max_size_mb" env:"PULSEGUARD_LOG_MAX_SIZE_MB" default:"100"`
	BackupCount int `json:"backup_count" env:"PULSEGUARD_LOG_BACKUP_COUNT" default:"3"`
	TimeFormat string `json:"time_format" env:"PULSEGUARD_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.999999999Z07:00"`
}

// DevelopmentConfig contains settings for local development and testing.
type DevelopmentConfig struct {
	Enabled bool `json:"enabled" env:"PULSEGUARD_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"PULSEGUARD_DEBUG" default:"false"`
	PrettyLogs bool `json:"pretty_logs" env:"PULSEGUARD_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring the watchdog. Options are
// applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults, adjusted for
// local development unless PULSEGUARD_DEV_MODE is explicitly set.
func DefaultConfig() *Config {
	cfg := &Config{
		Check: CheckConfig{
			IntervalMinutes: 5,
			TimeoutSeconds: 10,
			RetryCount: 1,
			RetryDelaySeconds: 2,
			MaxConcurrent: 20,
			AutoAdjustConcurrent: true,
			BatchNotify: true,
			ShowETA: true,
		},
		Notification: NotificationConfig{
			Level: "smart",
			FailureThreshold: 3,
			CooldownMinutes: 30,
			NotifyOnRecovery: true,
		},
		History: HistoryConfig{
			Enabled: true,
			RetentionDays: 30,
		},
		DailyReport: DailyReportConfig{
			Enabled: false,
			Time: "09:00",
		},
		HTTPAPI: HTTPAPIConfig{
			Enabled: false,
			Host: "0.0.0.0",
			Port: 8080,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RequestsPerMinute: 60,
			},
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge: 86400,
			},
			ReadTimeout: 10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled: true,
				Threshold: 5,
				Timeout: 30 * time.Second,
				HalfOpenRequests: 3,
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				InitialInterval: 1 * time.Second,
				MaxInterval: 30 * time.Second,
				Multiplier: 2.0,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
			Format: "json",
			Output: "stdout",
			MaxSizeMB: 100,
			BackupCount: 3,
			TimeFormat: time.RFC3339Nano,
		},
		Development: DevelopmentConfig{},
	}

	if os.Getenv("PULSEGUARD_DEV_MODE") == "" {
		cfg.Development.Enabled = true
		cfg.Development.PrettyLogs = true
		cfg.Logging.Format = "text"
	}

	return cfg
}

// LoadFromEnv loads configuration from environment variables and validates
// the result. Environment variables take precedence over defaults but are
// overridden by functional options.
func (c *Config) LoadFromEnv() error {
	if c.logger != nil {
		c.logger.Info("loading configuration from environment", nil)
	}

	if v := os.Getenv(EnvTelegramBotToken); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(EnvTelegramChatID); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("PULSEGUARD_TELEGRAM_ADMINS"); v != "" {
		c.Telegram.AdminUsers = parseStringList(v)
	}

	if v := os.Getenv("PULSEGUARD_CHECK_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Check.IntervalMinutes = n
		}
	}
	if v := os.Getenv("PULSEGUARD_CHECK_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Check.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("PULSEGUARD_CHECK_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Check.RetryCount = n
		}
	}
	if v := os.Getenv("PULSEGUARD_CHECK_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Check.MaxConcurrent = n
		}
	}
	if v := os.Getenv("PULSEGUARD_CHECK_AUTO_ADJUST"); v != "" {
		c.Check.AutoAdjustConcurrent = parseBool(v)
	}

	if v := os.Getenv("PULSEGUARD_NOTIFICATION_LEVEL"); v != "" {
		c.Notification.Level = v
	}
	if v := os.Getenv("PULSEGUARD_NOTIFICATION_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Notification.FailureThreshold = n
		}
	}

	if v := os.Getenv("PULSEGUARD_HISTORY_ENABLED"); v != "" {
		c.History.Enabled = parseBool(v)
	}
	if v := os.Getenv("PULSEGUARD_HISTORY_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.RetentionDays = n
		}
	}

	if v := os.Getenv("PULSEGUARD_DAILY_REPORT_ENABLED"); v != "" {
		c.DailyReport.Enabled = parseBool(v)
	}
	if v := os.Getenv("PULSEGUARD_DAILY_REPORT_TIME"); v != "" {
		c.DailyReport.Time = v
	}

	if v := os.Getenv("PULSEGUARD_HTTP_API_ENABLED"); v != "" {
		c.HTTPAPI.Enabled = parseBool(v)
	}
	if v := os.Getenv("PULSEGUARD_HTTP_API_HOST"); v != "" {
		c.HTTPAPI.Host = v
	}
	if v := os.Getenv("PULSEGUARD_HTTP_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTPAPI.Port = n
		}
	}
	if v := os.Getenv("PULSEGUARD_HTTP_API_KEY"); v != "" {
		c.HTTPAPI.Auth.APIKey = v
		c.HTTPAPI.Auth.Enabled = true
	}
	if v := os.Getenv("PULSEGUARD_CORS_ENABLED"); v != "" {
		c.HTTPAPI.CORS.Enabled = parseBool(v)
	}
	if v := os.Getenv("PULSEGUARD_CORS_ORIGINS"); v != "" {
		c.HTTPAPI.CORS.AllowedOrigins = parseStringList(v)
	}

	if v := os.Getenv(EnvPort); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTPAPI.Port = n
		}
	}

	if v := os.Getenv("PULSEGUARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PULSEGUARD_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(EnvDevMode); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
	}
	if v := os.Getenv("PULSEGUARD_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
		if c.Development.DebugLogging {
			c.Logging.Level = "debug"
		}
	}

	if err := c.Validate(); err != nil {
		if c.logger != nil {
			c.logger.Error("configuration validation failed", map[string]interface{}{"error": err.Error()})
		}
		return err
	}

	if c.logger != nil {
		c.logger.Info("configuration loading completed", map[string]interface{}{
			"check_interval_minutes": c.Check.IntervalMinutes,
			"notification_level": c.Notification.Level,
			"http_api_enabled": c.HTTPAPI.Enabled,
		})
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file at path, following the
// rename-to-.bak write discipline documented for Store.Save: this method
// only reads, the matching write-side discipline lives in gateway.Store.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- path is cleaned above
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
	}

	if c.logger != nil {
		c.logger.Info("configuration file loaded", map[string]interface{}{"file_path": cleanPath})
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Check.IntervalMinutes < 1 || c.Check.IntervalMinutes > 1440 {
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: fmt.Sprintf("invalid check.interval_minutes: %d", c.Check.IntervalMinutes), Err: ErrInvalidConfiguration}
	}
	if c.Check.TimeoutSeconds < 1 || c.Check.TimeoutSeconds > 300 {
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: fmt.Sprintf("invalid check.timeout_seconds: %d", c.Check.TimeoutSeconds), Err: ErrInvalidConfiguration}
	}
	if c.Check.RetryCount < 0 || c.Check.RetryCount > 10 {
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: fmt.Sprintf("invalid check.retry_count: %d", c.Check.RetryCount), Err: ErrInvalidConfiguration}
	}
	if c.Check.MaxConcurrent < 1 || c.Check.MaxConcurrent > 200 {
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: fmt.Sprintf("invalid check.max_concurrent: %d", c.Check.MaxConcurrent), Err: ErrInvalidConfiguration}
	}

	switch c.Notification.Level {
	case "all", "error", "smart":
	default:
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: fmt.Sprintf("invalid notification.level: %q", c.Notification.Level), Err: ErrInvalidConfiguration}
	}
	if c.Notification.FailureThreshold < 1 || c.Notification.FailureThreshold > 100 {
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: fmt.Sprintf("invalid notification.failure_threshold: %d", c.Notification.FailureThreshold), Err: ErrInvalidConfiguration}
	}

	if c.HTTPAPI.Enabled && (c.HTTPAPI.Port < 1 || c.HTTPAPI.Port > 65535) {
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: fmt.Sprintf("invalid http_api.port: %d", c.HTTPAPI.Port), Err: ErrInvalidConfiguration}
	}
	if c.HTTPAPI.Auth.Enabled && c.HTTPAPI.Auth.APIKey == "" {
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: "http_api.auth.api_key is required when http_api.auth.enabled is true", Err: ErrMissingConfiguration}
	}

	// A missing bot token is valid: the process then runs without a
	// notifier. Once a token is set, it needs somewhere to send.
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" && len(c.Telegram.Groups) == 0 {
		return &FrameworkError{Op: "Config.Validate", Kind: "config",
			Message: "telegram.chat_id is required unless telegram.groups is set", Err: ErrMissingConfiguration}
	}

	return nil
}

// Helper functions

func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithTelegramCredentials sets the default-group bot token and chat ID.
func WithTelegramCredentials(botToken, chatID string) Option {
	return func(c *Config) error {
		c.Telegram.BotToken = botToken
		c.Telegram.ChatID = chatID
		return nil
	}
}

// WithDomains sets the single-group endpoint list.
func WithDomains(domains []string) Option {
	return func(c *Config) error {
		c.Domains = domains
		return nil
	}
}

// WithCheckInterval sets the cycle interval.
func WithCheckInterval(d time.Duration) Option {
	return func(c *Config) error {
		minutes := int(d / time.Minute)
		if minutes < 1 || minutes > 1440 {
			return &FrameworkError{Op: "WithCheckInterval", Kind: "config",
				Message: fmt.Sprintf("invalid interval: %s", d), Err: ErrInvalidConfiguration}
		}
		c.Check.IntervalMinutes = minutes
		return nil
	}
}

// WithMaxConcurrent sets the worker pool width.
func WithMaxConcurrent(n int) Option {
	return func(c *Config) error {
		if n < 1 || n > 200 {
			return &FrameworkError{Op: "WithMaxConcurrent", Kind: "config",
				Message: fmt.Sprintf("invalid max_concurrent: %d", n), Err: ErrInvalidConfiguration}
		}
		c.Check.MaxConcurrent = n
		return nil
	}
}

// WithNotificationLevel sets the notification policy level (all|error|smart).
func WithNotificationLevel(level string) Option {
	return func(c *Config) error {
		c.Notification.Level = level
		return nil
	}
}

// WithCORS enables CORS with specific allowed origins on the inbound HTTP API.
// Supports wildcard patterns:
// - "*" allows all origins
// - "*.example.com" allows all subdomains
// - "http://localhost:*" allows any localhost port
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTPAPI.CORS.Enabled = true
		c.HTTPAPI.CORS.AllowedOrigins = origins
		c.HTTPAPI.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithHTTPAPI enables the inbound HTTP API on host:port.
func WithHTTPAPI(host string, port int) Option {
	return func(c *Config) error {
		c.HTTPAPI.Enabled = true
		c.HTTPAPI.Host = host
		c.HTTPAPI.Port = port
		return nil
	}
}

// WithAPIKey enables bearer/API-key auth on the inbound HTTP API.
func WithAPIKey(key string) Option {
	return func(c *Config) error {
		c.HTTPAPI.Auth.Enabled = true
		c.HTTPAPI.Auth.APIKey = key
		return nil
	}
}

// WithCircuitBreaker enables the circuit breaker pattern for the notifier
// client.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.CircuitBreaker.Enabled = true
		c.Resilience.CircuitBreaker.Threshold = threshold
		c.Resilience.CircuitBreaker.Timeout = timeout
		return nil
	}
}

// WithRetry configures automatic retry with exponential backoff.
func WithRetry(maxAttempts int, initialInterval time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.Retry.MaxAttempts = maxAttempts
		c.Resilience.Retry.InitialInterval = initialInterval
		return nil
	}
}

// WithLogLevel sets the minimum logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging output format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithConfigFile loads configuration from a JSON file. Options are applied
// in the order given, so only options listed after it override file
// settings.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode enables development mode with developer-friendly
// defaults: pretty logs, debug level, text format.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// WithLogger sets a logger for configuration operations. If not set,
// configuration operations are performed silently.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
// 1. Default values from DefaultConfig()
// 2. Environment variables via LoadFromEnv()
// 3. Functional options (highest priority)
// 4. Validation via Validate()
func NewConfig(opts...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, "pulseguard")
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ============================================================================
// ProductionLogger — dual-format (JSON/text) process-wide logger
// ============================================================================

// ProductionLogger provides layered observability for watchdog operations.
type ProductionLogger struct {
	level string
	debug bool
	serviceName string
	format string
	output io.Writer

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level: strings.ToLower(logging.Level),
		debug: dev.DebugLogging || logging.Level == "debug",
		serviceName: serviceName,
		format: logging.Format,
		output: output,
		metricsEnabled: false,
	}
}

// EnableMetrics is called once a MetricsRegistry has been installed.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level": level,
			"service": p.serviceName,
			"message": msg,
		}
		for k, v := range fields {
			logEntry[k] = v
		}
		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}
		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s\n",
			timestamp, level, p.serviceName, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitMetric(level)
	}
}

func (p *ProductionLogger) emitMetric(level string) {
	if globalMetricsRegistry == nil {
		return
	}
	globalMetricsRegistry.Counter("pulseguard.log.lines", "level", level, "service", p.serviceName)
}

// Snapshot flattens the live configuration document into the ExecutionConfig
// the scheduler and worker pool consume for a single cycle. Takes the read
// lock itself, so callers should not hold it already.
func (c *Config) Snapshot() ExecutionConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := ExecutionConfig{
		IntervalMinutes: c.Check.IntervalMinutes,
		TimeoutSeconds: c.Check.TimeoutSeconds,
		RetryCount: c.Check.RetryCount,
		RetryDelaySeconds: c.Check.RetryDelaySeconds,
		MaxConcurrent: c.Check.MaxConcurrent,
		AutoAdjust: c.Check.AutoAdjustConcurrent,
		BatchNotify: c.Check.BatchNotify,
		ShowETA: c.Check.ShowETA,
		NotificationLevel: c.Notification.Level,
		FailureThreshold: c.Notification.FailureThreshold,
	}
	if c.DailyReport.Enabled {
		e.DailyReportTime = c.DailyReport.Time
	}
	return e
}
