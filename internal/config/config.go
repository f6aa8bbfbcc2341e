package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Schedule ScheduleConfig
	Alerts   AlertsConfig
	Discord  DiscordConfig
	Email    EmailConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration
	UserAgents   []string
	Workers      int
	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN returns the connection string, preferring a full DATABASE_URL
// over the discrete DB_* fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ScheduleConfig struct {
	Enabled       bool
	CheckInterval time.Duration
	WatchlistFile string
}

type AlertsConfig struct {
	DropThreshold  float64
	Stream         string
	RelayInterval  time.Duration
	RelayBatchSize int
	MaxRetries     int
}

type DiscordConfig struct {
	Enabled    bool
	WebhookURL string
}

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", "0.0.0.0"),
			Port:            getEnvInt("PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			MaxRetries:   getEnvInt("SCRAPER_MAX_RETRIES", 3),
			RetryDelay:   getEnvDuration("SCRAPER_RETRY_DELAY", 2*time.Second),
			Timeout:      getEnvDuration("SCRAPER_TIMEOUT", 30*time.Second),
			UserAgents:   getEnvSlice("SCRAPER_USER_AGENTS", nil),
			Workers:      getEnvInt("SCRAPER_WORKERS", 3),
			RateLimitMin: getEnvDuration("SCRAPER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax: getEnvDuration("SCRAPER_RATE_LIMIT_MAX", 6*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "price_tracker"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Schedule: ScheduleConfig{
			Enabled:       getEnvBool("SCHEDULE_ENABLED", true),
			CheckInterval: getEnvDuration("CHECK_INTERVAL", time.Hour),
			WatchlistFile: getEnv("WATCHLIST_FILE", ""),
		},
		Alerts: AlertsConfig{
			DropThreshold:  getEnvFloat("PRICE_DROP_THRESHOLD", 5.0),
			Stream:         getEnv("ALERT_STREAM", "stream:price_alerts"),
			RelayInterval:  getEnvDuration("RELAY_INTERVAL", 5*time.Second),
			RelayBatchSize: getEnvInt("RELAY_BATCH_SIZE", 10),
			MaxRetries:     getEnvInt("RELAY_MAX_RETRIES", 3),
		},
		Discord: DiscordConfig{
			Enabled:    getEnvBool("DISCORD_ENABLED", false),
			WebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		},
		Email: EmailConfig{
			Enabled:  getEnvBool("EMAIL_ENABLED", false),
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("EMAIL_FROM", ""),
			To:       getEnvSlice("EMAIL_TO", nil),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must be at least 1")
	}

	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if c.Alerts.DropThreshold <= 0 {
		return fmt.Errorf("PRICE_DROP_THRESHOLD must be positive")
	}

	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		return fmt.Errorf("DISCORD_WEBHOOK_URL is required when Discord notifications are enabled")
	}

	if c.Email.Enabled {
		if c.Email.Host == "" {
			return fmt.Errorf("SMTP_HOST is required when email notifications are enabled")
		}
		if c.Email.From == "" || len(c.Email.To) == 0 {
			return fmt.Errorf("EMAIL_FROM and EMAIL_TO are required when email notifications are enabled")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return parts
	}
	return defaultValue
}
