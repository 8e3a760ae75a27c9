package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"durood/internal/core"
	"durood/internal/log"
)

type Config struct {
	// HTTP Server
	Port string

	// Persistence
	DataBackend   string
	SQLiteDBPath  string
	StateFilePath string

	// Business day
	DayCutoffHour    int
	DayUTCOffset     string
	RolloverInterval time.Duration

	// AMQP event publishing, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:   getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/durood.db"),
		StateFilePath: getEnv("STATE_FILE_PATH", "./data/durood.json"),

		DayCutoffHour:    getEnvInt("DAY_CUTOFF_HOUR", core.DefaultDayPolicy.CutoffHour),
		DayUTCOffset:     getEnv("DAY_UTC_OFFSET", core.FormatUTCOffset(core.DefaultDayPolicy.Offset)),
		RolloverInterval: getEnvDuration("ROLLOVER_INTERVAL", time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "durood"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "durood_events"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// DayPolicy builds the business-day policy from the cutoff and offset settings.
func (c *Config) DayPolicy() (core.DayPolicy, error) {
	offset, err := core.ParseUTCOffset(c.DayUTCOffset)
	if err != nil {
		return core.DayPolicy{}, err
	}
	p := core.DayPolicy{Offset: offset, CutoffHour: c.DayCutoffHour}
	if err := p.Validate(); err != nil {
		return core.DayPolicy{}, err
	}
	return p, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "file", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	case "file":
		if c.StateFilePath == "" {
			errors = append(errors, "state file path cannot be empty when using file backend")
		} else if msg := ensureDir(c.StateFilePath); msg != "" {
			errors = append(errors, msg)
		}
	}

	// Validate business day settings
	if c.DayCutoffHour < 0 || c.DayCutoffHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid day cutoff hour %d: must be between 0 and 23", c.DayCutoffHour))
	}
	if _, err := core.ParseUTCOffset(c.DayUTCOffset); err != nil {
		errors = append(errors, fmt.Sprintf("invalid day utc offset: %v", err))
	} else if _, err := c.DayPolicy(); err != nil && c.DayCutoffHour >= 0 && c.DayCutoffHour <= 23 {
		errors = append(errors, fmt.Sprintf("invalid day policy: %v", err))
	}

	if c.RolloverInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at least 1 second", c.RolloverInterval))
	} else if c.RolloverInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at most 1 hour", c.RolloverInterval))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ensureDir creates the parent directory of path and returns a message on failure.
func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create data directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
