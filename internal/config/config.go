package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// CORSOrigins is the comma-separated allow-list for the JSON API.
	CORSOrigins []string

	DBDriver          string
	DBDSN             string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// MQTTEnabled is an administrative switch: false keeps the connection
	// manager permanently disconnected (no-op mode), which is not a failure.
	MQTTEnabled       bool
	MQTTBrokerURL     string
	MQTTUsername      string
	MQTTPassword      string
	MQTTClientID      string
	MQTTTopicPrefix   string
	MQTTReconnectWait time.Duration
	MQTTMaxReconnects int

	// IngestKeepRaw stores the original broker payload with each reading for
	// forensic replay.
	IngestKeepRaw bool
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	httpAddr := envOr("HTTP_ADDR", ":8080")

	var corsOrigins []string
	for _, o := range strings.Split(envOr("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}

	driver := envOr("DB_DRIVER", "sqlite3")
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := envOr("SQLITE_PATH", "data/airsense.db")

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}

	mqttEnabled, err := envBool("MQTT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	brokerURL := envOr("MQTT_BROKER_URL", "tcp://localhost:1883")
	topicPrefix := envOr("MQTT_TOPIC_PREFIX", "airsense/devices")
	if len(strings.Split(topicPrefix, "/")) != 2 {
		return Config{}, fmt.Errorf("invalid MQTT_TOPIC_PREFIX %q (expected two /-separated segments)", topicPrefix)
	}
	reconnectWait, err := envDuration("MQTT_RECONNECT_PERIOD", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	if reconnectWait <= 0 {
		return Config{}, fmt.Errorf("MQTT_RECONNECT_PERIOD must be > 0")
	}
	maxReconnects, err := envInt("MQTT_MAX_RECONNECTS", 10)
	if err != nil {
		return Config{}, err
	}
	if maxReconnects < 1 {
		return Config{}, fmt.Errorf("MQTT_MAX_RECONNECTS must be >= 1")
	}

	keepRaw, err := envBool("INGEST_KEEP_RAW", true)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:            appEnv,
		LogLevel:          level,
		HTTPAddr:          httpAddr,
		CORSOrigins:       corsOrigins,
		DBDriver:          driver,
		DBDSN:             dsn,
		SQLitePath:        path,
		DBMaxOpenConns:    maxOpenConns,
		DBMaxIdleConns:    maxIdleConns,
		DBConnMaxLifetime: connMaxLifetime,
		MQTTEnabled:       mqttEnabled,
		MQTTBrokerURL:     brokerURL,
		MQTTUsername:      strings.TrimSpace(os.Getenv("MQTT_USERNAME")),
		MQTTPassword:      os.Getenv("MQTT_PASSWORD"),
		MQTTClientID:      strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID")),
		MQTTTopicPrefix:   topicPrefix,
		MQTTReconnectWait: reconnectWait,
		MQTTMaxReconnects: maxReconnects,
		IngestKeepRaw:     keepRaw,
	}, nil
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
