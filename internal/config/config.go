package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines client and dev server configuration.
type Config struct {
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Remote    RemoteConfig    `yaml:"remote"`
	Auth      AuthConfig      `yaml:"auth"`
	Sync      SyncConfig      `yaml:"sync"`
	Store     StoreConfig     `yaml:"store"`
	Chat      ChatConfig      `yaml:"chat"`
	Migration MigrationConfig `yaml:"migration"`
	Server    ServerConfig    `yaml:"server"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Path sends logs to a rotated file instead of stderr.
	Path string `yaml:"path"`
}

type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	UserID string `yaml:"user_id"`
	Token  string `yaml:"token"`
}

type SyncConfig struct {
	Debounce           time.Duration `yaml:"debounce"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	LogoutFlushTimeout time.Duration `yaml:"logout_flush_timeout"`
}

type StoreConfig struct {
	// QuotaBytes caps the local store; 0 means unlimited.
	QuotaBytes int64 `yaml:"quota_bytes"`
}

type ChatConfig struct {
	MaxMessages      int `yaml:"max_messages"`
	MaxMessageLength int `yaml:"max_message_length"`
}

type MigrationConfig struct {
	KeepLegacyKeys bool `yaml:"keep_legacy_keys"`
}

// ServerConfig is the listen address of the development sync server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DB: DBConfig{
			Path: "blueprint.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Remote: RemoteConfig{
			BaseURL: "http://127.0.0.1:8080",
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Debounce:           2 * time.Second,
			RetryInterval:      30 * time.Second,
			LogoutFlushTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			QuotaBytes: 5 * 1024 * 1024,
		},
		Chat: ChatConfig{
			MaxMessages:      200,
			MaxMessageLength: 8000,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	return LoadFile(ConfigPathFromEnv())
}

// ConfigPathFromEnv returns the config file named by BLUEPRINT_CONFIG_PATH.
func ConfigPathFromEnv() string {
	return os.Getenv("BLUEPRINT_CONFIG_PATH")
}

// LoadFile is Load with an explicit config file path; "" skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if dbPath := os.Getenv("BLUEPRINT_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("BLUEPRINT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("BLUEPRINT_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if url := os.Getenv("BLUEPRINT_REMOTE_URL"); url != "" {
		cfg.Remote.BaseURL = url
	}
	if userID := os.Getenv("BLUEPRINT_USER_ID"); userID != "" {
		cfg.Auth.UserID = userID
	}
	if token := os.Getenv("BLUEPRINT_TOKEN"); token != "" {
		cfg.Auth.Token = token
	}
	if host := os.Getenv("BLUEPRINT_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if err := envDuration("BLUEPRINT_REMOTE_TIMEOUT", &cfg.Remote.Timeout); err != nil {
		return err
	}
	if err := envDuration("BLUEPRINT_SYNC_DEBOUNCE", &cfg.Sync.Debounce); err != nil {
		return err
	}
	if err := envDuration("BLUEPRINT_SYNC_RETRY_INTERVAL", &cfg.Sync.RetryInterval); err != nil {
		return err
	}
	if portStr := os.Getenv("BLUEPRINT_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid BLUEPRINT_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if quota := os.Getenv("BLUEPRINT_STORE_QUOTA_BYTES"); quota != "" {
		n, err := strconv.ParseInt(quota, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BLUEPRINT_STORE_QUOTA_BYTES: %w", err)
		}
		cfg.Store.QuotaBytes = n
	}
	return nil
}

func envDuration(name string, target *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*target = d
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
