package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BackendType identifies the remote store backend
type BackendType string

const (
	BackendPostgrest BackendType = "postgrest"
	BackendPostgres  BackendType = "postgres"
	BackendSQLite    BackendType = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	Storage StorageConfig `mapstructure:"storage"`
	Network NetworkConfig `mapstructure:"network"`
	Goals   GoalsConfig   `mapstructure:"goals"`
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RemoteConfig selects and configures the authoritative data store
type RemoteConfig struct {
	Type        BackendType   `mapstructure:"type"`
	URL         string        `mapstructure:"url"`          // PostgREST base URL
	APIKey      string        `mapstructure:"api_key"`      // PostgREST anon key
	AccessToken string        `mapstructure:"access_token"` // signed-in user's JWT
	DSN         string        `mapstructure:"dsn"`          // Postgres connection string
	Path        string        `mapstructure:"path"`         // SQLite database file
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds local persistence configuration
type StorageConfig struct {
	Path string `mapstructure:"path"` // empty keeps everything in memory
}

// NetworkConfig holds connectivity detection configuration
type NetworkConfig struct {
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	ForceOffline  bool          `mapstructure:"force_offline"`
}

// GoalsConfig holds the daily targets used by the trackers
type GoalsConfig struct {
	DailyStudyHours  float64 `mapstructure:"daily_study_hours"`
	PrayersPerDay    int     `mapstructure:"prayers_per_day"`
	DailyQuranPages  float64 `mapstructure:"daily_quran_pages"`
	SleepHours       float64 `mapstructure:"sleep_hours"`
	AttendanceTarget float64 `mapstructure:"attendance_target"`
}

// APIConfig holds the local HTTP API configuration
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Type:    BackendPostgrest,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Path: filepath.Join(defaultDataPath(), "lifetrack.db"),
		},
		Network: NetworkConfig{
			ProbeInterval: 5 * time.Second,
		},
		Goals: GoalsConfig{
			DailyStudyHours:  6,
			PrayersPerDay:    5,
			DailyQuranPages:  2,
			SleepHours:       8,
			AttendanceTarget: 85,
		},
		API: APIConfig{
			Addr: "127.0.0.1:8787",
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "lifetrack.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "lifetrack")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "lifetrack")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "lifetrack")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "lifetrack")
	}
}

// LoadConfig loads configuration from file and environment.
// An explicit path overrides the default search locations.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(defaultConfigPath())
		viper.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. LIFETRACK_REMOTE_URL
	viper.SetEnvPrefix("LIFETRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(cfg)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(cfg *Config) {
	viper.SetDefault("remote.type", string(cfg.Remote.Type))
	viper.SetDefault("remote.url", cfg.Remote.URL)
	viper.SetDefault("remote.api_key", cfg.Remote.APIKey)
	viper.SetDefault("remote.access_token", cfg.Remote.AccessToken)
	viper.SetDefault("remote.dsn", cfg.Remote.DSN)
	viper.SetDefault("remote.path", cfg.Remote.Path)
	viper.SetDefault("remote.timeout", cfg.Remote.Timeout)

	viper.SetDefault("storage.path", cfg.Storage.Path)

	viper.SetDefault("network.probe_interval", cfg.Network.ProbeInterval)
	viper.SetDefault("network.force_offline", cfg.Network.ForceOffline)

	viper.SetDefault("goals.daily_study_hours", cfg.Goals.DailyStudyHours)
	viper.SetDefault("goals.prayers_per_day", cfg.Goals.PrayersPerDay)
	viper.SetDefault("goals.daily_quran_pages", cfg.Goals.DailyQuranPages)
	viper.SetDefault("goals.sleep_hours", cfg.Goals.SleepHours)
	viper.SetDefault("goals.attendance_target", cfg.Goals.AttendanceTarget)

	viper.SetDefault("api.addr", cfg.API.Addr)

	viper.SetDefault("logging.file", cfg.Logging.File)
	viper.SetDefault("logging.level", cfg.Logging.Level)
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("remote.type", string(cfg.Remote.Type))
	viper.Set("remote.url", cfg.Remote.URL)
	viper.Set("remote.api_key", cfg.Remote.APIKey)
	viper.Set("remote.access_token", cfg.Remote.AccessToken)
	viper.Set("remote.dsn", cfg.Remote.DSN)
	viper.Set("remote.path", cfg.Remote.Path)
	viper.Set("remote.timeout", cfg.Remote.Timeout.String())

	viper.Set("storage.path", cfg.Storage.Path)

	viper.Set("network.probe_interval", cfg.Network.ProbeInterval.String())
	viper.Set("network.force_offline", cfg.Network.ForceOffline)

	viper.Set("goals.daily_study_hours", cfg.Goals.DailyStudyHours)
	viper.Set("goals.prayers_per_day", cfg.Goals.PrayersPerDay)
	viper.Set("goals.daily_quran_pages", cfg.Goals.DailyQuranPages)
	viper.Set("goals.sleep_hours", cfg.Goals.SleepHours)
	viper.Set("goals.attendance_target", cfg.Goals.AttendanceTarget)

	viper.Set("api.addr", cfg.API.Addr)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WatchForceOffline calls fn with the new network.force_offline value
// whenever the config file changes on disk. It does nothing when no
// config file was loaded.
func WatchForceOffline(fn func(forceOffline bool)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(viper.GetBool("network.force_offline"))
	})
	viper.WatchConfig()
}

// IsConfigured returns true if the selected backend has what it needs to connect
func (c *Config) IsConfigured() bool {
	switch c.Remote.Type {
	case BackendPostgrest:
		return c.Remote.URL != "" && c.Remote.APIKey != ""
	case BackendPostgres:
		return c.Remote.DSN != ""
	case BackendSQLite:
		return c.Remote.Path != ""
	default:
		return false
	}
}

// GetDataPath returns the default data directory path
func GetDataPath() string {
	return defaultDataPath()
}
