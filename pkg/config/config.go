package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. COMMUNITY_API_BASE_URL.
const EnvPrefix = "COMMUNITY"

var configDir string
var configFilePath string
var credentialsPath string

// DefaultBackoffMs is the reconnect delay table, one entry per attempt.
var DefaultBackoffMs = []int{1000, 2000, 4000, 8000, 16000, 30000}

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "sidechain", "community"), nil
	}

	// Unix-like (macOS, Linux): ~/.config/sidechain/community
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sidechain", "community"), nil
}

// getSystemConfigPaths returns platform-specific system config paths
func getSystemConfigPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), "Sidechain", "community", "config.toml")}
	}

	return []string{
		"/etc/sidechain/community/config.toml",
		"/usr/local/etc/sidechain/community/config.toml",
	}
}

// Init initializes the configuration
func Init(configPath string) error {
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	credentialsPath = filepath.Join(configDir, "credentials")

	viper.Reset()
	viper.SetConfigType("toml")

	setDefaults()

	// Load system config first (if exists) - serves as foundation
	for _, sysConfigPath := range getSystemConfigPaths() {
		if _, err := os.Stat(sysConfigPath); err == nil {
			viper.SetConfigFile(sysConfigPath)
			_ = viper.ReadInConfig()
			break
		}
	}

	// User config overrides system config
	viper.SetConfigFile(configFilePath)
	if _, err := os.Stat(configFilePath); err == nil {
		if err := viper.MergeInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFilePath, err)
		}
	}

	// .env never overrides variables already present in the environment
	_ = godotenv.Load()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("api.base_url", EnvPrefix+"_API_BASE_URL", "API_URL")

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8080")
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("output.format", "text")

	viper.SetDefault("tenant.slug", "")
	viper.SetDefault("tenant.base_domain", "localhost")

	viper.SetDefault("realtime.path", "/ws")
	viper.SetDefault("realtime.ping_interval", 25*time.Second)
	viper.SetDefault("realtime.pong_timeout", 10*time.Second)
	viper.SetDefault("realtime.backoff_ms", DefaultBackoffMs)
	viper.SetDefault("realtime.fallback_poll_interval", 30*time.Second)

	viper.SetDefault("progress.window", 10*time.Second)
	viper.SetDefault("optimistic.reconcile_notification_reads", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.file", filepath.Join(configDir, "community.log"))
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)

	viper.SetDefault("metrics.addr", "")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	if key == "log.file" {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool configuration value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration configuration value
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetIntSlice returns an int slice configuration value
func GetIntSlice(key string) []int {
	return viper.GetIntSlice(key)
}

// Set overrides a value for the lifetime of the process without touching disk.
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// SetString sets a string configuration value and persists it to the user config file
func SetString(key string, value string) error {
	viper.Set(key, value)
	return viper.WriteConfigAs(configFilePath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() string {
	return credentialsPath
}

// BackoffSchedule returns the reconnect delays as durations.
func BackoffSchedule() []time.Duration {
	ms := GetIntSlice("realtime.backoff_ms")
	if len(ms) == 0 {
		ms = DefaultBackoffMs
	}
	out := make([]time.Duration, len(ms))
	for i, v := range ms {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out
}

// RESTBaseURL is the API origin with the versioned REST prefix appended.
func RESTBaseURL() string {
	return strings.TrimRight(GetString("api.base_url"), "/") + "/api/v1"
}

// RealtimeURL derives the realtime endpoint from the API origin by protocol substitution.
func RealtimeURL() (string, error) {
	return DeriveRealtimeURL(GetString("api.base_url"), GetString("realtime.path"))
}

// DeriveRealtimeURL swaps http for ws and https for wss and sets the path.
func DeriveRealtimeURL(apiOrigin, path string) (string, error) {
	u, err := url.Parse(apiOrigin)
	if err != nil {
		return "", fmt.Errorf("parse api origin: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api origin scheme %q", u.Scheme)
	}
	if path == "" {
		path = "/ws"
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
