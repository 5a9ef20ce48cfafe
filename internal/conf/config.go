// config.go: settings struct for leafscan and the functions that load it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix is prepended to environment overrides, e.g. LEAFSCAN_CLASSIFIER_THREADS.
const EnvPrefix = "LEAFSCAN"

// ClassifierSettings locates the model assets and tunes the interpreter.
type ClassifierSettings struct {
	ModelPath     string // float32 model tried first
	ModelDir      string // directory scanned for a *.tflite model when ModelPath fails
	QuantizedPath string // quantized model tried last
	LabelsPath    string // labels.json mapping label name to output index
	Threads       int    // interpreter threads, 0 means runtime.NumCPU
	UseXNNPACK    bool   // attach the XNNPACK delegate to the full model
}

// SQLiteSettings configures the SQLite history backend.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings configures the MySQL history backend.
type MySQLSettings struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// HistorySettings selects the history backend. Exactly one may be enabled.
type HistorySettings struct {
	SQLite        SQLiteSettings
	MySQL         MySQLSettings
	SlowThreshold time.Duration // queries slower than this are logged at WARN
}

// RemedySettings allows replacing the embedded remedy and translation tables.
type RemedySettings struct {
	RemediesPath     string
	TranslationsPath string
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled   bool
	Port      string
	UploadDir string
	RateLimit float64 // requests per second per client, 0 disables limiting
	Burst     int
	BodyLimit string // echo body limit, e.g. "10M"
}

// MQTTSettings configures publishing of detection events.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
	ClientID string
	Retain   bool
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// SessionSettings controls how long chat sessions are kept in memory.
type SessionSettings struct {
	TTL time.Duration
}

// Settings is the root configuration.
type Settings struct {
	Debug bool

	Main struct {
		Name string
	}

	Logging    logger.LoggingConfig
	Classifier ClassifierSettings
	History    HistorySettings
	Remedy     RemedySettings
	WebServer  WebServerSettings
	MQTT       MQTTSettings
	Sentry     SentrySettings
	Session    SessionSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	configFileFlag   string
)

// SetConfigFile makes Load read path instead of searching the default locations.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	configFileFlag = path
}

// Load reads the configuration file and environment overrides, validates
// the result and stores it as the current settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	GetLogger().Debug("configuration loaded", logger.String("file", viper.ConfigFileUsed()))

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper() error {
	setDefaultConfig()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFileFlag != "" {
		viper.SetConfigFile(configFileFlag)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "read_config").
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[len(configPaths)-1])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_dir").
			Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			Build()
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the directories searched for config.yaml:
// the working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get_home_directory").
			Build()
	}
	return []string{".", filepath.Join(homeDir, ".config", "leafscan")}, nil
}

// GetSettings returns the settings from the last successful Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultConfig returns the embedded default configuration file.
func DefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil
	}
	return data
}
