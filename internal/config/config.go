package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/ini.v1"
)

const (
	appDirName     = ".jira-video-session"
	configFileName = "config.ini"

	DefaultServiceURL = "http://localhost:8080"
	DefaultTimeout    = 5 * time.Minute
)

// Config holds all application configuration
type Config struct {
	Service ServiceConfig
	Storage StorageConfig
	Publish PublishConfig
	Log     LogConfig
}

// ServiceConfig holds the remote video-analysis service settings
type ServiceConfig struct {
	URL               string        `env:"JVS_SERVICE_URL"`
	APIKey            string        `env:"JVS_API_KEY"`
	Timeout           time.Duration `env:"JVS_TIMEOUT"`
	MaxFrames         int           `env:"JVS_MAX_FRAMES"`
	SkipTranscription bool          `env:"JVS_SKIP_TRANSCRIPTION"`
}

// StorageConfig holds local persistence settings
type StorageConfig struct {
	Dir     string `env:"JVS_STORAGE_DIR"`
	IndexDB string `env:"JVS_INDEX_DB"` // 비어 있으면 <dir>/index.db
}

// PublishConfig holds the optional S3-compatible manifest publishing target
type PublishConfig struct {
	Enabled   bool   `env:"JVS_PUBLISH_ENABLED"`
	Endpoint  string `env:"JVS_PUBLISH_ENDPOINT"`
	AccessKey string `env:"JVS_PUBLISH_ACCESS_KEY"`
	SecretKey string `env:"JVS_PUBLISH_SECRET_KEY"`
	Bucket    string `env:"JVS_PUBLISH_BUCKET"`
	Prefix    string `env:"JVS_PUBLISH_PREFIX"` // 객체 키 앞에 붙는 경로
	UseSSL    bool   `env:"JVS_PUBLISH_USE_SSL"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Debug bool `env:"JVS_DEBUG"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			URL:     DefaultServiceURL,
			Timeout: DefaultTimeout,
		},
		Storage: StorageConfig{
			Dir: "./sessions-data",
		},
		Publish: PublishConfig{
			Bucket: "jira-attachments",
		},
	}
}

// Load reads configuration from the specified INI file, then applies environment overrides
func Load(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := Default()

	// Service section
	serviceSection := cfg.Section("service")
	config.Service.URL = serviceSection.Key("url").MustString(DefaultServiceURL)
	config.Service.APIKey = serviceSection.Key("api_key").String()
	config.Service.Timeout = serviceSection.Key("timeout").MustDuration(DefaultTimeout)
	config.Service.MaxFrames = serviceSection.Key("max_frames").MustInt(0)
	config.Service.SkipTranscription = serviceSection.Key("skip_transcription").MustBool(false)

	// Storage section
	storageSection := cfg.Section("storage")
	config.Storage.Dir = storageSection.Key("dir").MustString(config.Storage.Dir)
	config.Storage.IndexDB = storageSection.Key("index_db").MustString("")

	// Publish section
	publishSection := cfg.Section("publish")
	config.Publish.Enabled = publishSection.Key("enabled").MustBool(false)
	config.Publish.Endpoint = publishSection.Key("endpoint").String()
	config.Publish.AccessKey = publishSection.Key("access_key").String()
	config.Publish.SecretKey = publishSection.Key("secret_key").String()
	config.Publish.Bucket = publishSection.Key("bucket").MustString(config.Publish.Bucket)
	config.Publish.Prefix = publishSection.Key("prefix").String()
	config.Publish.UseSSL = publishSection.Key("use_ssl").MustBool(false)

	// Log section
	config.Log.Debug = cfg.Section("log").Key("debug").MustBool(false)

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overlays JVS_* environment variables onto the configuration
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}
	return nil
}

// LoadDefault attempts to load config from default locations.
// Without any config file, defaults plus environment overrides are used.
func LoadDefault() (*Config, error) {
	if path := findConfigFile(); path != "" {
		return Load(path)
	}

	config := Default()
	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

func findConfigFile() string {
	// Try current directory first
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName
	}

	// Try user home directory
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, appDirName, configFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// IndexPath returns the SQLite index location
func (c *Config) IndexPath() string {
	if c.Storage.IndexDB != "" {
		return c.Storage.IndexDB
	}
	return filepath.Join(c.Storage.Dir, "index.db")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service.URL == "" {
		return fmt.Errorf("service.url is required")
	}
	u, err := url.Parse(c.Service.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("service.url must be an absolute http(s) URL: %q", c.Service.URL)
	}
	if c.Service.APIKey == "" {
		return fmt.Errorf("service.api_key is required")
	}
	if c.Service.Timeout <= 0 {
		return fmt.Errorf("service.timeout must be positive")
	}
	if c.Service.MaxFrames < 0 {
		return fmt.Errorf("service.max_frames must not be negative")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Publish.Enabled {
		if c.Publish.Endpoint == "" {
			return fmt.Errorf("publish.endpoint is required when publish.enabled=true")
		}
		if c.Publish.Bucket == "" {
			return fmt.Errorf("publish.bucket is required when publish.enabled=true")
		}
	}
	return nil
}

// Save writes configuration to the specified INI file
func (c *Config) Save(path string) error {
	cfg := ini.Empty()

	// Service section
	serviceSection, _ := cfg.NewSection("service")
	serviceSection.NewKey("url", c.Service.URL)
	serviceSection.NewKey("api_key", c.Service.APIKey)
	serviceSection.NewKey("timeout", c.Service.Timeout.String())
	serviceSection.NewKey("max_frames", fmt.Sprintf("%d", c.Service.MaxFrames))
	serviceSection.NewKey("skip_transcription", fmt.Sprintf("%v", c.Service.SkipTranscription))

	// Storage section
	storageSection, _ := cfg.NewSection("storage")
	storageSection.NewKey("dir", c.Storage.Dir)
	storageSection.NewKey("index_db", c.Storage.IndexDB)

	// Publish section
	publishSection, _ := cfg.NewSection("publish")
	publishSection.NewKey("enabled", fmt.Sprintf("%v", c.Publish.Enabled))
	publishSection.NewKey("endpoint", c.Publish.Endpoint)
	publishSection.NewKey("access_key", c.Publish.AccessKey)
	publishSection.NewKey("secret_key", c.Publish.SecretKey)
	publishSection.NewKey("bucket", c.Publish.Bucket)
	publishSection.NewKey("prefix", c.Publish.Prefix)
	publishSection.NewKey("use_ssl", fmt.Sprintf("%v", c.Publish.UseSSL))

	logSection, _ := cfg.NewSection("log")
	logSection.NewKey("debug", fmt.Sprintf("%v", c.Log.Debug))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return cfg.SaveTo(path)
}

// GetConfigPath returns the path where config would be saved
func GetConfigPath() string {
	if path := findConfigFile(); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(homeDir, appDirName, configFileName)
}
