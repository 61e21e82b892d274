package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Config is the full modseek configuration as read from config.toml.
type Config struct {
	// DatabasePath is the location of the SQLite configuration store.
	DatabasePath string `toml:"database_path"`

	// App identifies this deployment to the upstream catalog; it is folded
	// into the User-Agent of every outbound request.
	App AppConfig `toml:"app"`

	// OwnerID is the privileged operator. It can never be blocked and is the
	// only user allowed to run owner commands.
	OwnerID int64 `toml:"owner_id"`

	// DefaultPrefix is used for communities that have not configured one.
	// At most 3 characters.
	DefaultPrefix string `toml:"default_prefix"`

	// MaxResultBatches caps how many output messages a single invocation may
	// produce.
	MaxResultBatches int `toml:"max_result_batches"`

	// RequestTimeout bounds every outbound HTTP request.
	RequestTimeout Duration `toml:"request_timeout"`

	// CatalogRefreshInterval controls how often the bulk catalog is re-synced
	// into the store. 0 disables periodic refresh.
	CatalogRefreshInterval Duration `toml:"catalog_refresh_interval"`

	Cache   CacheConfig   `toml:"cache"`
	Gateway GatewayConfig `toml:"gateway"`
}

// AppConfig identifies the application in outbound requests.
type AppConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	URL     string `toml:"url,omitempty"`
}

// CacheConfig configures the URL-keyed response cache.
type CacheConfig struct {
	// DefaultTTL applies to hosts without a specific entry.
	DefaultTTL Duration `toml:"default_ttl"`

	// HostTTL maps an upstream host to its expiry duration.
	HostTTL map[string]Duration `toml:"host_ttl"`
}

// GatewayConfig configures the chat-platform gateway connection.
type GatewayConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// Duration wraps time.Duration for TOML text (un)marshalling.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// UserAgent builds the identifying User-Agent string for HTML requests,
// following the upstream acceptable-use policy.
func (c *Config) UserAgent() string {
	ua := fmt.Sprintf("Mozilla/5.0 (compatible; %s/%s", c.App.Name, c.App.Version)
	if c.App.URL != "" {
		ua += "; +" + c.App.URL
	}
	return ua + ")"
}

// TTLForHost returns the configured cache expiry for a host.
func (c *CacheConfig) TTLForHost(host string) time.Duration {
	if ttl, ok := c.HostTTL[host]; ok {
		return ttl.Duration
	}
	return c.DefaultTTL.Duration
}

func GetDefaultConfig() (*Config, error) {
	dbPath, err := GetDefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("getting default database path: %w", err)
	}
	return &Config{
		DatabasePath: dbPath,
		App: AppConfig{
			Name:    "modseek",
			Version: "dev",
		},
		DefaultPrefix:          ".",
		MaxResultBatches:       3,
		RequestTimeout:         Duration{15 * time.Second},
		CatalogRefreshInterval: Duration{24 * time.Hour},
		Cache: CacheConfig{
			DefaultTTL: Duration{6 * time.Hour},
		},
	}, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.DatabasePath == "" {
		dbPath, err := GetDefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("getting default database path: %w", err)
		}
		config.DatabasePath = dbPath
	}
	if config.App.Name == "" {
		config.App.Name = "modseek"
	}
	if config.App.Version == "" {
		config.App.Version = "dev"
	}
	if config.DefaultPrefix == "" {
		config.DefaultPrefix = "."
	}
	if len(config.DefaultPrefix) > 3 {
		return nil, fmt.Errorf("default_prefix %q exceeds 3 characters", config.DefaultPrefix)
	}
	if config.MaxResultBatches <= 0 {
		config.MaxResultBatches = 3
	}
	if config.RequestTimeout.Duration == 0 {
		config.RequestTimeout = Duration{15 * time.Second}
	}
	if config.Cache.DefaultTTL.Duration == 0 {
		config.Cache.DefaultTTL = Duration{6 * time.Hour}
	}

	return &config, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the annotated sample config with the database
// path resolved for this machine.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	dbPath := c.DatabasePath
	if dbPath == "" {
		var err error
		dbPath, err = GetDefaultDBPath()
		if err != nil {
			return fmt.Errorf("getting default database path: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/modseek/modseek.db", dbPath, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultStorageDir returns the default data directory for the store.
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "modseek")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultDBPath returns the default database path in the user's data directory.
func GetDefaultDBPath() (string, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(storageDir, "modseek.db"), nil
}

// GetConfigDir returns the configuration directory for modseek.
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "modseek")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
