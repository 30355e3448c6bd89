package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"github.com/vskvj3/blockdeque/internal/datastructures"
	"gopkg.in/yaml.v3"
)

// Persistence modes.
const (
	PersistenceBinlog = "binlog"
	PersistenceNone   = "none"
)

// Config holds server configuration.
type Config struct {
	Port            int      `mapstructure:"port" yaml:"port"`
	ReplicationPort int      `mapstructure:"replication_port" yaml:"replication_port"`
	DefaultExpiry   int64    `mapstructure:"default_expiry" yaml:"default_expiry"`
	Persistence     string   `mapstructure:"persistence" yaml:"persistence"`
	DataDir         string   `mapstructure:"data_dir" yaml:"data_dir"`
	BlockSize       int      `mapstructure:"block_size" yaml:"block_size"`
	Replication     bool     `mapstructure:"replication_enabled" yaml:"replication_enabled"`
	Followers       []string `mapstructure:"followers" yaml:"followers"`
	Leader          string   `mapstructure:"leader" yaml:"leader"`
	Debug           bool     `mapstructure:"debug" yaml:"debug"`
}

var (
	configMu       sync.RWMutex
	configInstance *Config
)

// DefaultDataDir returns ~/.blockdeque.
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".blockdeque"), nil
}

// LoadConfig reads filename (YAML) into the process-wide config. A missing
// file yields the defaults. BLOCKDEQUE_* environment variables override
// file values.
func LoadConfig(filename string) (*Config, error) {
	config, err := loadConfigFromFile(filename)
	if err != nil {
		return nil, err
	}
	SetConfig(config)
	return config, nil
}

// loadConfigFromFile reads and parses the config file
func loadConfigFromFile(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("BLOCKDEQUE")
	v.AutomaticEnv()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(config)
	return config, nil
}

// SetConfig replaces the process-wide config.
func SetConfig(config *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	configInstance = config
}

// GetConfig returns the singleton config configInstance
func GetConfig() (*Config, error) {
	configMu.RLock()
	defer configMu.RUnlock()
	if configInstance == nil {
		return nil, errors.New("Config not initialized. Call LoadConfig() first")
	}
	return configInstance, nil
}

// DefaultConfig returns default config values
func DefaultConfig() *Config {
	return &Config{
		Port:            6379,
		ReplicationPort: 7379,
		DefaultExpiry:   0,
		Persistence:     PersistenceBinlog,
		BlockSize:       datastructures.DefaultBlockSize,
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("port", d.Port)
	v.SetDefault("replication_port", 0)
	v.SetDefault("default_expiry", d.DefaultExpiry)
	v.SetDefault("persistence", d.Persistence)
	v.SetDefault("data_dir", "")
	v.SetDefault("block_size", d.BlockSize)
	v.SetDefault("replication_enabled", false)
	v.SetDefault("followers", []string{})
	v.SetDefault("leader", "")
	v.SetDefault("debug", false)
}

// applyDefaults ensures missing values get defaults
func applyDefaults(config *Config) {
	if config.Port == 0 {
		config.Port = 6379
	}
	if config.ReplicationPort == 0 {
		config.ReplicationPort = config.Port + 1000
	}
	if config.Persistence != PersistenceBinlog && config.Persistence != PersistenceNone {
		config.Persistence = PersistenceBinlog
	}
	if config.BlockSize < 2 {
		config.BlockSize = datastructures.DefaultBlockSize
	}
	if config.DataDir == "" {
		if dir, err := DefaultDataDir(); err == nil {
			config.DataDir = dir
		}
	}
}

// WriteDefaultConfig writes the default config to filename unless the file
// already exists.
func WriteDefaultConfig(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	header := []byte("# blockdeque server configuration\n")
	return os.WriteFile(filename, append(header, data...), 0644)
}
