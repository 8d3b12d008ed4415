// Package config loads control-plane settings from YAML and the environment.
package config

import (
	"fmt"
	"os"

	"github.com/danielpatrickdp/epistemic-control/internal/controller"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath = "EPISTEMIC_CONFIG"
	EnvDBPath     = "EPISTEMIC_DB"
	EnvAddr       = "EPISTEMIC_ADDR"
	EnvLogLevel   = "EPISTEMIC_LOG_LEVEL"
)

// File is the on-disk configuration.
type File struct {
	Controller controller.Config `json:"controller" yaml:"controller"`
	Logging    LoggingConfig     `json:"logging" yaml:"logging"`
	Store      StoreConfig       `json:"store" yaml:"store"`
	Server     ServerConfig      `json:"server" yaml:"server"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level is "info" (default), "debug" or "trace".
	Level string `json:"level" yaml:"level"`
}

// StoreConfig locates the sqlite snapshot database.
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ServerConfig configures the gRPC listener.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Default returns a File with the standard settings.
func Default() *File {
	return &File{
		Controller: controller.DefaultConfig(),
		Logging:    LoggingConfig{Level: "info"},
		Store:      StoreConfig{Path: "epistemic.db"},
		Server:     ServerConfig{Addr: "127.0.0.1:50061"},
	}
}

// Load reads configuration from defaults, then the file named by
// $EPISTEMIC_CONFIG if set, then environment overrides.
func Load() (*File, error) {
	return LoadWithFile(os.Getenv(EnvConfigPath))
}

// LoadWithFile is Load with an explicit config file path. An empty path
// skips the file.
func LoadWithFile(path string) (*File, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile reads a YAML file on top of the defaults. Keys absent from
// the file keep their default values.
func LoadFromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks the whole configuration.
func (f *File) Validate() error {
	if err := f.Controller.Validate(); err != nil {
		return err
	}
	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if f.Logging.Level != "" && !validLevels[f.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", f.Logging.Level)
	}
	if f.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	return nil
}

func applyEnvOverrides(config *File) {
	if v := os.Getenv(EnvDBPath); v != "" {
		config.Store.Path = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		config.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Logging.Level = v
	}
}
