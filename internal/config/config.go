package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the config file LoadConfig looks for.
const FileName = "storemigrate.toml"

// StoreConfig describes a single named store from storemigrate.toml.
type StoreConfig struct {
	Engine   string   `toml:"engine,omitempty"` // sqlite (default) or bolt
	Path     string   `toml:"path"`
	Family   string   `toml:"family,omitempty"`
	Versions []string `toml:"versions"`
	Mappings []string `toml:"mappings,omitempty"`
}

type Config struct {
	DefaultEnvironment string                 `toml:"default_environment,omitempty"`
	ScratchDir         string                 `toml:"scratch_dir,omitempty"`
	CatalogDir         string                 `toml:"catalog_dir,omitempty"`
	Journal            bool                   `toml:"journal,omitempty"`
	Stores             map[string]StoreConfig `toml:"stores"`
	ConfigFilePath     string                 `toml:"-"`

	configDir  string
	projectDir string
}

// LoadConfig finds storemigrate.toml in the working directory or one of its
// parents, stopping at the first project root. A missing file yields an
// empty config.
func LoadConfig() (*Config, error) {
	startDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(startDir)
}

// LoadConfigFrom is LoadConfig starting at startDir.
func LoadConfigFrom(startDir string) (*Config, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			config, err := readConfig(configPath)
			if err != nil {
				return nil, err
			}
			config.projectDir = findProjectRoot(dir)
			return config, nil
		}

		// Check if we've reached a project boundary
		if isProjectRoot(dir) {
			return &Config{projectDir: dir}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return &Config{}, nil
}

// LoadConfigFile reads the config at configPath without searching.
func LoadConfigFile(configPath string) (*Config, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	config, err := readConfig(abs)
	if err != nil {
		return nil, err
	}
	config.projectDir = findProjectRoot(config.configDir)
	return config, nil
}

func readConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	config.ConfigFilePath = configPath
	config.configDir = filepath.Dir(configPath)
	return &config, nil
}

// ConfigDir is the directory relative paths in the config resolve against.
// Without a config file it is empty.
func (c *Config) ConfigDir() string {
	if c == nil {
		return ""
	}
	return c.configDir
}

// ProjectDir is the nearest project root at or above the config file.
func (c *Config) ProjectDir() string {
	if c == nil {
		return ""
	}
	return c.projectDir
}

// StoreNames returns the configured store names in sorted order.
func (c *Config) StoreNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Stores))
	for name := range c.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadErrorDetails renders a config error with the offending line when it
// came from the TOML decoder.
func LoadErrorDetails(err error) string {
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Sprintf("%s\nerror occurred at row %d column %d", decodeErr.String(), row, col)
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return strictErr.String()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func findProjectRoot(dir string) string {
	for {
		if isProjectRoot(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
		return true
	}
	return false
}
