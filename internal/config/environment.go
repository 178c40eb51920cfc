package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/lockplane/storemigrate/internal/migration"
)

const defaultEnvironmentName = "local"

// Environment variables that override storemigrate.toml. Each may be set in
// the process environment or in .env.<environment>; the process wins.
const (
	EnvScratchDir   = "STOREMIGRATE_SCRATCH_DIR"
	EnvCatalogDir   = "STOREMIGRATE_CATALOG_DIR"
	storePathPrefix = "STORE_PATH_"
)

// Engines a store may use.
const (
	EngineSQLite = "sqlite"
	EngineBolt   = "bolt"
)

// ResolvedEnvironment represents a fully-resolved environment with concrete values.
type ResolvedEnvironment struct {
	Name       string
	ScratchDir string
	CatalogDir string
	Journal    bool
	DotenvPath string
	FromDotenv bool

	// StorePaths holds STORE_PATH_<NAME> overrides keyed by upper-cased name
	StorePaths map[string]string

	baseDir string
}

// ResolveEnvironment merges the config file, .env.<name> and the process
// environment into concrete settings. Relative directories resolve against
// the config file's directory, or the working directory without one.
func ResolveEnvironment(config *Config, name string) (*ResolvedEnvironment, error) {
	envName := strings.TrimSpace(name)
	if envName == "" {
		if config != nil && config.DefaultEnvironment != "" {
			envName = config.DefaultEnvironment
		} else {
			envName = defaultEnvironmentName
		}
	}

	resolved := &ResolvedEnvironment{
		Name:       envName,
		StorePaths: map[string]string{},
	}
	if config != nil {
		resolved.ScratchDir = config.ScratchDir
		resolved.CatalogDir = config.CatalogDir
		resolved.Journal = config.Journal
	}

	var projectDir string
	if dir := config.ConfigDir(); dir != "" {
		resolved.baseDir = dir
		projectDir = config.ProjectDir()
	} else if cwd, err := os.Getwd(); err == nil {
		resolved.baseDir = cwd
	}

	dotenvFileName := ".env." + envName
	resolved.DotenvPath = filepath.Join(resolved.baseDir, dotenvFileName)
	if _, err := os.Stat(resolved.DotenvPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access %s: %w", resolved.DotenvPath, err)
		}
		if projectDir != "" && projectDir != resolved.baseDir {
			altPath := filepath.Join(projectDir, dotenvFileName)
			if altInfo, altErr := os.Stat(altPath); altErr == nil && !altInfo.IsDir() {
				resolved.DotenvPath = altPath
			}
		}
	}

	values := map[string]string{}
	if info, err := os.Stat(resolved.DotenvPath); err == nil && !info.IsDir() {
		values, err = godotenv.Read(resolved.DotenvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", resolved.DotenvPath, err)
		}
		resolved.FromDotenv = true
	}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && (key == EnvScratchDir || key == EnvCatalogDir || strings.HasPrefix(key, storePathPrefix)) {
			values[key] = value
		}
	}

	if value := values[EnvScratchDir]; value != "" {
		resolved.ScratchDir = value
	}
	if value := values[EnvCatalogDir]; value != "" {
		resolved.CatalogDir = value
	}
	for key, value := range values {
		if name, ok := strings.CutPrefix(key, storePathPrefix); ok && name != "" && value != "" {
			resolved.StorePaths[name] = value
		}
	}

	resolved.ScratchDir = resolved.resolvePath(resolved.ScratchDir)
	resolved.CatalogDir = resolved.resolvePath(resolved.CatalogDir)

	return resolved, nil
}

func (e *ResolvedEnvironment) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || e.baseDir == "" {
		return p
	}
	return filepath.Join(e.baseDir, p)
}

// StoreEnvName is the STORE_PATH_ suffix for a store name.
func StoreEnvName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// StorePathVar is the variable overriding the path of the named store.
func StorePathVar(name string) string {
	return storePathPrefix + StoreEnvName(name)
}

// ResolvedStore is a configured store ready to be migrated.
type ResolvedStore struct {
	Descriptor migration.StoreDescriptor
	Engine     string
	CatalogDir string
	ScratchDir string
	Journal    bool
}

// ResolveStore turns the named store entry into a validated descriptor.
func ResolveStore(config *Config, env *ResolvedEnvironment, name string) (*ResolvedStore, error) {
	if config == nil || config.Stores == nil {
		return nil, fmt.Errorf("store %q not defined: no stores in %s", name, FileName)
	}
	sc, ok := config.Stores[name]
	if !ok {
		return nil, fmt.Errorf("store %q not defined in %s (available: %s)",
			name, FileName, strings.Join(config.StoreNames(), ", "))
	}

	engine := strings.ToLower(strings.TrimSpace(sc.Engine))
	switch engine {
	case "":
		engine = EngineSQLite
	case EngineSQLite, EngineBolt:
	default:
		return nil, fmt.Errorf("store %q: unknown engine %q (expected %s or %s)", name, sc.Engine, EngineSQLite, EngineBolt)
	}

	path := sc.Path
	if override := env.StorePaths[StoreEnvName(name)]; override != "" {
		path = override
	}

	family := sc.Family
	if family == "" {
		family = name
	}

	d := migration.StoreDescriptor{
		Name:     name,
		Path:     env.resolvePath(path),
		Family:   family,
		Versions: sc.Versions,
		Mappings: sc.Mappings,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if env.CatalogDir == "" {
		return nil, fmt.Errorf("store %q: no catalog_dir configured (set it in %s or %s)", name, FileName, EnvCatalogDir)
	}

	return &ResolvedStore{
		Descriptor: d,
		Engine:     engine,
		CatalogDir: env.CatalogDir,
		ScratchDir: env.ScratchDir,
		Journal:    env.Journal,
	}, nil
}
