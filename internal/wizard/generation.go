package wizard

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/lockplane/storemigrate/internal/config"
	"github.com/lockplane/storemigrate/internal/state"
)

const (
	defaultCatalogDir = "schemas"
	mappingsDir       = "mappings"
	envExampleFile    = ".env.example"
)

// GenerateFiles writes storemigrate.toml in dir with store added, creates the
// catalog directories for the store's family and updates .gitignore and
// .env.example. An existing store of the same name is only replaced when
// force is set.
func GenerateFiles(dir string, store StoreInput, force bool) (*InitResult, error) {
	if err := store.Validate(); err != nil {
		return nil, err
	}
	result := &InitResult{}

	configPath := filepath.Join(dir, config.FileName)
	cfg, existed, err := readExistingConfig(configPath)
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.Stores[store.Name]; ok && !force {
		return nil, fmt.Errorf("store %q is already configured in %s (use --force to replace it)", store.Name, configPath)
	}

	// An existing catalog_dir wins; every store shares it
	if cfg.CatalogDir == "" {
		cfg.CatalogDir = store.CatalogDir
	}
	if !existed {
		cfg.Journal = true
	}
	cfg.Stores[store.Name] = storeConfig(store)

	if err := writeConfig(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", config.FileName, err)
	}
	result.ConfigPath = configPath
	result.ConfigCreated = !existed
	result.ConfigUpdated = existed

	catalogRoot := cfg.CatalogDir
	if !filepath.IsAbs(catalogRoot) {
		catalogRoot = filepath.Join(dir, catalogRoot)
	}
	family := store.Family
	if family == "" {
		family = store.Name
	}
	for _, d := range []string{filepath.Join(catalogRoot, family), filepath.Join(catalogRoot, mappingsDir)} {
		if _, err := os.Stat(d); err == nil {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
		result.CreatedDirs = append(result.CreatedDirs, d)
	}

	if err := updateEnvExample(filepath.Join(dir, envExampleFile), store); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", envExampleFile, err)
	}

	updated, err := updateGitignore(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil, fmt.Errorf("failed to update .gitignore: %w", err)
	}
	result.GitignoreUpdated = updated

	return result, nil
}

func storeConfig(store StoreInput) config.StoreConfig {
	sc := config.StoreConfig{
		Path:     store.Path,
		Versions: append([]string(nil), store.Versions...),
	}
	// Defaults stay implicit in the file
	if store.Engine != config.EngineSQLite {
		sc.Engine = store.Engine
	}
	if store.Family != store.Name {
		sc.Family = store.Family
	}
	return sc
}

func readExistingConfig(path string) (*config.Config, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &config.Config{Stores: map[string]config.StoreConfig{}}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cfg config.Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, true, fmt.Errorf("existing %s is invalid: %s", path, config.LoadErrorDetails(err))
	}
	if cfg.Stores == nil {
		cfg.Stores = map[string]config.StoreConfig{}
	}
	return &cfg, true, nil
}

func writeConfig(path string, cfg *config.Config) error {
	body, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("# storemigrate configuration\n")
	b.WriteString("# Generated by: storemigrate init\n")
	b.WriteString("#\n")
	b.WriteString("# Store paths can be overridden per environment in .env.<name>\n")
	b.WriteString("# with STORE_PATH_<STORE>=...\n\n")
	b.Write(body)

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// updateEnvExample adds a commented path override for store to .env.example
func updateEnvExample(path string, store StoreInput) error {
	content := ""
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	}

	key := config.StorePathVar(store.Name)
	if strings.Contains(content, key+"=") {
		return nil
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += fmt.Sprintf("# Path of the %s store (overrides storemigrate.toml)\n# %s=%s\n", store.Name, key, store.Path)

	return os.WriteFile(path, []byte(content), 0o644)
}

// updateGitignore ignores migration journals. It reports whether the file
// changed.
func updateGitignore(path string) (bool, error) {
	content := ""
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	}

	pattern := "*" + state.FileSuffix
	if strings.Contains(content, pattern) {
		return false, nil
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "\n# storemigrate journals (added by storemigrate init)\n" + pattern + "\n" + pattern + ".tmp\n"

	return true, os.WriteFile(path, []byte(content), 0o644)
}
