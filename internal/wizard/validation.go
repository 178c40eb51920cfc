package wizard

import (
	"fmt"
	"os"
	"strings"

	"github.com/lockplane/storemigrate/internal/config"
)

// ValidateStoreName checks if a store name is valid
func ValidateStoreName(name string) error {
	if name == "" {
		return fmt.Errorf("store name cannot be empty")
	}

	// Must be alphanumeric, underscore or hyphen
	for _, ch := range name {
		isValid := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-'
		if !isValid {
			return fmt.Errorf("store name must contain only letters, numbers, underscores, and hyphens")
		}
	}

	return nil
}

// ValidateEngine checks the engine is one storemigrate supports
func ValidateEngine(engine string) error {
	switch engine {
	case config.EngineSQLite, config.EngineBolt:
		return nil
	case "":
		return fmt.Errorf("engine cannot be empty")
	default:
		return fmt.Errorf("engine must be %s or %s", config.EngineSQLite, config.EngineBolt)
	}
}

// ValidateStorePath checks the store path is usable as a file
func ValidateStorePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("store path %s is a directory", path)
	}
	return nil
}

// ParseVersions splits a comma or space separated version list, oldest first
func ParseVersions(s string) ([]string, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one version is required")
	}

	seen := make(map[string]bool, len(fields))
	for _, v := range fields {
		if seen[v] {
			return nil, fmt.Errorf("version %s is listed twice", v)
		}
		seen[v] = true
	}
	return fields, nil
}

// ValidateCatalogDir checks the catalog directory is set and not a file
func ValidateCatalogDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("catalog directory cannot be empty")
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("catalog directory %s is a file", dir)
	}
	return nil
}

// Validate checks every field of the input
func (s StoreInput) Validate() error {
	if err := ValidateStoreName(s.Name); err != nil {
		return err
	}
	if err := ValidateEngine(s.Engine); err != nil {
		return err
	}
	if err := ValidateStorePath(s.Path); err != nil {
		return err
	}
	if len(s.Versions) == 0 {
		return fmt.Errorf("at least one version is required")
	}
	return ValidateCatalogDir(s.CatalogDir)
}
