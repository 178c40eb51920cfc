package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lockplane/storemigrate/internal/config"
	"github.com/lockplane/storemigrate/internal/engine/boltstore"
	"github.com/lockplane/storemigrate/internal/engine/sqlitestore"
	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/sqliteutil"
	"github.com/lockplane/storemigrate/internal/state"
)

// printConfigNotFound prints a helpful message when storemigrate.toml is not found
func printConfigNotFound(w io.Writer) {
	fmt.Fprintln(w, `storemigrate.toml not found. Create one that looks like:

catalog_dir = "schemas"

[stores.app]
engine = "sqlite"
path = "data/app.sqlite"
versions = ["V0", "V1"]`)
}

// target is a configured store with the engine and catalog that serve it.
type target struct {
	store   *config.ResolvedStore
	engine  migration.Engine
	catalog migration.Catalog
	journal *state.Journal
}

func (t *target) options() []migration.Option {
	opts := []migration.Option{
		migration.WithLogger(logger.WithField("store", t.store.Descriptor.Name)),
		migration.WithScratchDir(t.store.ScratchDir),
	}
	if t.journal != nil {
		opts = append(opts, migration.WithJournal(t.journal))
	}
	return opts
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %s", config.LoadErrorDetails(err))
		}
		return cfg, nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %s", config.LoadErrorDetails(err))
	}
	return cfg, nil
}

// loadTarget resolves the named store from the config and builds its engine.
func loadTarget(w io.Writer, name string) (*target, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath == "" {
		printConfigNotFound(w)
		return nil, fmt.Errorf("no %s found", config.FileName)
	}

	env, err := config.ResolveEnvironment(cfg, envName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve environment: %w", err)
	}
	store, err := config.ResolveStore(cfg, env, name)
	if err != nil {
		return nil, err
	}

	t := &target{store: store}
	t.engine, t.catalog, err = newEngine(store.Engine, store.CatalogDir)
	if err != nil {
		return nil, err
	}

	if store.Journal {
		t.journal, err = state.Open(state.PathFor(store.Descriptor.Path))
		if err != nil {
			return nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"store":   name,
		"engine":  store.Engine,
		"path":    store.Descriptor.Path,
		"catalog": store.CatalogDir,
	}).Debug("Resolved store")
	return t, nil
}

func newEngine(name, catalogDir string) (migration.Engine, migration.Catalog, error) {
	switch name {
	case config.EngineSQLite:
		return sqlitestore.New(sqlitestore.WithLogger(logger)), sqlitestore.NewCatalog(os.DirFS(catalogDir)), nil
	case config.EngineBolt:
		catalog := boltstore.NewCatalog()
		if err := catalog.LoadFS(os.DirFS(catalogDir)); err != nil {
			return nil, nil, fmt.Errorf("failed to load catalog %s: %w", catalogDir, err)
		}
		return boltstore.New(boltstore.WithLogger(logger)), catalog, nil
	default:
		return nil, nil, fmt.Errorf("unknown engine %q", name)
	}
}

// engineForFile picks the engine for a store file by its content.
func engineForFile(path string) (migration.Engine, error) {
	isSQLite, err := sqliteutil.HasHeader(path)
	if err != nil {
		return nil, err
	}
	if isSQLite {
		return sqlitestore.New(sqlitestore.WithLogger(logger)), nil
	}
	return boltstore.New(boltstore.WithLogger(logger)), nil
}
