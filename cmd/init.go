package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockplane/storemigrate/internal/config"
	"github.com/lockplane/storemigrate/internal/wizard"
)

type initOptions struct {
	force      bool
	yes        bool
	store      string
	engine     string
	path       string
	family     string
	versions   string
	catalogDir string
}

var initOpts initOptions

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Add a store to storemigrate.toml",
	Long: `Add a store to storemigrate.toml in the current directory, creating the file
and the catalog directories as needed. Runs an interactive wizard unless --yes
is given, in which case the flags describe the store.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	f := initCmd.Flags()
	f.BoolVar(&initOpts.force, "force", false, "Replace an existing store of the same name")
	f.BoolVarP(&initOpts.yes, "yes", "y", false, "Skip the wizard and use the flags")
	f.StringVar(&initOpts.store, "store", "app", "Store name")
	f.StringVar(&initOpts.engine, "engine", config.EngineSQLite, "Store engine (sqlite or bolt)")
	f.StringVar(&initOpts.path, "path", "data/app.sqlite", "Store file path")
	f.StringVar(&initOpts.family, "family", "", "Schema family (defaults to the store name)")
	f.StringVar(&initOpts.versions, "versions", "V0", "Comma separated versions, oldest first")
	f.StringVar(&initOpts.catalogDir, "catalog-dir", "schemas", "Catalog directory")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	if !initOpts.yes {
		result, err := wizard.Run(dir, initOpts.force)
		if err != nil {
			return err
		}
		if result != nil {
			logger.WithField("config", result.ConfigPath).Debug("init finished")
		}
		return nil
	}

	versions, err := wizard.ParseVersions(initOpts.versions)
	if err != nil {
		return err
	}
	store := wizard.StoreInput{
		Name:       initOpts.store,
		Engine:     initOpts.engine,
		Path:       initOpts.path,
		Family:     initOpts.family,
		Versions:   versions,
		CatalogDir: initOpts.catalogDir,
	}
	if store.Family == "" {
		store.Family = store.Name
	}

	result, err := wizard.GenerateFiles(dir, store, initOpts.force)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.ConfigCreated {
		fmt.Fprintf(out, "✓ Created %s with store %s\n", result.ConfigPath, store.Name)
	} else {
		fmt.Fprintf(out, "✓ Added store %s to %s\n", store.Name, result.ConfigPath)
	}
	for _, d := range result.CreatedDirs {
		fmt.Fprintf(out, "  created %s\n", d)
	}
	if result.GitignoreUpdated {
		fmt.Fprintln(out, "  .gitignore updated")
	}
	return nil
}
