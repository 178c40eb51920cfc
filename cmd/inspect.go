package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockplane/storemigrate/internal/sqliteutil"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Print a store file's metadata as JSON",
	Long: `Read a store file's metadata without opening it for writing. The engine is
chosen from the file's content: SQLite files by their header, anything else
is read as a bolt store. A sqlite:// or file: connection string is accepted
in place of a path. No config file is needed.`,
	Example: `  storemigrate inspect data/app.sqlite
  storemigrate inspect "file:data/app.sqlite?mode=ro"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := sqliteutil.PathFromDSN(args[0])
		engine, err := engineForFile(path)
		if err != nil {
			return err
		}
		md, err := engine.ReadMetadata(cmd.Context(), path)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(md, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal metadata to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}
