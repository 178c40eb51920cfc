package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockplane/storemigrate/internal/state"
)

func init() {
	rootCmd.AddCommand(recoverCmd)
}

var recoverCmd = &cobra.Command{
	Use:   "recover <store>",
	Short: "Clean up after an interrupted migration",
	Long: `Remove the scratch stores a crashed migration left behind and clear its
journal, so the store can be migrated again. The store itself is not touched.
Requires journal = true in storemigrate.toml.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecover,
}

func runRecover(cmd *cobra.Command, args []string) error {
	t, err := loadTarget(cmd.ErrOrStderr(), args[0])
	if err != nil {
		return err
	}
	if t.journal == nil {
		return errors.New("journal is disabled; set journal = true in storemigrate.toml")
	}

	recovered, err := state.Recover(cmd.Context(), t.journal, t.engine)
	if err != nil {
		return fmt.Errorf("recovery incomplete, journal kept at %s: %w", t.journal.Path(), err)
	}

	out := cmd.OutOrStdout()
	if recovered == nil {
		fmt.Fprintf(out, "✓ No interrupted migration recorded for %s\n", args[0])
		return nil
	}
	fmt.Fprintf(out, "✓ Recovered migration %s of %s (stopped after step %d of %d)\n",
		recovered.ID, recovered.Store, recovered.CurrentStep, recovered.TotalSteps)
	for _, p := range recovered.ScratchFiles {
		fmt.Fprintf(out, "  removed %s\n", p)
	}
	return nil
}
