package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/progressui"
)

var migrateTUI bool

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateTUI, "tui", false, "Show an interactive progress bar")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <store>",
	Short: "Migrate a store to its newest version",
	Long: `Detect the store's version and run every step up to the newest declared
version. Each step writes a new scratch store; the original is replaced only
after the last step succeeds. Interrupting stops the migration after the
current step and leaves the original untouched.`,
	Example: `  # Migrate the app store, printing one line per step
  storemigrate migrate app

  # Same, with a progress bar
  storemigrate migrate app --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	t, err := loadTarget(cmd.ErrOrStderr(), args[0])
	if err != nil {
		return err
	}
	d := t.store.Descriptor
	stderr := cmd.ErrOrStderr()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	plan, err := migration.TryBuildMigration(ctx, t.engine, t.catalog, d, t.options()...)
	if err != nil {
		return err
	}
	if plan == nil {
		fmt.Fprintf(stderr, "✓ %s is at %s, no migration necessary\n", d.Name, d.Latest())
		return nil
	}

	fmt.Fprintf(stderr, "🔄 Migrating %s from %s to %s in %d step(s)\n",
		d.Name, plan.Current.Version(), d.Latest(), plan.StepCount())
	start := time.Now()

	if migrateTUI {
		err = progressui.Run(ctx, "Migrating "+d.Name, func(ctx context.Context, progress migration.ProgressFunc) error {
			return plan.PerformMigration(ctx, progress)
		})
	} else {
		err = plan.PerformMigration(ctx, func(step, total int) error {
			if step > 0 {
				s := plan.Steps[step-1]
				fmt.Fprintf(stderr, "  [%d/%d] %s → %s\n", step, total, s.Source.Version(), s.Destination.Version())
			}
			return nil
		})
	}
	if err != nil {
		return fmt.Errorf("migration of %s failed: %w", d.Name, err)
	}

	fmt.Fprintf(stderr, "✓ %s migrated to %s in %s\n", d.Name, d.Latest(), time.Since(start).Round(time.Millisecond))
	return nil
}
