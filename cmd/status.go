package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lockplane/storemigrate/internal/migration"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <store>",
	Short: "Show a store's detected version and pending steps",
	Long: `Read the store's metadata, detect which declared version it is at and list
the steps a migration would run. Nothing is written.`,
	Example: `  # Check the app store from storemigrate.toml
  storemigrate status app`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	t, err := loadTarget(cmd.ErrOrStderr(), args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	d := t.store.Descriptor
	out := cmd.OutOrStdout()

	detection, err := migration.Detect(ctx, t.engine, t.catalog, d, t.options()...)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Store:    %s (%s)\n", d.Name, t.store.Engine)
	fmt.Fprintf(out, "Path:     %s\n", d.Path)
	fmt.Fprintf(out, "Versions: %s\n", strings.Join(d.Versions, " → "))
	fmt.Fprintf(out, "Current:  %s\n", detection.Current().Version())
	printAttributes(cmd, detection.Metadata)

	if t.journal != nil {
		if active := t.journal.Active(); active != nil {
			fmt.Fprintf(out, "\n⚠️  An interrupted migration is recorded (step %d of %d, started %s).\n",
				active.CurrentStep, active.TotalSteps, active.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "   Run 'storemigrate recover %s' to clean it up.\n", d.Name)
		}
	}

	if detection.AtLatest() {
		fmt.Fprintf(out, "\n✓ Up to date\n")
		return nil
	}

	plan, err := migration.BuildPlan(ctx, t.engine, t.catalog, d, t.options()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d pending step(s):\n", plan.StepCount())
	for i, step := range plan.Steps {
		how := "mapping " + step.Mapping.Name()
		if step.Mapping.Inferred() {
			how = "inferred"
		}
		fmt.Fprintf(out, "  %d. %s → %s (%s)\n", i+1, step.Source.Version(), step.Destination.Version(), how)
	}
	return nil
}

func printAttributes(cmd *cobra.Command, md *migration.Metadata) {
	if md == nil || len(md.Attributes) == 0 {
		return
	}
	keys := make([]string, 0, len(md.Attributes))
	for k := range md.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-14s %s\n", k+":", md.Attributes[k])
	}
}
