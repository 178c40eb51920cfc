package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envName    string
	verbose    bool
	logFormat  string

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "storemigrate",
	Short: "Progressive migrations for on-disk stores",
	Long: `storemigrate brings a SQLite or bolt store file up to the newest version of
its schema, one version at a time, and only replaces the original once every
step has succeeded.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(cmd.ErrOrStderr())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to storemigrate.toml (default: search upwards from the working directory)")
	flags.StringVar(&envName, "env", "", "Environment whose .env.<env> file overrides the config (default: default_environment or local)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

func setupLogger(out io.Writer) error {
	logger.SetOutput(out)
	switch logFormat {
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q (expected text or json)", logFormat)
	}

	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
