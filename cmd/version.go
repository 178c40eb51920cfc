package cmd

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// version may be set at link time with -ldflags "-X ...cmd.version=v1.2.3".
var version = ""

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the storemigrate version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), getVersion())
	},
}

func getVersion() string {
	info, _ := debug.ReadBuildInfo()
	return describeBuild(version, info)
}

// describeBuild formats a release, falling back to the module version, and
// the VCS revision the binary was built from.
func describeBuild(release string, info *debug.BuildInfo) string {
	if info == nil {
		if release == "" {
			return "dev"
		}
		return release
	}
	if release == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		release = info.Main.Version
	}
	if release == "" {
		release = "dev"
	}

	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			vcs[strings.TrimPrefix(s.Key, "vcs.")] = s.Value
		}
	}

	var b strings.Builder
	b.WriteString(release)
	if rev := vcs["revision"]; rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if vcs["modified"] == "true" {
			rev += "-dirty"
		}
		fmt.Fprintf(&b, " (%s)", rev)
	}
	if at := vcs["time"]; at != "" {
		fmt.Fprintf(&b, " %s", at)
	}
	return b.String()
}
