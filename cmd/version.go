package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X github.com/abhisek/sous/cmd.version=v1.2.3".
var version = "(devel)"

// buildVersion prefers the linker-set version, then the module version
// recorded by `go install`, then the VCS revision.
func buildVersion() string {
	if version != "(devel)" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return version + " " + s.Value[:12]
		}
	}
	return version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sous version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "sous", buildVersion())
	},
}
