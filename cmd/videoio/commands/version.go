package commands

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/videoio/pkg/buildvars"
)

var Version = &cobra.Command{
	Use:   "version",
	Short: "print the build information",
	Args:  cobra.NoArgs,
	Run:   version,
}

func version(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	v := buildvars.Version
	if v == "" {
		v = "devel"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			v = info.Main.Version
		}
	}
	fmt.Fprintf(out, "version: %s\n", v)
	if buildvars.GitCommit != "" {
		fmt.Fprintf(out, "commit: %s\n", buildvars.GitCommit)
	}
	if buildvars.BuildDate != nil {
		fmt.Fprintf(out, "built: %s\n", buildvars.BuildDate.UTC().Format("2006-01-02 15:04:05"))
	}
}
