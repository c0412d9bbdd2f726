package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	versionShortFlag bool
	versionJSONFlag  bool
)

type buildInfo struct {
	Version   string `json:"version"`
	Built     string `json:"built"`
	GoVersion string `json:"go"`
	Platform  string `json:"platform"`
}

// currentBuild reports the linked version, falling back to the module
// version for binaries built with go install.
func currentBuild() buildInfo {
	info := buildInfo{
		Version:   version,
		Built:     buildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok && info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentBuild()
		out := cmd.OutOrStdout()
		switch {
		case versionShortFlag:
			fmt.Fprintln(out, info.Version)
		case versionJSONFlag:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		default:
			fmt.Fprintf(out, "hityaml %s (%s, %s)\nbuilt %s\n", info.Version, info.GoVersion, info.Platform, info.Built)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShortFlag, "short", false, "Print the version number only")
	versionCmd.Flags().BoolVar(&versionJSONFlag, "json", false, "Print build information as JSON")
	versionCmd.MarkFlagsMutuallyExclusive("short", "json")
}
