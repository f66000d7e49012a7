// Package app provides the command line interface of the flagsync daemon.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/flagsync/internal/versions"
)

// NewRootCmd creates the root command with all subcommands attached.
// --debug lowers level to debug before any subcommand runs; level may be nil.
func NewRootCmd(level *slog.LevelVar) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "flagsync",
		DisableAutoGenTag: true,
		Short:             "Feature flag synchronization daemon",
		Long: `flagsync keeps a local cache of feature flag definitions and segments in sync with
the flag service, using the push stream when available and polling otherwise.`,
		PersistentPreRun: func(*cobra.Command, []string) {
			if level != nil && viper.GetBool("debug") {
				level.Set(slog.LevelDebug)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to read format flag: %w", err)
			}
			return printVersion(cmd.OutOrStdout(), format, versions.GetVersionInfo())
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

func printVersion(w io.Writer, format string, info versions.VersionInfo) error {
	switch format {
	case "json":
		output, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format version info as JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(output))
		return err
	case "":
		_, err := fmt.Fprintf(w, "flagsync %s (commit %s, built %s, %s %s, release=%t)\n",
			info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform,
			versions.IsRelease(info.Version))
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
