// Package cli implements the careerforge command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/careerforge/careerforge/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"   ____                          _____\n" +
		"  / ___|__ _ _ __ ___  ___ _ __ |  ___|__  _ __ __ _  ___\n" +
		" | |   / _` | '__/ _ \\/ _ \\ '__|| |_ / _ \\| '__/ _` |/ _ \\\n" +
		" | |__| (_| | | |  __/  __/ |   |  _| (_) | | | (_| |  __/\n" +
		"  \\____\\__,_|_|  \\___|\\___|_|   |_|  \\___/|_|  \\__, |\\___|\n" +
		"                                               |___/\n"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:          "careerforge",
		Short:        "CareerForge - multi-agent coding mentor",
		Long:         color.CyanString(logo) + "\nRoutes coding questions to mentor, manager, reviewer, executor and advisor agents.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newGatewayCmd(),
		newChatCmd(),
		newExecCmd(),
		newTopicsCmd(),
		newSessionsCmd(),
		newInitCmd(),
		newEvalCmd(),
	)
	return rootCmd
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
