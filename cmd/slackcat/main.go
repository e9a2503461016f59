package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qj0r9j0vc2/slackcat/internal/app"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slackcat",
		Short:         "slackcat: a pluggable chat command bot",
		Long:          "slackcat answers ?commands in Slack through pluggable modules, or runs one message offline.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config/config.yaml"
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "path to config.yaml (env CONFIG_PATH)")

	root.AddCommand(runCmd())
	root.AddCommand(localCmd())
	root.AddCommand(versionCmd())

	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Slack and serve commands until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Version:    version,
			})
		},
	}
}

func localCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "local <message>",
		Short: "Handle a single message offline and print the replies",
		Long: "Handle a single message offline and print the replies.\n" +
			"The run fails when no module handles the message.\n" +
			"Use \"?react :emoji: [timestamp] [--remove]\" to simulate a reaction.",
		Example: "  slackcat local \"?ping\"\n  slackcat local \"?react :+1:\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), app.Options{
				ConfigPath:   configPath,
				Version:      version,
				Local:        true,
				LocalMessage: strings.Join(args, " "),
				Output:       cmd.OutOrStdout(),
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "slackcat", version)
		},
	}
}

func execute(parent context.Context, opts app.Options) error {
	if parent == nil {
		parent = context.Background()
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "slackcat:", err)
		return err
	}

	runErr := application.Start(ctx)
	shutdownErr := application.Shutdown()

	if runErr != nil {
		fmt.Fprintln(os.Stderr, "slackcat:", runErr)
		return runErr
	}
	return shutdownErr
}
