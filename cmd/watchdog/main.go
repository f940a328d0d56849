package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/watchdog/internal/config"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags holds flags for running the supervisor.
type RunFlags struct {
	Daemonize bool
	PidFile   string
}

// StatusFlags holds flags for querying a running watchdog.
type StatusFlags struct {
	APIUrl     string
	APITimeout time.Duration
	State      string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	statusFlags := &StatusFlags{}

	root := createRootCommand(globalFlags, runFlags)
	root.AddCommand(
		createRunCommand(globalFlags, runFlags),
		createValidateCommand(globalFlags),
		createStatusCommand(globalFlags, statusFlags),
	)
	return root
}

// createRootCommand runs the supervisor in the foreground when invoked
// without a subcommand.
func createRootCommand(flags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "watchdog",
		Short: "Keep a fixed set of programs running",
		Long: `Watchdog starts every program listed in its configuration file and
relaunches any of them that exits, logging each termination.

Examples:
  watchdog                              # supervise processes.ini in the current directory
  watchdog --config /etc/watchdog.toml  # use another config file
  watchdog run --daemonize --pidfile /run/watchdog.pid
  watchdog validate                     # print the parsed process table
  watchdog status                       # query a running watchdog's status API`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchdog(cmd.Context(), flags.ConfigPath, *runFlags)
		},
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", config.DefaultFile, "path to the configuration file (.ini, .toml, .yaml or .json)")
	return root
}

func createRunCommand(globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the supervisor",
		Long: `Run the supervisor until interrupted.

Examples:
  watchdog run
  watchdog run --daemonize --pidfile /run/watchdog.pid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchdog(cmd.Context(), globalFlags.ConfigPath, *runFlags)
		},
	}
	cmd.Flags().BoolVar(&runFlags.Daemonize, "daemonize", false, "run in the background, detached from the terminal")
	cmd.Flags().StringVar(&runFlags.PidFile, "pidfile", "", "write the watchdog's PID to this file")
	return cmd
}

func createValidateCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse the configuration and print the process table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), globalFlags.ConfigPath)
		},
	}
}

func createStatusCommand(globalFlags *GlobalFlags, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show the status of a running watchdog",
		Long: `Query the status API of a running watchdog.

The API address defaults to api_listen from the configuration file.

Examples:
  watchdog status
  watchdog status web
  watchdog status --state failed_to_start
  watchdog status --api-url http://host:8080`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return showStatus(cmd.Context(), cmd.OutOrStdout(), globalFlags.ConfigPath, *statusFlags, name)
		},
	}
	cmd.Flags().StringVar(&statusFlags.APIUrl, "api-url", "", "watchdog API URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&statusFlags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	cmd.Flags().StringVar(&statusFlags.State, "state", "", "only show processes in this state")
	return cmd
}
