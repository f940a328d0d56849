package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loykin/watchdog"
)

// runWatchdog loads the configuration and supervises until SIGINT or
// SIGTERM. With Daemonize set, the foreground process only spawns the
// background copy and returns.
func runWatchdog(ctx context.Context, configPath string, flags RunFlags) error {
	cfg, err := watchdog.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if flags.Daemonize && !isDaemonChild() {
		pid, err := daemonize(os.Args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("watchdog started in background with PID %d\n", pid)
		return nil
	}

	if flags.PidFile != "" {
		if err := writePidFile(flags.PidFile, os.Getpid()); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = removePidFile(flags.PidFile) }()
	}

	w, err := watchdog.New(cfg)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
