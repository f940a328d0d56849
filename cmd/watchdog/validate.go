package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/loykin/watchdog"
)

// validateConfig loads the configuration and prints the process table in
// supervision order.
func validateConfig(out io.Writer, configPath string) error {
	cfg, err := watchdog.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	g := cfg.Global
	logDest := g.Log.Path
	if logDest == "" {
		logDest = "stderr"
	}
	_, _ = fmt.Fprintf(out, "config: %s\npoll interval: %s\nlog: %s\n", cfg.Path, g.PollInterval, logDest)
	if len(g.HistoryDSNs) > 0 {
		_, _ = fmt.Fprintf(out, "history sinks: %d\n", len(g.HistoryDSNs))
	}

	table := tablewriter.NewWriter(out)
	table.Header("#", "Name", "Kind", "Path", "Args", "Restart", "Backoff", "Max Retries")
	for i, e := range cfg.Entries {
		retries := "unlimited"
		if e.Policy.MaxRetries > 0 {
			retries = strconv.Itoa(e.Policy.MaxRetries)
		}
		backoff := string(e.Policy.Backoff)
		if backoff == "" {
			backoff = "immediate"
		}
		if err := table.Append(
			strconv.Itoa(i), e.Spec.Name, string(e.Spec.Kind), e.Spec.Path,
			strings.Join(e.Spec.Args, " "), string(e.Policy.Restart), backoff, retries,
		); err != nil {
			return err
		}
	}
	return table.Render()
}
