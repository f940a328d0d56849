package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/loykin/watchdog"
	"github.com/loykin/watchdog/pkg/client"
)

// showStatus prints the status table of a running watchdog.
func showStatus(ctx context.Context, out io.Writer, configPath string, flags StatusFlags, name string) error {
	base := flags.APIUrl
	if base == "" {
		cfg, err := watchdog.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if base = apiURL(cfg.Global.APIListen); base == "" {
			return fmt.Errorf("api_listen is not set in %s; pass --api-url", cfg.Path)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c := client.New(client.Config{BaseURL: base, Timeout: flags.APITimeout})

	var sts []client.ProcessStatus
	if name != "" {
		st, err := c.Status(ctx, name)
		if err != nil {
			return err
		}
		sts = []client.ProcessStatus{st}
	} else {
		var err error
		if sts, err = c.List(ctx, flags.State); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(out)
	table.Header("Name", "State", "PID", "Uptime", "Restarts", "Last Exit", "RSS", "CPU %", "Error")
	now := time.Now()
	for _, st := range sts {
		if err := table.Append(statusRow(st, now)...); err != nil {
			return err
		}
	}
	return table.Render()
}

func statusRow(st client.ProcessStatus, now time.Time) []any {
	pid, uptime, exit, rss, cpu := "-", "-", "-", "-", "-"
	if st.PID > 0 {
		pid = strconv.Itoa(st.PID)
	}
	if st.State == "running" && !st.StartedAt.IsZero() {
		uptime = now.Sub(st.StartedAt).Truncate(time.Second).String()
	}
	if st.LastExitCode != nil {
		exit = strconv.Itoa(*st.LastExitCode)
	}
	if st.Usage != nil {
		rss = fmt.Sprintf("%.1f MiB", float64(st.Usage.RSSBytes)/(1<<20))
		cpu = fmt.Sprintf("%.1f", st.Usage.CPUPercent)
	}
	return []any{st.Name, st.State, pid, uptime, strconv.Itoa(st.Restarts), exit, rss, cpu, st.LastError}
}

// apiURL turns a listen address into a URL a local client can reach.
func apiURL(listen string) string {
	if listen == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
