package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/watchdog/internal/process"
	"github.com/loykin/watchdog/internal/server"
	"github.com/loykin/watchdog/internal/supervisor"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHelpMentionsCommands(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help should succeed: %v", err)
	}
	for _, want := range []string{"watchdog", "run", "validate", "status", "--config"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help output lacks %q:\n%s", want, out)
		}
	}
}

func TestValidatePrintsTableInOrder(t *testing.T) {
	cfg := writeConfig(t, "processes.ini", `
[watchdog]
log_file = -
max_retries = 5

[web]
path = /srv/web
args = --port 8080

[report]
path = /tmp/report.pdf
kind = open
`)
	out, err := execute(t, "--config", cfg, "validate")
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	web := strings.Index(out, "/srv/web")
	report := strings.Index(out, "report.pdf")
	if web < 0 || report < 0 || web > report {
		t.Fatalf("entries missing or out of order:\n%s", out)
	}
	for _, want := range []string{"--port 8080", "on-failure", "always", "log: stderr", "5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validate output lacks %q:\n%s", want, out)
		}
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := writeConfig(t, "bad.ini", "[a]\npath =\n")
	if _, err := execute(t, "--config", cfg, "validate"); err == nil || !strings.Contains(err.Error(), "config unreadable") {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.ini"), "validate"); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestRunStopsOnContextAndCleansPidFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/true")
	}
	cfg := writeConfig(t, "processes.ini", `
[watchdog]
poll_interval = 50ms
log_file = wd.log

[blip]
path = /bin/true
`)
	pidFile := filepath.Join(t.TempDir(), "wd.pid")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatchdog(ctx, cfg, RunFlags{PidFile: pidFile}) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(pidFile); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pid file was not written")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, stat err = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfg), "wd.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `msg="process exited" name=blip exit_code=0`) {
		t.Fatalf("log lacks exit record:\n%s", data)
	}
}

func TestStatusCommandAgainstAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sup, err := supervisor.New([]supervisor.Entry{
		{Spec: &process.Spec{Name: "web", Path: "/srv/web"}},
		{Spec: &process.Spec{Name: "batch", Path: "/srv/batch"}},
	}, supervisor.Options{PollInterval: time.Hour})
	if err != nil {
		t.Fatalf("supervisor: %v", err)
	}
	ts := httptest.NewServer(server.NewRouter(sup, "").Handler())
	defer ts.Close()

	out, err := execute(t, "status", "--api-url", ts.URL)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "web") || !strings.Contains(out, "batch") || !strings.Contains(out, "pending") {
		t.Fatalf("unexpected status output:\n%s", out)
	}

	out, err = execute(t, "status", "batch", "--api-url", ts.URL)
	if err != nil {
		t.Fatalf("status batch: %v", err)
	}
	if strings.Contains(out, "web") {
		t.Fatalf("single status should only list batch:\n%s", out)
	}

	if _, err := execute(t, "status", "ghost", "--api-url", ts.URL); err == nil {
		t.Fatal("expected error for unknown process")
	}
}

func TestStatusNeedsAPIAddress(t *testing.T) {
	cfg := writeConfig(t, "processes.ini", "[watchdog]\nlog_file = -\n\n[a]\npath = /bin/true\n")
	_, err := execute(t, "--config", cfg, "status")
	if err == nil || !strings.Contains(err.Error(), "api_listen") {
		t.Fatalf("expected api_listen error, got %v", err)
	}
}

func TestAPIURL(t *testing.T) {
	cases := map[string]string{
		"":               "",
		":8080":          "http://127.0.0.1:8080",
		"0.0.0.0:9000":   "http://127.0.0.1:9000",
		"10.0.0.5:80":    "http://10.0.0.5:80",
		"[::]:8080":      "http://127.0.0.1:8080",
		"localhost:1234": "http://localhost:1234",
	}
	for in, want := range cases {
		if got := apiURL(in); got != want {
			t.Fatalf("apiURL(%q) = %q, want %q", in, got, want)
		}
	}
}
