package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
)

func TestPidFileRoundTrip(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test_daemon.pid")

	if err := writePidFile(pidFile, os.Getpid()); err != nil {
		t.Fatalf("writePidFile failed: %v", err)
	}
	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("PID file was not created: %v", err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("PID file contains %q", data)
	}

	if err := removePidFile(pidFile); err != nil {
		t.Fatalf("removePidFile failed: %v", err)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatal("PID file was not removed")
	}
	if err := removePidFile(""); err != nil {
		t.Fatalf("empty pid file path should be a no-op: %v", err)
	}
}

func TestChildArgsDropDaemonize(t *testing.T) {
	in := []string{"--config", "w.ini", "run", "--daemonize", "--pidfile", "/run/w.pid", "--daemonize=true"}
	want := []string{"--config", "w.ini", "run", "--pidfile", "/run/w.pid"}
	if got := childArgs(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("childArgs = %q, want %q", got, want)
	}
}

func TestIsDaemonChild(t *testing.T) {
	t.Setenv(daemonEnv, "")
	if isDaemonChild() {
		t.Fatal("not a daemon child without the marker")
	}
	t.Setenv(daemonEnv, "1")
	if !isDaemonChild() {
		t.Fatal("marker should identify the daemon child")
	}
}
