//go:build windows

package process

import "os/exec"

// openCommand uses the shell's start builtin; the empty string is the
// window title start expects before a quoted target.
func openCommand(path string, args []string) *exec.Cmd {
	argv := append([]string{"/c", "start", "", path}, args...)
	// #nosec G204
	return exec.Command("cmd", argv...)
}

func openerForwardsArgs() bool { return true }
