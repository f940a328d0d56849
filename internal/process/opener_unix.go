//go:build !windows && !darwin

package process

import "os/exec"

// openCommand hands path to the desktop's default handler. xdg-open takes a
// single target, so arguments cannot be forwarded.
func openCommand(path string, _ []string) *exec.Cmd {
	// #nosec G204
	return exec.Command("xdg-open", path)
}

func openerForwardsArgs() bool { return false }
