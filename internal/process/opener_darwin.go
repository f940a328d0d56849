//go:build darwin

package process

import "os/exec"

// openCommand hands path to LaunchServices; arguments follow --args.
func openCommand(path string, args []string) *exec.Cmd {
	argv := []string{path}
	if len(args) > 0 {
		argv = append(argv, "--args")
		argv = append(argv, args...)
	}
	// #nosec G204
	return exec.Command("open", argv...)
}

func openerForwardsArgs() bool { return true }
