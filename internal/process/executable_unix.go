//go:build !windows

package process

import (
	"os"
	"os/exec"
)

// isExecutable reports whether path is a regular file with any execute bit.
func isExecutable(info os.FileInfo) bool {
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

func execCommand(path string, args []string) *exec.Cmd {
	// #nosec G204
	return exec.Command(execPath(path), args...)
}
