//go:build windows

package process

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var executableExts = map[string]bool{".exe": true, ".bat": true, ".cmd": true, ".com": true}

// scriptExts run through their file association by cmd /c, which waits for
// the interpreter unlike start.
var scriptExts = map[string]bool{".py": true}

// isExecutable reports whether the file has an extension Windows runs
// directly or through cmd /c.
func isExecutable(info os.FileInfo) bool {
	ext := strings.ToLower(filepath.Ext(info.Name()))
	return info.Mode().IsRegular() && (executableExts[ext] || scriptExts[ext])
}

func execCommand(path string, args []string) *exec.Cmd {
	if scriptExts[strings.ToLower(filepath.Ext(path))] {
		// #nosec G204
		return exec.Command("cmd", append([]string{"/c", execPath(path)}, args...)...)
	}
	// #nosec G204
	return exec.Command(execPath(path), args...)
}
