package process

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/watchdog/internal/logger"
)

// DefaultWaitDelay bounds how long the waiter keeps draining output after
// the child exits, e.g. when a grandchild still holds the pipe open.
const DefaultWaitDelay = 2 * time.Second

// Launcher starts one process instance for a Spec. It never retries on its
// own; retry policy belongs to the caller.
type Launcher interface {
	Start(ctx context.Context, spec *Spec) (*Handle, error)
}

// ExecLauncher launches specs as OS processes and drains their output into
// the logging sink.
type ExecLauncher struct {
	log       *slog.Logger
	output    logger.FileConfig
	waitDelay time.Duration
}

// LauncherOption customizes an ExecLauncher.
type LauncherOption func(*ExecLauncher)

// WithOutputFiles additionally copies raw child output into rotated files.
func WithOutputFiles(fc logger.FileConfig) LauncherOption {
	return func(l *ExecLauncher) { l.output = fc }
}

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) LauncherOption {
	return func(l *ExecLauncher) { l.waitDelay = d }
}

func NewExecLauncher(log *slog.Logger, opts ...LauncherOption) *ExecLauncher {
	if log == nil {
		log = slog.Default()
	}
	l := &ExecLauncher{log: log, waitDelay: DefaultWaitDelay}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start creates the OS process for spec and returns as soon as the OS has
// confirmed creation. Failures are logged and returned as *StartError.
func (l *ExecLauncher) Start(ctx context.Context, spec *Spec) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, launchFailed(spec, err)
	}
	info, err := os.Stat(spec.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = notFound(spec, err)
			l.log.Error("file not found", "name", spec.Name, "path", spec.Path, "error", err)
			return nil, err
		}
		err = launchFailed(spec, err)
		l.log.Error("failed to start process", "name", spec.Name, "path", spec.Path, "error", err)
		return nil, err
	}

	kind := spec.kind()
	if kind == KindAuto {
		kind = KindOpen
		if isExecutable(info) {
			kind = KindExec
		}
	}
	var cmd *exec.Cmd
	if kind == KindOpen {
		cmd = openCommand(spec.Path, spec.Args)
		if len(spec.Args) > 0 && !openerForwardsArgs() {
			l.log.Debug("opener ignores arguments", "name", spec.Name, "args", spec.Args)
		}
	} else {
		cmd = execCommand(spec.Path, spec.Args)
	}
	configureSysProcAttr(cmd)
	cmd.WaitDelay = l.waitDelay

	closers, err := l.wireOutput(cmd, spec)
	if err != nil {
		err = launchFailed(spec, err)
		l.log.Error("failed to start process", "name", spec.Name, "path", spec.Path, "error", err)
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		closeAll(closers)
		err = launchFailed(spec, err)
		l.log.Error("failed to start process", "name", spec.Name, "path", spec.Path, "error", err)
		return nil, err
	}

	h, exited := NewHandle(spec, cmd.Process.Pid)
	go func() {
		werr := cmd.Wait()
		closeAll(closers)
		exited(exitCode(cmd, werr), werr)
	}()
	l.log.Info("process started", "name", spec.Name, "path", spec.Path, "args", spec.Args, "pid", h.PID(), "kind", string(kind))
	return h, nil
}

// wireOutput connects stdout/stderr to line-oriented log writers, teed into
// per-process files when configured. os/exec copies each stream on its own
// goroutine, so a chatty child never waits on the poll loop.
func (l *ExecLauncher) wireOutput(cmd *exec.Cmd, spec *Spec) ([]io.Closer, error) {
	base := l.log.With("name", spec.Name)
	outLW := logger.NewLineWriter(base.With("stream", "stdout"), slog.LevelInfo)
	errLW := logger.NewLineWriter(base.With("stream", "stderr"), slog.LevelInfo)
	closers := []io.Closer{outLW, errLW}

	outF, errF, err := l.output.ProcessWriters(spec.Name)
	if err != nil {
		return nil, err
	}
	var stdout, stderr io.Writer = outLW, errLW
	if outF != nil {
		stdout = io.MultiWriter(outLW, outF)
		closers = append(closers, outF)
	}
	if errF != nil {
		stderr = io.MultiWriter(errLW, errF)
		closers = append(closers, errF)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return closers, nil
}

// execPath keeps a bare file name from being resolved through PATH: the
// target was found relative to the working directory, so run that file.
func execPath(p string) string {
	if filepath.IsAbs(p) || strings.ContainsRune(p, filepath.Separator) || strings.ContainsRune(p, '/') {
		return p
	}
	return "." + string(filepath.Separator) + p
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
