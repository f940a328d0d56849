package process

import (
	"errors"
	"fmt"
)

// Start failure kinds. Both are retry-eligible: the caller decides when to
// try again.
var (
	ErrNotFound     = errors.New("target not found")
	ErrLaunchFailed = errors.New("launch failed")
)

// StartError is returned by Launcher.Start. errors.Is matches both the kind
// (ErrNotFound or ErrLaunchFailed) and the underlying cause.
type StartError struct {
	Name  string
	Path  string
	Kind  error
	Cause error
}

func (e *StartError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("start %s (%s): %v", e.Name, e.Path, e.Kind)
	}
	return fmt.Sprintf("start %s (%s): %v: %v", e.Name, e.Path, e.Kind, e.Cause)
}

func (e *StartError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func notFound(s *Spec, cause error) error {
	return &StartError{Name: s.Name, Path: s.Path, Kind: ErrNotFound, Cause: cause}
}

func launchFailed(s *Spec, cause error) error {
	return &StartError{Name: s.Name, Path: s.Path, Kind: ErrLaunchFailed, Cause: cause}
}
