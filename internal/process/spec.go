package process

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Kind selects how a Spec is launched.
type Kind string

const (
	KindAuto Kind = "auto" // exec when the target is executable, open otherwise
	KindExec Kind = "exec" // run the target directly
	KindOpen Kind = "open" // hand the target to the platform's default handler
)

// ParseKind maps a configuration value to a Kind. Empty means KindAuto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindExec, KindOpen:
		return k, nil
	default:
		return "", fmt.Errorf("unknown kind %q, must be one of: auto, exec, open", s)
	}
}

// Spec describes one supervised program. It is built once while loading
// configuration and shared by pointer between the first launch and every
// restart; nothing modifies it afterwards.
type Spec struct {
	Name string   `json:"name"`
	Path string   `json:"path"`
	Args []string `json:"args"`
	Kind Kind     `json:"kind"`
}

// ParseArgs splits a space-delimited argument string. An empty or blank
// string yields no arguments.
func ParseArgs(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}

// Validate reports whether the spec can enter the supervised set.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("process name is required")
	}
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("process %q: path is required", s.Name)
	}
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return fmt.Errorf("process %q: %w", s.Name, err)
	}
	return nil
}

// Equal compares two specs by value. A nil and an empty argument list are
// the same argument vector.
func (s *Spec) Equal(o *Spec) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Name != o.Name || s.Path != o.Path || s.kind() != o.kind() {
		return false
	}
	if len(s.Args) == 0 && len(o.Args) == 0 {
		return true
	}
	return slices.Equal(s.Args, o.Args)
}

func (s *Spec) kind() Kind {
	if s.Kind == "" {
		return KindAuto
	}
	return s.Kind
}

// DefaultName derives a process name from a path, used when a config entry
// omits one.
func DefaultName(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

func (s *Spec) String() string {
	if len(s.Args) == 0 {
		return s.Path
	}
	return s.Path + " " + strings.Join(s.Args, " ")
}
