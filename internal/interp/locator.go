package interp

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"envboot/pkg/types"
)

// ErrNotFound reports that no discovery strategy produced a candidate.
var ErrNotFound = errors.New("interpreter not found")

// NotFoundError carries the strategies that were tried, for diagnostics.
type NotFoundError struct {
	Tried []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("interpreter not found (tried: %s)", strings.Join(e.Tried, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// System abstracts the OS lookups the locator performs. Package-local so
// unit tests can run in parallel without touching the real filesystem.
type System interface {
	LookPath(name string) (string, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
}

type osSystem struct{}

func (osSystem) LookPath(name string) (string, error) { return exec.LookPath(name) }

func (osSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

// Strategy is one way of locating an interpreter binary. Find returns a
// candidate path and whether the strategy produced one.
type Strategy struct {
	Name string
	Find func() (string, bool)
}

// Locator resolves an interpreter by trying strategies in priority order:
// each configured name on PATH, then a recursive search under the
// configured root. The first candidate wins and short-circuits the rest.
type Locator struct {
	sys        System
	strategies []Strategy
	log        zerolog.Logger
}

func NewLocator(spec types.InterpreterSpec, log zerolog.Logger) *Locator {
	return newLocator(osSystem{}, spec, log)
}

func newLocator(sys System, spec types.InterpreterSpec, log zerolog.Logger) *Locator {
	l := &Locator{sys: sys, log: log}
	for _, name := range spec.Names {
		name := name
		l.strategies = append(l.strategies, Strategy{
			Name: "path:" + name,
			Find: func() (string, bool) { return l.lookPath(name) },
		})
	}
	if spec.SearchRoot != "" {
		root, names := spec.SearchRoot, spec.Names
		l.strategies = append(l.strategies, Strategy{
			Name: "search:" + root,
			Find: func() (string, bool) { return l.search(root, names) },
		})
	}
	return l
}

// Resolve returns the first candidate the strategy chain produces. The
// candidate is not validated beyond what the strategy itself observes; an
// unusable interpreter surfaces on the first pipeline step instead.
func (l *Locator) Resolve() (string, error) {
	tried := make([]string, 0, len(l.strategies))
	for _, s := range l.strategies {
		path, ok := s.Find()
		if ok {
			l.log.Info().Str("strategy", s.Name).Str("path", path).Msg("resolved interpreter")
			return path, nil
		}
		tried = append(tried, s.Name)
	}
	return "", &NotFoundError{Tried: tried}
}

func (l *Locator) lookPath(name string) (string, bool) {
	p, err := l.sys.LookPath(name)
	if err != nil {
		return "", false
	}
	return p, true
}

// search walks root and returns the first executable regular file whose base
// name matches one of the interpreter names, in traversal order.
func (l *Locator) search(root string, names []string) (string, bool) {
	var found string
	err := l.sys.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, not fatal
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !matches(d.Name(), names) {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil || !info.Mode().IsRegular() || info.Mode()&0o111 == 0 {
			return nil
		}
		found = path
		return fs.SkipAll
	})
	if err != nil || found == "" {
		return "", false
	}
	return found, true
}

// matches accepts exact names and versioned variants like python3.11.
func matches(base string, names []string) bool {
	for _, n := range names {
		if base == n || strings.HasPrefix(base, n+".") {
			return true
		}
	}
	return false
}
