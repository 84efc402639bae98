package types

import (
	"fmt"
	"strings"
)

// PackageSpec pins a single package to an exact version. Versions are
// literal, never resolved.
type PackageSpec struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Version string `json:"version" yaml:"version" toml:"version"`
}

// Requirement renders the pip requirement string, e.g. "numpy==1.24.3".
func (p PackageSpec) Requirement() string { return p.Name + "==" + p.Version }

// InstallStep is one atomic pip invocation. Its packages land together and
// its flags apply to this invocation only, never globally.
type InstallStep struct {
	Name     string        `json:"name" yaml:"name" toml:"name"`
	Packages []PackageSpec `json:"packages" yaml:"packages" toml:"packages"`
	Flags    []string      `json:"flags,omitempty" yaml:"flags,omitempty" toml:"flags,omitempty"`
}

// Requirements returns the pip requirement strings for the step's packages.
func (s InstallStep) Requirements() []string {
	reqs := make([]string, 0, len(s.Packages))
	for _, p := range s.Packages {
		reqs = append(reqs, p.Requirement())
	}
	return reqs
}

func (s InstallStep) String() string {
	return fmt.Sprintf("%s [%s]", s.Name, strings.Join(s.Requirements(), " "))
}

// InterpreterSpec configures interpreter discovery: binary names tried on
// PATH in order, then a recursive search under SearchRoot.
type InterpreterSpec struct {
	Names      []string `json:"names" yaml:"names" toml:"names"`
	SearchRoot string   `json:"search_root" yaml:"search_root" toml:"search_root"`
}

// PinSpec pins the package manager and its build companions. MaxPipVersion
// is an exclusive upper bound: a pip at or above it cannot perform the
// legacy build mode one of the install steps requires.
type PinSpec struct {
	Packages      []PackageSpec `json:"packages" yaml:"packages" toml:"packages"`
	MaxPipVersion string        `json:"max_pip_version" yaml:"max_pip_version" toml:"max_pip_version"`
}

// ServiceSpec holds the handoff constants for the downstream service. They
// are externally supplied and passed through uninterpreted.
type ServiceSpec struct {
	App  string `json:"app" yaml:"app" toml:"app"`
	Host string `json:"host" yaml:"host" toml:"host"`
	Port int    `json:"port" yaml:"port" toml:"port"`
}

// Manifest is the single declarative source of truth for one bootstrap run.
type Manifest struct {
	Interpreter InterpreterSpec `json:"interpreter" yaml:"interpreter" toml:"interpreter"`
	Pin         PinSpec         `json:"pin" yaml:"pin" toml:"pin"`
	Steps       []InstallStep   `json:"steps" yaml:"steps" toml:"steps"`
	Service     ServiceSpec     `json:"service" yaml:"service" toml:"service"`
}
