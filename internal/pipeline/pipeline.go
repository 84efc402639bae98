package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"envboot/internal/execx"
	"envboot/pkg/types"
)

// State identifies where a run is in its fixed sequence. There is no path
// out of StateFailed; the run is single-pass with no rollback.
type State int

const (
	StateNotStarted State = iota
	StateLocatingInterpreter
	StatePinningPackageManager
	StateInstallingStep
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateLocatingInterpreter:
		return "locating-interpreter"
	case StatePinningPackageManager:
		return "pinning-package-manager"
	case StateInstallingStep:
		return "installing-step"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure records the terminal failure. StepIndex is 1-based; 0 means the
// failure preceded the install steps (locating or pinning).
type Failure struct {
	StepIndex int
	Cause     error
}

// Resolver yields the interpreter the pipeline runs against.
// *interp.Locator satisfies it.
type Resolver interface {
	Resolve() (string, error)
}

// Pipeline drives one bootstrap run: locate the interpreter, pin pip, then
// install each declared step strictly in order. Any failure is terminal.
type Pipeline struct {
	resolver Resolver
	runner   execx.Runner
	manifest types.Manifest
	log      zerolog.Logger

	state   State
	failure *Failure
}

func New(resolver Resolver, runner execx.Runner, m types.Manifest, log zerolog.Logger) *Pipeline {
	return &Pipeline{resolver: resolver, runner: runner, manifest: m, log: log, state: StateNotStarted}
}

func (p *Pipeline) State() State { return p.state }

// Failure returns the terminal failure record, nil while not failed.
func (p *Pipeline) Failure() *Failure { return p.failure }

// Run executes the full sequence and returns the resolved interpreter path
// on success so the caller can hand off to the service process.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	p.setState(StateLocatingInterpreter)
	python, err := p.resolver.Resolve()
	if err != nil {
		return "", p.fail(0, err)
	}

	p.setState(StatePinningPackageManager)
	if err := p.ensurePip(ctx, python); err != nil {
		return "", p.fail(0, err)
	}
	if err := p.pin(ctx, python); err != nil {
		return "", p.fail(0, err)
	}

	total := len(p.manifest.Steps)
	for i, step := range p.manifest.Steps {
		p.setState(StateInstallingStep)
		if err := p.install(ctx, python, i+1, total, step); err != nil {
			return "", p.fail(i+1, err)
		}
	}

	p.setState(StateDone)
	p.log.Info().Int("steps", total).Msg("bootstrap complete")
	return python, nil
}

// ensurePip makes sure pip is present and runnable before any network
// install. ensurepip works from the interpreter's bundled wheel; if it is
// unavailable (some distro builds strip it) a working pip is good enough.
func (p *Pipeline) ensurePip(ctx context.Context, python string) error {
	res, err := p.runner.Run(ctx, execx.Cmd{
		Path:   python,
		Args:   []string{"-m", "ensurepip", "--upgrade"},
		Stream: true,
	})
	if err != nil {
		return &PinError{Reason: "ensurepip could not start", Err: err}
	}
	if res.ExitCode == 0 {
		return nil
	}
	probe, err := p.runner.Run(ctx, execx.Cmd{
		Path:    python,
		Args:    []string{"-m", "pip", "--version"},
		Capture: true,
	})
	if err != nil || probe.ExitCode != 0 {
		return &PinError{Reason: "pip is not runnable", ExitCode: res.ExitCode, Err: err}
	}
	p.log.Warn().Int("exit", res.ExitCode).Msg("ensurepip failed but pip is runnable, continuing")
	return nil
}

// pin forces pip and its build companions to the manifest versions, then
// verifies pip landed under the upper bound. A pip above the bound after
// pinning is a policy violation: the legacy build flag a later step needs
// does not exist there.
func (p *Pipeline) pin(ctx context.Context, python string) error {
	args := []string{"-m", "pip", "install"}
	for _, pkg := range p.manifest.Pin.Packages {
		args = append(args, pkg.Requirement())
	}
	p.log.Info().Strs("packages", requirements(p.manifest.Pin.Packages)).Msg("pinning package manager")
	res, err := p.runner.Run(ctx, execx.Cmd{Path: python, Args: args, Stream: true})
	if err != nil {
		return &PinError{Reason: "pin install could not start", Err: err}
	}
	if res.ExitCode != 0 {
		return &PinError{Reason: "pin install failed", ExitCode: res.ExitCode}
	}
	if p.manifest.Pin.MaxPipVersion == "" {
		return nil
	}
	ver, err := p.pipVersion(ctx, python)
	if err != nil {
		return err
	}
	bound, err := semver.NewVersion(p.manifest.Pin.MaxPipVersion)
	if err != nil {
		return &PinError{Reason: fmt.Sprintf("bad max pip version %q", p.manifest.Pin.MaxPipVersion), Err: err}
	}
	if !ver.LessThan(bound) {
		return &PinError{Reason: fmt.Sprintf("pip %s violates pin policy (must be < %s)", ver, bound)}
	}
	p.log.Info().Str("pip", ver.String()).Msg("package manager pinned")
	return nil
}

func (p *Pipeline) pipVersion(ctx context.Context, python string) (*semver.Version, error) {
	res, err := p.runner.Run(ctx, execx.Cmd{
		Path:    python,
		Args:    []string{"-m", "pip", "--version"},
		Capture: true,
	})
	if err != nil {
		return nil, &PinError{Reason: "pip --version could not start", Err: err}
	}
	if res.ExitCode != 0 {
		return nil, &PinError{Reason: "pip --version failed", ExitCode: res.ExitCode}
	}
	// output: "pip 23.3.2 from /usr/local/lib/... (python 3.11)"
	fields := strings.Fields(res.Stdout)
	if len(fields) < 2 || fields[0] != "pip" {
		return nil, &PinError{Reason: fmt.Sprintf("unrecognized pip --version output %q", strings.TrimSpace(res.Stdout))}
	}
	ver, err := semver.NewVersion(fields[1])
	if err != nil {
		return nil, &PinError{Reason: fmt.Sprintf("unparseable pip version %q", fields[1]), Err: err}
	}
	return ver, nil
}

// install runs one step as its own pip invocation. Flags are scoped to this
// call only.
func (p *Pipeline) install(ctx context.Context, python string, index, total int, step types.InstallStep) error {
	args := []string{"-m", "pip", "install"}
	args = append(args, step.Flags...)
	args = append(args, step.Requirements()...)
	ev := p.log.Info().Int("step", index).Int("of", total).Strs("packages", step.Requirements())
	if len(step.Flags) > 0 {
		ev = ev.Strs("flags", step.Flags)
	}
	ev.Msg("installing")
	res, err := p.runner.Run(ctx, execx.Cmd{Path: python, Args: args, Stream: true})
	if err != nil {
		return &StepError{Index: index, Total: total, Step: step, Err: err}
	}
	if res.ExitCode != 0 {
		return &StepError{Index: index, Total: total, Step: step, ExitCode: res.ExitCode}
	}
	return nil
}

func (p *Pipeline) setState(s State) {
	p.state = s
	p.log.Debug().Stringer("state", s).Msg("state transition")
}

func (p *Pipeline) fail(stepIndex int, err error) error {
	p.state = StateFailed
	p.failure = &Failure{StepIndex: stepIndex, Cause: err}
	p.log.Error().Int("step", stepIndex).Err(err).Msg("bootstrap failed")
	return err
}

func requirements(pkgs []types.PackageSpec) []string {
	reqs := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		reqs = append(reqs, pkg.Requirement())
	}
	return reqs
}
