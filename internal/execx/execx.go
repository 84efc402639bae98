package execx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Cmd describes a single external command invocation.
type Cmd struct {
	Path    string
	Args    []string
	Env     map[string]string // additional env vars
	Dir     string            // working directory
	Stream  bool              // forward child output line by line
	Capture bool              // capture stdout into Result.Stdout
}

func (c Cmd) String() string { return c.Path + " " + joinArgs(c.Args) }

// Result is the structured outcome of a finished command. A non-zero exit
// lands here, not in an error, so callers classify it themselves.
type Result struct {
	ExitCode int
	Stdout   string
}

// Runner runs external commands. ExecRunner is the process-backed
// implementation; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Result, error)
}

// ExecRunner runs commands as child processes, inheriting the parent
// environment. Cancelling the context kills the running child.
type ExecRunner struct{}

func NewRunner() *ExecRunner { return &ExecRunner{} }

// Run blocks until the command exits. The returned error is non-nil only
// when the command could not be started at all.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	// inherit environment
	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var out bytes.Buffer
	switch {
	case c.Capture:
		cmd.Stdout = &out
		cmd.Stderr = os.Stderr
	case c.Stream:
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return Result{ExitCode: -1}, err
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return Result{ExitCode: -1}, err
		}
		if err := cmd.Start(); err != nil {
			return Result{ExitCode: -1}, err
		}
		go stream(stdout)
		go stream(stderr)
		return wait(cmd, &out)
	default:
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, err
	}
	return wait(cmd, &out)
}

func wait(cmd *exec.Cmd, out *bytes.Buffer) (Result, error) {
	err := cmd.Wait()
	res := Result{Stdout: out.String()}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			res.ExitCode = ee.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}

func stream(r io.Reader) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		fmt.Println(s.Text())
	}
}

func joinArgs(args []string) string {
	var b bytes.Buffer
	for i, a := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a)
	}
	return b.String()
}
