package pipeline

import (
	"fmt"

	"envboot/pkg/types"
)

// PinError reports that the package manager could not be bootstrapped or
// pinned. Nothing installs after it: the legacy build flag used by a later
// step only exists on the pinned pip line.
type PinError struct {
	Reason   string
	ExitCode int // child exit status, 0 when the failure was not a child exit
	Err      error
}

func (e *PinError) Error() string {
	msg := "package manager pin failed: " + e.Reason
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s (pip exited %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *PinError) Unwrap() error { return e.Err }

// StepError reports a single install step failure with everything an
// operator needs to reproduce it: the step's packages and flags, and the
// child's exit status. Index is 1-based declaration order.
type StepError struct {
	Index    int
	Total    int
	Step     types.InstallStep
	ExitCode int
	Err      error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("install step %d/%d (%s", e.Index, e.Total, e.Step)
	if len(e.Step.Flags) > 0 {
		msg = fmt.Sprintf("%s flags=%v", msg, e.Step.Flags)
	}
	msg += ") failed"
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s: pip exited %d", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }
