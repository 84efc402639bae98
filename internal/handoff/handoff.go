package handoff

import (
	"strconv"
	"syscall"

	"envboot/pkg/types"
)

// Command builds the argv that starts the service under the resolved
// interpreter. App, host and port are externally supplied constants and are
// passed through uninterpreted.
func Command(python string, svc types.ServiceSpec) []string {
	return []string{
		python, "-m", "uvicorn", svc.App,
		"--host", svc.Host,
		"--port", strconv.Itoa(svc.Port),
	}
}

// Exec replaces the current process with the service process. It only
// returns on error; on success the bootstrapper is gone.
func Exec(python string, svc types.ServiceSpec, env []string) error {
	argv := Command(python, svc)
	return syscall.Exec(argv[0], argv, env)
}
