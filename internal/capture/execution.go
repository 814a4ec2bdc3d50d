// Package capture models observed process executions and the session
// machinery that makes an arbitrary build tree report them.
package capture

import (
	"os"
	"time"
)

// Execution describes one observed process invocation. Values are captured
// at the moment of observation and never mutated afterward.
type Execution struct {
	Executable  string            `json:"executable"`
	Arguments   []string          `json:"arguments"`
	WorkingDir  string            `json:"working_dir"`
	Environment map[string]string `json:"environment,omitempty"`
}

// Event wraps an Execution with its capture metadata. Events from different
// processes carry no causal ordering; ordering within one process's events
// is preserved by the store.
type Event struct {
	PID       int       `json:"pid"`
	PPID      int       `json:"ppid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Execution Execution `json:"execution"`
}

// CurrentExecution builds an Execution for the calling process using the
// given argv. The environment snapshot comes from os.Environ.
func CurrentExecution(executable string, arguments []string) Execution {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Execution{
		Executable:  executable,
		Arguments:   arguments,
		WorkingDir:  wd,
		Environment: environMap(os.Environ()),
	}
}

// NewEvent stamps an Execution with the calling process's identity.
func NewEvent(ex Execution) Event {
	return Event{
		PID:       os.Getpid(),
		PPID:      os.Getppid(),
		Timestamp: time.Now().UTC(),
		Execution: ex,
	}
}

// Environ snapshots the calling process's environment as a map.
func Environ() map[string]string {
	return environMap(os.Environ())
}

func environMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}

// EnvironList flattens an environment map into the KEY=VALUE form accepted
// by os/exec.
func EnvironList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	return list
}
