package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// processLister matches ps.Processes.
type processLister func() ([]ps.Process, error)

// OtherInstances returns the PIDs of other running processes with the given
// executable name. The current process is excluded.
func OtherInstances(executable string) ([]int, error) {
	return otherInstances(executable, os.Getpid(), ps.Processes)
}

// CurrentExecutable returns the base name of the running binary.
func CurrentExecutable() string {
	return filepath.Base(os.Args[0])
}

func otherInstances(executable string, self int, list processLister) ([]int, error) {
	processes, err := list()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	want := normalizeExecutable(executable)

	var pids []int

	for _, p := range processes {
		if p.Pid() == self {
			continue
		}

		if normalizeExecutable(p.Executable()) == want {
			pids = append(pids, p.Pid())
		}
	}

	return pids, nil
}

// normalizeExecutable makes names comparable across platforms.
func normalizeExecutable(name string) string {
	return strings.TrimSuffix(strings.ToLower(filepath.Base(name)), ".exe")
}
