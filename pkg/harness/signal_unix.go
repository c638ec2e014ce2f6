//go:build unix

package harness

import (
	"os"
	"syscall"
)

// terminate sends SIGTERM to the process group of p.
func terminate(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

// kill sends SIGKILL to the process group of p.
func kill(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	if err := syscall.Kill(-p.Pid, sig); err != nil {
		// not a group leader, signal the process itself
		return p.Signal(sig)
	}
	return nil
}
