//go:build !unix

package harness

import (
	"os"
	"syscall"
)

func backendSysProcAttr() *syscall.SysProcAttr {
	return nil
}

func terminate(p *os.Process) error {
	return p.Signal(os.Interrupt)
}

func kill(p *os.Process) error {
	return p.Kill()
}
