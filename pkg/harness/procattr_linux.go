//go:build linux

package harness

import "syscall"

// backendSysProcAttr runs the backend in its own process group. The kernel kills it when the
// spawning thread dies, which includes a test binary crashing on a panic.
func backendSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
}
