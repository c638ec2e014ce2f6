//go:build unix && !linux

package harness

import "syscall"

func backendSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
