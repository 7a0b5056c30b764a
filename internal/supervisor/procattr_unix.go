//go:build unix && !linux

package supervisor

import "syscall"

// childProcAttr puts a child in its own process group so terminal signals
// only reach the supervisor.
func childProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
