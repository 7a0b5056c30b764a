package supervisor

import "syscall"

// childProcAttr puts a child in its own process group so terminal signals
// only reach the supervisor, and kills it if the supervisor dies first.
func childProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
