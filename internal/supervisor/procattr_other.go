//go:build !unix

package supervisor

import "syscall"

func childProcAttr() *syscall.SysProcAttr {
	return nil
}
