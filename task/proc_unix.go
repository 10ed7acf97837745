//go:build unix

package task

import (
	"errors"
	"os"
	"syscall"
)

// pidAlive reports whether pid identifies a live process, using the signal-0
// idiom: sending signal 0 performs error checking without actually sending a
// signal. ESRCH means no such process; EPERM means the process exists but is
// owned by another user, which still counts as alive for our purposes.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
