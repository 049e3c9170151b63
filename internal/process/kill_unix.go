//go:build !windows

// Package process terminates the browser process tree left behind by a
// composer.
package process

import "syscall"

// KillProcessGroup sends SIGKILL to the process group led by pid, taking
// Chrome's renderer and GPU children down with it. A pid <= 0 is ignored:
// an unstarted launcher reports 0, and kill(-0) would hit our own group.
func KillProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
