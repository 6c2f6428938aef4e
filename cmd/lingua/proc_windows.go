//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// DETACHED_PROCESS; syscall does not export it
const detachedProcess = 0x00000008

// detachDaemon starts linguad without a console in a new process group
func detachDaemon(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
