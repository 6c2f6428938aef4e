//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// detachDaemon starts linguad in its own session so closing the terminal
// does not take it down
func detachDaemon(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
