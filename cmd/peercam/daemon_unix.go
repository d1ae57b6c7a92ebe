//go:build unix

package main

import (
	"os"
	"os/exec"
	"syscall"
)

const detachedEnv = "PEERCAM_DETACHED"

func runningDetached() bool {
	return os.Getenv(detachedEnv) == "1"
}

// detach re-executes the process in its own session with the standard
// streams pointed at /dev/null. It reports whether a child was started,
// in which case the parent should exit.
func detach(args []string) (bool, error) {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return false, err
	}
	defer devNull.Close()

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), detachedEnv+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return false, err
	}
	return true, cmd.Process.Release()
}
