//go:build !unix

package main

import (
	"fmt"
	"os"
)

func runningDetached() bool { return false }

// detach is unsupported here; the process warns and stays in the
// foreground.
func detach([]string) (bool, error) {
	fmt.Fprintln(os.Stderr, "daemon mode is not supported on this platform, continuing in the foreground")
	return false, nil
}
