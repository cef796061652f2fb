//go:build !windows

package main

import (
	"os"
	"syscall"
)

// stopSignals end a run at the next round boundary.
var stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
