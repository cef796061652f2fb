//go:build windows

package main

import "os"

// stopSignals end a run at the next round boundary. Windows has no SIGTERM.
var stopSignals = []os.Signal{os.Interrupt}
