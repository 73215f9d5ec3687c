//go:build unix

package signals

import (
	"os"
	"syscall"
)

// Ctrl-C from the terminal, or SIGTERM from a supervisor or `timeout`.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
