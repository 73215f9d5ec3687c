//go:build !unix

package signals

import "os"

var shutdownSignals = []os.Signal{os.Interrupt}
