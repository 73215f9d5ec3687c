package signals

import (
	"context"
	"os"
	"os/signal"
)

// notifyContext is swapped in tests.
var notifyContext = signal.NotifyContext

// ShutdownSignals lists the signals that stop a run. The returned slice is a
// copy.
func ShutdownSignals() []os.Signal {
	return append([]os.Signal(nil), shutdownSignals...)
}

// Context returns a child of parent that is cancelled on the first shutdown
// signal. A running git child process is killed through the cancelled context.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return notifyContext(parent, ShutdownSignals()...)
}
