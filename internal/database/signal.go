package database

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandlerWithCallback returns a context that is cancelled on
// SIGINT or SIGTERM. The callback runs before cancellation so the caller can
// log what is happening; the replication loop then stops after the table in
// flight. A second signal exits the process immediately.
func SetupSignalHandlerWithCallback(callback func(os.Signal)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			if callback != nil {
				callback(sig)
			}
			cancel()
		case <-ctx.Done():
			return
		}

		<-sigChan
		os.Exit(1)
	}()

	return ctx
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM,
// without a callback.
func SetupSignalHandler() context.Context {
	return SetupSignalHandlerWithCallback(nil)
}
