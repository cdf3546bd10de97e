// Package signals wires SIGINT/SIGTERM to context cancellation so the
// certificate wait loop can be aborted cleanly by the invoking orchestrator.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Setup registers a handler for SIGINT and SIGTERM and returns a context
// that is canceled when either signal arrives. No partial results are
// committed on cancellation; the pipeline simply stops.
func Setup() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("signal received, aborting")
		cancel()
	}()

	return ctx
}
