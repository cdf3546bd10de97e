// Package waiter polls for a certificate/key pair until it appears or a
// deadline elapses.
//
// The external TLS terminator offers no "certificate ready" notification, so
// acquisition is a bounded poll loop. The scan predicate, clock and sleep are
// all injectable so tests run against synthetic time.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/certstore"
)

// ScanFunc is the discovery predicate driven by the poll loop. It returns
// certstore.ErrNoCertificates while nothing valid has appeared yet.
type ScanFunc func() (certstore.Pair, *certstore.Report, error)

// Policy bounds the poll loop.
type Policy struct {
	Timeout  time.Duration
	Interval time.Duration
}

// DefaultPolicy matches the deployment defaults: give the terminator five
// minutes, checking every five seconds.
var DefaultPolicy = Policy{
	Timeout:  300 * time.Second,
	Interval: 5 * time.Second,
}

// TimeoutError reports an exhausted wait, including what the last scan found
// in each search pass.
type TimeoutError struct {
	Elapsed    time.Duration
	Attempts   int
	LastReport *certstore.Report
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no certificate/key pair appeared after %s (%d scans; last search: %s)",
		e.Elapsed, e.Attempts, e.LastReport.Summary())
}

// Waiter runs the poll loop. The zero value uses DefaultPolicy and real time.
type Waiter struct {
	Policy Policy

	// Now and Sleep override real time in tests. When Sleep is set it is
	// used unconditionally and context cancellation is only observed
	// between attempts.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Wait polls scan until it yields a pair or the policy timeout elapses.
// One final scan runs after the deadline so a pair arriving during the last
// sleep is still picked up. Exhaustion yields a *TimeoutError; scan failures
// other than certstore.ErrNoCertificates and context cancellation abort the
// wait as-is.
func (w *Waiter) Wait(ctx context.Context, scan ScanFunc) (certstore.Pair, error) {
	policy := w.Policy
	if policy.Timeout == 0 {
		policy.Timeout = DefaultPolicy.Timeout
	}
	if policy.Interval == 0 {
		policy.Interval = DefaultPolicy.Interval
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	attempts := 0
	var lastReport *certstore.Report

	for now().Sub(start) < policy.Timeout {
		if err := ctx.Err(); err != nil {
			return certstore.Pair{}, err
		}
		attempts++
		pair, report, err := scan()
		if err == nil {
			return pair, nil
		}
		if !errors.Is(err, certstore.ErrNoCertificates) {
			return certstore.Pair{}, err
		}
		lastReport = report

		elapsed := now().Sub(start)
		log.Info().
			Dur("elapsed", elapsed).
			Dur("timeout", policy.Timeout).
			Int("attempts", attempts).
			Msg("waiting for certificate")
		if err := w.sleep(ctx, policy.Interval); err != nil {
			return certstore.Pair{}, err
		}
	}

	// Final fallback scan past the deadline.
	attempts++
	pair, report, err := scan()
	if err == nil {
		return pair, nil
	}
	if !errors.Is(err, certstore.ErrNoCertificates) {
		return certstore.Pair{}, err
	}
	if report != nil {
		lastReport = report
	}
	return certstore.Pair{}, &TimeoutError{
		Elapsed:    now().Sub(start),
		Attempts:   attempts,
		LastReport: lastReport,
	}
}

func (w *Waiter) sleep(ctx context.Context, d time.Duration) error {
	if w.Sleep != nil {
		w.Sleep(d)
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
