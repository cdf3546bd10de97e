package signals

import (
	"syscall"
	"testing"
	"time"
)

// TestSetupSIGTERM ensures SIGTERM cancels the returned context.
func TestSetupSIGTERM(t *testing.T) {
	ctx := Setup()

	// Send SIGTERM after a short delay to allow the goroutine to install the handler.
	time.AfterFunc(50*time.Millisecond, func() {
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	})

	select {
	case <-ctx.Done():
		// ok
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for ctx.Done() after SIGTERM")
	}
}

// TestSetupSIGINT ensures SIGINT cancels the returned context.
func TestSetupSIGINT(t *testing.T) {
	ctx := Setup()

	time.AfterFunc(50*time.Millisecond, func() {
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGINT)
	})

	select {
	case <-ctx.Done():
		// ok
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for ctx.Done() after SIGINT")
	}
}
