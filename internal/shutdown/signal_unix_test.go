//go:build unix

package shutdown_test

import (
	"syscall"
	"testing"
	"time"

	"imanconnect/internal/shutdown"
)

func TestSignalTriggersShutdown(t *testing.T) {
	mgr := shutdown.NewManager()
	stop := mgr.NotifyOnSignals()
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Skipf("cannot signal self: %v", err)
	}

	select {
	case <-mgr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("SIGTERM did not trigger shutdown")
	}
}
