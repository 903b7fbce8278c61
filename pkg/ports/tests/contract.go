package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports"
)

// ChannelDriverContractTest is a reusable suite verifying that a driver
// complies with ports.ChannelDriver. The feed function injects one
// inbound frame into the (open) driver through whatever back door the
// adapter provides.
func ChannelDriverContractTest(t *testing.T, driver ports.ChannelDriver, feed func(domain.Frame) error) {
	t.Helper()
	ctx := context.Background()

	t.Run("Open", func(t *testing.T) {
		if err := driver.Open(ctx); err != nil {
			t.Fatalf("unexpected open error: %v", err)
		}
	})

	t.Run("WriteFrame", func(t *testing.T) {
		if err := driver.WriteFrame(ctx, domain.TextFrame(0, "ping")); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
	})

	t.Run("ReadFrame", func(t *testing.T) {
		want := domain.TextFrame(3, "pong")
		if err := feed(want); err != nil {
			t.Fatalf("feed failed: %v", err)
		}

		readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		got, err := driver.ReadFrame(readCtx)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		if got.Offset != want.Offset || got.Text != want.Text {
			t.Errorf("frame mismatch. got %v, want %v", got, want)
		}
	})

	t.Run("CloseUnblocksRead", func(t *testing.T) {
		done := make(chan error, 1)
		go func() {
			_, err := driver.ReadFrame(ctx)
			done <- err
		}()

		// Give the reader a moment to block.
		time.Sleep(20 * time.Millisecond)
		if err := driver.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		select {
		case err := <-done:
			if !errors.Is(err, domain.ErrChannelClosed) {
				t.Errorf("pending read returned %v, want ErrChannelClosed", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pending read was not unblocked by Close")
		}
	})

	t.Run("CloseIdempotent", func(t *testing.T) {
		if err := driver.Close(); err != nil {
			t.Errorf("second close returned %v, want nil", err)
		}
	})

	t.Run("WriteAfterClose", func(t *testing.T) {
		err := driver.WriteFrame(ctx, domain.TextFrame(0, "late"))
		if err == nil {
			t.Error("expected error writing to a closed driver")
		}
	})
}
