package visit

import (
	"context"
	"time"
)

// RunWithDeadline runs primary and waits for it. If primary is still
// running after d, fallback is called once; primary is not interrupted.
func RunWithDeadline(ctx context.Context, d time.Duration, primary func(context.Context) error, fallback func()) error {
	done := make(chan error, 1)
	go func() {
		done <- primary(ctx)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		fallback()
	}
	return <-done
}
