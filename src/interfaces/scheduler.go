package interfaces

import "context"

// -----------------------------------------------------------------------------
// IScheduler drives the periodic refresh loop.
// -----------------------------------------------------------------------------

type IScheduler interface {

	// Restart cancels the pending cycle and reschedules from now.
	Restart(ctx context.Context)
}
