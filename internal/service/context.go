package service

import "context"

// detach keeps ctx's values, including its logger, and drops its cancellation.
// A write that has started completes and publishes even if the caller goes
// away.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
