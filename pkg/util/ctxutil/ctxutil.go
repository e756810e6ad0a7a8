package ctxutil

import (
	"context"
	"time"
)

// Budget returns the time left for a downstream call: the smaller of max and the
// context deadline. It fails if ctx is already done.
func Budget(ctx context.Context, max time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < max {
			if left <= 0 {
				return 0, context.DeadlineExceeded
			}
			return left, nil
		}
	}
	return max, nil
}
