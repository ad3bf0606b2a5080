package retry

import (
	"context"
)

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retrier retries the provided action.
type Retrier interface {
	Retry(ctx context.Context, action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier that will retry actions based off of the
// provided strategies. If no strategies are provided, the retrier retries
// until the action succeeds or the context is done.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{
		strategies: strategies,
	}
}

func (r *retrier) Retry(ctx context.Context, action Action) (uint, error) {
	return Retry(ctx, action, r.strategies...)
}

// Retry executes the action until it succeeds, one of the strategies rejects
// another attempt, or ctx is done. The number of attempts made is returned
// along with the final error.
//
// Strategies are evaluated in order, so any that sleep should be last.
//
// Once ctx is done no further attempt is made and ctx.Err() is returned.
func Retry(ctx context.Context, action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err := action()
		if err == nil {
			return attempts, nil
		}

		for _, s := range strategies {
			if !s(ctx, attempts, err) {
				return attempts, err
			}
		}
	}
}
