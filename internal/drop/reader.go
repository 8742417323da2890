package drop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mintdrop/internal/ledger"
)

const defaultReadTimeout = 10 * time.Second

// Reader fetches the drop's read-only facts. Every call is bounded by its timeout; a piece
// that has not resolved by then is reported as a ledger.NetworkError.
type Reader struct {
	timeout time.Duration
}

func NewReader(timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	return &Reader{timeout: timeout}
}

type fetchResult[T any] struct {
	value T
	err   error
}

// RefreshSupply fetches claimed count and total supply concurrently. Each piece resolves
// or fails on its own; the returned error joins the failures.
func (r *Reader) RefreshSupply(ctx context.Context, contract ledger.Contract) (Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	claimedCh := startFetch(ctx, contract.ClaimedCount)
	totalCh := startFetch(ctx, contract.TotalSupply)

	var counts Counts
	claimed, claimedErr := await(ctx, "read claimed count", claimedCh)
	if claimedErr == nil {
		counts.Claimed = &claimed
	}
	total, totalErr := await(ctx, "read total supply", totalCh)
	if totalErr == nil {
		counts.Total = &total
	}
	return counts, errors.Join(claimedErr, totalErr)
}

// RefreshPrice fetches the active claim condition's unit price.
func (r *Reader) RefreshPrice(ctx context.Context, contract ledger.Contract) (ledger.Price, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return await(ctx, "read unit price", startFetch(ctx, contract.ActiveUnitPrice))
}

func startFetch[T any](ctx context.Context, fetch func(context.Context) (T, error)) <-chan fetchResult[T] {
	ch := make(chan fetchResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fetchResult[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fetch(ctx)
		ch <- fetchResult[T]{value: v, err: err}
	}()
	return ch
}

func await[T any](ctx context.Context, op string, ch <-chan fetchResult[T]) (T, error) {
	var zero T
	select {
	case res := <-ch:
		if res.err != nil {
			var netErr *ledger.NetworkError
			if errors.As(res.err, &netErr) {
				return zero, res.err
			}
			return zero, &ledger.NetworkError{Op: op, Err: res.err}
		}
		return res.value, nil
	case <-ctx.Done():
		return zero, &ledger.NetworkError{Op: op, Err: ctx.Err()}
	}
}
