package drop

import (
	"context"
	"errors"
	"testing"
	"time"

	"mintdrop/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshSupplyKeepsResolvedPiece(t *testing.T) {
	contract := newStub(dropA, 13, 21)
	contract.totalErr = errors.New("upstream 502")

	counts, err := NewReader(time.Second).RefreshSupply(context.Background(), contract)
	require.Error(t, err)
	var netErr *ledger.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "read total supply", netErr.Op)

	require.NotNil(t, counts.Claimed)
	assert.Equal(t, uint64(13), *counts.Claimed)
	assert.Nil(t, counts.Total)
}

func TestRefreshSupplyBoundedWait(t *testing.T) {
	contract := newStub(dropA, 13, 21)
	gate := make(chan struct{})
	contract.readGate = gate
	t.Cleanup(func() { close(gate) })

	start := time.Now()
	counts, err := NewReader(20 * time.Millisecond).RefreshSupply(context.Background(), contract)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, counts.Claimed)
	assert.Nil(t, counts.Total)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRefreshPrice(t *testing.T) {
	price, err := NewReader(0).RefreshPrice(context.Background(), newStub(dropA, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "0.01", price.Decimal())
	assert.Equal(t, "ETH", price.Symbol)
}

func TestFetchPanicBecomesNetworkError(t *testing.T) {
	ctx := context.Background()
	ch := startFetch(ctx, func(context.Context) (uint64, error) {
		panic("decoder exploded")
	})

	_, err := await(ctx, "read claimed count", ch)
	var netErr *ledger.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "read claimed count", netErr.Op)
	assert.Contains(t, err.Error(), "decoder exploded")
}
