package drop

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"mintdrop/internal/ledger"
)

const (
	dropA = "0x00000000000000000000000000000000000000a1"
	dropB = "0x00000000000000000000000000000000000000b2"
	alice = "0x1111111111111111111111111111111111111111"
)

var weiPrice = ledger.Price{Amount: big.NewInt(10_000_000_000_000_000), Decimals: 18, Symbol: "ETH"}

type stubContract struct {
	address string

	mu         sync.Mutex
	claimed    uint64
	total      uint64
	price      ledger.Price
	claimedErr error
	totalErr   error
	priceErr   error
	claimErr   error
	claimPanic bool

	// readGate blocks every read, ignoring the context, until closed.
	readGate chan struct{}
	// claimGate blocks Claim until closed or the context ends.
	claimGate chan struct{}

	reads      atomic.Int32
	claimCalls atomic.Int32
}

func newStub(address string, claimed, total uint64) *stubContract {
	return &stubContract{address: address, claimed: claimed, total: total, price: weiPrice}
}

func (s *stubContract) Address() string { return s.address }

func (s *stubContract) waitRead() {
	s.reads.Add(1)
	s.mu.Lock()
	gate := s.readGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (s *stubContract) ClaimedCount(context.Context) (uint64, error) {
	s.waitRead()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimed, s.claimedErr
}

func (s *stubContract) TotalSupply(context.Context) (uint64, error) {
	s.waitRead()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, s.totalErr
}

func (s *stubContract) ActiveUnitPrice(context.Context) (ledger.Price, error) {
	s.waitRead()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price, s.priceErr
}

func (s *stubContract) Claim(ctx context.Context, _ ledger.ClaimRequest) (ledger.ClaimReceipt, error) {
	s.claimCalls.Add(1)
	s.mu.Lock()
	gate, err, panics := s.claimGate, s.claimErr, s.claimPanic
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ledger.ClaimReceipt{TxHash: "0xpending"}, ctx.Err()
		}
	}
	if panics {
		panic("rpc client exploded")
	}
	if err != nil {
		return ledger.ClaimReceipt{}, err
	}
	return ledger.ClaimReceipt{TokenID: "13", TxHash: "0xfeed"}, nil
}

func (s *stubContract) set(fn func(s *stubContract)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}
