// Package drop coordinates one token drop: it keeps the on-chain supply view current, derives
// the claim affordance and lets at most one claim transaction be in flight at a time.
package drop

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mintdrop/internal/ledger"
	"mintdrop/internal/wallet"

	"github.com/google/uuid"
)

// claimQuantity is fixed; batch claiming is not supported.
const claimQuantity = 1

const defaultClaimTimeout = 2 * time.Minute

type Options struct {
	ReadTimeout  time.Duration
	ClaimTimeout time.Duration
	Now          func() time.Time
}

// Coordinator owns the state of one drop page. All transitions happen under mu; the pending
// slot is the only guard against a second claim.
type Coordinator struct {
	reader       *Reader
	claimTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	identity wallet.Identity
	contract ledger.Contract
	gen      uint64
	supply   SupplyState
	pending  *ClaimRequest
	bus      bus

	// claimFloor is the claimed count after our last successful claim on this contract.
	// Reads that started before the claim landed cannot pull the count below it.
	claimFloor    uint64
	countsSeq     uint64
	countsApplied uint64
	priceSeq      uint64
	priceApplied  uint64
}

func NewCoordinator(opts Options) *Coordinator {
	claimTimeout := opts.ClaimTimeout
	if claimTimeout <= 0 {
		claimTimeout = defaultClaimTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		reader:       NewReader(opts.ReadTimeout),
		claimTimeout: claimTimeout,
		now:          now,
	}
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) Affordance() Affordance {
	return c.Snapshot().Affordance
}

// Subscribe returns a channel of events and a function that closes it. Events are dropped
// for a subscriber whose buffer is full.
func (c *Coordinator) Subscribe(buffer int) (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ch := c.bus.subscribe(buffer)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			c.bus.unsubscribe(id)
			c.mu.Unlock()
		})
	}
}

// SetIdentity records the connected wallet. A newly connected identity triggers a refresh of
// the current contract. Blocks until that refresh settles.
func (c *Coordinator) SetIdentity(ctx context.Context, id wallet.Identity) {
	if c.ApplyIdentity(id) {
		c.Refresh(ctx)
	}
}

// ApplyIdentity records the connected wallet without fetching. It reports whether the
// caller should Refresh: a contract is attached and id is a newly present identity.
func (c *Coordinator) ApplyIdentity(id wallet.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == id {
		return false
	}
	c.identity = id
	c.publishLocked(Event{Kind: EventStateChanged})
	return c.contract != nil && id.Present()
}

// Attach installs a contract handle and loads its supply and price. Attaching the address
// already in place is a no-op. Blocks until both fetches settle.
func (c *Coordinator) Attach(ctx context.Context, contract ledger.Contract) {
	if contract == nil {
		return
	}
	c.mu.Lock()
	if c.contract != nil && strings.EqualFold(c.contract.Address(), contract.Address()) {
		c.mu.Unlock()
		return
	}
	c.contract = contract
	c.gen++
	gen := c.gen
	c.supply = SupplyState{}
	c.claimFloor = 0
	c.countsApplied = 0
	c.priceApplied = 0
	c.publishLocked(Event{Kind: EventStateChanged})
	c.mu.Unlock()

	c.refresh(ctx, contract, gen)
}

// Refresh refetches supply and price for the current contract, keeping known values on
// failure.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.mu.Lock()
	contract, gen := c.contract, c.gen
	c.mu.Unlock()
	if contract == nil {
		return
	}
	c.refresh(ctx, contract, gen)
}

func (c *Coordinator) refresh(ctx context.Context, contract ledger.Contract, gen uint64) {
	c.mu.Lock()
	c.countsSeq++
	countsSeq := c.countsSeq
	c.priceSeq++
	priceSeq := c.priceSeq
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		counts, err := c.reader.RefreshSupply(ctx, contract)
		c.applyCounts(gen, countsSeq, counts, err)
	}()
	go func() {
		defer wg.Done()
		price, err := c.reader.RefreshPrice(ctx, contract)
		c.applyPrice(gen, priceSeq, price, err)
	}()
	wg.Wait()
}

func (c *Coordinator) applyCounts(gen, seq uint64, counts Counts, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || seq <= c.countsApplied {
		return
	}
	c.countsApplied = seq
	if counts.Claimed != nil || counts.Total != nil {
		c.supply.applyCounts(counts, c.claimFloor)
		c.publishLocked(Event{Kind: EventStateChanged})
	}
	if err != nil {
		c.publishLocked(Event{Kind: EventReadFailed, Fetch: "counts", Err: err})
	}
}

func (c *Coordinator) applyPrice(gen, seq uint64, price ledger.Price, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || seq <= c.priceApplied {
		return
	}
	c.priceApplied = seq
	if err != nil {
		c.publishLocked(Event{Kind: EventReadFailed, Fetch: "price", Err: err})
		return
	}
	c.supply.applyPrice(price)
	c.publishLocked(Event{Kind: EventStateChanged})
}

// Submit claims one token for id. It returns a *NotReadyError, without touching the network,
// unless the affordance is Ready and id is the connected identity. Otherwise it blocks until
// the claim resolves and reports the classified Outcome; a failed claim is an Outcome, not an
// error.
func (c *Coordinator) Submit(ctx context.Context, id wallet.Identity) (Outcome, error) {
	c.mu.Lock()
	affordance := c.affordanceLocked()
	if affordance == Ready && id != c.identity {
		affordance = NotConnected
	}
	if affordance != Ready {
		c.mu.Unlock()
		return Outcome{}, &NotReadyError{Reason: affordance}
	}
	req := &ClaimRequest{
		ID:          uuid.NewString(),
		Identity:    id,
		SubmittedAt: c.now(),
		Quantity:    claimQuantity,
	}
	c.pending = req
	contract, gen := c.contract, c.gen
	c.publishLocked(Event{Kind: EventPending, Request: req})
	c.mu.Unlock()

	outcome := c.execute(ctx, contract, req)
	c.finish(req, gen, outcome)
	return outcome, nil
}

// execute never retries: once broadcast, a claim cannot be recalled, so a timeout surfaces as
// an ambiguous NetworkError.
func (c *Coordinator) execute(ctx context.Context, contract ledger.Contract, req *ClaimRequest) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := &ledger.NetworkError{Op: "claim", Err: fmt.Errorf("panic: %v", r)}
			outcome = Outcome{Kind: NetworkError, Reason: err.Error(), Err: err}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.claimTimeout)
	defer cancel()

	receipt, err := contract.Claim(ctx, ledger.ClaimRequest{
		Receiver: string(req.Identity),
		Quantity: req.Quantity,
	})
	return Classify(receipt, err)
}

func (c *Coordinator) finish(req *ClaimRequest, gen uint64, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == req {
		c.pending = nil
	}
	if outcome.Kind == Success && gen == c.gen && c.supply.ClaimedKnown {
		next := c.supply.Claimed + req.Quantity
		if c.supply.TotalKnown && next > c.supply.Total {
			next = c.supply.Total
		}
		c.supply.Claimed = next
		c.claimFloor = next
	}
	c.publishLocked(Event{Kind: EventOutcome, Request: req, Outcome: &outcome})
}

func (c *Coordinator) affordanceLocked() Affordance {
	return Derive(Inputs{
		Identity:       c.identity.Present(),
		CountsResolved: c.supply.CountsResolved(),
		Claimed:        c.supply.Claimed,
		Total:          c.supply.Total,
		ClaimPending:   c.pending != nil,
	})
}

func (c *Coordinator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Affordance: c.affordanceLocked(),
		Identity:   c.identity,
		Supply:     c.supply,
	}
	if c.contract != nil {
		snap.Contract = c.contract.Address()
	}
	if c.pending != nil {
		req := *c.pending
		snap.Pending = &req
	}
	return snap
}

func (c *Coordinator) publishLocked(ev Event) {
	ev.Snapshot = c.snapshotLocked()
	c.bus.publish(ev)
}
