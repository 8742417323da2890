package drop

import (
	"time"

	"mintdrop/internal/wallet"
)

type EventKind int

const (
	// EventStateChanged follows any change of identity, contract or supply.
	EventStateChanged EventKind = iota
	// EventPending is published once a claim has been accepted and before it reaches the ledger.
	EventPending
	// EventOutcome carries the classified result of a claim.
	EventOutcome
	// EventReadFailed reports a failed supply or price fetch. Prior values are kept.
	EventReadFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state"
	case EventPending:
		return "pending"
	case EventOutcome:
		return "outcome"
	case EventReadFailed:
		return "read_failed"
	default:
		return "unknown"
	}
}

// ClaimRequest is the single in-flight claim.
type ClaimRequest struct {
	ID          string          `json:"id"`
	Identity    wallet.Identity `json:"identity"`
	SubmittedAt time.Time       `json:"submittedAt"`
	Quantity    uint64          `json:"quantity"`
}

// Snapshot is a consistent read of the coordinator state.
type Snapshot struct {
	Affordance Affordance      `json:"affordance"`
	Identity   wallet.Identity `json:"identity,omitempty"`
	Contract   string          `json:"contract,omitempty"`
	Supply     SupplyState     `json:"supply"`
	Pending    *ClaimRequest   `json:"pending,omitempty"`
}

type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Request  *ClaimRequest
	Outcome  *Outcome
	Fetch    string // "counts" or "price" for EventReadFailed
	Err      error
}

// bus fans events out to subscribers. Sends never block: a subscriber whose buffer is full
// misses the event. Callers hold the coordinator mutex.
type bus struct {
	next int
	subs map[int]chan Event
}

func (b *bus) subscribe(buffer int) (int, chan Event) {
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	b.next++
	ch := make(chan Event, buffer)
	b.subs[b.next] = ch
	return b.next, ch
}

func (b *bus) unsubscribe(id int) {
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *bus) publish(ev Event) {
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
