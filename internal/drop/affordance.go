package drop

// Affordance summarizes whether, and why not, a claim can start right now.
type Affordance int

const (
	NotConnected Affordance = iota
	Loading
	SoldOut
	Ready
	Pending
)

func (a Affordance) String() string {
	switch a {
	case NotConnected:
		return "not_connected"
	case Loading:
		return "loading"
	case SoldOut:
		return "sold_out"
	case Ready:
		return "ready"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

func (a Affordance) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Inputs are the signals the affordance is derived from.
type Inputs struct {
	Identity       bool
	CountsResolved bool
	Claimed        uint64
	Total          uint64
	ClaimPending   bool
}

// Derive is the single mapping from inputs to affordance. Precedence: an in-flight claim,
// then sold out (independent of identity), then sign-in, then loading.
func Derive(in Inputs) Affordance {
	switch {
	case in.ClaimPending:
		return Pending
	case in.CountsResolved && in.Claimed >= in.Total:
		return SoldOut
	case !in.Identity:
		return NotConnected
	case !in.CountsResolved:
		return Loading
	default:
		return Ready
	}
}
