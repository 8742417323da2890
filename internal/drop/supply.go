package drop

import "mintdrop/internal/ledger"

// SupplyState is the last known good view of the drop's on-chain counters. Pieces are
// filled independently and are never reverted to unknown by a failed fetch.
type SupplyState struct {
	Claimed      uint64 `json:"claimed"`
	ClaimedKnown bool   `json:"claimedKnown"`
	Total        uint64 `json:"total"`
	TotalKnown   bool   `json:"totalKnown"`
	UnitPrice    string `json:"unitPrice,omitempty"`
	Currency     string `json:"currency,omitempty"`
	PriceKnown   bool   `json:"priceKnown"`
}

func (s SupplyState) CountsResolved() bool {
	return s.ClaimedKnown && s.TotalKnown
}

// Counts is the result of one RefreshSupply. A nil pointer means that piece did not resolve.
type Counts struct {
	Claimed *uint64
	Total   *uint64
}

func (s *SupplyState) applyCounts(c Counts, floor uint64) {
	if c.Claimed != nil {
		s.Claimed = max(*c.Claimed, floor)
		s.ClaimedKnown = true
	}
	if c.Total != nil {
		s.Total = *c.Total
		s.TotalKnown = true
	}
	if s.CountsResolved() && s.Claimed > s.Total {
		s.Claimed = s.Total
	}
}

func (s *SupplyState) applyPrice(p ledger.Price) {
	s.UnitPrice = p.Decimal()
	s.Currency = p.Symbol
	s.PriceKnown = true
}
