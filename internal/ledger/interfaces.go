package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Client opens handles on deployed drop contracts.
type Client interface {
	Contract(ctx context.Context, address string) (Contract, error)
}

// Contract is a handle on one drop. Reads are independent remote calls; Claim broadcasts a
// transaction and waits for it to be mined.
type Contract interface {
	Address() string
	ClaimedCount(ctx context.Context) (uint64, error)
	TotalSupply(ctx context.Context) (uint64, error)
	ActiveUnitPrice(ctx context.Context) (Price, error)
	Claim(ctx context.Context, req ClaimRequest) (ClaimReceipt, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Signer authorizes a claim on behalf of from. Implementations return ErrUserRejected when
// the identity holder declines.
type Signer interface {
	TransactOpts(ctx context.Context, from common.Address, chainID *big.Int, prompt ClaimPrompt) (*bind.TransactOpts, error)
}

// ClaimPrompt is what the identity holder is asked to approve.
type ClaimPrompt struct {
	Contract string
	Quantity uint64
	Price    Price
}

// Price is the active claim condition's per-token price.
type Price struct {
	Amount   *big.Int // smallest unit (wei for the native coin)
	Decimals uint8
	Symbol   string
	Currency string
}

// Decimal renders the amount in whole units, e.g. "0.01".
func (p Price) Decimal() string {
	return FormatUnits(p.Amount, p.Decimals)
}

type ClaimRequest struct {
	Receiver string
	Quantity uint64
}

type ClaimReceipt struct {
	TokenID     string
	TxHash      string
	BlockNumber uint64
}
