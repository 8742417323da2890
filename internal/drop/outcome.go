package drop

import (
	"context"
	"errors"

	"mintdrop/internal/ledger"
)

type OutcomeKind int

const (
	Success OutcomeKind = iota
	UserRejected
	ContractReverted
	NetworkError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case UserRejected:
		return "user_rejected"
	case ContractReverted:
		return "contract_reverted"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the classified result of one claim. It exists to drive a notification.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	TokenID string      `json:"tokenId,omitempty"`
	TxHash  string      `json:"txHash,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Err     error       `json:"-"`
}

func (o Outcome) Failed() bool {
	return o.Kind != Success
}

// Classify maps a ledger result onto an Outcome. Precedence: user cancellation, on-chain
// failure, transport failure. Any other error is treated as a transport failure because
// the claim may or may not have landed.
func Classify(receipt ledger.ClaimReceipt, err error) Outcome {
	if err == nil {
		return Outcome{Kind: Success, TokenID: receipt.TokenID, TxHash: receipt.TxHash}
	}

	if errors.Is(err, ledger.ErrUserRejected) {
		return Outcome{Kind: UserRejected, Reason: "request rejected in wallet", Err: err}
	}

	var revert *ledger.RevertError
	if errors.As(err, &revert) {
		txHash := revert.TxHash
		if txHash == "" {
			txHash = receipt.TxHash
		}
		return Outcome{Kind: ContractReverted, Reason: revert.Reason, TxHash: txHash, Err: err}
	}

	reason := err.Error()
	var netErr *ledger.NetworkError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timed out waiting for the claim; it may still be mined"
	case errors.As(err, &netErr):
		reason = netErr.Error()
	}
	return Outcome{Kind: NetworkError, Reason: reason, TxHash: receipt.TxHash, Err: err}
}
