package ledger

import (
	"errors"
	"fmt"
)

// ErrUserRejected reports that the identity holder declined to sign or connect.
var ErrUserRejected = errors.New("user rejected the request")

// RevertError reports that the contract refused to execute the claim.
type RevertError struct {
	Reason string
	TxHash string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// NetworkError wraps transport and timeout failures. For a claim it means the outcome is
// unknown: the transaction may or may not have been mined.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
