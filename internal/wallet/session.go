// Package wallet holds the visitor's signing identity: who is connected and whether they
// approve a given claim.
package wallet

import (
	"context"
	"errors"
)

// Identity is a connected wallet address; None means nobody is signed in.
type Identity string

const None Identity = ""

var ErrNotConnected = errors.New("wallet not connected")

func (id Identity) Present() bool {
	return id != None
}

// Short renders the address as "0xabc...12345" for display.
func (id Identity) Short() string {
	s := string(id)
	if len(s) <= 10 {
		return s
	}
	return s[:5] + "..." + s[len(s)-5:]
}

// Session is the connect/disconnect surface a presenter drives.
type Session interface {
	CurrentIdentity() Identity
	Connect(ctx context.Context) (Identity, error)
	Disconnect(ctx context.Context) error
}
