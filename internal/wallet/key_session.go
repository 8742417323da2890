package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"mintdrop/internal/ledger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySession is a Session backed by a local secp256k1 key. It doubles as the ledger.Signer
// for claims made by the connected identity.
type KeySession struct {
	mu        sync.RWMutex
	key       *ecdsa.PrivateKey
	address   common.Address
	approver  Approver
	connected bool
}

var (
	_ Session       = (*KeySession)(nil)
	_ ledger.Signer = (*KeySession)(nil)
)

func NewKeySession(key *ecdsa.PrivateKey, approver Approver) *KeySession {
	if approver == nil {
		approver = AutoApprove{}
	}
	return &KeySession{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		approver: approver,
	}
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// LoadKeystoreKey decrypts a Web3 Secret Storage key file.
func LoadKeystoreKey(path, passphrase string) (*ecdsa.PrivateKey, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return key.PrivateKey, nil
}

func (s *KeySession) Address() common.Address {
	return s.address
}

func (s *KeySession) CurrentIdentity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return None
	}
	return Identity(s.address.Hex())
}

func (s *KeySession) Connect(ctx context.Context) (Identity, error) {
	id := Identity(s.address.Hex())
	if err := s.approver.ApproveConnect(ctx, id); err != nil {
		return None, err
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return id, nil
}

func (s *KeySession) Disconnect(context.Context) error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *KeySession) TransactOpts(ctx context.Context, from common.Address, chainID *big.Int, prompt ledger.ClaimPrompt) (*bind.TransactOpts, error) {
	id := s.CurrentIdentity()
	if !id.Present() {
		return nil, ErrNotConnected
	}
	if from != s.address {
		return nil, fmt.Errorf("session holds %s, cannot sign for %s", s.address.Hex(), from.Hex())
	}
	if err := s.approver.ApproveClaim(ctx, id, prompt); err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = 0 // let node estimate
	return opts, nil
}
