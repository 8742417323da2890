package wallet

import (
	"bytes"
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mintdrop/internal/ledger"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityShort(t *testing.T) {
	id := Identity("0x1234567890abcdef1234567890abcdef12345678")
	assert.Equal(t, "0x123...45678", id.Short())
	assert.Equal(t, "0xabc", Identity("0xabc").Short())
	assert.False(t, None.Present())
}

func TestKeySessionConnectDisconnect(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	session := NewKeySession(key, nil)
	ctx := context.Background()

	assert.Equal(t, None, session.CurrentIdentity())

	id, err := session.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, Identity(crypto.PubkeyToAddress(key.PublicKey).Hex()), id)
	assert.Equal(t, id, session.CurrentIdentity())

	require.NoError(t, session.Disconnect(ctx))
	assert.Equal(t, None, session.CurrentIdentity())
}

func TestKeySessionConnectDeclined(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	var out bytes.Buffer
	session := NewKeySession(key, NewPromptApprover(strings.NewReader("n\n"), &out))

	_, err = session.Connect(context.Background())
	require.ErrorIs(t, err, ledger.ErrUserRejected)
	assert.Equal(t, None, session.CurrentIdentity())
	assert.Contains(t, out.String(), "Connect wallet")
}

func TestKeySessionTransactOpts(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	var out bytes.Buffer
	session := NewKeySession(key, NewPromptApprover(strings.NewReader("y\nyes\nno\n"), &out))
	ctx := context.Background()
	prompt := ledger.ClaimPrompt{
		Contract: "0x00000000000000000000000000000000000000d1",
		Quantity: 1,
		Price:    ledger.DefaultFakeSeed().Price,
	}

	_, err = session.TransactOpts(ctx, session.Address(), big.NewInt(5), prompt)
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = session.Connect(ctx)
	require.NoError(t, err)

	opts, err := session.TransactOpts(ctx, session.Address(), big.NewInt(5), prompt)
	require.NoError(t, err)
	assert.Equal(t, session.Address(), opts.From)
	assert.Contains(t, out.String(), "0.01 ETH")

	_, err = session.TransactOpts(ctx, session.Address(), big.NewInt(5), prompt)
	require.ErrorIs(t, err, ledger.ErrUserRejected)
}

func TestLoadKeystoreKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	blob, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	loaded, err := LoadKeystoreKey(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(loaded.PublicKey))

	_, err = LoadKeystoreKey(path, "wrong")
	require.Error(t, err)
}
