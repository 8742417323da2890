package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"mintdrop/internal/contracts"

	"github.com/ethereum/go-ethereum/common"
)

var fakeChainID = big.NewInt(1337)

// FakeDropSeed is the initial state of a drop opened through FakeClient.
type FakeDropSeed struct {
	Claimed uint64
	Total   uint64
	Price   Price
}

// DefaultFakeSeed matches the demo drop: 13 of 21 claimed at 0.01 ETH.
func DefaultFakeSeed() FakeDropSeed {
	return FakeDropSeed{
		Claimed: 13,
		Total:   21,
		Price: Price{
			Amount:   big.NewInt(10_000_000_000_000_000),
			Decimals: nativeDecimals,
			Symbol:   "ETH",
			Currency: contracts.NativeTokenAddress,
		},
	}
}

// FakeClient keeps drops in memory so the claim flow can run without a node.
type FakeClient struct {
	mu     sync.Mutex
	seed   FakeDropSeed
	signer Signer
	drops  map[string]*FakeDrop
}

func NewFakeClient(seed FakeDropSeed, signer Signer) *FakeClient {
	return &FakeClient{
		seed:   seed,
		signer: signer,
		drops:  make(map[string]*FakeDrop),
	}
}

func (f *FakeClient) Contract(_ context.Context, address string) (Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid drop address %q", address)
	}
	key := strings.ToLower(address)

	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.drops[key]; ok {
		return d, nil
	}
	d := &FakeDrop{
		address: common.HexToAddress(address).Hex(),
		claimed: f.seed.Claimed,
		total:   f.seed.Total,
		price:   f.seed.Price,
		signer:  f.signer,
	}
	f.drops[key] = d
	return d, nil
}

func (f *FakeClient) Ping(context.Context) error {
	return nil
}

// FakeDrop is an in-memory drop. Claims are mined instantly.
type FakeDrop struct {
	mu      sync.Mutex
	address string
	claimed uint64
	total   uint64
	price   Price
	signer  Signer
}

func (d *FakeDrop) Address() string {
	return d.address
}

func (d *FakeDrop) ClaimedCount(context.Context) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claimed, nil
}

func (d *FakeDrop) TotalSupply(context.Context) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total, nil
}

func (d *FakeDrop) ActiveUnitPrice(context.Context) (Price, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.price, nil
}

func (d *FakeDrop) Claim(ctx context.Context, req ClaimRequest) (ClaimReceipt, error) {
	if err := validateClaimRequest(req); err != nil {
		return ClaimReceipt{}, err
	}

	if d.signer != nil {
		d.mu.Lock()
		price := d.price
		d.mu.Unlock()
		prompt := ClaimPrompt{Contract: d.address, Quantity: req.Quantity, Price: price}
		if _, err := d.signer.TransactOpts(ctx, common.HexToAddress(req.Receiver), fakeChainID, prompt); err != nil {
			return ClaimReceipt{}, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed+req.Quantity > d.total {
		return ClaimReceipt{}, &RevertError{Reason: "!MaxSupply"}
	}
	tokenID := d.claimed
	d.claimed += req.Quantity

	id := strconv.FormatUint(tokenID, 10)
	return ClaimReceipt{
		TokenID: id,
		TxHash:  fakeHash(d.address + req.Receiver + id),
	}, nil
}

func fakeHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return "0x" + hex.EncodeToString(sum[:])
}
