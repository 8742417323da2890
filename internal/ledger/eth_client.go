package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"mintdrop/internal/contracts"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const nativeDecimals = 18

// EthClient opens DropERC721 handles over a JSON-RPC endpoint.
type EthClient struct {
	client       *ethclient.Client
	dropABI      abi.ABI
	erc20ABI     abi.ABI
	chainID      *big.Int
	signer       Signer
	nativeSymbol string
	pollInterval time.Duration
}

type EthClientConfig struct {
	RPCURL              string
	NativeSymbol        string
	ReceiptPollInterval time.Duration
	// ChainID is the network the drop lives on. Zero accepts whatever the node reports.
	ChainID int64
	// Signer may be nil for a read-only client.
	Signer Signer
}

// ErrWrongChain is returned when the node serves a different network than configured.
var ErrWrongChain = errors.New("rpc endpoint is on a different chain")

func checkChainID(expected int64, actual *big.Int) error {
	if expected == 0 || actual.Cmp(big.NewInt(expected)) == 0 {
		return nil
	}
	return fmt.Errorf("%w: configured %d, node reports %s", ErrWrongChain, expected, actual)
}

func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	dropABI, err := abi.JSON(strings.NewReader(contracts.DropERC721ABI))
	if err != nil {
		return nil, fmt.Errorf("parse drop abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(contracts.ERC20MetadataABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	if err := checkChainID(cfg.ChainID, chainID); err != nil {
		cli.Close()
		return nil, err
	}

	symbol := cfg.NativeSymbol
	if symbol == "" {
		symbol = "ETH"
	}
	poll := cfg.ReceiptPollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}

	return &EthClient{
		client:       cli,
		dropABI:      dropABI,
		erc20ABI:     erc20ABI,
		chainID:      chainID,
		signer:       cfg.Signer,
		nativeSymbol: symbol,
		pollInterval: poll,
	}, nil
}

func (c *EthClient) Contract(_ context.Context, address string) (Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid drop address %q", address)
	}
	addr := common.HexToAddress(address)
	return &EthDrop{
		client:  c,
		address: addr,
		bound:   bind.NewBoundContract(addr, c.dropABI, c.client, c.client, c.client),
	}, nil
}

func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *EthClient) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := c.client.BlockNumber(ctx)
	return err
}

func (c *EthClient) Close() {
	c.client.Close()
}

// EthDrop is a bound DropERC721 contract.
type EthDrop struct {
	client  *EthClient
	address common.Address
	bound   *bind.BoundContract
}

// claimCondition mirrors IClaimCondition.ClaimCondition.
type claimCondition struct {
	StartTimestamp         *big.Int
	MaxClaimableSupply     *big.Int
	SupplyClaimed          *big.Int
	QuantityLimitPerWallet *big.Int
	MerkleRoot             [32]byte
	PricePerToken          *big.Int
	Currency               common.Address
	Metadata               string
}

// allowlistProof mirrors IDrop.AllowlistProof.
type allowlistProof struct {
	Proof                  [][32]byte
	QuantityLimitPerWallet *big.Int
	PricePerToken          *big.Int
	Currency               common.Address
}

func (d *EthDrop) Address() string {
	return d.address.Hex()
}

func (d *EthDrop) ClaimedCount(ctx context.Context) (uint64, error) {
	return d.callUint64(ctx, "totalMinted")
}

func (d *EthDrop) TotalSupply(ctx context.Context) (uint64, error) {
	return d.callUint64(ctx, "nextTokenIdToMint")
}

func (d *EthDrop) ActiveUnitPrice(ctx context.Context) (Price, error) {
	cond, err := d.activeCondition(ctx)
	if err != nil {
		return Price{}, err
	}
	return d.priceOf(ctx, cond)
}

func (d *EthDrop) Claim(ctx context.Context, req ClaimRequest) (ClaimReceipt, error) {
	if d.client.signer == nil {
		return ClaimReceipt{}, fmt.Errorf("client is read-only")
	}
	if err := validateClaimRequest(req); err != nil {
		return ClaimReceipt{}, err
	}

	cond, err := d.activeCondition(ctx)
	if err != nil {
		return ClaimReceipt{}, err
	}
	price, err := d.priceOf(ctx, cond)
	if err != nil {
		return ClaimReceipt{}, err
	}

	receiver := common.HexToAddress(req.Receiver)
	opts, err := d.client.signer.TransactOpts(ctx, receiver, d.client.chainID, ClaimPrompt{
		Contract: d.Address(),
		Quantity: req.Quantity,
		Price:    price,
	})
	if err != nil {
		return ClaimReceipt{}, err
	}
	txOpts := *opts
	txOpts.Context = ctx

	quantity := new(big.Int).SetUint64(req.Quantity)
	if cond.Currency == common.HexToAddress(contracts.NativeTokenAddress) {
		txOpts.Value = new(big.Int).Mul(cond.PricePerToken, quantity)
	}

	// Public phase: empty proof with the sentinel values the drop expects.
	proof := allowlistProof{
		Proof:                  [][32]byte{},
		QuantityLimitPerWallet: big.NewInt(0),
		PricePerToken:          math.MaxBig256,
		Currency:               common.Address{},
	}

	tx, err := d.bound.Transact(&txOpts, "claim", receiver, quantity, cond.Currency, cond.PricePerToken, proof, []byte{})
	if err != nil {
		return ClaimReceipt{}, classifyTxError("claim tx", err)
	}

	txHash := tx.Hash().Hex()
	receipt, err := WaitForReceipt(ctx, d.client.client, tx, d.client.pollInterval)
	if err != nil {
		return ClaimReceipt{TxHash: txHash}, &NetworkError{Op: "wait receipt " + txHash, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ClaimReceipt{TxHash: txHash}, &RevertError{Reason: "transaction failed on-chain", TxHash: txHash}
	}

	return ClaimReceipt{
		TokenID:     d.claimedTokenID(receipt),
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func (d *EthDrop) callBig(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := d.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, &NetworkError{Op: "call " + method, Err: err}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("call %s: unexpected result type %T", method, out[0])
	}
	return v, nil
}

func (d *EthDrop) callUint64(ctx context.Context, method string) (uint64, error) {
	v, err := d.callBig(ctx, method)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("call %s: value %s overflows uint64", method, v)
	}
	return v.Uint64(), nil
}

func (d *EthDrop) activeCondition(ctx context.Context) (claimCondition, error) {
	id, err := d.callBig(ctx, "getActiveClaimConditionId")
	if err != nil {
		return claimCondition{}, err
	}

	var out []interface{}
	if err := d.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getClaimConditionById", id); err != nil {
		return claimCondition{}, &NetworkError{Op: "call getClaimConditionById", Err: err}
	}
	if len(out) == 0 {
		return claimCondition{}, fmt.Errorf("call getClaimConditionById: empty result")
	}
	cond := *abi.ConvertType(out[0], new(claimCondition)).(*claimCondition)
	return cond, nil
}

func (d *EthDrop) priceOf(ctx context.Context, cond claimCondition) (Price, error) {
	if cond.Currency == common.HexToAddress(contracts.NativeTokenAddress) {
		return Price{
			Amount:   cond.PricePerToken,
			Decimals: nativeDecimals,
			Symbol:   d.client.nativeSymbol,
			Currency: contracts.NativeTokenAddress,
		}, nil
	}

	token := bind.NewBoundContract(cond.Currency, d.client.erc20ABI, d.client.client, d.client.client, d.client.client)
	opts := &bind.CallOpts{Context: ctx}

	var symbolOut []interface{}
	if err := token.Call(opts, &symbolOut, "symbol"); err != nil {
		return Price{}, &NetworkError{Op: "call symbol", Err: err}
	}
	var decimalsOut []interface{}
	if err := token.Call(opts, &decimalsOut, "decimals"); err != nil {
		return Price{}, &NetworkError{Op: "call decimals", Err: err}
	}

	symbol, _ := symbolOut[0].(string)
	decimals, _ := decimalsOut[0].(uint8)
	return Price{
		Amount:   cond.PricePerToken,
		Decimals: decimals,
		Symbol:   symbol,
		Currency: cond.Currency.Hex(),
	}, nil
}

// claimedTokenID reads the first token id out of the TokensClaimed event; empty if absent.
func (d *EthDrop) claimedTokenID(receipt *types.Receipt) string {
	event := d.client.dropABI.Events["TokensClaimed"]
	for _, lg := range receipt.Logs {
		if lg.Address != d.address || len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
			continue
		}
		if id, err := unpackStartTokenID(d.client.dropABI, lg.Data); err == nil {
			return id
		}
	}
	return ""
}

func unpackStartTokenID(parsed abi.ABI, data []byte) (string, error) {
	values, err := parsed.Unpack("TokensClaimed", data)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("TokensClaimed: no values")
	}
	start, ok := values[0].(*big.Int)
	if !ok {
		return "", fmt.Errorf("TokensClaimed: unexpected type %T", values[0])
	}
	return start.String(), nil
}

func validateClaimRequest(req ClaimRequest) error {
	if !common.IsHexAddress(req.Receiver) {
		return fmt.Errorf("invalid receiver address")
	}
	if req.Quantity == 0 {
		return fmt.Errorf("quantity must be positive")
	}
	return nil
}

// classifyTxError maps a failed send onto the ledger error taxonomy. The node rejects a
// reverting claim during gas estimation, so revert reasons usually arrive here.
func classifyTxError(op string, err error) error {
	if errors.Is(err, ErrUserRejected) {
		return err
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := revertReason(dataErr.ErrorData()); ok {
			return &RevertError{Reason: reason}
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		reason := strings.TrimPrefix(msg[i+len("execution reverted"):], ":")
		return &RevertError{Reason: strings.TrimSpace(reason)}
	}
	return &NetworkError{Op: op, Err: err}
}

func revertReason(data interface{}) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		// custom error selector; surface the raw data
		return s, true
	}
	return reason, true
}

// WaitForReceipt polls until the transaction is mined or context cancelled.
func WaitForReceipt(ctx context.Context, client *ethclient.Client, tx *types.Transaction, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
