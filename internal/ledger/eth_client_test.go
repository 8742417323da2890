package ledger

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"mintdrop/internal/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

type rpcDataError struct {
	msg  string
	data interface{}
}

func (e rpcDataError) Error() string          { return e.msg }
func (e rpcDataError) ErrorData() interface{} { return e.data }

func mustDropABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(contracts.DropERC721ABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return parsed
}

func encodeRevert(t *testing.T, reason string) string {
	t.Helper()
	strType, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatalf("new type: %v", err)
	}
	packed, err := abi.Arguments{{Type: strType}}.Pack(reason)
	if err != nil {
		t.Fatalf("pack reason: %v", err)
	}
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return hexutil.Encode(append(selector, packed...))
}

func TestClassifyTxError(t *testing.T) {
	rejected := classifyTxError("claim tx", errors.Join(errors.New("signer"), ErrUserRejected))
	if !errors.Is(rejected, ErrUserRejected) {
		t.Fatalf("expected user rejection to pass through, got %v", rejected)
	}

	var revert *RevertError
	fromMessage := classifyTxError("claim tx", errors.New("failed to estimate gas needed: execution reverted: !Qty"))
	if !errors.As(fromMessage, &revert) || revert.Reason != "!Qty" {
		t.Fatalf("expected revert with reason !Qty, got %v", fromMessage)
	}

	fromData := classifyTxError("claim tx", rpcDataError{msg: "execution reverted", data: encodeRevert(t, "DropClaimExceedMaxSupply")})
	if !errors.As(fromData, &revert) || revert.Reason != "DropClaimExceedMaxSupply" {
		t.Fatalf("expected decoded revert reason, got %v", fromData)
	}

	var netErr *NetworkError
	transport := classifyTxError("claim tx", errors.New("dial tcp: connection refused"))
	if !errors.As(transport, &netErr) || netErr.Op != "claim tx" {
		t.Fatalf("expected network error, got %v", transport)
	}
}

func TestUnpackStartTokenID(t *testing.T) {
	parsed := mustDropABI(t)
	data, err := parsed.Events["TokensClaimed"].Inputs.NonIndexed().Pack(big.NewInt(7), big.NewInt(1))
	if err != nil {
		t.Fatalf("pack event: %v", err)
	}
	id, err := unpackStartTokenID(parsed, data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if id != "7" {
		t.Fatalf("expected token 7, got %s", id)
	}
}

func TestClaimArgumentsPack(t *testing.T) {
	parsed := mustDropABI(t)
	proof := allowlistProof{
		Proof:                  [][32]byte{},
		QuantityLimitPerWallet: big.NewInt(0),
		PricePerToken:          math.MaxBig256,
		Currency:               common.Address{},
	}
	_, err := parsed.Pack("claim",
		common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		big.NewInt(1),
		common.HexToAddress(contracts.NativeTokenAddress),
		big.NewInt(10_000_000_000_000_000),
		proof,
		[]byte{},
	)
	if err != nil {
		t.Fatalf("pack claim: %v", err)
	}
}

func TestClaimConditionConvert(t *testing.T) {
	parsed := mustDropABI(t)
	method := parsed.Methods["getClaimConditionById"]
	want := claimCondition{
		StartTimestamp:         big.NewInt(1),
		MaxClaimableSupply:     big.NewInt(21),
		SupplyClaimed:          big.NewInt(13),
		QuantityLimitPerWallet: big.NewInt(1),
		PricePerToken:          big.NewInt(10_000_000_000_000_000),
		Currency:               common.HexToAddress(contracts.NativeTokenAddress),
		Metadata:               "public",
	}
	encoded, err := method.Outputs.Pack(want)
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}
	out, err := method.Outputs.Unpack(encoded)
	if err != nil {
		t.Fatalf("unpack outputs: %v", err)
	}
	got := *abi.ConvertType(out[0], new(claimCondition)).(*claimCondition)
	if got.PricePerToken.Cmp(want.PricePerToken) != 0 || got.Currency != want.Currency {
		t.Fatalf("unexpected condition: %+v", got)
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{big.NewInt(10_000_000_000_000_000), 18, "0.01"},
		{big.NewInt(1_500_000), 6, "1.5"},
		{big.NewInt(2_000_000), 6, "2"},
		{big.NewInt(0), 18, "0"},
		{big.NewInt(-25), 1, "-2.5"},
		{big.NewInt(42), 0, "42"},
	}
	for _, tc := range cases {
		if got := FormatUnits(tc.amount, tc.decimals); got != tc.want {
			t.Fatalf("FormatUnits(%s, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
	if got := FormatUnits(nil, 18); got != "" {
		t.Fatalf("expected empty string for nil amount, got %q", got)
	}
}

func TestCheckChainID(t *testing.T) {
	if err := checkChainID(0, big.NewInt(5)); err != nil {
		t.Fatalf("unset chain id should accept any node: %v", err)
	}
	if err := checkChainID(5, big.NewInt(5)); err != nil {
		t.Fatalf("matching chain id rejected: %v", err)
	}
	err := checkChainID(5, big.NewInt(1))
	if !errors.Is(err, ErrWrongChain) {
		t.Fatalf("expected ErrWrongChain, got %v", err)
	}
	if !strings.Contains(err.Error(), "configured 5, node reports 1") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
