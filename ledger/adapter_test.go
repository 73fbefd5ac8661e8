package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeTransfer_UnpacksIndexedAddressesAndValue(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amount := big.NewInt(12345)

	lg := types.Log{
		Topics: []common.Hash{
			transferSig,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		TxHash:      common.HexToHash("0xdeadbeef"),
		BlockNumber: 42,
	}

	transfer, ok := decodeTransfer(lg)
	if !ok {
		t.Fatal("expected decodeTransfer to succeed on a well-formed Transfer log")
	}
	if transfer.From != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("unexpected from: %s", transfer.From)
	}
	if transfer.To != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("unexpected to: %s", transfer.To)
	}
	if transfer.Amount.Cmp(amount) != 0 {
		t.Fatalf("unexpected amount: %s", transfer.Amount.String())
	}
	if transfer.Block != 42 {
		t.Fatalf("unexpected block: %d", transfer.Block)
	}
}

func TestDecodeTransfer_RejectsWrongTopicShape(t *testing.T) {
	lg := types.Log{
		Topics: []common.Hash{transferSig, common.HexToHash("0x01")},
		Data:   []byte{},
	}
	if _, ok := decodeTransfer(lg); ok {
		t.Fatal("expected decodeTransfer to reject a log with only one indexed topic")
	}
}
