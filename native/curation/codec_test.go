package curation

import (
	"errors"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func buildPayload(signature string, id [32]byte, amount *big.Int) []byte {
	payload := make([]byte, commandPayloadLen)
	copy(payload[:4], ethcrypto.Keccak256([]byte(signature))[:4])
	copy(payload[4:36], id[:])
	amount.FillBytes(payload[36:68])
	return payload
}

func TestDecodeCommand(t *testing.T) {
	cases := []struct {
		signature string
		kind      CommandKind
	}{
		{"create(bytes32,uint256)", CommandCreate},
		{"upvote(bytes32,uint256)", CommandUpvote},
		{"downvote(bytes32,uint256)", CommandDownvote},
	}
	id := entryID(0x2a)
	amount := big.NewInt(123_456)
	for _, tc := range cases {
		cmd, err := DecodeCommand(buildPayload(tc.signature, id, amount))
		if err != nil {
			t.Fatalf("decode %s: %v", tc.signature, err)
		}
		if cmd.Kind != tc.kind {
			t.Fatalf("%s decoded kind %d, want %d", tc.signature, cmd.Kind, tc.kind)
		}
		if cmd.ID != id {
			t.Fatalf("%s decoded wrong id", tc.signature)
		}
		if cmd.Amount.Cmp(amount) != 0 {
			t.Fatalf("%s decoded amount %s, want %s", tc.signature, cmd.Amount, amount)
		}
	}
}

func TestDecodeCommandRejectsBadPayloads(t *testing.T) {
	if _, err := DecodeCommand(make([]byte, commandPayloadLen-1)); !errors.Is(err, ErrPayloadLength) {
		t.Fatalf("expected length error for short payload, got %v", err)
	}
	if _, err := DecodeCommand(make([]byte, commandPayloadLen+1)); !errors.Is(err, ErrPayloadLength) {
		t.Fatalf("expected length error for long payload, got %v", err)
	}
	if _, err := DecodeCommand(make([]byte, commandPayloadLen)); !errors.Is(err, ErrUnknownSelector) {
		t.Fatalf("expected selector error, got %v", err)
	}
}

func TestApplyRoutesCreate(t *testing.T) {
	rig := newTestRig(t)
	owner := addr(0x01)
	rig.fund(t, owner, 10_000)

	cmd, err := DecodeCommand(buildPayload("create(bytes32,uint256)", entryID(0x01), big.NewInt(1000)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	entry, err := rig.engine.Apply(owner, cmd, big.NewInt(1000))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if entry.Balance.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("applied create staked %s, want 1000", entry.Balance)
	}
}

func TestApplyRejectsApprovalMismatch(t *testing.T) {
	rig := newTestRig(t)
	owner := addr(0x01)
	rig.fund(t, owner, 10_000)

	cmd := Command{Kind: CommandCreate, ID: entryID(0x01), Amount: big.NewInt(1000)}
	if _, err := rig.engine.Apply(owner, cmd, big.NewInt(999)); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := rig.engine.Apply(owner, cmd, nil); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected mismatch for nil approval, got %v", err)
	}
	if got := rig.ledger.BalanceOf(owner); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("tokens moved on rejected apply, balance %s", got)
	}
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	rig := newTestRig(t)
	cmd := Command{Kind: CommandKind(0), ID: entryID(0x01), Amount: big.NewInt(1)}
	if _, err := rig.engine.Apply(addr(0x01), cmd, big.NewInt(1)); err == nil {
		t.Fatal("expected unknown command kind to fail")
	}
}
