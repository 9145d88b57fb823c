package token

import (
	"errors"
	"math/big"
	"testing"
)

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestMintAndBalance(t *testing.T) {
	ledger := NewLedger()
	owner := testAddr(0x01)
	if err := ledger.Mint(owner, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint(owner, big.NewInt(250)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := ledger.BalanceOf(owner); got.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("balance %s, want 750", got)
	}
	if err := ledger.Mint(owner, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for zero mint, got %v", err)
	}
	if err := ledger.Mint(owner, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for nil mint, got %v", err)
	}
}

func TestApproveReplacesAllowance(t *testing.T) {
	ledger := NewLedger()
	owner := testAddr(0x01)
	if err := ledger.Approve(owner, big.NewInt(100)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.Approve(owner, big.NewInt(40)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	allowance, err := ledger.AllowanceOf(owner)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("allowance %s, want 40", allowance)
	}
	// Approving zero revokes; negative is rejected.
	if err := ledger.Approve(owner, big.NewInt(0)); err != nil {
		t.Fatalf("approve zero: %v", err)
	}
	if err := ledger.Approve(owner, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestEscrowConsumesBalanceAndAllowance(t *testing.T) {
	ledger := NewLedger()
	owner := testAddr(0x01)
	if err := ledger.Mint(owner, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve(owner, big.NewInt(600)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.Escrow(owner, big.NewInt(400)); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if got := ledger.BalanceOf(owner); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("balance %s, want 600", got)
	}
	allowance, _ := ledger.AllowanceOf(owner)
	if allowance.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("allowance %s, want 200", allowance)
	}
	if got := ledger.Custody(); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("custody %s, want 400", got)
	}
	if err := ledger.Escrow(owner, big.NewInt(300)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance rejection, got %v", err)
	}
}

func TestEscrowRequiresBalance(t *testing.T) {
	ledger := NewLedger()
	owner := testAddr(0x01)
	if err := ledger.Approve(owner, big.NewInt(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.Escrow(owner, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected balance rejection, got %v", err)
	}
	if got := ledger.Custody(); got.Sign() != 0 {
		t.Fatalf("custody should stay empty, got %s", got)
	}
}

func TestReleasePaysFromCustody(t *testing.T) {
	ledger := NewLedger()
	owner := testAddr(0x01)
	recipient := testAddr(0x02)
	if err := ledger.Mint(owner, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve(owner, big.NewInt(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.Escrow(owner, big.NewInt(700)); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if err := ledger.Release(recipient, big.NewInt(500)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := ledger.BalanceOf(recipient); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("recipient balance %s, want 500", got)
	}
	if got := ledger.Custody(); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("custody %s, want 200", got)
	}
	if err := ledger.Release(recipient, big.NewInt(201)); !errors.Is(err, ErrInsufficientCustody) {
		t.Fatalf("expected custody rejection, got %v", err)
	}
}
