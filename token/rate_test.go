package token

import (
	"errors"
	"math/big"
	"testing"
)

func testAuthority(t *testing.T) (*Authority, *mockLedgerState, *Roles) {
	t.Helper()
	owner := makeAddress(0x01)
	roles := NewRoles(owner)
	if err := roles.Grant(owner, RoleRateController, owner); err != nil {
		t.Fatalf("grant rate controller: %v", err)
	}
	state := newMockLedgerState()
	return NewAuthority(state, roles), state, roles
}

func TestInitialiseIsIdempotent(t *testing.T) {
	authority, _, _ := testAuthority(t)

	if err := authority.Initialise(big.NewInt(500_000_000)); err != nil {
		t.Fatalf("initialise: %v", err)
	}
	// Re-running genesis must not reset a live rate.
	if err := authority.Initialise(big.NewInt(900_000_000)); err != nil {
		t.Fatalf("second initialise: %v", err)
	}
	rate, err := authority.Rate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("expected rate 5e8 preserved, got %s", rate)
	}
}

func TestSetRateMonotoneDecreasing(t *testing.T) {
	authority, _, _ := testAuthority(t)
	owner := makeAddress(0x01)

	if err := authority.Initialise(big.NewInt(500_000_000)); err != nil {
		t.Fatalf("initialise: %v", err)
	}
	if err := authority.SetRate(owner, big.NewInt(400_000_000)); err != nil {
		t.Fatalf("lowering rate: %v", err)
	}

	err := authority.SetRate(owner, big.NewInt(450_000_000))
	if !errors.Is(err, ErrRateMustNotIncrease) {
		t.Fatalf("expected ErrRateMustNotIncrease, got %v", err)
	}
	rate, _ := authority.Rate()
	if rate.Cmp(big.NewInt(400_000_000)) != 0 {
		t.Fatalf("failed increase must leave rate unchanged, got %s", rate)
	}

	// Setting the same value again is allowed (non-increasing, not strictly
	// decreasing).
	if err := authority.SetRate(owner, big.NewInt(400_000_000)); err != nil {
		t.Fatalf("equal rate should be accepted: %v", err)
	}
}

func TestSetRateUnauthorized(t *testing.T) {
	authority, _, _ := testAuthority(t)
	owner := makeAddress(0x01)
	outsider := makeAddress(0x44)

	if err := authority.Initialise(big.NewInt(500_000_000)); err != nil {
		t.Fatalf("initialise: %v", err)
	}
	err := authority.SetRate(outsider, big.NewInt(100))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	rate, _ := authority.Rate()
	if rate.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("unauthorized call must leave rate unchanged, got %s", rate)
	}
	_ = owner
}

func TestSetRateNotifiesObservers(t *testing.T) {
	authority, _, _ := testAuthority(t)
	owner := makeAddress(0x01)

	if err := authority.Initialise(big.NewInt(500_000_000)); err != nil {
		t.Fatalf("initialise: %v", err)
	}

	var gotOld, gotNew *big.Int
	authority.Subscribe(func(oldRate, newRate *big.Int) {
		gotOld, gotNew = oldRate, newRate
	})

	if err := authority.SetRate(owner, big.NewInt(300_000_000)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if gotOld == nil || gotOld.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("observer old rate = %v", gotOld)
	}
	if gotNew == nil || gotNew.Cmp(big.NewInt(300_000_000)) != 0 {
		t.Fatalf("observer new rate = %v", gotNew)
	}
}

func TestSetRateRejectsNegative(t *testing.T) {
	authority, _, _ := testAuthority(t)
	owner := makeAddress(0x01)

	if err := authority.Initialise(big.NewInt(500_000_000)); err != nil {
		t.Fatalf("initialise: %v", err)
	}
	if err := authority.SetRate(owner, big.NewInt(-1)); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestRolesGrantRequiresOwner(t *testing.T) {
	owner := makeAddress(0x01)
	outsider := makeAddress(0x02)
	target := makeAddress(0x03)

	roles := NewRoles(owner)
	if err := roles.Grant(outsider, RoleMinter, target); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if roles.Has(RoleMinter, target) {
		t.Fatal("failed grant must not take effect")
	}
	if err := roles.Grant(owner, RoleMinter, target); err != nil {
		t.Fatalf("owner grant: %v", err)
	}
	if !roles.Has(RoleMinter, target) {
		t.Fatal("granted capability not visible")
	}
}
