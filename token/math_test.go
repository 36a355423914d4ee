package token

import (
	"math/big"
	"testing"
)

func TestGrowthFactorLinear(t *testing.T) {
	rate := big.NewInt(500_000_000) // 5e-10 per second, scaled by 1e18
	factor := growthFactor(rate, 3600)

	expected := new(big.Int).Add(one, big.NewInt(1_800_000_000_000))
	if factor.Cmp(expected) != 0 {
		t.Fatalf("expected factor %s, got %s", expected, factor)
	}
}

func TestGrowthFactorZeroInputs(t *testing.T) {
	if got := growthFactor(nil, 1000); got.Cmp(one) != 0 {
		t.Fatalf("nil rate should yield the identity factor, got %s", got)
	}
	if got := growthFactor(big.NewInt(5), 0); got.Cmp(one) != 0 {
		t.Fatalf("zero elapsed should yield the identity factor, got %s", got)
	}
}

func TestAccruedBalanceFloors(t *testing.T) {
	// 3 units at a rate small enough that the interest is a fraction of a
	// unit: the division must floor, not round.
	principal := big.NewInt(3)
	rate := big.NewInt(1) // 1e-18 per second
	got := accruedBalance(principal, rate, 0, 10)
	if got.Cmp(principal) != 0 {
		t.Fatalf("sub-unit interest must truncate to principal, got %s", got)
	}
}

func TestAccruedBalanceEqualIntervals(t *testing.T) {
	principal := new(big.Int).Mul(big.NewInt(100_000), one)
	rate := big.NewInt(500_000_000)

	b0 := accruedBalance(principal, rate, 0, 0)
	b1 := accruedBalance(principal, rate, 0, 3600)
	b2 := accruedBalance(principal, rate, 0, 7200)

	first := new(big.Int).Sub(b1, b0)
	second := new(big.Int).Sub(b2, b1)
	diff := new(big.Int).Sub(first, second)
	if diff.CmpAbs(big.NewInt(1)) > 0 {
		t.Fatalf("growth over equal intervals differs by more than 1 unit: %s vs %s", first, second)
	}
	if first.Sign() <= 0 {
		t.Fatalf("expected positive growth, got %s", first)
	}
}

func TestSentinel(t *testing.T) {
	if !IsSentinelAll(SentinelAll()) {
		t.Fatal("sentinel should recognise itself")
	}
	if IsSentinelAll(big.NewInt(42)) {
		t.Fatal("ordinary amount misidentified as sentinel")
	}
	if IsSentinelAll(nil) {
		t.Fatal("nil misidentified as sentinel")
	}
}
