package token

import "math/big"

var (
	// one is the fixed-point precision constant. Rates are per-second growth
	// multipliers scaled by one; a stored rate of 5e8 means 5e-10 per second.
	one = mustBigInt("1000000000000000000") // 1e18

	// sentinelAll marks a burn or transfer of the caller's entire balance.
	sentinelAll = mustBigInt("115792089237316195423570985008687907853269984665640564039457584007913129639935") // 2^256 - 1
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// SentinelAll returns the amount value that resolves to the holder's full
// balance inside Burn, Transfer and bridge sends.
func SentinelAll() *big.Int {
	return new(big.Int).Set(sentinelAll)
}

// IsSentinelAll reports whether the amount is the full-balance sentinel.
func IsSentinelAll(amount *big.Int) bool {
	return amount != nil && amount.Cmp(sentinelAll) == 0
}

// mulDiv computes a*b/denom with flooring division. Flooring, not half-up
// rounding: accrual linearity over equal back-to-back intervals holds within
// one unit only when the division always truncates the same way.
func mulDiv(a, b, denom *big.Int) *big.Int {
	if a == nil || b == nil || denom == nil || denom.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denom)
}

// growthFactor returns one + rate*elapsed, the linear interest multiplier for
// a holder accruing at the given per-second rate over elapsed seconds.
func growthFactor(rate *big.Int, elapsed uint64) *big.Int {
	factor := new(big.Int).Set(one)
	if rate == nil || rate.Sign() == 0 || elapsed == 0 {
		return factor
	}
	accrued := new(big.Int).Mul(rate, new(big.Int).SetUint64(elapsed))
	return factor.Add(factor, accrued)
}

// accruedBalance computes principal plus linear interest since lastAccrual.
// Pure; callers guard now >= lastAccrual before invoking.
func accruedBalance(principal, rate *big.Int, lastAccrual, now uint64) *big.Int {
	if principal == nil || principal.Sign() == 0 {
		return big.NewInt(0)
	}
	return mulDiv(principal, growthFactor(rate, now-lastAccrual), one)
}
