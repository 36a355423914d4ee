// Package vault wraps native-asset collateral handling around the ledger's
// mint and burn. Depositing collateral mints ledger units one-to-one;
// redeeming burns first and only releases collateral when the burn succeeds.
package vault

import (
	"errors"
	"math/big"

	"github.com/samparke/cross-chain-rebase-token/crypto"
	"github.com/samparke/cross-chain-rebase-token/token"
)

var (
	ErrNilLedger   = errors.New("vault: ledger not configured")
	ErrNilReleaser = errors.New("vault: collateral releaser not configured")
)

// CollateralReleaser pays native collateral back out to a redeeming holder.
// The production implementation talks to the domain's native asset; tests
// use a recorder.
type CollateralReleaser interface {
	Release(recipient crypto.Address, amount *big.Int) error
}

// Vault holds the minter capability used for deposits and redemptions and
// tracks the collateral it has locked.
type Vault struct {
	ledger   *token.Ledger
	identity crypto.Address
	releaser CollateralReleaser
	locked   *big.Int
}

// New constructs a vault whose identity must hold the minter capability on
// the ledger.
func New(ledger *token.Ledger, identity crypto.Address, releaser CollateralReleaser) *Vault {
	return &Vault{
		ledger:   ledger,
		identity: identity,
		releaser: releaser,
		locked:   big.NewInt(0),
	}
}

// Locked returns the collateral total currently held by the vault.
func (v *Vault) Locked() *big.Int {
	if v == nil || v.locked == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v.locked)
}

// Deposit locks collateral and mints the equivalent ledger units to the
// depositor at the current global rate.
func (v *Vault) Deposit(depositor crypto.Address, amount *big.Int) error {
	if v == nil || v.ledger == nil {
		return ErrNilLedger
	}
	if err := v.ledger.Mint(v.identity, depositor, amount); err != nil {
		return err
	}
	v.locked = new(big.Int).Add(v.locked, amount)
	return nil
}

// Redeem burns the holder's ledger units and releases the equivalent
// collateral. A burn failure is fatal to the redemption: no collateral
// moves. The full-balance sentinel is honoured. The redeemed amount is
// returned.
func (v *Vault) Redeem(holder crypto.Address, amount *big.Int) (*big.Int, error) {
	if v == nil || v.ledger == nil {
		return nil, ErrNilLedger
	}
	if v.releaser == nil {
		return nil, ErrNilReleaser
	}
	burned, err := v.ledger.Burn(v.identity, holder, amount)
	if err != nil {
		return nil, err
	}
	if err := v.releaser.Release(holder, burned); err != nil {
		return nil, err
	}
	v.locked = new(big.Int).Sub(v.locked, burned)
	if v.locked.Sign() < 0 {
		// Interest paid out exceeds deposits; the releaser funded the
		// difference from its reward reserve.
		v.locked = big.NewInt(0)
	}
	return burned, nil
}
