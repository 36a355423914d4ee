package token

import (
	"math/big"

	"github.com/samparke/cross-chain-rebase-token/crypto"
)

// Authority is the single mutation point of the domain's global interest
// rate. The rate can only move downward over the ledger's lifetime; there is
// no override or emergency-increase path. Early holders therefore lock in a
// rate at least as good as anyone joining after them.
type Authority struct {
	state     ledgerState
	roles     *Roles
	emitter   Emitter
	observers []func(oldRate, newRate *big.Int)
}

func NewAuthority(state ledgerState, roles *Roles) *Authority {
	return &Authority{state: state, roles: roles}
}

// SetEmitter wires an event sink for rate change events.
func (a *Authority) SetEmitter(emitter Emitter) {
	if a == nil {
		return
	}
	a.emitter = emitter
}

// Subscribe registers an observer invoked after every successful rate change.
func (a *Authority) Subscribe(fn func(oldRate, newRate *big.Int)) {
	if a == nil || fn == nil {
		return
	}
	a.observers = append(a.observers, fn)
}

// Initialise seeds the global rate at ledger genesis. It is a no-op when a
// rate is already persisted, so restarting the daemon never resets the rate.
func (a *Authority) Initialise(rate *big.Int) error {
	if a == nil || a.state == nil {
		return ErrNilState
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	current, err := a.state.GetGlobalRate()
	if err != nil {
		return err
	}
	if current != nil {
		return nil
	}
	return a.state.PutGlobalRate(new(big.Int).Set(rate))
}

// Rate returns the current global rate.
func (a *Authority) Rate() (*big.Int, error) {
	if a == nil || a.state == nil {
		return nil, ErrNilState
	}
	rate, err := a.state.GetGlobalRate()
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, ErrRateNotSet
	}
	return new(big.Int).Set(rate), nil
}

// SetRate lowers the global rate. Rejected with ErrRateMustNotIncrease for
// any upward move and with ErrUnauthorized for callers without the
// rate-controller capability; the stored rate is untouched on failure.
func (a *Authority) SetRate(caller crypto.Address, newRate *big.Int) error {
	if a == nil || a.state == nil {
		return ErrNilState
	}
	if !a.roles.Has(RoleRateController, caller) {
		return ErrUnauthorized
	}
	if newRate == nil || newRate.Sign() < 0 {
		return ErrInvalidRate
	}
	current, err := a.state.GetGlobalRate()
	if err != nil {
		return err
	}
	if current == nil {
		return ErrRateNotSet
	}
	if newRate.Cmp(current) > 0 {
		return ErrRateMustNotIncrease
	}
	applied := new(big.Int).Set(newRate)
	if err := a.state.PutGlobalRate(applied); err != nil {
		return err
	}
	if a.emitter != nil {
		a.emitter.Emit(RateChangedEvent{OldRate: new(big.Int).Set(current), NewRate: new(big.Int).Set(applied)})
	}
	for _, fn := range a.observers {
		fn(new(big.Int).Set(current), new(big.Int).Set(applied))
	}
	return nil
}
