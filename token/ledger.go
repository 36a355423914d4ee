package token

import (
	"math/big"
	"time"

	"github.com/samparke/cross-chain-rebase-token/crypto"
)

// ledgerState abstracts the persistence consumed by the ledger. The
// production implementation is State; tests supply an in-memory mock.
type ledgerState interface {
	GetHolder(addr crypto.Address) (*HolderAccount, error)
	PutHolders(accounts ...*HolderAccount) error
	GetGlobalRate() (*big.Int, error)
	PutGlobalRate(rate *big.Int) error
}

// Ledger holds the per-domain holder table and executes mint, burn and
// transfer against it. Every mutating entry point realises the holder's
// pending interest into principal before touching it; skipping that step, or
// doing it after the mutation, corrupts all future accrual computations.
//
// The hosting runtime serialises calls per domain; the ledger itself takes
// no locks.
type Ledger struct {
	state   ledgerState
	roles   *Roles
	clock   func() time.Time
	emitter Emitter
}

// NewLedger constructs a ledger bound to the given state and capability table.
func NewLedger(state ledgerState, roles *Roles) *Ledger {
	return &Ledger{state: state, roles: roles, clock: time.Now}
}

// SetClock overrides the time source (primarily for deterministic testing).
func (l *Ledger) SetClock(clock func() time.Time) {
	if l == nil || clock == nil {
		return
	}
	l.clock = clock
}

// SetEmitter wires an event sink for mint/burn/transfer/accrual events.
func (l *Ledger) SetEmitter(emitter Emitter) {
	if l == nil {
		return
	}
	l.emitter = emitter
}

func (l *Ledger) now() uint64 {
	ts := l.clock().UTC().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// BalanceOf returns the holder's principal plus interest accrued since their
// last realisation. It never mutates state.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	holder, err := l.state.GetHolder(addr)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return big.NewInt(0), nil
	}
	now := l.now()
	if holder.LastAccrual > now {
		return nil, ErrTimeReversed
	}
	return accruedBalance(holder.Principal, holder.Rate, holder.LastAccrual, now), nil
}

// PrincipalOf returns the realised principal only, excluding pending accrual.
// Diagnostic accessor; balance semantics are always BalanceOf.
func (l *Ledger) PrincipalOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	holder, err := l.state.GetHolder(addr)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(holder.Principal), nil
}

// RateOf returns the holder's assigned interest rate, zero for unknown holders.
func (l *Ledger) RateOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	holder, err := l.state.GetHolder(addr)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(holder.Rate), nil
}

// GlobalRate returns the domain's current global interest rate.
func (l *Ledger) GlobalRate() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	rate, err := l.state.GetGlobalRate()
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, ErrRateNotSet
	}
	return new(big.Int).Set(rate), nil
}

// Mint credits freshly created tokens to the holder. A holder whose balance
// was zero is assigned the current global rate. Restricted to minters (the
// vault and the bridge).
func (l *Ledger) Mint(caller, addr crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if !l.roles.Has(RoleMinter, caller) {
		return ErrUnauthorized
	}
	if !validMintAmount(amount) {
		return ErrInvalidAmount
	}
	rate, err := l.state.GetGlobalRate()
	if err != nil {
		return err
	}
	if rate == nil {
		return ErrRateNotSet
	}
	return l.mintAt(addr, amount, rate, l.persistHolder)
}

// MintWithRate credits tokens carrying an explicit interest rate. Used for
// cross-domain receipts, where the message's source rate overrides the local
// rate-assignment rule for fresh holders. Restricted to minters.
func (l *Ledger) MintWithRate(caller, addr crypto.Address, amount, rate *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if !l.roles.Has(RoleMinter, caller) {
		return ErrUnauthorized
	}
	if !validMintAmount(amount) {
		return ErrInvalidAmount
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	return l.mintAt(addr, amount, rate, l.persistHolder)
}

// MintWithRateStaged validates and applies a rate-carrying mint like
// MintWithRate, but hands the updated holder record to commit instead of
// persisting it. The bridge uses this to write the mint and the message's
// processed record in one atomic batch; without that, a failure between the
// two writes would let a redelivery mint twice.
func (l *Ledger) MintWithRateStaged(caller, addr crypto.Address, amount, rate *big.Int, commit func(*HolderAccount) error) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if commit == nil {
		return ErrNilState
	}
	if !l.roles.Has(RoleMinter, caller) {
		return ErrUnauthorized
	}
	if !validMintAmount(amount) {
		return ErrInvalidAmount
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	return l.mintAt(addr, amount, rate, commit)
}

func (l *Ledger) persistHolder(holder *HolderAccount) error {
	return l.state.PutHolders(holder)
}

func (l *Ledger) mintAt(addr crypto.Address, amount, rate *big.Int, commit func(*HolderAccount) error) error {
	holder, now, err := l.loadForMutation(addr)
	if err != nil {
		return err
	}
	l.realize(holder, now)
	if holder.Principal.Sign() == 0 {
		holder.Rate = new(big.Int).Set(rate)
	}
	holder.Principal = new(big.Int).Add(holder.Principal, amount)
	if err := commit(holder); err != nil {
		return err
	}
	l.emit(MintedEvent{Holder: addr, Amount: new(big.Int).Set(amount), Rate: new(big.Int).Set(holder.Rate)})
	return nil
}

// Burn destroys tokens held by addr, resolving the full-balance sentinel to
// the holder's entire realised balance. The burned amount is returned.
// Restricted to minters.
func (l *Ledger) Burn(caller, addr crypto.Address, amount *big.Int) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	if !l.roles.Has(RoleMinter, caller) {
		return nil, ErrUnauthorized
	}
	if !validSpendAmount(amount) {
		return nil, ErrInvalidAmount
	}
	holder, now, err := l.loadForMutation(addr)
	if err != nil {
		return nil, err
	}
	l.realize(holder, now)
	burned := amount
	if IsSentinelAll(amount) {
		burned = holder.Principal
	}
	if burned.Cmp(holder.Principal) > 0 {
		return nil, ErrInsufficientBalance
	}
	burned = new(big.Int).Set(burned)
	holder.Principal = new(big.Int).Sub(holder.Principal, burned)
	if err := l.state.PutHolders(holder); err != nil {
		return nil, err
	}
	l.emit(BurnedEvent{Holder: addr, Amount: new(big.Int).Set(burned)})
	return burned, nil
}

// Transfer moves tokens between two holders on the same domain. A recipient
// whose balance was zero inherits the sender's assigned rate, not the global
// rate. The transferred amount is returned.
func (l *Ledger) Transfer(sender, recipient crypto.Address, amount *big.Int) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	if !validSpendAmount(amount) {
		return nil, ErrInvalidAmount
	}

	from, now, err := l.loadForMutation(sender)
	if err != nil {
		return nil, err
	}
	l.realize(from, now)

	moved := amount
	if IsSentinelAll(amount) {
		moved = from.Principal
	}
	if moved.Cmp(from.Principal) > 0 {
		return nil, ErrInsufficientBalance
	}
	moved = new(big.Int).Set(moved)

	if sender.Equal(recipient) {
		// Realisation already happened; a self-transfer moves nothing.
		if err := l.state.PutHolders(from); err != nil {
			return nil, err
		}
		l.emit(TransferredEvent{Sender: sender, Recipient: recipient, Amount: new(big.Int).Set(moved)})
		return moved, nil
	}

	to, _, err := l.loadForMutation(recipient)
	if err != nil {
		return nil, err
	}
	l.realize(to, now)

	if to.Principal.Sign() == 0 {
		to.Rate = new(big.Int).Set(from.Rate)
	}
	from.Principal = new(big.Int).Sub(from.Principal, moved)
	to.Principal = new(big.Int).Add(to.Principal, moved)

	// Both sides commit in one batch; a storage failure leaves neither
	// holder mutated.
	if err := l.state.PutHolders(from, to); err != nil {
		return nil, err
	}
	l.emit(TransferredEvent{Sender: sender, Recipient: recipient, Amount: new(big.Int).Set(moved)})
	return moved, nil
}

// RealizeInterest folds the holder's pending accrual into principal and
// stamps the accrual clock. The bridge calls this before reading a sender's
// rate so the rate reflects the position the holder is entitled to at send
// time.
func (l *Ledger) RealizeInterest(addr crypto.Address) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	holder, now, err := l.loadForMutation(addr)
	if err != nil {
		return err
	}
	l.realize(holder, now)
	return l.state.PutHolders(holder)
}

// loadForMutation fetches or lazily creates the holder record and validates
// the accrual clock against the current time. A LastAccrual in the future is
// rejected, never clamped: silently truncating elapsed time would hide clock
// regressions from operators.
func (l *Ledger) loadForMutation(addr crypto.Address) (*HolderAccount, uint64, error) {
	holder, err := l.state.GetHolder(addr)
	if err != nil {
		return nil, 0, err
	}
	now := l.now()
	if holder == nil {
		holder = &HolderAccount{Address: addr, LastAccrual: now}
		holder.ensureDefaults()
		return holder, now, nil
	}
	if holder.LastAccrual > now {
		return nil, 0, ErrTimeReversed
	}
	return holder, now, nil
}

// realize folds accrued interest into principal. Must run before any
// principal mutation on the holder.
func (l *Ledger) realize(holder *HolderAccount, now uint64) {
	accrued := accruedBalance(holder.Principal, holder.Rate, holder.LastAccrual, now)
	delta := new(big.Int).Sub(accrued, holder.Principal)
	if delta.Sign() > 0 {
		holder.Principal = accrued
		l.emit(InterestRealizedEvent{Holder: holder.Address, Delta: delta})
	}
	holder.LastAccrual = now
}

func validMintAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0 && !IsSentinelAll(amount)
}

func validSpendAmount(amount *big.Int) bool {
	if amount == nil {
		return false
	}
	return amount.Sign() > 0
}
