package token

import (
	"math/big"

	"github.com/samparke/cross-chain-rebase-token/crypto"
)

// HolderAccount is the per-holder ledger entry on a single domain.
//
// Principal holds tokens actually realised into the entry; interest accrued
// since LastAccrual is computed on demand and only folded into Principal by
// the ledger immediately before a mutation. Rate is fixed the moment a
// zero-balance holder first receives tokens and survives later drops of the
// global rate; it is reassigned only when the holder's balance has returned
// to zero and they are credited again.
type HolderAccount struct {
	Address crypto.Address
	// Principal is the realised token amount, excluding unrealised accrual.
	Principal *big.Int
	// Rate is the holder's assigned per-second interest rate scaled by 1e18.
	Rate *big.Int
	// LastAccrual is the unix timestamp of the last interest realisation.
	LastAccrual uint64
}

// Copy returns a deep copy so callers cannot mutate shared pointers.
func (h *HolderAccount) Copy() *HolderAccount {
	if h == nil {
		return nil
	}
	clone := *h
	if h.Principal != nil {
		clone.Principal = new(big.Int).Set(h.Principal)
	}
	if h.Rate != nil {
		clone.Rate = new(big.Int).Set(h.Rate)
	}
	return &clone
}

func (h *HolderAccount) ensureDefaults() {
	if h.Principal == nil {
		h.Principal = big.NewInt(0)
	}
	if h.Rate == nil {
		h.Rate = big.NewInt(0)
	}
}
