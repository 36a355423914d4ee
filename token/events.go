package token

import (
	"math/big"

	"github.com/samparke/cross-chain-rebase-token/crypto"
)

// Emitter receives ledger events. The daemon wires a logging/metrics sink;
// tests typically leave it nil.
type Emitter interface {
	Emit(event interface{})
}

type MintedEvent struct {
	Holder crypto.Address
	Amount *big.Int
	Rate   *big.Int
}

type BurnedEvent struct {
	Holder crypto.Address
	Amount *big.Int
}

type TransferredEvent struct {
	Sender    crypto.Address
	Recipient crypto.Address
	Amount    *big.Int
}

type InterestRealizedEvent struct {
	Holder crypto.Address
	Delta  *big.Int
}

type RateChangedEvent struct {
	OldRate *big.Int
	NewRate *big.Int
}

func (l *Ledger) emit(event interface{}) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(event)
}
