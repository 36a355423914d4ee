package bridge

import (
	"math/big"

	"github.com/samparke/cross-chain-rebase-token/crypto"
)

// Emitter receives bridge events; the daemon wires a logging/metrics sink.
type Emitter interface {
	Emit(event interface{})
}

// SentEvent records a completed burn-and-handoff on the source domain.
type SentEvent struct {
	MessageID  string
	DestDomain uint64
	Sender     crypto.Address
	Recipient  crypto.Address
	Amount     *big.Int
	Rate       *big.Int
	Handle     string
}

// ReceivedEvent records an applied inbound mint on the destination domain.
type ReceivedEvent struct {
	MessageID    string
	OriginDomain uint64
	Recipient    crypto.Address
	Amount       *big.Int
	Rate         *big.Int
}

// DuplicateEvent records an inbound delivery that was already applied.
type DuplicateEvent struct {
	MessageID    string
	OriginDomain uint64
}

// SendRolledBackEvent records a burn that was restored because the transport
// refused the handoff.
type SendRolledBackEvent struct {
	DestDomain uint64
	Sender     crypto.Address
	Amount     *big.Int
}
