package bridge

import (
	"context"
	"math/big"
	"time"

	"github.com/samparke/cross-chain-rebase-token/crypto"
	"github.com/samparke/cross-chain-rebase-token/storage"
	"github.com/samparke/cross-chain-rebase-token/token"
)

// Transport is the outbound half of the messaging channel. Send hands the
// encoded payload to the relay network and returns a delivery handle, or
// fails with the transport's own error taxonomy (unavailable, insufficient
// fee). Delivery itself is asynchronous and at-least-once; ordering is only
// guaranteed per (source, destination, sender).
type Transport interface {
	Send(ctx context.Context, destDomain uint64, payload []byte) (string, error)
}

// Bridge pairs a burn-and-message send on this domain with rate-preserving
// mints for messages arriving from allow-listed remote domains. It holds the
// minter capability on the local ledger.
type Bridge struct {
	ledger      *token.Ledger
	processed   *ProcessedLedger
	transport   Transport
	localDomain uint64
	// identity is the address carrying the bridge's minter capability.
	identity crypto.Address
	allowed  map[uint64]struct{}
	clock    func() time.Time
	emitter  Emitter
}

// New constructs a bridge for the local domain. allowedOrigins lists the
// remote domains whose messages this bridge will apply. processed must be
// backed by the same store as the ledger's state: a receive commits the
// mint and the processed record in a single batch.
func New(ledger *token.Ledger, processed *ProcessedLedger, localDomain uint64, identity crypto.Address, allowedOrigins []uint64) *Bridge {
	allowed := make(map[uint64]struct{}, len(allowedOrigins))
	for _, domain := range allowedOrigins {
		allowed[domain] = struct{}{}
	}
	return &Bridge{
		ledger:      ledger,
		processed:   processed,
		localDomain: localDomain,
		identity:    identity,
		allowed:     allowed,
		clock:       time.Now,
	}
}

// SetTransport wires the outbound messaging channel.
func (b *Bridge) SetTransport(t Transport) {
	if b == nil {
		return
	}
	b.transport = t
}

// SetClock overrides the time source (primarily for deterministic testing).
func (b *Bridge) SetClock(clock func() time.Time) {
	if b == nil || clock == nil {
		return
	}
	b.clock = clock
}

// SetEmitter wires an event sink for bridge events.
func (b *Bridge) SetEmitter(emitter Emitter) {
	if b == nil {
		return
	}
	b.emitter = emitter
}

// LocalDomain returns the domain this bridge instance serves.
func (b *Bridge) LocalDomain() uint64 {
	return b.localDomain
}

func (b *Bridge) emit(event interface{}) {
	if b == nil || b.emitter == nil {
		return
	}
	b.emitter.Emit(event)
}

// InitiateSend burns amount from the sender and hands the resulting message
// to the transport. The sender's interest is realised first and their rate
// read after realisation so the message carries the rate the holder is
// entitled to at send time. The full-balance sentinel is honoured.
//
// If the transport refuses the handoff the burn is restored in the same
// serialised operation, preserving the holder's rate, so a failed send has
// no effect. Once the transport has accepted the payload there is no
// rollback: a message the relay network never delivers stays burned locally
// and pending remotely.
func (b *Bridge) InitiateSend(ctx context.Context, sender crypto.Address, destDomain uint64, recipient crypto.Address, amount *big.Int) (*Message, string, error) {
	if b == nil || b.ledger == nil {
		return nil, "", ErrNilLedger
	}
	if b.transport == nil {
		return nil, "", ErrNilTransport
	}
	if destDomain == b.localDomain {
		return nil, "", ErrLocalDestination
	}

	if err := b.ledger.RealizeInterest(sender); err != nil {
		return nil, "", err
	}
	rate, err := b.ledger.RateOf(sender)
	if err != nil {
		return nil, "", err
	}
	burned, err := b.ledger.Burn(b.identity, sender, amount)
	if err != nil {
		return nil, "", err
	}
	if burned.Sign() == 0 {
		// Only the full-balance sentinel resolves to zero, and an empty
		// account has nothing to message. Burning zero touched no
		// principal, so there is nothing to restore.
		return nil, "", token.ErrInvalidAmount
	}

	nonce, err := b.processed.NextNonce()
	if err != nil {
		return nil, "", err
	}
	msg := NewMessage(b.localDomain, destDomain, nonce, recipient, burned, rate)
	payload, err := msg.Encode()
	if err != nil {
		return nil, "", err
	}

	handle, err := b.transport.Send(ctx, destDomain, payload)
	if err != nil {
		// The handoff failed synchronously, so the burn can still be
		// undone atomically. MintWithRate keeps the holder's rate intact
		// even if their balance hit zero.
		if restoreErr := b.ledger.MintWithRate(b.identity, sender, burned, rate); restoreErr != nil {
			return nil, "", restoreErr
		}
		b.emit(SendRolledBackEvent{DestDomain: destDomain, Sender: sender, Amount: new(big.Int).Set(burned)})
		return nil, "", err
	}

	idHex, err := msg.IDHex()
	if err != nil {
		return nil, "", err
	}
	b.emit(SentEvent{
		MessageID:  idHex,
		DestDomain: destDomain,
		Sender:     sender,
		Recipient:  recipient,
		Amount:     new(big.Int).Set(burned),
		Rate:       new(big.Int).Set(rate),
		Handle:     handle,
	})
	return msg, handle, nil
}

// ApplyReceive mints a delivered message into the local ledger. The
// recipient is credited with the exact burned amount and, if their balance
// was zero, assigned the message's source rate rather than this domain's
// global rate. Redelivered messages are acknowledged with
// ErrAlreadyProcessed and mint nothing.
func (b *Bridge) ApplyReceive(msg *Message, originDomain uint64) error {
	if b == nil || b.ledger == nil {
		return ErrNilLedger
	}
	if _, ok := b.allowed[originDomain]; !ok {
		return ErrUnauthorizedOrigin
	}
	if msg.SourceDomain != originDomain {
		// The transport authenticated originDomain; a payload claiming a
		// different source is forged.
		return ErrSourceMismatch
	}
	if msg.DestDomain != b.localDomain {
		return ErrWrongDestination
	}

	id, err := msg.ID()
	if err != nil {
		return err
	}
	seen, err := b.processed.Seen(id)
	if err != nil {
		return err
	}
	idHex, err := msg.IDHex()
	if err != nil {
		return err
	}
	if seen {
		b.emit(DuplicateEvent{MessageID: idHex, OriginDomain: originDomain})
		return ErrAlreadyProcessed
	}

	recipient := msg.RecipientAddress()
	appliedAt := uint64(0)
	if ts := b.clock().UTC().Unix(); ts > 0 {
		appliedAt = uint64(ts)
	}
	// The minted holder record and the processed entry land in one batch;
	// committing them separately would let a failure in between turn a
	// redelivery into a double mint.
	err = b.ledger.MintWithRateStaged(b.identity, recipient, msg.Amount, msg.Rate, func(holder *token.HolderAccount) error {
		return b.processed.RecordWith(id, msg, originDomain, appliedAt, func(batch storage.Batch) error {
			return token.StageHolders(batch, holder)
		})
	})
	if err != nil {
		return err
	}

	b.emit(ReceivedEvent{
		MessageID:    idHex,
		OriginDomain: originDomain,
		Recipient:    recipient,
		Amount:       new(big.Int).Set(msg.Amount),
		Rate:         new(big.Int).Set(msg.Rate),
	})
	return nil
}

// HandleDelivery decodes a raw transport payload and applies it. Inbound
// transports call this with the origin domain they authenticated.
func (b *Bridge) HandleDelivery(payload []byte, originDomain uint64) error {
	msg, err := DecodeMessage(payload)
	if err != nil {
		return err
	}
	return b.ApplyReceive(msg, originDomain)
}
