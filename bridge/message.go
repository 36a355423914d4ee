package bridge

import (
	"encoding/hex"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/samparke/cross-chain-rebase-token/crypto"
)

// Message is the wire payload of a single cross-domain transfer: the burned
// amount together with the sender's assigned interest rate at send time. The
// rate is authoritative on the receiving side and overrides the destination
// domain's local rate-assignment rule.
type Message struct {
	SourceDomain uint64
	DestDomain   uint64
	// Nonce is a per-source-domain outbound counter; together with the
	// domain pair it makes every message identity unique.
	Nonce     uint64
	Recipient [20]byte
	Amount    *big.Int
	Rate      *big.Int
}

// NewMessage builds a transfer message for the given recipient.
func NewMessage(source, dest, nonce uint64, recipient crypto.Address, amount, rate *big.Int) *Message {
	msg := &Message{
		SourceDomain: source,
		DestDomain:   dest,
		Nonce:        nonce,
		Amount:       new(big.Int).Set(amount),
		Rate:         new(big.Int).Set(rate),
	}
	copy(msg.Recipient[:], recipient.Bytes())
	return msg
}

// RecipientAddress reconstructs the holder address carried by the message.
func (m *Message) RecipientAddress() crypto.Address {
	raw := make([]byte, 20)
	copy(raw, m.Recipient[:])
	return crypto.NewAddress(crypto.RBTPrefix, raw)
}

// Encode returns the canonical RLP encoding handed to the transport.
func (m *Message) Encode() ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("bridge: nil message")
	}
	return rlp.EncodeToBytes(m)
}

// DecodeMessage parses a transport payload back into a message.
func DecodeMessage(payload []byte) (*Message, error) {
	msg := &Message{}
	if err := rlp.DecodeBytes(payload, msg); err != nil {
		return nil, fmt.Errorf("bridge: decode message: %w", err)
	}
	if msg.Amount == nil {
		msg.Amount = big.NewInt(0)
	}
	if msg.Rate == nil {
		msg.Rate = big.NewInt(0)
	}
	return msg, nil
}

// ID is the keccak-256 hash of the canonical encoding; it keys the
// processed-message set on the receiving side.
func (m *Message) ID() ([32]byte, error) {
	var id [32]byte
	encoded, err := m.Encode()
	if err != nil {
		return id, err
	}
	copy(id[:], ethcrypto.Keccak256(encoded))
	return id, nil
}

// IDHex returns the message identity as a hex string for logs and RPC.
func (m *Message) IDHex() (string, error) {
	id, err := m.ID()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id[:]), nil
}
