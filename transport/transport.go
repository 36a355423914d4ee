// Package transport carries encoded bridge messages between domains. The
// bridge only sees the Send half; delivery arrives through a Receiver wired
// at setup. Delivery is at-least-once and ordered per (source, destination,
// sender); deduplication is the bridge's processed-message ledger.
package transport

import "errors"

var (
	// ErrTransportUnavailable reports that the destination domain has no
	// reachable relay endpoint.
	ErrTransportUnavailable = errors.New("transport: unavailable")
	// ErrInsufficientFee reports that the relay refused the message because
	// the offered fee is below its price.
	ErrInsufficientFee = errors.New("transport: insufficient fee")
)

// Receiver is the inbound side of a domain: it consumes a delivered payload
// together with the authenticated origin domain.
type Receiver interface {
	HandleDelivery(payload []byte, originDomain uint64) error
}
