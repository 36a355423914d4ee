package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Loopback connects domains living in the same process. Delivery is
// synchronous and in order, which trivially satisfies the per-sender
// ordering assumption.
type Loopback struct {
	mu        sync.Mutex
	receivers map[uint64]Receiver
}

func NewLoopback() *Loopback {
	return &Loopback{receivers: make(map[uint64]Receiver)}
}

// Register wires the inbound side of a domain.
func (l *Loopback) Register(domain uint64, receiver Receiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receivers[domain] = receiver
}

// Endpoint returns the outbound transport for a source domain.
func (l *Loopback) Endpoint(sourceDomain uint64) *LoopbackEndpoint {
	return &LoopbackEndpoint{network: l, origin: sourceDomain}
}

// LoopbackEndpoint is the bridge-facing Send half bound to one origin.
type LoopbackEndpoint struct {
	network *Loopback
	origin  uint64
}

func (e *LoopbackEndpoint) Send(_ context.Context, destDomain uint64, payload []byte) (string, error) {
	e.network.mu.Lock()
	receiver, ok := e.network.receivers[destDomain]
	e.network.mu.Unlock()
	if !ok {
		return "", ErrTransportUnavailable
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	if err := receiver.HandleDelivery(buf, e.origin); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}
