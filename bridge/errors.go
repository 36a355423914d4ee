package bridge

import "errors"

var (
	ErrNilLedger          = errors.New("bridge: ledger not configured")
	ErrNilTransport       = errors.New("bridge: transport not configured")
	ErrUnauthorizedOrigin = errors.New("bridge: origin domain not on allow-list")
	ErrSourceMismatch     = errors.New("bridge: message source does not match transport origin")
	ErrWrongDestination   = errors.New("bridge: message addressed to another domain")
	ErrAlreadyProcessed   = errors.New("bridge: message already applied")
	ErrLocalDestination   = errors.New("bridge: destination is the local domain")
)
