package bridge

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/samparke/cross-chain-rebase-token/storage"
)

var (
	processedKeyPrefix = []byte("bridge/processed/")
	outboundNonceKey   = []byte("bridge/nonce")
)

// ProcessedLedger is the append-only record of applied inbound messages,
// keyed by message identity. The transport is assumed at-least-once; this
// ledger is what turns redelivery into a no-op instead of a double mint.
type ProcessedLedger struct {
	db storage.Database
}

type processedRecord struct {
	OriginDomain uint64
	Recipient    [20]byte
	Amount       *big.Int
	Rate         *big.Int
	AppliedAt    uint64
}

func NewProcessedLedger(db storage.Database) *ProcessedLedger {
	return &ProcessedLedger{db: db}
}

func processedKey(id [32]byte) []byte {
	encoded := hex.EncodeToString(id[:])
	buf := make([]byte, len(processedKeyPrefix)+len(encoded))
	copy(buf, processedKeyPrefix)
	copy(buf[len(processedKeyPrefix):], encoded)
	return buf
}

// Seen reports whether the message identity has been applied before.
func (p *ProcessedLedger) Seen(id [32]byte) (bool, error) {
	if p == nil || p.db == nil {
		return false, fmt.Errorf("bridge: processed ledger not initialised")
	}
	return p.db.Has(processedKey(id))
}

// Record marks the message as applied. Appending an identity twice is an
// error; callers check Seen first inside the same serialised operation.
func (p *ProcessedLedger) Record(id [32]byte, msg *Message, origin uint64, appliedAt uint64) error {
	return p.RecordWith(id, msg, origin, appliedAt, nil)
}

// RecordWith marks the message as applied, committing any writes staged by
// stage in the same atomic batch. ApplyReceive stages the minted holder
// record here so the mint and the dedup entry land together; a failure
// between them would otherwise let a redelivery mint twice.
func (p *ProcessedLedger) RecordWith(id [32]byte, msg *Message, origin uint64, appliedAt uint64, stage func(storage.Batch) error) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("bridge: processed ledger not initialised")
	}
	key := processedKey(id)
	exists, err := p.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyProcessed
	}
	record := processedRecord{
		OriginDomain: origin,
		Recipient:    msg.Recipient,
		Amount:       msg.Amount,
		Rate:         msg.Rate,
		AppliedAt:    appliedAt,
	}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	batch := p.db.NewBatch()
	batch.Put(key, encoded)
	if stage != nil {
		if err := stage(batch); err != nil {
			return err
		}
	}
	return batch.Write()
}

// NextNonce increments and returns the outbound message counter.
func (p *ProcessedLedger) NextNonce() (uint64, error) {
	if p == nil || p.db == nil {
		return 0, fmt.Errorf("bridge: processed ledger not initialised")
	}
	var nonce uint64
	encoded, err := p.db.Get(outboundNonceKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		if err := rlp.DecodeBytes(encoded, &nonce); err != nil {
			return 0, err
		}
	}
	nonce++
	updated, err := rlp.EncodeToBytes(nonce)
	if err != nil {
		return 0, err
	}
	if err := p.db.Put(outboundNonceKey, updated); err != nil {
		return 0, err
	}
	return nonce, nil
}
