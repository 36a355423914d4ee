package token

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/samparke/cross-chain-rebase-token/crypto"
	"github.com/samparke/cross-chain-rebase-token/storage"
)

var (
	holderKeyPrefix = []byte("token/holder/")
	globalRateKey   = []byte("token/rate")
)

type storedHolder struct {
	Principal   *big.Int
	Rate        *big.Int
	LastAccrual uint64
}

// State persists holder accounts and the global rate scalar in the underlying
// key-value store. It is the production implementation of the ledgerState
// interface consumed by Ledger and Authority.
type State struct {
	db storage.Database
}

func NewState(db storage.Database) *State {
	return &State{db: db}
}

func holderKey(addr crypto.Address) []byte {
	raw := addr.Bytes()
	buf := make([]byte, len(holderKeyPrefix)+len(raw))
	copy(buf, holderKeyPrefix)
	copy(buf[len(holderKeyPrefix):], raw)
	return buf
}

// GetHolder loads the holder record, returning nil when none exists.
func (s *State) GetHolder(addr crypto.Address) (*HolderAccount, error) {
	encoded, err := s.db.Get(holderKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedHolder
	if err := rlp.DecodeBytes(encoded, &stored); err != nil {
		return nil, err
	}
	account := &HolderAccount{
		Address:     addr,
		Principal:   stored.Principal,
		Rate:        stored.Rate,
		LastAccrual: stored.LastAccrual,
	}
	account.ensureDefaults()
	return account, nil
}

// PutHolder persists a single holder record.
func (s *State) PutHolder(account *HolderAccount) error {
	return s.PutHolders(account)
}

// PutHolders persists all given holder records in one atomic batch. A
// transfer commits both sides through here so a storage failure can never
// debit the sender without crediting the recipient.
func (s *State) PutHolders(accounts ...*HolderAccount) error {
	batch := s.db.NewBatch()
	if err := StageHolders(batch, accounts...); err != nil {
		return err
	}
	return batch.Write()
}

// StageHolders encodes the holder records onto batch without committing
// them. The bridge pairs a holder mutation with its processed-message record
// in a single batch over the shared store.
func StageHolders(batch storage.Batch, accounts ...*HolderAccount) error {
	for _, account := range accounts {
		if account == nil {
			return errors.New("token: nil holder account")
		}
		account.ensureDefaults()
		stored := storedHolder{
			Principal:   account.Principal,
			Rate:        account.Rate,
			LastAccrual: account.LastAccrual,
		}
		encoded, err := rlp.EncodeToBytes(&stored)
		if err != nil {
			return err
		}
		batch.Put(holderKey(account.Address), encoded)
	}
	return nil
}

// GetGlobalRate loads the domain's current global rate, nil when the ledger
// has not been initialised yet.
func (s *State) GetGlobalRate() (*big.Int, error) {
	encoded, err := s.db.Get(globalRateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rate := new(big.Int)
	if err := rlp.DecodeBytes(encoded, rate); err != nil {
		return nil, err
	}
	return rate, nil
}

// PutGlobalRate persists the global rate scalar.
func (s *State) PutGlobalRate(rate *big.Int) error {
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	encoded, err := rlp.EncodeToBytes(rate)
	if err != nil {
		return err
	}
	return s.db.Put(globalRateKey, encoded)
}
