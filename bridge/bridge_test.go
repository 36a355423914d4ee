package bridge

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/samparke/cross-chain-rebase-token/crypto"
	"github.com/samparke/cross-chain-rebase-token/storage"
	"github.com/samparke/cross-chain-rebase-token/token"
)

type testDomain struct {
	ledger    *token.Ledger
	bridge    *Bridge
	authority *token.Authority
	owner     crypto.Address
	minter    crypto.Address
	now       *int64
}

type captureTransport struct {
	payloads [][]byte
	dests    []uint64
	failWith error
}

func (c *captureTransport) Send(_ context.Context, dest uint64, payload []byte) (string, error) {
	if c.failWith != nil {
		return "", c.failWith
	}
	c.payloads = append(c.payloads, payload)
	c.dests = append(c.dests, dest)
	return "handle-1", nil
}

var errDiskFull = errors.New("disk full")

// flakyDB hands out batches that refuse to commit while failWrites is set.
type flakyDB struct {
	*storage.MemDB
	failWrites bool
}

func (db *flakyDB) NewBatch() storage.Batch {
	if db.failWrites {
		return failingBatch{}
	}
	return db.MemDB.NewBatch()
}

type failingBatch struct{}

func (failingBatch) Put(key []byte, value []byte) {}

func (failingBatch) Write() error { return errDiskFull }

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.RBTPrefix, raw)
}

func tokens(n int64) *big.Int {
	scale, _ := new(big.Int).SetString("1000000000000000000", 10)
	return new(big.Int).Mul(big.NewInt(n), scale)
}

// newTestDomain wires a full domain over an in-memory database: persistent
// token state, roles with a funded minter and bridge identity, and a bridge
// accepting messages from the listed origins.
func newTestDomain(t *testing.T, domainID uint64, initialRate *big.Int, origins ...uint64) *testDomain {
	t.Helper()
	return newTestDomainOn(t, storage.NewMemDB(), domainID, initialRate, origins...)
}

func newTestDomainOn(t *testing.T, db storage.Database, domainID uint64, initialRate *big.Int, origins ...uint64) *testDomain {
	t.Helper()
	state := token.NewState(db)

	owner := makeAddress(0x01)
	minter := makeAddress(0x02)
	bridgeID := makeAddress(0x03)

	roles := token.NewRoles(owner)
	if err := roles.Grant(owner, token.RoleMinter, minter); err != nil {
		t.Fatalf("grant minter: %v", err)
	}
	if err := roles.Grant(owner, token.RoleMinter, bridgeID); err != nil {
		t.Fatalf("grant bridge minter: %v", err)
	}

	if err := roles.Grant(owner, token.RoleRateController, owner); err != nil {
		t.Fatalf("grant rate controller: %v", err)
	}

	authority := token.NewAuthority(state, roles)
	if err := authority.Initialise(initialRate); err != nil {
		t.Fatalf("initialise rate: %v", err)
	}

	ledger := token.NewLedger(state, roles)
	now := int64(0)
	ledger.SetClock(func() time.Time { return time.Unix(now, 0) })

	b := New(ledger, NewProcessedLedger(db), domainID, bridgeID, origins)
	b.SetClock(func() time.Time { return time.Unix(now, 0) })

	return &testDomain{ledger: ledger, bridge: b, authority: authority, owner: owner, minter: minter, now: &now}
}

func TestSendThenReceivePreservesAmountAndRate(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	dest := newTestDomain(t, 2, big.NewInt(100_000_000), 1)

	transport := &captureTransport{}
	source.bridge.SetTransport(transport)

	alice := makeAddress(0x10)
	remote := makeAddress(0x20)
	if err := source.ledger.Mint(source.minter, alice, tokens(100_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	msg, handle, err := source.bridge.InitiateSend(context.Background(), alice, 2, remote, tokens(40_000))
	if err != nil {
		t.Fatalf("initiate send: %v", err)
	}
	if handle == "" {
		t.Fatal("expected a delivery handle")
	}
	if msg.Amount.Cmp(tokens(40_000)) != 0 {
		t.Fatalf("message amount %s != burned 40000", msg.Amount)
	}
	if msg.Rate.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("message rate %s != sender rate 5e8", msg.Rate)
	}

	if err := dest.bridge.HandleDelivery(transport.payloads[0], 1); err != nil {
		t.Fatalf("handle delivery: %v", err)
	}

	balance, err := dest.ledger.BalanceOf(remote)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(tokens(40_000)) != 0 {
		t.Fatalf("credited %s, burned %s", balance, tokens(40_000))
	}
	rate, _ := dest.ledger.RateOf(remote)
	if rate.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("recipient rate %s should be the carried source rate, not the destination global rate", rate)
	}
}

func TestDuplicateDeliveryMintsOnce(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	dest := newTestDomain(t, 2, big.NewInt(100_000_000), 1)

	transport := &captureTransport{}
	source.bridge.SetTransport(transport)

	alice := makeAddress(0x10)
	remote := makeAddress(0x20)
	if err := source.ledger.Mint(source.minter, alice, tokens(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := source.bridge.InitiateSend(context.Background(), alice, 2, remote, tokens(10)); err != nil {
		t.Fatalf("initiate send: %v", err)
	}

	if err := dest.bridge.HandleDelivery(transport.payloads[0], 1); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	err := dest.bridge.HandleDelivery(transport.payloads[0], 1)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}

	balance, _ := dest.ledger.BalanceOf(remote)
	if balance.Cmp(tokens(10)) != 0 {
		t.Fatalf("duplicate delivery changed balance: %s", balance)
	}
}

func TestReceiveCommitFailureMintsExactlyOnce(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	db := &flakyDB{MemDB: storage.NewMemDB()}
	dest := newTestDomainOn(t, db, 2, big.NewInt(100_000_000), 1)

	transport := &captureTransport{}
	source.bridge.SetTransport(transport)

	alice := makeAddress(0x10)
	remote := makeAddress(0x20)
	if err := source.ledger.Mint(source.minter, alice, tokens(25)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := source.bridge.InitiateSend(context.Background(), alice, 2, remote, tokens(25)); err != nil {
		t.Fatalf("initiate send: %v", err)
	}

	db.failWrites = true
	if err := dest.bridge.HandleDelivery(transport.payloads[0], 1); !errors.Is(err, errDiskFull) {
		t.Fatalf("expected commit failure, got %v", err)
	}

	// The failed apply must leave neither the mint nor the processed
	// record behind.
	balance, _ := dest.ledger.BalanceOf(remote)
	if balance.Sign() != 0 {
		t.Fatalf("failed apply minted anyway: %s", balance)
	}

	// The relay redelivers; this time the apply commits, exactly once.
	db.failWrites = false
	if err := dest.bridge.HandleDelivery(transport.payloads[0], 1); err != nil {
		t.Fatalf("redelivery after recovery: %v", err)
	}
	balance, _ = dest.ledger.BalanceOf(remote)
	if balance.Cmp(tokens(25)) != 0 {
		t.Fatalf("credited %s, want 25 tokens", balance)
	}
	if err := dest.bridge.HandleDelivery(transport.payloads[0], 1); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	balance, _ = dest.ledger.BalanceOf(remote)
	if balance.Cmp(tokens(25)) != 0 {
		t.Fatalf("duplicate delivery changed balance: %s", balance)
	}
}

func TestSendFromEmptyAccountRejected(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	transport := &captureTransport{}
	source.bridge.SetTransport(transport)

	// A sentinel send from an account that never held tokens resolves to
	// a zero burn; it must be refused, not messaged.
	_, _, err := source.bridge.InitiateSend(context.Background(), makeAddress(0x10), 2, makeAddress(0x20), token.SentinelAll())
	if !errors.Is(err, token.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if len(transport.payloads) != 0 {
		t.Fatal("zero-amount send must not hand off a message")
	}
}

func TestReceiveForgedSourceRejected(t *testing.T) {
	dest := newTestDomain(t, 2, big.NewInt(100_000_000), 1)

	// Origin 1 is allow-listed, but the payload claims domain 3 as its
	// source.
	remote := makeAddress(0x20)
	msg := NewMessage(3, 2, 1, remote, tokens(5), big.NewInt(500_000_000))
	err := dest.bridge.ApplyReceive(msg, 1)
	if !errors.Is(err, ErrSourceMismatch) {
		t.Fatalf("expected ErrSourceMismatch, got %v", err)
	}
	balance, _ := dest.ledger.BalanceOf(remote)
	if balance.Sign() != 0 {
		t.Fatalf("forged source must not mint, balance %s", balance)
	}
}

func TestReceiveFromUnknownOriginRejected(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	dest := newTestDomain(t, 2, big.NewInt(100_000_000), 1)

	transport := &captureTransport{}
	source.bridge.SetTransport(transport)

	alice := makeAddress(0x10)
	remote := makeAddress(0x20)
	if err := source.ledger.Mint(source.minter, alice, tokens(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := source.bridge.InitiateSend(context.Background(), alice, 2, remote, tokens(10)); err != nil {
		t.Fatalf("initiate send: %v", err)
	}

	err := dest.bridge.HandleDelivery(transport.payloads[0], 99)
	if !errors.Is(err, ErrUnauthorizedOrigin) {
		t.Fatalf("expected ErrUnauthorizedOrigin, got %v", err)
	}
	balance, _ := dest.ledger.BalanceOf(remote)
	if balance.Sign() != 0 {
		t.Fatalf("rejected origin must not mint, balance %s", balance)
	}
}

func TestReceiveWrongDestinationRejected(t *testing.T) {
	dest := newTestDomain(t, 2, big.NewInt(100_000_000), 1)

	msg := NewMessage(1, 3, 1, makeAddress(0x20), tokens(5), big.NewInt(500_000_000))
	err := dest.bridge.ApplyReceive(msg, 1)
	if !errors.Is(err, ErrWrongDestination) {
		t.Fatalf("expected ErrWrongDestination, got %v", err)
	}
}

func TestTransportRefusalRollsBackBurn(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	transport := &captureTransport{failWith: errors.New("relay down")}
	source.bridge.SetTransport(transport)

	alice := makeAddress(0x10)
	if err := source.ledger.Mint(source.minter, alice, tokens(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, _, err := source.bridge.InitiateSend(context.Background(), alice, 2, makeAddress(0x20), token.SentinelAll())
	if err == nil {
		t.Fatal("expected transport error")
	}

	balance, _ := source.ledger.BalanceOf(alice)
	if balance.Cmp(tokens(100)) != 0 {
		t.Fatalf("burn not restored after refused handoff, balance %s", balance)
	}
	rate, _ := source.ledger.RateOf(alice)
	if rate.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("holder rate lost in rollback: %s", rate)
	}
}

func TestSendInsufficientBalance(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	transport := &captureTransport{}
	source.bridge.SetTransport(transport)

	alice := makeAddress(0x10)
	if err := source.ledger.Mint(source.minter, alice, tokens(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, _, err := source.bridge.InitiateSend(context.Background(), alice, 2, makeAddress(0x20), tokens(2))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(transport.payloads) != 0 {
		t.Fatal("failed send must not hand off a message")
	}
}

func TestSendToLocalDomainRejected(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	source.bridge.SetTransport(&captureTransport{})

	_, _, err := source.bridge.InitiateSend(context.Background(), makeAddress(0x10), 1, makeAddress(0x20), tokens(1))
	if !errors.Is(err, ErrLocalDestination) {
		t.Fatalf("expected ErrLocalDestination, got %v", err)
	}
}

// TestRateJourneyAcrossDomains walks the full scenario: deposit at 5e-10,
// linear accrual, a global rate drop that does not touch the holder, a local
// transfer inheriting the sender's rate, and a bridge hop that carries the
// rate to a second domain.
func TestRateJourneyAcrossDomains(t *testing.T) {
	source := newTestDomain(t, 1, big.NewInt(500_000_000), 2)
	dest := newTestDomain(t, 2, big.NewInt(400_000_000), 1)
	transport := &captureTransport{}
	source.bridge.SetTransport(transport)

	alice := makeAddress(0x10)
	bob := makeAddress(0x11)
	carol := makeAddress(0x20)

	// t=0: deposit 100,000 tokens.
	if err := source.ledger.Mint(source.minter, alice, tokens(100_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// t=1h: balance grew; t=2h: growth is linear.
	*source.now = 3600
	b1, _ := source.ledger.BalanceOf(alice)
	if b1.Cmp(tokens(100_000)) <= 0 {
		t.Fatalf("no accrual after one hour: %s", b1)
	}
	*source.now = 7200
	b2, _ := source.ledger.BalanceOf(alice)
	firstHour := new(big.Int).Sub(b1, tokens(100_000))
	secondHour := new(big.Int).Sub(b2, b1)
	if diff := new(big.Int).Sub(firstHour, secondHour); diff.CmpAbs(big.NewInt(1)) > 0 {
		t.Fatalf("accrual not linear: %s vs %s", firstHour, secondHour)
	}

	// Owner lowers the global rate; raising it back fails; Alice keeps 5e8.
	if err := source.authority.SetRate(source.owner, big.NewInt(400_000_000)); err != nil {
		t.Fatalf("lower rate: %v", err)
	}
	if err := source.authority.SetRate(source.owner, big.NewInt(500_000_000)); !errors.Is(err, token.ErrRateMustNotIncrease) {
		t.Fatalf("expected ErrRateMustNotIncrease, got %v", err)
	}
	rate, _ := source.ledger.RateOf(alice)
	if rate.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("alice rate drifted: %s", rate)
	}

	// Alice transfers half to fresh Bob, who inherits 5e-10.
	half := new(big.Int).Rsh(b2, 1)
	if _, err := source.ledger.Transfer(alice, bob, half); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	bobRate, _ := source.ledger.RateOf(bob)
	if bobRate.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("bob should inherit 5e8, got %s", bobRate)
	}

	// Alice bridges the remainder; Carol on domain 2 receives the exact
	// burned amount with the carried rate.
	msg, _, err := source.bridge.InitiateSend(context.Background(), alice, 2, carol, token.SentinelAll())
	if err != nil {
		t.Fatalf("initiate send: %v", err)
	}
	remaining, _ := source.ledger.BalanceOf(alice)
	if remaining.Sign() != 0 {
		t.Fatalf("sentinel send should empty the account, got %s", remaining)
	}

	if err := dest.bridge.HandleDelivery(transport.payloads[0], 1); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	carolBalance, _ := dest.ledger.BalanceOf(carol)
	if carolBalance.Cmp(msg.Amount) != 0 {
		t.Fatalf("credited %s != burned %s", carolBalance, msg.Amount)
	}
	carolRate, _ := dest.ledger.RateOf(carol)
	if carolRate.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("carol rate %s, want carried 5e8", carolRate)
	}
}
