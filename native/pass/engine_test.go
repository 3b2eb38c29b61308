package pass

import (
	"errors"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"eventpass/core/events"
	repoCrypto "eventpass/crypto"
	"eventpass/storage"
)

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(event events.Event) {
	r.events = append(r.events, event)
}

type engineFixture struct {
	engine    *Engine
	authority *ethcommon.Address
	domain    Domain
	emitter   *recordingEmitter
	transfers map[ethcommon.Address]*big.Int
	members   []ethcommon.Address
	payee     ethcommon.Address
}

func generateAuthority() (*repoCrypto.PrivateKey, error) {
	return repoCrypto.GeneratePrivateKey()
}

func newEngineFixture(t *testing.T) (*engineFixture, func(wallet ethcommon.Address) []byte) {
	t.Helper()
	authorityKey, err := generateAuthority()
	if err != nil {
		t.Fatalf("generate authority: %v", err)
	}
	domain, err := NewDomain(
		"WhitelistToken",
		"1",
		1,
		ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa"),
		authorityKey.PubKey().Address(),
	)
	if err != nil {
		t.Fatalf("new domain: %v", err)
	}

	state := NewManager(storage.NewMemDB())
	members := []ethcommon.Address{
		ethcommon.HexToAddress("0x00000000000000000000000000000000000000a1"),
		ethcommon.HexToAddress("0x00000000000000000000000000000000000000b2"),
		ethcommon.HexToAddress("0x00000000000000000000000000000000000000c3"),
	}
	whitelist, err := NewWhitelist(state, members)
	if err != nil {
		t.Fatalf("new whitelist: %v", err)
	}

	standard, _ := new(big.Int).SetString("200000000000000000", 10)
	discounted, _ := new(big.Int).SetString("150000000000000000", 10)
	premium, _ := new(big.Int).SetString("2000000000000000000", 10)
	prices, err := NewPriceTable(standard, discounted, premium)
	if err != nil {
		t.Fatalf("new price table: %v", err)
	}

	payee := ethcommon.HexToAddress("0x00000000000000000000000000000000000000d4")
	transfers := make(map[ethcommon.Address]*big.Int)
	transfer := func(to ethcommon.Address, amount *big.Int) error {
		if existing, ok := transfers[to]; ok {
			existing.Add(existing, amount)
		} else {
			transfers[to] = new(big.Int).Set(amount)
		}
		return nil
	}
	splitter, err := NewSplitter(state, []Payee{{Address: payee, Shares: 1}}, transfer)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	grants, err := NewGrantLedger(state)
	if err != nil {
		t.Fatalf("new grant ledger: %v", err)
	}

	metadata := Metadata{Name: "HAKKIDAOTEST", Symbol: "HDAO", BaseURI: "#"}
	engine, err := NewEngine(domain, metadata, whitelist, prices, splitter, grants)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1700000000 })

	sign := func(wallet ethcommon.Address) []byte {
		sig, err := SignVoucher(domain, Voucher{Wallet: wallet}, authorityKey)
		if err != nil {
			t.Fatalf("sign voucher: %v", err)
		}
		return sig
	}
	authority := authorityKey.PubKey().Address()
	return &engineFixture{
		engine:    engine,
		authority: &authority,
		domain:    domain,
		emitter:   emitter,
		transfers: transfers,
		members:   members,
		payee:     payee,
	}, sign
}

func TestEngineEndToEnd(t *testing.T) {
	fx, sign := newEngineFixture(t)
	engine := fx.engine
	memberA, memberB := fx.members[0], fx.members[1]
	price, _ := new(big.Int).SetString("200000000000000000", 10)

	// A redeems standard tier at the exact price.
	grant, err := engine.Redeem(memberA, sign(memberA), TierStandard, price)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if grant.Recipient != memberA || grant.Tier != TierStandard {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if grant.Timestamp != 1700000000 {
		t.Fatalf("grant timestamp = %d", grant.Timestamp)
	}
	total, err := engine.Splitter().TotalReceived()
	if err != nil {
		t.Fatalf("totalReceived: %v", err)
	}
	if total.Cmp(price) != 0 {
		t.Fatalf("totalReceived = %s, want %s", total, price)
	}

	// Resubmitting the same voucher is rejected without touching state.
	if _, err := engine.Redeem(memberA, sign(memberA), TierStandard, price); !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed, got %v", err)
	}
	total, _ = engine.Splitter().TotalReceived()
	if total.Cmp(price) != 0 {
		t.Fatalf("totalReceived changed on rejection: %s", total)
	}

	// D holds a validly signed voucher but was never whitelisted.
	outsider := ethcommon.HexToAddress("0x00000000000000000000000000000000000000ee")
	if _, err := engine.Redeem(outsider, sign(outsider), TierStandard, price); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted, got %v", err)
	}

	// B pays the wrong amount.
	if _, err := engine.Redeem(memberB, sign(memberB), TierStandard, big.NewInt(100)); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch, got %v", err)
	}
	if err := engine.Whitelist().Eligibility(memberB); err != nil {
		t.Fatalf("B should remain eligible after rejection, got %v", err)
	}

	// P withdraws the full settlement.
	amount, err := engine.Withdraw(fx.payee)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(price) != 0 {
		t.Fatalf("withdrew %s, want %s", amount, price)
	}
	if fx.transfers[fx.payee].Cmp(price) != 0 {
		t.Fatalf("transferred %s, want %s", fx.transfers[fx.payee], price)
	}
	if _, err := engine.Withdraw(fx.payee); !errors.Is(err, ErrNothingToRelease) {
		t.Fatalf("expected ErrNothingToRelease, got %v", err)
	}
}

func TestEngineRejectsOverAndUnderPayment(t *testing.T) {
	fx, sign := newEngineFixture(t)
	member := fx.members[0]
	price, _ := new(big.Int).SetString("150000000000000000", 10)

	over := new(big.Int).Add(price, big.NewInt(1))
	if _, err := fx.engine.Redeem(member, sign(member), TierDiscounted, over); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch for overpayment, got %v", err)
	}
	under := new(big.Int).Sub(price, big.NewInt(1))
	if _, err := fx.engine.Redeem(member, sign(member), TierDiscounted, under); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch for underpayment, got %v", err)
	}
	if _, err := fx.engine.Redeem(member, sign(member), TierDiscounted, nil); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch for missing payment, got %v", err)
	}
	if _, err := fx.engine.Redeem(member, sign(member), TierDiscounted, price); err != nil {
		t.Fatalf("exact payment should settle: %v", err)
	}
}

func TestEngineRejectsUnknownTier(t *testing.T) {
	fx, sign := newEngineFixture(t)
	member := fx.members[0]
	if _, err := fx.engine.Redeem(member, sign(member), Tier(7), big.NewInt(1)); !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}

func TestEngineRejectsForgedSignature(t *testing.T) {
	fx, _ := newEngineFixture(t)
	member := fx.members[0]
	price, _ := new(big.Int).SetString("200000000000000000", 10)

	forger, err := generateAuthority()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	forged, err := SignVoucher(fx.domain, Voucher{Wallet: member}, forger)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := fx.engine.Redeem(member, forged, TierStandard, price); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := fx.engine.Whitelist().Eligibility(member); err != nil {
		t.Fatalf("member should remain eligible after forged attempt, got %v", err)
	}
}

func TestEngineSignatureBoundToCaller(t *testing.T) {
	fx, sign := newEngineFixture(t)
	memberA, memberB := fx.members[0], fx.members[1]
	price, _ := new(big.Int).SetString("200000000000000000", 10)

	// B cannot redeem with A's voucher: the caller identity is the signed wallet.
	if _, err := fx.engine.Redeem(memberB, sign(memberA), TierStandard, price); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestEngineEmitsGrantAndSplitterEvents(t *testing.T) {
	fx, sign := newEngineFixture(t)
	member := fx.members[0]
	price, _ := new(big.Int).SetString("200000000000000000", 10)

	if _, err := fx.engine.Redeem(member, sign(member), TierStandard, price); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if len(fx.emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(fx.emitter.events))
	}
	if fx.emitter.events[0].EventType() != events.TypeSplitterCredited {
		t.Fatalf("first event = %s", fx.emitter.events[0].EventType())
	}
	granted, ok := fx.emitter.events[1].(events.PassGranted)
	if !ok {
		t.Fatalf("second event = %T", fx.emitter.events[1])
	}
	if granted.Recipient != member || granted.Tier != "standard" {
		t.Fatalf("unexpected grant event %+v", granted)
	}
	payload := granted.Event()
	if payload.Attributes["amount"] != price.String() {
		t.Fatalf("event amount = %s", payload.Attributes["amount"])
	}

	// Rejections must not emit.
	before := len(fx.emitter.events)
	if _, err := fx.engine.Redeem(member, sign(member), TierStandard, price); !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed, got %v", err)
	}
	if len(fx.emitter.events) != before {
		t.Fatal("rejection emitted an event")
	}
}

func TestEngineGrantLedgerTrail(t *testing.T) {
	fx, sign := newEngineFixture(t)
	memberA, memberB := fx.members[0], fx.members[1]
	standard, _ := new(big.Int).SetString("200000000000000000", 10)
	premium, _ := new(big.Int).SetString("2000000000000000000", 10)

	if _, err := fx.engine.Redeem(memberA, sign(memberA), TierStandard, standard); err != nil {
		t.Fatalf("redeem A: %v", err)
	}
	if _, err := fx.engine.Redeem(memberB, sign(memberB), TierPremium, premium); err != nil {
		t.Fatalf("redeem B: %v", err)
	}

	grants, err := fx.engine.Grants()
	if err != nil {
		t.Fatalf("grants: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}
	if grants[0].Seq != 0 || grants[1].Seq != 1 {
		t.Fatalf("unexpected sequence %d, %d", grants[0].Seq, grants[1].Seq)
	}
	if grants[1].Recipient != memberB || grants[1].Tier != TierPremium {
		t.Fatalf("unexpected second grant %+v", grants[1])
	}

	forA, err := fx.engine.GrantsFor(memberA)
	if err != nil {
		t.Fatalf("grantsFor: %v", err)
	}
	if len(forA) != 1 || forA[0].Amount.Cmp(standard) != 0 {
		t.Fatalf("unexpected grants for A: %+v", forA)
	}
}
