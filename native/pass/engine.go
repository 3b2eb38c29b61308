package pass

import (
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"eventpass/core/events"
)

// Metadata carries the pass-through token display configuration. The engine
// never interprets it.
type Metadata struct {
	Name    string
	Symbol  string
	BaseURI string
}

// Engine is the settlement orchestrator. A redemption moves through
// Received -> Verifying -> Authorized -> Settled, with every verification
// failure exiting to Rejected before any state is touched. Verification is
// fully speculative: the whitelist consume in the Authorized stage is the
// first mutation, and the splitter credit happens only after it succeeds.
type Engine struct {
	domain    Domain
	metadata  Metadata
	whitelist *Whitelist
	prices    *PriceTable
	splitter  *Splitter
	grants    *GrantLedger
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine wires the orchestrator from its sealed components.
func NewEngine(domain Domain, metadata Metadata, whitelist *Whitelist, prices *PriceTable, splitter *Splitter, grants *GrantLedger) (*Engine, error) {
	if whitelist == nil {
		return nil, fmt.Errorf("pass: engine whitelist not configured")
	}
	if prices == nil {
		return nil, fmt.Errorf("pass: engine price table not configured")
	}
	if splitter == nil {
		return nil, fmt.Errorf("pass: engine splitter not configured")
	}
	if grants == nil {
		return nil, fmt.Errorf("pass: engine grant ledger not configured")
	}
	return &Engine{
		domain:    domain,
		metadata:  metadata,
		whitelist: whitelist,
		prices:    prices,
		splitter:  splitter,
		grants:    grants,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Domain returns the sealed domain descriptor.
func (e *Engine) Domain() Domain { return e.domain }

// Metadata returns the pass-through token metadata.
func (e *Engine) Metadata() Metadata { return e.metadata }

// Redeem settles one voucher redemption. The caller's own identity is the
// voucher recipient; tier and payment arrive outside the signature. Checks
// run in order (signature, eligibility, exact price) and any failure rejects
// the invocation with its specific kind before anything mutates. The consume
// that follows is double-checked, so two racing calls for the same identity
// resolve to exactly one settlement.
func (e *Engine) Redeem(caller ethcommon.Address, signature []byte, tier Tier, payment *big.Int) (*Grant, error) {
	voucher := Voucher{Wallet: caller}

	// Verifying: all checks are read-only.
	if err := VerifyVoucher(e.domain, voucher, signature); err != nil {
		return nil, err
	}
	if err := e.whitelist.Eligibility(caller); err != nil {
		return nil, err
	}
	price, err := e.prices.PriceOf(tier)
	if err != nil {
		return nil, err
	}
	if payment == nil || price.Cmp(payment) != 0 {
		return nil, ErrPriceMismatch
	}

	// Authorized: consume is the first mutation. A lost race surfaces here as
	// ErrAlreadyConsumed with nothing else to undo.
	if err := e.whitelist.Consume(caller); err != nil {
		return nil, err
	}

	// Settled.
	total, err := e.splitter.Credit(payment)
	if err != nil {
		return nil, fmt.Errorf("pass: credit settlement: %w", err)
	}
	grant, err := e.grants.Append(&Grant{
		Recipient: caller,
		Tier:      tier,
		Amount:    payment,
		Timestamp: e.nowFn(),
	})
	if err != nil {
		return nil, fmt.Errorf("pass: record grant: %w", err)
	}
	e.emitter.Emit(events.SplitterCredited{Amount: new(big.Int).Set(payment), TotalReceived: total})
	e.emitter.Emit(events.PassGranted{
		Recipient: grant.Recipient,
		Tier:      grant.Tier.String(),
		Amount:    new(big.Int).Set(grant.Amount),
		Timestamp: grant.Timestamp,
	})
	return grant, nil
}

// Withdraw pays out the payee's pending splitter entitlement.
func (e *Engine) Withdraw(payee ethcommon.Address) (*big.Int, error) {
	amount, err := e.splitter.Withdraw(payee)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(events.SplitterReleased{Payee: payee, Amount: new(big.Int).Set(amount)})
	return amount, nil
}

// Releasable reports the payee's pending entitlement without mutating state.
func (e *Engine) Releasable(payee ethcommon.Address) (*big.Int, error) {
	return e.splitter.Releasable(payee)
}

// Splitter exposes the sealed splitter for queries.
func (e *Engine) Splitter() *Splitter { return e.splitter }

// Whitelist exposes the sealed registry for queries.
func (e *Engine) Whitelist() *Whitelist { return e.whitelist }

// Prices exposes the sealed tier price table.
func (e *Engine) Prices() *PriceTable { return e.prices }

// Grants returns the settled grant trail.
func (e *Engine) Grants() ([]*Grant, error) {
	return e.grants.List()
}

// GrantsFor returns the grants settled for a single recipient.
func (e *Engine) GrantsFor(recipient ethcommon.Address) ([]*Grant, error) {
	return e.grants.ByRecipient(recipient)
}
