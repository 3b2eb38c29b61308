package events

import (
	"math/big"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"eventpass/core/types"
)

const (
	// TypePassGranted is emitted whenever a voucher redemption settles.
	TypePassGranted = "pass.granted"
	// TypeSplitterCredited is emitted when the payment splitter receives funds.
	TypeSplitterCredited = "splitter.credited"
	// TypeSplitterReleased is emitted when a payee withdraws its entitlement.
	TypeSplitterReleased = "splitter.released"
)

// PassGranted is the only externally observable success signal of a
// redemption. Rejections are synchronous errors and never emit.
type PassGranted struct {
	Recipient ethcommon.Address
	Tier      string
	Amount    *big.Int
	Timestamp int64
}

func (PassGranted) EventType() string { return TypePassGranted }

func (e PassGranted) Event() *types.Event {
	amount := e.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	return &types.Event{
		Type: TypePassGranted,
		Attributes: map[string]string{
			"recipient": e.Recipient.Hex(),
			"tier":      e.Tier,
			"amount":    amount.String(),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// SplitterCredited records a payment entering the splitter ledger.
type SplitterCredited struct {
	Amount        *big.Int
	TotalReceived *big.Int
}

func (SplitterCredited) EventType() string { return TypeSplitterCredited }

func (e SplitterCredited) Event() *types.Event {
	amount := e.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	total := e.TotalReceived
	if total == nil {
		total = big.NewInt(0)
	}
	return &types.Event{
		Type: TypeSplitterCredited,
		Attributes: map[string]string{
			"amount":        amount.String(),
			"totalReceived": total.String(),
		},
	}
}

// SplitterReleased records a completed payee withdrawal.
type SplitterReleased struct {
	Payee  ethcommon.Address
	Amount *big.Int
}

func (SplitterReleased) EventType() string { return TypeSplitterReleased }

func (e SplitterReleased) Event() *types.Event {
	amount := e.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	return &types.Event{
		Type: TypeSplitterReleased,
		Attributes: map[string]string{
			"payee":  e.Payee.Hex(),
			"amount": amount.String(),
		},
	}
}
