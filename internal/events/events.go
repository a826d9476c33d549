package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is a single observation emitted by the accounting engine. Concrete
// types carry the exact fields callers and the journal rely on.
type Event interface {
	EventType() string
}

const (
	TypeWithdrawFeeCollected    = "WithdrawFeeCollected"
	TypeToMainnet               = "ToMainnet"
	TypeFromMainnet             = "FromMainnet"
	TypeExcessWithdrawRequested = "ExcessWithdrawRequested"
	TypeExcessWithdrawExecuted  = "ExcessWithdrawExecuted"
	TypeFromVault               = "FromVault"
	TypeExcessWithdrawFulfilled = "ExcessWithdrawFulfilled"
)

type WithdrawFeeCollected struct {
	Payer string          `json:"payer"`
	Fee   decimal.Decimal `json:"fee"`
}

func (WithdrawFeeCollected) EventType() string { return TypeWithdrawFeeCollected }

type ToMainnet struct {
	AmountMoved   decimal.Decimal `json:"amount_moved"`
	BridgeAddress string          `json:"bridge_address"`
}

func (ToMainnet) EventType() string { return TypeToMainnet }

type FromMainnet struct {
	AmountMoved   decimal.Decimal `json:"amount_moved"`
	BridgeAddress string          `json:"bridge_address"`
}

func (FromMainnet) EventType() string { return TypeFromMainnet }

type ExcessWithdrawRequested struct {
	Owner    string          `json:"owner"`
	Receiver string          `json:"receiver"`
	Assets   decimal.Decimal `json:"assets"`
}

func (ExcessWithdrawRequested) EventType() string { return TypeExcessWithdrawRequested }

type ExcessWithdrawExecuted struct {
	Receiver string          `json:"receiver"`
	Assets   decimal.Decimal `json:"assets"`
}

func (ExcessWithdrawExecuted) EventType() string { return TypeExcessWithdrawExecuted }

type FromVault struct {
	AmountMoved  decimal.Decimal `json:"amount_moved"`
	SharesBurned decimal.Decimal `json:"shares_burned"`
}

func (FromVault) EventType() string { return TypeFromVault }

type ExcessWithdrawFulfilled struct {
	AmountMoved  decimal.Decimal `json:"amount_moved"`
	SharesBurned decimal.Decimal `json:"shares_burned"`
}

func (ExcessWithdrawFulfilled) EventType() string { return TypeExcessWithdrawFulfilled }

// Envelope wraps an event with delivery metadata for subscribers and the
// journal.
type Envelope struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data Event     `json:"data"`
}

func Wrap(ev Event) Envelope {
	return Envelope{
		ID:   uuid.NewString(),
		Type: ev.EventType(),
		At:   time.Now().UTC(),
		Data: ev,
	}
}

// Recorder receives events as operations commit. Services call Record after
// internal accounting is final, never before.
type Recorder interface {
	Record(ev Event)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ev Event)

func (f RecorderFunc) Record(ev Event) { f(ev) }

// Discard drops every event. Useful default when no sink is wired.
var Discard Recorder = RecorderFunc(func(Event) {})
