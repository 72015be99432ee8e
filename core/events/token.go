package events

import (
	"math/big"

	"yzyvault/core/types"
	"yzyvault/crypto"
)

const (
	// TypeTokenTransfer is emitted for every balance movement.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when an allowance is set.
	TypeTokenApproval = "token.approval"
	// TypeTokenParamChanged is emitted for token governance updates.
	TypeTokenParamChanged = "token.paramChanged"
)

// TokenTransfer captures a transfer and the fee withheld from it.
type TokenTransfer struct {
	Token  crypto.Address
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
	Fee    *big.Int
}

// EventType satisfies the Event interface.
func (TokenTransfer) EventType() string { return TypeTokenTransfer }

// Event converts the structured payload into a broadcastable event.
func (e TokenTransfer) Event() *types.Event {
	attrs := map[string]string{
		"token":  e.Token.Hex(),
		"from":   e.From.Hex(),
		"to":     e.To.Hex(),
		"amount": formatAmount(e.Amount),
	}
	if e.Fee != nil && e.Fee.Sign() > 0 {
		attrs["fee"] = e.Fee.String()
	}
	return &types.Event{Type: TypeTokenTransfer, Attributes: attrs}
}

// TokenApproval captures an allowance update.
type TokenApproval struct {
	Token   crypto.Address
	Owner   crypto.Address
	Spender crypto.Address
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (TokenApproval) EventType() string { return TypeTokenApproval }

// Event converts the structured payload into a broadcastable event.
func (e TokenApproval) Event() *types.Event {
	return &types.Event{Type: TypeTokenApproval, Attributes: map[string]string{
		"token":   e.Token.Hex(),
		"owner":   e.Owner.Hex(),
		"spender": e.Spender.Hex(),
		"amount":  formatAmount(e.Amount),
	}}
}

// TokenParamChanged records a token governance update.
type TokenParamChanged struct {
	Token    crypto.Address
	Param    string
	NewValue string
	Caller   crypto.Address
}

// EventType satisfies the Event interface.
func (TokenParamChanged) EventType() string { return TypeTokenParamChanged }

// Event converts the structured payload into a broadcastable event.
func (e TokenParamChanged) Event() *types.Event {
	return &types.Event{Type: TypeTokenParamChanged, Attributes: map[string]string{
		"token":  e.Token.Hex(),
		"param":  e.Param,
		"new":    e.NewValue,
		"caller": e.Caller.Hex(),
	}}
}
