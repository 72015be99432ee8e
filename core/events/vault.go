package events

import (
	"math/big"

	"yzyvault/core/types"
	"yzyvault/crypto"
)

const (
	// TypeVaultStaked is emitted when LP tokens move into vault custody.
	TypeVaultStaked = "vault.staked"
	// TypeVaultUnstaked is emitted when LP tokens are returned to a staker.
	TypeVaultUnstaked = "vault.unstaked"
	// TypeVaultRewardClaimed is emitted when a reward payout leaves the vault.
	TypeVaultRewardClaimed = "vault.rewardClaimed"
	// TypeVaultFeeDeposited is emitted when fee income is credited to an epoch.
	TypeVaultFeeDeposited = "vault.feeDeposited"
	// TypeVaultEpochRolled marks the first mutation inside a new epoch.
	TypeVaultEpochRolled = "vault.epochRolled"
	// TypeVaultParamChanged is emitted for every governance setter.
	TypeVaultParamChanged = "vault.paramChanged"
	// TypeVaultGovernanceTransferred is emitted when the governance role moves.
	TypeVaultGovernanceTransferred = "vault.governanceTransferred"
)

// VaultStaked captures a stake deposit.
type VaultStaked struct {
	Account     crypto.Address
	Amount      *big.Int
	Epoch       uint64
	TotalStaked *big.Int
}

// EventType satisfies the Event interface.
func (VaultStaked) EventType() string { return TypeVaultStaked }

// Event converts the structured payload into a broadcastable event.
func (e VaultStaked) Event() *types.Event {
	return &types.Event{Type: TypeVaultStaked, Attributes: map[string]string{
		"account":     e.Account.Hex(),
		"amount":      formatAmount(e.Amount),
		"epoch":       formatUint(e.Epoch),
		"totalStaked": formatAmount(e.TotalStaked),
	}}
}

// VaultUnstaked captures a stake withdrawal.
type VaultUnstaked struct {
	Account     crypto.Address
	Amount      *big.Int
	Epoch       uint64
	TotalStaked *big.Int
}

// EventType satisfies the Event interface.
func (VaultUnstaked) EventType() string { return TypeVaultUnstaked }

// Event converts the structured payload into a broadcastable event.
func (e VaultUnstaked) Event() *types.Event {
	return &types.Event{Type: TypeVaultUnstaked, Attributes: map[string]string{
		"account":     e.Account.Hex(),
		"amount":      formatAmount(e.Amount),
		"epoch":       formatUint(e.Epoch),
		"totalStaked": formatAmount(e.TotalStaked),
	}}
}

// VaultRewardClaimed captures a reward payout and the dev share routed with it.
type VaultRewardClaimed struct {
	Account        crypto.Address
	Paid           *big.Int
	DevFee         *big.Int
	DevFeeReceiver crypto.Address
	FromEpoch      uint64
	ToEpoch        uint64
}

// EventType satisfies the Event interface.
func (VaultRewardClaimed) EventType() string { return TypeVaultRewardClaimed }

// Event converts the structured payload into a broadcastable event.
func (e VaultRewardClaimed) Event() *types.Event {
	attrs := map[string]string{
		"account":   e.Account.Hex(),
		"paid":      formatAmount(e.Paid),
		"devFee":    formatAmount(e.DevFee),
		"fromEpoch": formatUint(e.FromEpoch),
		"toEpoch":   formatUint(e.ToEpoch),
	}
	if receiver := formatAddress(e.DevFeeReceiver); receiver != "" {
		attrs["devFeeReceiver"] = receiver
	}
	return &types.Event{Type: TypeVaultRewardClaimed, Attributes: attrs}
}

// VaultFeeDeposited captures fee income credited to an epoch.
type VaultFeeDeposited struct {
	Source      crypto.Address
	Amount      *big.Int
	Epoch       uint64
	EpochReward *big.Int
}

// EventType satisfies the Event interface.
func (VaultFeeDeposited) EventType() string { return TypeVaultFeeDeposited }

// Event converts the structured payload into a broadcastable event.
func (e VaultFeeDeposited) Event() *types.Event {
	return &types.Event{Type: TypeVaultFeeDeposited, Attributes: map[string]string{
		"source":      e.Source.Hex(),
		"amount":      formatAmount(e.Amount),
		"epoch":       formatUint(e.Epoch),
		"epochReward": formatAmount(e.EpochReward),
	}}
}

// VaultEpochRolled marks that the ledger has materialised a new epoch.
type VaultEpochRolled struct {
	Epoch       uint64
	StartedAt   uint64
	TotalStaked *big.Int
}

// EventType satisfies the Event interface.
func (VaultEpochRolled) EventType() string { return TypeVaultEpochRolled }

// Event converts the structured payload into a broadcastable event.
func (e VaultEpochRolled) Event() *types.Event {
	return &types.Event{Type: TypeVaultEpochRolled, Attributes: map[string]string{
		"epoch":       formatUint(e.Epoch),
		"startedAt":   formatUint(e.StartedAt),
		"totalStaked": formatAmount(e.TotalStaked),
	}}
}

// VaultParamChanged records a governance parameter update.
type VaultParamChanged struct {
	Param    string
	OldValue string
	NewValue string
	Caller   crypto.Address
}

// EventType satisfies the Event interface.
func (VaultParamChanged) EventType() string { return TypeVaultParamChanged }

// Event converts the structured payload into a broadcastable event.
func (e VaultParamChanged) Event() *types.Event {
	return &types.Event{Type: TypeVaultParamChanged, Attributes: map[string]string{
		"param":  e.Param,
		"old":    e.OldValue,
		"new":    e.NewValue,
		"caller": e.Caller.Hex(),
	}}
}

// VaultGovernanceTransferred records a change of the governance account.
type VaultGovernanceTransferred struct {
	Previous crypto.Address
	Next     crypto.Address
}

// EventType satisfies the Event interface.
func (VaultGovernanceTransferred) EventType() string { return TypeVaultGovernanceTransferred }

// Event converts the structured payload into a broadcastable event.
func (e VaultGovernanceTransferred) Event() *types.Event {
	return &types.Event{Type: TypeVaultGovernanceTransferred, Attributes: map[string]string{
		"previous": e.Previous.Hex(),
		"next":     e.Next.Hex(),
	}}
}
