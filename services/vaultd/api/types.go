// Package api holds the JSON payloads exchanged with vaultd. Amounts are
// base-unit decimal strings; addresses are 0x-prefixed hex.
package api

import "yzyvault/core/types"

type VaultSummary struct {
	Governance        string `json:"governance"`
	VaultAddress      string `json:"vaultAddress"`
	UniswapV2Pair     string `json:"uniswapV2Pair"`
	YzyAddress        string `json:"yzyAddress"`
	DevFeeReceiver    string `json:"devFeeReceiver"`
	DevFee            uint64 `json:"devFee"`
	RewardPeriod      uint64 `json:"rewardPeriod"`
	ContractStartTime uint64 `json:"contractStartTime"`
	LastRewardedTime  uint64 `json:"lastRewardedTime"`
	CurrentEpoch      uint64 `json:"currentEpoch"`
	TotalStaked       string `json:"totalStakedAmount"`
	TotalDeposited    string `json:"totalDeposited"`
	TotalPaid         string `json:"totalPaid"`
	TotalDevPaid      string `json:"totalDevPaid"`
	Undistributed     string `json:"undistributed"`
}

type Epoch struct {
	Epoch        uint64 `json:"epoch"`
	StartTime    uint64 `json:"startTime"`
	Period       uint64 `json:"period"`
	Reward       string `json:"epochReward"`
	TotalStaked  string `json:"epochTotalStakedAmount"`
	Materialised bool   `json:"materialised"`
}

type Account struct {
	Address      string `json:"address"`
	TotalStaked  string `json:"userTotalStakedAmount"`
	StartedTime  uint64 `json:"userStartedTime"`
	SettledEpoch uint64 `json:"settledEpoch"`
	Reward       string `json:"reward"`
	Claimed      string `json:"claimed"`
}

type Reward struct {
	Address string `json:"address"`
	Reward  string `json:"reward"`
}

type AccountEpoch struct {
	Address string `json:"address"`
	Epoch   uint64 `json:"epoch"`
	Staked  string `json:"userEpochStakedAmount"`
}

type Token struct {
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply string   `json:"totalSupply"`
	TransferFee uint64   `json:"transferFee"`
	Paused      bool     `json:"paused"`
	Governance  string   `json:"governance"`
	Vault       string   `json:"vault"`
	Exempt      []string `json:"exempt,omitempty"`
}

type Balance struct {
	Token   string `json:"token"`
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

type Allowance struct {
	Token     string `json:"token"`
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApproveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// ValueRequest carries a governance parameter: a number for fees and periods,
// an address for receivers, tokens and owners.
type ValueRequest struct {
	Value string `json:"value"`
}

type ExemptRequest struct {
	Holder string `json:"holder"`
	Exempt bool   `json:"exempt"`
}

type ClaimResponse struct {
	Paid string `json:"paid"`
}

type Events struct {
	Events []*types.Event `json:"events"`
}

type Error struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}
