package vault

import (
	"math/big"

	"yzyvault/crypto"
)

// EpochView describes one epoch for read callers.
type EpochView struct {
	Epoch       uint64
	StartTime   uint64
	Period      uint64
	Reward      *big.Int
	TotalStaked *big.Int
	// Materialised reports whether a mutating operation ran inside the epoch.
	Materialised bool
}

// AccountView is the read-side summary of a staker.
type AccountView struct {
	Address      crypto.Address
	TotalStaked  *big.Int
	StartedTime  uint64
	SettledEpoch uint64
	Reward       *big.Int
	Claimed      *big.Int
}

// Global returns a copy of the vault-wide record.
func (e *Engine) Global() (*Global, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return global.Clone(), nil
}

// RewardPeriod returns the configured epoch length in seconds.
func (e *Engine) RewardPeriod() (uint64, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	return global.Clock.Period(), nil
}

// DevFee returns the dev fee in basis points.
func (e *Engine) DevFee() (uint64, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	return global.DevFee, nil
}

// DevFeeReceiver returns the dev payout target.
func (e *Engine) DevFeeReceiver() (crypto.Address, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	return global.DevFeeReceiver, nil
}

// Governance returns the governance account.
func (e *Engine) Governance() (crypto.Address, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	return global.Governance, nil
}

// VaultAddress returns the account custodying stake and fee income.
func (e *Engine) VaultAddress() (crypto.Address, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	return global.VaultAddress, nil
}

// UniswapV2Pair returns the stakeable token.
func (e *Engine) UniswapV2Pair() (crypto.Address, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	return global.UniswapV2Pair, nil
}

// YzyAddress returns the fee-source token.
func (e *Engine) YzyAddress() (crypto.Address, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	return global.YzyAddress, nil
}

// TotalStakedAmount returns the stake held across all accounts.
func (e *Engine) TotalStakedAmount() (*big.Int, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return global.TotalStaked, nil
}

// ContractStartTime returns the opening timestamp of epoch zero.
func (e *Engine) ContractStartTime() (uint64, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	return global.Clock.Start(), nil
}

// LastRewardedTime returns the opening timestamp of the most recently rolled
// epoch.
func (e *Engine) LastRewardedTime() (uint64, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	return global.LastRewardedTime(), nil
}

// CurrentEpoch returns the epoch active now.
func (e *Engine) CurrentEpoch() (uint64, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	return e.currentEpoch(global), nil
}

// EpochAt maps a unix timestamp to its epoch.
func (e *Engine) EpochAt(ts uint64) (uint64, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	return global.Clock.EpochOf(ts), nil
}

// EpochReward returns the fee income credited to epoch.
func (e *Engine) EpochReward(epoch uint64) (*big.Int, error) {
	record, ok, err := e.loadEpoch(epoch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return record.Reward, nil
}

// EpochTotalStakedAmount returns the stake held at the end of epoch, or the
// live total while the epoch is still open. Stake carries forward into
// epochs without a record.
func (e *Engine) EpochTotalStakedAmount(epoch uint64) (*big.Int, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return e.epochTotalStaked(global, epoch)
}

func (e *Engine) epochTotalStaked(global *Global, epoch uint64) (*big.Int, error) {
	if !global.Rolled {
		return big.NewInt(0), nil
	}
	if epoch > global.LastEpoch {
		return new(big.Int).Set(global.TotalStaked), nil
	}
	record, ok, err := e.recordAtOrBefore(global, epoch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return record.TotalStaked, nil
}

// Epoch returns the combined view of one epoch.
func (e *Engine) Epoch(epoch uint64) (*EpochView, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	total, err := e.epochTotalStaked(global, epoch)
	if err != nil {
		return nil, err
	}
	view := &EpochView{
		Epoch:       epoch,
		StartTime:   global.Clock.StartOf(epoch),
		Period:      global.Clock.PeriodOf(epoch),
		Reward:      big.NewInt(0),
		TotalStaked: total,
	}
	record, ok, err := e.loadEpoch(epoch)
	if err != nil {
		return nil, err
	}
	if ok {
		view.Reward = record.Reward
		view.Materialised = true
	}
	return view, nil
}

// UserTotalStakedAmount returns the account's active stake.
func (e *Engine) UserTotalStakedAmount(addr crypto.Address) (*big.Int, error) {
	acct, _, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acct.TotalStaked, nil
}

// UserEpochStakedAmount returns the account's stake as of epoch.
func (e *Engine) UserEpochStakedAmount(epoch uint64, addr crypto.Address) (*big.Int, error) {
	acct, _, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acct.StakeAt(epoch), nil
}

// UserStartedTime returns the opening timestamp of the epoch the account's
// active stake began in, or zero for an account that never staked.
func (e *Engine) UserStartedTime(addr crypto.Address) (uint64, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	acct, _, err := e.loadAccount(addr)
	if err != nil {
		return 0, err
	}
	if !acct.HasStarted {
		return 0, nil
	}
	return global.Clock.StartOf(acct.StartedEpoch), nil
}

// GetReward returns the account's claimable reward for every elapsed epoch,
// net of the dev fee. The open epoch is excluded.
func (e *Engine) GetReward(addr crypto.Address) (*big.Int, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	acct, _, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	s, err := e.accrued(global, acct, e.currentEpoch(global))
	if err != nil {
		return nil, err
	}
	return s.Net.Add(s.Net, acct.Pending), nil
}

// Account returns the read-side summary of addr.
func (e *Engine) Account(addr crypto.Address) (*AccountView, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	acct, _, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	s, err := e.accrued(global, acct, e.currentEpoch(global))
	if err != nil {
		return nil, err
	}
	view := &AccountView{
		Address:      addr,
		TotalStaked:  acct.TotalStaked,
		SettledEpoch: acct.SettledEpoch,
		Reward:       s.Net.Add(s.Net, acct.Pending),
		Claimed:      acct.Claimed,
	}
	if acct.HasStarted {
		view.StartedTime = global.Clock.StartOf(acct.StartedEpoch)
	}
	return view, nil
}
