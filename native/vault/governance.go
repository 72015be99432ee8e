package vault

import (
	"fmt"
	"strconv"

	vaulterrors "yzyvault/core/errors"
	"yzyvault/core/events"
	"yzyvault/crypto"
)

const (
	ParamRewardPeriod   = "rewardPeriod"
	ParamDevFee         = "devFee"
	ParamDevFeeReceiver = "devFeeReceiver"
	ParamUniswapV2Pair  = "uniswapV2Pair"
	ParamYzyAddress     = "yzyAddress"
)

func (e *Engine) governed(caller crypto.Address) (*Global, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	if caller != global.Governance {
		return nil, vaulterrors.ErrUnauthorized
	}
	return global, nil
}

func (e *Engine) paramChanged(global *Global, caller crypto.Address, param, oldValue, newValue string) error {
	if err := e.putGlobal(global); err != nil {
		return err
	}
	e.logger.Info("vault parameter changed", "param", param, "old", oldValue, "new", newValue, "caller", caller.Hex())
	e.emit(events.VaultParamChanged{Param: param, OldValue: oldValue, NewValue: newValue, Caller: caller})
	return nil
}

// ChangeRewardPeriod sets the epoch length in seconds. The epoch in progress
// keeps its boundary; the new length applies from the next epoch.
func (e *Engine) ChangeRewardPeriod(caller crypto.Address, seconds uint64) error {
	global, err := e.governed(caller)
	if err != nil {
		return err
	}
	if seconds == 0 {
		return fmt.Errorf("reward period must be positive: %w", vaulterrors.ErrInvalidParameter)
	}
	old := global.Clock.Period()
	clock, err := global.Clock.WithPeriod(e.now(), seconds)
	if err != nil {
		return fmt.Errorf("%v: %w", err, vaulterrors.ErrInvalidParameter)
	}
	global.Clock = clock
	return e.paramChanged(global, caller, ParamRewardPeriod, strconv.FormatUint(old, 10), strconv.FormatUint(seconds, 10))
}

// ChangeDevFee sets the dev share of every epoch reward in basis points.
// Rewards already settled keep the fee they were settled with.
func (e *Engine) ChangeDevFee(caller crypto.Address, bps uint64) error {
	global, err := e.governed(caller)
	if err != nil {
		return err
	}
	if bps > BasisPoints {
		return fmt.Errorf("dev fee %d exceeds %d bps: %w", bps, BasisPoints, vaulterrors.ErrInvalidParameter)
	}
	old := global.DevFee
	global.DevFee = bps
	return e.paramChanged(global, caller, ParamDevFee, strconv.FormatUint(old, 10), strconv.FormatUint(bps, 10))
}

// ChangeDevFeeReceiver sets the dev payout target. The zero address leaves
// the dev share in the vault.
func (e *Engine) ChangeDevFeeReceiver(caller, receiver crypto.Address) error {
	global, err := e.governed(caller)
	if err != nil {
		return err
	}
	old := global.DevFeeReceiver
	global.DevFeeReceiver = receiver
	return e.paramChanged(global, caller, ParamDevFeeReceiver, old.Hex(), receiver.Hex())
}

// ChangeUniswapV2Pair sets the stakeable token. Existing stake is not
// migrated; unstake returns the currently configured token.
func (e *Engine) ChangeUniswapV2Pair(caller, pair crypto.Address) error {
	global, err := e.governed(caller)
	if err != nil {
		return err
	}
	old := global.UniswapV2Pair
	global.UniswapV2Pair = pair
	return e.paramChanged(global, caller, ParamUniswapV2Pair, old.Hex(), pair.Hex())
}

// ChangeYzyAddress sets the fee-source token.
func (e *Engine) ChangeYzyAddress(caller, token crypto.Address) error {
	global, err := e.governed(caller)
	if err != nil {
		return err
	}
	old := global.YzyAddress
	global.YzyAddress = token
	return e.paramChanged(global, caller, ParamYzyAddress, old.Hex(), token.Hex())
}

// TransferGovernance hands the governance role to next.
func (e *Engine) TransferGovernance(caller, next crypto.Address) error {
	global, err := e.governed(caller)
	if err != nil {
		return err
	}
	if crypto.IsZero(next) {
		return fmt.Errorf("governance address: %w", vaulterrors.ErrInvalidParameter)
	}
	previous := global.Governance
	global.Governance = next
	if err := e.putGlobal(global); err != nil {
		return err
	}
	e.logger.Info("vault governance transferred", "previous", previous.Hex(), "next", next.Hex())
	e.emit(events.VaultGovernanceTransferred{Previous: previous, Next: next})
	return nil
}
