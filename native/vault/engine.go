package vault

import (
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"yzyvault/core/epoch"
	vaulterrors "yzyvault/core/errors"
	"yzyvault/core/events"
	"yzyvault/crypto"
)

// Bank moves tokens on behalf of the vault. Rewards are paid in the fee-source
// token, stake is custodied in the stakeable token.
type Bank interface {
	Transfer(token, from, to crypto.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to crypto.Address, amount *big.Int) error
}

// Engine owns every mutation of the vault ledger. It is not safe for
// concurrent use; callers serialise access through the state manager. Ledger
// writes are staged before the transfer legs run, so each operation must run
// inside a transaction that is discarded when it returns an error.
type Engine struct {
	state   engineState
	bank    Bank
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() time.Time
}

// NewEngine constructs an engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default().With("module", "vault"),
		nowFn:   time.Now,
	}
}

// SetState wires the key/value accessor backing the ledger.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank wires the token ledger used for transfer legs.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger.With("module", "vault")
	}
}

// SetNowFunc overrides the clock used to derive the current epoch.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now != nil {
		e.nowFn = now
	}
}

func (e *Engine) now() uint64 {
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(ev events.Event) { e.emitter.Emit(ev.Event()) }

// currentEpoch never moves backwards past the last rolled epoch.
func (e *Engine) currentEpoch(global *Global) uint64 {
	cur := global.Clock.EpochOf(e.now())
	if global.Rolled && cur < global.LastEpoch {
		return global.LastEpoch
	}
	return cur
}

// Initialize stores the genesis configuration. It fails if the vault already
// exists.
func (e *Engine) Initialize(params Params) error {
	if e.state == nil {
		return ErrNotInitialised
	}
	if err := params.Validate(); err != nil {
		return err
	}
	exists, err := e.state.KVGet(globalKey, nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("vault: already initialised")
	}
	clock, err := epoch.NewClock(params.StartTime, params.RewardPeriod)
	if err != nil {
		return err
	}
	global := &Global{
		Clock:          clock,
		Governance:     params.Governance,
		VaultAddress:   params.VaultAddress,
		UniswapV2Pair:  params.UniswapV2Pair,
		YzyAddress:     params.YzyAddress,
		DevFee:         params.DevFee,
		DevFeeReceiver: params.DevFeeReceiver,
	}
	global.normalize()
	return e.putGlobal(global)
}

// cursor is the epoch record a mutating operation writes to.
type cursor struct {
	epoch  uint64
	record *EpochRecord
	rolled bool
}

// rollover materialises the record of epoch cur, seeding its total stake from
// the global total. The record is only persisted by commit, so accounts must be
// settled before rollover moves the chain head.
func (e *Engine) rollover(global *Global, cur uint64) (*cursor, error) {
	if global.Rolled && global.LastEpoch == cur {
		record, ok, err := e.loadEpoch(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("vault: epoch %d record missing", cur)
		}
		return &cursor{epoch: cur, record: record}, nil
	}
	record := &EpochRecord{
		Epoch:       cur,
		Reward:      big.NewInt(0),
		TotalStaked: new(big.Int).Set(global.TotalStaked),
		Prev:        global.LastEpoch,
		HasPrev:     global.Rolled,
	}
	global.LastEpoch = cur
	global.Rolled = true
	return &cursor{epoch: cur, record: record, rolled: true}, nil
}

func (e *Engine) commit(global *Global, c *cursor) error {
	if err := e.putEpoch(c.record); err != nil {
		return err
	}
	if err := e.putGlobal(global); err != nil {
		return err
	}
	if c.rolled {
		e.logger.Debug("epoch rolled", "epoch", c.epoch, "totalStaked", c.record.TotalStaked.String())
		e.emit(events.VaultEpochRolled{
			Epoch:       c.epoch,
			StartedAt:   global.Clock.StartOf(c.epoch),
			TotalStaked: new(big.Int).Set(c.record.TotalStaked),
		})
	}
	return nil
}

// Stake moves amount of the stakeable token from account into vault custody.
// The account must have approved the vault address for at least amount.
func (e *Engine) Stake(account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return vaulterrors.ErrInvalidAmount
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	if crypto.IsZero(global.UniswapV2Pair) {
		return vaulterrors.ErrNoStakeableAsset
	}
	if e.bank == nil {
		return fmt.Errorf("vault: bank not configured")
	}
	acct, _, err := e.loadAccount(account)
	if err != nil {
		return err
	}
	cur := e.currentEpoch(global)
	if err := e.settle(global, acct, cur); err != nil {
		return err
	}
	c, err := e.rollover(global, cur)
	if err != nil {
		return err
	}

	if acct.TotalStaked.Sign() == 0 {
		if !acct.HasStarted {
			acct.PaidThrough = c.epoch
		}
		acct.StartedEpoch = c.epoch
		acct.HasStarted = true
	}
	acct.TotalStaked.Add(acct.TotalStaked, amount)
	acct.checkpoint(c.epoch)
	global.TotalStaked.Add(global.TotalStaked, amount)
	c.record.TotalStaked.Add(c.record.TotalStaked, amount)

	if err := e.putAccount(account, acct); err != nil {
		return err
	}
	if err := e.commit(global, c); err != nil {
		return err
	}
	if err := e.bank.TransferFrom(global.UniswapV2Pair, global.VaultAddress, account, global.VaultAddress, amount); err != nil {
		return fmt.Errorf("vault: stake transfer: %w", err)
	}

	e.logger.Info("stake", "account", account.Hex(), "amount", amount.String(), "epoch", c.epoch)
	e.emit(events.VaultStaked{
		Account:     account,
		Amount:      new(big.Int).Set(amount),
		Epoch:       c.epoch,
		TotalStaked: new(big.Int).Set(global.TotalStaked),
	})
	return nil
}

// Unstake returns amount of the stakeable token to account and pays out any
// reward settled for the elapsed epochs. Partial withdrawals beyond the staked
// balance are rejected.
func (e *Engine) Unstake(account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return vaulterrors.ErrInvalidAmount
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	acct, _, err := e.loadAccount(account)
	if err != nil {
		return err
	}
	if amount.Cmp(acct.TotalStaked) > 0 {
		return fmt.Errorf("unstake %s with %s staked: %w", amount, acct.TotalStaked, vaulterrors.ErrInsufficientBalance)
	}
	if crypto.IsZero(global.UniswapV2Pair) {
		return vaulterrors.ErrNoStakeableAsset
	}
	if e.bank == nil {
		return fmt.Errorf("vault: bank not configured")
	}
	cur := e.currentEpoch(global)
	if err := e.settle(global, acct, cur); err != nil {
		return err
	}
	c, err := e.rollover(global, cur)
	if err != nil {
		return err
	}

	acct.TotalStaked.Sub(acct.TotalStaked, amount)
	acct.checkpoint(c.epoch)
	global.TotalStaked.Sub(global.TotalStaked, amount)
	c.record.TotalStaked.Sub(c.record.TotalStaked, amount)

	var reward *payout
	if owed(global, acct) && !crypto.IsZero(global.YzyAddress) {
		reward = e.preparePayout(global, acct, c.epoch)
	}

	if err := e.putAccount(account, acct); err != nil {
		return err
	}
	if err := e.commit(global, c); err != nil {
		return err
	}
	if err := e.bank.Transfer(global.UniswapV2Pair, global.VaultAddress, account, amount); err != nil {
		return fmt.Errorf("vault: unstake transfer: %w", err)
	}
	if reward != nil {
		if err := e.pay(global, account, reward); err != nil {
			return err
		}
	}

	e.logger.Info("unstake", "account", account.Hex(), "amount", amount.String(), "epoch", c.epoch)
	e.emit(events.VaultUnstaked{
		Account:     account,
		Amount:      new(big.Int).Set(amount),
		Epoch:       c.epoch,
		TotalStaked: new(big.Int).Set(global.TotalStaked),
	})
	return nil
}

// Claim settles and pays the account's reward for every elapsed epoch.
func (e *Engine) Claim(account crypto.Address) (*big.Int, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	acct, _, err := e.loadAccount(account)
	if err != nil {
		return nil, err
	}
	cur := e.currentEpoch(global)
	if err := e.settle(global, acct, cur); err != nil {
		return nil, err
	}
	c, err := e.rollover(global, cur)
	if err != nil {
		return nil, err
	}
	if !owed(global, acct) {
		return nil, vaulterrors.ErrNothingToClaim
	}
	if crypto.IsZero(global.YzyAddress) {
		return nil, vaulterrors.ErrNoFeeSource
	}
	if e.bank == nil {
		return nil, fmt.Errorf("vault: bank not configured")
	}
	reward := e.preparePayout(global, acct, c.epoch)

	if err := e.putAccount(account, acct); err != nil {
		return nil, err
	}
	if err := e.commit(global, c); err != nil {
		return nil, err
	}
	if err := e.pay(global, account, reward); err != nil {
		return nil, err
	}
	return new(big.Int).Set(reward.net), nil
}

// DepositFee credits amount of fee income to the current epoch. Only the
// configured fee-source token may deposit.
func (e *Engine) DepositFee(caller crypto.Address, amount *big.Int) error {
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	if crypto.IsZero(global.YzyAddress) || caller != global.YzyAddress {
		return vaulterrors.ErrNoFeeSource
	}
	if amount == nil || amount.Sign() <= 0 {
		return vaulterrors.ErrInvalidAmount
	}
	c, err := e.rollover(global, e.currentEpoch(global))
	if err != nil {
		return err
	}
	c.record.Reward.Add(c.record.Reward, amount)
	global.TotalDeposited.Add(global.TotalDeposited, amount)
	if err := e.commit(global, c); err != nil {
		return err
	}
	e.logger.Debug("fee deposited", "amount", amount.String(), "epoch", c.epoch)
	e.emit(events.VaultFeeDeposited{
		Source:      caller,
		Amount:      new(big.Int).Set(amount),
		Epoch:       c.epoch,
		EpochReward: new(big.Int).Set(c.record.Reward),
	})
	return nil
}

type payout struct {
	net       *big.Int
	dev       *big.Int
	receiver  crypto.Address
	fromEpoch uint64
	toEpoch   uint64
}

// preparePayout moves the account's pending reward into the paid counters. The
// dev share stays in the vault when no receiver is configured.
func (e *Engine) preparePayout(global *Global, acct *Account, cur uint64) *payout {
	p := &payout{
		net:       new(big.Int).Set(acct.Pending),
		dev:       big.NewInt(0),
		receiver:  global.DevFeeReceiver,
		fromEpoch: acct.PaidThrough,
		toEpoch:   cur,
	}
	acct.PaidThrough = cur
	if !crypto.IsZero(global.DevFeeReceiver) {
		p.dev.Set(acct.PendingDev)
	}
	acct.Claimed.Add(acct.Claimed, p.net)
	acct.Pending = big.NewInt(0)
	acct.PendingDev = big.NewInt(0)
	global.TotalPaid.Add(global.TotalPaid, p.net)
	global.TotalDevPaid.Add(global.TotalDevPaid, p.dev)
	return p
}

// owed reports whether settlement left anything to pay out. A net share that
// floored to zero still releases the dev share when a receiver is set.
func owed(global *Global, acct *Account) bool {
	if acct.Pending.Sign() > 0 {
		return true
	}
	return acct.PendingDev.Sign() > 0 && !crypto.IsZero(global.DevFeeReceiver)
}

func (e *Engine) pay(global *Global, account crypto.Address, p *payout) error {
	if p.net.Sign() > 0 {
		if err := e.bank.Transfer(global.YzyAddress, global.VaultAddress, account, p.net); err != nil {
			return fmt.Errorf("vault: reward transfer: %w", err)
		}
	}
	if p.dev.Sign() > 0 {
		if err := e.bank.Transfer(global.YzyAddress, global.VaultAddress, p.receiver, p.dev); err != nil {
			return fmt.Errorf("vault: dev fee transfer: %w", err)
		}
	}
	e.logger.Info("reward paid", "account", account.Hex(), "amount", p.net.String(), "devFee", p.dev.String())
	e.emit(events.VaultRewardClaimed{
		Account:        account,
		Paid:           new(big.Int).Set(p.net),
		DevFee:         new(big.Int).Set(p.dev),
		DevFeeReceiver: p.receiver,
		FromEpoch:      p.fromEpoch,
		ToEpoch:        p.toEpoch,
	})
	return nil
}
