package token

import (
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	vaulterrors "yzyvault/core/errors"
	"yzyvault/core/events"
	"yzyvault/crypto"
)

var basisPoints = big.NewInt(BasisPoints)

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// FeeSink accounts for fees withheld into the vault. DepositFee is only called
// when the token's fee recipient is the sink's vault address, after the tokens
// have been moved into that balance.
type FeeSink interface {
	VaultAddress() (crypto.Address, error)
	DepositFee(source crypto.Address, amount *big.Int) error
}

// Ledger tracks balances and allowances for every registered token.
type Ledger struct {
	state   ledgerState
	sink    FeeSink
	emitter events.Emitter
	logger  *slog.Logger
}

// NewLedger constructs a ledger backed by the supplied state accessor.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{
		state:   state,
		emitter: events.NoopEmitter{},
		logger:  slog.Default().With("module", "token"),
	}
}

// SetFeeSink wires the accounting hook invoked after a fee is withheld.
func (l *Ledger) SetFeeSink(sink FeeSink) { l.sink = sink }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetLogger overrides the logger.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger.With("module", "token")
	}
}

func (l *Ledger) emit(ev events.Event) { l.emitter.Emit(ev.Event()) }

// Register stores a new token and mints the genesis allocations. The total
// supply is the sum of the allocations.
func (l *Ledger) Register(meta Meta, allocations []Allocation) error {
	if crypto.IsZero(meta.Address) {
		return fmt.Errorf("token: address required")
	}
	if strings.TrimSpace(meta.Symbol) == "" {
		return fmt.Errorf("token %s: symbol required", meta.Address.Hex())
	}
	if meta.TransferFeeBps > BasisPoints {
		return fmt.Errorf("token %s: transfer fee %d exceeds %d bps: %w", meta.Symbol, meta.TransferFeeBps, BasisPoints, vaulterrors.ErrInvalidParameter)
	}
	exists, err := l.state.KVGet(metaKey(meta.Address), nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("token %s already registered", meta.Address.Hex())
	}
	supply := big.NewInt(0)
	for _, alloc := range allocations {
		if alloc.Amount == nil || alloc.Amount.Sign() < 0 {
			return fmt.Errorf("token %s: negative allocation for %s", meta.Symbol, alloc.Holder.Hex())
		}
		balance, err := l.BalanceOf(meta.Address, alloc.Holder)
		if err != nil {
			return err
		}
		balance.Add(balance, alloc.Amount)
		if err := l.putBalance(meta.Address, alloc.Holder, balance); err != nil {
			return err
		}
		supply.Add(supply, alloc.Amount)
	}
	stored := meta.Clone()
	stored.TotalSupply = supply
	return l.putMeta(&stored)
}

// Meta returns the token configuration.
func (l *Ledger) Meta(token crypto.Address) (*Meta, error) {
	meta := new(Meta)
	ok, err := l.state.KVGet(metaKey(token), meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("token %s: %w", token.Hex(), vaulterrors.ErrUnknownToken)
	}
	if meta.TotalSupply == nil {
		meta.TotalSupply = big.NewInt(0)
	}
	return meta, nil
}

// BalanceOf returns holder's balance of token. Unknown holders have a zero
// balance.
func (l *Ledger) BalanceOf(token, holder crypto.Address) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := l.state.KVGet(balanceKey(token, holder), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// Allowance returns how much spender may move out of owner's balance.
func (l *Ledger) Allowance(token, owner, spender crypto.Address) (*big.Int, error) {
	allowance := new(big.Int)
	ok, err := l.state.KVGet(allowanceKey(token, owner, spender), allowance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

// Approve sets spender's allowance over owner's balance.
func (l *Ledger) Approve(token, owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return vaulterrors.ErrInvalidAmount
	}
	if _, err := l.Meta(token); err != nil {
		return err
	}
	key := allowanceKey(token, owner, spender)
	if amount.Sign() == 0 {
		if err := l.state.KVDelete(key); err != nil {
			return err
		}
	} else if err := l.state.KVPut(key, amount); err != nil {
		return err
	}
	l.emit(events.TokenApproval{Token: token, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from one holder to another, withholding the transfer
// fee when the token charges one.
func (l *Ledger) Transfer(token, from, to crypto.Address, amount *big.Int) error {
	meta, err := l.Meta(token)
	if err != nil {
		return err
	}
	return l.transfer(meta, from, to, amount, true)
}

// Move transfers amount without withholding a fee. The vault takes custody of
// deposited fee income through it.
func (l *Ledger) Move(token, from, to crypto.Address, amount *big.Int) error {
	meta, err := l.Meta(token)
	if err != nil {
		return err
	}
	return l.transfer(meta, from, to, amount, false)
}

// TransferFrom moves amount out of from's balance on behalf of spender,
// consuming allowance.
func (l *Ledger) TransferFrom(token, spender, from, to crypto.Address, amount *big.Int) error {
	meta, err := l.Meta(token)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return vaulterrors.ErrInvalidAmount
	}
	allowance, err := l.Allowance(token, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("allowance %s below %s: %w", allowance, amount, vaulterrors.ErrInsufficientBalance)
	}
	remaining := new(big.Int).Sub(allowance, amount)
	key := allowanceKey(token, from, spender)
	if remaining.Sign() == 0 {
		err = l.state.KVDelete(key)
	} else {
		err = l.state.KVPut(key, remaining)
	}
	if err != nil {
		return err
	}
	return l.transfer(meta, from, to, amount, true)
}

func (l *Ledger) transfer(meta *Meta, from, to crypto.Address, amount *big.Int, charge bool) error {
	if amount == nil || amount.Sign() <= 0 {
		return vaulterrors.ErrInvalidAmount
	}
	if meta.Paused {
		return fmt.Errorf("token %s: %w", meta.Symbol, vaulterrors.ErrTokenPaused)
	}
	fromBalance, err := l.BalanceOf(meta.Address, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("token %s balance %s below %s: %w", meta.Symbol, fromBalance, amount, vaulterrors.ErrInsufficientBalance)
	}

	fee := big.NewInt(0)
	if charge {
		fee = l.feeFor(meta, from, to, amount)
	}
	net := new(big.Int).Sub(amount, fee)

	if err := l.putBalance(meta.Address, from, fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := l.credit(meta.Address, to, net); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if err := l.credit(meta.Address, meta.FeeSink, fee); err != nil {
			return err
		}
	}
	l.emit(events.TokenTransfer{Token: meta.Address, From: from, To: to, Amount: new(big.Int).Set(amount), Fee: fee})

	if fee.Sign() > 0 && l.sink != nil {
		vaultAddr, err := l.sink.VaultAddress()
		if err != nil {
			return fmt.Errorf("route transfer fee: %w", err)
		}
		if meta.FeeSink != vaultAddr {
			return nil
		}
		if err := l.sink.DepositFee(meta.Address, fee); err != nil {
			return fmt.Errorf("route transfer fee: %w", err)
		}
	}
	return nil
}

func (l *Ledger) feeFor(meta *Meta, from, to crypto.Address, amount *big.Int) *big.Int {
	if meta.TransferFeeBps == 0 || crypto.IsZero(meta.FeeSink) {
		return big.NewInt(0)
	}
	if meta.IsExempt(from) || meta.IsExempt(to) {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(meta.TransferFeeBps))
	return fee.Quo(fee, basisPoints)
}

func (l *Ledger) credit(token, holder crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := l.BalanceOf(token, holder)
	if err != nil {
		return err
	}
	return l.putBalance(token, holder, balance.Add(balance, amount))
}

func (l *Ledger) putBalance(token, holder crypto.Address, balance *big.Int) error {
	if balance.Sign() == 0 {
		return l.state.KVDelete(balanceKey(token, holder))
	}
	return l.state.KVPut(balanceKey(token, holder), balance)
}

func (l *Ledger) putMeta(meta *Meta) error {
	return l.state.KVPut(metaKey(meta.Address), meta)
}

// --- governance ---

func (l *Ledger) governed(token, caller crypto.Address) (*Meta, error) {
	meta, err := l.Meta(token)
	if err != nil {
		return nil, err
	}
	if caller != meta.Governance {
		return nil, vaulterrors.ErrUnauthorized
	}
	return meta, nil
}

func (l *Ledger) update(meta *Meta, caller crypto.Address, param, value string) error {
	if err := l.putMeta(meta); err != nil {
		return err
	}
	l.logger.Info("token parameter changed", "token", meta.Symbol, "param", param, "value", value)
	l.emit(events.TokenParamChanged{Token: meta.Address, Param: param, NewValue: value, Caller: caller})
	return nil
}

// ChangeTransferFee sets the fee in basis points.
func (l *Ledger) ChangeTransferFee(token, caller crypto.Address, bps uint64) error {
	meta, err := l.governed(token, caller)
	if err != nil {
		return err
	}
	if bps > BasisPoints {
		return fmt.Errorf("transfer fee %d bps: %w", bps, vaulterrors.ErrInvalidParameter)
	}
	meta.TransferFeeBps = bps
	return l.update(meta, caller, "transferFee", strconv.FormatUint(bps, 10))
}

// SetPaused toggles the transfer switch.
func (l *Ledger) SetPaused(token, caller crypto.Address, paused bool) error {
	meta, err := l.governed(token, caller)
	if err != nil {
		return err
	}
	meta.Paused = paused
	return l.update(meta, caller, "paused", strconv.FormatBool(paused))
}

// TransferOwnership hands the token governance role to next.
func (l *Ledger) TransferOwnership(token, caller, next crypto.Address) error {
	meta, err := l.governed(token, caller)
	if err != nil {
		return err
	}
	if crypto.IsZero(next) {
		return fmt.Errorf("governance address: %w", vaulterrors.ErrInvalidParameter)
	}
	meta.Governance = next
	return l.update(meta, caller, "governance", next.Hex())
}

// ChangeFeeSink points the withheld fees at a new vault address.
func (l *Ledger) ChangeFeeSink(token, caller, sink crypto.Address) error {
	meta, err := l.governed(token, caller)
	if err != nil {
		return err
	}
	meta.FeeSink = sink
	return l.update(meta, caller, "vault", sink.Hex())
}

// SetFeeExempt adds or removes holder from the fee exemption list.
func (l *Ledger) SetFeeExempt(token, caller, holder crypto.Address, exempt bool) error {
	meta, err := l.governed(token, caller)
	if err != nil {
		return err
	}
	filtered := meta.Exempt[:0]
	for _, existing := range meta.Exempt {
		if existing != holder {
			filtered = append(filtered, existing)
		}
	}
	if exempt {
		filtered = append(filtered, holder)
	}
	meta.Exempt = filtered
	return l.update(meta, caller, "exempt:"+holder.Hex(), strconv.FormatBool(exempt))
}
