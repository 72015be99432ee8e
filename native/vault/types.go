package vault

import (
	"fmt"
	"math/big"

	"yzyvault/core/epoch"
	vaulterrors "yzyvault/core/errors"
	"yzyvault/crypto"
)

const (
	// BasisPoints is the denominator for the dev fee.
	BasisPoints = 10_000
	// DefaultDevFee routes 4% of every epoch reward to the dev fee receiver.
	DefaultDevFee uint64 = 400
)

var basisPoints = big.NewInt(BasisPoints)

// Params is the configuration the vault is initialised with.
type Params struct {
	StartTime      uint64
	RewardPeriod   uint64
	DevFee         uint64
	DevFeeReceiver crypto.Address
	Governance     crypto.Address
	// VaultAddress is the custody account holding staked LP tokens and fee
	// income.
	VaultAddress  crypto.Address
	UniswapV2Pair crypto.Address
	YzyAddress    crypto.Address
}

// Validate checks the parameters are internally consistent.
func (p Params) Validate() error {
	if p.RewardPeriod == 0 {
		return fmt.Errorf("reward period must be positive: %w", vaulterrors.ErrInvalidParameter)
	}
	if p.DevFee > BasisPoints {
		return fmt.Errorf("dev fee %d exceeds %d bps: %w", p.DevFee, BasisPoints, vaulterrors.ErrInvalidParameter)
	}
	if crypto.IsZero(p.Governance) {
		return fmt.Errorf("governance address required: %w", vaulterrors.ErrInvalidParameter)
	}
	if crypto.IsZero(p.VaultAddress) {
		return fmt.Errorf("vault address required: %w", vaulterrors.ErrInvalidParameter)
	}
	return nil
}

// Global is the vault-wide ledger record.
type Global struct {
	Clock          epoch.Clock
	Governance     crypto.Address
	VaultAddress   crypto.Address
	UniswapV2Pair  crypto.Address
	YzyAddress     crypto.Address
	DevFee         uint64
	DevFeeReceiver crypto.Address
	TotalStaked    *big.Int
	// LastEpoch is the most recently rolled epoch; meaningful once Rolled.
	LastEpoch      uint64
	Rolled         bool
	TotalDeposited *big.Int
	TotalPaid      *big.Int
	TotalDevPaid   *big.Int
}

func (g *Global) normalize() {
	g.TotalStaked = orZero(g.TotalStaked)
	g.TotalDeposited = orZero(g.TotalDeposited)
	g.TotalPaid = orZero(g.TotalPaid)
	g.TotalDevPaid = orZero(g.TotalDevPaid)
}

// Clone returns a deep copy.
func (g *Global) Clone() *Global {
	if g == nil {
		return nil
	}
	clone := *g
	clone.Clock = epoch.Clock{Segments: append([]epoch.Segment(nil), g.Clock.Segments...)}
	clone.TotalStaked = copyBig(g.TotalStaked)
	clone.TotalDeposited = copyBig(g.TotalDeposited)
	clone.TotalPaid = copyBig(g.TotalPaid)
	clone.TotalDevPaid = copyBig(g.TotalDevPaid)
	return &clone
}

// LastRewardedTime is the opening timestamp of the most recently rolled epoch.
func (g *Global) LastRewardedTime() uint64 {
	if !g.Rolled {
		return 0
	}
	return g.Clock.StartOf(g.LastEpoch)
}

// Undistributed is fee income that has not left the vault: unclaimed rewards
// plus rounding dust.
func (g *Global) Undistributed() *big.Int {
	out := new(big.Int).Sub(g.TotalDeposited, g.TotalPaid)
	return out.Sub(out, g.TotalDevPaid)
}

// EpochRecord holds what the vault knows about one epoch. Records are linked
// to the previously rolled epoch so lookups skip idle epochs.
type EpochRecord struct {
	Epoch       uint64
	Reward      *big.Int
	TotalStaked *big.Int
	Prev        uint64
	HasPrev     bool
}

func (r *EpochRecord) normalize() {
	r.Reward = orZero(r.Reward)
	r.TotalStaked = orZero(r.TotalStaked)
}

// Checkpoint records an account's stake from Epoch onwards.
type Checkpoint struct {
	Epoch  uint64
	Amount *big.Int
}

// Account is a staker's ledger entry.
type Account struct {
	TotalStaked  *big.Int
	StartedEpoch uint64
	HasStarted   bool
	// SettledEpoch is the first epoch whose reward has not been folded into
	// Pending.
	SettledEpoch uint64
	Pending      *big.Int
	PendingDev   *big.Int
	Claimed      *big.Int
	// PaidThrough is the first epoch not covered by a payout.
	PaidThrough uint64
	Checkpoints []Checkpoint
}

func newAccount() *Account {
	acct := &Account{}
	acct.normalize()
	return acct
}

func (a *Account) normalize() {
	a.TotalStaked = orZero(a.TotalStaked)
	a.Pending = orZero(a.Pending)
	a.PendingDev = orZero(a.PendingDev)
	a.Claimed = orZero(a.Claimed)
	for i := range a.Checkpoints {
		a.Checkpoints[i].Amount = orZero(a.Checkpoints[i].Amount)
	}
}

// StakeAt returns the account's stake as of epoch.
func (a *Account) StakeAt(epoch uint64) *big.Int {
	for i := len(a.Checkpoints) - 1; i >= 0; i-- {
		if a.Checkpoints[i].Epoch <= epoch {
			return new(big.Int).Set(a.Checkpoints[i].Amount)
		}
	}
	return big.NewInt(0)
}

func (a *Account) checkpoint(epoch uint64) {
	amount := new(big.Int).Set(a.TotalStaked)
	if n := len(a.Checkpoints); n > 0 && a.Checkpoints[n-1].Epoch == epoch {
		a.Checkpoints[n-1].Amount = amount
		return
	}
	a.Checkpoints = append(a.Checkpoints, Checkpoint{Epoch: epoch, Amount: amount})
}

// Settlement is the reward accrued over a run of epochs.
type Settlement struct {
	Net       *big.Int
	Dev       *big.Int
	FromEpoch uint64
	ToEpoch   uint64
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
