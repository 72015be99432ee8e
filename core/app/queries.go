package app

import (
	"fmt"
	"math/big"

	"yzyvault/crypto"
	"yzyvault/native/token"
	"yzyvault/native/vault"
)

// Summary is the vault configuration and totals at one point in time.
type Summary struct {
	Global       *vault.Global
	CurrentEpoch uint64
}

// Summary returns the vault parameters and lifetime totals.
func (a *App) Summary() (*Summary, error) {
	var out *Summary
	err := a.view(func(s *session) error {
		global, err := s.vault.Global()
		if err != nil {
			return err
		}
		cur, err := s.vault.CurrentEpoch()
		if err != nil {
			return err
		}
		out = &Summary{Global: global, CurrentEpoch: cur}
		return nil
	})
	return out, err
}

// Epoch returns the view of a single epoch.
func (a *App) Epoch(epoch uint64) (*vault.EpochView, error) {
	var out *vault.EpochView
	err := a.view(func(s *session) error {
		var err error
		out, err = s.vault.Epoch(epoch)
		return err
	})
	return out, err
}

// EpochAt maps a unix timestamp to an epoch index.
func (a *App) EpochAt(ts uint64) (uint64, error) {
	var out uint64
	err := a.view(func(s *session) error {
		var err error
		out, err = s.vault.EpochAt(ts)
		return err
	})
	return out, err
}

// Epochs returns the views of [from, to] inclusive, read from one snapshot.
func (a *App) Epochs(from, to uint64) ([]*vault.EpochView, error) {
	if to < from {
		return nil, fmt.Errorf("app: epoch range %d..%d is empty", from, to)
	}
	if to-from >= MaxEpochRange {
		return nil, fmt.Errorf("%w: %d epochs", ErrRangeTooLarge, to-from+1)
	}
	out := make([]*vault.EpochView, 0, to-from+1)
	err := a.view(func(s *session) error {
		for e := from; ; e++ {
			view, err := s.vault.Epoch(e)
			if err != nil {
				return err
			}
			out = append(out, view)
			if e == to {
				return nil
			}
		}
	})
	return out, err
}

// Account returns the read-side summary of a staker.
func (a *App) Account(addr crypto.Address) (*vault.AccountView, error) {
	var out *vault.AccountView
	err := a.view(func(s *session) error {
		var err error
		out, err = s.vault.Account(addr)
		return err
	})
	return out, err
}

// Reward returns the claimable reward of addr.
func (a *App) Reward(addr crypto.Address) (*big.Int, error) {
	var out *big.Int
	err := a.view(func(s *session) error {
		var err error
		out, err = s.vault.GetReward(addr)
		return err
	})
	return out, err
}

// AccountEpochStake returns addr's stake as of epoch.
func (a *App) AccountEpochStake(epoch uint64, addr crypto.Address) (*big.Int, error) {
	var out *big.Int
	err := a.view(func(s *session) error {
		var err error
		out, err = s.vault.UserEpochStakedAmount(epoch, addr)
		return err
	})
	return out, err
}

// Token returns the token configuration.
func (a *App) Token(tokenAddr crypto.Address) (*token.Meta, error) {
	var out *token.Meta
	err := a.view(func(s *session) error {
		var err error
		out, err = s.tokens.Meta(tokenAddr)
		return err
	})
	return out, err
}

// Balance returns holder's balance and allowance granted to the vault.
func (a *App) Balance(tokenAddr, holder crypto.Address) (*big.Int, error) {
	var out *big.Int
	err := a.view(func(s *session) error {
		if _, err := s.tokens.Meta(tokenAddr); err != nil {
			return err
		}
		var err error
		out, err = s.tokens.BalanceOf(tokenAddr, holder)
		return err
	})
	return out, err
}

// Allowance returns how much spender may move out of owner's balance.
func (a *App) Allowance(tokenAddr, owner, spender crypto.Address) (*big.Int, error) {
	var out *big.Int
	err := a.view(func(s *session) error {
		var err error
		out, err = s.tokens.Allowance(tokenAddr, owner, spender)
		return err
	})
	return out, err
}
