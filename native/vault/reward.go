package vault

import (
	"math/big"
)

// accrued computes the reward an account has earned over
// [acct.SettledEpoch, cur). Every account mutation settles first, so the
// account's stake is constant across that window. Only epochs with a record
// can carry a reward; the walk follows the record chain and stops at the
// settled boundary.
func (e *Engine) accrued(global *Global, acct *Account, cur uint64) (*Settlement, error) {
	out := &Settlement{
		Net:       big.NewInt(0),
		Dev:       big.NewInt(0),
		FromEpoch: acct.SettledEpoch,
		ToEpoch:   cur,
	}
	if acct.TotalStaked.Sign() == 0 || acct.SettledEpoch >= cur {
		return out, nil
	}
	record, ok, err := e.recordAtOrBefore(global, cur-1)
	if err != nil {
		return nil, err
	}
	keep := new(big.Int).SetUint64(BasisPoints - global.DevFee)
	for ok && record.Epoch >= acct.SettledEpoch {
		if record.Reward.Sign() > 0 && record.TotalStaked.Sign() > 0 {
			net, dev := epochShare(record, acct.TotalStaked, keep)
			out.Net.Add(out.Net, net)
			out.Dev.Add(out.Dev, dev)
		}
		if !record.HasPrev {
			break
		}
		record, ok, err = e.loadEpoch(record.Prev)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// epochShare splits an epoch's reward for a stake. Every division floors, so
// the remainder stays in the vault.
func epochShare(record *EpochRecord, stake, keep *big.Int) (net, dev *big.Int) {
	distributable := new(big.Int).Mul(record.Reward, keep)
	distributable.Quo(distributable, basisPoints)

	net = new(big.Int).Mul(distributable, stake)
	net.Quo(net, record.TotalStaked)

	gross := new(big.Int).Mul(record.Reward, stake)
	gross.Quo(gross, record.TotalStaked)

	dev = gross.Sub(gross, net)
	return net, dev
}

// settle folds the reward accrued up to cur into the account's pending
// balance.
func (e *Engine) settle(global *Global, acct *Account, cur uint64) error {
	s, err := e.accrued(global, acct, cur)
	if err != nil {
		return err
	}
	acct.Pending.Add(acct.Pending, s.Net)
	acct.PendingDev.Add(acct.PendingDev, s.Dev)
	if cur > acct.SettledEpoch {
		acct.SettledEpoch = cur
	}
	return nil
}
