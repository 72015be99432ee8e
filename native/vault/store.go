package vault

import (
	"errors"
	"fmt"

	"yzyvault/crypto"
)

var (
	globalKey = []byte("vault/global")

	// ErrNotInitialised is returned before genesis has been applied.
	ErrNotInitialised = errors.New("vault: not initialised")
)

func epochKey(epoch uint64) []byte {
	return []byte(fmt.Sprintf("vault/epoch/%020d", epoch))
}

func accountKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("vault/account/%x", addr.Bytes()))
}

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

func (e *Engine) loadGlobal() (*Global, error) {
	if e.state == nil {
		return nil, ErrNotInitialised
	}
	global := new(Global)
	ok, err := e.state.KVGet(globalKey, global)
	if err != nil {
		return nil, fmt.Errorf("vault: load global: %w", err)
	}
	if !ok {
		return nil, ErrNotInitialised
	}
	global.normalize()
	return global, nil
}

func (e *Engine) putGlobal(global *Global) error {
	return e.state.KVPut(globalKey, global)
}

func (e *Engine) loadEpoch(epoch uint64) (*EpochRecord, bool, error) {
	record := new(EpochRecord)
	ok, err := e.state.KVGet(epochKey(epoch), record)
	if err != nil {
		return nil, false, fmt.Errorf("vault: load epoch %d: %w", epoch, err)
	}
	if !ok {
		return nil, false, nil
	}
	record.normalize()
	return record, true, nil
}

func (e *Engine) putEpoch(record *EpochRecord) error {
	return e.state.KVPut(epochKey(record.Epoch), record)
}

func (e *Engine) loadAccount(addr crypto.Address) (*Account, bool, error) {
	acct := new(Account)
	ok, err := e.state.KVGet(accountKey(addr), acct)
	if err != nil {
		return nil, false, fmt.Errorf("vault: load account %s: %w", addr.Hex(), err)
	}
	if !ok {
		return newAccount(), false, nil
	}
	acct.normalize()
	return acct, true, nil
}

func (e *Engine) putAccount(addr crypto.Address, acct *Account) error {
	return e.state.KVPut(accountKey(addr), acct)
}

// recordAtOrBefore walks the rolled-epoch chain back from the latest record
// and returns the newest record whose epoch is not after target.
func (e *Engine) recordAtOrBefore(global *Global, target uint64) (*EpochRecord, bool, error) {
	if !global.Rolled {
		return nil, false, nil
	}
	cursor := global.LastEpoch
	for {
		record, ok, err := e.loadEpoch(cursor)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, fmt.Errorf("vault: epoch chain broken at %d", cursor)
		}
		if record.Epoch <= target {
			return record, true, nil
		}
		if !record.HasPrev {
			return nil, false, nil
		}
		cursor = record.Prev
	}
}
