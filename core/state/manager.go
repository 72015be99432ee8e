package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"yzyvault/storage"
)

// ErrReadOnly is returned when a view transaction attempts a write.
var ErrReadOnly = errors.New("state: transaction is read-only")

// Manager serialises every mutation of the vault state. Writers hold an
// exclusive lock for the life of their transaction; readers share a read
// lock, so a reader never observes a partially applied write.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager wraps db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database exposes the backing store.
func (m *Manager) Database() storage.Database { return m.db }

// Update runs fn in a write transaction. Writes are staged in memory and
// committed in a single batch only when fn returns nil; any error discards
// them. Commit hooks registered by fn run after a successful commit.
func (m *Manager) Update(fn func(tx *Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newTx(m.db, true)
	if err := fn(tx); err != nil {
		return err
	}
	if batch := tx.batch(); batch.Len() > 0 {
		if err := m.db.Write(batch); err != nil {
			return fmt.Errorf("state: commit: %w", err)
		}
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

// View runs fn against a read-only snapshot of the committed state.
func (m *Manager) View(fn func(tx *Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m.db, false))
}

// Tx is an overlay over the committed state.
type Tx struct {
	db       storage.Database
	writable bool
	dirty    map[string][]byte
	deleted  map[string]struct{}
	order    []string
	hooks    []func()
}

func newTx(db storage.Database, writable bool) *Tx {
	return &Tx{
		db:       db,
		writable: writable,
		dirty:    make(map[string][]byte),
		deleted:  make(map[string]struct{}),
	}
}

// Writable reports whether the transaction accepts writes.
func (tx *Tx) Writable() bool { return tx.writable }

// Get returns the raw value stored under key.
func (tx *Tx) Get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if _, gone := tx.deleted[k]; gone {
		return nil, false, nil
	}
	if value, ok := tx.dirty[k]; ok {
		return value, true, nil
	}
	value, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Put stages a raw write.
func (tx *Tx) Put(key, value []byte) error {
	if !tx.writable {
		return ErrReadOnly
	}
	k := string(key)
	tx.touch(k)
	delete(tx.deleted, k)
	tx.dirty[k] = append([]byte(nil), value...)
	return nil
}

// Delete stages a removal.
func (tx *Tx) Delete(key []byte) error {
	if !tx.writable {
		return ErrReadOnly
	}
	k := string(key)
	tx.touch(k)
	delete(tx.dirty, k)
	tx.deleted[k] = struct{}{}
	return nil
}

// KVGet decodes the RLP value stored under key into out.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok, err := tx.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut RLP-encodes value under key.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return tx.Put(key, encoded)
}

// KVDelete removes key.
func (tx *Tx) KVDelete(key []byte) error { return tx.Delete(key) }

// OnCommit registers fn to run once the transaction has been committed. View
// transactions never run hooks.
func (tx *Tx) OnCommit(fn func()) {
	if fn == nil {
		return
	}
	tx.hooks = append(tx.hooks, fn)
}

func (tx *Tx) touch(k string) {
	if _, ok := tx.dirty[k]; ok {
		return
	}
	if _, ok := tx.deleted[k]; ok {
		return
	}
	tx.order = append(tx.order, k)
}

func (tx *Tx) batch() *storage.Batch {
	batch := storage.NewBatch()
	for _, k := range tx.order {
		if _, gone := tx.deleted[k]; gone {
			batch.Delete([]byte(k))
			continue
		}
		if value, ok := tx.dirty[k]; ok {
			batch.Put([]byte(k), value)
		}
	}
	return batch
}
