package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"yzyvault/core/types"
	"yzyvault/observability"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultLimit caps queries that do not set a limit.
	DefaultLimit = 100
	// MaxLimit is the largest page a single query returns.
	MaxLimit = 1000
	// QueueSize bounds the events waiting to be written. Emit blocks once it
	// is full.
	QueueSize = 1024
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("journal: closed")

// Entry is the persisted form of a committed event.
type Entry struct {
	ID         string `gorm:"primaryKey;size:64"`
	Sequence   uint64 `gorm:"uniqueIndex;not null"`
	Type       string `gorm:"size:64;index"`
	Account    string `gorm:"size:42;index"`
	Timestamp  uint64 `gorm:"not null"`
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName pins the table name across drivers.
func (Entry) TableName() string { return "vault_events" }

// AutoMigrate performs the journal schema migration.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}

// Open connects to the journal database. The sqlite driver accepts a file
// path or an in-memory DSN; postgres takes a libpq connection string.
func Open(driver, dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("journal: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return gorm.Open(sqlite.Open(dsn), cfg)
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("journal: unknown driver %q", driver)
	}
}

// Journal stores committed events and serves them back by sequence. It
// implements events.Emitter so it can be attached next to the live broadcaster.
// Emitted events are written in order by a single background writer; reads
// wait for the writer to catch up first.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan request
	done   chan struct{}
}

type request struct {
	ev      *types.Event
	flushed chan struct{}
}

// New migrates db and returns a journal over it.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	j := &Journal{
		db:     db,
		logger: slog.Default().With("module", "journal"),
		queue:  make(chan request, QueueSize),
		done:   make(chan struct{}),
	}
	go j.run()
	return j, nil
}

// SetLogger overrides the logger used for write failures.
func (j *Journal) SetLogger(l *slog.Logger) {
	if l != nil {
		j.mu.Lock()
		j.logger = l.With("module", "journal")
		j.mu.Unlock()
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for req := range j.queue {
		if req.flushed != nil {
			close(req.flushed)
			continue
		}
		if err := j.Append(context.Background(), req.ev); err != nil {
			j.failed(req.ev, err)
		}
	}
}

func (j *Journal) failed(ev *types.Event, err error) {
	observability.Events().RecordJournalFailure()
	j.mu.RLock()
	logger := j.logger
	j.mu.RUnlock()
	logger.Error("journal append failed", "sequence", ev.Sequence, "type", ev.Type, "error", err)
}

// Emit queues ev for the background writer. Write failures, and events
// emitted after Close, are logged and counted.
func (j *Journal) Emit(ev *types.Event) {
	if ev == nil {
		return
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		observability.Events().RecordJournalFailure()
		j.logger.Error("journal closed, event dropped", "sequence", ev.Sequence, "type", ev.Type)
		return
	}
	j.queue <- request{ev: ev}
}

// Flush blocks until every event emitted before the call has been written.
func (j *Journal) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	select {
	case j.queue <- request{flushed: marker}:
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	j.mu.RUnlock()
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Append stores ev. Replaying an event that is already journaled is a no-op.
func (j *Journal) Append(ctx context.Context, ev *types.Event) error {
	if ev == nil {
		return nil
	}
	if ev.ID == "" || ev.Sequence == 0 {
		return fmt.Errorf("journal: event %q is not stamped", ev.Type)
	}
	attrs, err := json.Marshal(ev.Attributes)
	if err != nil {
		return err
	}
	entry := Entry{
		ID:         ev.ID,
		Sequence:   ev.Sequence,
		Type:       ev.Type,
		Account:    accountOf(ev),
		Timestamp:  ev.Timestamp,
		Attributes: string(attrs),
	}
	return j.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
}

func accountOf(ev *types.Event) string {
	for _, key := range []string{"account", "from", "owner"} {
		if v := ev.Attributes[key]; v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

// Filter narrows a journal query.
type Filter struct {
	Type    string
	Account string
	// After returns only events with a greater sequence number.
	After uint64
	Limit int
}

// Query returns journaled events ordered by sequence.
func (j *Journal) Query(ctx context.Context, f Filter) ([]*types.Event, error) {
	if err := j.settle(ctx); err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	q := j.db.WithContext(ctx).Model(&Entry{}).Where("sequence > ?", f.After)
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where("type = ?", t)
	}
	if acct := strings.TrimSpace(f.Account); acct != "" {
		q = q.Where("account = ?", strings.ToLower(acct))
	}
	var rows []Entry
	if err := q.Order("sequence asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Event, 0, len(rows))
	for _, row := range rows {
		ev := &types.Event{
			ID:        row.ID,
			Sequence:  row.Sequence,
			Timestamp: row.Timestamp,
			Type:      row.Type,
		}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &ev.Attributes); err != nil {
				return nil, fmt.Errorf("journal: decode event %d: %w", row.Sequence, err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// LastSequence returns the highest journaled sequence, or zero when empty.
func (j *Journal) LastSequence(ctx context.Context) (uint64, error) {
	if err := j.settle(ctx); err != nil {
		return 0, err
	}
	var entry Entry
	err := j.db.WithContext(ctx).Order("sequence desc").Limit(1).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.Sequence, nil
}

// settle waits for queued writes. A closed journal has already drained.
func (j *Journal) settle(ctx context.Context) error {
	if err := j.Flush(ctx); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

// Close drains queued events and releases the underlying connection pool.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()
	<-j.done
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
