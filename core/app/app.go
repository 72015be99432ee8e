package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	vaulterrors "yzyvault/core/errors"
	"yzyvault/core/events"
	"yzyvault/core/genesis"
	"yzyvault/core/state"
	"yzyvault/core/types"
	"yzyvault/crypto"
	"yzyvault/native/token"
	"yzyvault/native/vault"
	"yzyvault/observability"
	"yzyvault/observability/metrics"
	telemetry "yzyvault/observability/otel"
)

const tracerName = "yzyvault/core/app"

var sequenceKey = []byte("events/sequence")

// ErrRangeTooLarge is returned when an epoch range query spans too many
// epochs.
var ErrRangeTooLarge = errors.New("app: epoch range too large")

// MaxEpochRange bounds range queries such as exports.
const MaxEpochRange = 10_000

// App binds the token ledger and the vault engine to one state transaction
// per operation. Events raised inside an operation are stamped with a
// persistent sequence number and published only after the commit.
type App struct {
	state   *state.Manager
	logger  *slog.Logger
	emitter events.Emitter
	metrics *metrics.VaultMetrics
	nowFn   func() time.Time
}

// New constructs an application over manager.
func New(manager *state.Manager) *App {
	return &App{
		state:   manager,
		logger:  slog.Default(),
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetLogger overrides the logger handed to the engines.
func (a *App) SetLogger(logger *slog.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// SetEmitter configures where committed events are published.
func (a *App) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		a.emitter = events.NoopEmitter{}
		return
	}
	a.emitter = emitter
}

// SetMetrics enables prometheus reporting.
func (a *App) SetMetrics(m *metrics.VaultMetrics) { a.metrics = m }

// SetNowFunc overrides the wall clock.
func (a *App) SetNowFunc(now func() time.Time) {
	if now != nil {
		a.nowFn = now
	}
}

// State exposes the underlying manager.
func (a *App) State() *state.Manager { return a.state }

type session struct {
	tx     *state.Tx
	vault  *vault.Engine
	tokens *token.Ledger
	events *events.Buffer
}

func (a *App) session(tx *state.Tx) *session {
	buffer := &events.Buffer{}
	ledger := token.NewLedger(tx)
	ledger.SetEmitter(buffer)
	ledger.SetLogger(a.logger)

	engine := vault.NewEngine()
	engine.SetState(tx)
	engine.SetBank(ledger)
	engine.SetEmitter(buffer)
	engine.SetLogger(a.logger)
	engine.SetNowFunc(a.nowFn)

	ledger.SetFeeSink(engine)
	return &session{tx: tx, vault: engine, tokens: ledger, events: buffer}
}

func (a *App) update(ctx context.Context, operation string, fn func(*session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := telemetry.Tracer(tracerName).Start(ctx, "vault."+operation,
		trace.WithAttributes(attribute.String("vault.operation", operation)))
	defer span.End()

	start := time.Now()
	err := a.state.Update(func(tx *state.Tx) error {
		s := a.session(tx)
		if err := fn(s); err != nil {
			return err
		}
		stamped, err := a.stamp(tx, s.events.Events())
		if err != nil {
			return err
		}
		snapshot, hasVault, err := ledgerSnapshot(s.vault)
		if err != nil {
			return err
		}
		tx.OnCommit(func() {
			a.publish(stamped)
			if hasVault {
				a.metrics.RecordLedger(snapshot)
			}
		})
		return nil
	})
	a.metrics.ObserveOperation(operation, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		status := vaulterrors.Code(err)
		if status == "" {
			status = err.Error()
		}
		span.SetStatus(codes.Error, status)
		a.logger.Debug("operation rejected", "operation", operation, "error", err)
	}
	return err
}

func (a *App) view(fn func(*session) error) error {
	return a.state.View(func(tx *state.Tx) error {
		return fn(a.session(tx))
	})
}

func (a *App) stamp(tx *state.Tx, pending []*types.Event) ([]*types.Event, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	var seq uint64
	if _, err := tx.KVGet(sequenceKey, &seq); err != nil {
		return nil, fmt.Errorf("app: load event sequence: %w", err)
	}
	ts := uint64(a.nowFn().Unix())
	for _, ev := range pending {
		seq++
		events.Stamp(ev, seq, ts)
	}
	if err := tx.KVPut(sequenceKey, seq); err != nil {
		return nil, err
	}
	return pending, nil
}

func (a *App) publish(stamped []*types.Event) {
	for _, ev := range stamped {
		observability.Events().RecordEvent(ev.Type)
		a.emitter.Emit(ev)
	}
}

func ledgerSnapshot(engine *vault.Engine) (metrics.LedgerSnapshot, bool, error) {
	global, err := engine.Global()
	if err != nil {
		if errors.Is(err, vault.ErrNotInitialised) {
			return metrics.LedgerSnapshot{}, false, nil
		}
		return metrics.LedgerSnapshot{}, false, err
	}
	return metrics.LedgerSnapshot{
		Epoch:          global.LastEpoch,
		TotalStaked:    global.TotalStaked,
		TotalDeposited: global.TotalDeposited,
		TotalPaid:      global.TotalPaid,
		TotalDevPaid:   global.TotalDevPaid,
		Undistributed:  global.Undistributed(),
	}, true, nil
}

// Bootstrap writes the genesis seed unless the vault already exists. It
// reports whether the seed was applied.
func (a *App) Bootstrap(ctx context.Context, seed *genesis.Seed) (bool, error) {
	if seed == nil {
		return false, fmt.Errorf("app: genesis seed required")
	}
	applied := false
	err := a.update(ctx, "genesis", func(s *session) error {
		if _, err := s.vault.Global(); err == nil {
			return nil
		} else if !errors.Is(err, vault.ErrNotInitialised) {
			return err
		}
		for _, tok := range seed.Tokens {
			if err := s.tokens.Register(tok.Meta, tok.Allocations); err != nil {
				return fmt.Errorf("register %s: %w", tok.Meta.Symbol, err)
			}
		}
		if err := s.vault.Initialize(seed.Vault); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		a.logger.Info("genesis applied", "tokens", len(seed.Tokens), "start", seed.Vault.StartTime)
	}
	return applied, nil
}

// --- vault operations ---

// Stake locks amount of the stakeable token from caller in the vault.
func (a *App) Stake(ctx context.Context, caller crypto.Address, amount *big.Int) error {
	return a.update(ctx, "stake", func(s *session) error {
		return s.vault.Stake(caller, amount)
	})
}

// Unstake returns amount of stake to caller together with settled rewards.
func (a *App) Unstake(ctx context.Context, caller crypto.Address, amount *big.Int) error {
	return a.update(ctx, "unstake", func(s *session) error {
		return s.vault.Unstake(caller, amount)
	})
}

// Claim pays out caller's reward and returns the net amount.
func (a *App) Claim(ctx context.Context, caller crypto.Address) (*big.Int, error) {
	var paid *big.Int
	err := a.update(ctx, "claim", func(s *session) error {
		var err error
		paid, err = s.vault.Claim(caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// DepositFee moves fee income held by the fee-source token into vault custody
// and credits it to the current epoch.
func (a *App) DepositFee(ctx context.Context, caller crypto.Address, amount *big.Int) error {
	return a.update(ctx, "depositFee", func(s *session) error {
		global, err := s.vault.Global()
		if err != nil {
			return err
		}
		if crypto.IsZero(global.YzyAddress) || caller != global.YzyAddress {
			return vaulterrors.ErrNoFeeSource
		}
		if err := s.tokens.Move(caller, caller, global.VaultAddress, amount); err != nil {
			return err
		}
		return s.vault.DepositFee(caller, amount)
	})
}

func (a *App) ChangeRewardPeriod(ctx context.Context, caller crypto.Address, seconds uint64) error {
	return a.update(ctx, "changeRewardPeriod", func(s *session) error {
		return s.vault.ChangeRewardPeriod(caller, seconds)
	})
}

func (a *App) ChangeDevFee(ctx context.Context, caller crypto.Address, bps uint64) error {
	return a.update(ctx, "changeDevFee", func(s *session) error {
		return s.vault.ChangeDevFee(caller, bps)
	})
}

func (a *App) ChangeDevFeeReceiver(ctx context.Context, caller, receiver crypto.Address) error {
	return a.update(ctx, "changeDevFeeReceiver", func(s *session) error {
		return s.vault.ChangeDevFeeReceiver(caller, receiver)
	})
}

func (a *App) ChangeUniswapV2Pair(ctx context.Context, caller, pair crypto.Address) error {
	return a.update(ctx, "changeUniswapV2Pair", func(s *session) error {
		return s.vault.ChangeUniswapV2Pair(caller, pair)
	})
}

func (a *App) ChangeYzyAddress(ctx context.Context, caller, tokenAddr crypto.Address) error {
	return a.update(ctx, "changeYzyAddress", func(s *session) error {
		return s.vault.ChangeYzyAddress(caller, tokenAddr)
	})
}

func (a *App) TransferGovernance(ctx context.Context, caller, next crypto.Address) error {
	return a.update(ctx, "transferGovernance", func(s *session) error {
		return s.vault.TransferGovernance(caller, next)
	})
}

// --- token operations ---

// Transfer moves tokens between holders. Fees charged by the fee-source token
// are credited to the vault within the same commit.
func (a *App) Transfer(ctx context.Context, tokenAddr, from, to crypto.Address, amount *big.Int) error {
	return a.update(ctx, "transfer", func(s *session) error {
		return s.tokens.Transfer(tokenAddr, from, to, amount)
	})
}

func (a *App) Approve(ctx context.Context, tokenAddr, owner, spender crypto.Address, amount *big.Int) error {
	return a.update(ctx, "approve", func(s *session) error {
		return s.tokens.Approve(tokenAddr, owner, spender, amount)
	})
}

func (a *App) ChangeTransferFee(ctx context.Context, tokenAddr, caller crypto.Address, bps uint64) error {
	return a.update(ctx, "changeTransferFee", func(s *session) error {
		return s.tokens.ChangeTransferFee(tokenAddr, caller, bps)
	})
}

func (a *App) SetTokenPaused(ctx context.Context, tokenAddr, caller crypto.Address, paused bool) error {
	op := "unpause"
	if paused {
		op = "pause"
	}
	return a.update(ctx, op, func(s *session) error {
		return s.tokens.SetPaused(tokenAddr, caller, paused)
	})
}

func (a *App) TransferTokenOwnership(ctx context.Context, tokenAddr, caller, next crypto.Address) error {
	return a.update(ctx, "transferOwnership", func(s *session) error {
		return s.tokens.TransferOwnership(tokenAddr, caller, next)
	})
}

func (a *App) ChangeTokenVault(ctx context.Context, tokenAddr, caller, sink crypto.Address) error {
	return a.update(ctx, "changeYZYVault", func(s *session) error {
		return s.tokens.ChangeFeeSink(tokenAddr, caller, sink)
	})
}

func (a *App) SetFeeExempt(ctx context.Context, tokenAddr, caller, holder crypto.Address, exempt bool) error {
	return a.update(ctx, "setFeeExempt", func(s *session) error {
		return s.tokens.SetFeeExempt(tokenAddr, caller, holder, exempt)
	})
}
