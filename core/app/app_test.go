package app

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	vaulterrors "yzyvault/core/errors"
	"yzyvault/core/events"
	"yzyvault/core/genesis"
	"yzyvault/core/state"
	"yzyvault/core/types"
	"yzyvault/crypto"
	"yzyvault/storage"
)

const testGenesis = `
genesisTime = "2024-01-01T00:00:00Z"
governance = "0x00000000000000000000000000000000000000a0"
devFeeReceiver = "0x00000000000000000000000000000000000000d0"
vaultAddress = "0x00000000000000000000000000000000000000f0"

[[tokens]]
address = "0x0000000000000000000000000000000000000a01"
symbol = "YZY"
role = "fee-source"

  [[tokens.alloc]]
  holder = "0x0000000000000000000000000000000000000b01"
  amount = "5000"

  [[tokens.alloc]]
  holder = "0x0000000000000000000000000000000000000b02"
  amount = "4250"

[[tokens]]
address = "0x0000000000000000000000000000000000000a02"
symbol = "UNI-V2"
role = "stakeable"

  [[tokens.alloc]]
  holder = "0x0000000000000000000000000000000000000b02"
  amount = "100"
`

var (
	governance  = crypto.MustParseAddress("0x00000000000000000000000000000000000000a0")
	devReceiver = crypto.MustParseAddress("0x00000000000000000000000000000000000000d0")
	vaultAddr   = crypto.MustParseAddress("0x00000000000000000000000000000000000000f0")
	yzy         = crypto.MustParseAddress("0x0000000000000000000000000000000000000a01")
	lp          = crypto.MustParseAddress("0x0000000000000000000000000000000000000a02")
	bob         = crypto.MustParseAddress("0x0000000000000000000000000000000000000b02")
	carol       = crypto.MustParseAddress("0x0000000000000000000000000000000000000b03")
)

const genesisUnix = 1_704_067_200

type testApp struct {
	*App
	now    time.Time
	events *events.Buffer
}

func (h *testApp) advance(d time.Duration) { h.now = h.now.Add(d) }

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	spec, err := genesis.ParseGenesisSpec(testGenesis)
	require.NoError(t, err)
	seed, err := spec.Seed()
	require.NoError(t, err)

	h := &testApp{
		App:    New(state.NewManager(storage.NewMemDB())),
		now:    time.Unix(genesisUnix+60, 0),
		events: &events.Buffer{},
	}
	h.SetNowFunc(func() time.Time { return h.now })
	h.SetEmitter(h.events)
	applied, err := h.Bootstrap(context.Background(), seed)
	require.NoError(t, err)
	require.True(t, applied)
	return h
}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func milli(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))
}

func requireBalance(t *testing.T, h *testApp, tokenAddr, holder crypto.Address, want *big.Int) {
	t.Helper()
	got, err := h.Balance(tokenAddr, holder)
	require.NoError(t, err)
	require.Zerof(t, want.Cmp(got), "balance of %s: want %s got %s", holder.Hex(), want, got)
}

func TestBootstrapOnce(t *testing.T) {
	h := newTestApp(t)
	spec, err := genesis.ParseGenesisSpec(testGenesis)
	require.NoError(t, err)
	seed, err := spec.Seed()
	require.NoError(t, err)

	applied, err := h.Bootstrap(context.Background(), seed)
	require.NoError(t, err)
	require.False(t, applied)

	summary, err := h.Summary()
	require.NoError(t, err)
	require.Equal(t, uint64(genesisUnix), summary.Global.Clock.Start())
	require.Equal(t, governance, summary.Global.Governance)
	require.Equal(t, yzy, summary.Global.YzyAddress)
	require.Equal(t, lp, summary.Global.UniswapV2Pair)
	requireBalance(t, h, lp, bob, units(100))
}

func TestTransferFeeCreditsCurrentEpoch(t *testing.T) {
	h := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, h.Transfer(ctx, yzy, bob, carol, units(1000)))
	requireBalance(t, h, yzy, carol, units(990))
	requireBalance(t, h, yzy, vaultAddr, units(10))

	view, err := h.Epoch(0)
	require.NoError(t, err)
	require.True(t, view.Materialised)
	require.Zero(t, view.Reward.Cmp(units(10)))

	deposits := h.events.OfType(events.TypeVaultFeeDeposited)
	require.Len(t, deposits, 1)
	require.Equal(t, units(10).String(), deposits[0].Attributes["amount"])
}

func TestStakeFeesClaimFlow(t *testing.T) {
	h := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, h.Approve(ctx, lp, bob, vaultAddr, units(100)))
	require.NoError(t, h.Stake(ctx, bob, units(100)))
	requireBalance(t, h, lp, vaultAddr, units(100))
	require.NoError(t, h.Transfer(ctx, yzy, bob, carol, units(1000)))

	reward, err := h.Reward(bob)
	require.NoError(t, err)
	require.Zero(t, reward.Sign(), "open epoch must not pay out")

	h.advance(24 * time.Hour)
	reward, err = h.Reward(bob)
	require.NoError(t, err)
	require.Zero(t, reward.Cmp(milli(9600)))

	paid, err := h.Claim(ctx, bob)
	require.NoError(t, err)
	require.Zero(t, paid.Cmp(milli(9600)))

	requireBalance(t, h, yzy, bob, new(big.Int).Add(units(3250), milli(9600)))
	requireBalance(t, h, yzy, devReceiver, milli(400))
	requireBalance(t, h, yzy, vaultAddr, big.NewInt(0))

	reward, err = h.Reward(bob)
	require.NoError(t, err)
	require.Zero(t, reward.Sign())
	_, err = h.Claim(ctx, bob)
	require.ErrorIs(t, err, vaulterrors.ErrNothingToClaim)

	acct, err := h.Account(bob)
	require.NoError(t, err)
	require.Zero(t, acct.Claimed.Cmp(milli(9600)))
	require.Equal(t, uint64(genesisUnix), acct.StartedTime)

	stake, err := h.AccountEpochStake(1, bob)
	require.NoError(t, err)
	require.Zero(t, stake.Cmp(units(100)))

	require.NoError(t, h.Unstake(ctx, bob, units(100)))
	requireBalance(t, h, lp, bob, units(100))
}

func TestFailedTransferLegRollsBack(t *testing.T) {
	h := newTestApp(t)
	ctx := context.Background()
	before := len(h.events.Events())

	err := h.Stake(ctx, bob, units(10))
	require.ErrorIs(t, err, vaulterrors.ErrInsufficientBalance)

	summary, err := h.Summary()
	require.NoError(t, err)
	require.Zero(t, summary.Global.TotalStaked.Sign())
	require.False(t, summary.Global.Rolled)
	staked, err := h.AccountEpochStake(0, bob)
	require.NoError(t, err)
	require.Zero(t, staked.Sign())
	require.Len(t, h.events.Events(), before, "aborted operations must not publish events")

	require.NoError(t, h.Approve(ctx, lp, bob, vaultAddr, units(10)))
	published := h.events.Events()
	require.Len(t, published, before+1)
	require.Equal(t, uint64(before+1), published[before].Sequence, "rolled back operations must not consume sequence numbers")
}

func TestEventsAreSequenced(t *testing.T) {
	h := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, h.Transfer(ctx, yzy, bob, carol, units(1)))
	require.NoError(t, h.Approve(ctx, lp, bob, vaultAddr, units(1)))

	var last uint64
	ids := map[string]bool{}
	for _, ev := range h.events.Events() {
		require.Equal(t, last+1, ev.Sequence)
		require.NotEmpty(t, ev.ID)
		require.False(t, ids[ev.ID], "duplicate event id")
		ids[ev.ID] = true
		last = ev.Sequence
	}
	require.NotZero(t, last)
}

func TestPausedRewardTokenBlocksClaim(t *testing.T) {
	h := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, h.Approve(ctx, lp, bob, vaultAddr, units(50)))
	require.NoError(t, h.Stake(ctx, bob, units(50)))
	require.NoError(t, h.Transfer(ctx, yzy, bob, carol, units(100)))
	h.advance(24 * time.Hour)

	require.ErrorIs(t, h.SetTokenPaused(ctx, yzy, bob, true), vaulterrors.ErrUnauthorized)
	require.NoError(t, h.SetTokenPaused(ctx, yzy, governance, true))
	_, err := h.Claim(ctx, bob)
	require.ErrorIs(t, err, vaulterrors.ErrTokenPaused)

	reward, err := h.Reward(bob)
	require.NoError(t, err)
	require.Zero(t, reward.Cmp(milli(960)))

	require.NoError(t, h.SetTokenPaused(ctx, yzy, governance, false))
	paid, err := h.Claim(ctx, bob)
	require.NoError(t, err)
	require.Zero(t, paid.Cmp(milli(960)))
}

func TestGovernanceThroughApp(t *testing.T) {
	h := newTestApp(t)
	ctx := context.Background()

	require.ErrorIs(t, h.ChangeDevFee(ctx, bob, 100), vaulterrors.ErrUnauthorized)
	require.NoError(t, h.ChangeDevFee(ctx, governance, 100))
	require.NoError(t, h.ChangeTransferFee(ctx, yzy, governance, 500))

	require.NoError(t, h.Transfer(ctx, yzy, bob, carol, units(100)))
	requireBalance(t, h, yzy, vaultAddr, units(5))

	summary, err := h.Summary()
	require.NoError(t, err)
	require.Equal(t, uint64(100), summary.Global.DevFee)

	meta, err := h.Token(yzy)
	require.NoError(t, err)
	require.Equal(t, uint64(500), meta.TransferFeeBps)

	require.NoError(t, h.TransferGovernance(ctx, governance, carol))
	require.ErrorIs(t, h.ChangeRewardPeriod(ctx, governance, 60), vaulterrors.ErrUnauthorized)
	require.NoError(t, h.ChangeRewardPeriod(ctx, carol, 60))
}

func TestEpochRangeQueries(t *testing.T) {
	h := newTestApp(t)

	views, err := h.Epochs(0, 4)
	require.NoError(t, err)
	require.Len(t, views, 5)
	require.Equal(t, uint64(genesisUnix+4*86_400), views[4].StartTime)

	_, err = h.Epochs(0, MaxEpochRange)
	require.True(t, errors.Is(err, ErrRangeTooLarge))
	_, err = h.Epochs(3, 2)
	require.Error(t, err)

	e, err := h.EpochAt(genesisUnix + 3*86_400 + 5)
	require.NoError(t, err)
	require.Equal(t, uint64(3), e)
}

func TestCancelledContextSkipsOperation(t *testing.T) {
	h := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h.Transfer(ctx, yzy, bob, carol, units(1)), context.Canceled)
	requireBalance(t, h, yzy, carol, big.NewInt(0))
}

var _ events.Emitter = (*recordingEmitter)(nil)

type recordingEmitter struct{ seen []*types.Event }

func (r *recordingEmitter) Emit(ev *types.Event) { r.seen = append(r.seen, ev) }

func TestSetEmitterNilFallsBack(t *testing.T) {
	h := newTestApp(t)
	rec := &recordingEmitter{}
	h.SetEmitter(events.MultiEmitter{rec, nil})
	require.NoError(t, h.Approve(context.Background(), lp, bob, vaultAddr, units(1)))
	require.Len(t, rec.seen, 1)
	require.Equal(t, events.TypeTokenApproval, rec.seen[0].Type)

	h.SetEmitter(nil)
	require.NoError(t, h.Approve(context.Background(), lp, bob, vaultAddr, units(2)))
	require.Len(t, rec.seen, 1)
}

func TestDepositFeeTakesCustody(t *testing.T) {
	h := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, h.Approve(ctx, lp, bob, vaultAddr, units(100)))
	require.NoError(t, h.Stake(ctx, bob, units(100)))

	err := h.DepositFee(ctx, yzy, units(50))
	require.ErrorIs(t, err, vaulterrors.ErrInsufficientBalance, "the token holds no fee income yet")
	summary, err := h.Summary()
	require.NoError(t, err)
	require.Zero(t, summary.Global.TotalDeposited.Sign())

	require.ErrorIs(t, h.DepositFee(ctx, bob, units(1)), vaulterrors.ErrNoFeeSource)

	// 1% of the transfer lands in the vault as fee income; the rest is held by
	// the token contract for the explicit deposit.
	require.NoError(t, h.Transfer(ctx, yzy, bob, yzy, units(1000)))
	require.NoError(t, h.DepositFee(ctx, yzy, units(50)))

	summary, err = h.Summary()
	require.NoError(t, err)
	require.Zero(t, summary.Global.TotalDeposited.Cmp(units(60)))
	custody, err := h.Balance(yzy, vaultAddr)
	require.NoError(t, err)
	require.Zero(t, summary.Global.Undistributed().Cmp(custody))
	requireBalance(t, h, yzy, yzy, units(940))

	h.advance(24 * time.Hour)
	paid, err := h.Claim(ctx, bob)
	require.NoError(t, err)
	require.Zero(t, paid.Cmp(milli(57600)))
	summary, err = h.Summary()
	require.NoError(t, err)
	custody, err = h.Balance(yzy, vaultAddr)
	require.NoError(t, err)
	require.Zero(t, summary.Global.Undistributed().Cmp(custody))
}

func TestOperationsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	h := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, h.Approve(ctx, lp, bob, vaultAddr, units(1)))
	require.ErrorIs(t, h.DepositFee(ctx, bob, units(1)), vaulterrors.ErrNoFeeSource)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	require.Equal(t, "vault.genesis", spans[0].Name())
	spans = spans[1:]
	require.Equal(t, "vault.approve", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, "vault.depositFee", spans[1].Name())
	require.Equal(t, codes.Error, spans[1].Status().Code)
	require.Equal(t, "no_fee_source", spans[1].Status().Description)
}
