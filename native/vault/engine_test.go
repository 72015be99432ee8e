package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	vaulterrors "yzyvault/core/errors"
	"yzyvault/core/events"
	"yzyvault/core/state"
	"yzyvault/crypto"
	"yzyvault/storage"
)

type memoryVaultState struct {
	kv map[string][]byte
}

func newMemoryVaultState() *memoryVaultState {
	return &memoryVaultState{kv: make(map[string][]byte)}
}

func (m *memoryVaultState) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.kv[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryVaultState) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.kv[string(key)] = encoded
	return nil
}

func (m *memoryVaultState) snapshot() map[string]string {
	out := make(map[string]string, len(m.kv))
	for k, v := range m.kv {
		out[k] = string(v)
	}
	return out
}

type mockBank struct {
	balances map[crypto.Address]map[crypto.Address]*big.Int
	fail     error
}

func newMockBank() *mockBank {
	return &mockBank{balances: make(map[crypto.Address]map[crypto.Address]*big.Int)}
}

func (b *mockBank) balance(token, holder crypto.Address) *big.Int {
	holders, ok := b.balances[token]
	if !ok {
		holders = make(map[crypto.Address]*big.Int)
		b.balances[token] = holders
	}
	bal, ok := holders[holder]
	if !ok {
		bal = big.NewInt(0)
		holders[holder] = bal
	}
	return bal
}

func (b *mockBank) mint(token, holder crypto.Address, amount int64) {
	bal := b.balance(token, holder)
	bal.Add(bal, big.NewInt(amount))
}

func (b *mockBank) Transfer(token, from, to crypto.Address, amount *big.Int) error {
	if b.fail != nil {
		return b.fail
	}
	src := b.balance(token, from)
	if src.Cmp(amount) < 0 {
		return vaulterrors.ErrInsufficientBalance
	}
	src.Sub(src, amount)
	dst := b.balance(token, to)
	dst.Add(dst, amount)
	return nil
}

func (b *mockBank) TransferFrom(token, _, from, to crypto.Address, amount *big.Int) error {
	return b.Transfer(token, from, to, amount)
}

type testClock struct{ ts int64 }

func (c *testClock) now() time.Time { return time.Unix(c.ts, 0) }

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[19] = b
	return a
}

const (
	testStart  = 1_000
	testPeriod = 100
)

var (
	gov      = addr(0x01)
	vaultAcc = addr(0x02)
	devAcc   = addr(0x03)
	lpToken  = addr(0xB1)
	yzyToken = addr(0xA1)
	alice    = addr(0x10)
	bob      = addr(0x11)
	carol    = addr(0x12)
)

type harness struct {
	engine *Engine
	state  *memoryVaultState
	bank   *mockBank
	clock  *testClock
	events *events.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		engine: NewEngine(),
		state:  newMemoryVaultState(),
		bank:   newMockBank(),
		clock:  &testClock{ts: testStart},
		events: &events.Buffer{},
	}
	h.engine.SetState(h.state)
	h.engine.SetBank(h.bank)
	h.engine.SetNowFunc(h.clock.now)
	h.engine.SetEmitter(h.events)
	err := h.engine.Initialize(Params{
		StartTime:      testStart,
		RewardPeriod:   testPeriod,
		DevFee:         DefaultDevFee,
		DevFeeReceiver: devAcc,
		Governance:     gov,
		VaultAddress:   vaultAcc,
		UniswapV2Pair:  lpToken,
		YzyAddress:     yzyToken,
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, who := range []crypto.Address{alice, bob, carol} {
		h.bank.mint(lpToken, who, 1_000_000)
	}
	return h
}

func (h *harness) advance(epochs int64) { h.clock.ts += epochs * testPeriod }

func (h *harness) stake(t *testing.T, who crypto.Address, amount int64) {
	t.Helper()
	if err := h.engine.Stake(who, big.NewInt(amount)); err != nil {
		t.Fatalf("stake %d: %v", amount, err)
	}
}

func (h *harness) fee(t *testing.T, amount int64) {
	t.Helper()
	h.bank.mint(yzyToken, vaultAcc, amount)
	if err := h.engine.DepositFee(yzyToken, big.NewInt(amount)); err != nil {
		t.Fatalf("deposit fee %d: %v", amount, err)
	}
}

func (h *harness) reward(t *testing.T, who crypto.Address) *big.Int {
	t.Helper()
	reward, err := h.engine.GetReward(who)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	return reward
}

func expectAmount(t *testing.T, label string, got *big.Int, want int64) {
	t.Helper()
	if got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: got %s want %d", label, got, want)
	}
}

func TestSingleStakerClaim(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fee(t, 50)

	expectAmount(t, "reward in open epoch", h.reward(t, alice), 0)

	h.advance(1)
	expectAmount(t, "reward after rollover", h.reward(t, alice), 48)

	paid, err := h.engine.Claim(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectAmount(t, "paid", paid, 48)
	expectAmount(t, "alice yzy", h.bank.balance(yzyToken, alice), 48)
	expectAmount(t, "dev yzy", h.bank.balance(yzyToken, devAcc), 2)
	expectAmount(t, "reward after claim", h.reward(t, alice), 0)

	if _, err := h.engine.Claim(alice); !errors.Is(err, vaulterrors.ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim, got %v", err)
	}
	global, err := h.engine.Global()
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	expectAmount(t, "total paid", global.TotalPaid, 48)
	expectAmount(t, "total dev paid", global.TotalDevPaid, 2)
	expectAmount(t, "undistributed", global.Undistributed(), 0)

	claims := h.events.OfType(events.TypeVaultRewardClaimed)
	if len(claims) != 1 || claims[0].Attributes["paid"] != "48" || claims[0].Attributes["devFee"] != "2" {
		t.Fatalf("unexpected claim events: %+v", claims)
	}
}

func TestNonStakerEarnsNothing(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 1_000)
	h.fee(t, 200)
	h.advance(1)

	expectAmount(t, "alice", h.reward(t, alice), 192)
	expectAmount(t, "bob", h.reward(t, bob), 0)
	if _, err := h.engine.Claim(bob); !errors.Is(err, vaulterrors.ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim, got %v", err)
	}
}

func TestProportionalSplitAndDust(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 1)
	h.stake(t, bob, 2)
	h.fee(t, 100)
	h.advance(1)

	// distributable = 96; alice 96*1/3 = 32, bob 96*2/3 = 64.
	expectAmount(t, "alice", h.reward(t, alice), 32)
	expectAmount(t, "bob", h.reward(t, bob), 64)

	h.fee(t, 10)
	h.advance(1)
	// distributable = 9 and the gross shares are 3 and 6, so one unit of
	// the 10 stays in the vault.
	expectAmount(t, "alice", h.reward(t, alice), 35)
	expectAmount(t, "bob", h.reward(t, bob), 70)

	for _, who := range []crypto.Address{alice, bob} {
		if _, err := h.engine.Claim(who); err != nil {
			t.Fatalf("claim: %v", err)
		}
	}
	global, _ := h.engine.Global()
	spent := new(big.Int).Add(global.TotalPaid, global.TotalDevPaid)
	if spent.Cmp(global.TotalDeposited) > 0 {
		t.Fatalf("paid %s exceeds deposited %s", spent, global.TotalDeposited)
	}
	expectAmount(t, "vault yzy", h.bank.balance(yzyToken, vaultAcc), global.Undistributed().Int64())
}

func TestGetRewardIdempotent(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 300)
	h.stake(t, bob, 700)
	h.fee(t, 1_234)
	h.advance(2)

	first := h.reward(t, alice)
	before := h.state.snapshot()
	for i := 0; i < 3; i++ {
		if got := h.reward(t, alice); got.Cmp(first) != 0 {
			t.Fatalf("reward drifted: %s != %s", got, first)
		}
	}
	if after := h.state.snapshot(); fmt.Sprint(after) != fmt.Sprint(before) {
		t.Fatalf("reward query mutated state")
	}
}

func TestStakeCarriesForwardAcrossIdleEpochs(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.advance(5)
	h.fee(t, 1_000)
	h.advance(1)

	expectAmount(t, "alice", h.reward(t, alice), 960)
	for epoch := uint64(0); epoch <= 6; epoch++ {
		total, err := h.engine.EpochTotalStakedAmount(epoch)
		if err != nil {
			t.Fatalf("epoch total: %v", err)
		}
		expectAmount(t, fmt.Sprintf("epoch %d total", epoch), total, 100)
		own, err := h.engine.UserEpochStakedAmount(epoch, alice)
		if err != nil {
			t.Fatalf("user epoch stake: %v", err)
		}
		expectAmount(t, fmt.Sprintf("epoch %d alice", epoch), own, 100)
	}
	reward, err := h.engine.EpochReward(5)
	if err != nil {
		t.Fatalf("epoch reward: %v", err)
	}
	expectAmount(t, "epoch 5 reward", reward, 1_000)
}

func TestLateStakerSharesOnlyLaterEpochs(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fee(t, 1_000)
	h.advance(1)
	h.stake(t, bob, 100)
	h.fee(t, 1_000)
	h.advance(1)

	expectAmount(t, "alice", h.reward(t, alice), 960+480)
	expectAmount(t, "bob", h.reward(t, bob), 480)
}

func TestUnstakeAboveBalanceLeavesLedgerUnchanged(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fee(t, 10)
	h.advance(3)

	before := h.state.snapshot()
	err := h.engine.Unstake(alice, big.NewInt(101))
	if !errors.Is(err, vaulterrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if after := h.state.snapshot(); fmt.Sprint(after) != fmt.Sprint(before) {
		t.Fatalf("ledger mutated by rejected unstake")
	}
	if err := h.engine.Unstake(alice, big.NewInt(0)); !errors.Is(err, vaulterrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestUnstakeReturnsTokensAndPaysReward(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fee(t, 100)
	h.advance(1)

	if err := h.engine.Unstake(alice, big.NewInt(40)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	expectAmount(t, "alice lp", h.bank.balance(lpToken, alice), 1_000_000-60)
	expectAmount(t, "alice yzy", h.bank.balance(yzyToken, alice), 96)
	expectAmount(t, "dev yzy", h.bank.balance(yzyToken, devAcc), 4)

	staked, _ := h.engine.UserTotalStakedAmount(alice)
	expectAmount(t, "alice staked", staked, 60)
	total, _ := h.engine.TotalStakedAmount()
	expectAmount(t, "total staked", total, 60)
	expectAmount(t, "reward after unstake", h.reward(t, alice), 0)

	if err := h.engine.Unstake(alice, big.NewInt(60)); err != nil {
		t.Fatalf("full unstake: %v", err)
	}
	if n := len(h.events.OfType(events.TypeVaultUnstaked)); n != 2 {
		t.Fatalf("expected 2 unstake events, got %d", n)
	}
}

func TestStakeRejections(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Stake(alice, big.NewInt(0)); !errors.Is(err, vaulterrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := h.engine.ChangeUniswapV2Pair(gov, crypto.ZeroAddress); err != nil {
		t.Fatalf("clear pair: %v", err)
	}
	if err := h.engine.Stake(alice, big.NewInt(10)); !errors.Is(err, vaulterrors.ErrNoStakeableAsset) {
		t.Fatalf("expected ErrNoStakeableAsset, got %v", err)
	}
}

func TestDepositFeeRequiresFeeSource(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.DepositFee(alice, big.NewInt(10)); !errors.Is(err, vaulterrors.ErrNoFeeSource) {
		t.Fatalf("expected ErrNoFeeSource, got %v", err)
	}
	if err := h.engine.DepositFee(yzyToken, big.NewInt(0)); !errors.Is(err, vaulterrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := h.engine.ChangeYzyAddress(gov, crypto.ZeroAddress); err != nil {
		t.Fatalf("clear yzy: %v", err)
	}
	if err := h.engine.DepositFee(crypto.ZeroAddress, big.NewInt(10)); !errors.Is(err, vaulterrors.ErrNoFeeSource) {
		t.Fatalf("expected ErrNoFeeSource with unset source, got %v", err)
	}
}

func TestUnsetDevFeeReceiverKeepsDevShare(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.ChangeDevFeeReceiver(gov, crypto.ZeroAddress); err != nil {
		t.Fatalf("clear receiver: %v", err)
	}
	h.stake(t, alice, 10)
	h.fee(t, 100)
	h.advance(1)
	if _, err := h.engine.Claim(alice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectAmount(t, "vault keeps dev share", h.bank.balance(yzyToken, vaultAcc), 4)
	global, _ := h.engine.Global()
	expectAmount(t, "dev paid", global.TotalDevPaid, 0)
}

func TestFullDevFeePaysReceiver(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.ChangeDevFee(gov, BasisPoints); err != nil {
		t.Fatalf("change dev fee: %v", err)
	}
	h.stake(t, alice, 100)
	h.fee(t, 100)
	h.advance(1)

	expectAmount(t, "alice reward", h.reward(t, alice), 0)
	paid, err := h.engine.Claim(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectAmount(t, "paid", paid, 0)
	expectAmount(t, "dev yzy", h.bank.balance(yzyToken, devAcc), 100)
	expectAmount(t, "vault yzy", h.bank.balance(yzyToken, vaultAcc), 0)
	if _, err := h.engine.Claim(alice); !errors.Is(err, vaulterrors.ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim after dev payout, got %v", err)
	}

	h.fee(t, 40)
	h.advance(1)
	if err := h.engine.Unstake(alice, big.NewInt(100)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	expectAmount(t, "dev yzy after unstake", h.bank.balance(yzyToken, devAcc), 140)
	global, _ := h.engine.Global()
	expectAmount(t, "total dev paid", global.TotalDevPaid, 140)
	expectAmount(t, "undistributed", global.Undistributed(), 0)
}

func TestFailedTransferDiscardedWithTransaction(t *testing.T) {
	h := newHarness(t)
	manager := state.NewManager(storage.NewMemDB())
	seed := h.state.snapshot()
	if err := manager.Update(func(tx *state.Tx) error {
		for k, v := range seed {
			if err := tx.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	h.bank.fail = vaulterrors.ErrTokenPaused
	err := manager.Update(func(tx *state.Tx) error {
		h.engine.SetState(tx)
		return h.engine.Stake(alice, big.NewInt(10))
	})
	if !errors.Is(err, vaulterrors.ErrTokenPaused) {
		t.Fatalf("expected transfer failure to surface, got %v", err)
	}

	err = manager.View(func(tx *state.Tx) error {
		h.engine.SetState(tx)
		staked, err := h.engine.UserTotalStakedAmount(alice)
		if err != nil {
			return err
		}
		expectAmount(t, "alice staked", staked, 0)
		total, err := h.engine.TotalStakedAmount()
		if err != nil {
			return err
		}
		expectAmount(t, "total staked", total, 0)
		global, err := h.engine.Global()
		if err != nil {
			return err
		}
		if global.Rolled {
			t.Fatalf("epoch roll survived the failed stake")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if n := len(h.events.OfType(events.TypeVaultStaked)); n != 0 {
		t.Fatalf("expected no stake event, got %d", n)
	}
}

func TestUserStartedTimeTracksRollover(t *testing.T) {
	h := newHarness(t)
	h.advance(3)
	h.clock.ts += 17
	h.stake(t, alice, 5)

	started, err := h.engine.UserStartedTime(alice)
	if err != nil {
		t.Fatalf("started: %v", err)
	}
	last, err := h.engine.LastRewardedTime()
	if err != nil {
		t.Fatalf("last rewarded: %v", err)
	}
	if started != last || started != testStart+3*testPeriod {
		t.Fatalf("started %d last %d", started, last)
	}
	if never, _ := h.engine.UserStartedTime(bob); never != 0 {
		t.Fatalf("expected zero start for non-staker, got %d", never)
	}
	rolled := h.events.OfType(events.TypeVaultEpochRolled)
	if len(rolled) != 1 || rolled[0].Attributes["epoch"] != "3" {
		t.Fatalf("unexpected rollover events: %+v", rolled)
	}
}

func TestPeriodChangeKeepsElapsedEpochs(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fee(t, 500)
	h.advance(2)
	h.clock.ts += 30

	before, _ := h.engine.EpochAt(testStart + testPeriod + 50)
	if err := h.engine.ChangeRewardPeriod(gov, 1_000); err != nil {
		t.Fatalf("change period: %v", err)
	}
	after, _ := h.engine.EpochAt(testStart + testPeriod + 50)
	if before != after || after != 1 {
		t.Fatalf("elapsed epoch re-indexed: before %d after %d", before, after)
	}
	cur, _ := h.engine.CurrentEpoch()
	if cur != 2 {
		t.Fatalf("current epoch moved: %d", cur)
	}
	expectAmount(t, "reward", h.reward(t, alice), 480)

	h.advance(1)
	if cur, _ := h.engine.CurrentEpoch(); cur != 3 {
		t.Fatalf("expected epoch 3 after the frozen boundary, got %d", cur)
	}
	h.clock.ts += 500
	if cur, _ := h.engine.CurrentEpoch(); cur != 3 {
		t.Fatalf("expected new period to apply, got %d", cur)
	}
	period, _ := h.engine.RewardPeriod()
	if period != 1_000 {
		t.Fatalf("unexpected period %d", period)
	}
}

func TestGovernanceSetters(t *testing.T) {
	h := newHarness(t)
	next := addr(0x04)
	newPair := addr(0xB2)

	calls := []struct {
		name string
		run  func(caller crypto.Address) error
	}{
		{"rewardPeriod", func(c crypto.Address) error { return h.engine.ChangeRewardPeriod(c, 200) }},
		{"devFee", func(c crypto.Address) error { return h.engine.ChangeDevFee(c, 1_000) }},
		{"devFeeReceiver", func(c crypto.Address) error { return h.engine.ChangeDevFeeReceiver(c, next) }},
		{"uniswapV2Pair", func(c crypto.Address) error { return h.engine.ChangeUniswapV2Pair(c, newPair) }},
		{"yzyAddress", func(c crypto.Address) error { return h.engine.ChangeYzyAddress(c, yzyToken) }},
	}
	for _, call := range calls {
		if err := call.run(alice); !errors.Is(err, vaulterrors.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", call.name, err)
		}
		if err := call.run(gov); err != nil {
			t.Fatalf("%s: %v", call.name, err)
		}
	}

	if fee, _ := h.engine.DevFee(); fee != 1_000 {
		t.Fatalf("dev fee not applied: %d", fee)
	}
	if receiver, _ := h.engine.DevFeeReceiver(); receiver != next {
		t.Fatalf("receiver not applied: %s", receiver.Hex())
	}
	if pair, _ := h.engine.UniswapV2Pair(); pair != newPair {
		t.Fatalf("pair not applied: %s", pair.Hex())
	}
	if period, _ := h.engine.RewardPeriod(); period != 200 {
		t.Fatalf("period not applied: %d", period)
	}

	if err := h.engine.ChangeDevFee(gov, 10_001); !errors.Is(err, vaulterrors.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if err := h.engine.ChangeRewardPeriod(gov, 0); !errors.Is(err, vaulterrors.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if err := h.engine.TransferGovernance(gov, crypto.ZeroAddress); !errors.Is(err, vaulterrors.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if err := h.engine.TransferGovernance(alice, next); !errors.Is(err, vaulterrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.TransferGovernance(gov, next); err != nil {
		t.Fatalf("transfer governance: %v", err)
	}
	if current, _ := h.engine.Governance(); current != next {
		t.Fatalf("governance not transferred: %s", current.Hex())
	}
	if err := h.engine.ChangeDevFee(gov, 0); !errors.Is(err, vaulterrors.ErrUnauthorized) {
		t.Fatalf("expected previous governance to lose access, got %v", err)
	}
	if n := len(h.events.OfType(events.TypeVaultParamChanged)); n != len(calls) {
		t.Fatalf("expected %d param events, got %d", len(calls), n)
	}
}

func TestInitializeValidation(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMemoryVaultState())
	if err := engine.Initialize(Params{RewardPeriod: 0, Governance: gov, VaultAddress: vaultAcc}); !errors.Is(err, vaulterrors.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	params := Params{RewardPeriod: 10, Governance: gov, VaultAddress: vaultAcc}
	if err := engine.Initialize(params); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.Initialize(params); err == nil {
		t.Fatalf("expected second initialize to fail")
	}
}

func TestRewardPeriodUpperBound(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.ChangeRewardPeriod(gov, ^uint64(0)); !errors.Is(err, vaulterrors.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if period, _ := h.engine.RewardPeriod(); period != testPeriod {
		t.Fatalf("period changed to %d", period)
	}
}

func TestExistingStakerActsInFreshEpoch(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fee(t, 100)
	h.advance(1)

	h.stake(t, alice, 100)
	acct, err := h.engine.Account(alice)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	expectAmount(t, "settled into pending", acct.Reward, 96)
	h.fee(t, 100)
	h.advance(1)

	expectAmount(t, "reward", h.reward(t, alice), 192)
	paid, err := h.engine.Claim(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectAmount(t, "paid", paid, 192)
	expectAmount(t, "epoch 1 total", mustEpochTotal(t, h, 1), 200)
}

func mustEpochTotal(t *testing.T, h *harness, epoch uint64) *big.Int {
	t.Helper()
	total, err := h.engine.EpochTotalStakedAmount(epoch)
	if err != nil {
		t.Fatalf("epoch total: %v", err)
	}
	return total
}
