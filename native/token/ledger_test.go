package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	vaulterrors "yzyvault/core/errors"
	"yzyvault/core/events"
	"yzyvault/crypto"
)

type memoryLedgerState struct {
	kv map[string][]byte
}

func newMemoryLedgerState() *memoryLedgerState {
	return &memoryLedgerState{kv: make(map[string][]byte)}
}

func (m *memoryLedgerState) KVGet(key []byte, out interface{}) (bool, error) {
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

func (m *memoryLedgerState) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.kv[string(key)] = encoded
	return nil
}

func (m *memoryLedgerState) KVDelete(key []byte) error {
	delete(m.kv, string(key))
	return nil
}

type recordingSink struct {
	deposits []*big.Int
	err      error
}

func (s *recordingSink) VaultAddress() (crypto.Address, error) { return vault, nil }

func (s *recordingSink) DepositFee(_ crypto.Address, amount *big.Int) error {
	if s.err != nil {
		return s.err
	}
	s.deposits = append(s.deposits, new(big.Int).Set(amount))
	return nil
}

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[19] = b
	return a
}

var (
	yzy   = addr(0xA1)
	gov   = addr(0x01)
	vault = addr(0x02)
	alice = addr(0x10)
	bob   = addr(0x11)
)

func newTestLedger(t *testing.T, feeBps uint64) (*Ledger, *recordingSink, *events.Buffer) {
	t.Helper()
	ledger := NewLedger(newMemoryLedgerState())
	sink := &recordingSink{}
	buffer := &events.Buffer{}
	ledger.SetFeeSink(sink)
	ledger.SetEmitter(buffer)
	meta := Meta{
		Address:        yzy,
		Name:           "YZY",
		Symbol:         "YZY",
		Decimals:       DefaultDecimals,
		TransferFeeBps: feeBps,
		Governance:     gov,
		FeeSink:        vault,
	}
	if err := ledger.Register(meta, []Allocation{{Holder: alice, Amount: big.NewInt(10_000)}, {Holder: bob, Amount: big.NewInt(500)}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return ledger, sink, buffer
}

func mustBalance(t *testing.T, ledger *Ledger, holder crypto.Address) *big.Int {
	t.Helper()
	balance, err := ledger.BalanceOf(yzy, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}

func TestRegisterSumsSupply(t *testing.T) {
	ledger, _, _ := newTestLedger(t, DefaultTransferFeeBps)
	meta, err := ledger.Meta(yzy)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.TotalSupply.Cmp(big.NewInt(10_500)) != 0 {
		t.Fatalf("expected supply 10500, got %s", meta.TotalSupply)
	}
	if err := ledger.Register(Meta{Address: yzy, Symbol: "YZY"}, nil); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if _, err := ledger.Meta(addr(0xFF)); !errors.Is(err, vaulterrors.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestTransferWithholdsFee(t *testing.T) {
	ledger, sink, buffer := newTestLedger(t, DefaultTransferFeeBps)

	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := mustBalance(t, ledger, alice); got.Cmp(big.NewInt(9_000)) != 0 {
		t.Fatalf("alice balance: got %s", got)
	}
	if got := mustBalance(t, ledger, bob); got.Cmp(big.NewInt(1_490)) != 0 {
		t.Fatalf("bob balance: got %s", got)
	}
	if got := mustBalance(t, ledger, vault); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("vault balance: got %s", got)
	}
	if len(sink.deposits) != 1 || sink.deposits[0].Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected sink deposits: %v", sink.deposits)
	}
	transfers := buffer.OfType(events.TypeTokenTransfer)
	if len(transfers) != 1 || transfers[0].Attributes["fee"] != "10" {
		t.Fatalf("unexpected transfer events: %+v", transfers)
	}
}

func TestTransferExemptAndDust(t *testing.T) {
	ledger, sink, _ := newTestLedger(t, DefaultTransferFeeBps)

	// 99 * 100 / 10000 rounds down to zero.
	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(99)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(sink.deposits) != 0 {
		t.Fatalf("expected no fee on dust transfer, got %v", sink.deposits)
	}

	if err := ledger.SetFeeExempt(yzy, gov, alice, true); err != nil {
		t.Fatalf("exempt: %v", err)
	}
	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(sink.deposits) != 0 {
		t.Fatalf("expected exempt transfer to skip fee, got %v", sink.deposits)
	}
	if err := ledger.SetFeeExempt(yzy, gov, alice, false); err != nil {
		t.Fatalf("unexempt: %v", err)
	}
	meta, _ := ledger.Meta(yzy)
	if meta.IsExempt(alice) {
		t.Fatalf("expected alice to be charged again")
	}
}

func TestTransferRejections(t *testing.T) {
	ledger, _, _ := newTestLedger(t, DefaultTransferFeeBps)

	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(0)); !errors.Is(err, vaulterrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ledger.Transfer(yzy, bob, alice, big.NewInt(501)); !errors.Is(err, vaulterrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.SetPaused(yzy, alice, true); !errors.Is(err, vaulterrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := ledger.SetPaused(yzy, gov, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(10)); !errors.Is(err, vaulterrors.ErrTokenPaused) {
		t.Fatalf("expected ErrTokenPaused, got %v", err)
	}
	if err := ledger.SetPaused(yzy, gov, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(10)); err != nil {
		t.Fatalf("transfer after unpause: %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _, buffer := newTestLedger(t, 0)

	if err := ledger.TransferFrom(yzy, vault, alice, vault, big.NewInt(100)); !errors.Is(err, vaulterrors.ErrInsufficientBalance) {
		t.Fatalf("expected allowance shortfall, got %v", err)
	}
	if err := ledger.Approve(yzy, alice, vault, big.NewInt(150)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(buffer.OfType(events.TypeTokenApproval)) != 1 {
		t.Fatalf("expected approval event")
	}
	if err := ledger.TransferFrom(yzy, vault, alice, vault, big.NewInt(100)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	allowance, err := ledger.Allowance(yzy, alice, vault)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected allowance 50, got %s", allowance)
	}
	if got := mustBalance(t, ledger, vault); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("vault balance: got %s", got)
	}
}

func TestGovernanceSetters(t *testing.T) {
	ledger, sink, buffer := newTestLedger(t, DefaultTransferFeeBps)

	if err := ledger.ChangeTransferFee(yzy, gov, 10_001); !errors.Is(err, vaulterrors.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if err := ledger.ChangeTransferFee(yzy, gov, 500); err != nil {
		t.Fatalf("change fee: %v", err)
	}
	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if sink.deposits[0].Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected 5%% fee, got %s", sink.deposits[0])
	}

	next := addr(0x03)
	if err := ledger.TransferOwnership(yzy, gov, crypto.ZeroAddress); !errors.Is(err, vaulterrors.ErrInvalidParameter) {
		t.Fatalf("expected zero owner rejection, got %v", err)
	}
	if err := ledger.TransferOwnership(yzy, gov, next); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if err := ledger.ChangeFeeSink(yzy, gov, next); !errors.Is(err, vaulterrors.ErrUnauthorized) {
		t.Fatalf("expected previous owner to lose access, got %v", err)
	}
	if err := ledger.ChangeFeeSink(yzy, next, crypto.ZeroAddress); err != nil {
		t.Fatalf("change sink: %v", err)
	}
	before := len(sink.deposits)
	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(sink.deposits) != before {
		t.Fatalf("expected unset sink to disable the fee")
	}
	if n := len(buffer.OfType(events.TypeTokenParamChanged)); n != 3 {
		t.Fatalf("expected 3 param events, got %d", n)
	}
}

func TestSinkFailurePropagates(t *testing.T) {
	ledger, sink, _ := newTestLedger(t, DefaultTransferFeeBps)
	sink.err = vaulterrors.ErrNoFeeSource
	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(1_000)); !errors.Is(err, vaulterrors.ErrNoFeeSource) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestUnits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{".25", "250000000000000000"},
		{"0", "0"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.in, DefaultDecimals)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("parse %q: got %s want %s", tc.in, got, tc.want)
		}
	}
	if FormatUnits(big.NewInt(1_500_000_000_000_000_000), DefaultDecimals) != "1.5" {
		t.Fatalf("unexpected format")
	}
	if _, err := ParseUnits("1.0000000000000000001", DefaultDecimals); err == nil {
		t.Fatalf("expected precision error")
	}
	if _, err := ParseAmount("-1"); err == nil {
		t.Fatalf("expected negative amount error")
	}
}

func TestFeeToForeignSinkIsNotVaultIncome(t *testing.T) {
	ledger, sink, _ := newTestLedger(t, DefaultTransferFeeBps)
	treasury := addr(0x04)
	if err := ledger.ChangeFeeSink(yzy, gov, treasury); err != nil {
		t.Fatalf("change sink: %v", err)
	}
	if err := ledger.Transfer(yzy, alice, bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := mustBalance(t, ledger, treasury); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected treasury to receive the fee, got %s", got)
	}
	if len(sink.deposits) != 0 {
		t.Fatalf("fee outside the vault was credited as income: %v", sink.deposits)
	}
}

func TestMoveSkipsFee(t *testing.T) {
	ledger, sink, _ := newTestLedger(t, DefaultTransferFeeBps)
	if err := ledger.Move(yzy, alice, bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := mustBalance(t, ledger, bob); got.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("expected bob 1500, got %s", got)
	}
	if len(sink.deposits) != 0 {
		t.Fatalf("move withheld a fee: %v", sink.deposits)
	}
	if err := ledger.Move(yzy, bob, alice, big.NewInt(0)); !errors.Is(err, vaulterrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
