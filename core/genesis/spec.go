// core/genesis/spec.go
package genesis

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"yzyvault/core/epoch"
	"yzyvault/crypto"
	"yzyvault/native/token"
	"yzyvault/native/vault"
)

const (
	RoleFeeSource = "fee-source"
	RoleStakeable = "stakeable"
)

type GenesisSpec struct {
	GenesisTime    string      `toml:"genesisTime"`
	RewardPeriod   *uint64     `toml:"rewardPeriod"`
	DevFee         *uint64     `toml:"devFee"`
	Governance     string      `toml:"governance"`
	DevFeeReceiver string      `toml:"devFeeReceiver"`
	VaultAddress   string      `toml:"vaultAddress"`
	Tokens         []TokenSpec `toml:"tokens"`

	startTime time.Time
}

type TokenSpec struct {
	Address     string      `toml:"address"`
	Name        string      `toml:"name"`
	Symbol      string      `toml:"symbol"`
	Decimals    *uint8      `toml:"decimals"`
	Role        string      `toml:"role"`
	TransferFee *uint64     `toml:"transferFee"`
	Governance  string      `toml:"governance"`
	Exempt      []string    `toml:"exempt"`
	Alloc       []AllocSpec `toml:"alloc"`
}

// AllocSpec is a genesis balance. Amount is in whole tokens and may carry a
// fractional part up to the token's decimals.
type AllocSpec struct {
	Holder string `toml:"holder"`
	Amount string `toml:"amount"`
	Label  string `toml:"label"`
}

// Seed is the validated genesis state ready to be written.
type Seed struct {
	Vault  vault.Params
	Tokens []TokenSeed
}

type TokenSeed struct {
	Meta        token.Meta
	Allocations []token.Allocation
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(string(raw))
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a TOML genesis document. Unknown keys
// are rejected.
func ParseGenesisSpec(raw string) (*GenesisSpec, error) {
	var spec GenesisSpec
	meta, err := toml.Decode(raw, &spec)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown field %q", undecoded[0].String())
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) StartTime() time.Time { return s.startTime }

func (s *GenesisSpec) validate() error {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(s.GenesisTime))
	if err != nil {
		return fmt.Errorf("genesisTime must be RFC3339: %w", err)
	}
	if parsed.Unix() < 0 {
		return fmt.Errorf("genesisTime must not precede the unix epoch")
	}
	s.startTime = parsed.UTC()
	if s.RewardPeriod != nil && *s.RewardPeriod == 0 {
		return fmt.Errorf("rewardPeriod must be positive")
	}
	if s.RewardPeriod != nil && *s.RewardPeriod > epoch.MaxPeriod {
		return fmt.Errorf("rewardPeriod %d exceeds %d seconds", *s.RewardPeriod, epoch.MaxPeriod)
	}
	if s.DevFee != nil && *s.DevFee > vault.BasisPoints {
		return fmt.Errorf("devFee must be <= %d", vault.BasisPoints)
	}
	if _, err := crypto.ParseAddress(s.Governance); err != nil {
		return fmt.Errorf("governance: %w", err)
	}
	if _, err := crypto.ParseAddress(s.VaultAddress); err != nil {
		return fmt.Errorf("vaultAddress: %w", err)
	}
	if strings.TrimSpace(s.DevFeeReceiver) != "" {
		if _, err := crypto.ParseAddress(s.DevFeeReceiver); err != nil {
			return fmt.Errorf("devFeeReceiver: %w", err)
		}
	}
	roles := map[string]bool{}
	seen := map[string]bool{}
	for i := range s.Tokens {
		tok := &s.Tokens[i]
		if err := tok.validate(); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		key := strings.ToLower(strings.TrimSpace(tok.Address))
		if seen[key] {
			return fmt.Errorf("tokens[%d]: duplicate address %s", i, tok.Address)
		}
		seen[key] = true
		if tok.Role != "" {
			if roles[tok.Role] {
				return fmt.Errorf("tokens[%d]: role %q assigned twice", i, tok.Role)
			}
			roles[tok.Role] = true
		}
	}
	return nil
}

func (t *TokenSpec) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol required")
	}
	if _, err := crypto.ParseAddress(t.Address); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	switch t.Role {
	case "", RoleFeeSource, RoleStakeable:
	default:
		return fmt.Errorf("unknown role %q", t.Role)
	}
	if t.TransferFee != nil && *t.TransferFee > token.BasisPoints {
		return fmt.Errorf("transferFee must be <= %d", token.BasisPoints)
	}
	if t.Decimals != nil && *t.Decimals > 77 {
		return fmt.Errorf("decimals %d out of range", *t.Decimals)
	}
	if strings.TrimSpace(t.Governance) != "" {
		if _, err := crypto.ParseAddress(t.Governance); err != nil {
			return fmt.Errorf("governance: %w", err)
		}
	}
	for _, exempt := range t.Exempt {
		if _, err := crypto.ParseAddress(exempt); err != nil {
			return fmt.Errorf("exempt: %w", err)
		}
	}
	for i, alloc := range t.Alloc {
		if _, err := crypto.ParseAddress(alloc.Holder); err != nil {
			return fmt.Errorf("alloc[%d] holder: %w", i, err)
		}
		if _, err := token.ParseUnits(alloc.Amount, t.decimals()); err != nil {
			return fmt.Errorf("alloc[%d]: %w", i, err)
		}
	}
	return nil
}

func (t *TokenSpec) decimals() uint8 {
	if t.Decimals == nil {
		return token.DefaultDecimals
	}
	return *t.Decimals
}

// Seed resolves the spec into ledger records. The fee-source token charges
// its transfer fee into the vault address and the vault itself is exempt.
func (s *GenesisSpec) Seed() (*Seed, error) {
	governance := crypto.MustParseAddress(s.Governance)
	vaultAddr := crypto.MustParseAddress(s.VaultAddress)
	params := vault.Params{
		StartTime:    uint64(s.startTime.Unix()),
		RewardPeriod: epoch.DefaultPeriod,
		DevFee:       vault.DefaultDevFee,
		Governance:   governance,
		VaultAddress: vaultAddr,
	}
	if s.RewardPeriod != nil {
		params.RewardPeriod = *s.RewardPeriod
	}
	if s.DevFee != nil {
		params.DevFee = *s.DevFee
	}
	if strings.TrimSpace(s.DevFeeReceiver) != "" {
		params.DevFeeReceiver = crypto.MustParseAddress(s.DevFeeReceiver)
	}

	seed := &Seed{}
	for _, spec := range s.Tokens {
		meta := token.Meta{
			Address:    crypto.MustParseAddress(spec.Address),
			Name:       strings.TrimSpace(spec.Name),
			Symbol:     strings.TrimSpace(spec.Symbol),
			Decimals:   spec.decimals(),
			Governance: governance,
		}
		if strings.TrimSpace(spec.Governance) != "" {
			meta.Governance = crypto.MustParseAddress(spec.Governance)
		}
		for _, exempt := range spec.Exempt {
			meta.Exempt = append(meta.Exempt, crypto.MustParseAddress(exempt))
		}
		switch spec.Role {
		case RoleFeeSource:
			params.YzyAddress = meta.Address
			meta.FeeSink = vaultAddr
			meta.TransferFeeBps = token.DefaultTransferFeeBps
		case RoleStakeable:
			params.UniswapV2Pair = meta.Address
		}
		if spec.TransferFee != nil {
			meta.TransferFeeBps = *spec.TransferFee
		}
		tokenSeed := TokenSeed{Meta: meta}
		for _, alloc := range spec.Alloc {
			amount, err := token.ParseUnits(alloc.Amount, meta.Decimals)
			if err != nil {
				return nil, err
			}
			tokenSeed.Allocations = append(tokenSeed.Allocations, token.Allocation{
				Holder: crypto.MustParseAddress(alloc.Holder),
				Amount: amount,
			})
		}
		seed.Tokens = append(seed.Tokens, tokenSeed)
	}
	seed.Vault = params
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return seed, nil
}

// TotalSupply sums the allocations of a token seed.
func (t TokenSeed) TotalSupply() *big.Int {
	total := big.NewInt(0)
	for _, alloc := range t.Allocations {
		total.Add(total, alloc.Amount)
	}
	return total
}
