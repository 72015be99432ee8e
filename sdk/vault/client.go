// Package vault is a Go client for the vaultd HTTP API.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	vaulterrors "yzyvault/core/errors"
	"yzyvault/crypto"
	"yzyvault/services/vaultd/api"
)

// Client talks to one vaultd endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	authToken  string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAuthToken sets the bearer token attached to every request. Writes are
// rejected without one.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = strings.TrimSpace(token)
	}
}

// New initialises a client bound to endpoint, e.g. http://127.0.0.1:8645.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("client: endpoint required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("client: parse endpoint: %w", err)
	}
	c := &Client{endpoint: trimmed, httpClient: http.DefaultClient}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c, nil
}

// APIError is a non-2xx response. It unwraps to the matching core/errors
// sentinel so callers can use errors.Is.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("client: %s (%d): %s [request %s]", e.Code, e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("client: %s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if sentinel := vaulterrors.FromCode(e.Code); sentinel != nil {
		return sentinel
	}
	return nil
}

// --- reads ---

// Summary returns the vault parameters and lifetime totals.
func (c *Client) Summary(ctx context.Context) (*api.VaultSummary, error) {
	var out api.VaultSummary
	if err := c.get(ctx, "/v1/vault", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Epoch returns one epoch.
func (c *Client) Epoch(ctx context.Context, epoch uint64) (*api.Epoch, error) {
	var out api.Epoch
	if err := c.get(ctx, "/v1/vault/epochs/"+strconv.FormatUint(epoch, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EpochAt returns the epoch containing the unix timestamp ts.
func (c *Client) EpochAt(ctx context.Context, ts uint64) (*api.Epoch, error) {
	var out api.Epoch
	query := url.Values{"at": {strconv.FormatUint(ts, 10)}}
	if err := c.get(ctx, "/v1/vault/epochs", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Epochs returns the inclusive range [from, to].
func (c *Client) Epochs(ctx context.Context, from, to uint64) ([]api.Epoch, error) {
	var out []api.Epoch
	if err := c.get(ctx, "/v1/vault/epochs", rangeQuery(from, to), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Account returns the staking ledger of addr.
func (c *Client) Account(ctx context.Context, addr crypto.Address) (*api.Account, error) {
	var out api.Account
	if err := c.get(ctx, "/v1/vault/accounts/"+addr.Hex(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reward returns the amount addr could claim now.
func (c *Client) Reward(ctx context.Context, addr crypto.Address) (*big.Int, error) {
	var out api.Reward
	if err := c.get(ctx, "/v1/vault/accounts/"+addr.Hex()+"/reward", nil, &out); err != nil {
		return nil, err
	}
	return parseAmount(out.Reward)
}

// AccountEpochStake returns the stake addr carried into epoch.
func (c *Client) AccountEpochStake(ctx context.Context, epoch uint64, addr crypto.Address) (*big.Int, error) {
	var out api.AccountEpoch
	path := fmt.Sprintf("/v1/vault/accounts/%s/epochs/%d", addr.Hex(), epoch)
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return parseAmount(out.Staked)
}

// Token returns the metadata of a ledger token.
func (c *Client) Token(ctx context.Context, tokenAddr crypto.Address) (*api.Token, error) {
	var out api.Token
	if err := c.get(ctx, "/v1/tokens/"+tokenAddr.Hex(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance returns holder's balance of tokenAddr.
func (c *Client) Balance(ctx context.Context, tokenAddr, holder crypto.Address) (*big.Int, error) {
	var out api.Balance
	path := fmt.Sprintf("/v1/tokens/%s/balances/%s", tokenAddr.Hex(), holder.Hex())
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return parseAmount(out.Balance)
}

// Allowance returns what spender may move on behalf of owner.
func (c *Client) Allowance(ctx context.Context, tokenAddr, owner, spender crypto.Address) (*big.Int, error) {
	var out api.Allowance
	path := fmt.Sprintf("/v1/tokens/%s/allowances/%s/%s", tokenAddr.Hex(), owner.Hex(), spender.Hex())
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return parseAmount(out.Allowance)
}

// EventFilter narrows an event journal query.
type EventFilter struct {
	Type    string
	Account string
	After   uint64
	Limit   int
}

// Events queries the event journal.
func (c *Client) Events(ctx context.Context, filter EventFilter) (*api.Events, error) {
	query := url.Values{}
	if filter.Type != "" {
		query.Set("type", filter.Type)
	}
	if filter.Account != "" {
		query.Set("account", filter.Account)
	}
	if filter.After > 0 {
		query.Set("after", strconv.FormatUint(filter.After, 10))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	var out api.Events
	if err := c.get(ctx, "/v1/events", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportEpochs downloads the epoch ledger for [from, to] in format (parquet,
// csv or jsonl) and returns the payload with its server side checksum.
func (c *Client) ExportEpochs(ctx context.Context, format string, from, to uint64) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/exports/epochs."+format, rangeQuery(from, to), nil, false)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("client: read export: %w", err)
	}
	return data, resp.Header.Get("X-Checksum-Sha256"), nil
}

// --- vault writes ---

// Stake locks amount of the stakeable token. The vault must hold an
// allowance of at least amount.
func (c *Client) Stake(ctx context.Context, amount *big.Int) error {
	return c.post(ctx, "/v1/vault/stake", api.AmountRequest{Amount: amount.String()}, nil)
}

// Unstake withdraws amount and collects settled rewards.
func (c *Client) Unstake(ctx context.Context, amount *big.Int) error {
	return c.post(ctx, "/v1/vault/unstake", api.AmountRequest{Amount: amount.String()}, nil)
}

// Claim collects every settled reward and returns the amount paid.
func (c *Client) Claim(ctx context.Context) (*big.Int, error) {
	var out api.ClaimResponse
	if err := c.post(ctx, "/v1/vault/claim", nil, &out); err != nil {
		return nil, err
	}
	return parseAmount(out.Paid)
}

// DepositFee moves fee income held by the fee-source token into the vault.
// Only the fee-source token may call it.
func (c *Client) DepositFee(ctx context.Context, amount *big.Int) error {
	return c.post(ctx, "/v1/vault/fees", api.AmountRequest{Amount: amount.String()}, nil)
}

// Vault governance parameters accepted by SetVaultParam.
const (
	ParamRewardPeriod   = "reward-period"
	ParamDevFee         = "dev-fee"
	ParamDevFeeReceiver = "dev-fee-receiver"
	ParamUniswapV2Pair  = "uniswap-v2-pair"
	ParamYzyAddress     = "yzy-address"
	ParamGovernance     = "governance"
)

// SetVaultParam changes one vault governance parameter.
func (c *Client) SetVaultParam(ctx context.Context, param, value string) error {
	return c.post(ctx, "/v1/vault/governance/"+param, api.ValueRequest{Value: value}, nil)
}

// --- token writes ---

// Transfer moves amount of tokenAddr from the caller to to.
func (c *Client) Transfer(ctx context.Context, tokenAddr, to crypto.Address, amount *big.Int) error {
	req := api.TransferRequest{To: to.Hex(), Amount: amount.String()}
	return c.post(ctx, "/v1/tokens/"+tokenAddr.Hex()+"/transfer", req, nil)
}

// Approve sets spender's allowance over the caller's balance.
func (c *Client) Approve(ctx context.Context, tokenAddr, spender crypto.Address, amount *big.Int) error {
	req := api.ApproveRequest{Spender: spender.Hex(), Amount: amount.String()}
	return c.post(ctx, "/v1/tokens/"+tokenAddr.Hex()+"/approve", req, nil)
}

// Token governance parameters accepted by SetTokenParam.
const (
	ParamTransferFee = "transfer-fee"
	ParamOwner       = "owner"
	ParamVault       = "vault"
)

// SetTokenParam changes one token governance parameter.
func (c *Client) SetTokenParam(ctx context.Context, tokenAddr crypto.Address, param, value string) error {
	return c.post(ctx, "/v1/tokens/"+tokenAddr.Hex()+"/governance/"+param, api.ValueRequest{Value: value}, nil)
}

// SetPaused pauses or resumes transfers of tokenAddr.
func (c *Client) SetPaused(ctx context.Context, tokenAddr crypto.Address, paused bool) error {
	action := "unpause"
	if paused {
		action = "pause"
	}
	return c.post(ctx, "/v1/tokens/"+tokenAddr.Hex()+"/governance/"+action, nil, nil)
}

// SetFeeExempt toggles the transfer fee exemption of holder.
func (c *Client) SetFeeExempt(ctx context.Context, tokenAddr, holder crypto.Address, exempt bool) error {
	req := api.ExemptRequest{Holder: holder.Hex(), Exempt: exempt}
	return c.post(ctx, "/v1/tokens/"+tokenAddr.Hex()+"/governance/exempt", req, nil)
}

// --- transport ---

func rangeQuery(from, to uint64) url.Values {
	return url.Values{
		"from": {strconv.FormatUint(from, 10)},
		"to":   {strconv.FormatUint(to, 10)},
	}
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("client: invalid amount %q", raw)
	}
	return v, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	resp, err := c.do(ctx, http.MethodPost, path, nil, payload, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}, requireAuth bool) (*http.Response, error) {
	if requireAuth && c.authToken == "" {
		return nil, fmt.Errorf("client: auth token required for %s", path)
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("client: encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return resp, nil
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload api.Error
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		return &APIError{Status: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{Status: resp.StatusCode, Code: payload.Error, Message: payload.Message, RequestID: payload.RequestID}
}

func decode(resp *http.Response, out interface{}) error {
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
