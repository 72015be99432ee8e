package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"yzyvault/core/app"
	"yzyvault/crypto"
	"yzyvault/native/token"
	"yzyvault/native/vault"
	"yzyvault/services/vaultd/api"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return invalid(fmt.Sprintf("decode body: %v", err))
	}
	return nil
}

func pathAddress(r *http.Request, name string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return crypto.ZeroAddress, invalid(fmt.Sprintf("%s: %v", name, err))
	}
	return addr, nil
}

func parseUint(raw, name string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, invalid(fmt.Sprintf("%s must be an unsigned integer", name))
	}
	return v, nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, err := token.ParseAmount(raw)
	if err != nil {
		return nil, invalid(fmt.Sprintf("amount: %v", err))
	}
	return amount, nil
}

func parseAddress(raw, name string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return crypto.ZeroAddress, invalid(fmt.Sprintf("%s: %v", name, err))
	}
	return addr, nil
}

func callerOf(r *http.Request) crypto.Address {
	caller, _ := CallerFrom(r.Context())
	return caller
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func epochPayload(view *vault.EpochView) api.Epoch {
	return api.Epoch{
		Epoch:        view.Epoch,
		StartTime:    view.StartTime,
		Period:       view.Period,
		Reward:       amountString(view.Reward),
		TotalStaked:  amountString(view.TotalStaked),
		Materialised: view.Materialised,
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.app.Summary()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g := summary.Global
	writeJSON(w, http.StatusOK, api.VaultSummary{
		Governance:        g.Governance.Hex(),
		VaultAddress:      g.VaultAddress.Hex(),
		UniswapV2Pair:     g.UniswapV2Pair.Hex(),
		YzyAddress:        g.YzyAddress.Hex(),
		DevFeeReceiver:    g.DevFeeReceiver.Hex(),
		DevFee:            g.DevFee,
		RewardPeriod:      g.Clock.Period(),
		ContractStartTime: g.Clock.Start(),
		LastRewardedTime:  g.LastRewardedTime(),
		CurrentEpoch:      summary.CurrentEpoch,
		TotalStaked:       amountString(g.TotalStaked),
		TotalDeposited:    amountString(g.TotalDeposited),
		TotalPaid:         amountString(g.TotalPaid),
		TotalDevPaid:      amountString(g.TotalDevPaid),
		Undistributed:     amountString(g.Undistributed()),
	})
}

func (s *Server) handleEpoch(w http.ResponseWriter, r *http.Request) {
	epoch, err := parseUint(chi.URLParam(r, "epoch"), "epoch")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.app.Epoch(epoch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, epochPayload(view))
}

// handleEpochs serves ?at=<unix> as a single epoch and ?from=&to= as a list.
func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if at := query.Get("at"); at != "" {
		ts, err := parseUint(at, "at")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		epoch, err := s.app.EpochAt(ts)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		view, err := s.app.Epoch(epoch)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, epochPayload(view))
		return
	}
	from, to, err := s.epochRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.app.Epochs(from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Epoch, 0, len(views))
	for _, view := range views {
		out = append(out, epochPayload(view))
	}
	writeJSON(w, http.StatusOK, out)
}

// epochRange reads from/to, defaulting to the whole history up to the
// current epoch.
func (s *Server) epochRange(r *http.Request) (uint64, uint64, error) {
	query := r.URL.Query()
	var from, to uint64
	var err error
	if raw := query.Get("from"); raw != "" {
		if from, err = parseUint(raw, "from"); err != nil {
			return 0, 0, err
		}
	}
	if raw := query.Get("to"); raw != "" {
		if to, err = parseUint(raw, "to"); err != nil {
			return 0, 0, err
		}
	} else {
		summary, err := s.app.Summary()
		if err != nil {
			return 0, 0, err
		}
		to = summary.CurrentEpoch
	}
	if to < from {
		return 0, 0, invalid("to must not precede from")
	}
	if to-from >= app.MaxEpochRange {
		return 0, 0, fmt.Errorf("%w: at most %d epochs per request", app.ErrRangeTooLarge, app.MaxEpochRange)
	}
	return from, to, nil
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.app.Account(addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Account{
		Address:      view.Address.Hex(),
		TotalStaked:  amountString(view.TotalStaked),
		StartedTime:  view.StartedTime,
		SettledEpoch: view.SettledEpoch,
		Reward:       amountString(view.Reward),
		Claimed:      amountString(view.Claimed),
	})
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reward, err := s.app.Reward(addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Reward{Address: addr.Hex(), Reward: amountString(reward)})
}

func (s *Server) handleAccountEpoch(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	epoch, err := parseUint(chi.URLParam(r, "epoch"), "epoch")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	staked, err := s.app.AccountEpochStake(epoch, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AccountEpoch{Address: addr.Hex(), Epoch: epoch, Staked: amountString(staked)})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	s.amountOperation(w, r, s.app.Stake)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.amountOperation(w, r, s.app.Unstake)
}

func (s *Server) handleDepositFee(w http.ResponseWriter, r *http.Request) {
	s.amountOperation(w, r, s.app.DepositFee)
}

func (s *Server) amountOperation(w http.ResponseWriter, r *http.Request, op func(context.Context, crypto.Address, *big.Int) error) {
	var req api.AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := op(r.Context(), callerOf(r), amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	paid, err := s.app.Claim(r.Context(), callerOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ClaimResponse{Paid: amountString(paid)})
}

func (s *Server) handleVaultGovernance(w http.ResponseWriter, r *http.Request) {
	var req api.ValueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, caller := r.Context(), callerOf(r)
	var err error
	switch param := chi.URLParam(r, "param"); param {
	case "reward-period", "dev-fee":
		var value uint64
		if value, err = parseUint(req.Value, param); err != nil {
			break
		}
		if param == "reward-period" {
			err = s.app.ChangeRewardPeriod(ctx, caller, value)
		} else {
			err = s.app.ChangeDevFee(ctx, caller, value)
		}
	case "dev-fee-receiver", "uniswap-v2-pair", "yzy-address", "governance":
		var addr crypto.Address
		if addr, err = parseAddress(req.Value, param); err != nil {
			break
		}
		switch param {
		case "dev-fee-receiver":
			err = s.app.ChangeDevFeeReceiver(ctx, caller, addr)
		case "uniswap-v2-pair":
			err = s.app.ChangeUniswapV2Pair(ctx, caller, addr)
		case "yzy-address":
			err = s.app.ChangeYzyAddress(ctx, caller, addr)
		default:
			err = s.app.TransferGovernance(ctx, caller, addr)
		}
	default:
		writeJSON(w, http.StatusNotFound, api.Error{Error: "not_found", Message: fmt.Sprintf("unknown parameter %q", param), RequestID: requestID(ctx)})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
