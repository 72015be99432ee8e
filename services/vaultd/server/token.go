package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"yzyvault/crypto"
	"yzyvault/services/vaultd/api"
)

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meta, err := s.app.Token(tokenAddr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := api.Token{
		Address:     meta.Address.Hex(),
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		TotalSupply: amountString(meta.TotalSupply),
		TransferFee: meta.TransferFeeBps,
		Paused:      meta.Paused,
		Governance:  meta.Governance.Hex(),
		Vault:       meta.FeeSink.Hex(),
	}
	for _, exempt := range meta.Exempt {
		payload.Exempt = append(payload.Exempt, exempt.Hex())
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	holder, err := pathAddress(r, "addr")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.app.Balance(tokenAddr, holder)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Balance{Token: tokenAddr.Hex(), Holder: holder.Hex(), Balance: amountString(balance)})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	owner, err := pathAddress(r, "owner")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	spender, err := pathAddress(r, "spender")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	allowance, err := s.app.Allowance(tokenAddr, owner, spender)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Allowance{
		Token:     tokenAddr.Hex(),
		Owner:     owner.Hex(),
		Spender:   spender.Hex(),
		Allowance: amountString(allowance),
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.Transfer(r.Context(), tokenAddr, callerOf(r), to, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	spender, err := parseAddress(req.Spender, "spender")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.Approve(r.Context(), tokenAddr, callerOf(r), spender, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTokenGovernance(w http.ResponseWriter, r *http.Request) {
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, caller := r.Context(), callerOf(r)
	switch param := chi.URLParam(r, "param"); param {
	case "pause", "unpause":
		err = s.app.SetTokenPaused(ctx, tokenAddr, caller, param == "pause")
	case "exempt":
		var req api.ExemptRequest
		if err = decodeJSON(r, &req); err != nil {
			break
		}
		var holder crypto.Address
		if holder, err = parseAddress(req.Holder, "holder"); err != nil {
			break
		}
		err = s.app.SetFeeExempt(ctx, tokenAddr, caller, holder, req.Exempt)
	case "transfer-fee":
		var req api.ValueRequest
		if err = decodeJSON(r, &req); err != nil {
			break
		}
		var bps uint64
		if bps, err = parseUint(req.Value, param); err != nil {
			break
		}
		err = s.app.ChangeTransferFee(ctx, tokenAddr, caller, bps)
	case "owner", "vault":
		var req api.ValueRequest
		if err = decodeJSON(r, &req); err != nil {
			break
		}
		var addr crypto.Address
		if addr, err = parseAddress(req.Value, param); err != nil {
			break
		}
		if param == "owner" {
			err = s.app.TransferTokenOwnership(ctx, tokenAddr, caller, addr)
		} else {
			err = s.app.ChangeTokenVault(ctx, tokenAddr, caller, addr)
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
