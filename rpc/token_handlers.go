package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/samparke/cross-chain-rebase-token/bridge"
	"github.com/samparke/cross-chain-rebase-token/crypto"
	"github.com/samparke/cross-chain-rebase-token/token"
)

type BalanceResponse struct {
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Principal string `json:"principal"`
}

type RateResponse struct {
	Address string `json:"address,omitempty"`
	Rate    string `json:"rate"`
}

type TransferResponse struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Moved     string `json:"moved"`
}

type RedeemResponse struct {
	Holder   string `json:"holder"`
	Redeemed string `json:"redeemed"`
}

type SendResponse struct {
	MessageID         string `json:"messageId"`
	Nonce             uint64 `json:"nonce"`
	DestinationDomain uint64 `json:"destinationDomain"`
	Recipient         string `json:"recipient"`
	Amount            string `json:"amount"`
	Rate              string `json:"rate"`
	Handle            string `json:"handle"`
}

func parseAddressParam(raw json.RawMessage, field string) (crypto.Address, error) {
	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return crypto.DecodeAddress(direct)
	}
	var wrapper map[string]string
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		if value, ok := wrapper[field]; ok {
			return crypto.DecodeAddress(value)
		}
	}
	return crypto.Address{}, fmt.Errorf("missing %s parameter", field)
}

// parseAmount accepts a base-10 integer string or the literal "all", which
// maps to the whole-balance sentinel.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if strings.EqualFold(trimmed, "all") {
		return token.SentinelAll(), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a base-10 integer", value)
	}
	return amount, nil
}

// ledgerErrorCode maps domain errors onto JSON-RPC error codes.
func ledgerErrorCode(err error) (int, int) {
	switch {
	case errors.Is(err, token.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidRate),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrRateMustNotIncrease),
		errors.Is(err, bridge.ErrLocalDestination),
		errors.Is(err, bridge.ErrWrongDestination):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0], "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	balance, err := s.ledger.BalanceOf(addr)
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "failed to read balance", err.Error())
		return
	}
	principal, err := s.ledger.PrincipalOf(addr)
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "failed to read principal", err.Error())
		return
	}
	writeResult(w, req.ID, BalanceResponse{
		Address:   addr.String(),
		Balance:   balance.String(),
		Principal: principal.String(),
	})
}

func (s *Server) handleGetPrincipal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0], "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	principal, err := s.ledger.PrincipalOf(addr)
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "failed to read principal", err.Error())
		return
	}
	writeResult(w, req.ID, BalanceResponse{Address: addr.String(), Principal: principal.String(), Balance: principal.String()})
}

func (s *Server) handleGetInterestRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0], "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	rate, err := s.ledger.RateOf(addr)
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "failed to read holder rate", err.Error())
		return
	}
	writeResult(w, req.ID, RateResponse{Address: addr.String(), Rate: rate.String()})
}

func (s *Server) handleGetGlobalRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	rate, err := s.authority.Rate()
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "failed to read global rate", err.Error())
		return
	}
	writeResult(w, req.ID, RateResponse{Rate: rate.String()})
}

func (s *Server) handleTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transfer parameters required", nil)
		return
	}
	var params struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transfer parameters", err.Error())
		return
	}
	sender, err := crypto.DecodeAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid sender address", err.Error())
		return
	}
	recipient, err := crypto.DecodeAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	moved, err := s.ledger.Transfer(sender, recipient, amount)
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "transfer failed", err.Error())
		return
	}
	writeResult(w, req.ID, TransferResponse{
		Sender:    sender.String(),
		Recipient: recipient.String(),
		Moved:     moved.String(),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "deposit parameters required", nil)
		return
	}
	var params struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid deposit parameters", err.Error())
		return
	}
	recipient, err := crypto.DecodeAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.vault.Deposit(recipient, amount); err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "deposit failed", err.Error())
		return
	}
	balance, err := s.ledger.BalanceOf(recipient)
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "failed to read balance", err.Error())
		return
	}
	writeResult(w, req.ID, BalanceResponse{Address: recipient.String(), Balance: balance.String()})
}

func (s *Server) handleRedeem(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "redeem parameters required", nil)
		return
	}
	var params struct {
		From   string `json:"from"`
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid redeem parameters", err.Error())
		return
	}
	holder, err := crypto.DecodeAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid holder address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	redeemed, err := s.vault.Redeem(holder, amount)
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "redeem failed", err.Error())
		return
	}
	writeResult(w, req.ID, RedeemResponse{Holder: holder.String(), Redeemed: redeemed.String()})
}

func (s *Server) handleSetInterestRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "rate parameters required", nil)
		return
	}
	var params struct {
		Caller string `json:"caller"`
		Rate   string `json:"rate"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid rate parameters", err.Error())
		return
	}
	caller, err := crypto.DecodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	rate, ok := new(big.Int).SetString(strings.TrimSpace(params.Rate), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "rate must be a base-10 integer", params.Rate)
		return
	}
	if err := s.authority.SetRate(caller, rate); err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "rate change rejected", err.Error())
		return
	}
	writeResult(w, req.ID, RateResponse{Rate: rate.String()})
}

func (s *Server) handleSendToChain(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "send parameters required", nil)
		return
	}
	var params struct {
		From              string `json:"from"`
		DestinationDomain uint64 `json:"destinationDomain"`
		Recipient         string `json:"recipient"`
		Amount            string `json:"amount"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid send parameters", err.Error())
		return
	}
	sender, err := crypto.DecodeAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid sender address", err.Error())
		return
	}
	recipient, err := crypto.DecodeAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	msg, handle, err := s.bridge.InitiateSend(r.Context(), sender, params.DestinationDomain, recipient, amount)
	if err != nil {
		status, code := ledgerErrorCode(err)
		writeError(w, status, req.ID, code, "cross-domain send failed", err.Error())
		return
	}
	id, err := msg.IDHex()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to derive message id", err.Error())
		return
	}
	writeResult(w, req.ID, SendResponse{
		MessageID:         id,
		Nonce:             msg.Nonce,
		DestinationDomain: msg.DestDomain,
		Recipient:         recipient.String(),
		Amount:            msg.Amount.String(),
		Rate:              msg.Rate.String(),
		Handle:            handle,
	})
}

func (s *Server) handleLocalDomain(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]uint64{"domain": s.bridge.LocalDomain()})
}

func (s *Server) handleVaultLocked(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]string{"locked": s.vault.Locked().String()})
}
