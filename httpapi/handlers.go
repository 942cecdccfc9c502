package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vitwit/stablepay/types"
	"github.com/vitwit/stablepay/utils"
)

const maxBodyBytes = 1 << 16

type settleBody struct {
	Payer       string `json:"payer" validate:"required,eth_addr"`
	SourceToken string `json:"sourceToken" validate:"required,eth_addr"`
}

type faucetBody struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type errorBody struct {
	Kind    types.ErrorKind `json:"kind"`
	Message string          `json:"message"`
	Step    *int            `json:"step,omitempty"`
	TxHash  string          `json:"txHash,omitempty"`
}

// GET /healthz
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /tokens
func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.Tokens())
}

// POST /faucet
func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	var body faucetBody
	if !s.decode(w, r, &body) {
		return
	}

	hashes, err := s.svc.Fund(r.Context(), body.Address)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"address": body.Address, "transactions": hashes})
}

// GET /invoices/{id}
func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.svc.Invoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// GET /invoices/{id}/quote?payer=0x..&sourceToken=0x..
func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	body := settleBody{
		Payer:       r.URL.Query().Get("payer"),
		SourceToken: r.URL.Query().Get("sourceToken"),
	}
	if err := utils.Validator().Struct(body); err != nil {
		s.respondError(w, types.NewError(types.ErrInvalidRequest, err, "%v", err))
		return
	}

	p, err := s.svc.Preview(r.Context(), chi.URLParam(r, "id"), body.Payer, body.SourceToken)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newPreviewResponse(p))
}

// POST /invoices/{id}/settle
func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	var body settleBody
	if !s.decode(w, r, &body) {
		return
	}

	settled, err := s.svc.Settle(r.Context(), chi.URLParam(r, "id"), body.Payer, body.SourceToken)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settled)
}

// DELETE /invoices/{id}/attempt
func (s *Server) abandon(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Abandon(chi.URLParam(r, "id")) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		s.respondError(w, types.NewError(types.ErrInvalidRequest, err, "invalid request body: %v", err))
		return false
	}
	if err := utils.Validator().Struct(dst); err != nil {
		s.respondError(w, types.NewError(types.ErrInvalidRequest, err, "%v", err))
		return false
	}
	return true
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	var se *types.SettlementError
	if !errors.As(err, &se) {
		s.logger.Error("unclassified error", map[string]any{"error": err})
		respondJSON(w, http.StatusInternalServerError, map[string]errorBody{
			"error": {Kind: "INTERNAL", Message: "internal error"},
		})
		return
	}

	body := errorBody{Kind: se.Kind, Message: se.Message, TxHash: se.TxHash}
	if se.Kind == types.ErrExecutionFailed && se.Step >= 0 {
		step := se.Step
		body.Step = &step
	}
	respondJSON(w, StatusFor(se.Kind), map[string]errorBody{"error": body})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind types.ErrorKind) int {
	switch kind {
	case types.ErrAlreadySettled, types.ErrInvoiceNotPayable:
		return http.StatusConflict
	case types.ErrInsufficientFunds, types.ErrUnknownToken, types.ErrInvalidRequest:
		return http.StatusUnprocessableEntity
	case types.ErrInvoiceNotFound:
		return http.StatusNotFound
	case types.ErrExecutionFailed, types.ErrHashMissing:
		return http.StatusBadGateway
	case types.ErrQuoteUnavailable, types.ErrBalanceUnavailable, types.ErrConfiguration:
		return http.StatusServiceUnavailable
	case types.ErrAborted:
		return http.StatusGone
	case types.ErrRecordFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
