// Package server exposes the curation engine over a JSON HTTP API. Caller
// identity arrives as a hex address header; authentication is expected to be
// terminated by the deployment's gateway, as with the other sidecar services.
package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"dappstore/native/curation"
	"dappstore/native/token"
)

const (
	maxBodyBytes = 1 << 16 // 64 KiB
	headerCaller = "X-Caller-Address"
)

// Server implements the HTTP handlers for the curation service.
type Server struct {
	engine  *curation.Engine
	faucet  *token.Ledger
	logger  *slog.Logger
	metrics *metrics
}

// New constructs a server around the supplied engine. The token ledger is
// optional; when present the dev faucet endpoints are mounted so stand-alone
// deployments can fund and authorize callers.
func New(engine *curation.Engine, faucet *token.Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		faucet:  faucet,
		logger:  logger,
		metrics: newMetrics(),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/dapps", s.handleRanking)
		r.Post("/dapps", s.handleCreate)
		r.Route("/dapps/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Get("/upvote-effect", s.handleUpvotePreview)
			r.Get("/downvote-cost", s.handleDownvoteCost)
			r.Post("/upvote", s.handleUpvote)
			r.Post("/downvote", s.handleDownvote)
			r.Post("/withdraw", s.handleWithdraw)
		})
		if s.faucet != nil {
			r.Post("/token/mint", s.handleMint)
			r.Post("/token/approve", s.handleApprove)
		}
	})
	return r
}

type stakeRequest struct {
	ID     string `json:"id,omitempty"`
	Amount string `json:"amount"`
}

type entryPayload struct {
	ID               string `json:"id"`
	Owner            string `json:"owner"`
	Balance          string `json:"balance"`
	Rate             string `json:"rate"`
	Available        string `json:"available"`
	VotesMinted      string `json:"votesMinted"`
	VotesCast        string `json:"votesCast"`
	EffectiveBalance string `json:"effectiveBalance"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req stakeRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	id, err := parseID(req.ID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	entry, err := s.engine.Create(caller, id, amount)
	s.metrics.observe("create", err)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("entry created", "id", req.ID, "effectiveBalance", entry.EffectiveBalance.String())
	s.writeJSON(w, http.StatusCreated, toPayload(entry))
}

func (s *Server) handleUpvote(w http.ResponseWriter, r *http.Request) {
	s.handleStakeOp(w, r, "upvote", s.engine.Upvote)
}

func (s *Server) handleDownvote(w http.ResponseWriter, r *http.Request) {
	s.handleStakeOp(w, r, "downvote", s.engine.Downvote)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleStakeOp(w, r, "withdraw", s.engine.Withdraw)
}

func (s *Server) handleStakeOp(w http.ResponseWriter, r *http.Request, op string, fn func([20]byte, [32]byte, *big.Int) (*curation.Entry, error)) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req stakeRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	entry, err := fn(caller, id, amount)
	s.metrics.observe(op, err)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("entry updated", "op", op, "id", chi.URLParam(r, "id"), "effectiveBalance", entry.EffectiveBalance.String())
	s.writeJSON(w, http.StatusOK, toPayload(entry))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	entry, err := s.engine.Entry(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPayload(entry))
}

func (s *Server) handleRanking(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.engine.Entries()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].EffectiveBalance.Cmp(entries[j].EffectiveBalance) > 0
	})
	payload := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, toPayload(entry))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dapps": payload})
}

func (s *Server) handleUpvotePreview(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	delta, err := s.engine.UpvotePreview(id, amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"effect": delta.String()})
}

func (s *Server) handleDownvoteCost(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	quote, err := s.engine.DownvoteCost(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"balanceDownBy": quote.BalanceDownBy.String(),
		"votesRequired": quote.VotesRequired.String(),
		"cost":          quote.Cost.String(),
	})
}

type faucetRequest struct {
	Address string `json:"address,omitempty"`
	Amount  string `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	addr, err := parseAddr(req.Address)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	if err := s.faucet.Mint(addr, amount); err != nil {
		s.writeError(w, http.StatusBadRequest, "mint_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"balance": s.faucet.BalanceOf(addr).String()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req faucetRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	if err := s.faucet.Approve(caller, amount); err != nil {
		s.writeError(w, http.StatusBadRequest, "approve_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"allowance": amount.String()})
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	addr, err := parseAddr(r.Header.Get(headerCaller))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_caller", "missing or malformed "+headerCaller+" header")
		return [20]byte{}, false
	}
	return addr, true
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "unable to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return false
	}
	return true
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, curation.ErrEntryNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, curation.ErrEntryExists):
		s.writeError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, curation.ErrInvalidAmount):
		s.writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, curation.ErrExceedsCeiling):
		s.writeError(w, http.StatusBadRequest, "exceeds_ceiling", err.Error())
	case errors.Is(err, curation.ErrExceedsAvailable):
		s.writeError(w, http.StatusBadRequest, "exceeds_available", err.Error())
	case errors.Is(err, curation.ErrNotOwner):
		s.writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, curation.ErrAmountMismatch):
		s.writeError(w, http.StatusConflict, "amount_mismatch", err.Error())
	case errors.Is(err, curation.ErrInsufficientAllowance):
		s.writeError(w, http.StatusPaymentRequired, "insufficient_allowance", err.Error())
	case errors.Is(err, curation.ErrEscrow):
		s.writeError(w, http.StatusPaymentRequired, "escrow_failed", err.Error())
	case errors.Is(err, curation.ErrArithmetic):
		s.writeError(w, http.StatusUnprocessableEntity, "arithmetic_exhausted", err.Error())
	default:
		s.logger.Error("internal error", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response", "err", err)
	}
}

func toPayload(entry *curation.Entry) entryPayload {
	return entryPayload{
		ID:               "0x" + hex.EncodeToString(entry.ID[:]),
		Owner:            "0x" + hex.EncodeToString(entry.Owner[:]),
		Balance:          entry.Balance.String(),
		Rate:             entry.Rate.String(),
		Available:        entry.Available.String(),
		VotesMinted:      entry.VotesMinted.String(),
		VotesCast:        entry.VotesCast.String(),
		EffectiveBalance: entry.EffectiveBalance.String(),
	}
}

func parseID(raw string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return id, errors.New("entry id required")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(id) {
		return id, errors.New("entry id must be 32 hex-encoded bytes")
	}
	copy(id[:], decoded)
	return id, nil
}

func parseAddr(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(addr) {
		return addr, errors.New("address must be 20 hex-encoded bytes")
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errors.New("amount must be a base-10 integer")
	}
	return amount, nil
}
