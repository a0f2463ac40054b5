package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"atlaschain/core"
	coreerrors "atlaschain/core/errors"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// Server is the thin operator-facing HTTP surface. It exists because the
// durable shape of the data needs a door, not because the core depends on
// HTTP.
type Server struct {
	node    *core.Node
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewServer(node *core.Node, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		node:    node,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		log:     log.With("component", "rpc"),
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/submit", s.handleSubmit)
	r.Get("/status", s.handleStatus)
	r.Get("/balance/{account}", s.handleBalance)
	r.Get("/proposals", s.handleProposals)
	return r
}

// ListenAndServe blocks serving the RPC surface.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("rpc listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type submitRequest struct {
	Content string `json:"content"`
}

type submitResponse struct {
	ProposalID string `json:"proposal_id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	var req submitRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Content) == 0 {
		writeError(w, http.StatusBadRequest, "missing content")
		return
	}

	p, err := s.node.SubmitContent([]byte(req.Content))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, coreerrors.ErrInvalidPayload) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{ProposalID: p.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Status())
}

type balanceResponse struct {
	Account  string            `json:"account"`
	Balances map[string]string `json:"balances"`
	Nonce    uint64            `json:"nonce"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	state, ok := s.node.Ledger().Account(account)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown account")
		return
	}
	balances := make(map[string]string, len(state.Balances))
	for asset, amount := range state.Balances {
		balances[asset] = amount.Dec()
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: account, Balances: balances, Nonce: state.Nonce})
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	after := uint64(0)
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'after' height")
			return
		}
		after = parsed
	}
	proposals, err := s.node.Ledger().GetProposalsAfter(after)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
