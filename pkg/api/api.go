// Package api is the external collaborator from SPEC_FULL.md §8: three
// thin HTTP handlers over pkg/store. Grounded on the teacher's
// pkg/node.Server — an http.Server built from an http.ServeMux wired in
// the constructor, with Start/Stop methods — narrowed to the routes this
// engine needs. Deep correctness here is out of scope per spec.md §1; it
// exists so every SPEC_FULL.md module has a concrete home.
package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store"
)

// Server serves the insertion, status-query, and proof-fetch endpoints.
type Server struct {
	store      store.ICommitmentStore
	logger     *zap.Logger
	httpServer *http.Server
	insertLim  *rate.Limiter
}

// NewServer builds a Server bound to addr (e.g. ":8080"). insertRatePerSec
// and insertBurst bound the POST /commitments endpoint so a single noisy
// caller can't flood the builder's pending queue faster than it drains.
func NewServer(addr string, st store.ICommitmentStore, logger *zap.Logger, insertRatePerSec float64, insertBurst int) *Server {
	s := &Server{
		store:     st,
		logger:    logger,
		insertLim: rate.NewLimiter(rate.Limit(insertRatePerSec), insertBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /commitments", s.handleInsert)
	mux.HandleFunc("GET /commitments/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /commitments/{id}/proof", s.handleProof)

	s.httpServer = &http.Server{Addr: addr, Handler: withRequestID(mux)}
	return s
}

// withRequestID stamps every request with a fresh correlation id, echoed
// back in the X-Request-Id header so a caller can tie a response back to
// server-side logs.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r)
	})
}

// Start launches the HTTP server in the background.
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("starting API server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("API server error", "error", err)
		}
	}()
	return nil
}

// Stop closes the HTTP server.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

type insertRequest struct {
	Kind           commitment.AccumulatorKind `json:"kind"`
	OwnerKey       string                     `json:"owner_key"`
	Amount         uint64                     `json:"amount"`
	CommitmentHash string                     `json:"commitment_hash"`
}

type insertResponse struct {
	ID    uint64 `json:"id"`
	Nonce uint64 `json:"nonce"`
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	if !s.insertLim.Allow() {
		writeError(w, http.StatusTooManyRequests, fmt.Errorf("insert rate limit exceeded"))
		return
	}

	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}

	ownerKey, err := decodeHex32(req.OwnerKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("owner_key: %w", err))
		return
	}
	commitmentHash, err := decodeHex32(req.CommitmentHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("commitment_hash: %w", err))
		return
	}

	id, nonce, err := s.store.InsertCommitment(req.Kind, ownerKey, req.Amount, commitmentHash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, insertResponse{ID: id, Nonce: nonce})
}

type statusResponse struct {
	ID         uint64            `json:"id"`
	Kind       string            `json:"kind"`
	Status     commitment.Status `json:"status"`
	Included   bool              `json:"included"`
	LeafIndex  *uint64           `json:"leaf_index,omitempty"`
	RetryCount uint32            `json:"retry_count"`
	Nonce      uint64            `json:"nonce"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	row, err := s.lookupCommitment(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		ID:         row.ID,
		Kind:       string(row.Kind),
		Status:     row.Status,
		Included:   row.Included,
		LeafIndex:  row.LeafIndex,
		RetryCount: row.RetryCount,
		Nonce:      row.Nonce,
	})
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	row, err := s.lookupCommitment(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if !row.Included || row.Proof == nil {
		writeError(w, http.StatusConflict, fmt.Errorf("commitment %d is not yet included", row.ID))
		return
	}

	writeJSON(w, http.StatusOK, row.Proof)
}

// lookupCommitment scans pending and included rows for id. The store
// interface has no direct get-by-id (spec.md §4.4 names only
// fetch_pending/fetch_all_included_ordered), so the status/proof
// endpoints search across both kinds; this is adequate for the thin,
// out-of-scope surface SPEC_FULL.md §8 describes.
func (s *Server) lookupCommitment(r *http.Request) (*commitment.Commitment, error) {
	idStr := r.PathValue("id")
	var id uint64
	if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
		return nil, fmt.Errorf("invalid commitment id %q", idStr)
	}

	for _, kind := range []commitment.AccumulatorKind{commitment.AccumulatorMMR, commitment.AccumulatorPoseidon} {
		if row, ok := s.findInKind(kind, id); ok {
			return row, nil
		}
	}
	return nil, fmt.Errorf("no such commitment id %d", id)
}

func (s *Server) findInKind(kind commitment.AccumulatorKind, id uint64) (*commitment.Commitment, bool) {
	if rows, err := s.store.FetchAllIncludedOrdered(kind); err == nil {
		for _, row := range rows {
			if row.ID == id {
				return row, true
			}
		}
	}
	if rows, err := s.store.FetchPending(kind, 0); err == nil {
		for _, row := range rows {
			if row.ID == id {
				return row, true
			}
		}
	}
	return nil, false
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) != 66 || s[0] != '0' || s[1] != 'x' {
		return out, fmt.Errorf("must be 0x-prefixed and 64 hex digits, got %q", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
