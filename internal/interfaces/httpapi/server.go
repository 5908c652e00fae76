package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"tradepilot/internal/application/port"
	"tradepilot/internal/application/service"
	"tradepilot/internal/domain/model"
)

// Server exposes the operator API: inspect pending trades and
// positions, approve or reject a trade, trigger an evaluation cycle.
type Server struct {
	ledger       port.TradeLedger
	book         *service.PositionBook
	market       port.MarketData
	orchestrator *service.Orchestrator
	cfg          model.StrategyConfig

	srv *http.Server
}

func NewServer(addr string, ledger port.TradeLedger, book *service.PositionBook,
	market port.MarketData, orchestrator *service.Orchestrator, cfg model.StrategyConfig) *Server {

	s := &Server{
		ledger:       ledger,
		book:         book,
		market:       market,
		orchestrator: orchestrator,
		cfg:          cfg,
	}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Routes builds the router; exported so tests can drive the handlers
// without a listening socket.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/trades/pending", s.handlePendingTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades/history", s.handleTradeHistory).Methods(http.MethodGet)
	api.HandleFunc("/trades/{id}/approve", s.handleApprove).Methods(http.MethodPost)
	api.HandleFunc("/trades/{id}/reject", s.handleReject).Methods(http.MethodPost)
	api.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	api.HandleFunc("/market", s.handleMarket).Methods(http.MethodGet)
	api.HandleFunc("/cycle", s.handleCycle).Methods(http.MethodPost)

	return r
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("http api listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePendingTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.ledger.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []*model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	trades, err := s.ledger.ListHistory(r.Context(), 50)
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []*model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.orchestrator.RunApprovalFlow(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	trade, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.orchestrator.RejectTrade(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	trade, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.book.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if positions == nil {
		positions = []*model.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.market.GetSnapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.RunEvaluationCycle(r.Context(), s.cfg); err != nil {
		writeError(w, err)
		return
	}
	trades, err := s.ledger.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []*model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

// writeError maps domain errors onto HTTP status codes. Unknown errors
// stay opaque to the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	var (
		vErr  *model.ValidationError
		exErr *model.ExchangeError
	)
	switch {
	case errors.Is(err, model.ErrTradeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, model.ErrDuplicateActiveTrade):
		status = http.StatusConflict
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
	case errors.As(err, &exErr):
		// the trade is already marked failed; surface the exchange reason
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		msg = "internal error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}
