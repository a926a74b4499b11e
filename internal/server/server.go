package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/service"

	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type Server struct {
	players    *service.PlayerService
	ratings    *service.RatingService
	battles    *service.BattleService
	wagers     *service.WagerService
	ledger     *service.LedgerService
	settlement *service.SettlementService
	scheduler  *service.PeriodScheduler
}

func NewServer(
	players *service.PlayerService,
	ratings *service.RatingService,
	battles *service.BattleService,
	wagers *service.WagerService,
	ledger *service.LedgerService,
	settlement *service.SettlementService,
	scheduler *service.PeriodScheduler,
) *Server {
	return &Server{
		players:    players,
		ratings:    ratings,
		battles:    battles,
		wagers:     wagers,
		ledger:     ledger,
		settlement: settlement,
		scheduler:  scheduler,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /players", s.registerPlayer)
	mux.HandleFunc("GET /players/{id}", s.getPlayer)
	mux.HandleFunc("GET /players/{id}/rating", s.getRating)
	mux.HandleFunc("GET /players/{id}/rating/provisional", s.getProvisionalRating)
	mux.HandleFunc("GET /players/{id}/ratings", s.getRatingHistory)

	mux.HandleFunc("POST /battles", s.createBattle)
	mux.HandleFunc("GET /battles/{id}", s.getBattle)
	mux.HandleFunc("PATCH /battles/{id}/participants/{player}", s.reportResult)
	mux.HandleFunc("POST /battles/{id}/conclude", s.concludeBattle)
	mux.HandleFunc("POST /battles/{id}/settle", s.settleBattle)
	mux.HandleFunc("GET /battles/{id}/wagers", s.listWagers)
	mux.HandleFunc("PUT /battles/{id}/wagers/{user}", s.placeWager)

	mux.HandleFunc("POST /users", s.createUser)
	mux.HandleFunc("GET /users/{id}", s.getUser)
	mux.HandleFunc("GET /users/{id}/ledger", s.getLedger)

	mux.HandleFunc("GET /rating-periods/current", s.currentPeriod)
	mux.HandleFunc("POST /rating-periods/close", s.closeCurrentPeriod)
	mux.HandleFunc("POST /rating-periods/{id}/close", s.closePeriod)

	return mux
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotConcluded),
		errors.Is(err, domain.ErrAlreadyConcluded),
		errors.Is(err, domain.ErrWagersClosed),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
