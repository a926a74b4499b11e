package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/glicko2"
	"github.com/frostu8/ring-channel/internal/service"
)

type registerPlayerRequest struct {
	PublicKey   string `json:"public_key"`
	DisplayName string `json:"display_name"`
}

func (s *Server) registerPlayer(w http.ResponseWriter, r *http.Request) {
	var req registerPlayerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	player, err := s.players.RegisterPlayer(r.Context(), req.PublicKey, req.DisplayName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, player)
}

func (s *Server) getPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := s.players.GetPlayer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, player)
}

func (s *Server) getRating(w http.ResponseWriter, r *http.Request) {
	rating, err := s.ratings.GetCurrentRating(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rating)
}

type provisionalResponse struct {
	glicko2.Rating
	Provisional bool `json:"provisional"`
}

func (s *Server) getProvisionalRating(w http.ResponseWriter, r *http.Request) {
	rating, err := s.ratings.ProvisionalRating(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, provisionalResponse{Rating: rating, Provisional: true})
}

func (s *Server) getRatingHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.ratings.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, history)
}

type createBattleRequest struct {
	LevelName    string     `json:"level_name"`
	ClosedAt     *time.Time `json:"closed_at"`
	Participants []struct {
		Player string      `json:"player"`
		Team   domain.Team `json:"team"`
	} `json:"participants"`
}

func (s *Server) createBattle(w http.ResponseWriter, r *http.Request) {
	var req createBattleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entrants := make([]service.Entrant, len(req.Participants))
	for i, p := range req.Participants {
		entrants[i] = service.Entrant{Player: p.Player, Team: p.Team}
	}

	battle, err := s.battles.CreateBattle(r.Context(), req.LevelName, req.ClosedAt, entrants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, battle)
}

func (s *Server) getBattle(w http.ResponseWriter, r *http.Request) {
	battle, err := s.battles.GetBattle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, battle)
}

type reportResultRequest struct {
	FinishTime *int64 `json:"finish_time"`
	NoContest  bool   `json:"no_contest"`
}

func (s *Server) reportResult(w http.ResponseWriter, r *http.Request) {
	var req reportResultRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	battle, err := s.battles.ReportResult(r.Context(), r.PathValue("id"), r.PathValue("player"), req.FinishTime, req.NoContest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, battle)
}

type concludeResponse struct {
	Battle     *domain.Battle           `json:"battle"`
	Settlement *domain.SettlementResult `json:"settlement"`
}

func (s *Server) concludeBattle(w http.ResponseWriter, r *http.Request) {
	battle, result, err := s.battles.Conclude(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, concludeResponse{Battle: battle, Settlement: result})
}

func (s *Server) settleBattle(w http.ResponseWriter, r *http.Request) {
	result, err := s.settlement.Settle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	wagers, err := s.wagers.ListWagers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, wagers)
}

type placeWagerRequest struct {
	Victor  domain.Team `json:"victor"`
	Mobiums int64       `json:"mobiums"`
}

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req placeWagerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	wager, err := s.wagers.PlaceWager(r.Context(), r.PathValue("id"), userID, req.Victor, req.Mobiums)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if wager == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, r, http.StatusOK, wager)
}

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.ledger.CreateUser(r.Context(), req.Username, req.DisplayName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, user)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.ledger.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.ledger.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entries)
}

func (s *Server) currentPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := s.scheduler.CurrentPeriod(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, period)
}

func (s *Server) closeCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	result, err := s.scheduler.CloseCurrentPeriod(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// closePeriod closes a period before it is due. Repeating it for the same id
// returns the stored outcome.
func (s *Server) closePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.scheduler.ClosePeriod(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, r.PathValue(name), domain.ErrInvalidInput)
	}
	return id, nil
}
