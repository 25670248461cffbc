package api

import (
	"context"
	"net/http"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/scoring"
	"github.com/okian/matchday/internal/domain/types"
)

// GameDependencies defines the interface for game events, finalization and
// results.
type GameDependencies interface {
	PutGameEvents(ctx context.Context, gameID string, events model.Events, status model.GameStatus) error
	FinalizeGame(ctx context.Context, gameID string) (types.FinalizeSummary, error)
	Result(ctx context.Context, managerID, gameID string) (model.GameResult, error)
	ScoreManager(ctx context.Context, managerID, gameID string) (scoring.Result, error)
}

// GameHandler handles per-game requests.
type GameHandler struct {
	deps GameDependencies
}

// NewGameHandler creates a new game handler.
func NewGameHandler(deps GameDependencies) *GameHandler {
	return &GameHandler{deps: deps}
}

// eventsRequest is the body of PUT /games/{game}/events. Event keys are
// player ids.
type eventsRequest struct {
	Status string       `json:"status"`
	Events model.Events `json:"events"`
}

type eventsResponse struct {
	GameID  string           `json:"game_id"`
	Status  model.GameStatus `json:"status"`
	Players int              `json:"players"`
}

// HandlePutEvents handles PUT /games/{game}/events requests.
func (h *GameHandler) HandlePutEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_events"
	var req eventsRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	status, err := model.ParseGameStatus(req.Status)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	gameID := r.PathValue("game")
	if err := h.deps.PutGameEvents(r.Context(), gameID, req.Events, status); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{GameID: gameID, Status: status, Players: len(req.Events)})
}

// HandleFinalize handles POST /games/{game}/finalize requests.
func (h *GameHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.FinalizeGame(r.Context(), r.PathValue("game"))
	if err != nil {
		writeFailure(w, Wrap("api.finalize", err))
		return
	}
	writeJSON(w, http.StatusAccepted, sum)
}

// HandleGetResult handles GET /games/{game}/results/{manager} requests.
func (h *GameHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Result(r.Context(), r.PathValue("manager"), r.PathValue("game"))
	if err != nil {
		writeFailure(w, Wrap("api.get_result", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePreview handles GET /games/{game}/preview/{manager} requests. The
// score is computed from stored data and not persisted.
func (h *GameHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.ScoreManager(r.Context(), r.PathValue("manager"), r.PathValue("game"))
	if err != nil {
		writeFailure(w, Wrap("api.preview", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
