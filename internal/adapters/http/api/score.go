package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/scoring"
)

// ScoreDependencies defines the interface for stateless scoring.
type ScoreDependencies interface {
	Preview(ctx context.Context, squad model.Squad, positions map[int]model.Position, events model.Events) (scoring.Result, error)
}

// ScoreHandler handles stateless scoring requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// scoreRequest is the body of POST /score. When Players is empty the stored
// catalog resolves positions.
type scoreRequest struct {
	StartingXI []int          `json:"starting_xi"`
	Bench      []int          `json:"bench"`
	Players    []model.Player `json:"players"`
	Events     model.Events   `json:"events"`
}

func (req scoreRequest) positions() (map[int]model.Position, error) {
	if len(req.Players) == 0 {
		return nil, nil
	}
	out := make(map[int]model.Position, len(req.Players))
	for _, p := range req.Players {
		if !p.Position.Valid() {
			return nil, fmt.Errorf("player %d: %w", p.ID, model.ErrUnknownPosition)
		}
		out[p.ID] = p.Position
	}
	return out, nil
}

// HandleScore handles POST /score requests.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	var req scoreRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.StartingXI) == 0 {
		writeFailure(w, WrapKind(op, ErrBadRequest, fmt.Errorf("starting_xi is required")))
		return
	}
	positions, err := req.positions()
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	squad := model.Squad{StartingXI: req.StartingXI, Bench: req.Bench}
	res, err := h.deps.Preview(r.Context(), squad, positions, req.Events)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
