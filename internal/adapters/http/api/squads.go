package api

import (
	"context"
	"net/http"

	"github.com/okian/matchday/internal/domain/model"
)

// SquadDependencies defines the interface for squad selection.
type SquadDependencies interface {
	PutSquad(ctx context.Context, managerID string, squad model.Squad) error
	Squad(ctx context.Context, managerID string) (model.Squad, error)
}

// SquadHandler handles squad requests.
type SquadHandler struct {
	deps SquadDependencies
}

// NewSquadHandler creates a new squad handler.
func NewSquadHandler(deps SquadDependencies) *SquadHandler {
	return &SquadHandler{deps: deps}
}

// HandlePutSquad handles PUT /squads/{manager} requests.
func (h *SquadHandler) HandlePutSquad(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_squad"
	var squad model.Squad
	if err := decode(r, &squad); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.PutSquad(r.Context(), r.PathValue("manager"), squad); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, squad)
}

// HandleGetSquad handles GET /squads/{manager} requests.
func (h *SquadHandler) HandleGetSquad(w http.ResponseWriter, r *http.Request) {
	squad, err := h.deps.Squad(r.Context(), r.PathValue("manager"))
	if err != nil {
		writeFailure(w, Wrap("api.get_squad", err))
		return
	}
	writeJSON(w, http.StatusOK, squad)
}
