package api

import (
	"context"
	"net/http"

	"github.com/okian/matchday/internal/domain/model"
)

// CatalogDependencies defines the interface for catalog writes.
type CatalogDependencies interface {
	PutPlayers(ctx context.Context, players []model.Player) error
}

// CatalogHandler handles player catalog requests.
type CatalogHandler struct {
	deps CatalogDependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

type playersResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// HandlePutPlayers handles PUT /players requests.
func (h *CatalogHandler) HandlePutPlayers(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_players"
	var players []model.Player
	if err := decode(r, &players); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(players) == 0 {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.PutPlayers(r.Context(), players); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, playersResponse{Status: "ok", Count: len(players)})
}
