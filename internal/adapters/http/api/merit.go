package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/meritum/agora/internal/domain/model"
)

// MeritDependencies defines the interface for merit standing queries.
type MeritDependencies interface {
	MemberMerit(ctx context.Context, memberID string) (Entry, []model.HistoryEntry, error)
}

// MeritHandler handles per-member merit standing queries.
type MeritHandler struct {
	deps MeritDependencies
}

// NewMeritHandler creates a new merit handler.
func NewMeritHandler(deps MeritDependencies) *MeritHandler {
	return &MeritHandler{deps: deps}
}

type historyEntryView struct {
	Cycle int     `json:"cycle"`
	Score float64 `json:"score"`
}

type meritResponse struct {
	Entry   Entry              `json:"entry"`
	History []historyEntryView `json:"history"`
}

// HandleGetMerit handles GET /members/{id}/merit requests.
func (h *MeritHandler) HandleGetMerit(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_member_merit"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	entry, history, err := h.deps.MemberMerit(r.Context(), id)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}

	views := make([]historyEntryView, 0, len(history))
	for _, he := range history {
		views = append(views, historyEntryView{Cycle: int(he.Cycle), Score: he.Score})
	}
	writeJSON(w, http.StatusOK, meritResponse{Entry: entry, History: views})
}
