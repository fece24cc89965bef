package server

import (
	"net/http"
	"strings"

	"github.com/me/examvm/pkg/model"
)

func (s *Server) handleListVMs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	state := model.VMState(strings.ToUpper(r.URL.Query().Get("state")))
	if state != "" && !state.Valid() {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(
			"invalid state filter",
			model.FieldError{Field: "state", Message: "must be one of REQUESTED, RUNNING, ENDED"},
		))
		return
	}

	vms, err := s.store.ListVMs(r.Context(), state)
	if err != nil {
		s.logger.Error("list vms", "error", err, "request_id", reqID)
		respondInternal(w, reqID)
		return
	}
	if vms == nil {
		vms = []*model.VM{}
	}
	respondOK(w, reqID, vms)
}
