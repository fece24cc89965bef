package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/me/examvm/internal/scheduler"
	"github.com/me/examvm/pkg/model"
)

func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	exams, err := s.store.ListExams(r.Context())
	if err != nil {
		s.logger.Error("list exams", "error", err, "request_id", reqID)
		respondInternal(w, reqID)
		return
	}
	respondOK(w, reqID, lo.Map(exams, func(e *model.Exam, _ int) model.ExamView {
		return model.NewExamView(e)
	}))
}

func (s *Server) handleGetExam(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(
			"invalid exam id",
			model.FieldError{Field: "id", Message: "must be an integer"},
		))
		return
	}

	exam, err := s.store.GetExam(r.Context(), id)
	if err != nil {
		s.logger.Error("get exam", "error", err, "request_id", reqID)
		respondInternal(w, reqID)
		return
	}
	if exam == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("exam", raw))
		return
	}
	respondOK(w, reqID, model.NewExamView(exam))
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	exams, err := s.store.ListExams(r.Context())
	if err != nil {
		s.logger.Error("list exams", "error", err, "request_id", reqID)
		respondInternal(w, reqID)
		return
	}

	now := s.now()
	entries := scheduler.BuildSchedule(exams, s.provisioningDelay)
	respondOK(w, reqID, lo.Map(entries, func(e model.ScheduleEntry, _ int) model.ScheduleView {
		return model.ScheduleView{
			CreationStart: e.Start,
			ExamID:        e.Exam.ID,
			ExamName:      e.Exam.Name,
			ExamStart:     e.Exam.Start,
			VMs:           e.Exam.Remaining(),
			Due:           e.Due(now),
			Delayed:       e.Delay(now) > s.provisioningDelay,
		}
	}))
}
