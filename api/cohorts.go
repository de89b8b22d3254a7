package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rtclab/traineetracker/internal/repository/sqlite"
	"github.com/rtclab/traineetracker/pkg/repository"

	"github.com/rtclab/traineetracker/internal/models"
)

type CohortsHandler struct {
	cohortRepo repository.CohortRepo
}

func NewCohortsHandler(cr repository.CohortRepo) *CohortsHandler {
	return &CohortsHandler{cohortRepo: cr}
}

type cohortRequest struct {
	Name     string `json:"name" validate:"required"`
	Year     int    `json:"year" validate:"required,gte=2000,lte=2100"`
	Semester string `json:"semester" validate:"required,oneof=Spring Fall"`
}

func (h *CohortsHandler) CreateCohort(w http.ResponseWriter, r *http.Request) {
	var req cohortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
		return
	}

	c := &models.Cohort{Name: req.Name, Year: req.Year, Semester: req.Semester}
	id, err := h.cohortRepo.CreateCohort(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	c.ID = id

	writeJSON(w, c, http.StatusCreated)
}

func (h *CohortsHandler) UpdateCohort(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid cohort id", http.StatusBadRequest)
		return
	}

	existing, err := h.cohortRepo.GetCohortByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		http.Error(w, "cohort not found", http.StatusNotFound)
		return
	}

	var req cohortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
		return
	}

	existing.Name = req.Name
	existing.Year = req.Year
	existing.Semester = req.Semester
	if err := h.cohortRepo.UpdateCohort(r.Context(), existing); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, existing, http.StatusOK)
}

type cohortListItem struct {
	models.Cohort
	ActiveTrainees int `json:"active_trainees"`
}

func (h *CohortsHandler) ListCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.cohortRepo.ListCohorts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]cohortListItem, 0, len(cohorts))
	for _, c := range cohorts {
		n, err := h.cohortRepo.CountActiveTrainees(r.Context(), c.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		items = append(items, cohortListItem{Cohort: c, ActiveTrainees: n})
	}

	writeJSON(w, map[string]any{"items": items, "total": len(items)}, http.StatusOK)
}

func (h *CohortsHandler) GetCohort(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid cohort id", http.StatusBadRequest)
		return
	}

	c, err := h.cohortRepo.GetCohortByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if c == nil {
		http.Error(w, "cohort not found", http.StatusNotFound)
		return
	}

	writeJSON(w, c, http.StatusOK)
}

// CurrentCohort resolves the active cohort: override first, then the one
// whose date range contains today, then the newest.
func (h *CohortsHandler) CurrentCohort(w http.ResponseWriter, r *http.Request) {
	c, err := h.cohortRepo.CurrentCohort(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	if c == nil {
		http.Error(w, "no cohorts exist", http.StatusNotFound)
		return
	}

	writeJSON(w, c, http.StatusOK)
}

func (h *CohortsHandler) DeleteCohort(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid cohort id", http.StatusBadRequest)
		return
	}

	if err := h.cohortRepo.DeleteCohort(r.Context(), id); err != nil {
		if errors.Is(err, sqlite.ErrCohortHasTrainees) {
			writeJSON(w, errorResponse{Error: err.Error()}, http.StatusConflict)
			return
		}
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type overrideRequest struct {
	IsCurrentOverride bool `json:"is_current_override"`
}

// SetOverride flips the manual current-cohort flag. Superuser only; this is
// the administrative surface, not the normal write path.
func (h *CohortsHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid cohort id", http.StatusBadRequest)
		return
	}

	c, err := h.cohortRepo.GetCohortByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if c == nil {
		http.Error(w, "cohort not found", http.StatusNotFound)
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	c.IsCurrentOverride = req.IsCurrentOverride
	if err := h.cohortRepo.UpdateCohort(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, c, http.StatusOK)
}
