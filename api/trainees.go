package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/rtclab/traineetracker/internal/models"
	"github.com/rtclab/traineetracker/internal/sync"
	"github.com/rtclab/traineetracker/pkg/repository"
)

type TraineesHandler struct {
	traineeRepo repository.TraineeRepo
	cohortRepo  repository.CohortRepo
	taskRepo    repository.TaskRepo
	signOffRepo repository.SignOffRepo
	syncer      *sync.Synchronizer
}

func NewTraineesHandler(tr repository.TraineeRepo, cr repository.CohortRepo, ta repository.TaskRepo, so repository.SignOffRepo, syncer *sync.Synchronizer) *TraineesHandler {
	return &TraineesHandler{traineeRepo: tr, cohortRepo: cr, taskRepo: ta, signOffRepo: so, syncer: syncer}
}

type traineeRequest struct {
	BadgeNumber string `json:"badge_number" validate:"required"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	CohortID    int64  `json:"cohort_id"`
	IsActive    *bool  `json:"is_active"`
}

func (h *TraineesHandler) CreateTrainee(w http.ResponseWriter, r *http.Request) {
	var req traineeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
		return
	}

	badge := models.NormalizeTraineeBadge(req.BadgeNumber)
	if !models.ValidTraineeBadge(badge) {
		http.Error(w, "badge number must match #YYXX", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// default to the current cohort when none given
	cohortID := req.CohortID
	if cohortID == 0 {
		cohort, err := h.cohortRepo.CurrentCohort(ctx, time.Now().UTC())
		if err != nil {
			writeError(w, err)
			return
		}
		if cohort == nil {
			http.Error(w, "no cohort available", http.StatusBadRequest)
			return
		}
		cohortID = cohort.ID
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	t := &models.Trainee{
		BadgeNumber: badge,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CohortID:    cohortID,
		IsActive:    active,
	}
	id, err := h.traineeRepo.CreateTrainee(ctx, t)
	if err != nil {
		writeError(w, err)
		return
	}
	t.ID = id

	if err := h.syncer.TraineeSaved(ctx, t); err != nil {
		logger.Error("trainee sync failed", "badge", t.BadgeNumber, "err", err)
	}

	writeJSON(w, t, http.StatusCreated)
}

func (h *TraineesHandler) UpdateTrainee(w http.ResponseWriter, r *http.Request) {
	badge := models.NormalizeTraineeBadge(mux.Vars(r)["badge"])

	ctx := r.Context()
	t, err := h.traineeRepo.GetTraineeByBadge(ctx, badge)
	if err != nil {
		writeError(w, err)
		return
	}
	if t == nil {
		http.Error(w, "trainee not found", http.StatusNotFound)
		return
	}

	var req traineeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
		return
	}

	newBadge := models.NormalizeTraineeBadge(req.BadgeNumber)
	if !models.ValidTraineeBadge(newBadge) {
		http.Error(w, "badge number must match #YYXX", http.StatusBadRequest)
		return
	}

	t.BadgeNumber = newBadge
	t.FirstName = req.FirstName
	t.LastName = req.LastName
	if req.CohortID != 0 {
		t.CohortID = req.CohortID
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := h.traineeRepo.UpdateTrainee(ctx, t); err != nil {
		writeError(w, err)
		return
	}

	if err := h.syncer.TraineeSaved(ctx, t); err != nil {
		logger.Error("trainee sync failed", "badge", t.BadgeNumber, "err", err)
	}

	writeJSON(w, t, http.StatusOK)
}

type traineeDetail struct {
	*models.Trainee
	Progress float64          `json:"progress"`
	SignOffs []models.SignOff `json:"signoffs"`
}

// GetTrainee returns the trainee with their sign-offs and checklist progress.
func (h *TraineesHandler) GetTrainee(w http.ResponseWriter, r *http.Request) {
	badge := models.NormalizeTraineeBadge(mux.Vars(r)["badge"])

	ctx := r.Context()
	t, err := h.traineeRepo.GetTraineeByBadge(ctx, badge)
	if err != nil {
		writeError(w, err)
		return
	}
	if t == nil {
		http.Error(w, "trainee not found", http.StatusNotFound)
		return
	}

	signoffs, err := h.signOffRepo.ListSignOffsByTrainee(ctx, t.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if signoffs == nil {
		signoffs = []models.SignOff{}
	}
	total, err := h.taskRepo.CountActiveTasks(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	completed, err := h.signOffRepo.CountSignedTasks(ctx, t.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, traineeDetail{
		Trainee:  t,
		Progress: models.ProgressPercent(completed, total),
		SignOffs: signoffs,
	}, http.StatusOK)
}

// ListTrainees lists by cohort, or searches by name/badge via ?q=.
func (h *TraineesHandler) ListTrainees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if search := strings.TrimSpace(q.Get("q")); search != "" {
		trainees, err := h.traineeRepo.SearchTrainees(r.Context(), search)
		if err != nil {
			writeError(w, err)
			return
		}
		if trainees == nil {
			trainees = []models.Trainee{}
		}
		writeJSON(w, map[string]any{"items": trainees, "total": len(trainees)}, http.StatusOK)
		return
	}

	cohortStr := q.Get("cohort_id")
	var cohortID int64
	if cohortStr != "" {
		var err error
		cohortID, err = strconv.ParseInt(cohortStr, 10, 64)
		if err != nil || cohortID <= 0 {
			http.Error(w, "invalid cohort_id", http.StatusBadRequest)
			return
		}
	} else {
		cohort, err := h.cohortRepo.CurrentCohort(r.Context(), time.Now().UTC())
		if err != nil {
			writeError(w, err)
			return
		}
		if cohort == nil {
			writeJSON(w, map[string]any{"items": []models.Trainee{}, "total": 0}, http.StatusOK)
			return
		}
		cohortID = cohort.ID
	}

	activeOnly := q.Get("include_inactive") != "true"
	trainees, err := h.traineeRepo.ListTraineesByCohort(r.Context(), cohortID, activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	if trainees == nil {
		trainees = []models.Trainee{}
	}

	writeJSON(w, map[string]any{"items": trainees, "total": len(trainees)}, http.StatusOK)
}

// NextBadge suggests the next unassigned badge for a cohort year.
func (h *TraineesHandler) NextBadge(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		v, err := strconv.Atoi(y)
		if err != nil || v < 2000 || v > 2100 {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = v
	}

	prefix := "#" + strconv.Itoa(year%100)
	if year%100 < 10 {
		prefix = "#0" + strconv.Itoa(year%100)
	}
	existing, err := h.traineeRepo.ListBadgeNumbers(r.Context(), prefix)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]string{"badge_number": models.NextBadgeNumber(year, existing)}, http.StatusOK)
}
