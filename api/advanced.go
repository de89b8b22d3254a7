package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rtclab/traineetracker/internal/models"
	"github.com/rtclab/traineetracker/internal/sync"
	"github.com/rtclab/traineetracker/pkg/repository"
)

type AdvancedHandler struct {
	advancedRepo repository.AdvancedRepo
	syncer       *sync.Synchronizer
	expiryWindow int
}

func NewAdvancedHandler(ar repository.AdvancedRepo, syncer *sync.Synchronizer, expiryWindow int) *AdvancedHandler {
	return &AdvancedHandler{advancedRepo: ar, syncer: syncer, expiryWindow: expiryWindow}
}

type advancedStaffRequest struct {
	BadgeNumber string `json:"badge_number" validate:"required"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Role        string `json:"role"`
	IsActive    *bool  `json:"is_active"`
}

func (h *AdvancedHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req advancedStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
		return
	}

	role := req.Role
	if role == "" || !models.ValidRole(role) {
		role = models.RoleOther
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	s := &models.AdvancedStaff{
		BadgeNumber: models.NormalizeAdvancedBadge(req.BadgeNumber),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        role,
		IsActive:    active,
	}

	ctx := r.Context()
	id, err := h.advancedRepo.CreateAdvancedStaff(ctx, s)
	if err != nil {
		writeError(w, err)
		return
	}
	s.ID = id

	if err := h.syncer.AdvancedStaffSaved(ctx, s); err != nil {
		logger.Error("staff sync failed", "badge", s.BadgeNumber, "err", err)
	}

	writeJSON(w, s, http.StatusCreated)
}

func (h *AdvancedHandler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	badge := models.NormalizeAdvancedBadge(mux.Vars(r)["badge"])

	ctx := r.Context()
	s, err := h.advancedRepo.GetAdvancedStaffByBadge(ctx, badge)
	if err != nil {
		writeError(w, err)
		return
	}
	if s == nil {
		http.Error(w, "staff not found", http.StatusNotFound)
		return
	}

	var req advancedStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
		return
	}

	s.BadgeNumber = models.NormalizeAdvancedBadge(req.BadgeNumber)
	s.FirstName = req.FirstName
	s.LastName = req.LastName
	if req.Role != "" && models.ValidRole(req.Role) {
		s.Role = req.Role
	}
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
	if err := h.advancedRepo.UpdateAdvancedStaff(ctx, s); err != nil {
		writeError(w, err)
		return
	}

	if err := h.syncer.AdvancedStaffSaved(ctx, s); err != nil {
		logger.Error("staff sync failed", "badge", s.BadgeNumber, "err", err)
	}

	writeJSON(w, s, http.StatusOK)
}

type staffDetail struct {
	*models.AdvancedStaff
	Trainings []models.AdvancedTraining `json:"trainings"`
}

func (h *AdvancedHandler) GetStaff(w http.ResponseWriter, r *http.Request) {
	badge := models.NormalizeAdvancedBadge(mux.Vars(r)["badge"])

	ctx := r.Context()
	s, err := h.advancedRepo.GetAdvancedStaffByBadge(ctx, badge)
	if err != nil {
		writeError(w, err)
		return
	}
	if s == nil {
		http.Error(w, "staff not found", http.StatusNotFound)
		return
	}

	trainings, err := h.advancedRepo.ListTrainingsByStaff(ctx, s.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if trainings == nil {
		trainings = []models.AdvancedTraining{}
	}

	writeJSON(w, staffDetail{AdvancedStaff: s, Trainings: trainings}, http.StatusOK)
}

func (h *AdvancedHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	staff, err := h.advancedRepo.ListAdvancedStaff(r.Context(), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	if staff == nil {
		staff = []models.AdvancedStaff{}
	}

	writeJSON(w, map[string]any{"items": staff, "total": len(staff)}, http.StatusOK)
}

func (h *AdvancedHandler) ListTrainingTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.advancedRepo.ListTrainingTypes(r.Context(), true)
	if err != nil {
		writeError(w, err)
		return
	}
	if types == nil {
		types = []models.AdvancedTrainingType{}
	}

	writeJSON(w, map[string]any{"items": types, "total": len(types)}, http.StatusOK)
}

type trainingRequest struct {
	TrainingTypeID   int64  `json:"training_type_id" validate:"required"`
	CustomType       string `json:"custom_type"`
	CompletionDate   string `json:"completion_date"`
	ApproverInitials string `json:"approver_initials" validate:"max=10"`
	TerminationDate  string `json:"termination_date"`
	Notes            string `json:"notes"`
}

func parseISODate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTraining records or updates a training for a staff member. The
// signer authorization mirrors the checklist rule: an empty signer set on
// the type means any staff member may record it.
func (h *AdvancedHandler) UpsertTraining(w http.ResponseWriter, r *http.Request) {
	badge := models.NormalizeAdvancedBadge(mux.Vars(r)["badge"])

	ctx := r.Context()
	s, err := h.advancedRepo.GetAdvancedStaffByBadge(ctx, badge)
	if err != nil {
		writeError(w, err)
		return
	}
	if s == nil {
		http.Error(w, "staff not found", http.StatusNotFound)
		return
	}

	var req trainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
		return
	}

	tt, err := h.advancedRepo.GetTrainingTypeByID(ctx, req.TrainingTypeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tt == nil {
		http.Error(w, "training type not found", http.StatusNotFound)
		return
	}
	if !tt.CanSignOff(currentUser(r).ID) {
		http.Error(w, "not authorized for this training type", http.StatusForbidden)
		return
	}
	if req.CustomType != "" && !tt.AllowsCustomType {
		http.Error(w, "training type does not accept a custom type", http.StatusBadRequest)
		return
	}

	completion, err := parseISODate(req.CompletionDate)
	if err != nil {
		http.Error(w, "completion_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	termination, err := parseISODate(req.TerminationDate)
	if err != nil {
		http.Error(w, "termination_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	tr := &models.AdvancedTraining{
		StaffID:          s.ID,
		TrainingTypeID:   tt.ID,
		CustomType:       req.CustomType,
		CompletionDate:   completion,
		ApproverInitials: req.ApproverInitials,
		TerminationDate:  termination,
		Notes:            req.Notes,
	}
	created, err := h.advancedRepo.UpsertTraining(ctx, tr)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, tr, status)
}

func (h *AdvancedHandler) DeleteTraining(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid training id", http.StatusBadRequest)
		return
	}

	if err := h.advancedRepo.DeleteTraining(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type expiringTraining struct {
	models.AdvancedTraining
	StaffBadge string `json:"staff_badge"`
	StaffName  string `json:"staff_name"`
	Expired    bool   `json:"expired"`
}

// ListExpiring reports trainings already expired or terminating within the
// configured window.
func (h *AdvancedHandler) ListExpiring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	staff, err := h.advancedRepo.ListAdvancedStaff(ctx, true)
	if err != nil {
		writeError(w, err)
		return
	}

	today := time.Now().UTC()
	items := []expiringTraining{}
	for i := range staff {
		trainings, err := h.advancedRepo.ListTrainingsByStaff(ctx, staff[i].ID)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, tr := range trainings {
			expired := tr.IsExpired(today)
			if !expired && !tr.IsExpiringSoon(today, h.expiryWindow) {
				continue
			}
			items = append(items, expiringTraining{
				AdvancedTraining: tr,
				StaffBadge:       staff[i].BadgeNumber,
				StaffName:        staff[i].FullName(),
				Expired:          expired,
			})
		}
	}

	writeJSON(w, map[string]any{"items": items, "total": len(items)}, http.StatusOK)
}
