package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rtclab/traineetracker/internal/models"
	"github.com/rtclab/traineetracker/pkg/repository"
)

type TasksHandler struct {
	taskRepo repository.TaskRepo
}

func NewTasksHandler(tr repository.TaskRepo) *TasksHandler {
	return &TasksHandler{taskRepo: tr}
}

type taskRequest struct {
	Order         int     `json:"order" validate:"required,gt=0"`
	Name          string  `json:"name" validate:"required"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	RequiresScore bool    `json:"requires_score"`
	MinimumScore  *string `json:"minimum_score"`
	IsActive      *bool   `json:"is_active"`
	SignerIDs     []int64 `json:"signer_ids"`
}

func (h *TasksHandler) validateRequest(req *taskRequest) (string, bool) {
	if err := validate.Struct(req); err != nil {
		return "missing or invalid fields", false
	}
	if req.RequiresScore {
		if req.MinimumScore == nil || *req.MinimumScore == "" {
			return "minimum_score is required when requires_score is set", false
		}
		if !models.ValidScoreFormat(*req.MinimumScore) {
			return "minimum_score must be a decimal with at most two places", false
		}
	}
	return "", true
}

func (h *TasksHandler) save(w http.ResponseWriter, r *http.Request, t *models.Task) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if msg, ok := h.validateRequest(&req); !ok {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	t.Order = req.Order
	t.Name = req.Name
	t.Description = req.Description
	t.Category = req.Category
	t.RequiresScore = req.RequiresScore
	t.MinimumScore = req.MinimumScore
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	ctx := r.Context()
	id, err := h.taskRepo.SaveTask(ctx, t)
	if err != nil {
		writeError(w, err)
		return
	}
	t.ID = id

	if req.SignerIDs != nil {
		if err := h.taskRepo.SetTaskSigners(ctx, t.ID, req.SignerIDs); err != nil {
			writeError(w, err)
			return
		}
		t.SignerIDs = req.SignerIDs
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, t, status)
}

func (h *TasksHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, &models.Task{IsActive: true})
}

func (h *TasksHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	t, err := h.taskRepo.GetTaskByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if t == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	h.save(w, r, t)
}

func (h *TasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	tasks, err := h.taskRepo.ListTasks(r.Context(), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	writeJSON(w, map[string]any{"items": tasks, "total": len(tasks)}, http.StatusOK)
}

func (h *TasksHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	t, err := h.taskRepo.GetTaskByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if t == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	writeJSON(w, t, http.StatusOK)
}
