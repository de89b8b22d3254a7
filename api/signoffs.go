package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/qri-io/jsonschema"

	"github.com/rtclab/traineetracker/internal/ledger"
	"github.com/rtclab/traineetracker/internal/models"
	"github.com/rtclab/traineetracker/pkg/repository"
)

type SignOffsHandler struct {
	ledger      *ledger.Service
	traineeRepo repository.TraineeRepo
	signOffRepo repository.SignOffRepo
}

func NewSignOffsHandler(l *ledger.Service, tr repository.TraineeRepo, so repository.SignOffRepo) *SignOffsHandler {
	return &SignOffsHandler{ledger: l, traineeRepo: tr, signOffRepo: so}
}

type signOffRequest struct {
	Score string `json:"score"`
	Notes string `json:"notes"`
}

func (h *SignOffsHandler) Sign(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	badge := models.NormalizeTraineeBadge(vars["badge"])
	taskID, err := strconv.ParseInt(vars["taskID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	var req signOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	so, created, err := h.ledger.Sign(r.Context(), badge, taskID, currentUser(r), req.Score, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, so, status)
}

type unsignRequest struct {
	Reason string `json:"reason"`
}

func (h *SignOffsHandler) Unsign(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	badge := models.NormalizeTraineeBadge(vars["badge"])
	taskID, err := strconv.ParseInt(vars["taskID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	var req unsignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	log, err := h.ledger.Unsign(r.Context(), badge, taskID, currentUser(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, log, http.StatusOK)
}

// ListUnsignLogs returns the audit trail for one trainee, newest first.
func (h *SignOffsHandler) ListUnsignLogs(w http.ResponseWriter, r *http.Request) {
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

	logs, err := h.signOffRepo.ListUnsignLogs(ctx, t.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if logs == nil {
		logs = []models.UnsignLog{}
	}

	writeJSON(w, map[string]any{"items": logs, "total": len(logs)}, http.StatusOK)
}

// bulkSchemaJSON is the wire contract for the bulk endpoint; the body is
// checked against it before decoding.
const bulkSchemaJSON = `{
	"type": "object",
	"required": ["trainee_ids", "task_ids"],
	"properties": {
		"trainee_ids": {"type": "array", "items": {"type": "integer"}},
		"task_ids": {"type": "array", "items": {"type": "integer"}},
		"scores": {"type": "object", "additionalProperties": {"type": "string"}},
		"notes": {"type": "string"}
	}
}`

var bulkSchema = jsonschema.Must(bulkSchemaJSON)

func (h *SignOffsHandler) BulkSignOff(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if errs, err := bulkSchema.ValidateBytes(ctx, body); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	} else if len(errs) > 0 {
		http.Error(w, fmt.Sprintf("invalid request: %s", errs[0].Error()), http.StatusBadRequest)
		return
	}

	var req ledger.BulkRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	result, err := h.ledger.BulkSignOff(ctx, currentUser(r), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, result, http.StatusOK)
}
