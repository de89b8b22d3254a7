package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rtclab/traineetracker/internal/models"
	"github.com/rtclab/traineetracker/internal/sheet"
	"github.com/rtclab/traineetracker/pkg/repository"
)

// ExportHandler produces the fixed-layout row sets consumed by the workbook
// tooling. Rows come back as JSON arrays of cells; turning them into .xlsx
// is the importer command's job.
type ExportHandler struct {
	cohortRepo   repository.CohortRepo
	traineeRepo  repository.TraineeRepo
	taskRepo     repository.TaskRepo
	signOffRepo  repository.SignOffRepo
	advancedRepo repository.AdvancedRepo
}

func NewExportHandler(cr repository.CohortRepo, tr repository.TraineeRepo, ta repository.TaskRepo, so repository.SignOffRepo, ar repository.AdvancedRepo) *ExportHandler {
	return &ExportHandler{cohortRepo: cr, traineeRepo: tr, taskRepo: ta, signOffRepo: so, advancedRepo: ar}
}

// OrientationRoster renders the checklist roster for one cohort.
func (h *ExportHandler) OrientationRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cohort *models.Cohort
	var err error
	if idStr := mux.Vars(r)["id"]; idStr != "" {
		id, perr := strconv.ParseInt(idStr, 10, 64)
		if perr != nil {
			http.Error(w, "invalid cohort id", http.StatusBadRequest)
			return
		}
		cohort, err = h.cohortRepo.GetCohortByID(ctx, id)
	} else {
		cohort, err = h.cohortRepo.CurrentCohort(ctx, time.Now().UTC())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if cohort == nil {
		http.Error(w, "cohort not found", http.StatusNotFound)
		return
	}

	trainees, err := h.traineeRepo.ListTraineesByCohort(ctx, cohort.ID, true)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := h.taskRepo.ListTasks(ctx, true)
	if err != nil {
		writeError(w, err)
		return
	}
	orderByTaskID := make(map[int64]int, len(tasks))
	for _, t := range tasks {
		orderByTaskID[t.ID] = t.Order
	}

	rows := make([][]string, 0, len(trainees))
	for i := range trainees {
		signoffs, err := h.signOffRepo.ListSignOffsByTrainee(ctx, trainees[i].ID)
		if err != nil {
			writeError(w, err)
			return
		}
		signedOrders := make(map[int]bool, len(signoffs))
		for _, so := range signoffs {
			if order, ok := orderByTaskID[so.TaskID]; ok {
				signedOrders[order] = true
			}
		}
		rows = append(rows, sheet.OrientationRow(&trainees[i], signedOrders))
	}

	writeJSON(w, map[string]any{"cohort": cohort.Name, "rows": rows}, http.StatusOK)
}

// AdvancedRoster renders every staff member with their training blocks in
// the 21-column layout.
func (h *ExportHandler) AdvancedRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	activeOnly := r.URL.Query().Get("include_inactive") != "true"

	staff, err := h.advancedRepo.ListAdvancedStaff(ctx, activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	types, err := h.advancedRepo.ListTrainingTypes(ctx, false)
	if err != nil {
		writeError(w, err)
		return
	}
	typeNames := make(map[int64]string, len(types))
	for _, tt := range types {
		typeNames[tt.ID] = tt.Name
	}

	rows := make([][]string, 0, len(staff))
	for i := range staff {
		trainings, err := h.advancedRepo.ListTrainingsByStaff(ctx, staff[i].ID)
		if err != nil {
			writeError(w, err)
			return
		}
		byType := make(map[string]models.AdvancedTraining, len(trainings))
		for _, tr := range trainings {
			name, ok := typeNames[tr.TrainingTypeID]
			if !ok {
				continue
			}
			if _, dup := byType[name]; !dup {
				byType[name] = tr
			}
		}
		rows = append(rows, sheet.AdvancedRow(&staff[i], byType))
	}

	writeJSON(w, map[string]any{"rows": rows}, http.StatusOK)
}
