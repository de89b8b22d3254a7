package api

import (
	"github.com/gorilla/mux"

	"github.com/rtclab/traineetracker/internal/config"
	"github.com/rtclab/traineetracker/internal/db"
	"github.com/rtclab/traineetracker/internal/ledger"
	"github.com/rtclab/traineetracker/internal/repository/sqlite"
	"github.com/rtclab/traineetracker/internal/sync"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, db *db.DB) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Repository
	repo := sqlite.New(db, logger)

	// Services
	ledgerSvc := ledger.NewService(repo, repo, repo, logger)
	syncer := sync.NewSynchronizer(repo, repo, repo, logger)
	syncer.SetEnabled(cfg.SyncEnabled)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(repo, cfg.JWTSecret, cfg.TokenDuration)
	cohortsHandler := NewCohortsHandler(repo)
	traineesHandler := NewTraineesHandler(repo, repo, repo, repo, syncer)
	tasksHandler := NewTasksHandler(repo)
	signOffsHandler := NewSignOffsHandler(ledgerSvc, repo, repo)
	advancedHandler := NewAdvancedHandler(repo, syncer, cfg.ExpiryWindow)
	exportHandler := NewExportHandler(repo, repo, repo, repo, repo)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddleware(cfg.JWTSecret, repo))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")

	// Cohort registry
	apiV1.HandleFunc("/cohorts", cohortsHandler.ListCohorts).Methods("GET")
	apiV1.HandleFunc("/cohorts", requireStaff(cohortsHandler.CreateCohort)).Methods("POST")
	apiV1.HandleFunc("/cohorts/current", cohortsHandler.CurrentCohort).Methods("GET")
	apiV1.HandleFunc("/cohorts/{id:[0-9]+}", cohortsHandler.GetCohort).Methods("GET")
	apiV1.HandleFunc("/cohorts/{id:[0-9]+}", requireStaff(cohortsHandler.UpdateCohort)).Methods("PUT")
	apiV1.HandleFunc("/cohorts/{id:[0-9]+}", requireStaff(cohortsHandler.DeleteCohort)).Methods("DELETE")
	apiV1.HandleFunc("/cohorts/{id:[0-9]+}/override", requireSuperuser(cohortsHandler.SetOverride)).Methods("PUT")
	apiV1.HandleFunc("/cohorts/{id:[0-9]+}/export", exportHandler.OrientationRoster).Methods("GET")

	// Trainee registry
	apiV1.HandleFunc("/trainees", traineesHandler.ListTrainees).Methods("GET")
	apiV1.HandleFunc("/trainees", requireStaff(traineesHandler.CreateTrainee)).Methods("POST")
	apiV1.HandleFunc("/trainees/next-badge", traineesHandler.NextBadge).Methods("GET")
	apiV1.HandleFunc("/trainees/{badge}", traineesHandler.GetTrainee).Methods("GET")
	apiV1.HandleFunc("/trainees/{badge}", requireStaff(traineesHandler.UpdateTrainee)).Methods("PUT")

	// Task catalog
	apiV1.HandleFunc("/tasks", tasksHandler.ListTasks).Methods("GET")
	apiV1.HandleFunc("/tasks", requireStaff(tasksHandler.CreateTask)).Methods("POST")
	apiV1.HandleFunc("/tasks/{id:[0-9]+}", tasksHandler.GetTask).Methods("GET")
	apiV1.HandleFunc("/tasks/{id:[0-9]+}", requireStaff(tasksHandler.UpdateTask)).Methods("PUT")

	// Sign-off ledger
	apiV1.HandleFunc("/trainees/{badge}/tasks/{taskID:[0-9]+}/signoff", requireStaff(signOffsHandler.Sign)).Methods("POST")
	apiV1.HandleFunc("/trainees/{badge}/tasks/{taskID:[0-9]+}/unsign", requireStaff(signOffsHandler.Unsign)).Methods("POST")
	apiV1.HandleFunc("/trainees/{badge}/unsign-logs", requireStaff(signOffsHandler.ListUnsignLogs)).Methods("GET")
	apiV1.HandleFunc("/signoffs/bulk", requireStaff(signOffsHandler.BulkSignOff)).Methods("POST")

	// Advanced training registry
	apiV1.HandleFunc("/advanced/staff", advancedHandler.ListStaff).Methods("GET")
	apiV1.HandleFunc("/advanced/staff", requireStaff(advancedHandler.CreateStaff)).Methods("POST")
	apiV1.HandleFunc("/advanced/staff/{badge}", advancedHandler.GetStaff).Methods("GET")
	apiV1.HandleFunc("/advanced/staff/{badge}", requireStaff(advancedHandler.UpdateStaff)).Methods("PUT")
	apiV1.HandleFunc("/advanced/staff/{badge}/trainings", requireStaff(advancedHandler.UpsertTraining)).Methods("POST")
	apiV1.HandleFunc("/advanced/trainings/{id:[0-9]+}", requireStaff(advancedHandler.DeleteTraining)).Methods("DELETE")
	apiV1.HandleFunc("/advanced/training-types", advancedHandler.ListTrainingTypes).Methods("GET")
	apiV1.HandleFunc("/advanced/expiring", advancedHandler.ListExpiring).Methods("GET")
	apiV1.HandleFunc("/advanced/export", exportHandler.AdvancedRoster).Methods("GET")

	return r
}
