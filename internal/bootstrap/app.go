package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"meddocs-backend/internal/compliance"
	"meddocs-backend/internal/documents"
	"meddocs-backend/internal/extraction"
	"meddocs-backend/internal/patients"
	"meddocs-backend/internal/queue"
	"meddocs-backend/internal/review"
	"meddocs-backend/internal/shared/config"
	"meddocs-backend/internal/shared/server"
	"meddocs-backend/internal/shared/storage/db"
	"meddocs-backend/internal/shared/storage/object"
	localstore "meddocs-backend/internal/shared/storage/object/local"
	s3store "meddocs-backend/internal/shared/storage/object/s3"
	"meddocs-backend/internal/status"
)

// App holds shared dependencies for the api and worker binaries.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	Hub    *status.Hub

	PatientsRepo   patients.Repo
	DocumentsRepo  documents.Repo
	JobsRepo       extraction.Repo
	ComplianceRepo compliance.Repo

	PatientsService  *patients.Service
	DocumentsService *documents.Service
	Extraction       *extraction.Service
	ReviewService    *review.Service
	StatusService    *status.Service
	JobProcessor     JobProcessor

	PatientsHandler   *patients.Handler
	DocumentsHandler  *documents.Handler
	ReviewHandler     *review.Handler
	ComplianceHandler *compliance.Handler
	StatusHandler     *status.Handler
}

// JobProcessor allows callers to override job processing for tests.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		Hub:    status.NewHub(),
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		PatientsHandler:   app.PatientsHandler,
		DocumentsHandler:  app.DocumentsHandler,
		ReviewHandler:     app.ReviewHandler,
		ComplianceHandler: app.ComplianceHandler,
		StatusHandler:     app.StatusHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func buildExtractor(cfg config.Config) (extraction.Extractor, error) {
	if cfg.ExtractorKind == "http" {
		return extraction.NewHTTPExtractor(cfg.ExtractorBaseURL, cfg.ExtractorAPIKey, cfg.ExtractorTimeout)
	}
	return extraction.PlaceholderExtractor{}, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var (
		patientRepo patients.Repo
		docRepo     documents.Repo
		jobsRepo    extraction.Repo
		compRepo    compliance.Repo
	)

	if app.DB != nil {
		patientRepo = &patients.PGRepo{DB: app.DB}
		docRepo = &documents.PGRepo{DB: app.DB}
		jobsRepo = &extraction.PGRepo{DB: app.DB}
		compRepo = &compliance.PGRepo{DB: app.DB}
	} else {
		patientRepo = patients.NewMemoryRepo()
		docRepo = documents.NewMemoryRepo()
		jobsRepo = extraction.NewMemoryRepo()
		compRepo = compliance.NewMemoryRepo()
	}

	extractor, err := buildExtractor(app.Config)
	if err != nil {
		return err
	}

	extractionSvc := &extraction.Service{
		Jobs:        jobsRepo,
		Docs:        docRepo,
		Store:       app.Store,
		Extractor:   extractor,
		Queue:       app.Queue,
		Compliance:  compRepo,
		Notifier:    app.Hub,
		MaxAttempts: app.Config.MaxAttempts,
	}

	patientSvc := &patients.Service{Repo: patientRepo}
	docSvc := &documents.Service{
		Store:    app.Store,
		Repo:     docRepo,
		Patients: patientRepo,
		Pipeline: extractionSvc,
		Notifier: app.Hub,
	}
	reviewSvc := &review.Service{
		Docs:       docRepo,
		Store:      app.Store,
		Compliance: compRepo,
		Notifier:   app.Hub,
	}
	statusSvc := &status.Service{
		Docs:       docRepo,
		Compliance: compRepo,
	}

	app.PatientsRepo = patientRepo
	app.DocumentsRepo = docRepo
	app.JobsRepo = jobsRepo
	app.ComplianceRepo = compRepo
	app.PatientsService = patientSvc
	app.DocumentsService = docSvc
	app.Extraction = extractionSvc
	app.ReviewService = reviewSvc
	app.StatusService = statusSvc
	app.JobProcessor = extractionSvc
	app.PatientsHandler = patients.NewHandler(patientSvc)
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.ReviewHandler = review.NewHandler(reviewSvc)
	app.ComplianceHandler = compliance.NewHandler(compRepo)
	app.StatusHandler = status.NewHandler(statusSvc, app.Hub, app.Config.PollWindow)

	return nil
}
