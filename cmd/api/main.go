package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/farrukh-siddiqui/expense-tracker/internal/api/handlers"
	"github.com/farrukh-siddiqui/expense-tracker/internal/auth"
	"github.com/farrukh-siddiqui/expense-tracker/internal/config"
	"github.com/farrukh-siddiqui/expense-tracker/internal/jobs"
	"github.com/farrukh-siddiqui/expense-tracker/internal/jobs/inmemory"
	"github.com/farrukh-siddiqui/expense-tracker/internal/ledger"
	"github.com/farrukh-siddiqui/expense-tracker/internal/logger"
	"github.com/farrukh-siddiqui/expense-tracker/internal/parser"
	"github.com/farrukh-siddiqui/expense-tracker/internal/review"
	"github.com/farrukh-siddiqui/expense-tracker/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	defer db.Close()

	recordRepo := store.NewRecordRepository(db)
	userRepo := store.NewUserRepository(db)
	ledgerSvc := ledger.NewService(recordRepo, log)

	sessions := review.NewStore(cfg.SessionTTL)

	oracle := parser.NewGeminiOracle(cfg.GeminiModel, cfg.MaxOutputTokens)
	statementParser := parser.New(oracle, log)

	// Job infrastructure: in-memory queue with an embedded worker.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.ParseStatementJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("filename", job.Filename).
			Int("pages", job.Pages).
			Msg("Parsing statement")

		parseCtx, cancel := context.WithTimeout(ctx, cfg.OracleTimeout)
		defer cancel()

		data := statementParser.Parse(parseCtx, job.ExtractedText)

		year := ledger.YearFromPeriod(data.AccountInfo.StatementPeriod, job.StatementYear)

		sess := review.NewSession(uuid.New().String(), job.UserID, data)
		sess.StatementYear = year
		sessions.Put(sess)

		job.SessionID = sess.ID

		log.Info().
			Str("job_id", job.JobID).
			Str("session_id", sess.ID).
			Int("transactions", len(data.Transactions)).
			Msg("Review session ready")
		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	authSvc := auth.NewService(cfg.JWTSecret, 24*time.Hour)

	router := handlers.NewRouter(handlers.RouterDeps{
		Auth:                authSvc,
		Statements:          handlers.NewStatementsHandler(jobQueue, cfg.MaxUploadBytes, cfg.StatementYear, log),
		Jobs:                handlers.NewJobsHandler(jobStore, log),
		Sessions:            handlers.NewSessionsHandler(sessions, ledgerSvc, log),
		Records:             handlers.NewRecordsHandler(recordRepo, log),
		Users:               handlers.NewUsersHandler(userRepo, log),
		UploadRatePerMinute: cfg.UploadRatePerMinute,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
