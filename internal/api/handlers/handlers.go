package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/farrukh-siddiqui/expense-tracker/internal/api/middleware"
	"github.com/farrukh-siddiqui/expense-tracker/internal/auth"
	"github.com/farrukh-siddiqui/expense-tracker/internal/ingest"
	"github.com/farrukh-siddiqui/expense-tracker/internal/jobs"
	"github.com/farrukh-siddiqui/expense-tracker/internal/ledger"
	"github.com/farrukh-siddiqui/expense-tracker/internal/review"
	"github.com/farrukh-siddiqui/expense-tracker/internal/statement"
	"github.com/farrukh-siddiqui/expense-tracker/internal/store"
)

// StatementsHandler handles bank statement uploads.
type StatementsHandler struct {
	publisher      jobs.Publisher
	maxUploadBytes int64
	statementYear  int
	log            zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(publisher jobs.Publisher, maxUploadBytes int64, statementYear int, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		publisher:      publisher,
		maxUploadBytes: maxUploadBytes,
		statementYear:  statementYear,
		log:            log,
	}
}

// UploadStatement handles POST /api/statements
// It accepts a multipart PDF, extracts its text synchronously and
// enqueues an asynchronous parsing job. The response carries the job ID
// the client polls for the review session.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := auth.UserID(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	// An extra MiB of headroom covers the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, ingest.ErrFileTooLarge.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, ingest.ErrMissingFile.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if err := ingest.ValidateUpload(data, contentType, header.Size, h.maxUploadBytes); err != nil {
		middleware.WriteError(w, uploadErrorStatus(err), err.Error())
		return
	}

	extraction, err := ingest.ExtractText(ctx, data)
	if err != nil {
		middleware.WriteError(w, uploadErrorStatus(err), err.Error())
		return
	}
	if extraction.Empty {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "No text could be extracted from this PDF")
		return
	}

	job := &jobs.ParseStatementJob{
		UserID:        userID,
		Filename:      filepath.Base(header.Filename),
		Pages:         extraction.Pages,
		ExtractedText: extraction.Text,
		StatementYear: h.statementYear,
	}

	if err := h.publisher.PublishParseStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue parsing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parsing job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", userID).
		Str("filename", job.Filename).
		Int("pages", extraction.Pages).
		Msg("Statement accepted for parsing")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   job.JobID,
		"status":   string(job.Status),
		"filename": job.Filename,
		"pages":    extraction.Pages,
	})
}

// uploadErrorStatus maps ingestion failures onto HTTP status codes.
func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, ingest.ErrMissingFile), errors.Is(err, ingest.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrCorruptedPDF), errors.Is(err, ingest.ErrPasswordProtected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := mux.Vars(r)["id"]

	userID, _ := auth.UserID(ctx)

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil || job.UserID != userID {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _ := auth.UserID(ctx)

	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: userID,
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// SessionsHandler handles review session endpoints.
type SessionsHandler struct {
	sessions *review.Store
	ledger   *ledger.Service
	log      zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessions *review.Store, ledgerSvc *ledger.Service, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, ledger: ledgerSvc, log: log}
}

func (h *SessionsHandler) session(w http.ResponseWriter, r *http.Request) (*review.Session, bool) {
	userID, _ := auth.UserID(r.Context())
	sess, err := h.sessions.Get(mux.Vars(r)["id"], userID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Review session not found")
		return nil, false
	}
	return sess, true
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	data := sess.Snapshot()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":           sess.ID,
		"state":        string(sess.State()),
		"transactions": data.Transactions,
		"accountInfo":  data.AccountInfo,
		"missing":      sess.MissingCategories(),
	})
}

// RenameTransaction handles PATCH /api/sessions/{id}/transactions/{txID}
func (h *SessionsHandler) RenameTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		EditableName string `json:"editableName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.EditableName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "editableName is required")
		return
	}

	txID := mux.Vars(r)["txID"]
	if err := sess.CommitEdit(txID, req.EditableName); err != nil {
		middleware.WriteError(w, sessionErrorStatus(err), err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"id":           txID,
		"editableName": req.EditableName,
	})
}

// SetCategory handles PUT /api/sessions/{id}/transactions/{txID}/category
func (h *SessionsHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	txID := mux.Vars(r)["txID"]
	if err := sess.SetCategory(txID, req.Category); err != nil {
		middleware.WriteError(w, sessionErrorStatus(err), err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":       txID,
		"category": req.Category,
		"missing":  sess.MissingCategories(),
	})
}

// SaveSession handles POST /api/sessions/{id}/save
// Save-all is refused outright while any transaction lacks a category.
// Once running, persistence is best-effort per row; the response reports
// how many rows became durable.
func (h *SessionsHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	userID, _ := auth.UserID(r.Context())

	txs, err := sess.BeginSave()
	if err != nil {
		var uncategorized *review.UncategorizedError
		if errors.As(err, &uncategorized) {
			middleware.WriteJSON(w, http.StatusConflict, map[string]interface{}{
				"error":   uncategorized.Error(),
				"missing": uncategorized.Count,
			})
			return
		}
		middleware.WriteError(w, sessionErrorStatus(err), err.Error())
		return
	}

	saved := h.ledger.Save(r.Context(), userID, txs, sess.StatementYear)

	if saved == 0 && len(txs) > 0 {
		// Nothing became durable; keep the session editable for a retry.
		sess.FailSave()
		middleware.WriteError(w, http.StatusBadGateway, "Failed to save transactions, please retry")
		return
	}

	sess.CompleteSave()

	h.log.Info().
		Str("session_id", sess.ID).
		Int("saved", saved).
		Int("total", len(txs)).
		Msg("Review session saved")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"saved_count": saved,
		"total":       len(txs),
	})
}

// sessionErrorStatus maps review session failures onto HTTP status codes.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, review.ErrUnknownTransaction):
		return http.StatusNotFound
	case errors.Is(err, review.ErrInvalidCategory):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrAlreadySaved), errors.Is(err, review.ErrSaveInProgress):
		return http.StatusConflict
	case errors.Is(err, review.ErrNotEditing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RecordsHandler handles persisted ledger records.
type RecordsHandler struct {
	repo *store.RecordRepository
	log  zerolog.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(repo *store.RecordRepository, log zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{repo: repo, log: log}
}

// ListRecords handles GET /api/records
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserID(ctx)

	records, err := h.repo.ListRecords(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list records")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// DeleteRecord handles DELETE /api/records/{id}
func (h *RecordsHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserID(ctx)
	recordID := mux.Vars(r)["id"]

	if err := h.repo.DeleteRecord(ctx, userID, recordID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			middleware.WriteError(w, http.StatusNotFound, "Record not found")
			return
		}
		h.log.Error().Err(err).Str("record_id", recordID).Msg("Failed to delete record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete record")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"id":     recordID,
		"status": "deleted",
	})
}

// CategoriesHandler serves the closed category enumeration.
type CategoriesHandler struct{}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler() *CategoriesHandler {
	return &CategoriesHandler{}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": statement.Categories,
		"count":      len(statement.Categories),
	})
}

// UsersHandler handles user synchronization.
type UsersHandler struct {
	repo *store.UserRepository
	log  zerolog.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(repo *store.UserRepository, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{repo: repo, log: log}
}

// SyncUser handles POST /api/users/sync
// It find-or-creates the local row for the authenticated identity so
// that profile changes upstream are reflected on the next sign-in.
func (h *UsersHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserID(ctx)

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		ImageURL string `json:"imageUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.repo.SyncUser(ctx, userID, req.Name, req.Email, req.ImageURL)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to sync user")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to sync user")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, user)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
