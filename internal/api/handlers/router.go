package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/farrukh-siddiqui/expense-tracker/internal/api/middleware"
	"github.com/farrukh-siddiqui/expense-tracker/internal/auth"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Auth       *auth.Service
	Statements *StatementsHandler
	Jobs       *JobsHandler
	Sessions   *SessionsHandler
	Records    *RecordsHandler
	Users      *UsersHandler

	// UploadRatePerMinute throttles the upload endpoint per client IP.
	UploadRatePerMinute int
}

// NewRouter builds the full route table with the middleware chain
// applied. Everything under /api requires a bearer token; /health and
// /api/categories are public.
func NewRouter(deps RouterDeps, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", Health).Methods(http.MethodGet)

	categories := NewCategoriesHandler()
	r.HandleFunc("/api/categories", categories.ListCategories).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(deps.Auth.Middleware)

	upload := api.PathPrefix("/statements").Subrouter()
	upload.Use(middleware.RateLimit(deps.UploadRatePerMinute))
	upload.HandleFunc("", deps.Statements.UploadStatement).Methods(http.MethodPost)

	api.HandleFunc("/jobs", deps.Jobs.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", deps.Jobs.GetJob).Methods(http.MethodGet)

	api.HandleFunc("/sessions/{id}", deps.Sessions.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/transactions/{txID}", deps.Sessions.RenameTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/sessions/{id}/transactions/{txID}/category", deps.Sessions.SetCategory).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/save", deps.Sessions.SaveSession).Methods(http.MethodPost)

	api.HandleFunc("/records", deps.Records.ListRecords).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}", deps.Records.DeleteRecord).Methods(http.MethodDelete)

	api.HandleFunc("/users/sync", deps.Users.SyncUser).Methods(http.MethodPost)

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(r),
			),
		),
	)
}
