package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/farrukh-siddiqui/expense-tracker/internal/auth"
	"github.com/farrukh-siddiqui/expense-tracker/internal/jobs"
	"github.com/farrukh-siddiqui/expense-tracker/internal/jobs/inmemory"
	"github.com/farrukh-siddiqui/expense-tracker/internal/ledger"
	"github.com/farrukh-siddiqui/expense-tracker/internal/parser"
	"github.com/farrukh-siddiqui/expense-tracker/internal/review"
	"github.com/farrukh-siddiqui/expense-tracker/internal/store"
)

// stubOracle returns a canned completion regardless of the prompt.
type stubOracle struct {
	response string
}

func (o *stubOracle) Complete(ctx context.Context, system, user string) (string, error) {
	return o.response, nil
}

const oraclePayload = `{
  "accountInfo": {
    "accountName": "J Smith",
    "accountNumber": "12345678",
    "statementPeriod": "1 Feb 2019 - 28 Feb 2019",
    "openingBalance": 250.00,
    "closingBalance": 1707.70,
    "totalIn": 1500.00,
    "totalOut": 42.30
  },
  "transactions": [
    {"date": "1 Feb 2019", "description": "ACME LTD SALARY", "amount": 1500.00, "type": "credit"},
    {"date": "3 Feb 2019", "description": "TESCO STORES 2042", "amount": 42.30, "type": "debit", "balance": 1707.70}
  ]
}`

// testServer wires the full HTTP surface over in-memory infrastructure
// and an ephemeral database.
type testServer struct {
	router   http.Handler
	authSvc  *auth.Service
	queue    *inmemory.Queue
	jobStore *inmemory.Store
	sessions *review.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := zerolog.Nop()

	db, err := store.OpenEphemeral()
	if err != nil {
		t.Fatalf("OpenEphemeral() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	recordRepo := store.NewRecordRepository(db)
	userRepo := store.NewUserRepository(db)
	ledgerSvc := ledger.NewService(recordRepo, log)
	sessions := review.NewStore(time.Minute)

	statementParser := parser.New(&stubOracle{response: oraclePayload}, log)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, jobStore)
	t.Cleanup(func() { queue.Close() })

	handler := func(ctx context.Context, job *jobs.ParseStatementJob) error {
		data := statementParser.Parse(ctx, job.ExtractedText)
		year := ledger.YearFromPeriod(data.AccountInfo.StatementPeriod, job.StatementYear)

		sess := review.NewSession(uuid.New().String(), job.UserID, data)
		sess.StatementYear = year
		sessions.Put(sess)
		job.SessionID = sess.ID
		return nil
	}
	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("queue.Start() error = %v", err)
	}

	authSvc := auth.NewService("test-secret", time.Hour)

	router := NewRouter(RouterDeps{
		Auth:                authSvc,
		Statements:          NewStatementsHandler(queue, 10*1024*1024, 2024, log),
		Jobs:                NewJobsHandler(jobStore, log),
		Sessions:            NewSessionsHandler(sessions, ledgerSvc, log),
		Records:             NewRecordsHandler(recordRepo, log),
		Users:               NewUsersHandler(userRepo, log),
		UploadRatePerMinute: 100,
	}, log)

	return &testServer{
		router:   router,
		authSvc:  authSvc,
		queue:    queue,
		jobStore: jobStore,
		sessions: sessions,
	}
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := ts.authSvc.GenerateToken(userID)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// startParse publishes a parse job directly and waits for its review
// session, standing in for the extraction stage of a real upload.
func (ts *testServer) startParse(t *testing.T, userID string) (jobID, sessionID string) {
	t.Helper()

	job := &jobs.ParseStatementJob{
		UserID:        userID,
		Filename:      "statement.pdf",
		ExtractedText: "1 Feb 2019 ACME LTD SALARY 1500.00",
		StatementYear: 2024,
	}
	if err := ts.queue.PublishParseStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishParseStatement() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		saved, err := ts.jobStore.GetJob(context.Background(), job.JobID)
		if err == nil && saved.Status == jobs.JobStatusCompleted {
			return saved.JobID, saved.SessionID
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("parse job never completed")
	return "", ""
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCategoriesIsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/categories", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/categories = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody(t, rec)
	if count, _ := body["count"].(float64); count != 21 {
		t.Errorf("category count = %v, want 21", body["count"])
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/jobs"},
		{http.MethodGet, "/api/records"},
		{http.MethodGet, "/api/sessions/nope"},
	}

	for _, p := range paths {
		rec := ts.do(t, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want %d", p.method, p.path, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestUploadRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")

	buildMultipart := func(field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		part.Write(data)
		w.Close()
		return &buf, w.FormDataContentType()
	}

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		w.WriteField("note", "no file here")
		w.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/statements", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("wrong content type", func(t *testing.T) {
		buf, formType := buildMultipart("file", "notes.txt", "text/plain", []byte("plain text"))

		req := httptest.NewRequest(http.MethodPost, "/api/statements", buf)
		req.Header.Set("Content-Type", formType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("corrupted pdf", func(t *testing.T) {
		buf, formType := buildMultipart("file", "statement.pdf", "application/pdf", []byte("not a pdf at all"))

		req := httptest.NewRequest(http.MethodPost, "/api/statements", buf)
		req.Header.Set("Content-Type", formType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
		}
	})
}

func TestReviewAndSaveFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")

	jobID, sessionID := ts.startParse(t, "user-1")

	// The completed job exposes its session.
	rec := ts.do(t, http.MethodGet, "/api/jobs/"+jobID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET job = %d, want %d", rec.Code, http.StatusOK)
	}
	jobBody := decodeBody(t, rec)
	if jobBody["session_id"] != sessionID {
		t.Errorf("job session_id = %v, want %s", jobBody["session_id"], sessionID)
	}

	// Session starts as a draft with both categories missing.
	rec = ts.do(t, http.MethodGet, "/api/sessions/"+sessionID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET session = %d, want %d", rec.Code, http.StatusOK)
	}
	sessBody := decodeBody(t, rec)
	if sessBody["state"] != "draft" {
		t.Errorf("state = %v, want draft", sessBody["state"])
	}
	if missing, _ := sessBody["missing"].(float64); missing != 2 {
		t.Errorf("missing = %v, want 2", sessBody["missing"])
	}

	// Save-all is refused while anything is uncategorized.
	rec = ts.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/save", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("save with 2 missing = %d, want %d", rec.Code, http.StatusConflict)
	}
	if body := decodeBody(t, rec); body["missing"].(float64) != 2 {
		t.Errorf("refusal missing = %v, want 2", body["missing"])
	}

	// Categorize the first row; the refusal count drops but save is
	// still refused.
	rec = ts.do(t, http.MethodPut, "/api/sessions/"+sessionID+"/transactions/transaction-1/category", token,
		map[string]string{"category": "income"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set category = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/save", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("save with 1 missing = %d, want %d", rec.Code, http.StatusConflict)
	}
	if body := decodeBody(t, rec); body["missing"].(float64) != 1 {
		t.Errorf("refusal missing = %v, want 1", body["missing"])
	}

	// An invalid category never enters the session.
	rec = ts.do(t, http.MethodPut, "/api/sessions/"+sessionID+"/transactions/transaction-2/category", token,
		map[string]string{"category": "gambling"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid category = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// Rename the second row, then categorize it.
	rec = ts.do(t, http.MethodPatch, "/api/sessions/"+sessionID+"/transactions/transaction-2", token,
		map[string]string{"editableName": "Tesco groceries"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPut, "/api/sessions/"+sessionID+"/transactions/transaction-2/category", token,
		map[string]string{"category": "food-dining"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set category = %d, want %d", rec.Code, http.StatusOK)
	}

	// Fully categorized, save succeeds and reports both rows durable.
	rec = ts.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/save", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	saveBody := decodeBody(t, rec)
	if saveBody["saved_count"].(float64) != 2 || saveBody["total"].(float64) != 2 {
		t.Errorf("save response = %v, want saved_count 2 of 2", saveBody)
	}

	// A second save on the terminal session is refused.
	rec = ts.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/save", token, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("save after save = %d, want %d", rec.Code, http.StatusConflict)
	}

	// The ledger carries the signed amounts and the edited name.
	rec = ts.do(t, http.MethodGet, "/api/records", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET records = %d, want %d", rec.Code, http.StatusOK)
	}

	var recordsBody struct {
		Records []struct {
			ID       string  `json:"id"`
			Amount   float64 `json:"amount"`
			Text     string  `json:"text"`
			Category string  `json:"category"`
			Date     string  `json:"date"`
		} `json:"records"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &recordsBody); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if recordsBody.Count != 2 {
		t.Fatalf("record count = %d, want 2", recordsBody.Count)
	}

	byText := make(map[string]float64)
	for _, r := range recordsBody.Records {
		byText[r.Text] = r.Amount
	}
	if byText["ACME LTD SALARY"] != 1500.00 {
		t.Errorf("salary amount = %v, want 1500.00", byText["ACME LTD SALARY"])
	}
	if byText["Tesco groceries"] != -42.30 {
		t.Errorf("groceries amount = %v, want -42.30", byText["Tesco groceries"])
	}

	// Delete one record; deleting it again is a 404.
	recordID := recordsBody.Records[0].ID
	rec = ts.do(t, http.MethodDelete, "/api/records/"+recordID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete record = %d, want %d", rec.Code, http.StatusOK)
	}
	rec = ts.do(t, http.MethodDelete, "/api/records/"+recordID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSessionOwnership(t *testing.T) {
	ts := newTestServer(t)

	_, sessionID := ts.startParse(t, "user-1")

	otherToken := ts.token(t, "user-2")
	rec := ts.do(t, http.MethodGet, "/api/sessions/"+sessionID, otherToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign session read = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = ts.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/save", otherToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign session save = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestJobsAreUserScoped(t *testing.T) {
	ts := newTestServer(t)

	jobID, _ := ts.startParse(t, "user-1")

	otherToken := ts.token(t, "user-2")
	rec := ts.do(t, http.MethodGet, "/api/jobs/"+jobID, otherToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign job read = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs", otherToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET jobs = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := decodeBody(t, rec); body["count"].(float64) != 0 {
		t.Errorf("foreign job list count = %v, want 0", body["count"])
	}
}

func TestSyncUser(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "google-oauth|123")

	rec := ts.do(t, http.MethodPost, "/api/users/sync", token, map[string]string{
		"name":     "Jane Smith",
		"email":    "jane@example.com",
		"imageUrl": "https://example.com/jane.png",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sync user = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["email"] != "jane@example.com" {
		t.Errorf("email = %v, want jane@example.com", body["email"])
	}

	// Syncing again with a new name updates in place.
	rec = ts.do(t, http.MethodPost, "/api/users/sync", token, map[string]string{
		"name":  "Jane Q Smith",
		"email": "jane@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second sync = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := decodeBody(t, rec); body["name"] != "Jane Q Smith" {
		t.Errorf("name = %v, want Jane Q Smith", body["name"])
	}
}
