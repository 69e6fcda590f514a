package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/idan157001/TestShuffleFinal/internal/auth"
	"github.com/idan157001/TestShuffleFinal/internal/exams"
	"github.com/idan157001/TestShuffleFinal/internal/handler"
	"github.com/idan157001/TestShuffleFinal/internal/jobs"
	"github.com/idan157001/TestShuffleFinal/internal/middleware"
	"github.com/idan157001/TestShuffleFinal/internal/routes"
	"github.com/idan157001/TestShuffleFinal/internal/server"
	"github.com/idan157001/TestShuffleFinal/internal/service"
	"github.com/idan157001/TestShuffleFinal/internal/types"
)

const maxFileSize = 1 << 20

var samplePDF = []byte("%PDF-1.4\n% exam body\n")

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, []byte) (*exams.ExamData, error) {
	return &exams.ExamData{
		TestData: exams.TestMeta{Description: "Biology Midterm | 01/05/2024", Time: "2 Hours"},
		Questions: []exams.Question{{
			Number:        1,
			Text:          "Which organelle produces ATP?",
			Answers:       []exams.Answer{{Text: "Mitochondria"}, {Text: "Ribosome"}},
			CorrectAnswer: &exams.Answer{Text: "Mitochondria"},
		}},
	}, nil
}

type queueScheduler struct {
	mu    sync.Mutex
	tasks []types.ExtractionTask
}

func (s *queueScheduler) Schedule(_ context.Context, task types.ExtractionTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *queueScheduler) last(t *testing.T) types.ExtractionTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.tasks)
	return s.tasks[len(s.tasks)-1]
}

type testEnv struct {
	router    *gin.Engine
	upload    *service.Upload
	manager   *jobs.Manager
	registry  *jobs.Registry
	repo      *exams.GormRepository
	scheduler *queueScheduler
	jwt       *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := exams.NewGormRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))

	log := zaptest.NewLogger(t)
	registry := jobs.NewRegistry()
	manager := jobs.NewManager(jobs.NewMemoryStore(), registry, log)
	scheduler := &queueScheduler{}
	upload := service.NewUpload(manager, repo, stubExtractor{}, scheduler, nil, service.UploadConfig{
		MaxFileSize:       maxFileSize,
		MaxExams:          2,
		ExtractionTimeout: time.Minute,
	}, log)
	jwtService := auth.NewService("test-secret", time.Hour)

	router := server.NewServer(routes.Handlers{
		Upload: handler.NewUploadHandler(upload, maxFileSize, log),
		Job:    handler.NewJobHandler(manager, log),
		WS:     handler.NewWSHandler(manager, registry, log),
		Exam:   handler.NewExamHandler(service.NewExams(repo, nil, log), log),
		Auth:   handler.NewAuthHandler(false),
		Health: handler.NewHealthHandler(registry, nil, nil),
	}, middleware.NewAuthMiddleware(jwtService), log, maxFileSize)

	return &testEnv{
		router:    router,
		upload:    upload,
		manager:   manager,
		registry:  registry,
		repo:      repo,
		scheduler: scheduler,
		jwt:       jwtService,
	}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	token, err := e.jwt.GenerateAccessToken(userID, userID+"@example.com", "")
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, req *http.Request, userID string) *httptest.ResponseRecorder {
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename, contentType string, content []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// submit uploads content for userID and returns the job id.
func (e *testEnv) submit(t *testing.T, userID string, content []byte) string {
	w := e.do(t, uploadRequest(t, "exam.pdf", "application/pdf", content), userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp service.SubmitResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.JobID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	return body.Code
}

func TestUploadPDF_StatusCodes(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		content     []byte
		status      int
		code        string
	}{
		{"empty", "exam.pdf", "application/pdf", nil, http.StatusBadRequest, "EMPTY_FILE"},
		{"too large", "exam.pdf", "application/pdf", append(append([]byte{}, samplePDF...), make([]byte, maxFileSize)...), http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"wrong type", "exam.docx", "application/msword", samplePDF, http.StatusUnsupportedMediaType, "INVALID_FILE_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, uploadRequest(t, tt.filename, tt.contentType, tt.content), "user-a")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w))
		})
	}
}

func TestUploadPDF_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, uploadRequest(t, "exam.pdf", "application/pdf", samplePDF), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadPDF_ProcessingThenDuplicateThenQuota(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, uploadRequest(t, "exam.pdf", "application/pdf", samplePDF), "user-a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"processing"`)
	require.NoError(t, env.upload.Process(context.Background(), env.scheduler.last(t)))

	w = env.do(t, uploadRequest(t, "exam.pdf", "application/pdf", samplePDF), "user-a")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_EXAM", decodeError(t, w))

	second := []byte("%PDF-1.4\nsecond exam\n")
	env.submit(t, "user-a", second)
	require.NoError(t, env.upload.Process(context.Background(), env.scheduler.last(t)))

	w = env.do(t, uploadRequest(t, "exam.pdf", "application/pdf", []byte("%PDF-1.4\nthird\n")), "user-a")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "QUOTA_EXCEEDED", decodeError(t, w))
}

func TestUploadPDF_CrossUserCopyIsDone(t *testing.T) {
	env := newTestEnv(t)
	env.submit(t, "user-a", samplePDF)
	require.NoError(t, env.upload.Process(context.Background(), env.scheduler.last(t)))

	w := env.do(t, uploadRequest(t, "exam.pdf", "application/pdf", samplePDF), "user-b")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"done"`)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/exams", nil), "user-b")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Biology Midterm | 01/05/2024")
}

func TestJobs_PollAndAck(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.submit(t, "user-a", samplePDF)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil), "user-a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"processing"`)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil), "user-b")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, w))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil), "user-a")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w))

	w = env.do(t, httptest.NewRequest(http.MethodDelete, "/jobs/"+jobID, nil), "user-a")
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, env.upload.Process(context.Background(), env.scheduler.last(t)))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil), "user-a")
	require.Equal(t, http.StatusOK, w.Code)
	var rec jobs.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, jobs.StatusDone, rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "Biology Midterm | 01/05/2024", rec.Result.ExamName)

	w = env.do(t, httptest.NewRequest(http.MethodDelete, "/jobs/"+jobID, nil), "user-a")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil), "user-a")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExams_Endpoints(t *testing.T) {
	env := newTestEnv(t)
	env.submit(t, "user-a", samplePDF)
	require.NoError(t, env.upload.Process(context.Background(), env.scheduler.last(t)))

	list, err := env.repo.ListByOwner(context.Background(), "user-a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	examID := list[0].ID

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/exams/"+examID, nil), "user-a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"correct_answer"`)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/exams/"+examID, nil), "user-b")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/exams/"+examID+"/export", nil), "user-a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, w.Body.Bytes())

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/exams/"+examID+"/source", nil), "user-a")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodDelete, "/exams/"+examID, nil), "user-a")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/exams/"+examID, nil), "user-a")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuth_LogoutClearsCookieAndHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/auth/logout", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), middleware.AccessTokenCookie+"=;")

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/auth/me", nil), "user-a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-a"`)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_ReportsChecksAndStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := jobs.NewRegistry()

	h := handler.NewHealthHandler(registry,
		map[string]handler.HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
		map[string]handler.HealthStats{
			"postgres": func() any { return map[string]int{"total_conns": 3} },
		},
	)
	r := gin.New()
	r.GET("/healthz", h.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Checks      map[string]string         `json:"checks"`
		Stats       map[string]map[string]int `json:"stats"`
		WatchedJobs int                       `json:"watched_jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, 3, body.Stats["postgres"]["total_conns"])
	assert.Zero(t, body.WatchedJobs)
}

func TestHealth_FailingCheckIsUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handler.NewHealthHandler(jobs.NewRegistry(), map[string]handler.HealthCheck{
		"scylladb": func(context.Context) error { return assert.AnError },
	}, nil)
	r := gin.New()
	r.GET("/healthz", h.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), `"stats"`)
}
