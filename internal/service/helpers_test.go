package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/idan157001/TestShuffleFinal/internal/exams"
	"github.com/idan157001/TestShuffleFinal/internal/jobs"
	"github.com/idan157001/TestShuffleFinal/internal/types"
)

var samplePDF = []byte("%PDF-1.4\n% exam body\n")

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	data  *exams.ExamData
	err   error
	block bool
}

func (f *fakeExtractor) Extract(ctx context.Context, _ []byte) (*exams.ExamData, error) {
	f.mu.Lock()
	f.calls++
	block, data, err := f.block, f.data, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return data, err
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type captureScheduler struct {
	mu    sync.Mutex
	tasks []types.ExtractionTask
	err   error
}

func (s *captureScheduler) Schedule(_ context.Context, task types.ExtractionTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, task)
	return nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, objectName string, content []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	b.objects[objectName] = append([]byte(nil), content...)
	return nil
}

func (b *memBlobs) Get(_ context.Context, objectName string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (b *memBlobs) GetDownloadUrl(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://minio.local/exams/" + objectName, nil
}

type recordingChannel struct {
	mu     sync.Mutex
	events []string
}

func (c *recordingChannel) Send(_ context.Context, event string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordingChannel) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

type harness struct {
	upload    *Upload
	exams     *Exams
	repo      *exams.GormRepository
	manager   *jobs.Manager
	registry  *jobs.Registry
	extractor *fakeExtractor
	scheduler *captureScheduler
	blobs     *memBlobs
}

func biologyExam() *exams.ExamData {
	return &exams.ExamData{
		TestData: exams.TestMeta{Description: "Biology Midterm | 01/05/2024", Time: "2 Hours"},
		Questions: []exams.Question{
			{
				Number:        1,
				Text:          "Which organelle produces ATP?",
				Answers:       []exams.Answer{{Text: "Ribosome"}, {Text: "Mitochondria"}},
				CorrectAnswer: &exams.Answer{Text: "Mitochondria"},
			},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

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
	extractor := &fakeExtractor{data: biologyExam()}
	scheduler := &captureScheduler{}
	blobs := newMemBlobs()

	upload := NewUpload(manager, repo, extractor, scheduler, blobs, UploadConfig{
		MaxFileSize:       10 << 20,
		MaxExams:          6,
		ExtractionTimeout: time.Minute,
	}, log)

	seq := 0
	upload.newID = func() string {
		seq++
		return fmt.Sprintf("job-%d", seq)
	}

	return &harness{
		upload:    upload,
		exams:     NewExams(repo, blobs, log),
		repo:      repo,
		manager:   manager,
		registry:  registry,
		extractor: extractor,
		scheduler: scheduler,
		blobs:     blobs,
	}
}

// seedExam stores an exam directly, bypassing extraction.
func (h *harness) seedExam(t *testing.T, userID string, content []byte) string {
	t.Helper()
	id, err := h.repo.Create(context.Background(), exams.NewExam{
		Owner:    exams.Owner{UserID: userID, Email: userID + "@example.com"},
		FileHash: Fingerprint(content),
		Name:     "Biology Midterm | 01/05/2024",
		Data:     *biologyExam(),
	})
	require.NoError(t, err)
	return id
}

func pdfRequest(userID string, content []byte) SubmitRequest {
	return SubmitRequest{
		User:        exams.Owner{UserID: userID, Email: userID + "@example.com"},
		FileName:    "exam.pdf",
		ContentType: "application/pdf",
		Content:     content,
	}
}
