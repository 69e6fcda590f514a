package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingChannel struct {
	mu     sync.Mutex
	events []string
	closed bool
}

func (c *recordingChannel) Send(_ context.Context, event string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("use of closed connection")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *recordingChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingChannel) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

type failingStore struct {
	*MemoryStore
	err error
}

func (s *failingStore) Set(context.Context, Record) error { return s.err }

func newTestManager(t *testing.T) (*Manager, *Registry, *MemoryStore) {
	store := NewMemoryStore()
	registry := NewRegistry()
	return NewManager(store, registry, zaptest.NewLogger(t)), registry, store
}

func TestManager_CreateThenComplete(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "job-1", "user-a"))

	rec, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Equal(t, "user-a", rec.UserID)
	assert.Nil(t, rec.Result)
	assert.Empty(t, rec.Error)

	require.NoError(t, m.Complete(ctx, "job-1", "user-a", Result{ExamID: "exam-1", ExamName: "Biology Midterm | 01/05/2024"}))

	rec, err = m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, rec.Status)
	assert.True(t, rec.Status.Terminal())
	require.NotNil(t, rec.Result)
	assert.Equal(t, "exam-1", rec.Result.ExamID)
	assert.Equal(t, "Biology Midterm | 01/05/2024", rec.Result.ExamName)
	assert.Empty(t, rec.Error)
}

func TestManager_CreateThenFail(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "job-2", "user-a"))
	require.NoError(t, m.Fail(ctx, "job-2", "user-a", "content extraction failed"))

	rec, err := m.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, "content extraction failed", rec.Error)
	assert.Nil(t, rec.Result)
}

func TestManager_TerminalRecordsAreExclusive(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		finish func(m *Manager, jobID string) error
	}{
		{"complete", func(m *Manager, id string) error { return m.Complete(ctx, id, "u", Result{ExamID: "e"}) }},
		{"fail", func(m *Manager, id string) error { return m.Fail(ctx, id, "u", "boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestManager(t)
			require.NoError(t, m.Create(ctx, "job", "u"))
			require.NoError(t, tt.finish(m, "job"))

			rec, err := m.Get(ctx, "job")
			require.NoError(t, err)
			assert.True(t, rec.Status.Terminal())
			assert.False(t, rec.Result != nil && rec.Error != "", "result and error must not both be set")
		})
	}
}

func TestManager_DeleteThenGetIsNotFound(t *testing.T) {
	ctx := context.Background()
	for _, status := range []Status{StatusProcessing, StatusDone, StatusError} {
		t.Run(string(status), func(t *testing.T) {
			m, _, _ := newTestManager(t)
			require.NoError(t, m.Create(ctx, "job", "u"))
			switch status {
			case StatusDone:
				require.NoError(t, m.Complete(ctx, "job", "u", Result{ExamID: "e"}))
			case StatusError:
				require.NoError(t, m.Fail(ctx, "job", "u", "boom"))
			}

			require.NoError(t, m.Delete(ctx, "job"))
			_, err := m.Get(ctx, "job")
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting twice is harmless
			assert.NoError(t, m.Delete(ctx, "job"))
		})
	}
}

func TestManager_Authorize(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, "job", "owner"))

	rec, err := m.Authorize(ctx, "job", "owner")
	require.NoError(t, err)
	assert.Equal(t, "job", rec.JobID)

	_, err = m.Authorize(ctx, "job", "intruder")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = m.Authorize(ctx, "missing", "owner")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_CompleteNotifiesRegisteredChannelOnce(t *testing.T) {
	m, registry, _ := newTestManager(t)
	ctx := context.Background()
	ch := &recordingChannel{}

	require.NoError(t, m.Create(ctx, "job", "u"))
	registry.Register("job", ch)

	require.NoError(t, m.Complete(ctx, "job", "u", Result{ExamID: "e"}))
	assert.Equal(t, []string{"done"}, ch.Events())
}

func TestManager_FailNotifiesError(t *testing.T) {
	m, registry, _ := newTestManager(t)
	ctx := context.Background()
	ch := &recordingChannel{}
	registry.Register("job", ch)

	require.NoError(t, m.Create(ctx, "job", "u"))
	require.NoError(t, m.Fail(ctx, "job", "u", "not an exam"))

	assert.Equal(t, []string{"error"}, ch.Events())
}

func TestManager_SecondCompleteOnClosedChannelDoesNotPanic(t *testing.T) {
	m, registry, _ := newTestManager(t)
	ctx := context.Background()
	ch := &recordingChannel{}
	registry.Register("job", ch)

	require.NoError(t, m.Create(ctx, "job", "u"))
	require.NoError(t, m.Complete(ctx, "job", "u", Result{ExamID: "e"}))
	ch.Close()

	assert.NotPanics(t, func() {
		require.NoError(t, m.Complete(ctx, "job", "u", Result{ExamID: "e"}))
	})
	assert.Equal(t, []string{"done"}, ch.Events())

	rec, err := m.Get(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, rec.Status)
}

func TestManager_CompleteWithoutChannel(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "job", "u"))
	assert.NoError(t, m.Complete(ctx, "job", "u", Result{ExamID: "e"}))
}

func TestManager_StoreFailurePropagatesWithoutNotification(t *testing.T) {
	storeErr := errors.New("store unavailable")
	registry := NewRegistry()
	m := NewManager(&failingStore{MemoryStore: NewMemoryStore(), err: storeErr}, registry, zaptest.NewLogger(t))
	ctx := context.Background()
	ch := &recordingChannel{}
	registry.Register("job", ch)

	assert.ErrorIs(t, m.Create(ctx, "job", "u"), storeErr)
	assert.ErrorIs(t, m.Complete(ctx, "job", "u", Result{ExamID: "e"}), storeErr)
	assert.ErrorIs(t, m.Fail(ctx, "job", "u", "boom"), storeErr)
	assert.Empty(t, ch.Events())
}
