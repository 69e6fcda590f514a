package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/jobs"
	"github.com/idan157001/TestShuffleFinal/internal/middleware"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 512
	ackMessage     = "ack"
)

var errChannelClosed = errors.New("notification channel closed")

// wsChannel adapts a websocket connection to jobs.Channel. Writes are
// serialized and at most one terminal event is pushed per connection.
type wsChannel struct {
	conn *websocket.Conn

	mu     sync.Mutex
	sent   bool
	closed bool
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{conn: conn}
}

func (w *wsChannel) Send(_ context.Context, event string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errChannelClosed
	}
	if w.sent {
		return nil
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
		w.closed = true
		return err
	}
	w.sent = true
	return nil
}

// closeWith sends a close frame. Later sends fail with errChannelClosed.
func (w *wsChannel) closeWith(code int, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait),
	)
}

func (w *wsChannel) markClosed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

type WSHandler struct {
	jobs     *jobs.Manager
	registry *jobs.Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(manager *jobs.Manager, registry *jobs.Registry, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		jobs:     manager,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Serve upgrades the request and streams the job's terminal event. A client
// "ack" after completion deletes the job record; any other message is
// ignored.
func (h *WSHandler) Serve(c *gin.Context) {
	jobID := c.Param("job_id")
	userID := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	ch := newWSChannel(conn)

	if _, err := h.jobs.Authorize(ctx, jobID, userID); err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			ch.closeWith(websocket.ClosePolicyViolation, "job not found")
		case errors.Is(err, jobs.ErrForbidden):
			ch.closeWith(websocket.ClosePolicyViolation, "forbidden")
		default:
			h.logger.Error("websocket authorize failed", zap.String("job_id", jobID), zap.Error(err))
			ch.closeWith(websocket.CloseInternalServerErr, "internal error")
		}
		return
	}

	h.registry.Register(jobID, ch)
	defer h.registry.Release(jobID, ch)

	// the job may have finished before registration
	if rec, err := h.jobs.Get(ctx, jobID); err == nil && rec.Status.Terminal() {
		if err := ch.Send(ctx, string(rec.Status)); err != nil {
			h.logger.Debug("websocket send failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	h.readLoop(ctx, jobID, ch)
}

func (h *WSHandler) readLoop(ctx context.Context, jobID string, ch *wsChannel) {
	ch.conn.SetReadLimit(maxMessageSize)
	for {
		_, msg, err := ch.conn.ReadMessage()
		if err != nil {
			ch.markClosed()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket closed", zap.String("job_id", jobID), zap.Error(err))
			}
			return
		}

		if strings.TrimSpace(string(msg)) != ackMessage {
			continue
		}

		rec, err := h.jobs.Get(ctx, jobID)
		if err != nil || !rec.Status.Terminal() {
			continue
		}
		if err := h.jobs.Delete(ctx, jobID); err != nil {
			h.logger.Error("job ack failed", zap.String("job_id", jobID), zap.Error(err))
			ch.closeWith(websocket.CloseInternalServerErr, "internal error")
			return
		}
		ch.closeWith(websocket.CloseNormalClosure, "acknowledged")
		return
	}
}
