package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openquiz/quizroom/internal/room"
)

// Handler runs the command loop for one WebSocket connection. All outbound
// frames, direct replies and room broadcasts alike, flow through the
// connection's outbox so a single goroutine ever writes to the socket.
type Handler struct {
	registry     *room.Registry
	logger       *zap.Logger
	outboxSize   int
	writeTimeout time.Duration
}

// NewHandler creates a connection handler over the given registry.
//
// Precondition: registry and logger must be non-nil; outboxSize must be >= 1.
func NewHandler(registry *room.Registry, logger *zap.Logger, outboxSize int, writeTimeout time.Duration) *Handler {
	return &Handler{
		registry:     registry,
		logger:       logger,
		outboxSize:   outboxSize,
		writeTimeout: writeTimeout,
	}
}

// HandleConnection serves one client connection bound to the room addressed
// by code. It subscribes the connection to the room before any join, reads
// command frames until the socket or ctx closes, and on exit marks the
// joined player offline and detaches the outbox.
//
// Postcondition: The connection, its outbox, and its subscription are
// released when this method returns.
func (h *Handler) HandleConnection(ctx context.Context, conn *websocket.Conn, code string) error {
	sess := h.registry.GetOrCreate(code)
	logger := h.logger.With(
		zap.String("room", sess.Code()),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)

	if err := sess.EnsureQuiz(ctx); err != nil {
		logger.Error("ensuring quiz", zap.Error(err))
		conn.Close()
		return err
	}

	ob := room.NewOutbox(conn.RemoteAddr().String(), h.outboxSize)
	sess.Subscribe(ob)

	writeDone := make(chan struct{})
	go h.writeLoop(conn, ob, logger, writeDone)

	// Unblock the read loop on shutdown.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-readCtx.Done()
		conn.Close()
	}()

	username := h.readLoop(ctx, conn, sess, ob, logger)

	if username != "" {
		sess.Leave(username)
	}
	sess.Unsubscribe(ob)
	ob.Close()
	<-writeDone
	conn.Close()

	logger.Info("connection closed", zap.String("username", username))
	return nil
}

// readLoop consumes command frames until the connection drops. It returns
// the username the connection joined as, or "" if it never joined.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sess *room.Session, ob *room.Outbox, logger *zap.Logger) string {
	var username string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("read failed", zap.Error(err))
			}
			return username
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.replyError(ob, logger, "invalid message: not a JSON command")
			continue
		}

		switch cmd.Action {
		case ActionJoin:
			p, _, err := sess.Join(cmd.Username)
			if err != nil {
				h.replySessionError(ob, logger, err)
				continue
			}
			username = p.Username

		case ActionStart:
			if username == "" {
				h.replyError(ob, logger, "join a room before starting the quiz")
				continue
			}
			if _, err := sess.Start(ctx, username); err != nil {
				h.replySessionError(ob, logger, err)
			}

		case ActionAnswer:
			if username == "" {
				h.replyError(ob, logger, "join a room before answering")
				continue
			}
			res, err := sess.SubmitAnswer(ctx, username, cmd.QuestionID, cmd.AnswerID)
			if err != nil {
				h.replySessionError(ob, logger, err)
				continue
			}
			data, err := encodeAnswerResult(res)
			if err != nil {
				logger.Error("encoding answer result", zap.Error(err))
				continue
			}
			h.reply(ob, logger, data)

		default:
			h.replyError(ob, logger, fmt.Sprintf("unknown action %q", cmd.Action))
		}
	}
}

// replySessionError maps a session error to a wire error frame. Expected
// rule violations pass their message through; anything else is masked and
// logged.
func (h *Handler) replySessionError(ob *room.Outbox, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, room.ErrEmptyUsername),
		errors.Is(err, room.ErrAlreadyStarted),
		errors.Is(err, room.ErrNotMember):
		h.replyError(ob, logger, err.Error())
	default:
		logger.Error("command failed", zap.Error(err))
		h.replyError(ob, logger, "internal error")
	}
}

// replyError sends an error frame to this connection only.
func (h *Handler) replyError(ob *room.Outbox, logger *zap.Logger, message string) {
	data, err := encodeError(message)
	if err != nil {
		logger.Error("encoding error reply", zap.Error(err))
		return
	}
	h.reply(ob, logger, data)
}

// reply pushes a direct frame onto the connection's own outbox.
func (h *Handler) reply(ob *room.Outbox, logger *zap.Logger, data []byte) {
	if err := ob.Push(data); err != nil {
		logger.Warn("dropping reply", zap.Error(err))
	}
}

// writeLoop drains the outbox onto the socket. It exits when the outbox is
// closed or a write fails; a failed write closes the connection, which in
// turn ends the read loop.
func (h *Handler) writeLoop(conn *websocket.Conn, ob *room.Outbox, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)
	for data := range ob.Events() {
		if h.writeTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Warn("write failed", zap.Error(err))
			conn.Close()
			return
		}
	}
}
