package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"collaborative-document-editor/internal/domain"
	"collaborative-document-editor/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle phase of a session. Authorizing always precedes
// Active; no state is skipped.
type State int32

const (
	StateConnecting State = iota
	StateAuthorizing
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is the transport surface the session needs. *websocket.Conn
// satisfies it; tests use an in-memory fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // 1MB
	sendBufferSize = 256
)

// Session is one live WebSocket connection to a document room. It is owned
// by the goroutine running Run and is destroyed when that returns; only the
// Registry may hold a reference to it in between.
type Session struct {
	engine   *Engine
	conn     Conn
	send     chan []byte
	docID    uint64
	userID   uint64
	username string

	state     atomic.Int32
	joined    atomic.Bool
	closeOnce sync.Once
}

func (e *Engine) NewSession(conn Conn, docID, userID uint64, username string) *Session {
	return &Session{
		engine:   e,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		docID:    docID,
		userID:   userID,
		username: username,
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run drives the session through its whole lifecycle and returns once the
// connection is closed and cleaned up.
func (s *Session) Run() {
	metrics.WsConnections.Inc()
	defer metrics.WsConnections.Dec()

	go s.writePump()
	defer s.shutdown()

	ctx := context.Background()

	s.setState(StateAuthorizing)
	if s.userID == 0 {
		log.Info().Uint64("document_id", s.docID).Msg("rejecting anonymous connection")
		return
	}
	if !s.engine.gate.Authorize(ctx, s.docID, s.userID, ActionConnect) {
		log.Info().
			Uint64("document_id", s.docID).
			Uint64("user_id", s.userID).
			Msg("connection denied by permission gate")
		return
	}

	if !s.activate(ctx) {
		return
	}

	s.setState(StateActive)
	s.readPump()
}

// activate performs room registration, the initial document_load, the
// user_joined fan-out and the join audit entry, in that order, before the
// first inbound frame is read. A failed load rolls the registration back so
// no partial state is left behind.
func (s *Session) activate(ctx context.Context) bool {
	s.engine.registry.Join(s.docID, s)
	s.joined.Store(true)

	if err := s.engine.presence.Connect(ctx, s.docID, s.userID); err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Uint64("user_id", s.userID).Msg("presence registration failed")
		s.rollbackActivation(ctx)
		return false
	}

	doc, err := s.engine.gateway.LoadDocument(ctx, s.docID)
	if err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Msg("document load failed, aborting connection")
		s.rollbackActivation(ctx)
		return false
	}

	active, err := s.engine.presence.Active(ctx, s.docID)
	if err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Msg("listing active users failed")
	}

	// the joiner is not part of its own active-user list
	others := make([]domain.ActiveUser, 0, len(active))
	for _, u := range active {
		if u.ID != s.userID {
			others = append(others, u)
		}
	}

	s.enqueueJSON(DocumentLoadMessage{
		Type:        TypeDocumentLoad,
		Content:     doc.Content,
		Title:       doc.Title,
		ActiveUsers: others,
	})

	s.engine.registry.Broadcast(s.docID, PresenceBroadcast{
		Type:     TypeUserJoined,
		Username: s.username,
		UserID:   s.userID,
	}, s)

	if err := s.engine.gateway.AppendActivity(ctx, s.docID, s.userID, domain.ActivityJoin, s.username+" joined the document"); err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Msg("join activity append failed")
	}

	return true
}

func (s *Session) rollbackActivation(ctx context.Context) {
	s.engine.registry.Leave(s.docID, s)
	if err := s.engine.presence.Disconnect(ctx, s.docID, s.userID); err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Uint64("user_id", s.userID).Msg("presence rollback failed")
	}
	s.joined.Store(false)
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.engine.router.Dispatch(context.Background(), s, data)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueueJSON queues a message for this session only.
func (s *Session) enqueueJSON(message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("session message marshal failed")
		return
	}
	select {
	case s.send <- payload:
	default:
		log.Warn().Uint64("user_id", s.userID).Msg("session send buffer full, dropping message")
	}
}

// shutdown runs the disconnect cleanup exactly once. Every step is
// best-effort: a failed presence delete or activity append never prevents
// the socket from being torn down.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		if s.joined.Load() {
			ctx := context.Background()
			s.engine.registry.Leave(s.docID, s)
			if err := s.engine.presence.Disconnect(ctx, s.docID, s.userID); err != nil {
				log.Error().Err(err).Uint64("document_id", s.docID).Uint64("user_id", s.userID).Msg("presence removal failed")
			}
			s.engine.registry.Broadcast(s.docID, PresenceBroadcast{
				Type:     TypeUserLeft,
				Username: s.username,
				UserID:   s.userID,
			}, nil)
			if err := s.engine.gateway.AppendActivity(ctx, s.docID, s.userID, domain.ActivityLeave, s.username+" left the document"); err != nil {
				log.Error().Err(err).Uint64("document_id", s.docID).Msg("leave activity append failed")
			}
		}
		// after Leave no broadcast can reach this session, so closing
		// the channel here cannot race an enqueue
		close(s.send)
		s.setState(StateClosed)
	})
}
