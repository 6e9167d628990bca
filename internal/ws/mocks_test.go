package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"collaborative-document-editor/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a testify mock of the persistence gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) LoadDocument(ctx context.Context, id uint64) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockGateway) SaveDocumentContent(ctx context.Context, id uint64, content json.RawMessage) (bool, error) {
	args := m.Called(ctx, id, content)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) AppendVersion(ctx context.Context, docID uint64, previousContent json.RawMessage, authorID uint64) (int, error) {
	args := m.Called(ctx, docID, previousContent, authorID)
	return args.Int(0), args.Error(1)
}

func (m *MockGateway) UpsertPresence(ctx context.Context, docID, userID uint64, cursor, selStart, selEnd int) error {
	args := m.Called(ctx, docID, userID, cursor, selStart, selEnd)
	return args.Error(0)
}

func (m *MockGateway) DeletePresence(ctx context.Context, docID, userID uint64) error {
	args := m.Called(ctx, docID, userID)
	return args.Error(0)
}

func (m *MockGateway) ListActivePresence(ctx context.Context, docID uint64) ([]domain.ActiveUser, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActiveUser), args.Error(1)
}

func (m *MockGateway) InsertComment(ctx context.Context, docID, userID uint64, content string, position int) error {
	args := m.Called(ctx, docID, userID, content, position)
	return args.Error(0)
}

func (m *MockGateway) AppendActivity(ctx context.Context, docID, userID uint64, activityType domain.ActivityType, description string) error {
	args := m.Called(ctx, docID, userID, activityType, description)
	return args.Error(0)
}

func (m *MockGateway) CheckGrant(ctx context.Context, docID, userID uint64) (domain.Role, error) {
	args := m.Called(ctx, docID, userID)
	return args.Get(0).(domain.Role), args.Error(1)
}

// memGateway is a stateful in-memory gateway for end-to-end session tests.
type memGateway struct {
	mu sync.Mutex

	docID    uint64
	title    string
	content  json.RawMessage
	ownerID  uint64
	isPublic bool

	usernames map[uint64]string
	grants    map[uint64]domain.Role
	presence  map[uint64]domain.UserPresence
	versions  []domain.DocumentVersion
	comments  []domain.DocumentComment
	activity  []domain.DocumentActivity

	failSave bool
	loadErr  error
}

func newMemGateway(docID uint64, title, content string, ownerID uint64) *memGateway {
	return &memGateway{
		docID:     docID,
		title:     title,
		content:   json.RawMessage(content),
		ownerID:   ownerID,
		usernames: make(map[uint64]string),
		grants:    make(map[uint64]domain.Role),
		presence:  make(map[uint64]domain.UserPresence),
	}
}

func (g *memGateway) LoadDocument(ctx context.Context, id uint64) (*domain.Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	if id != g.docID {
		return nil, errors.New("document not found")
	}
	return &domain.Document{
		ID:       g.docID,
		Title:    g.title,
		Content:  append(json.RawMessage(nil), g.content...),
		OwnerID:  g.ownerID,
		IsPublic: g.isPublic,
	}, nil
}

func (g *memGateway) SaveDocumentContent(ctx context.Context, id uint64, content json.RawMessage) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSave {
		return false, errors.New("storage unavailable")
	}
	if string(g.content) == string(content) {
		return false, nil
	}
	g.content = append(json.RawMessage(nil), content...)
	return true, nil
}

func (g *memGateway) AppendVersion(ctx context.Context, docID uint64, previousContent json.RawMessage, authorID uint64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	number := len(g.versions) + 1
	g.versions = append(g.versions, domain.DocumentVersion{
		DocumentID:    docID,
		Content:       append(json.RawMessage(nil), previousContent...),
		AuthorID:      authorID,
		VersionNumber: number,
	})
	return number, nil
}

func (g *memGateway) UpsertPresence(ctx context.Context, docID, userID uint64, cursor, selStart, selEnd int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presence[userID] = domain.UserPresence{
		DocumentID:     docID,
		UserID:         userID,
		CursorPosition: cursor,
		SelectionStart: selStart,
		SelectionEnd:   selEnd,
		IsOnline:       true,
		LastSeen:       time.Now().UTC(),
	}
	return nil
}

func (g *memGateway) DeletePresence(ctx context.Context, docID, userID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.presence, userID)
	return nil
}

func (g *memGateway) ListActivePresence(ctx context.Context, docID uint64) ([]domain.ActiveUser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]uint64, 0, len(g.presence))
	for id := range g.presence {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	users := make([]domain.ActiveUser, 0, len(ids))
	for _, id := range ids {
		p := g.presence[id]
		name := g.usernames[id]
		if name == "" {
			name = fmt.Sprintf("user-%d", id)
		}
		users = append(users, domain.ActiveUser{
			ID:             id,
			Username:       name,
			CursorPosition: p.CursorPosition,
			LastSeen:       p.LastSeen,
		})
	}
	return users, nil
}

func (g *memGateway) InsertComment(ctx context.Context, docID, userID uint64, content string, position int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.comments = append(g.comments, domain.DocumentComment{
		DocumentID: docID,
		UserID:     userID,
		Content:    content,
		Position:   position,
	})
	return nil
}

func (g *memGateway) AppendActivity(ctx context.Context, docID, userID uint64, activityType domain.ActivityType, description string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activity = append(g.activity, domain.DocumentActivity{
		DocumentID:   docID,
		UserID:       userID,
		ActivityType: activityType,
		Description:  description,
	})
	return nil
}

func (g *memGateway) CheckGrant(ctx context.Context, docID, userID uint64) (domain.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	role, ok := g.grants[userID]
	if !ok {
		return domain.RoleNone, nil
	}
	return role, nil
}

func (g *memGateway) presenceCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.presence)
}

func (g *memGateway) currentContent() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return string(g.content)
}

func (g *memGateway) versionContents() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.versions))
	for _, v := range g.versions {
		out = append(out, string(v.Content))
	}
	return out
}

func (g *memGateway) activityTypes() []domain.ActivityType {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.ActivityType, 0, len(g.activity))
	for _, a := range g.activity {
		out = append(out, a.ActivityType)
	}
	return out
}

func (g *memGateway) setFailSave(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failSave = fail
}

// fakeConn is an in-memory transport. Tests feed inbound frames through
// frames and observe outbound text frames on writes; closing frames
// simulates a client disconnect.
type fakeConn struct {
	frames chan []byte
	writes chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		writes: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.frames:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, data, nil
	case <-c.done:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	if messageType == websocket.TextMessage {
		c.writes <- append([]byte(nil), data...)
	}
	return nil
}

func (c *fakeConn) SetReadLimit(int64) {}

func (c *fakeConn) SetReadDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *fakeConn) disconnect() {
	close(c.frames)
}
