package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry maps a document id to the set of sessions currently connected to
// it. Join, Leave and Broadcast on the same room are serialized by the room
// mutex; rooms are independent and proceed in parallel.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uint64]*room
}

type room struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uint64]*room)}
}

func (r *Registry) Join(docID uint64, s *Session) {
	r.mu.Lock()
	rm := r.rooms[docID]
	if rm == nil {
		rm = &room{sessions: make(map[*Session]struct{})}
		r.rooms[docID] = rm
	}
	rm.mu.Lock()
	rm.sessions[s] = struct{}{}
	rm.mu.Unlock()
	r.mu.Unlock()
}

// Leave removes the session from its room; an emptied room is dropped from
// the mapping immediately.
func (r *Registry) Leave(docID uint64, s *Session) {
	r.mu.Lock()
	rm := r.rooms[docID]
	if rm == nil {
		r.mu.Unlock()
		return
	}
	rm.mu.Lock()
	delete(rm.sessions, s)
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()
	if empty {
		delete(r.rooms, docID)
	}
	r.mu.Unlock()
}

// Broadcast delivers the message to every session in the room at the moment
// of the call, except the excluded one (nil excludes nobody). A session
// whose outbound buffer is full has the message dropped rather than block
// the whole room.
func (r *Registry) Broadcast(docID uint64, message any, exclude *Session) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Uint64("document_id", docID).Msg("broadcast marshal failed")
		return
	}

	r.mu.RLock()
	rm := r.rooms[docID]
	r.mu.RUnlock()
	if rm == nil {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for s := range rm.sessions {
		if s == exclude {
			continue
		}
		select {
		case s.send <- payload:
		default:
			log.Warn().
				Uint64("document_id", docID).
				Uint64("user_id", s.userID).
				Msg("session send buffer full, dropping broadcast")
		}
	}
}

// RoomSize reports the current number of sessions in a room.
func (r *Registry) RoomSize(docID uint64) int {
	r.mu.RLock()
	rm := r.rooms[docID]
	r.mu.RUnlock()
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.sessions)
}
