package inmemory

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cinemasync/server/internal/repository/connection"
)

type connInfo struct {
	roomID string
	userID string
}

// repo maps websocket conns to room participants. Membership here means the
// participant completed join_room on this channel; it is the server-side
// counterpart of the client's JOINED phase.
type repo struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*websocket.Conn
	conns map[*websocket.Conn]connInfo
}

func NewRepo() *repo {
	return &repo{
		rooms: make(map[string]map[string]*websocket.Conn),
		conns: make(map[*websocket.Conn]connInfo),
	}
}

func (r *repo) Add(conn *websocket.Conn, roomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; ok {
		return connection.ErrAlreadyExists
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[string]*websocket.Conn)
		r.rooms[roomID] = room
	}

	// a rejoin on a fresh channel replaces the stale conn of the same user;
	// the stale conn is forgotten here and reaped when its read loop ends
	if old, ok := room[userID]; ok {
		delete(r.conns, old)
	}

	room[userID] = conn
	r.conns[conn] = connInfo{roomID: roomID, userID: userID}

	return nil
}

func (r *repo) RemoveByConn(conn *websocket.Conn) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.conns[conn]
	if !ok {
		return "", "", connection.ErrNotFound
	}

	delete(r.conns, conn)
	if room, ok := r.rooms[info.roomID]; ok {
		if room[info.userID] == conn {
			delete(room, info.userID)
		}
		if len(room) == 0 {
			delete(r.rooms, info.roomID)
		}
	}

	return info.roomID, info.userID, nil
}

func (r *repo) RemoveByUser(roomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return connection.ErrNotFound
	}

	conn, ok := room[userID]
	if !ok {
		return connection.ErrNotFound
	}

	delete(r.conns, conn)
	delete(room, userID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}

	return nil
}

func (r *repo) GetRoomConns(roomID string) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	conns := make([]*websocket.Conn, 0, len(room))
	for _, conn := range room {
		conns = append(conns, conn)
	}

	return conns
}
