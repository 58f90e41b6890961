package live

import (
	"sort"
	"sync"
)

// connBuffer is how many pending events a single connection may hold
// before further writes to it are dropped.
const connBuffer = 32

// Conn is one client connection to a board stream.
type Conn struct {
	UserID string
	ch     chan []byte
	closed bool
	mu     sync.Mutex
}

// Messages returns the channel the SSE handler drains. It is closed
// when the connection leaves the registry.
func (c *Conn) Messages() <-chan []byte {
	return c.ch
}

func (c *Conn) send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- payload:
	default:
		// Buffer full, drop. The client catches up on its next reload.
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Registry tracks which connections are watching which board.
type Registry struct {
	mu     sync.RWMutex
	boards map[string]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{boards: make(map[string]map[*Conn]struct{})}
}

// Join registers a new connection for the user on the board.
func (r *Registry) Join(boardID, userID string) *Conn {
	conn := &Conn{UserID: userID, ch: make(chan []byte, connBuffer)}
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.boards[boardID]
	if conns == nil {
		conns = make(map[*Conn]struct{})
		r.boards[boardID] = conns
	}
	conns[conn] = struct{}{}
	return conn
}

// Leave removes the connection and closes its channel.
func (r *Registry) Leave(boardID string, conn *Conn) {
	r.mu.Lock()
	conns := r.boards[boardID]
	delete(conns, conn)
	if len(conns) == 0 {
		delete(r.boards, boardID)
	}
	r.mu.Unlock()
	conn.close()
}

// BroadcastToBoard sends the payload to every connection on the board,
// skipping the excluded user when set.
func (r *Registry) BroadcastToBoard(boardID string, payload []byte, excludeUserID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for conn := range r.boards[boardID] {
		if excludeUserID != "" && conn.UserID == excludeUserID {
			continue
		}
		conn.send(payload)
	}
}

// BroadcastToUser sends the payload to every connection the user has
// open on the board.
func (r *Registry) BroadcastToUser(boardID, userID string, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for conn := range r.boards[boardID] {
		if conn.UserID == userID {
			conn.send(payload)
		}
	}
}

// ConnectedUsers returns the distinct users with at least one open
// connection to the board, sorted for stable output.
func (r *Registry) ConnectedUsers(boardID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	users := make([]string, 0)
	for conn := range r.boards[boardID] {
		if !seen[conn.UserID] {
			seen[conn.UserID] = true
			users = append(users, conn.UserID)
		}
	}
	sort.Strings(users)
	return users
}
