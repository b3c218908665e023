package room

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openquiz/quizroom/internal/content"
)

// NormalizeCode canonicalizes a room code: trimmed and uppercased. Clients
// uppercase by convention; the server enforces it so "abcd" and "ABCD"
// address the same room.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Registry is the single point of entry to live room sessions. It guarantees
// exactly one Session per room code for the process lifetime, even under
// concurrent first-joins. Rooms are created lazily and never evicted;
// they are reclaimed only at process shutdown.
type Registry struct {
	store  content.Store
	logger *zap.Logger

	mu    sync.Mutex
	rooms map[string]*Session
}

// NewRegistry creates an empty Registry.
//
// Precondition: store and logger must be non-nil.
func NewRegistry(store content.Store, logger *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
		rooms:  make(map[string]*Session),
	}
}

// GetOrCreate returns the Session for code, creating it on first reference.
// The code is normalized before lookup. The check-then-create race is closed
// by the registry mutex.
//
// Postcondition: Returns the unique Session for the normalized code.
func (r *Registry) GetOrCreate(code string) *Session {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.rooms[code]; ok {
		return sess
	}
	sess := NewSession(code, r.store, r.logger)
	r.rooms[code] = sess
	r.logger.Info("room created", zap.String("room", code))
	return sess
}

// Get returns the Session for code without creating one.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(code string) (*Session, bool) {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.rooms[code]
	return sess, ok
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
