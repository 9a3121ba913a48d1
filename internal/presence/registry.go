package presence

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OnlineUser is a currently connected chat user. Entries are keyed by
// username, not by connection, so multiple sessions for the same user
// collapse to one entry.
type OnlineUser struct {
	Username     string
	ConnId       string
	JoinedAt     time.Time
	LastActivity time.Time
}

// Registry is the source of truth for who is online. It is exclusively owned
// by the session gateway; all methods are safe for concurrent use.
type Registry struct {
	log   *zap.SugaredLogger
	mu    sync.Mutex
	users map[string]*OnlineUser
	now   func() time.Time
}

func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		log:   logger,
		users: make(map[string]*OnlineUser),
		now:   time.Now,
	}
}

// Register inserts or overwrites the entry for username. Last writer wins:
// a second session for the same username replaces the first one's entry.
func (r *Registry) Register(username, connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.users[username] = &OnlineUser{
		Username:     username,
		ConnId:       connId,
		JoinedAt:     now,
		LastActivity: now,
	}
}

// UnregisterByConn removes the entry owning connId and returns its username.
// Disconnects only deliver the connection handle, hence the linear scan.
func (r *Registry) UnregisterByConn(connId string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for username, u := range r.users {
		if u.ConnId == connId {
			delete(r.users, username)
			return username, true
		}
	}

	return "", false
}

// ListOnline returns a sorted snapshot of online usernames.
func (r *Registry) ListOnline() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	usernames := make([]string, 0, len(r.users))
	for username := range r.users {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	return usernames
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}

func (r *Registry) IsOnline(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.users[username]
	return ok
}

// Get returns a copy of the entry for username.
func (r *Registry) Get(username string) (OnlineUser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[username]
	if !ok {
		return OnlineUser{}, false
	}
	return *u, true
}

// Touch updates the last-activity timestamp for username. No-op if the user
// is not online.
func (r *Registry) Touch(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[username]; ok {
		u.LastActivity = r.now()
	}
}

// SweepIdle removes every entry whose last activity is older than threshold
// and returns the removed usernames. It is a safety net for connections that
// vanish without a clean close and is driven by a periodic timer, not by
// disconnect events.
func (r *Registry) SweepIdle(threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-threshold)

	var removed []string
	for username, u := range r.users {
		if u.LastActivity.Before(cutoff) {
			delete(r.users, username)
			removed = append(removed, username)
		}
	}

	if len(removed) > 0 {
		r.log.Infow("swept idle users", "users", removed)
	}

	return removed
}
