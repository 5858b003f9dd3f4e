package queue

import (
	"sync"

	"quidque.com/discord-jukebox/internal/logger"
)

// Registry maps guild IDs to their sessions.
type Registry struct {
	opts     Options
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// SetHooks replaces the hooks handed to sessions created from now on.
func (r *Registry) SetHooks(hooks Hooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.Hooks = hooks
}

// GetOrCreate returns the guild's session. A destroyed session still
// registered is replaced by a fresh one.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok && !s.Destroyed() {
		return s
	}

	s := NewSession(guildID, r.opts)
	r.sessions[guildID] = s
	logger.InfoLogger.Printf("Created session for guild %s", guildID)
	return s
}

func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[guildID]
	return s, ok
}

func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, guildID)
}

// Release removes s, unless its guild already has a newer session.
func (r *Registry) Release(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[s.GuildID()] != s {
		return false
	}
	delete(r.sessions, s.GuildID())
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Each calls fn for a snapshot of the current sessions.
func (r *Registry) Each(fn func(s *Session)) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		fn(s)
	}
}
