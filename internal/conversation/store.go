package conversation

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/leafscan/internal/logger"
)

// DefaultTTL applies when a store is created with a non-positive ttl.
const DefaultTTL = 30 * time.Minute

// Store keeps sessions in memory. Idle sessions expire after the ttl; each
// Get extends the lifetime.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewStore creates a session store.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, v any) {
		if s, ok := v.(*Session); ok {
			GetLogger().Debug("session expired",
				logger.String("session_id", id),
				logger.String("user", s.User))
		}
	})
	return &Store{cache: c, ttl: ttl}
}

// Create starts and stores a new session.
func (s *Store) Create(user, language string) *Session {
	sess := NewSession(user, language)
	s.cache.Set(sess.ID, sess, s.ttl)
	GetLogger().Debug("session created",
		logger.String("session_id", sess.ID),
		logger.String("language", language))
	return sess
}

// Get returns the session with id and refreshes its expiry.
func (s *Store) Get(id string) (*Session, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*Session)
	if !ok {
		return nil, false
	}
	s.cache.Set(id, sess, s.ttl)
	return sess, true
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Flush drops every session.
func (s *Store) Flush() {
	s.cache.Flush()
}
