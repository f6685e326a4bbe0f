package review

import (
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var ErrSessionNotFound = errors.New("review session not found")

// Store keeps live review sessions in memory with a TTL. A session that
// expires before saving simply disappears; the batch was never durable.
type Store struct {
	cache *gocache.Cache
}

// NewStore creates a session store. Sessions expire ttl after their last
// Put; expired entries are swept every minute.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		cache: gocache.New(ttl, time.Minute),
	}
}

// Put stores or refreshes a session under its own ID.
func (s *Store) Put(session *Session) {
	s.cache.SetDefault(session.ID, session)
}

// Get returns the session for id, owned by userID. A session belonging
// to another user is reported as not found rather than as forbidden, so
// session ids cannot be probed across users.
func (s *Store) Get(id, userID string) (*Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	session := v.(*Session)
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a session immediately.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}
