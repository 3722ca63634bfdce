package registry

import (
	"hash/fnv"
	"strings"
	"sync"
)

const shardCount = 32

// Observer is notified when a session becomes active or inactive.
// Callbacks run with the session's shard locked and must not block.
type Observer interface {
	SessionStarted(sessionID string)
	SessionEnded(sessionID string)
}

type shard struct {
	mu     sync.RWMutex
	counts map[string]int
}

// Registry tracks how many surface attachments each session currently has.
// Session ids are compared case-insensitively.
type Registry struct {
	shards    [shardCount]*shard
	observers []Observer
}

// New creates an empty registry.
func New(observers ...Observer) *Registry {
	r := &Registry{observers: observers}
	for i := range r.shards {
		r.shards[i] = &shard{counts: make(map[string]int)}
	}
	return r
}

func normalize(sessionID string) string {
	return strings.ToLower(sessionID)
}

func (r *Registry) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return r.shards[h.Sum32()%shardCount]
}

// Register increments the attachment count for sessionID.
func (r *Registry) Register(sessionID string) {
	key := normalize(sessionID)
	s := r.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[key]++
	if s.counts[key] == 1 {
		for _, o := range r.observers {
			o.SessionStarted(key)
		}
	}
}

// Unregister decrements the attachment count for sessionID. The entry is
// removed once the count reaches zero. Unknown ids are ignored.
func (r *Registry) Unregister(sessionID string) {
	key := normalize(sessionID)
	s := r.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	count, ok := s.counts[key]
	if !ok {
		return
	}
	if count > 1 {
		s.counts[key] = count - 1
		return
	}

	delete(s.counts, key)
	for _, o := range r.observers {
		o.SessionEnded(key)
	}
}

// IsActive reports whether sessionID has at least one attachment.
func (r *Registry) IsActive(sessionID string) bool {
	return r.Count(sessionID) > 0
}

// Count returns the current attachment count for sessionID.
func (r *Registry) Count(sessionID string) int {
	key := normalize(sessionID)
	s := r.shardFor(key)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[key]
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.counts)
		s.mu.RUnlock()
	}
	return n
}
