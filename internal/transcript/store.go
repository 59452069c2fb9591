// Package transcript persists conversation turns for the chat server.
//
// DESIGN: The gateway core never touches persistence; this package serves
// the HTTP layer, which records each prompt when it arrives and fills in
// the response after the generation stream has fully drained. History is
// always returned oldest first, ready to hand back to the gateway.
//
// Two implementations: SQLite for real deployments, an in-memory TTL store
// for development and tests.
package transcript

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is one prompt/response pair of a conversation.
type Entry struct {
	ID        string    `json:"id"`
	BotID     string    `json:"bot_id"`
	UserID    string    `json:"user_id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"` // empty until generation completes
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversation turns.
type Store interface {
	// SavePrompt records a new prompt with an empty response.
	SavePrompt(ctx context.Context, e Entry) error

	// SaveResponse fills in the response for a previously saved prompt.
	SaveResponse(ctx context.Context, id, response string) error

	// History returns all entries for a bot/user pair, oldest first.
	History(ctx context.Context, botID, userID string) ([]Entry, error)

	// Close releases resources.
	Close() error
}

// MemoryStore is an in-memory Store with per-entry TTL. Suitable for
// development and tests; entries vanish on restart and after expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	ttl      time.Duration
	stopChan chan struct{}
	stopped  bool
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[string]memoryEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	go s.cleanup()

	return s
}

// SavePrompt records a new prompt.
func (s *MemoryStore) SavePrompt(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.entries[e.ID] = memoryEntry{
		entry:     e,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// SaveResponse fills in the response for a saved prompt. Unknown or expired
// IDs are ignored.
func (s *MemoryStore) SaveResponse(ctx context.Context, id, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.entries[id]
	if !ok || time.Now().After(me.expiresAt) {
		return nil
	}

	me.entry.Response = response
	s.entries[id] = me
	return nil
}

// History returns unexpired entries for the bot/user pair, oldest first.
func (s *MemoryStore) History(ctx context.Context, botID, userID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []Entry
	for _, me := range s.entries {
		if me.entry.BotID != botID || me.entry.UserID != userID {
			continue
		}
		if now.After(me.expiresAt) {
			continue
		}
		out = append(out, me.entry)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Close stops the cleanup goroutine and clears data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
		s.entries = nil
	}
	return nil
}

// cleanup periodically removes expired entries.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.stopped {
				now := time.Now()
				for id, me := range s.entries {
					if now.After(me.expiresAt) {
						delete(s.entries, id)
					}
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ Store = (*MemoryStore)(nil)
