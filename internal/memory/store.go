package memory

import (
	"fmt"
	"sync"

	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
)

// Conversation roles stored in history.
const (
	RoleSystem = "system"
	RoleCaller = "user"
	RoleReply  = "assistant"
)

// Store is one session's conversational memory: a fact table with unique keys
// and a rolling sequence of caller/reply exchanges behind an always-present
// instruction preamble. It is pure data with no I/O. The turn processor is
// the only writer, but the monitoring API reads facts from other goroutines,
// so access is guarded by a lock. The store lives for the session's lifetime
// and is discarded with it.
type Store struct {
	mu           sync.RWMutex
	preamble     []provider.HistoryMessage
	history      []provider.HistoryMessage
	facts        map[string]string
	maxExchanges int
}

// NewStore creates a store whose history is capped at maxExchanges complete
// caller+reply pairs. The system preamble does not count against the cap and
// is never evicted.
func NewStore(systemPrompt string, maxExchanges int) (*Store, error) {
	if maxExchanges < 1 {
		return nil, fmt.Errorf("max_exchanges must be at least 1, got %d", maxExchanges)
	}

	s := &Store{
		facts:        make(map[string]string),
		maxExchanges: maxExchanges,
	}
	if systemPrompt != "" {
		s.preamble = []provider.HistoryMessage{{Role: RoleSystem, Text: systemPrompt}}
	}
	return s, nil
}

// Upsert sets a fact, last write wins.
func (s *Store) Upsert(key, value string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.facts[key] = value
	s.mu.Unlock()
}

// Fact returns one fact value.
func (s *Store) Fact(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.facts[key]
	return v, ok
}

// Facts returns a copy of the fact table.
func (s *Store) Facts() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.facts))
	for k, v := range s.facts {
		out[k] = v
	}
	return out
}

// AppendHistory records one turn. When the rolling cap is exceeded, the
// oldest complete exchange (one caller turn plus one reply turn) is evicted;
// a partial exchange is never split.
func (s *Store) AppendHistory(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, provider.HistoryMessage{Role: role, Text: text})

	for s.exchangeCount() > s.maxExchanges {
		s.evictOldestExchange()
	}
}

// exchangeCount counts complete caller+reply pairs from the front.
func (s *Store) exchangeCount() int {
	count := 0
	for i := 0; i+1 < len(s.history); i++ {
		if s.history[i].Role == RoleCaller && s.history[i+1].Role == RoleReply {
			count++
			i++
		}
	}
	return count
}

// evictOldestExchange drops the first caller turn and its paired reply.
func (s *Store) evictOldestExchange() {
	for i := 0; i+1 < len(s.history); i++ {
		if s.history[i].Role == RoleCaller && s.history[i+1].Role == RoleReply {
			s.history = append(s.history[:i], s.history[i+2:]...)
			return
		}
	}
}

// Messages returns the preamble plus rolling history, in order, as handed to
// the reply generator. The slice is a copy.
func (s *Store) Messages() []provider.HistoryMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]provider.HistoryMessage, 0, len(s.preamble)+len(s.history))
	out = append(out, s.preamble...)
	out = append(out, s.history...)
	return out
}

// HistoryLen returns the number of rolling (non-preamble) turns.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
