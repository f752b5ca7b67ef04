package job

import (
	"hash/fnv"
	"sync"
)

// ErrorSink collects non-fatal errors encountered during a Job Context's
// lifetime, deduplicating by hashed message so a failure repeated across
// many frames or variants doesn't bloat diagnostics (spec §7: "the error
// sink deduplicates by hashed message"). This generalizes the teacher's
// per-step error return (core.Processor never accumulates errors across
// steps, it returns on first failure) to imageflow's batched
// encode-many-variants model, where one bad node shouldn't hide reports
// from the others.
type ErrorSink struct {
	mu      sync.Mutex
	seen    map[uint64]int
	entries []Entry
}

// Entry is one deduplicated record in the sink.
type Entry struct {
	Message string
	Count   int
}

func newErrorSink() *ErrorSink {
	return &ErrorSink{seen: make(map[uint64]int)}
}

// Record adds err's message to the sink, bumping the count of an existing
// entry instead of appending a duplicate if the same message was already
// recorded.
func (s *ErrorSink) Record(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	h := fnv.New64a()
	_, _ = h.Write([]byte(msg))
	key := h.Sum64()

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.seen[key]; ok {
		s.entries[idx].Count++
		return
	}
	s.seen[key] = len(s.entries)
	s.entries = append(s.entries, Entry{Message: msg, Count: 1})
}

// Entries returns a snapshot of the deduplicated error records.
func (s *ErrorSink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
