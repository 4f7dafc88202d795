package monitor

import "sync"

// HistorySize bounds how many emitted post ids are remembered per handle.
const HistorySize = 256

// State holds, per handle, the last-seen post id and the ids already emitted.
type State interface {
	LastSeen(handle string) (string, bool)
	Emitted(handle, postID string) bool
	// SetLastSeen records postID as both the last-seen and an emitted id.
	SetLastSeen(handle, postID string) error
}

// History is a bounded, insertion-ordered set of post ids. The oldest id is
// evicted once HistorySize is reached. It is not safe for concurrent use.
type History struct {
	ids []string
}

func NewHistory(ids []string) *History {
	h := &History{}
	for _, id := range ids {
		h.Add(id)
	}
	return h
}

func (h *History) Contains(id string) bool {
	for _, v := range h.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (h *History) Add(id string) {
	if id == "" || h.Contains(id) {
		return
	}
	if len(h.ids) >= HistorySize {
		h.ids = append(h.ids[:0], h.ids[len(h.ids)-HistorySize+1:]...)
	}
	h.ids = append(h.ids, id)
}

// IDs returns the ids oldest first.
func (h *History) IDs() []string {
	return append([]string(nil), h.ids...)
}

// MemoryState keeps last-seen ids in process memory; a restart forgets them.
type MemoryState struct {
	mu      sync.RWMutex
	seen    map[string]string
	emitted map[string]*History
}

func NewMemoryState() *MemoryState {
	return &MemoryState{seen: make(map[string]string), emitted: make(map[string]*History)}
}

func (s *MemoryState) LastSeen(handle string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[handle]
	return id, ok
}

func (s *MemoryState) Emitted(handle, postID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.emitted[handle]
	return ok && h.Contains(postID)
}

func (s *MemoryState) SetLastSeen(handle, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[handle] = postID
	h, ok := s.emitted[handle]
	if !ok {
		h = &History{}
		s.emitted[handle] = h
	}
	h.Add(postID)
	return nil
}
