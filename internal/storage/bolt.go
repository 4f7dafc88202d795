package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/DivM11/social-fact-checker/internal/monitor"
)

var (
	bucketLastSeen = []byte("last_seen")
	bucketEmitted  = []byte("emitted")
)

// BoltState persists last-seen post ids and the emitted-id history per
// handle. Reads are served from an in-memory copy loaded at open; writes
// update memory first, then disk. History values are newline-joined ids.
type BoltState struct {
	db *bolt.DB

	mu      sync.RWMutex
	seen    map[string]string
	emitted map[string]*monitor.History
}

var _ monitor.State = (*BoltState)(nil)

// OpenBoltState opens (or creates) the database at the given path.
func OpenBoltState(path string) (*BoltState, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	s := &BoltState{db: db, seen: make(map[string]string), emitted: make(map[string]*monitor.History)}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketLastSeen)
		if err != nil {
			return err
		}
		if err := b.ForEach(func(k, v []byte) error {
			s.seen[string(k)] = string(v)
			return nil
		}); err != nil {
			return err
		}
		eb, err := tx.CreateBucketIfNotExists(bucketEmitted)
		if err != nil {
			return err
		}
		return eb.ForEach(func(k, v []byte) error {
			s.emitted[string(k)] = monitor.NewHistory(strings.Split(string(v), "\n"))
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load state db: %w", err)
	}
	return s, nil
}

// Close releases the underlying DB handle.
func (s *BoltState) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltState) LastSeen(handle string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[handle]
	return id, ok
}

func (s *BoltState) Emitted(handle, postID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.emitted[handle]
	return ok && h.Contains(postID)
}

func (s *BoltState) SetLastSeen(handle, postID string) error {
	s.mu.Lock()
	s.seen[handle] = postID
	h, ok := s.emitted[handle]
	if !ok {
		h = monitor.NewHistory(nil)
		s.emitted[handle] = h
	}
	h.Add(postID)
	history := strings.Join(h.IDs(), "\n")
	s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketLastSeen).Put([]byte(handle), []byte(postID)); err != nil {
			return err
		}
		return tx.Bucket(bucketEmitted).Put([]byte(handle), []byte(history))
	})
}
