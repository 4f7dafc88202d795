package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DivM11/social-fact-checker/internal/metrics"
	"github.com/DivM11/social-fact-checker/internal/threads"
)

const (
	DefaultPageSize    = 5
	DefaultHandleDelay = time.Second
)

// NewPost is a post seen for the first time on a handle.
type NewPost struct {
	Handle string
	PostID string
	Text   string
}

// Poller produces the new posts of one poll.
type Poller interface {
	Poll(ctx context.Context) ([]NewPost, error)
}

// Monitor polls each handle in turn and diffs its latest post against State.
type Monitor struct {
	api      threads.API
	state    State
	handles  []string
	pageSize int
	delay    time.Duration
	log      logrus.FieldLogger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithPageSize sets how many recent posts are fetched per handle.
func WithPageSize(n int) Option {
	return func(m *Monitor) { m.pageSize = n }
}

// WithHandleDelay sets the pause between two handles of the same poll.
func WithHandleDelay(d time.Duration) Option {
	return func(m *Monitor) { m.delay = d }
}

// WithState replaces the default in-memory state.
func WithState(s State) Option {
	return func(m *Monitor) { m.state = s }
}

var _ Poller = (*Monitor)(nil)

// New constructs a Monitor. If log is nil, the logrus standard logger is used.
func New(api threads.API, handles []string, log logrus.FieldLogger, opts ...Option) *Monitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Monitor{
		api:      api,
		state:    NewMemoryState(),
		handles:  append([]string(nil), handles...),
		pageSize: DefaultPageSize,
		delay:    DefaultHandleDelay,
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Poll checks every handle once. Failures are isolated per handle; the
// returned error is non-nil only when every handle failed.
func (m *Monitor) Poll(ctx context.Context) ([]NewPost, error) {
	var (
		found   []NewPost
		failed  int
		lastErr error
	)
	for i, handle := range m.handles {
		if i > 0 && m.delay > 0 {
			if err := sleep(ctx, m.delay); err != nil {
				return found, err
			}
		}
		post, ok, err := m.check(ctx, handle)
		if err != nil {
			failed++
			lastErr = err
			metrics.IncPoll(handle, metrics.PollError)
			m.log.WithField("handle", handle).WithError(err).Error("error monitoring handle")
			continue
		}
		if ok {
			found = append(found, post)
		}
	}
	if len(m.handles) > 0 && failed == len(m.handles) {
		return found, fmt.Errorf("all %d handles failed: %w", failed, lastErr)
	}
	return found, nil
}

func (m *Monitor) check(ctx context.Context, handle string) (NewPost, bool, error) {
	userID, err := m.api.ResolveHandle(ctx, handle)
	if err != nil {
		return NewPost{}, false, err
	}
	posts, err := m.api.ListRecentPosts(ctx, userID, m.pageSize)
	if err != nil {
		return NewPost{}, false, err
	}
	if len(posts) == 0 {
		metrics.IncPoll(handle, metrics.PollEmpty)
		return NewPost{}, false, nil
	}

	latest := posts[0]
	if last, ok := m.state.LastSeen(handle); ok && last == latest.ID {
		metrics.IncPoll(handle, metrics.PollUnchanged)
		return NewPost{}, false, nil
	}
	// the newest post was deleted and an older, already answered one resurfaced
	if m.state.Emitted(handle, latest.ID) {
		metrics.IncPoll(handle, metrics.PollUnchanged)
		m.log.WithFields(logrus.Fields{"handle": handle, "post_id": latest.ID}).Debug("latest post already handled")
		return NewPost{}, false, nil
	}
	if err := m.state.SetLastSeen(handle, latest.ID); err != nil {
		// the state keeps the id in memory even when persisting fails
		m.log.WithFields(logrus.Fields{"handle": handle, "post_id": latest.ID}).WithError(err).Warn("failed to persist last-seen id")
	}
	metrics.IncPoll(handle, metrics.PollNew)
	m.log.WithFields(logrus.Fields{"handle": handle, "post_id": latest.ID}).Info("new post")
	return NewPost{Handle: handle, PostID: latest.ID, Text: latest.Text}, true, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
