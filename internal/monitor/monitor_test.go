package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DivM11/social-fact-checker/internal/logging"
	"github.com/DivM11/social-fact-checker/internal/threads"
)

func newFake() *threads.Fake {
	f := threads.NewFake()
	f.Users["alice"] = "u1"
	f.Posts["u1"] = []threads.Post{{ID: "p2", Text: "t2"}, {ID: "p1", Text: "t1"}}
	return f
}

func newMonitor(api threads.API, handles ...string) *Monitor {
	return New(api, handles, logging.Discard(), WithHandleDelay(0))
}

func TestPoll_FirstObservationIsNew(t *testing.T) {
	m := newMonitor(newFake(), "alice")

	got, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []NewPost{{Handle: "alice", PostID: "p2", Text: "t2"}}, got)

	last, ok := m.state.LastSeen("alice")
	assert.True(t, ok)
	assert.Equal(t, "p2", last)
}

func TestPoll_SameDataNotReemitted(t *testing.T) {
	m := newMonitor(newFake(), "alice")

	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		got, err := m.Poll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	last, _ := m.state.LastSeen("alice")
	assert.Equal(t, "p2", last)
}

func TestPoll_NewerPostEmitted(t *testing.T) {
	f := newFake()
	m := newMonitor(f, "alice")

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	f.Posts["u1"] = append([]threads.Post{{ID: "p3", Text: "t3"}}, f.Posts["u1"]...)
	got, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []NewPost{{Handle: "alice", PostID: "p3", Text: "t3"}}, got)
}

func TestPoll_DeletedLatestNotReemitted(t *testing.T) {
	f := newFake()
	f.Posts["u1"] = []threads.Post{{ID: "p1", Text: "t1"}}
	m := newMonitor(f, "alice")

	got, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].PostID)

	f.Posts["u1"] = []threads.Post{{ID: "p2", Text: "t2"}, {ID: "p1", Text: "t1"}}
	got, err = m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PostID)

	// p2 deleted: the feed falls back to p1, which was already answered
	f.Posts["u1"] = []threads.Post{{ID: "p1", Text: "t1"}}
	for i := 0; i < 2; i++ {
		got, err = m.Poll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	f.Posts["u1"] = []threads.Post{{ID: "p3", Text: "t3"}, {ID: "p1", Text: "t1"}}
	got, err = m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p3", got[0].PostID)
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(nil)
	for i := 0; i < HistorySize+10; i++ {
		h.Add(fmt.Sprintf("p%d", i))
	}
	h.Add("p20")

	ids := h.IDs()
	assert.Len(t, ids, HistorySize)
	assert.False(t, h.Contains("p9"))
	assert.True(t, h.Contains("p10"))
	assert.True(t, h.Contains(fmt.Sprintf("p%d", HistorySize+9)))
	assert.Equal(t, "p10", ids[0])
}

func TestPoll_EmptyFeedSkipped(t *testing.T) {
	f := newFake()
	f.Users["bob"] = "u2"
	m := newMonitor(f, "bob")

	got, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	_, ok := m.state.LastSeen("bob")
	assert.False(t, ok)
}

func TestPoll_FailingHandleDoesNotBlockOthers(t *testing.T) {
	f := newFake()
	f.Users["carol"] = "u3"
	f.Posts["u3"] = []threads.Post{{ID: "c1", Text: "hello"}}
	f.ListErrs["u3"] = &threads.TransportError{Op: "list posts", Status: 500, Err: errors.New("boom")}
	f.Users["dave"] = "u4"
	f.Posts["u4"] = []threads.Post{{ID: "d1", Text: "world"}}

	m := newMonitor(f, "ghost", "carol", "alice", "dave")
	got, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []NewPost{
		{Handle: "alice", PostID: "p2", Text: "t2"},
		{Handle: "dave", PostID: "d1", Text: "world"},
	}, got)

	_, ok := m.state.LastSeen("carol")
	assert.False(t, ok, "state must not change for a failed handle")

	// ghost never resolves, so only carol, alice and dave reach the post listing
	assert.Equal(t, 4, f.ResolveHits)
	assert.Equal(t, []string{"u3", "u1", "u4"}, f.ListCalls)
}

func TestPoll_AllHandlesFailing(t *testing.T) {
	f := threads.NewFake()
	m := newMonitor(f, "ghost1", "ghost2")

	got, err := m.Poll(context.Background())
	assert.Empty(t, got)
	require.Error(t, err)
	assert.True(t, threads.IsTransport(err))
}

func TestPoll_UsesPageSize(t *testing.T) {
	f := newFake()
	m := New(f, []string{"alice"}, logging.Discard(), WithHandleDelay(0), WithPageSize(1))

	got, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PostID)
}

type failingState struct{ *MemoryState }

func (s failingState) SetLastSeen(handle, postID string) error {
	_ = s.MemoryState.SetLastSeen(handle, postID)
	return errors.New("disk full")
}

func TestPoll_PersistFailureStillEmitsOnce(t *testing.T) {
	m := New(newFake(), []string{"alice"}, logging.Discard(), WithHandleDelay(0), WithState(failingState{NewMemoryState()}))

	got, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = m.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPoll_DelayHonorsCancellation(t *testing.T) {
	f := newFake()
	f.Users["bob"] = "u2"
	m := New(f, []string{"alice", "bob"}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := m.Poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, got, 1)
}
