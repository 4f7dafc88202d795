package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DivM11/social-fact-checker/internal/llm"
	"github.com/DivM11/social-fact-checker/internal/logging"
	"github.com/DivM11/social-fact-checker/internal/metrics"
	"github.com/DivM11/social-fact-checker/internal/monitor"
	"github.com/DivM11/social-fact-checker/internal/responder"
	"github.com/DivM11/social-fact-checker/internal/storage"
	"github.com/DivM11/social-fact-checker/internal/threads"
)

type scriptedPoller struct {
	mu    sync.Mutex
	calls int
	steps []func() ([]monitor.NewPost, error)
}

func (p *scriptedPoller) Poll(context.Context) ([]monitor.NewPost, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	p.mu.Unlock()
	if i < len(p.steps) {
		return p.steps[i]()
	}
	return nil, nil
}

func (p *scriptedPoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeReplier struct {
	fail  map[string]error
	texts []string
}

func (f *fakeReplier) Generate(_ context.Context, text string) (string, error) {
	f.texts = append(f.texts, text)
	if err := f.fail[text]; err != nil {
		return "", err
	}
	return "fact-check: " + text, nil
}

type memRecorder struct {
	mu     sync.Mutex
	events []storage.ReplyEvent
}

func (m *memRecorder) AppendReply(ev storage.ReplyEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memRecorder) LoadReplies() ([]storage.ReplyEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.ReplyEvent(nil), m.events...), nil
}

type fakeNotifier struct{ sent []string }

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func posts(ps ...monitor.NewPost) func() ([]monitor.NewPost, error) {
	return func() ([]monitor.NewPost, error) { return ps, nil }
}

func TestRunCycle_GenerationFailureSkipsSubmission(t *testing.T) {
	api := threads.NewFake()
	poller := &scriptedPoller{steps: []func() ([]monitor.NewPost, error){posts(
		monitor.NewPost{Handle: "alice", PostID: "p2", Text: "t2"},
		monitor.NewPost{Handle: "bob", PostID: "b1", Text: "tb"},
	)}}
	replier := &fakeReplier{fail: map[string]error{"t2": &llm.GenerationError{Provider: "openai", Err: errors.New("model unavailable")}}}
	rec := &memRecorder{}
	b := New(poller, replier, responder.New(api, logging.Discard()), time.Minute, logging.Discard(), WithRecorder(rec))

	require.NoError(t, b.RunCycle(context.Background()))

	assert.Equal(t, []threads.Reply{{PostID: "b1", Text: "fact-check: tb"}}, api.Submitted())
	require.Len(t, rec.events, 2)
	assert.Equal(t, storage.StatusGenerationError, rec.events[0].Status)
	assert.Equal(t, "p2", rec.events[0].PostID)
	assert.Equal(t, storage.StatusPosted, rec.events[1].Status)
}

func TestRunCycle_SubmitFailureLoggedWithPostID(t *testing.T) {
	api := threads.NewFake()
	api.SubmitErrs["p3"] = &threads.TransportError{Op: "submit reply", Status: 500, Err: errors.New("boom")}
	poller := &scriptedPoller{steps: []func() ([]monitor.NewPost, error){posts(
		monitor.NewPost{Handle: "alice", PostID: "p3", Text: "t3"},
		monitor.NewPost{Handle: "alice", PostID: "p4", Text: "t4"},
	)}}
	logger, hook := logtest.NewNullLogger()
	notifier := &fakeNotifier{}
	b := New(poller, &fakeReplier{}, responder.New(api, logging.Discard()), time.Minute, logger, WithNotifier(notifier))

	require.NoError(t, b.RunCycle(context.Background()))

	assert.Equal(t, []threads.Reply{{PostID: "p4", Text: "fact-check: t4"}}, api.Submitted())

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["post_id"] == "p3" {
			found = true
		}
	}
	assert.True(t, found, "submission failure must be logged with the post id")
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "p3")
}

func TestRunCycle_ReplyDerivedFromPostText(t *testing.T) {
	api := threads.NewFake()
	replier := &fakeReplier{}
	poller := &scriptedPoller{steps: []func() ([]monitor.NewPost, error){posts(
		monitor.NewPost{Handle: "alice", PostID: "p2", Text: "t2"},
	)}}
	b := New(poller, replier, responder.New(api, logging.Discard()), time.Minute, logging.Discard())

	require.NoError(t, b.RunCycle(context.Background()))
	assert.Equal(t, []string{"t2"}, replier.texts)
	assert.Equal(t, []threads.Reply{{PostID: "p2", Text: "fact-check: t2"}}, api.Submitted())
}

func TestRunCycle_PollErrorStillProcessesPosts(t *testing.T) {
	api := threads.NewFake()
	pollErr := &threads.TransportError{Op: "list posts", Err: errors.New("down")}
	poller := &scriptedPoller{steps: []func() ([]monitor.NewPost, error){func() ([]monitor.NewPost, error) {
		return []monitor.NewPost{{Handle: "alice", PostID: "p2", Text: "t2"}}, pollErr
	}}}
	b := New(poller, &fakeReplier{}, responder.New(api, logging.Discard()), time.Minute, logging.Discard())

	err := b.RunCycle(context.Background())
	assert.True(t, threads.IsTransport(err))
	assert.Len(t, api.Submitted(), 1)
}

func TestRunCycle_DryRun(t *testing.T) {
	api := threads.NewFake()
	rec := &memRecorder{}
	poller := &scriptedPoller{steps: []func() ([]monitor.NewPost, error){posts(
		monitor.NewPost{Handle: "alice", PostID: "p2", Text: "t2"},
	)}}
	b := New(poller, &fakeReplier{}, responder.New(api, logging.Discard()), time.Minute, logging.Discard(), WithDryRun(true), WithRecorder(rec))

	require.NoError(t, b.RunCycle(context.Background()))
	assert.Empty(t, api.Submitted())
	require.Len(t, rec.events, 1)
	assert.Equal(t, storage.StatusDryRun, rec.events[0].Status)
	assert.Equal(t, "fact-check: t2", rec.events[0].Reply)
}

func TestRun_ShutdownInterruptsInterval(t *testing.T) {
	poller := &scriptedPoller{}
	b := New(poller, &fakeReplier{}, responder.New(threads.NewFake(), logging.Discard()), time.Hour, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return poller.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	poller := &scriptedPoller{}
	b := New(poller, &fakeReplier{}, responder.New(threads.NewFake(), logging.Discard()), time.Hour, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Run(ctx))
	assert.Equal(t, 0, poller.Calls())
}

func TestRun_RecoversFromPanicAndErrors(t *testing.T) {
	api := threads.NewFake()
	poller := &scriptedPoller{steps: []func() ([]monitor.NewPost, error){
		func() ([]monitor.NewPost, error) { panic("nil map") },
		func() ([]monitor.NewPost, error) { return nil, errors.New("weird") },
		func() ([]monitor.NewPost, error) {
			return nil, &threads.TransportError{Op: "resolve handle", Err: errors.New("down")}
		},
		posts(monitor.NewPost{Handle: "alice", PostID: "p9", Text: "t9"}),
	}}
	b := New(poller, &fakeReplier{}, responder.New(api, logging.Discard()), time.Hour, logging.Discard(),
		WithCooldown(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return len(api.Submitted()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 4, poller.Calls())
}

type panickyReplier struct{}

func (panickyReplier) Generate(_ context.Context, text string) (string, error) {
	if text == "bad" {
		panic("tokenizer exploded")
	}
	return "ok", nil
}

func TestRunCycle_PanicInOnePostDoesNotBlockOthers(t *testing.T) {
	api := threads.NewFake()
	rec := &memRecorder{}
	poller := &scriptedPoller{steps: []func() ([]monitor.NewPost, error){posts(
		monitor.NewPost{Handle: "alice", PostID: "x", Text: "bad"},
		monitor.NewPost{Handle: "alice", PostID: "y", Text: "good"},
	)}}
	b := New(poller, panickyReplier{}, responder.New(api, logging.Discard()), time.Minute, logging.Discard(), WithRecorder(rec))
	failedBefore := replyCount(t, metrics.ReplyGenerationError)
	postedBefore := replyCount(t, metrics.ReplyPosted)

	require.NoError(t, b.RunCycle(context.Background()))
	assert.Equal(t, []threads.Reply{{PostID: "y", Text: "ok"}}, api.Submitted())
	require.Len(t, rec.events, 2)
	assert.Equal(t, storage.StatusGenerationError, rec.events[0].Status)
	assert.Equal(t, failedBefore+1, replyCount(t, metrics.ReplyGenerationError))
	assert.Equal(t, postedBefore+1, replyCount(t, metrics.ReplyPosted))
}

func replyCount(t *testing.T, status string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "factchecker_replies_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
