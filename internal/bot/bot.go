package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DivM11/social-fact-checker/internal/metrics"
	"github.com/DivM11/social-fact-checker/internal/monitor"
	"github.com/DivM11/social-fact-checker/internal/storage"
	"github.com/DivM11/social-fact-checker/internal/threads"
)

const DefaultCooldown = 60 * time.Second

// Replier produces a reply for a post's text.
type Replier interface {
	Generate(ctx context.Context, postText string) (string, error)
}

// Submitter posts a reply to a post.
type Submitter interface {
	PostReply(ctx context.Context, postID, text string) error
}

// Notifier delivers operator messages.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Bot drives poll -> reply -> sleep until its context is cancelled.
type Bot struct {
	poller    monitor.Poller
	replier   Replier
	submitter Submitter
	log       logrus.FieldLogger

	interval time.Duration
	cooldown time.Duration
	dryRun   bool

	recorder storage.Recorder
	notifier Notifier
	now      func() time.Time
}

// Option configures a Bot.
type Option func(*Bot)

// WithCooldown overrides the wait after a failed cycle.
func WithCooldown(d time.Duration) Option {
	return func(b *Bot) { b.cooldown = d }
}

// WithRecorder journals every processed post.
func WithRecorder(r storage.Recorder) Option {
	return func(b *Bot) { b.recorder = r }
}

// WithNotifier reports failed submissions to an operator.
func WithNotifier(n Notifier) Option {
	return func(b *Bot) { b.notifier = n }
}

// WithDryRun generates replies without submitting them.
func WithDryRun(v bool) Option {
	return func(b *Bot) { b.dryRun = v }
}

// New constructs a Bot. If log is nil, the logrus standard logger is used.
func New(poller monitor.Poller, replier Replier, submitter Submitter, interval time.Duration, log logrus.FieldLogger, opts ...Option) *Bot {
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := &Bot{
		poller:    poller,
		replier:   replier,
		submitter: submitter,
		log:       log,
		interval:  interval,
		cooldown:  DefaultCooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run loops until ctx is cancelled. Cancellation is observed between cycles
// and interrupts the interval and cooldown waits; a started cycle runs to
// completion so no submission is cut short.
func (b *Bot) Run(ctx context.Context) error {
	b.log.WithField("interval", b.interval).Info("starting fact-checking bot")
	for {
		if ctx.Err() != nil {
			b.log.Info("bot shutting down")
			return nil
		}

		wait := b.interval
		if err := b.safeCycle(context.WithoutCancel(ctx)); err != nil {
			wait = b.cooldown
		}

		if err := sleep(ctx, wait); err != nil {
			b.log.Info("bot shutting down")
			return nil
		}
	}
}

// safeCycle runs one cycle and turns failures, panics included, into a
// logged error so the loop keeps going.
func (b *Bot) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncCycleError("panic")
			b.log.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("unexpected error")
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	err = b.RunCycle(ctx)
	switch {
	case err == nil:
	case threads.IsTransport(err):
		metrics.IncCycleError("transport")
		b.log.WithError(err).WithField("cooldown", b.cooldown).Error("API error")
	default:
		metrics.IncCycleError("unexpected")
		b.log.WithError(err).WithField("cooldown", b.cooldown).Error("unexpected error")
	}
	return err
}

// RunCycle polls once and processes every new post in order.
func (b *Bot) RunCycle(ctx context.Context) error {
	start := b.now()
	defer func() { metrics.ObserveCycle(b.now().Sub(start)) }()

	posts, err := b.poller.Poll(ctx)
	for _, p := range posts {
		b.process(ctx, p)
	}
	return err
}

func (b *Bot) process(ctx context.Context, p monitor.NewPost) {
	log := b.log.WithFields(logrus.Fields{"handle": p.Handle, "post_id": p.PostID})
	ev := storage.ReplyEvent{Handle: p.Handle, PostID: p.PostID, PostText: p.Text}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("error processing post: panic: %v", r)
			ev.Status = storage.StatusGenerationError
			status := metrics.ReplyGenerationError
			if ev.Reply != "" {
				ev.Status = storage.StatusSubmitError
				status = metrics.ReplySubmitError
			}
			metrics.IncReply(status)
			ev.Error = fmt.Sprint(r)
			b.record(log, ev)
		}
	}()

	reply, err := b.replier.Generate(ctx, p.Text)
	if err != nil {
		metrics.IncReply(metrics.ReplyGenerationError)
		log.WithError(err).Error("error processing post")
		ev.Status = storage.StatusGenerationError
		ev.Error = err.Error()
		b.record(log, ev)
		return
	}
	ev.Reply = reply

	if b.dryRun {
		log.WithField("reply", reply).Info("dry run, reply not posted")
		ev.Status = storage.StatusDryRun
		b.record(log, ev)
		return
	}

	if err := b.submitter.PostReply(ctx, p.PostID, reply); err != nil {
		metrics.IncReply(metrics.ReplySubmitError)
		log.WithError(err).Error("error processing post")
		ev.Status = storage.StatusSubmitError
		ev.Error = err.Error()
		b.record(log, ev)
		b.notify(ctx, log, fmt.Sprintf("Failed to post reply to %s (@%s): %v", p.PostID, p.Handle, err))
		return
	}

	metrics.IncReply(metrics.ReplyPosted)
	log.Info("posted fact-check reply")
	ev.Status = storage.StatusPosted
	b.record(log, ev)
}

func (b *Bot) record(log logrus.FieldLogger, ev storage.ReplyEvent) {
	if b.recorder == nil {
		return
	}
	ev.Timestamp = b.now().UTC()
	if err := b.recorder.AppendReply(ev); err != nil {
		log.WithError(err).Warn("failed to journal reply")
	}
}

func (b *Bot) notify(ctx context.Context, log logrus.FieldLogger, text string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, text); err != nil {
		log.WithError(err).Warn("failed to notify operator")
	}
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
