package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DivM11/social-fact-checker/internal/storage"
)

// Notifier delivers the digest text.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// DigestJob builds today's digest from the journal and hands it to the
// notifier. Without a notifier the digest is only logged.
func DigestJob(rec storage.Recorder, n Notifier, log logrus.FieldLogger, now func() time.Time) func(ctx context.Context) error {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		events, err := rec.LoadReplies()
		if err != nil {
			return fmt.Errorf("load reply journal: %w", err)
		}
		stats := AnalyzeDailyReplies(events, now().UTC())
		summary := stats.GenerateReportSummary()
		if raw, err := stats.ToJSON(); err == nil {
			log.WithField("stats", raw).Debug("daily digest stats")
		}
		if n == nil {
			log.Info(summary)
			return nil
		}
		if err := n.Notify(ctx, summary); err != nil {
			return fmt.Errorf("send digest: %w", err)
		}
		log.WithField("date", stats.Date).Info("daily digest sent")
		return nil
	}
}
