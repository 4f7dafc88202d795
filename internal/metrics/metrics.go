package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "factchecker_handle_polls_total",
		Help: "Handle polls by outcome",
	}, []string{"handle", "outcome"})
	replies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "factchecker_replies_total",
		Help: "Processed posts by status",
	}, []string{"status"})
	cycleErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "factchecker_cycle_errors_total",
		Help: "Cycle-level failures that triggered a cooldown",
	}, []string{"kind"})
	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "factchecker_cycle_duration_seconds",
		Help:    "Duration of a poll-and-reply cycle",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// Poll outcomes.
const (
	PollNew       = "new"
	PollUnchanged = "unchanged"
	PollEmpty     = "empty"
	PollError     = "error"
)

// Reply statuses.
const (
	ReplyPosted          = "posted"
	ReplyGenerationError = "generation_error"
	ReplySubmitError     = "submit_error"
)

func init() {
	prometheus.MustRegister(polls, replies, cycleErrors, cycleDuration)
}

// Start serves /metrics on listen until ctx is done. Empty listen disables it.
func Start(ctx context.Context, listen string, log logrus.FieldLogger) error {
	if listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if log != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}
	}()
	return nil
}

func IncPoll(handle, outcome string) { polls.WithLabelValues(handle, outcome).Inc() }

func IncReply(status string) { replies.WithLabelValues(status).Inc() }

func IncCycleError(kind string) { cycleErrors.WithLabelValues(kind).Inc() }

func ObserveCycle(d time.Duration) { cycleDuration.Observe(d.Seconds()) }
