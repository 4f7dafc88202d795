package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/DivM11/social-fact-checker/internal/analytics"
	"github.com/DivM11/social-fact-checker/internal/bot"
	"github.com/DivM11/social-fact-checker/internal/config"
	"github.com/DivM11/social-fact-checker/internal/llm"
	"github.com/DivM11/social-fact-checker/internal/metrics"
	"github.com/DivM11/social-fact-checker/internal/monitor"
	"github.com/DivM11/social-fact-checker/internal/reply"
	"github.com/DivM11/social-fact-checker/internal/responder"
	"github.com/DivM11/social-fact-checker/internal/scheduler"
	"github.com/DivM11/social-fact-checker/internal/storage"
	"github.com/DivM11/social-fact-checker/internal/telegram"
	"github.com/DivM11/social-fact-checker/internal/threads"
)

type application struct {
	log       *logrus.Logger
	bot       *bot.Bot
	state     *storage.BoltState
	scheduler *scheduler.Scheduler
	stop      context.CancelFunc
}

func (a *application) close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.state != nil {
		if err := a.state.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close state db")
		}
	}
	if a.stop != nil {
		a.stop()
	}
}

func build(ctx context.Context, cfg *config.Config, log *logrus.Logger, dryRun bool) (*application, error) {
	a := &application{log: log}

	api := threads.NewClient(cfg.ThreadsAPIKey, cfg.ThreadsBaseURL, cfg.RequestTimeout)

	llmClient, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	gen := reply.NewGenerator(llmClient, reply.Settings{
		Template:        cfg.PromptTemplate,
		MaxInputTokens:  cfg.InputTokenLength,
		MaxOutputTokens: cfg.OutputTokenLength,
		Temperature:     cfg.Temperature,
	}, log)

	monOpts := []monitor.Option{
		monitor.WithPageSize(cfg.PostsPageSize),
		monitor.WithHandleDelay(cfg.HandleDelay),
	}
	if cfg.StateDBPath != "" {
		st, err := storage.OpenBoltState(cfg.StateDBPath)
		if err != nil {
			return nil, fmt.Errorf("open state db: %w", err)
		}
		a.state = st
		monOpts = append(monOpts, monitor.WithState(st))
	}
	mon := monitor.New(api, cfg.TargetHandles, log, monOpts...)

	botOpts := []bot.Option{
		bot.WithCooldown(cfg.ErrorCooldown),
		bot.WithDryRun(dryRun),
	}

	var rec storage.Recorder
	if cfg.ReplyLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.ReplyLogPath)
		if err != nil {
			log.WithError(err).Warn("failed to init reply journal")
		} else {
			rec = fr
			botOpts = append(botOpts, bot.WithRecorder(fr))
		}
	}

	var notifier *telegram.Notifier
	if cfg.NotificationsEnabled() {
		n, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			log.WithError(err).Warn("failed to init telegram notifier")
		} else {
			notifier = n
			botOpts = append(botOpts, bot.WithNotifier(n))
		}
	}

	if err := metrics.Start(ctx, cfg.MetricsAddr, log); err != nil {
		log.WithError(err).Warn("metrics disabled")
	}

	if rec != nil {
		var digestTo analytics.Notifier
		if notifier != nil {
			digestTo = notifier
		}
		a.scheduler = scheduler.New(cfg.DigestSchedule, log)
		a.scheduler.SetReportFunction(analytics.DigestJob(rec, digestTo, log, nil))
		if err := a.scheduler.Start(); err != nil {
			log.WithError(err).Warn("failed to start digest scheduler")
		}
	}

	a.bot = bot.New(mon, gen, responder.New(api, log), cfg.PollInterval, log, botOpts...)

	log.WithFields(logrus.Fields{
		"handles":  cfg.TargetHandles,
		"provider": cfg.LLMProvider,
		"model":    cfg.Model,
		"dry_run":  dryRun,
	}).Info("factchecker configured")
	return a, nil
}
