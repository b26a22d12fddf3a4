package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ecosort/smoke/internal/client"
	"github.com/ecosort/smoke/internal/config"
	"github.com/ecosort/smoke/internal/logging"
	"github.com/ecosort/smoke/internal/metrics"
	"github.com/ecosort/smoke/internal/models"
	"github.com/ecosort/smoke/internal/notify"
	"github.com/ecosort/smoke/internal/smoke"
	"github.com/ecosort/smoke/internal/version"
)

func main() {
	os.Exit(run())
}

type app struct {
	cfg      *config.Config
	api      *client.Client
	log      *slog.Logger
	rec      *metrics.Recorder
	hook     *notify.Client
	instance string
}

func run() int {
	lg := logging.New("smoke")
	cfg, err := config.Parse()
	if err != nil {
		lg.Error("config", slog.String("error", err.Error()))
		return 2
	}
	// surface a bad fixtures file before anything is sent
	if _, err := models.LoadFixtures(cfg.FixturesPath, time.Now()); err != nil {
		lg.Error("fixtures", slog.String("error", err.Error()))
		return 2
	}
	a, err := newApp(cfg, lg)
	if err != nil {
		lg.Error("client", slog.String("error", err.Error()))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("starting", slog.String("version", version.Describe()), slog.String("base_url", cfg.BaseURL))
	if cfg.Schedule != "" {
		return a.schedule(ctx, cfg.Schedule)
	}
	rep := a.once(ctx)
	if rep == nil {
		return 2
	}
	if cfg.Strict && !rep.Passed() {
		return 1
	}
	return 0
}

func newApp(cfg *config.Config, lg *slog.Logger) (*app, error) {
	api, err := client.New(cfg.BaseURL,
		client.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		client.WithLogger(lg),
		client.WithHealthURL(cfg.HealthURL),
	)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, api: api, log: lg, rec: metrics.New(), instance: "smoke"}
	if h, err := os.Hostname(); err == nil && h != "" {
		a.instance = h
	}
	if cfg.WebhookURL != "" {
		a.hook = &notify.Client{URL: cfg.WebhookURL, Secret: []byte(cfg.WebhookSecret), HTTP: &http.Client{Timeout: 10 * time.Second}}
	}
	return a, nil
}

// once performs a single run and ships its results. Fixtures are reloaded so
// every run gets a fresh user email.
func (a *app) once(ctx context.Context) *smoke.Report {
	fixtures, err := models.LoadFixtures(a.cfg.FixturesPath, time.Now())
	if err != nil {
		a.log.Error("fixtures", slog.String("error", err.Error()))
		return nil
	}
	runID := uuid.NewString()
	lg := a.log.With(slog.String("run_id", runID))
	rep := smoke.New(a.api, smoke.Options{
		RunID:          runID,
		BaseURL:        a.cfg.BaseURL,
		ConnectTimeout: a.cfg.ConnectTimeout,
		Settle:         a.cfg.Settle,
		Pace:           a.cfg.Pace,
		Fixtures:       fixtures,
		Out:            os.Stdout,
		Log:            lg,
		Metrics:        a.rec,
	}).Run(ctx)

	if a.cfg.ArtifactsDir != "" {
		if err := smoke.WriteArtifacts(a.cfg.ArtifactsDir, rep); err != nil {
			lg.Error("artifacts", slog.String("error", err.Error()))
		}
	}
	if a.hook != nil {
		err := a.hook.Send(context.Background(), "smoke.finished", smoke.Suite(rep))
		a.rec.IncNotification(err == nil)
		if err != nil {
			lg.Error("webhook", slog.String("error", err.Error()))
		}
	}
	if a.cfg.PushgatewayURL != "" {
		pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.rec.Push(pctx, a.cfg.PushgatewayURL, a.instance); err != nil {
			lg.Error("pushgateway", slog.String("error", err.Error()))
		}
		cancel()
	}

	passed, failed, skipped := rep.Counts()
	lg.Info("finished", slog.Int("passed", passed), slog.Int("failed", failed), slog.Int("skipped", skipped), slog.Bool("aborted", rep.Aborted))
	return rep
}

// schedule repeats once on spec until ctx is cancelled. Overlapping runs are
// skipped rather than queued.
func (a *app) schedule(ctx context.Context, spec string) int {
	cl := cronLogger{a.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(spec, func() { a.once(ctx) }); err != nil {
		a.log.Error("schedule", slog.String("error", err.Error()))
		return 2
	}
	a.log.Info("scheduled", slog.String("schedule", spec))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	a.log.Info("schedule stopped")
	return 0
}

// cronLogger feeds cron's internal logging into slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err.Error())...)
}
