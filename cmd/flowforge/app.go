package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"flowforge/internal/archive"
	"flowforge/internal/assessment"
	"flowforge/internal/config"
	"flowforge/internal/enhancement"
	"flowforge/internal/interview"
	"flowforge/internal/llm"
	"flowforge/internal/logging"
	"flowforge/internal/metrics"
	"flowforge/internal/reflection"
	"flowforge/internal/session"
	"flowforge/internal/tenant"
)

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	obs      metrics.Observer
	sessions session.Store
	archive  archive.Store
	svc      *assessment.Service
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, autoEnhance bool) (_ *app, err error) {
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	obs, err := metrics.NewPrometheusObserver("flowforge", a.registry)
	if err != nil {
		return nil, err
	}
	a.obs = obs

	chat, err := a.newClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}
	synth, err := a.newClient(ctx, llm.Retry(cfg.LLM.RetryAttempts, 500*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("init synthesis model: %w", err)
	}

	if a.sessions, err = a.openSessions(ctx); err != nil {
		return nil, err
	}
	if a.archive, err = a.openArchive(); err != nil {
		return nil, err
	}
	tenants, err := tenant.LoadFile(cfg.TenantsFile)
	if err != nil {
		return nil, err
	}

	a.svc = assessment.New(assessment.Deps{
		Sessions:    a.sessions,
		Archive:     a.archive,
		Tenants:     tenants,
		Interview:   interview.NewAgent(chat, interview.WithLogger(log), interview.WithObserver(obs)),
		Reflection:  reflection.NewAgent(chat, reflection.WithLogger(log), reflection.WithObserver(obs)),
		Synthesizer: enhancement.NewSynthesizer(synth, log),
		Logger:      log,
		AutoEnhance: autoEnhance,
	})
	return a, nil
}

func (a *app) newClient(ctx context.Context, extra ...llm.Middleware) (llm.Client, error) {
	mws := []llm.Middleware{llm.WithHooks(), llm.WithLogging(a.log), llm.WithMetrics(a.obs)}
	cli, err := llm.New(ctx, llm.Options{
		Provider:    a.cfg.LLM.Provider,
		Model:       a.cfg.LLM.Model,
		APIKey:      a.cfg.LLM.APIKey,
		BaseURL:     a.cfg.LLM.BaseURL,
		Timeout:     a.cfg.LLM.Timeout,
		RPS:         a.cfg.LLM.RPS,
		Burst:       a.cfg.LLM.Burst,
		Middlewares: append(mws, extra...),
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cli.Close)
	return cli, nil
}

func (a *app) openSessions(ctx context.Context) (session.Store, error) {
	var origin session.Store
	if a.cfg.DatabaseURL != "" {
		pg, err := session.OpenPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		origin = pg
		a.log.Info("session store", zap.String("backend", "postgres"))
	} else {
		fs, err := session.NewFileStore(a.cfg.Session.File)
		if err != nil {
			return nil, err
		}
		origin = fs
		a.log.Debug("session store", zap.String("backend", "file"), zap.String("path", a.cfg.Session.File))
	}
	if a.cfg.Session.CacheSize <= 0 {
		return origin, nil
	}
	return session.NewCachedStore(origin, a.cfg.Session.CacheSize, a.cfg.Session.CacheTTL), nil
}

func (a *app) openArchive() (archive.Store, error) {
	ac := a.cfg.Artifact
	s3cfg := archive.S3Config{
		Endpoint:  ac.Endpoint,
		Region:    ac.Region,
		AccessKey: ac.AccessKey,
		SecretKey: ac.SecretKey,
		Bucket:    ac.Bucket,
		UseSSL:    ac.UseSSL,
	}
	if ac.Enabled && s3cfg.Enabled() {
		st, err := archive.NewS3Store(s3cfg)
		if err != nil {
			return nil, err
		}
		a.log.Info("artifact archive", zap.String("backend", "s3"), zap.String("bucket", ac.Bucket))
		return st, nil
	}
	return archive.NewDiskStore(ac.Dir), nil
}

// Close releases clients and stores and flushes metrics.
func (a *app) Close() error {
	var errs []error
	if a.cfg != nil && a.registry != nil {
		errs = append(errs, metrics.WriteTextfile(a.cfg.MetricsTextfile, a.registry))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}
