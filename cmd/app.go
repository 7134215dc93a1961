package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/boya-scheduler/internal/attempts"
	"github.com/example/boya-scheduler/internal/bykc"
	"github.com/example/boya-scheduler/internal/clock"
	"github.com/example/boya-scheduler/internal/config"
	"github.com/example/boya-scheduler/internal/crypto"
	"github.com/example/boya-scheduler/internal/db"
	"github.com/example/boya-scheduler/internal/logging"
	"github.com/example/boya-scheduler/internal/migrate"
	"github.com/example/boya-scheduler/internal/orchestrator"
	"github.com/example/boya-scheduler/internal/selection"
	"github.com/example/boya-scheduler/internal/session"
	"github.com/example/boya-scheduler/internal/store"
	"github.com/example/boya-scheduler/internal/telemetry"
)

// app is everything one command invocation needs. It is built from the
// environment and torn down by close, which persists credentials and the
// cookie jar whatever the outcome of the run.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	tel    *telemetry.Provider
	store  *store.Store
	codec  *session.Codec
	jar    *session.Jar
	client *bykc.Client
	clock  *clock.RealClock
	db     *db.DB
	rec    orchestrator.Recorder
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, err
	}
	tel, err := telemetry.New(ctx, telemetry.Config{
		Endpoint:    cfg.TelemetryEndpoint,
		Insecure:    cfg.TelemetryInsecure,
		ServiceName: cfg.ServiceName,
	}, log)
	if err != nil {
		return nil, err
	}

	var aead *crypto.AEAD
	if cfg.CredKey != nil {
		if aead, err = crypto.New(cfg.CredKey); err != nil {
			return nil, err
		}
	}

	codec := session.NewCodec(cfg.CookieHashKey, cfg.CookieBlockKey)
	jar, err := session.Load(cfg.CookieFile, codec)
	if err != nil {
		log.Warn("session file ignored", zap.String("path", cfg.CookieFile), zap.Error(err))
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		tel:   tel,
		store: store.New(cfg.ConfigFile, aead),
		codec: codec,
		jar:   jar,
		clock: clock.NewRealClock(cfg.Location),
		rec:   attempts.Nop{},
	}
	a.client = bykc.New(bykc.Options{
		SSOURL:   cfg.SSOURL,
		APIURL:   cfg.APIURL,
		Jar:      jar,
		Timeout:  cfg.HTTPTimeout,
		Location: cfg.Location,
	})

	if cfg.DatabaseURL != "" {
		if err := a.openDB(ctx); err != nil {
			log.Warn("attempt history disabled", zap.Error(err))
		}
	}
	return a, nil
}

func (a *app) openDB(ctx context.Context) error {
	d, err := db.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return err
	}
	a.db = d
	a.rec = attempts.NewRepo(d)
	return nil
}

// runContext starts a run from the stored record.
func (a *app) runContext() *orchestrator.RunContext {
	r := a.store.Load()
	return orchestrator.NewRunContext(r.Username, r.Password, r.Token)
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	return &orchestrator.Orchestrator{
		Auth:     a.client,
		Catalog:  a.client,
		Executor: selection.Executor{Service: a.client},
		Clock:    a.clock,
		Recorder: a.rec,
		Logger:   a.log,
		Tracer:   a.tel.Tracer(),
	}
}

// close persists rc (when non-nil) and the cookie jar, then releases
// resources.
func (a *app) close(rc *orchestrator.RunContext) {
	if rc != nil {
		rec := store.Record{Username: rc.Username, Password: rc.Password, Token: rc.Token}
		if err := a.store.Save(rec); err != nil {
			a.log.Error("save config", zap.String("path", a.store.Path()), zap.Error(err))
		}
		if err := session.Save(a.cfg.CookieFile, a.codec, a.jar); err != nil {
			a.log.Error("save session", zap.String("path", a.cfg.CookieFile), zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Warn("telemetry shutdown", zap.Error(err))
	}
	_ = a.log.Sync()
}
