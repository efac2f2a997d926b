package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/leapstack-labs/statcube/internal/config"
	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/internal/locale"
	"github.com/leapstack-labs/statcube/internal/meta"
	"github.com/leapstack-labs/statcube/internal/objstore"
	"github.com/leapstack-labs/statcube/internal/query"
)

// app bundles the opened collaborators a command works with. Commands open
// only what they need through the open* helpers; Close releases everything
// that was opened.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	engine *engine.Engine
	meta   *meta.Store
	store  objstore.Store
	cache  *query.Cache

	locales *locale.Registry
}

// newApp loads shared state every command needs: the logger and the locale
// registry. Databases are opened lazily.
func newApp(ctx context.Context) (*app, error) {
	cfg := configFromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	locales, err := locale.NewRegistry(cfg.Locales.Supported, cfg.Locales.Default)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  newLogger(cfg.Verbose),
		locales: locales,
	}, nil
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.engine != nil {
		_ = a.engine.Close()
	}
	if a.meta != nil {
		_ = a.meta.Close()
	}
}

func (a *app) openMeta(ctx context.Context) (*meta.Store, error) {
	if a.meta != nil {
		return a.meta, nil
	}
	s, err := meta.NewStore(ctx, meta.Config{
		Host:            a.cfg.Database.Host,
		Port:            a.cfg.Database.Port,
		Database:        a.cfg.Database.Name,
		Username:        a.cfg.Database.Username,
		Password:        a.cfg.Database.Password,
		SSLMode:         a.cfg.Database.SSLMode,
		MaxConns:        a.cfg.Database.MaxConns,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: a.cfg.Database.MaxConnIdleTime,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.meta = s
	return s, nil
}

func (a *app) openEngine(ctx context.Context) (*engine.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	e, err := engine.Open(ctx, engine.Config{
		Path:           a.cfg.Engine.Path,
		Threads:        a.cfg.Engine.Threads,
		MemoryLimit:    a.cfg.Engine.MemoryLimit,
		TempDirectory:  a.cfg.Engine.TempDirectory,
		SettleInterval: a.cfg.Engine.SettleInterval,
		Logger:         a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.engine = e
	return e, nil
}

func (a *app) openStorage(ctx context.Context) (objstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := objstore.New(ctx, objstore.Config{
		Backend:  a.cfg.Storage.Backend,
		Bucket:   a.cfg.Storage.Bucket,
		Region:   a.cfg.Storage.Region,
		Endpoint: a.cfg.Storage.Endpoint,
		RootDir:  a.cfg.Storage.RootDir,
	})
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) openCache(ctx context.Context) (*query.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	c, err := query.OpenCache(ctx, a.cfg.Cache.Path, a.logger, nil)
	if err != nil {
		return nil, err
	}
	a.cache = c
	return c, nil
}

// newLogger builds the colorized CLI logger.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}
