package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/trafficportal/linkshortener/cache"
	"github.com/trafficportal/linkshortener/config"
	"github.com/trafficportal/linkshortener/httpclient"
	"github.com/trafficportal/linkshortener/internal/fakeapi"
	"github.com/trafficportal/linkshortener/repository"
	"github.com/trafficportal/linkshortener/service"
	"github.com/trafficportal/linkshortener/shortcode"
	"github.com/trafficportal/linkshortener/snapcapture"
	"github.com/trafficportal/linkshortener/trafficportal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type app struct {
	cfg    config.Config
	tenant service.TenantConfig

	links   service.LinkService
	codes   *shortcode.Client
	snap    *snapcapture.Client
	shots   *cache.ScreenshotCache
	adapter cache.Adapter

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, fake bool) (*app, error) {
	a := &app{cfg: cfg}

	var hc httpclient.Client
	if fake {
		srv := fakeapi.New("")
		a.closers = append(a.closers, func() error { srv.Close(); return nil })
		for _, svc := range []*config.ServiceConfig{&a.cfg.ShortCode, &a.cfg.SnapCapture, &a.cfg.TrafficPortal} {
			svc.BaseURL = srv.URL()
		}
		hc = httpclient.New(httpclient.WithHTTPClient(srv.Client()), httpclient.WithTimeout(cfg.HTTPTimeout))
		log.Debug().Str("url", srv.URL()).Msg("Using in-process fake APIs")
	} else {
		if err := cfg.RequireServices(); err != nil {
			return nil, err
		}
		hc = httpclient.New(httpclient.WithTimeout(cfg.HTTPTimeout))
	}

	tier, err := a.cfg.Tier()
	if err != nil {
		return nil, err
	}
	a.tenant = service.TenantConfig{
		UID:             a.cfg.UID,
		DefaultDomain:   a.cfg.DefaultDomain,
		DomainAllowList: a.cfg.AllowedDomains,
		DefaultTier:     tier,
		URLScheme:       a.cfg.URLScheme,
	}

	linksDB, err := openGorm(a.cfg.LinksDB)
	if err != nil {
		a.close()
		return nil, err
	}
	a.trackGorm(linksDB)

	adapter, err := a.openCache(ctx, linksDB)
	if err != nil {
		a.close()
		return nil, err
	}
	a.adapter = adapter

	a.codes = shortcode.NewClient(shortcode.Config(a.cfg.ShortCode), hc)
	a.snap = snapcapture.NewClient(snapcapture.Config(a.cfg.SnapCapture), hc)
	records := trafficportal.NewClient(trafficportal.Config(a.cfg.TrafficPortal), hc)
	a.shots = cache.NewScreenshotCache(adapter, a.snap, a.cfg.Cache.TTL)
	a.links = service.NewLinkService(repository.NewLinkRepository(linksDB), a.codes, records, a.shots)

	return a, nil
}

func (a *app) openCache(ctx context.Context, linksDB *gorm.DB) (cache.Adapter, error) {
	switch a.cfg.Cache.Backend {
	case config.BackendSQLite:
		db := linksDB
		if a.cfg.Cache.DSN != "" && a.cfg.Cache.DSN != a.cfg.LinksDB {
			var err error
			if db, err = openGorm(a.cfg.Cache.DSN); err != nil {
				return nil, err
			}
			a.trackGorm(db)
		}
		return repository.NewTransientRepository(db), nil

	case config.BackendPostgres:
		db, err := sql.Open("pgx", a.cfg.Cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		repo := repository.NewSQLTransientRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	default:
		return cache.NewMemory(), nil
	}
}

func openGorm(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	// sqlite allows one writer; batch shortening would otherwise hit SQLITE_BUSY
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return db, nil
}

func (a *app) trackGorm(db *gorm.DB) {
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
