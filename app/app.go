// Package app assembles the payroll engine from a Config. Both the HTTP
// server and the command-line tool start from here.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/batch"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/holidays"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/metrics"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Store   *sqlite.Store
	Lookup  payroll.HolidayLookup
	Metrics *metrics.Manager
	Service *payroll.Service
	Runner  *batch.Runner

	cache *holidays.PersistentCache
}

// New opens the store and the holiday cache and wires the service.
//
// Holiday lookup chain, outermost first:
//
//	Calendar (operator entries) -> PersistentCache (buntdb) -> Hebcal | Seasonal
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Named("app")

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	minWage, err := cfg.MinimumWageAmount()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.DBPath,
		sqlite.WithLocation(loc),
		sqlite.WithPlanFactory(factory.NewPlanFactory(cfg.LocalCurrency)))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var remote payroll.HolidayLookup = holidays.Seasonal{}
	if cfg.HebcalEnabled {
		remote = holidays.NewHebcal(cfg.HebcalGeonameID, loc,
			holidays.WithHTTPClient(&http.Client{Timeout: cfg.HebcalTimeout}))
		log.Info(ctx, "hebcal provider enabled", logger.Int("geonameid", cfg.HebcalGeonameID))
	}

	cache, err := holidays.OpenPersistentCache(cfg.HolidayCachePath, cfg.HolidayCacheTTL, remote)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open holiday cache: %w", err)
	}
	lookup := holidays.NewCalendar(store, cache)

	m := metrics.NewManager()

	rules := payroll.DefaultRules()
	rules.LocalCurrency = cfg.LocalCurrency
	rules.MinimumWage = minWage
	rules.MinimumWageHours = decimal.NewFromInt(int64(cfg.MinimumWageHours))
	rules.StrictArithmetic = cfg.StrictArithmetic

	svc := payroll.NewService(store, store, store, lookup,
		payroll.WithRules(rules),
		payroll.WithObserver(m),
		payroll.WithLogger(logger.Named("payroll")))

	runner := batch.NewRunner(svc, lookup, store,
		batch.WithWorkers(cfg.BatchWorkers),
		batch.WithRecorder(m),
		batch.WithLogger(logger.Named("batch")))

	return &App{
		Config:  cfg,
		Store:   store,
		Lookup:  lookup,
		Metrics: m,
		Service: svc,
		Runner:  runner,
		cache:   cache,
	}, nil
}

// Close releases the holiday cache and the database.
func (a *App) Close() error {
	cacheErr := a.cache.Close()
	if err := a.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}
