package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/banshee-data/growth.report/internal/config"
	"github.com/banshee-data/growth.report/internal/db"
	"github.com/banshee-data/growth.report/internal/decision"
	"github.com/banshee-data/growth.report/internal/fsutil"
	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/httputil"
	"github.com/banshee-data/growth.report/internal/jobs"
	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/timeutil"
)

// app holds the components shared by serve and worker.
type app struct {
	cfg       *config.ServerConfig
	db        *db.DB
	store     growth.SessionStore
	charts    *jobs.ChartStore
	processor *jobs.Processor
}

func referenceTable(cfg *config.ServerConfig) (*reference.Table, error) {
	policy, err := reference.ParsePolicy(cfg.GetLookupPolicy())
	if err != nil {
		return nil, err
	}
	return reference.Default().WithPolicy(policy), nil
}

func newApp(cfg *config.ServerConfig, dev bool) (*app, error) {
	clock := timeutil.RealClock{}
	table, err := referenceTable(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if path := cfg.GetDBPath(); path != "" {
		database, err := db.NewDB(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.db = database
		a.store = db.NewSessionStore(database, clock)
		log.Printf("sessions stored in %s", path)
	} else {
		a.store = growth.NewMemoryStore(clock)
		log.Print("sessions held in memory; they will not survive a restart")
	}

	var decider decision.Decider = decision.RuleDecider{}
	if !dev {
		g, err := decision.NewGeminiDecider(context.Background(),
			httputil.NewStandardClient(cfg.GetDecisionTimeout()),
			cfg.GeminiAPIKey, cfg.GetDecisionModel(), cfg.GetDecisionEndpoint())
		if err != nil {
			a.Close()
			if errors.Is(err, decision.ErrNoAPIKey) {
				return nil, fmt.Errorf("%w: set %s or run with --dev", err, config.EnvGeminiAPIKey)
			}
			return nil, err
		}
		g.MinReportEntries = cfg.GetMinReportEntries()
		decider = g
	}

	forecaster := growth.NewForecaster(table)
	forecaster.HorizonMonths = cfg.GetForecastHorizonMonths()
	a.charts = jobs.NewChartStore(fsutil.OSFileSystem{}, cfg.GetChartDir(), clock)
	reporter := jobs.NewReporter(forecaster, a.charts, cfg.GetPublicBaseURL())

	client := httputil.NewStandardClient(cfg.GetCallbackTimeout())
	p := jobs.NewProcessor(a.store, decider, growth.NewTracker(table), reporter, client)
	p.CallbackTimeout = cfg.GetCallbackTimeout()
	p.MinReportEntries = cfg.GetMinReportEntries()
	a.processor = p
	return a, nil
}

func (a *app) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		log.Printf("failed to close database: %v", err)
	}
}

func (a *app) openQueue() (jobs.Queue, error) {
	switch a.cfg.GetQueue() {
	case config.QueueAMQP:
		return jobs.DialAMQP(a.cfg.GetAMQPURL(), a.cfg.GetAMQPQueue(), a.cfg.GetWorkers())
	default:
		return jobs.NewMemoryQueue(64*a.cfg.GetWorkers(), a.cfg.GetWorkers()), nil
	}
}
