package main

import (
	"fmt"
	"net/http"

	"github.com/zulandar/kriya/internal/agents"
	"github.com/zulandar/kriya/internal/bridge"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/db"
	"github.com/zulandar/kriya/internal/directive"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/notify"
	"github.com/zulandar/kriya/internal/overview"
	"github.com/zulandar/kriya/internal/provider"
	"github.com/zulandar/kriya/internal/relay"
	"github.com/zulandar/kriya/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app is every component wired from one config file.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	log      *zap.Logger
	store    *store.Store
	agents   *agents.Directory
	bus      *bus.Bus
	notifier *notify.Multi
	queue    *bridge.Queue
	overview *overview.Builder
	relay    *relay.Relay
}

// connectFromConfig loads the config and opens the database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	return cfg, gormDB, nil
}

// newApp wires the components. The caller closes it.
func newApp(configPath string) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: gormDB}
	if err := a.wire(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	log, err := logging.New(a.cfg.Log)
	if err != nil {
		return err
	}
	a.log = log
	a.store = store.New(a.db)

	a.agents, err = agents.FromConfig(a.cfg, a.store)
	if err != nil {
		return err
	}
	a.bus = bus.New(a.store, a.agents, log.Named("bus"))

	a.notifier, err = notify.FromConfig(a.cfg.Notify, log.Named("notify"))
	if err != nil {
		return err
	}
	a.queue = bridge.New(a.store, a.notifier, log.Named("bridge"))
	a.overview = overview.NewBuilder(a.agents, a.store, a.bus, a.cfg.OverviewAgent)

	providers, err := provider.NewRegistry(a.cfg.Providers)
	if err != nil {
		return err
	}
	a.relay = relay.New(relay.Deps{
		Store:      a.store,
		Agents:     a.agents,
		Bus:        a.bus,
		Overview:   a.overview,
		Providers:  providers,
		Bridge:     a.queue,
		Extractor:  directive.NewExtractor(a.bus, a.agents, log.Named("directive")),
		HTTPClient: &http.Client{},
		Logger:     log.Named("relay"),
	}, relay.Config{
		OverviewAgent:  a.cfg.OverviewAgent,
		BridgePoll:     a.cfg.Bridge.PollInterval,
		BridgeTimeout:  a.cfg.Bridge.Timeout,
		ReplayDelay:    a.cfg.Bridge.ReplayDelay,
		PendingMessage: a.cfg.Bridge.PendingMessage,
	})
	return nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.db != nil {
		db.Close(a.db)
	}
}
