package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/freight-quotes/internal/cache"
	"github.com/nurpe/freight-quotes/internal/client"
	"github.com/nurpe/freight-quotes/internal/clientconfig"
	"github.com/nurpe/freight-quotes/internal/logger"
	"github.com/nurpe/freight-quotes/internal/model"
	"github.com/nurpe/freight-quotes/internal/portal"
	"github.com/nurpe/freight-quotes/internal/quotesync"
)

// app bundles what every command needs: config, the local store, the API
// client and, when a portal is configured, the session gate.
type app struct {
	cfg    clientconfig.Config
	log    zerolog.Logger
	store  *cache.Store
	client *client.Client
	gate   *portal.Gate
}

func openApp() (*app, error) {
	cfg, err := clientconfig.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen, NoColor: noColor}, level)

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("opening local cache: %w", err)
	}

	api, err := client.NewClient(cfg.APIURL, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store, client: api}
	if cfg.PortalURL != "" {
		verifier := portal.NewClient(cfg.PortalURL, &http.Client{Timeout: cfg.ProbeTimeout})
		a.gate = portal.NewGate(verifier, store)
	}
	log.Debug().Str("api", cfg.APIURL).Str("cache", cfg.CachePath).Bool("portal", a.gate != nil).Msg("client ready")
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close cache")
	}
}

func (a *app) engine(listener quotesync.Listener) *quotesync.Engine {
	opts := quotesync.Options{
		PollInterval:         a.cfg.PollInterval,
		StatusInterval:       a.cfg.StatusInterval,
		SessionCheckInterval: a.cfg.SessionCheckInterval,
		ProbeTimeout:         a.cfg.ProbeTimeout,
		Listener:             listener,
		Logger:               a.log,
	}
	if a.gate != nil {
		opts.Gate = a.gate
	}
	return quotesync.New(a.client, a.store, opts)
}

// ensureSession asks the portal once whether the stored credential is still
// valid. A rejected credential is cleared and ends the command; a portal that
// cannot be reached only warns, the engine keeps checking in the background.
func ensureSession(ctx context.Context, gate quotesync.SessionGate) error {
	valid, message, err := gate.Verify(ctx)
	if err != nil {
		printWarning("não foi possível verificar a sessão: %v", err)
		return nil
	}
	if valid {
		return nil
	}
	if err := gate.Clear(ctx); err != nil {
		printWarning("clear credential: %v", err)
	}
	printStep("Faça login novamente com `quotes login <token>`")
	return errors.New(message)
}

// loadEngine builds an engine reporting to the terminal and loads the
// collection. Offline is not fatal: the local snapshot is used instead.
func (a *app) loadEngine(ctx context.Context) (*quotesync.Engine, error) {
	e := a.engine(printListener{})
	if err := e.Load(ctx); err != nil && !isOffline(err) {
		return nil, err
	}
	return e, nil
}

// printListener reports engine notices on stderr for one-shot commands.
// Optimistic success notices are skipped; commands confirm once the server
// has answered.
type printListener struct{}

func (printListener) RecordsChanged([]model.Quote) {}
func (printListener) ConnectionChanged(bool)       {}

func (printListener) Notice(n quotesync.Notice) {
	switch n.Level {
	case quotesync.NoticeSuccess:
	case quotesync.NoticeError:
		printError("%s", n.Message)
	default:
		printWarning("%s", n.Message)
	}
}

func (printListener) Unauthorized(message string) {
	printError("%s", message)
	printStep("Faça login novamente com `quotes login <token>`")
}
