package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/freight-quotes/internal/auth"
	"github.com/nurpe/freight-quotes/internal/config"
	"github.com/nurpe/freight-quotes/internal/db"
	"github.com/nurpe/freight-quotes/internal/excel"
	httphandler "github.com/nurpe/freight-quotes/internal/http"
	"github.com/nurpe/freight-quotes/internal/http/middleware"
	"github.com/nurpe/freight-quotes/internal/logger"
	"github.com/nurpe/freight-quotes/internal/pdf"
	"github.com/nurpe/freight-quotes/internal/portal"
	"github.com/nurpe/freight-quotes/internal/repository"
	"github.com/nurpe/freight-quotes/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	repo, err := newRepository(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to init storage")
	}

	quoteService := service.NewQuoteService(repo, excel.NewGenerator(), pdf.NewGenerator(), cfg.Auth.Modes)

	handler := httphandler.NewHandler(quoteService, cfg.HTTP.StaticDir, log)
	authMiddleware := middleware.Auth(newAuthenticator(cfg), cfg.Auth.LoginURL, log)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.HTTP, cfg.Environment, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", addr).
			Str("store", cfg.StoreDriver).
			Strs("auth_modes", cfg.Auth.Modes).
			Msg("starting quotes service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}

func newRepository(cfg *config.Config, log zerolog.Logger) (service.QuoteRepository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSupabase:
		log.Info().Str("table", cfg.Supabase.Table).Msg("using supabase storage")
		return repository.NewSupabaseRepository(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Table, nil), nil
	default:
		database, err := db.New(cfg, log)
		if err != nil {
			return nil, err
		}
		return repository.NewQuoteRepository(database), nil
	}
}

// newAuthenticator chains the configured modes in the order they are listed.
func newAuthenticator(cfg *config.Config) auth.Authenticator {
	chain := make(auth.Chain, 0, len(cfg.Auth.Modes))
	for _, mode := range cfg.Auth.Modes {
		switch mode {
		case config.AuthModeProxy:
			chain = append(chain, auth.Proxy{})
		case config.AuthModeSession:
			verifier := portal.NewClient(cfg.Auth.PortalURL, &http.Client{Timeout: 10 * time.Second})
			chain = append(chain, auth.NewSession(verifier, cfg.Auth.SessionCacheTTL))
		case config.AuthModeJWT:
			chain = append(chain, auth.NewParser(cfg.Auth.AccessSecret))
		}
	}
	return chain
}
