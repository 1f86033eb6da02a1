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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"beta.service/api"
	"beta.service/api/alpaca"
	av "beta.service/api/alpha_vantage"
	"beta.service/api/yahoo"
	"beta.service/config"
	r "beta.service/data/repos"
	c "beta.service/core"
)

const (
	defaultConfigPath = "config.yaml"
	shutdownTimeout   = 10 * time.Second
	pruneInterval     = time.Hour
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// load in environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg(".env not loaded")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	logger := newLogger(cfg.Log.Level)
	log.Logger = logger

	provider, err := getProvider(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create market data provider")
	}
	provider = &c.MeteredProvider{Provider: provider}

	if cfg.Cache.Enabled {
		cache, closeCache, err := getPriceCache(ctx, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create price cache")
		}
		defer closeCache()

		provider = &c.CachingProvider{Provider: provider, Cache: cache, Logger: logger}
	}

	sc := c.NewServiceContext(ctx, cfg, provider, logger)

	// get http server, makes all of the endpoints and routes
	s := c.GetHttpServer(sc)

	go func() {
		logger.Info().
			Str("addr", s.Addr).
			Str("provider", provider.Name()).
			Str("interval", cfg.Interval().Name()).
			Msg("Starting beta server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server error")
		}
	}()

	// will wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}

	logger.Info().Msg("Server stopped successfully")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

func getProvider(cfg *config.Config) (api.Provider, error) {
	switch cfg.Provider {
	case config.ProviderYahoo:
		if cfg.Yahoo.BaseURL == "" {
			return yahoo.GetClient(), nil
		}
		return yahoo.GetClientForBaseURL(cfg.Yahoo.BaseURL)
	case config.ProviderAlphaVantage:
		if cfg.AlphaVantage.BaseURL == "" {
			return av.GetClient(cfg.AlphaVantage.APIKey), nil
		}
		return av.GetClientForBaseURL(cfg.AlphaVantage.BaseURL, cfg.AlphaVantage.APIKey)
	case config.ProviderAlpaca:
		return alpaca.GetClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// getPriceCache uses postgres when a database is configured, otherwise an in memory cache.
// Expired entries are pruned in the background until ctx is done.
func getPriceCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (c.PriceCache, func(), error) {
	if cfg.DatabaseURL == "" {
		cache := c.NewMemoryPriceCache(cfg.Cache.TTL)
		go prune(ctx, logger, func(context.Context) (int64, error) {
			return int64(cache.Prune()), nil
		})
		return cache, func() {}, nil
	}

	pg, err := r.GetPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("failed to create price cache tables: %w", err)
	}

	cache := c.NewPostgresPriceCache(pg, cfg.Cache.TTL)
	go prune(ctx, logger, cache.Prune)

	return cache, pg.Close, nil
}

func prune(ctx context.Context, logger zerolog.Logger, pruneFn func(context.Context) (int64, error)) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := pruneFn(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to prune price cache")
		} else if n > 0 {
			logger.Debug().Int64("pruned", n).Msg("Pruned expired price series")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
