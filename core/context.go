package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"beta.service/api"
	"beta.service/config"
)

type ServiceContext struct {
	Context  context.Context
	Config   *config.Config
	Provider api.Provider
	Logger   zerolog.Logger

	// now is swapped in tests to pin default dates
	now func() time.Time
}

func NewServiceContext(ctx context.Context, cfg *config.Config, provider api.Provider, logger zerolog.Logger) *ServiceContext {
	return &ServiceContext{
		Context:  ctx,
		Config:   cfg,
		Provider: provider,
		Logger:   logger.With().Str("component", "beta").Logger(),
		now:      time.Now,
	}
}
