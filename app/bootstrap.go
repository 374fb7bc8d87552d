package app

import (
	"context"
	"fmt"

	"example/cpl-trainer/app/config"

	"github.com/rs/zerolog"
)

// Services are the long-lived pieces every binary starts the same way.
type Services struct {
	Config  *config.Config
	Log     zerolog.Logger
	Tiers   *TierTable
	Engines *EnginePool
}

// Boot loads configuration, validates the tier table, connects Postgres when
// configured and starts the engine pool.
func Boot() (*Services, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := NewLogger(cfg.Logs)

	tiers, err := LoadTierTable(cfg.Tiers)
	if err != nil {
		return nil, err
	}
	MustInitDB(cfg.DB, log)

	pool, err := NewEnginePool(cfg.Engine, log)
	if err != nil {
		return nil, err
	}
	return &Services{Config: cfg, Log: log, Tiers: tiers, Engines: pool}, nil
}

// Handlers builds the HTTP layer. The calibration queue is optional.
func (s *Services) Handlers(ctx context.Context) *Handlers {
	hub := NewHub()
	deps := SessionDeps{
		Engine: s.Engines,
		Tiers:  s.Tiers,
		Params: s.Config.Selector.Params,
		Events: hub,
		Log:    s.Log,
	}
	h := &Handlers{
		Sessions: NewSessionStore(deps, s.Config.Selector.Seed),
		Hub:      hub,
		Log:      s.Log,
	}
	if s.Config.QueueURL != "" {
		q, err := NewCalibrationQueue(ctx, s.Config.QueueURL)
		if err != nil {
			s.Log.Error().Err(err).Msg("calibration queue disabled")
		} else {
			h.Queue = q
		}
	} else {
		s.Log.Info().Msg("QUEUE_URL missing in config; POST /calibrations disabled")
	}
	return h
}

func (s *Services) Close() {
	s.Engines.Close()
	if db != nil {
		_ = db.Close()
	}
}
