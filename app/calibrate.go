package app

import (
	"context"
	"fmt"
	"time"

	"example/cpl-trainer/app/models"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultCalibrationPlies = 80

// Calibrate plays job.Games self-play games in which both sides are emulated
// at job.Tier, each side with its own tilt memory, and measures the average
// attributed loss per move. At most workers games run at once.
func Calibrate(ctx context.Context, eng Analyzer, tiers *TierTable, params models.SelectorParams, job models.CalibrationMessage, workers int, log zerolog.Logger) (models.CalibrationReport, error) {
	tier, err := tiers.Get(job.Tier)
	if err != nil {
		return models.CalibrationReport{}, err
	}
	if job.Games <= 0 {
		return models.CalibrationReport{}, fmt.Errorf("games must be positive, got %d", job.Games)
	}
	maxPlies := job.MaxPlies
	if maxPlies <= 0 {
		maxPlies = defaultCalibrationPlies
	}
	if workers <= 0 {
		workers = 1
	}

	log = log.With().Str("tier", tier.Name).Str("job", job.JobID).Logger()
	log.Info().Int("games", job.Games).Int("workers", workers).Msg("calibration started")

	perGame := make([][]models.MoveSample, job.Games)
	elapsed := make([]time.Duration, job.Games)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < job.Games; i++ {
		i := i
		g.Go(func() error {
			samples, took, err := selfPlay(gctx, eng, params, tier, job.Seed, i, maxPlies)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			perGame[i] = samples
			elapsed[i] = took
			log.Debug().Int("game", i).Int("moves", len(samples)).Msg("calibration game finished")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.CalibrationReport{}, err
	}

	report := models.CalibrationReport{Tier: tier.Name, TargetCPL: tier.TargetCPL, Games: job.Games}
	var total time.Duration
	sum := 0
	for i, samples := range perGame {
		report.Samples = append(report.Samples, samples...)
		for _, s := range samples {
			sum += s.CPL
		}
		total += elapsed[i]
	}
	report.Moves = len(report.Samples)
	if report.Moves > 0 {
		report.MeasuredCPL = float64(sum) / float64(report.Moves)
		report.AvgMoveTime = total / time.Duration(report.Moves)
	}
	log.Info().Int("moves", report.Moves).Float64("measured_cpl", report.MeasuredCPL).Int("target_cpl", tier.TargetCPL).Msg("calibration finished")
	return report, nil
}

// selfPlay plays one game and returns one sample per emulated move plus the
// time spent choosing moves.
func selfPlay(ctx context.Context, eng Analyzer, params models.SelectorParams, tier models.SkillTier, seed uint64, game, maxPlies int) ([]models.MoveSample, time.Duration, error) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	base := seed + uint64(game)*2
	white := NewSelector(params, NewGaussianSampler(base))
	black := NewSelector(params, NewGaussianSampler(base+1))
	var whiteTilt, blackTilt Tilt

	cg := chess.NewGame()
	var samples []models.MoveSample
	var took time.Duration
	for ply := 0; ply < maxPlies && !IsGameOver(cg); ply++ {
		pos := cg.Position()
		sel, tilt := white, &whiteTilt
		if pos.Turn() == chess.Black {
			sel, tilt = black, &blackTilt
		}

		start := time.Now()
		pick, err := PickEngineMove(ctx, eng, sel, pos, tier, tilt)
		took += time.Since(start)
		if err != nil {
			return nil, 0, err
		}
		m, err := ResolveEngineMove(pos, pick.Move)
		if err != nil {
			return nil, 0, err
		}
		if err := cg.Move(m); err != nil {
			return nil, 0, err
		}
		samples = append(samples, models.MoveSample{Game: game, Ply: ply + 1, UCI: pick.Move, CPL: pick.AttributedCPL})
	}
	return samples, took, nil
}
