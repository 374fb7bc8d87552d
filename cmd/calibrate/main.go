package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"example/cpl-trainer/app"
	"example/cpl-trainer/app/models"

	"github.com/rs/zerolog/log"
)

type options struct {
	tier    string
	games   int
	plies   int
	seed    uint64
	timeout time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.tier, "tier", "", "tier to calibrate (default: DEFAULT_TIER)")
	flag.IntVar(&opts.games, "games", 4, "self-play games")
	flag.IntVar(&opts.plies, "plies", 80, "maximum plies per game")
	flag.Uint64Var(&opts.seed, "seed", 0, "selector seed, 0 for clock")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Minute, "overall time limit")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Error().Err(err).Msg("calibration failed")
		os.Exit(1)
	}
}

func run(opts options) error {
	start := time.Now()
	svc, err := app.Boot()
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer svc.Close()

	job := models.CalibrationMessage{Tier: opts.tier, Games: opts.games, MaxPlies: opts.plies, Seed: opts.seed}
	if job.Tier == "" {
		job.Tier = svc.Tiers.Default().Name
	}
	target, err := svc.Tiers.Get(job.Tier)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if job.JobID, err = app.CreateCalibration(ctx, job, target.TargetCPL); err != nil {
		return fmt.Errorf("creating calibration run: %w", err)
	}
	report, err := app.Calibrate(ctx, svc.Engines, svc.Tiers, svc.Config.Selector.Params, job, svc.Engines.Size(), svc.Log)
	if err != nil {
		if ferr := app.FailCalibration(context.Background(), job.JobID); ferr != nil {
			svc.Log.Error().Err(ferr).Msg("marking calibration failed")
		}
		return err
	}
	if err := app.SaveCalibration(ctx, job.JobID, report); err != nil {
		svc.Log.Error().Err(err).Msg("saving calibration")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	svc.Log.Info().Dur("took", time.Since(start)).Msg("done")
	return nil
}
