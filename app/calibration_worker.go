package app

import (
	"context"
	"errors"
	"time"

	"example/cpl-trainer/app/models"

	"github.com/rs/zerolog"
)

type jobSource interface {
	Receive(ctx context.Context, maxMessages, visibility int32) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
}

// CalibrationWorker long-polls the queue and runs one job at a time to
// completion.
type CalibrationWorker struct {
	Queue      jobSource
	Engine     Analyzer
	Tiers      *TierTable
	Params     models.SelectorParams
	Workers    int
	JobTimeout time.Duration
	Log        zerolog.Logger
}

// Run loops until ctx is cancelled.
func (w *CalibrationWorker) Run(ctx context.Context) error {
	w.Log.Info().Msg("calibration worker started")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		recvCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		batch, err := w.Queue.Receive(recvCtx, 1, w.visibility())
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Error().Err(err).Msg("ReceiveMessage error")
			sleepCtx(ctx, 5*time.Second)
			continue
		}
		if len(batch) == 0 {
			sleepCtx(ctx, 2*time.Second)
			continue
		}
		for _, d := range batch {
			if w.handle(ctx, d) {
				if err := w.Queue.Ack(ctx, d); err != nil {
					w.Log.Error().Err(err).Str("job", d.Job.JobID).Msg("failed to delete SQS message")
				}
			}
		}
	}
}

// handle runs one delivery and reports whether it should be removed from the
// queue. Engine failures leave the message for redelivery.
func (w *CalibrationWorker) handle(ctx context.Context, d Delivery) bool {
	if d.Err != nil {
		w.Log.Error().Err(d.Err).Msg("dropping undecodable message")
		return true
	}
	job := d.Job
	log := w.Log.With().Str("job", job.JobID).Str("tier", job.Tier).Logger()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout())
	defer cancel()

	report, err := Calibrate(jobCtx, w.Engine, w.Tiers, w.Params, job, w.Workers, log)
	switch {
	case err == nil:
	case errors.Is(err, ErrEngineUnavailable), ctx.Err() != nil:
		log.Error().Err(err).Msg("calibration interrupted, leaving job for retry")
		return false
	default:
		log.Error().Err(err).Msg("calibration failed")
		if ferr := FailCalibration(ctx, job.JobID); ferr != nil {
			log.Error().Err(ferr).Msg("marking calibration failed")
		}
		return true
	}

	if err := SaveCalibration(ctx, job.JobID, report); err != nil {
		log.Error().Err(err).Msg("saving calibration")
		return false
	}
	return true
}

const (
	defaultJobTimeout = 10 * time.Minute
	// visibilityMargin covers saving the result and deleting the message.
	visibilityMargin = 2 * time.Minute
)

func (w *CalibrationWorker) jobTimeout() time.Duration {
	if w.JobTimeout <= 0 {
		return defaultJobTimeout
	}
	return w.JobTimeout
}

// visibility keeps a received message hidden for longer than the job may
// run. Jobs are taken one at a time so nothing waits behind another job.
func (w *CalibrationWorker) visibility() int32 {
	return int32((w.jobTimeout() + visibilityMargin) / time.Second)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
