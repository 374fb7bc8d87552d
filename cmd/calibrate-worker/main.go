package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"example/cpl-trainer/app"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}

func run() error {
	svc, err := app.Boot()
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := app.NewCalibrationQueue(ctx, svc.Config.QueueURL)
	if err != nil {
		return fmt.Errorf("QUEUE_URL environment variable is required: %w", err)
	}
	svc.Log.Info().Str("queue", svc.Config.QueueURL).Msg("Worker started, listening on SQS queue")

	w := &app.CalibrationWorker{
		Queue:   queue,
		Engine:  svc.Engines,
		Tiers:   svc.Tiers,
		Params:  svc.Config.Selector.Params,
		Workers: svc.Engines.Size(),
		Log:     svc.Log,
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
