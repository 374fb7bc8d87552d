package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example/cpl-trainer/app"

	"github.com/rs/zerolog/log"
)

func main() {
	svc, err := app.Boot()
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := svc.Handlers(ctx)
	go h.Sessions.RunSweeper(ctx, svc.Config.Sessions.IdleTTL)

	srv := &http.Server{
		Addr:    svc.Config.HTTP.Addr,
		Handler: app.NewRouter(h),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	svc.Log.Info().Str("addr", srv.Addr).Int("engines", svc.Engines.Size()).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		svc.Log.Error().Err(err).Msg("server stopped")
	}
}
