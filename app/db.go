package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"example/cpl-trainer/app/config"
	"example/cpl-trainer/app/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

var db *sql.DB

// InitDB opens and pings Postgres. Callers skip it when no host is configured.
func InitDB(cfg config.PostgresConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s",
		cfg.Username,
		cfg.Password,
		cfg.URL,
		cfg.Port,
	)

	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return d, nil
}

// MustInitDB sets the package database or exits the process. Without a
// configured host it leaves storage disabled.
func MustInitDB(cfg config.PostgresConfig, log zerolog.Logger) {
	if !cfg.Enabled() {
		log.Warn().Msg("POSTGRES_URL not set, calibration results will not be stored")
		return
	}
	d, err := InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to postgres")
	}
	log.Info().Str("host", cfg.URL).Msg("Connected to Postgres")
	db = d
}

// CreateCalibration records a queued run and returns its id. Without a
// database the id is still generated so local runs can be logged.
func CreateCalibration(ctx context.Context, job models.CalibrationMessage, targetCPL int) (string, error) {
	if db == nil {
		return uuid.NewString(), nil
	}
	const q = `
        INSERT INTO calibration_runs (tier, games, target_cpl, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id;
    `
	var id string
	if err := db.QueryRowContext(ctx, q, job.Tier, job.Games, targetCPL, models.CalibrationQueued).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// SaveCalibration marks the run done and stores one aggregate row per game.
func SaveCalibration(ctx context.Context, runID string, report models.CalibrationReport) error {
	if db == nil {
		// Allow local runs without a backing DB.
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE calibration_runs
		SET status = $2,
		    moves = $3,
		    measured_cpl = $4,
		    avg_move_ms = $5,
		    finished_at = now()
		WHERE id = $1;
	`, runID, models.CalibrationDone, report.Moves, report.MeasuredCPL, report.AvgMoveTime.Milliseconds())
	if err != nil {
		return err
	}

	// 1) Temp staging table
	_, err = tx.ExecContext(ctx, `
		CREATE TEMP TABLE tmp_calibration_games (
			run_id     UUID,
			game       INT,
			moves      INT,
			cpl_sum    INT,
			avg_cpl    DOUBLE PRECISION
		) ON COMMIT DROP;
	`)
	if err != nil {
		return err
	}

	// 2) COPY per-game aggregates
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"tmp_calibration_games",
		"run_id", "game", "moves", "cpl_sum", "avg_cpl",
	))
	if err != nil {
		return err
	}
	for _, g := range gameAggregates(report) {
		if _, err := stmt.Exec(runID, g.game, g.moves, g.cplSum, g.avg()); err != nil {
			return err
		}
	}
	if _, err := stmt.Exec(); err != nil {
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	// 3) Move into the real table
	_, err = tx.ExecContext(ctx, `
		INSERT INTO calibration_games (run_id, game, moves, cpl_sum, avg_cpl)
		SELECT run_id, game, moves, cpl_sum, avg_cpl
		FROM tmp_calibration_games
		ON CONFLICT (run_id, game) DO NOTHING;
	`)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// FailCalibration marks a run as failed. A run already saved as done is left
// alone, so a late duplicate delivery cannot overwrite its result.
func FailCalibration(ctx context.Context, runID string) error {
	if db == nil {
		return nil
	}
	_, err := db.ExecContext(ctx, `
        UPDATE calibration_runs
        SET status = $2, finished_at = now()
        WHERE id = $1 AND status <> $3;
    `, runID, models.CalibrationFailed, models.CalibrationDone)
	return err
}

func FindCalibration(ctx context.Context, runID string) (models.CalibrationStatus, error) {
	if db == nil {
		return models.CalibrationStatus{}, ErrNoStorage
	}
	if _, err := uuid.Parse(runID); err != nil {
		return models.CalibrationStatus{}, fmt.Errorf("%w: %s", ErrCalibrationNotFound, runID)
	}

	const q = `
        SELECT id, tier, status, games, COALESCE(moves, 0), target_cpl,
               COALESCE(measured_cpl, 0), created_at, finished_at
        FROM calibration_runs
        WHERE id = $1;
    `
	var (
		cs       models.CalibrationStatus
		finished sql.NullTime
	)
	err := db.QueryRowContext(ctx, q, runID).Scan(
		&cs.ID, &cs.Tier, &cs.Status, &cs.Games, &cs.Moves, &cs.TargetCPL,
		&cs.MeasuredCPL, &cs.CreatedAt, &finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CalibrationStatus{}, fmt.Errorf("%w: %s", ErrCalibrationNotFound, runID)
	}
	if err != nil {
		return models.CalibrationStatus{}, err
	}
	if finished.Valid {
		t := finished.Time.UTC()
		cs.FinishedAt = &t
	}
	cs.CreatedAt = cs.CreatedAt.UTC()
	return cs, nil
}

type gameAggregate struct {
	game   int
	moves  int
	cplSum int
}

func (g gameAggregate) avg() float64 {
	if g.moves == 0 {
		return 0
	}
	return float64(g.cplSum) / float64(g.moves)
}

// gameAggregates folds the per-move samples into per-game totals, in game order.
func gameAggregates(report models.CalibrationReport) []gameAggregate {
	out := make([]gameAggregate, report.Games)
	for i := range out {
		out[i].game = i
	}
	for _, s := range report.Samples {
		if s.Game < 0 || s.Game >= len(out) {
			continue
		}
		out[s.Game].moves++
		out[s.Game].cplSum += s.CPL
	}
	return out
}
