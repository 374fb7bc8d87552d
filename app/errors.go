package app

import "errors"

var (
	// ErrEngineUnavailable means the analysis engine died or broke protocol.
	// It is fatal to the session that saw it.
	ErrEngineUnavailable = errors.New("analysis engine unavailable")
	ErrIllegalMove       = errors.New("move is not legal")
	ErrGameOver          = errors.New("game is over")
	ErrNotEngineTurn     = errors.New("not the engine's turn")
	ErrUnknownTier       = errors.New("unknown skill tier")
	ErrInvalidTier       = errors.New("invalid skill tier")
	ErrSessionNotFound   = errors.New("session not found")
)

var (
	ErrCalibrationNotFound = errors.New("calibration run not found")
	// ErrNoStorage means the request needs Postgres and none is configured.
	ErrNoStorage = errors.New("calibration storage not configured")
	ErrNoQueue   = errors.New("calibration queue not configured")
)

// ErrSearchInFlight rejects a mutation while the session's engine is searching.
var ErrSearchInFlight = errors.New("engine is still thinking")
