package models

import "time"

// CalibrationStatus summarizes a stored calibration run.
type CalibrationStatus struct {
	ID          string     `json:"id"`
	Tier        string     `json:"tier"`
	Status      string     `json:"status"`
	Games       int        `json:"games"`
	Moves       int        `json:"moves"`
	TargetCPL   int        `json:"target_cpl"`
	MeasuredCPL float64    `json:"measured_cpl"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

const (
	CalibrationQueued = "queued"
	CalibrationDone   = "done"
	CalibrationFailed = "failed"
)

// CalibrationReport is the outcome of a calibration run.
type CalibrationReport struct {
	Tier        string        `json:"tier"`
	TargetCPL   int           `json:"target_cpl"`
	Games       int           `json:"games"`
	Moves       int           `json:"moves"`
	MeasuredCPL float64       `json:"measured_cpl"`
	Samples     []MoveSample  `json:"-"`
	AvgMoveTime time.Duration `json:"avg_move_time"`
}

// MoveSample is one emulated move recorded during calibration.
type MoveSample struct {
	Game int
	Ply  int
	UCI  string
	CPL  int
}
