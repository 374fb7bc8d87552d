package models

type CalibrationMessage struct {
	JobID    string `json:"job_id"`
	Tier     string `json:"tier"`
	Games    int    `json:"games"`
	MaxPlies int    `json:"max_plies"`
	Seed     uint64 `json:"seed"` // 0 means time-seeded
}
