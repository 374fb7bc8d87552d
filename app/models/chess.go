package models

// AnalysisLine is one ranked candidate: a UCI move and its score in
// centipawns from the mover's point of view (mates saturate at +-MateScore).
type AnalysisLine struct {
	Move  string `json:"move"`
	Score int    `json:"score"`
}

const MateScore = 100000

// SelectionResult is the move picked for the emulated side and the loss it incurs.
type SelectionResult struct {
	Move          string `json:"move"`
	AttributedCPL int    `json:"attributed_cpl"`
}

// PlyReport describes one applied ply.
type PlyReport struct {
	UCI   string `json:"uci"`
	SAN   string `json:"san"`
	Color string `json:"color"` // "w" or "b"
	CPL   int    `json:"cpl"`
	// Scored is false when no loss was attributed (analysis disabled).
	Scored bool `json:"scored"`
}

// TurnResult is what a human move produces: the move itself and, unless the
// game ended, the emulated reply.
type TurnResult struct {
	Human  PlyReport    `json:"human"`
	Engine *PlyReport   `json:"engine,omitempty"`
	State  SessionState `json:"state"`
}

// CPLStats are running sums kept by the session, not by the selector.
type CPLStats struct {
	HumanSum    int `json:"human_sum"`
	HumanCount  int `json:"human_count"`
	EngineSum   int `json:"engine_sum"`
	EngineCount int `json:"engine_count"`
}

func (s CPLStats) AvgHuman() float64 {
	if s.HumanCount == 0 {
		return 0
	}
	return float64(s.HumanSum) / float64(s.HumanCount)
}

func (s CPLStats) AvgEngine() float64 {
	if s.EngineCount == 0 {
		return 0
	}
	return float64(s.EngineSum) / float64(s.EngineCount)
}

// SessionState is a snapshot of a game session.
type SessionState struct {
	ID         string   `json:"id"`
	FEN        string   `json:"fen"`
	SideToMove string   `json:"side_to_move"`
	HumanColor string   `json:"human_color"`
	Tier       string   `json:"tier"`
	Analysis   bool     `json:"analysis"`
	MoveList   []string `json:"move_list"`
	Outcome    string   `json:"outcome"`
	Method     string   `json:"method,omitempty"`
	AvgHuman   float64  `json:"avg_cpl_human"`
	AvgEngine  float64  `json:"avg_cpl_engine"`
	Stats      CPLStats `json:"stats"`
	Tilt       int      `json:"tilt"`
}
