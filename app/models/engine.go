package models

type UCIScore struct {
	// At most one of these is set:
	CP   *int `json:"cp,omitempty"`   // centipawns, positive means advantage for side to move
	Mate *int `json:"mate,omitempty"` // in N, sign indicates who is mating (+ means side to move mates)
}

// Known reports whether the engine sent any score at all.
func (s UCIScore) Known() bool {
	return s.CP != nil || s.Mate != nil
}

// UCILine is one "info ... multipv N ... pv ..." line as last reported for
// its multipv slot. Move is empty when the engine sent a score without a pv.
type UCILine struct {
	MultiPV int      `json:"multipv"`
	Depth   int      `json:"depth"`
	Move    string   `json:"move"`
	Score   UCIScore `json:"score"`
}

// PovScore is a side-to-move relative score that can be viewed from either colour.
type PovScore struct {
	Relative  UCIScore
	WhiteTurn bool
}

// White returns the score from White's point of view.
func (p PovScore) White() UCIScore {
	if p.WhiteTurn {
		return p.Relative
	}
	return p.Relative.negate()
}

// Black returns the score from Black's point of view.
func (p PovScore) Black() UCIScore {
	if !p.WhiteTurn {
		return p.Relative
	}
	return p.Relative.negate()
}

func (s UCIScore) negate() UCIScore {
	var out UCIScore
	if s.CP != nil {
		cp := -*s.CP
		out.CP = &cp
	}
	if s.Mate != nil {
		m := -*s.Mate
		out.Mate = &m
	}
	return out
}

// EngineSettings are the options sent once after the UCI handshake.
type EngineSettings struct {
	Threads int `json:"threads"`
	HashMB  int `json:"hash_mb"`
}
