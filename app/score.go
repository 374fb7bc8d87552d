package app

import "example/cpl-trainer/app/models"

// ScoreToCP collapses an evaluation into one centipawn value from the
// requested side's point of view. Forced mates saturate at +-MateScore; a
// mate distance of zero or none counts against the requested side.
func ScoreToCP(score models.PovScore, povWhite bool) int {
	s := score.Black()
	if povWhite {
		s = score.White()
	}
	if s.Mate != nil {
		if *s.Mate > 0 {
			return models.MateScore
		}
		return -models.MateScore
	}
	if s.CP == nil {
		return 0
	}
	return *s.CP
}
