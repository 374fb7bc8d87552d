package app

import (
	"context"

	"example/cpl-trainer/app/models"

	"github.com/notnil/chess"
)

// EvaluateHumanMove estimates the centipawn loss of m played in pos. If m is
// not among the ranked lines, the position after m is searched on its own and
// its score, inverted back to the mover, stands in for the missing line.
func EvaluateHumanMove(ctx context.Context, eng Analyzer, pos *chess.Position, m *chess.Move, tier models.SkillTier) (int, error) {
	breadth := max(tier.Breadth, HumanEvalMinBreadth)
	ranked, err := RankCandidates(ctx, eng, pos, tier.Depth, breadth)
	if err != nil {
		return 0, err
	}
	if len(ranked) == 0 {
		return 0, nil
	}
	best := ranked[0].Score

	played := uciOf(m)
	for _, c := range ranked {
		if c.Move == played {
			return lossOf(best, c.Score), nil
		}
	}

	after := pos.Update(m)
	lines, err := eng.Analyze(ctx, after.String(), tier.Depth, 1)
	if err != nil {
		return 0, err
	}
	for _, l := range lines {
		if !l.Score.Known() {
			continue
		}
		whiteToMove := after.Turn() == chess.White
		inverted := -ScoreToCP(models.PovScore{Relative: l.Score, WhiteTurn: whiteToMove}, whiteToMove)
		return lossOf(best, inverted), nil
	}
	return 0, nil
}
