package app

import (
	"context"
	"sort"

	"example/cpl-trainer/app/models"

	"github.com/notnil/chess"
)

// RankCandidates asks the engine for up to breadth lines at depth and returns
// them best first, scored from the point of view of the side to move in pos.
// Lines without a move or a score are dropped; a short or empty result is not
// an error.
func RankCandidates(ctx context.Context, eng Analyzer, pos *chess.Position, depth, breadth int) ([]models.AnalysisLine, error) {
	raw, err := eng.Analyze(ctx, pos.String(), depth, breadth)
	if err != nil {
		return nil, err
	}

	whiteToMove := pos.Turn() == chess.White
	lines := make([]models.AnalysisLine, 0, len(raw))
	for _, l := range raw {
		if l.Move == "" || !l.Score.Known() {
			continue
		}
		cp := ScoreToCP(models.PovScore{Relative: l.Score, WhiteTurn: whiteToMove}, whiteToMove)
		lines = append(lines, models.AnalysisLine{Move: l.Move, Score: cp})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Score > lines[j].Score })
	return lines, nil
}
