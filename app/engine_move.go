package app

import (
	"context"
	"fmt"

	"example/cpl-trainer/app/models"

	"github.com/notnil/chess"
)

// PickEngineMove chooses the emulated side's move in pos. When the engine
// offers no ranked lines it falls back to a plain best-move search at the
// tier's depth and attributes no loss.
func PickEngineMove(ctx context.Context, eng Analyzer, sel *Selector, pos *chess.Position, tier models.SkillTier, tilt *Tilt) (models.SelectionResult, error) {
	ranked, err := RankCandidates(ctx, eng, pos, tier.Depth, tier.Breadth)
	if err != nil {
		return models.SelectionResult{}, err
	}
	if len(ranked) > 0 {
		return sel.Select(ranked, tier, tilt), nil
	}

	best, err := eng.BestMove(ctx, pos.String(), tier.Depth)
	if err != nil {
		return models.SelectionResult{}, err
	}
	if best == "" {
		return models.SelectionResult{}, fmt.Errorf("%w: no move for a position with legal moves", ErrEngineUnavailable)
	}
	tilt.Record(0)
	return models.SelectionResult{Move: best}, nil
}
