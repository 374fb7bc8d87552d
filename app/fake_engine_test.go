package app

import (
	"context"
	"fmt"
	"sync"

	"example/cpl-trainer/app/models"

	"github.com/notnil/chess"
)

// fakeAnalyzer answers from canned lines keyed by FEN.
type fakeAnalyzer struct {
	mu       sync.Mutex
	lines    map[string][]models.UCILine
	best     map[string]string
	err      error
	analyzes []analyzeCall
	bestCall []string
}

type analyzeCall struct {
	FEN     string
	Depth   int
	Breadth int
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{lines: map[string][]models.UCILine{}, best: map[string]string{}}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, fen string, depth, breadth int) ([]models.UCILine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzes = append(f.analyzes, analyzeCall{FEN: fen, Depth: depth, Breadth: breadth})
	if f.err != nil {
		return nil, f.err
	}
	lines := f.lines[fen]
	if len(lines) > breadth {
		lines = lines[:breadth]
	}
	return lines, nil
}

func (f *fakeAnalyzer) BestMove(ctx context.Context, fen string, depth int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bestCall = append(f.bestCall, fen)
	if f.err != nil {
		return "", f.err
	}
	mv, ok := f.best[fen]
	if !ok {
		return "", fmt.Errorf("fake: no best move for %s", fen)
	}
	return mv, nil
}

func cpLine(pv int, move string, cp int) models.UCILine {
	return models.UCILine{MultiPV: pv, Depth: 12, Move: move, Score: models.UCIScore{CP: &cp}}
}

func mateLine(pv int, move string, n int) models.UCILine {
	return models.UCILine{MultiPV: pv, Depth: 12, Move: move, Score: models.UCIScore{Mate: &n}}
}

// legalMovesAnalyzer ranks the legal moves of any position in generation
// order with scores 50, 40, 30, ... so every FEN has an answer.
type legalMovesAnalyzer struct {
	mu    sync.Mutex
	calls int
	err   error
	empty bool // answer with no lines, forcing the best-move fallback
}

func (a *legalMovesAnalyzer) Analyze(ctx context.Context, fen string, depth, breadth int) ([]models.UCILine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	if a.empty {
		return nil, nil
	}
	moves, err := legalUCI(fen)
	if err != nil {
		return nil, err
	}
	var out []models.UCILine
	for i, mv := range moves {
		if i == breadth {
			break
		}
		out = append(out, cpLine(i+1, mv, 50-10*i))
	}
	return out, nil
}

func (a *legalMovesAnalyzer) BestMove(ctx context.Context, fen string, depth int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	moves, err := legalUCI(fen)
	if err != nil || len(moves) == 0 {
		return "", err
	}
	return moves[0], nil
}

func legalUCI(fen string) ([]string, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range chess.NewGame(opt).ValidMoves() {
		out = append(out, uciOf(m))
	}
	return out, nil
}

// gatedAnalyzer holds every Analyze call until release is closed, then
// answers like legalMovesAnalyzer.
type gatedAnalyzer struct {
	legalMovesAnalyzer
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedAnalyzer() *gatedAnalyzer {
	return &gatedAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
}

func (a *gatedAnalyzer) Analyze(ctx context.Context, fen string, depth, breadth int) ([]models.UCILine, error) {
	a.once.Do(func() { close(a.started) })
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return a.legalMovesAnalyzer.Analyze(ctx, fen, depth, breadth)
}
