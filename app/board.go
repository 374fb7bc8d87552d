package app

import (
	"fmt"

	"github.com/notnil/chess"
)

// NeedsPromotion reports whether a piece of type pt landing on dst must promote.
func NeedsPromotion(pt chess.PieceType, dst chess.Square) bool {
	if pt != chess.Pawn {
		return false
	}
	r := dst.Rank()
	return r == chess.Rank1 || r == chess.Rank8
}

// ResolveHumanMove turns UCI text into a legal move for pos. A pawn reaching
// the last rank without a promotion piece is promoted to a queen.
func ResolveHumanMove(pos *chess.Position, uci string) (*chess.Move, error) {
	m, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, uci)
	}
	if legal := findLegal(pos, m.S1(), m.S2(), m.Promo()); legal != nil {
		return legal, nil
	}
	if m.Promo() == chess.NoPieceType && NeedsPromotion(pos.Board().Piece(m.S1()).Type(), m.S2()) {
		if legal := findLegal(pos, m.S1(), m.S2(), chess.Queen); legal != nil {
			return legal, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
}

// ResolveEngineMove is ResolveHumanMove without the promotion default.
func ResolveEngineMove(pos *chess.Position, uci string) (*chess.Move, error) {
	m, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, fmt.Errorf("%w: engine sent %q", ErrEngineUnavailable, uci)
	}
	legal := findLegal(pos, m.S1(), m.S2(), m.Promo())
	if legal == nil {
		return nil, fmt.Errorf("%w: engine sent illegal move %s", ErrEngineUnavailable, uci)
	}
	return legal, nil
}

// IsLegal reports whether uci (exactly as written) is legal in pos.
func IsLegal(pos *chess.Position, uci string) bool {
	m, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return false
	}
	return findLegal(pos, m.S1(), m.S2(), m.Promo()) != nil
}

func IsGameOver(g *chess.Game) bool {
	return g.Outcome() != chess.NoOutcome
}

func findLegal(pos *chess.Position, s1, s2 chess.Square, promo chess.PieceType) *chess.Move {
	for _, v := range pos.ValidMoves() {
		if v.S1() == s1 && v.S2() == s2 && v.Promo() == promo {
			return v
		}
	}
	return nil
}

func uciOf(m *chess.Move) string {
	return chess.UCINotation{}.Encode(nil, m)
}

func sanOf(pos *chess.Position, m *chess.Move) string {
	return chess.AlgebraicNotation{}.Encode(pos, m)
}

func colorCode(c chess.Color) string {
	if c == chess.Black {
		return "b"
	}
	return "w"
}
