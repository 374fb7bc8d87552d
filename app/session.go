package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"example/cpl-trainer/app/models"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"
)

// SessionDeps are shared by every session of a process.
type SessionDeps struct {
	Engine Analyzer
	Tiers  *TierTable
	Params models.SelectorParams
	Events Publisher
	Log    zerolog.Logger
}

type SessionOptions struct {
	Tier       string // empty selects the table default
	HumanColor chess.Color
	Analysis   bool
	StartFEN   string // empty is the standard start position
	Seed       uint64 // 0 seeds from the clock
}

// Session is one game between a human and the emulated engine. It owns its
// tilt memory and running averages. Readers never wait for an engine search.
type Session struct {
	ID string

	mu         sync.Mutex
	deps       SessionDeps
	tier       models.SkillTier
	selector   *Selector
	tilt       Tilt
	game       *chess.Game
	startFEN   string
	humanColor chess.Color
	analysis   bool
	stats      models.CPLStats
	failed     error
	searching  bool // an engine search runs without mu held
	log        zerolog.Logger
}

// NewSession starts a game. If the human plays Black the engine makes the
// first move before NewSession returns.
func NewSession(ctx context.Context, id string, deps SessionDeps, opts SessionOptions) (*Session, error) {
	tier := deps.Tiers.Default()
	if opts.Tier != "" {
		var err error
		if tier, err = deps.Tiers.Get(opts.Tier); err != nil {
			return nil, err
		}
	}
	if opts.HumanColor == chess.NoColor {
		opts.HumanColor = chess.White
	}

	s := &Session{
		ID:         id,
		deps:       deps,
		tier:       tier,
		selector:   NewSelector(deps.Params, NewGaussianSampler(opts.Seed)),
		startFEN:   opts.StartFEN,
		humanColor: opts.HumanColor,
		analysis:   opts.Analysis,
		log:        deps.Log.With().Str("session", id).Logger(),
	}
	g, err := s.newGame()
	if err != nil {
		return nil, err
	}
	s.game = g

	// not shared yet, so no search flag is needed
	if s.engineOpens() {
		if _, err := s.engineTurn(ctx); err != nil {
			return nil, err
		}
	}
	s.log.Info().Str("tier", tier.Name).Str("human", s.humanColor.Name()).Msg("session started")
	return s, nil
}

// PlayHuman applies the human's move and, unless the game ended, the
// engine's reply. Illegal moves leave the session untouched. The session
// lock is not held while the engine searches; a second move submitted
// meanwhile fails with ErrSearchInFlight.
func (s *Session) PlayHuman(ctx context.Context, uci string) (models.TurnResult, error) {
	s.mu.Lock()
	if err := s.playable(); err != nil {
		s.mu.Unlock()
		return models.TurnResult{}, err
	}
	pos := s.game.Position()
	if pos.Turn() != s.humanColor {
		s.mu.Unlock()
		return models.TurnResult{}, fmt.Errorf("%w: %s to move", ErrIllegalMove, pos.Turn().Name())
	}
	m, err := ResolveHumanMove(pos, uci)
	if err != nil {
		s.mu.Unlock()
		return models.TurnResult{}, err
	}
	tier, analysis := s.tier, s.analysis
	s.searching = true
	s.mu.Unlock()
	defer s.searchDone()

	human := models.PlyReport{UCI: uciOf(m), SAN: sanOf(pos, m), Color: colorCode(pos.Turn())}
	if analysis {
		loss, err := EvaluateHumanMove(ctx, s.deps.Engine, pos, m, tier)
		if err != nil {
			s.mu.Lock()
			err = s.engineFailed(err)
			s.mu.Unlock()
			return models.TurnResult{}, err
		}
		human.CPL, human.Scored = loss, true
	}

	s.mu.Lock()
	if err := s.game.Move(m); err != nil {
		s.mu.Unlock()
		return models.TurnResult{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if human.Scored {
		s.stats.HumanSum += human.CPL
		s.stats.HumanCount++
	}
	s.publish(models.EventMove, human)
	s.log.Debug().Str("move", human.SAN).Int("cpl", human.CPL).Msg("human move")
	over := IsGameOver(s.game)
	s.mu.Unlock()

	res := models.TurnResult{Human: human}
	if !over {
		reply, err := s.engineTurn(ctx)
		if err != nil {
			res.State = s.State()
			return res, err
		}
		res.Engine = &reply
	}
	res.State = s.State()
	return res, nil
}

// EngineMove plays the emulated side when it is its turn, e.g. after an
// interrupted reply.
func (s *Session) EngineMove(ctx context.Context) (models.PlyReport, error) {
	s.mu.Lock()
	if err := s.playable(); err != nil {
		s.mu.Unlock()
		return models.PlyReport{}, err
	}
	if s.game.Position().Turn() == s.humanColor {
		s.mu.Unlock()
		return models.PlyReport{}, ErrNotEngineTurn
	}
	s.searching = true
	s.mu.Unlock()
	defer s.searchDone()

	return s.engineTurn(ctx)
}

// playable is called with s.mu held.
func (s *Session) playable() error {
	if s.failed != nil {
		return s.failed
	}
	if s.searching {
		return ErrSearchInFlight
	}
	if IsGameOver(s.game) {
		return ErrGameOver
	}
	return nil
}

func (s *Session) searchDone() {
	s.mu.Lock()
	s.searching = false
	s.mu.Unlock()
}

// engineTurn searches without the session lock and applies the result under
// it. Callers own the search flag, so the game and tilt cannot change
// underneath the search.
func (s *Session) engineTurn(ctx context.Context) (models.PlyReport, error) {
	s.mu.Lock()
	pos := s.game.Position()
	tier, tilt, analysis := s.tier, s.tilt, s.analysis
	s.mu.Unlock()

	pick, err := PickEngineMove(ctx, s.deps.Engine, s.selector, pos, tier, &tilt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return models.PlyReport{}, s.engineFailed(err)
	}
	m, err := ResolveEngineMove(pos, pick.Move)
	if err != nil {
		return models.PlyReport{}, s.engineFailed(err)
	}
	reply := models.PlyReport{
		UCI:    uciOf(m),
		SAN:    sanOf(pos, m),
		Color:  colorCode(pos.Turn()),
		CPL:    pick.AttributedCPL,
		Scored: analysis,
	}
	if err := s.game.Move(m); err != nil {
		return models.PlyReport{}, s.engineFailed(fmt.Errorf("%w: %v", ErrEngineUnavailable, err))
	}
	s.tilt = tilt
	if analysis {
		s.stats.EngineSum += pick.AttributedCPL
		s.stats.EngineCount++
	}
	s.publish(models.EventMove, reply)
	s.log.Debug().Str("move", reply.SAN).Int("cpl", reply.CPL).Int("tilt", tilt.Last()).Msg("engine move")
	return reply, nil
}

// engineFailed makes engine loss permanent for this session. Other errors,
// such as a cancelled request, pass through. Called with s.mu held.
func (s *Session) engineFailed(err error) error {
	if errors.Is(err, ErrEngineUnavailable) {
		s.failed = err
		s.log.Error().Err(err).Msg("engine unavailable, session closed for play")
	}
	return err
}

// engineOpens reports whether the engine owes the first move of a fresh game.
func (s *Session) engineOpens() bool {
	return len(s.game.Moves()) == 0 && s.game.Position().Turn() != s.humanColor && !IsGameOver(s.game)
}

// UndoPair takes back up to two plies. Averages and tilt are left alone.
func (s *Session) UndoPair() (models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searching {
		return models.SessionState{}, ErrSearchInFlight
	}

	moves := s.game.Moves()
	keep := max(0, len(moves)-2)
	g, err := s.newGame()
	if err != nil {
		return models.SessionState{}, err
	}
	for _, m := range moves[:keep] {
		replay, err := ResolveEngineMove(g.Position(), uciOf(m))
		if err != nil {
			return models.SessionState{}, err
		}
		if err := g.Move(replay); err != nil {
			return models.SessionState{}, err
		}
	}
	s.game = g
	st := s.state()
	s.publish(models.EventReset, st)
	return st, nil
}

// Reset starts a fresh game with cleared averages and tilt.
func (s *Session) Reset(ctx context.Context) (models.SessionState, error) {
	s.mu.Lock()
	if s.searching {
		s.mu.Unlock()
		return models.SessionState{}, ErrSearchInFlight
	}
	g, err := s.newGame()
	if err != nil {
		s.mu.Unlock()
		return models.SessionState{}, err
	}
	s.game = g
	s.stats = models.CPLStats{}
	s.tilt.Reset()
	s.publish(models.EventReset, s.state())
	opens := s.failed == nil && s.engineOpens()
	if opens {
		s.searching = true
	}
	s.mu.Unlock()

	if opens {
		defer s.searchDone()
		if _, err := s.engineTurn(ctx); err != nil {
			return s.State(), err
		}
	}
	return s.State(), nil
}

func (s *Session) SetTier(name string) error {
	tier, err := s.deps.Tiers.Get(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tier = tier
	s.publish(models.EventSettings, s.state())
	return nil
}

func (s *Session) SetAnalysis(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = on
	s.publish(models.EventSettings, s.state())
}

func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() models.SessionState {
	pos := s.game.Position()
	st := models.SessionState{
		ID:         s.ID,
		FEN:        pos.String(),
		SideToMove: colorCode(pos.Turn()),
		HumanColor: colorCode(s.humanColor),
		Tier:       s.tier.Name,
		Analysis:   s.analysis,
		MoveList:   numberedMoveList(s.game),
		Outcome:    string(s.game.Outcome()),
		AvgHuman:   s.stats.AvgHuman(),
		AvgEngine:  s.stats.AvgEngine(),
		Stats:      s.stats,
		Tilt:       s.tilt.Last(),
	}
	if s.game.Outcome() != chess.NoOutcome {
		st.Method = s.game.Method().String()
	}
	return st
}

func (s *Session) publish(eventType string, payload any) {
	if s.deps.Events != nil {
		s.deps.Events.Publish(s.ID, eventType, payload)
	}
}

func (s *Session) newGame() (*chess.Game, error) {
	if s.startFEN == "" {
		return chess.NewGame(), nil
	}
	opt, err := chess.FEN(s.startFEN)
	if err != nil {
		return nil, fmt.Errorf("invalid start position: %w", err)
	}
	return chess.NewGame(opt), nil
}

// numberedMoveList renders "1. e4 e5" rows from the game's start position,
// using "1. ... e5" when the first recorded move is Black's.
func numberedMoveList(g *chess.Game) []string {
	positions := g.Positions()
	var rows []string
	for i, m := range g.Moves() {
		pos := positions[i]
		san := sanOf(pos, m)
		num := fullMoveNumber(pos)
		switch {
		case pos.Turn() == chess.White:
			rows = append(rows, fmt.Sprintf("%d. %s", num, san))
		case len(rows) == 0:
			rows = append(rows, fmt.Sprintf("%d. ... %s", num, san))
		default:
			rows[len(rows)-1] += "   " + san
		}
	}
	return rows
}

// fullMoveNumber reads the sixth FEN field; chess.Position doesn't expose it.
func fullMoveNumber(pos *chess.Position) int {
	parts := strings.Split(pos.String(), " ")
	n := 1
	if len(parts) >= 6 {
		fmt.Sscanf(parts[5], "%d", &n)
	}
	return n
}
