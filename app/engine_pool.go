package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"example/cpl-trainer/app/config"
	"example/cpl-trainer/app/models"

	"github.com/rs/zerolog"
)

// engineConn is one engine conversation. *UCIEngine satisfies it.
type engineConn interface {
	Analyzer
	NewGame() error
	Close() error
}

// EnginePool hands each call an engine nobody else is using, so sessions
// never interleave commands on one conversation. A conversation that fails is
// closed and replaced once; the failing call still reports
// ErrEngineUnavailable.
type EnginePool struct {
	idle    chan engineConn
	live    atomic.Int32
	dial    func() (engineConn, error)
	log     zerolog.Logger
	closeMu sync.Mutex
	closed  bool
}

// NewEnginePool starts cfg.PoolSize engines.
func NewEnginePool(cfg config.EngineConfig, log zerolog.Logger) (*EnginePool, error) {
	settings := models.EngineSettings{Threads: cfg.Threads, HashMB: cfg.HashMB}
	dial := func() (engineConn, error) {
		return NewUCIEngine(cfg.Path, settings, log)
	}
	return newEnginePool(cfg.PoolSize, dial, log)
}

func newEnginePool(size int, dial func() (engineConn, error), log zerolog.Logger) (*EnginePool, error) {
	if size <= 0 {
		size = 1
	}
	p := &EnginePool{
		idle: make(chan engineConn, size),
		dial: dial,
		log:  log,
	}
	for i := 0; i < size; i++ {
		eng, err := dial()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("starting engine %d: %w", i, err)
		}
		if err := eng.NewGame(); err != nil {
			_ = eng.Close()
			p.Close()
			return nil, fmt.Errorf("starting engine %d: %w", i, err)
		}
		p.live.Add(1)
		p.idle <- eng
	}
	log.Info().Int("engines", size).Msg("engine pool started")
	return p, nil
}

func (p *EnginePool) Analyze(ctx context.Context, fen string, depth, breadth int) ([]models.UCILine, error) {
	var lines []models.UCILine
	err := p.with(ctx, func(eng engineConn) error {
		var err error
		lines, err = eng.Analyze(ctx, fen, depth, breadth)
		return err
	})
	return lines, err
}

func (p *EnginePool) BestMove(ctx context.Context, fen string, depth int) (string, error) {
	var best string
	err := p.with(ctx, func(eng engineConn) error {
		var err error
		best, err = eng.BestMove(ctx, fen, depth)
		return err
	})
	return best, err
}

// Size is the number of engines still alive.
func (p *EnginePool) Size() int {
	return int(p.live.Load())
}

func (p *EnginePool) with(ctx context.Context, fn func(engineConn) error) error {
	if p.live.Load() == 0 {
		return fmt.Errorf("%w: no engines left in pool", ErrEngineUnavailable)
	}
	var eng engineConn
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e, ok := <-p.idle:
		if !ok {
			return fmt.Errorf("%w: pool closed", ErrEngineUnavailable)
		}
		eng = e
	}

	err := fn(eng)
	if errors.Is(err, ErrEngineUnavailable) {
		p.replace(eng, err)
		return err
	}
	p.release(eng)
	return err
}

func (p *EnginePool) replace(dead engineConn, cause error) {
	_ = dead.Close()
	p.log.Warn().Err(cause).Msg("engine failed, starting a replacement")

	fresh, err := p.dial()
	if err == nil {
		if err = fresh.NewGame(); err != nil {
			_ = fresh.Close()
		}
	}
	if err != nil {
		left := p.live.Add(-1)
		p.log.Error().Err(err).Int32("remaining", left).Msg("engine replacement failed")
		if left == 0 {
			p.Close()
		}
		return
	}
	p.release(fresh)
}

func (p *EnginePool) release(eng engineConn) {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		_ = eng.Close()
		return
	}
	p.idle <- eng
}

// Close stops idle engines; busy engines are closed when they are returned.
func (p *EnginePool) Close() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for {
		select {
		case eng := <-p.idle:
			_ = eng.Close()
		default:
			// wake anyone still waiting for an engine
			close(p.idle)
			return
		}
	}
}
