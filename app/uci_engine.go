//starts the engine process, speaks UCI over stdin/stdout, and exposes MultiPV analysis and a plain best-move search.

package app

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"example/cpl-trainer/app/models"

	"github.com/rs/zerolog"
)

// Analyzer is the narrow view of the analysis engine the core depends on.
type Analyzer interface {
	// Analyze returns up to breadth principal lines at depth plies. Fewer
	// lines, including none, is a valid answer.
	Analyze(ctx context.Context, fen string, depth, breadth int) ([]models.UCILine, error)
	// BestMove runs a single-line search and returns the engine's move in UCI.
	BestMove(ctx context.Context, fen string, depth int) (string, error)
}

type UCIEngine struct {
	cmd   *exec.Cmd
	in    *bufio.Writer
	out   *bufio.Scanner
	mu    sync.Mutex
	ready bool
	log   zerolog.Logger
}

// stopGrace is how long a cancelled search may take to report bestmove.
const stopGrace = 500 * time.Millisecond

func NewUCIEngine(path string, settings models.EngineSettings, log zerolog.Logger) (*UCIEngine, error) {
	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	e := &UCIEngine{
		cmd: cmd,
		in:  bufio.NewWriter(stdin),
		out: bufio.NewScanner(stdout),
		log: log,
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrEngineUnavailable, path, err)
	}
	if err := e.handshake(settings); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	e.ready = true
	log.Debug().Str("path", path).Int("threads", settings.Threads).Int("hash_mb", settings.HashMB).Msg("engine ready")
	return e, nil
}

// handshake: "uci" -> "uciok", options, then "isready" -> "readyok".
func (e *UCIEngine) handshake(settings models.EngineSettings) error {
	if err := e.send("uci"); err != nil {
		return err
	}
	if err := e.waitFor("uciok"); err != nil {
		return err
	}
	if settings.Threads > 0 {
		if err := e.send(fmt.Sprintf("setoption name Threads value %d", settings.Threads)); err != nil {
			return err
		}
	}
	if settings.HashMB > 0 {
		if err := e.send(fmt.Sprintf("setoption name Hash value %d", settings.HashMB)); err != nil {
			return err
		}
	}
	if err := e.send("isready"); err != nil {
		return err
	}
	return e.waitFor("readyok")
}

func (e *UCIEngine) waitFor(token string) error {
	for e.out.Scan() {
		if strings.TrimSpace(e.out.Text()) == token {
			return nil
		}
	}
	if err := e.out.Err(); err != nil {
		return fmt.Errorf("%w: waiting for %s: %v", ErrEngineUnavailable, token, err)
	}
	return fmt.Errorf("%w: engine closed before %s", ErrEngineUnavailable, token)
}

func (e *UCIEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = false
	_ = e.send("quit")
	if e.cmd == nil {
		return nil
	}
	return e.cmd.Wait()
}

func (e *UCIEngine) NewGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return fmt.Errorf("%w: engine not ready", ErrEngineUnavailable)
	}
	if err := e.send("ucinewgame"); err != nil {
		return err
	}
	if err := e.send("isready"); err != nil {
		return err
	}
	if err := e.waitFor("readyok"); err != nil {
		e.ready = false
		return err
	}
	return nil
}

// Analyze runs a MultiPV search and returns the last reported line for each
// multipv slot, in slot order.
func (e *UCIEngine) Analyze(ctx context.Context, fen string, depth, breadth int) ([]models.UCILine, error) {
	lines, _, err := e.search(ctx, fen, depth, breadth)
	return lines, err
}

// BestMove returns the engine's move for fen at depth, or "" if the position
// has no legal moves.
func (e *UCIEngine) BestMove(ctx context.Context, fen string, depth int) (string, error) {
	_, best, err := e.search(ctx, fen, depth, 1)
	return best, err
}

func (e *UCIEngine) search(ctx context.Context, fen string, depth, multiPV int) ([]models.UCILine, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return nil, "", fmt.Errorf("%w: engine not ready", ErrEngineUnavailable)
	}
	if depth <= 0 {
		depth = 12
	}
	if multiPV <= 0 {
		multiPV = 1
	}

	for _, cmd := range []string{
		fmt.Sprintf("setoption name MultiPV value %d", multiPV),
		fmt.Sprintf("position fen %s", fen),
		fmt.Sprintf("go depth %d", depth),
	} {
		if err := e.send(cmd); err != nil {
			e.ready = false
			return nil, "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
	}

	slots := map[int]models.UCILine{}
	var best string
	var gotBest bool

	// Read until "bestmove ..." or the engine goes away
	readDone := make(chan error, 1)
	go func() {
		for e.out.Scan() {
			line := e.out.Text()
			// Examples we parse:
			// info depth 18 seldepth 24 multipv 2 score cp 23 nodes 1234 pv e2e4 e7e5
			// info depth 20 multipv 1 score mate 3 pv d1h5
			// bestmove e2e4 ponder e7e5
			if strings.HasPrefix(line, "info ") {
				if l, ok := parseInfoLine(line); ok {
					slots[l.MultiPV] = l
				}
			} else if strings.HasPrefix(line, "bestmove") {
				fields := strings.Fields(line)
				if len(fields) >= 2 && fields[1] != "(none)" {
					best = fields[1]
				}
				gotBest = true
				break
			}
		}
		readDone <- e.out.Err()
	}()

	var err error
	select {
	case <-ctx.Done():
		_ = e.send("stop")
		select {
		case err = <-readDone:
			if err == nil {
				err = ctx.Err()
			}
		case <-time.After(stopGrace):
			// reader still owns the scanner; this engine can't be reused
			e.ready = false
			return nil, "", fmt.Errorf("%w: no bestmove after stop: %v", ErrEngineUnavailable, ctx.Err())
		}
		return nil, "", err
	case err = <-readDone:
	}
	if err != nil && err != bufio.ErrBufferFull {
		e.ready = false
		return nil, "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if !gotBest {
		e.ready = false
		return nil, "", fmt.Errorf("%w: output ended before bestmove", ErrEngineUnavailable)
	}

	lines := make([]models.UCILine, 0, len(slots))
	for _, l := range slots {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].MultiPV < lines[j].MultiPV })
	return lines, best, nil
}

// parseInfoLine extracts multipv, depth, score and the first pv move. Lines
// without a score or pv (currmove, string, hashfull) are skipped.
func parseInfoLine(line string) (models.UCILine, bool) {
	fields := strings.Fields(line)
	l := models.UCILine{MultiPV: 1}
	seen := false
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			return models.UCILine{}, false
		case "depth":
			if i+1 < len(fields) {
				l.Depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil && n > 0 {
					l.MultiPV = n
				}
				i++
			}
		case "score":
			if i+2 < len(fields) {
				n, err := strconv.Atoi(fields[i+2])
				if err == nil {
					switch fields[i+1] {
					case "cp":
						l.Score = models.UCIScore{CP: &n}
						seen = true
					case "mate":
						l.Score = models.UCIScore{Mate: &n}
						seen = true
					}
				}
				i += 2
			}
		case "pv":
			if i+1 < len(fields) {
				l.Move = fields[i+1]
				seen = true
			}
			i = len(fields)
		}
	}
	return l, seen
}

func (e *UCIEngine) send(cmd string) error {
	_, err := fmt.Fprintln(e.in, cmd)
	if err != nil {
		return err
	}
	return e.in.Flush()
}
