// Package uci implements the UCI text protocol front-end: it translates
// UCI's text commands into calls against internal/engine.Engine and
// renders SearchInfo back out as "info" lines, driving this repository's
// own Engine facade (this engine's endgame knowledge is the bitbase
// subsystem) and persisting "setoption" values via internal/storage
// between runs.
package uci

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/finnhauge/gambit/internal/board"
	"github.com/finnhauge/gambit/internal/engine"
	"github.com/finnhauge/gambit/internal/storage"
)

// UCI implements the Universal Chess Interface protocol over stdin/stdout.
type UCI struct {
	eng      *engine.Engine
	position *board.Position
	store    *storage.Storage // may be nil: persistence is best-effort

	// Position history for repetition detection across the game boundary.
	positionHashes []uint64

	bitbasePath string
	multiPV     int

	searching     atomic.Bool
	searchDone    chan struct{}
	stopRequested atomic.Bool

	// ponderRelease, when non-nil, is closed on ponderhit/stop to let the
	// search goroutine emit its held-back bestmove; the UCI protocol
	// forbids printing bestmove while still pondering.
	ponderRelease     chan struct{}
	ponderReleaseOnce *sync.Once
}

// New creates a UCI handler around eng, optionally persisting "setoption"
// values through store (pass nil to disable persistence).
func New(eng *engine.Engine, store *storage.Storage) *UCI {
	return &UCI{
		eng:      eng,
		position: board.NewPosition(),
		store:    store,
		multiPV:  1,
	}
}

// Run reads commands from stdin until "quit" or EOF.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "ponderhit":
			u.eng.PonderHit()
			u.releasePonder()
		case "quit":
			u.handleQuit()
		case "setoption":
			u.handleSetOption(args)
		case "d":
			fmt.Println(u.position.String())
		case "perft":
			u.handlePerft(args)
		}
	}
}

// handleUCI responds to the "uci" handshake, advertising the engine's
// configurable options.
func (u *UCI) handleUCI() {
	fmt.Println("id name Gambit")
	fmt.Println("id author Gambit Contributors")
	fmt.Println()
	fmt.Println("option name Hash type spin default 64 min 1 max 65536")
	fmt.Println("option name Threads type spin default 1 min 1 max 64")
	fmt.Println("option name MultiPV type spin default 1 min 1 max 32")
	fmt.Println("option name Ponder type check default false")
	fmt.Println("option name BitbasePath type string default <empty>")
	fmt.Println("uciok")
}

// handleNewGame clears the transposition table and history before the
// next search.
func (u *UCI) handleNewGame() {
	u.eng.Clear()
	u.position = board.NewPosition()
	u.positionHashes = []uint64{u.position.Hash}
}

// handlePosition replaces the internal position. Formats:
//   - position startpos [moves ...]
//   - position fen <fen> [moves ...]
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var moveStart int
	switch args[0] {
	case "startpos":
		u.position = board.NewPosition()
		moveStart = findMoves(args, 1)
	case "fen":
		fenEnd := len(args)
		for i := 1; i < len(args); i++ {
			if args[i] == "moves" {
				fenEnd = i
				break
			}
		}
		pos, err := board.ParseFEN(strings.Join(args[1:fenEnd], " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string invalid FEN: %v\n", err)
			return
		}
		u.position = pos
		moveStart = findMoves(args, fenEnd)
	default:
		return
	}

	u.positionHashes = []uint64{u.position.Hash}
	for _, moveStr := range args[moveStart:] {
		m := u.parseMove(moveStr)
		if m == board.NoMove {
			fmt.Fprintf(os.Stderr, "info string invalid move: %s\n", moveStr)
			return
		}
		u.position.MakeMove(m)
		u.positionHashes = append(u.positionHashes, u.position.Hash)
	}
}

// findMoves returns the index of the first move token after the "moves"
// keyword starting the search at from, or len(args) if absent.
func findMoves(args []string, from int) int {
	for i := from; i < len(args); i++ {
		if args[i] == "moves" {
			return i + 1
		}
	}
	return len(args)
}

// parseMove resolves a UCI move string against the current position's
// legal moves, so castling/en-passant/promotion flags come from the move
// generator rather than being re-derived here.
func (u *UCI) parseMove(moveStr string) board.Move {
	m, err := board.ParseMove(moveStr, u.position)
	if err != nil {
		return board.NoMove
	}
	legal := u.position.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		lm := legal.Get(i)
		if lm.From() == m.From() && lm.To() == m.To() && lm.Promotion() == m.Promotion() {
			return lm
		}
	}
	return board.NoMove
}

// goOptions holds one "go" command's parsed arguments.
type goOptions struct {
	Depth     int
	Nodes     uint64
	MoveTime  time.Duration
	Infinite  bool
	Ponder    bool
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
	MultiPV   int
}

// handleGo starts a search on a
// copy of the current position in its own goroutine, streaming "info"
// lines and finishing with "bestmove". A "go" received while a previous
// search is still in flight (a GUI protocol violation, but not one worth
// crashing over) first stops and waits out that search, so the new
// search's goroutine is never racing the old one's over u.searchDone.
func (u *UCI) handleGo(args []string) {
	if u.searching.Load() {
		u.handleStop()
	}

	opts := u.parseGoOptions(args)

	u.eng.SetPositionHistory(u.positionHashes)
	u.eng.OnInfo = func(info engine.SearchInfo) { u.sendInfo(info) }

	limits := engine.SearchLimits{
		Depth:     opts.Depth,
		Nodes:     opts.Nodes,
		MoveTime:  opts.MoveTime.Milliseconds(),
		WhiteTime: opts.WTime.Milliseconds(),
		BlackTime: opts.BTime.Milliseconds(),
		WhiteInc:  opts.WInc.Milliseconds(),
		BlackInc:  opts.BInc.Milliseconds(),
		MovesToGo: opts.MovesToGo,
		Infinite:  opts.Infinite,
		Ponder:    opts.Ponder,
		MultiPV:   u.multiPV,
	}

	u.searching.Store(true)
	u.stopRequested.Store(false)
	done := make(chan struct{})
	u.searchDone = done

	var release chan struct{}
	if opts.Ponder {
		release = make(chan struct{})
		u.ponderRelease = release
		u.ponderReleaseOnce = &sync.Once{}
	} else {
		u.ponderRelease = nil
		u.ponderReleaseOnce = nil
	}

	pos := u.position.Copy()

	go func() {
		defer close(done)
		best, ponder := u.eng.SearchWithLimits(pos, limits)
		if release != nil {
			// A pondering search that finishes early must hold its result
			// until the GUI resolves the ponder with ponderhit or stop.
			<-release
		}
		u.searching.Store(false)
		if best == board.NoMove {
			fmt.Println("bestmove 0000")
			return
		}
		if ponder != board.NoMove {
			fmt.Printf("bestmove %s ponder %s\n", best.String(), ponder.String())
			return
		}
		fmt.Printf("bestmove %s\n", best.String())
	}()
}

// releasePonder unblocks a search goroutine holding its bestmove back for
// an unresolved "go ponder". Safe to call when no ponder is pending.
func (u *UCI) releasePonder() {
	if u.ponderRelease != nil {
		release := u.ponderRelease
		u.ponderReleaseOnce.Do(func() { close(release) })
	}
}

// parseGoOptions parses "go" command arguments in the order UCI sends
// them: a keyword optionally followed by one integer argument.
func (u *UCI) parseGoOptions(args []string) goOptions {
	var opts goOptions
	opts.MultiPV = 1

	next := func(i *int) (int, bool) {
		if *i+1 >= len(args) {
			return 0, false
		}
		*i++
		v, err := strconv.Atoi(args[*i])
		return v, err == nil
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			if v, ok := next(&i); ok {
				opts.Depth = v
			}
		case "nodes":
			if v, ok := next(&i); ok {
				opts.Nodes = uint64(v)
			}
		case "movetime":
			if v, ok := next(&i); ok {
				opts.MoveTime = time.Duration(v) * time.Millisecond
			}
		case "infinite":
			opts.Infinite = true
		case "ponder":
			opts.Ponder = true
		case "wtime":
			if v, ok := next(&i); ok {
				opts.WTime = time.Duration(v) * time.Millisecond
			}
		case "btime":
			if v, ok := next(&i); ok {
				opts.BTime = time.Duration(v) * time.Millisecond
			}
		case "winc":
			if v, ok := next(&i); ok {
				opts.WInc = time.Duration(v) * time.Millisecond
			}
		case "binc":
			if v, ok := next(&i); ok {
				opts.BInc = time.Duration(v) * time.Millisecond
			}
		case "movestogo":
			if v, ok := next(&i); ok {
				opts.MovesToGo = v
			}
		}
	}
	return opts
}

// sendInfo renders one SearchInfo as a UCI "info" line.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var parts []string
	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))
	if info.MultiPV > 1 {
		parts = append(parts, fmt.Sprintf("multipv %d", info.MultiPV))
	}

	const mateWindow = 100
	switch {
	case info.Score > mateScoreThreshold(mateWindow):
		parts = append(parts, fmt.Sprintf("score mate %d", (mateScore-info.Score+1)/2))
	case info.Score < -mateScoreThreshold(mateWindow):
		parts = append(parts, fmt.Sprintf("score mate %d", -(mateScore+info.Score+1)/2))
	default:
		parts = append(parts, fmt.Sprintf("score cp %d", info.Score))
	}

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.TimeMs))
	parts = append(parts, fmt.Sprintf("nps %d", info.NPS))
	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}
	if len(info.PV) > 0 {
		strs := make([]string, len(info.PV))
		for i, m := range info.PV {
			strs[i] = m.String()
		}
		parts = append(parts, "pv "+strings.Join(strs, " "))
	}
	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

// mateScore mirrors search.MateScore without importing the search package
// directly from the rendering path.
const mateScore = 29000

// mateScoreThreshold returns the score above which a value should be
// reported as "mate in N" rather than centipawns.
func mateScoreThreshold(window int) int { return mateScore - window }

// handleStop requests cancellation and waits for
// the in-flight search to post its bestmove.
func (u *UCI) handleStop() {
	if u.searching.Load() {
		u.stopRequested.Store(true)
		u.eng.Stop()
		u.releasePonder()
		<-u.searchDone
	}
}

func (u *UCI) handleQuit() {
	u.handleStop()
	if u.store != nil {
		u.store.Close()
	}
	os.Exit(0)
}

// handleSetOption recognizes Hash, Threads, MultiPV, and BitbasePath,
// persisted across runs when a Storage is attached.
func (u *UCI) handleSetOption(args []string) {
	var name, value string
	readingName, readingValue := false, false
	for _, arg := range args {
		switch arg {
		case "name":
			readingName, readingValue = true, false
		case "value":
			readingName, readingValue = false, true
		default:
			if readingName {
				name = appendWord(name, arg)
			} else if readingValue {
				value = appendWord(value, arg)
			}
		}
	}

	opts := storage.DefaultEngineOptions()
	if u.store != nil {
		if loaded, err := u.store.LoadEngineOptions(); err == nil {
			opts = loaded
		}
	}

	switch strings.ToLower(name) {
	case "hash":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			if !u.eng.Resize(v) {
				fmt.Fprintln(os.Stderr, "info string Hash resize ignored: search in progress")
				return
			}
			opts.HashMB = v
		}
	case "multipv":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			u.multiPV = v
			opts.MultiPV = v
		}
	case "threads":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			opts.Threads = v
		}
	case "bitbasepath":
		u.bitbasePath = value
		if err := u.eng.SetBitbasePath(value); err != nil {
			fmt.Fprintf(os.Stderr, "info string failed to load bitbases from %s: %v\n", value, err)
		}
		opts.BitbasePath = value
	default:
		return
	}

	if u.store != nil {
		u.store.SaveEngineOptions(opts)
	}
}

func appendWord(s, word string) string {
	if s == "" {
		return word
	}
	return s + " " + word
}

// handlePerft runs a perft node count from the current position,
// printing results in the conventional perft tool format.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			depth = v
		}
	}

	start := time.Now()
	nodes := u.eng.Perft(u.position, depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}
