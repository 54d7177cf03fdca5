package bitbase

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/finnhauge/gambit/internal/board"
	"github.com/finnhauge/gambit/internal/material"
)

// Result is a bitbase probe's WDL verdict from White's perspective: the
// stored bit means "White wins with best play", for either side to move
// (the index bakes the side to move in, so a signature's bitbase holds
// both the white-to-move and black-to-move verdicts). A single bit can
// only separate "White wins" from everything else; the dual-sided probe
// recovers the full win/draw/loss picture by also consulting the
// color-swapped signature's bitbase.
type Result int

const (
	Unknown Result = iota
	Loss
	Draw
	DrawOrLoss
	Win
	IllegalIndex
)

func (r Result) String() string {
	switch r {
	case Loss:
		return "loss"
	case Draw:
		return "draw"
	case DrawOrLoss:
		return "draw-or-loss"
	case Win:
		return "win"
	case IllegalIndex:
		return "illegal"
	default:
		return "unknown"
	}
}

// drawScore matches search.drawValue: the bitbase encodes a known draw as
// 1, not 0, so the caller can distinguish it from a repetition/50-move
// draw. The two packages don't share the constant directly (bitbase has no
// reason to import search), so this comment is the synchronization point.
const drawScore = 1

// winScore anchors a bitbase-proven win just below the shallowest possible
// search-mate score, so the main search's mate-distance pruning still
// treats it as "better than any non-mate score" without colliding with an
// actual forced mate found a few plies into the search tree.
const winScore = 25000

// signatureEntry is one registered material signature's loadable bitbase.
type signatureEntry struct {
	layout Layout
	path   string // on-disk file, loaded lazily
	bb     *Bitbase
}

// Registry is the probe-time home for every generated bitbase: a directory
// of files, indexed by material signature, consulted on demand and served
// through a shared ClusterCache.
type Registry struct {
	mu      sync.Mutex
	entries map[material.Signature]*signatureEntry
	cache   *ClusterCache
	maxMen  int
}

// NewRegistry creates an empty registry backed by a cache sized for
// cacheCapacity clusters (see NewClusterCache).
func NewRegistry(cacheCapacity int, hotTierCost int64) *Registry {
	return &Registry{
		entries: make(map[material.Signature]*signatureEntry),
		cache:   NewClusterCache(cacheCapacity, hotTierCost),
	}
}

// LoadDirectory scans dir for "*.gbb" bitbase files, registering each by
// the material signature parsed from its filename (e.g. "KPK.gbb"). It
// does not read the files themselves — each is opened lazily on first
// probe. Wildcard filenames ("K?K.gbb") are not expanded here; the
// generator writes one concrete file per signature.
func (r *Registry) LoadDirectory(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.gbb"))
	if err != nil {
		return fmt.Errorf("bitbase: scan %s: %w", dir, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), ".gbb")
		sig, ok := material.ParseSignature(name)
		if !ok {
			continue
		}
		r.entries[sig] = &signatureEntry{path: path, layout: LayoutFor(sig)}
		if sig.TotalPieces() > r.maxMen {
			r.maxMen = sig.TotalPieces()
		}
	}
	return nil
}

// Register attaches an already-built, fully-resident Bitbase directly
// (used by the generator to make a just-computed signature immediately
// probeable without a round-trip through disk, and by tests).
func (r *Registry) Register(sig material.Signature, b *Bitbase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sig] = &signatureEntry{layout: b.Layout(), bb: b}
	if n := sig.TotalPieces(); n > r.maxMen {
		r.maxMen = n
	}
}

// MaxPieces returns the largest non-king piece count of any registered
// signature, the figure search.Searcher uses to skip the probe call
// entirely for larger positions.
func (r *Registry) MaxPieces() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxMen
}

func (r *Registry) get(sig material.Signature) (*Bitbase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sig]
	if !ok {
		return nil, ErrNotFound
	}
	if e.bb != nil {
		return e.bb, nil
	}
	if e.path == "" {
		return nil, ErrNotFound
	}
	reader, err := OpenReader(e.path)
	if err != nil {
		return nil, err
	}
	e.bb = OpenOnDisk(e.layout, reader, r.cache, uint64(sig))
	return e.bb, nil
}

// IsAvailable reports whether sig (or its color-swapped twin) is
// registered.
func (r *Registry) IsAvailable(sig material.Signature) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[sig]; ok {
		return true
	}
	_, ok := r.entries[sig.Symmetric()]
	return ok
}

// ProbeSingle looks up pos in the bitbase registered for its own
// signature. Win means White wins with best play; anything else reads as
// DrawOrLoss, since the single bit cannot separate the two — use ProbeWDL
// for the full verdict.
func (r *Registry) ProbeSingle(pos *board.Position) (Result, error) {
	sig := material.Compute(pos)
	b, err := r.get(sig)
	if err != nil {
		return Unknown, err
	}
	idx, ok := indexOf(b.Layout(), pos)
	if !ok {
		return IllegalIndex, nil
	}
	bit, err := b.GetBit(idx)
	if err != nil {
		return Unknown, err
	}
	if bit {
		return Win, nil
	}
	return DrawOrLoss, nil
}

// ProbeWDL is the dual-sided probe, returning the full verdict from
// White's perspective. The own-signature bitbase answers "does White
// win"; when it doesn't, "does Black win" is answered by the color-swapped
// signature's bitbase, queried at the color-flipped position's index. If
// Black can win neither by bit nor by material, the position is a draw.
// DrawOrLoss is returned when the swapped bitbase would be needed but is
// not registered.
func (r *Registry) ProbeWDL(pos *board.Position) (Result, error) {
	sig := material.Compute(pos)
	b, err := r.get(sig)
	switch {
	case err == nil:
		idx, ok := indexOf(b.Layout(), pos)
		if !ok {
			return IllegalIndex, nil
		}
		bit, err := b.GetBit(idx)
		if err != nil {
			return Unknown, err
		}
		if bit {
			return Win, nil
		}
	case errors.Is(err, ErrNotFound) && !sig.HasEnoughMaterialToMate(board.White):
		// No bitbase for the own signature, but White couldn't win anyway
		// (e.g. KKR probed with only KRK on disk); fall through to the
		// swapped-signature side of the probe.
	default:
		return Unknown, err
	}

	// White doesn't win. If Black can't mate at all, that settles it.
	if !sig.HasEnoughMaterialToMate(board.Black) {
		return Draw, nil
	}

	sym, err := r.get(sig.Symmetric())
	if err != nil {
		return DrawOrLoss, nil
	}
	symIdx, ok := flippedIndexOf(sym.Layout(), pos)
	if !ok {
		return DrawOrLoss, nil
	}
	symBit, err := sym.GetBit(symIdx)
	if err != nil {
		return DrawOrLoss, nil
	}
	if symBit {
		return Loss, nil
	}
	return Draw, nil
}

// Probe implements search.BitbaseProber, translating ProbeWDL's
// white-perspective verdict into a search score from the side to move's
// perspective. Only definite verdicts report ok; DrawOrLoss leaves the
// search to its heuristics.
func (r *Registry) Probe(pos *board.Position, ply int) (int, bool) {
	wdl, err := r.ProbeWDL(pos)
	if err != nil {
		return 0, false
	}

	switch wdl {
	case Win:
		if pos.SideToMove == board.White {
			return winScore - ply, true
		}
		return -(winScore - ply), true
	case Loss:
		if pos.SideToMove == board.Black {
			return winScore - ply, true
		}
		return -(winScore - ply), true
	case Draw:
		return drawScore, true
	default:
		return 0, false
	}
}

// LayoutFor derives the index Layout for a material signature: pawns
// first (so pawnSquareIndex applies only to them), then knights, bishops,
// rooks, queens, each color in turn.
func LayoutFor(sig material.Signature) Layout {
	var pieces []PieceSlot
	hasPawns := sig.Count(board.White, board.Pawn) > 0 || sig.Count(board.Black, board.Pawn) > 0
	order := []board.PieceType{board.Pawn, board.Knight, board.Bishop, board.Rook, board.Queen}
	for _, pt := range order {
		for _, c := range [2]board.Color{board.White, board.Black} {
			for i := 0; i < sig.Count(c, pt); i++ {
				pieces = append(pieces, PieceSlot{Color: c, Type: pt})
			}
		}
	}
	return Layout{Pieces: pieces, HasPawns: hasPawns}
}

// indexOf computes pos's index under layout by walking its pieces in the
// same (pawn-first, color-then-type) order LayoutFor produces, using the
// first unclaimed square of each matching (color, type) for each slot.
func indexOf(layout Layout, pos *board.Position) (uint64, bool) {
	wk, ok := kingSquare(pos, board.White)
	if !ok {
		return 0, false
	}
	bk, ok := kingSquare(pos, board.Black)
	if !ok {
		return 0, false
	}

	squares := make([]board.Square, len(layout.Pieces))
	used := make(map[board.Square]bool)
	for i, slot := range layout.Pieces {
		bb := pos.Pieces[slot.Color][slot.Type]
		found := false
		for bb != 0 {
			s := bb.PopLSB()
			if !used[s] {
				squares[i] = s
				used[s] = true
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return layout.Index(pos.SideToMove, wk, bk, squares)
}

// flippedIndexOf computes the index of pos's color-flipped counterpart
// (piece colors swapped, board mirrored vertically, the other side to
// move) under the color-swapped signature's layout. "Black wins in pos"
// is exactly "White wins in the flipped position", which is what the
// swapped bitbase's bit stores.
func flippedIndexOf(symLayout Layout, pos *board.Position) (uint64, bool) {
	wk, ok := kingSquare(pos, board.Black)
	if !ok {
		return 0, false
	}
	bk, ok := kingSquare(pos, board.White)
	if !ok {
		return 0, false
	}

	squares := make([]board.Square, len(symLayout.Pieces))
	used := make(map[board.Square]bool)
	for i, slot := range symLayout.Pieces {
		// The flipped position's piece of (color, type) is pos's piece of
		// (other color, type), on the vertically mirrored square.
		bb := pos.Pieces[slot.Color.Other()][slot.Type]
		found := false
		for bb != 0 {
			s := bb.PopLSB()
			if !used[s] {
				squares[i] = s.Mirror()
				used[s] = true
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return symLayout.Index(pos.SideToMove.Other(), wk.Mirror(), bk.Mirror(), squares)
}

// kingSquare locates color's (sole) king.
func kingSquare(pos *board.Position, c board.Color) (board.Square, bool) {
	bb := pos.Pieces[c][board.King]
	if bb == 0 {
		return 0, false
	}
	return bb.PopLSB(), true
}
