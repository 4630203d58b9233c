package index

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Carla-Radames/Rhisat/internal/reference"
)

// Tile is a local FM index over one contiguous segment of a reference
// sequence. Resolved offsets are tile-local; TIdx and LocalOffset map them
// back to genomic coordinates.
type Tile struct {
	*Index
	TIdx        int
	LocalOffset int
	slot        int
}

// TileSet owns the ordered local indexes of every reference sequence. Tiles
// are built on first use; concurrent first touches of the same tile are
// deduplicated through singleflight so only one worker pays the build.
type TileSet struct {
	ref     *reference.Reference
	tileLen int
	stride  int
	opts    Options

	mu     sync.RWMutex
	tiles  [][]*Tile
	group  singleflight.Group
	logger *slog.Logger

	// OnBuild, when set, is invoked once per tile actually built.
	OnBuild func()
}

// NewTileSet prepares (but does not build) tiles of tileLen bases
// overlapping by overlap.
func NewTileSet(ref *reference.Reference, tileLen, overlap int, opts Options) *TileSet {
	ts := &TileSet{
		ref:     ref,
		tileLen: tileLen,
		stride:  tileLen - overlap,
		opts:    opts,
		tiles:   make([][]*Tile, ref.NumRefs()),
		logger:  slog.Default().With("component", "tileset"),
	}
	for t := 0; t < ref.NumRefs(); t++ {
		n := (ref.ApproxLen(t) + ts.stride - 1) / ts.stride
		if n == 0 {
			n = 1
		}
		ts.tiles[t] = make([]*Tile, n)
	}
	return ts
}

// NumTiles returns the number of tile slots for sequence tidx.
func (ts *TileSet) NumTiles(tidx int) int { return len(ts.tiles[tidx]) }

// GetTile returns the tile whose range contains (tidx, toff), building it if
// needed.
func (ts *TileSet) GetTile(tidx, toff int) *Tile {
	if tidx < 0 || tidx >= len(ts.tiles) {
		return nil
	}
	slot := toff / ts.stride
	if slot >= len(ts.tiles[tidx]) {
		slot = len(ts.tiles[tidx]) - 1
	}
	if slot < 0 {
		return nil
	}
	return ts.build(tidx, slot)
}

// Prev returns the tile immediately to the left of t, or nil at the first
// tile.
func (ts *TileSet) Prev(t *Tile) *Tile {
	if t == nil || t.slot == 0 {
		return nil
	}
	return ts.build(t.TIdx, t.slot-1)
}

// Next returns the tile immediately to the right of t, or nil at the last
// tile.
func (ts *TileSet) Next(t *Tile) *Tile {
	if t == nil || t.slot+1 >= len(ts.tiles[t.TIdx]) {
		return nil
	}
	return ts.build(t.TIdx, t.slot+1)
}

func (ts *TileSet) build(tidx, slot int) *Tile {
	ts.mu.RLock()
	t := ts.tiles[tidx][slot]
	ts.mu.RUnlock()
	if t != nil {
		return t
	}
	key := fmt.Sprintf("%d/%d", tidx, slot)
	v, _, _ := ts.group.Do(key, func() (interface{}, error) {
		ts.mu.RLock()
		t := ts.tiles[tidx][slot]
		ts.mu.RUnlock()
		if t != nil {
			return t, nil
		}
		start := slot * ts.stride
		end := start + ts.tileLen
		if end > ts.ref.ApproxLen(tidx) {
			end = ts.ref.ApproxLen(tidx)
		}
		seg := ts.ref.GetStretch(nil, tidx, start, end-start)
		t = &Tile{
			Index:       New(seg, ts.opts),
			TIdx:        tidx,
			LocalOffset: start,
			slot:        slot,
		}
		ts.mu.Lock()
		ts.tiles[tidx][slot] = t
		ts.mu.Unlock()
		if ts.OnBuild != nil {
			ts.OnBuild()
		}
		ts.logger.Debug("tile built", "ref", tidx, "slot", slot, "start", start, "len", end-start)
		return t, nil
	})
	return v.(*Tile)
}
