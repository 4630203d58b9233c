package index

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/Carla-Radames/Rhisat/internal/reference"
)

func randomSeq(rnd *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = byte(rnd.Intn(4))
	}
	return s
}

// backwardSearch matches pat right-to-left against idx and returns the final
// SA interval.
func backwardSearch(idx *Index, pat []byte) (top, bot int) {
	if len(pat) < idx.FtabChars() {
		return 0, 0
	}
	top, bot = idx.FtabLoHi(pat, len(pat)-idx.FtabChars())
	if bot <= top {
		return top, bot
	}
	for i := len(pat) - idx.FtabChars() - 1; i >= 0; i-- {
		c := pat[i]
		if bot-top == 1 {
			t := idx.MapLF1(top, c)
			if t < 0 {
				return 0, 0
			}
			top, bot = t, t+1
			continue
		}
		top = idx.MapLF(top, c)
		bot = idx.MapLF(bot, c)
		if bot <= top {
			return 0, 0
		}
	}
	return top, bot
}

func naiveOccurrences(text, pat []byte) []int {
	var occs []int
	for i := 0; i+len(pat) <= len(text); i++ {
		if bytes.Equal(text[i:i+len(pat)], pat) {
			occs = append(occs, i)
		}
	}
	return occs
}

func TestBackwardSearchMatchesNaive(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	text := randomSeq(rnd, 600)
	idx := New(text, Options{FtabChars: 4, OccInterval: 16, SASample: 4})

	var wm WalkMetrics
	var w Walker
	for trial := 0; trial < 100; trial++ {
		plen := 4 + rnd.Intn(20)
		start := rnd.Intn(len(text) - plen)
		pat := text[start : start+plen]

		top, bot := backwardSearch(idx, pat)
		want := naiveOccurrences(text, pat)
		if bot-top != len(want) {
			t.Fatalf("pattern at %d len %d: got %d occurrences, want %d", start, plen, bot-top, len(want))
		}

		w.Init(idx, top, bot)
		got := make([]int, 0, bot-top)
		for i := 0; i < bot-top; i++ {
			got = append(got, w.AdvanceElement(i, &wm))
		}
		for _, g := range got {
			found := false
			for _, o := range want {
				if o == g {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("walker resolved offset %d not among naive occurrences %v", g, want)
			}
		}
	}
	if wm.Resolves == 0 {
		t.Fatal("walker resolved nothing")
	}
}

func TestSearchMissingPattern(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	text := randomSeq(rnd, 300)
	idx := New(text, Options{FtabChars: 4, OccInterval: 16, SASample: 4})

	// a random 40-mer; checked only when the naive search confirms it is absent
	pat := randomSeq(rnd, 40)
	if occs := naiveOccurrences(text, pat); len(occs) == 0 {
		top, bot := backwardSearch(idx, pat)
		if bot > top {
			t.Fatalf("absent pattern reported interval [%d, %d)", top, bot)
		}
	}
}

func TestFtabAgainstStepwise(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	text := randomSeq(rnd, 400)
	idx := New(text, Options{FtabChars: 5, OccInterval: 16, SASample: 4})
	k := idx.FtabChars()

	for trial := 0; trial < 50; trial++ {
		start := rnd.Intn(len(text) - k)
		pat := text[start : start+k]
		top, bot := idx.FtabLoHi(pat, 0)
		if bot-top != len(naiveOccurrences(text, pat)) {
			t.Fatalf("ftab interval width %d != naive count for %v", bot-top, pat)
		}
	}
}

func TestFtabRejectsN(t *testing.T) {
	text := []byte{0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3}
	idx := New(text, Options{FtabChars: 3, OccInterval: 16, SASample: 4})
	pat := []byte{0, 4, 2, 3}
	top, bot := idx.FtabLoHi(pat, 0)
	if bot > top {
		t.Fatalf("ftab over N returned non-empty interval [%d, %d)", top, bot)
	}
}

func TestLocateEveryRow(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	text := randomSeq(rnd, 257)
	idx := New(text, Options{FtabChars: 4, OccInterval: 8, SASample: 4})

	seen := make(map[int]bool)
	for row := 0; row <= len(text); row++ {
		off, _ := idx.locate(row)
		if off < 0 || off > len(text) {
			t.Fatalf("row %d located out of range: %d", row, off)
		}
		if seen[off] {
			t.Fatalf("offset %d located twice", off)
		}
		seen[off] = true
	}
}

func TestTileSetNavigation(t *testing.T) {
	rnd := rand.New(rand.NewSource(13))
	seq := randomSeq(rnd, 1000)
	ref, err := reference.New([]string{"chr1"}, [][]byte{seq})
	if err != nil {
		t.Fatal(err)
	}
	builds := 0
	ts := NewTileSet(ref, 256, 32, Options{FtabChars: 4, OccInterval: 16, SASample: 4})
	ts.OnBuild = func() { builds++ }

	tile := ts.GetTile(0, 500)
	if tile == nil {
		t.Fatal("no tile for offset 500")
	}
	if tile.LocalOffset > 500 || tile.LocalOffset+256 < 500 {
		t.Fatalf("tile [%d, %d) does not contain 500", tile.LocalOffset, tile.LocalOffset+256)
	}
	if builds != 1 {
		t.Fatalf("expected 1 tile build, got %d", builds)
	}
	// repeated lookups reuse the tile
	if ts.GetTile(0, 500) != tile {
		t.Fatal("tile not cached")
	}
	if builds != 1 {
		t.Fatalf("tile rebuilt, builds=%d", builds)
	}

	prev := ts.Prev(tile)
	if prev == nil || prev.LocalOffset >= tile.LocalOffset {
		t.Fatal("Prev did not move left")
	}
	next := ts.Next(tile)
	if next == nil || next.LocalOffset <= tile.LocalOffset {
		t.Fatal("Next did not move right")
	}

	// tile-local search resolves to genomic coordinates via LocalOffset
	start := tile.LocalOffset + 10
	pat := seq[start : start+12]
	top, bot := backwardSearch(tile.Index, pat)
	if bot <= top {
		t.Fatalf("tile search found nothing for a planted pattern")
	}
	var wm WalkMetrics
	var w Walker
	w.Init(tile.Index, top, bot)
	found := false
	for i := 0; i < bot-top; i++ {
		if w.AdvanceElement(i, &wm)+tile.LocalOffset == start {
			found = true
		}
	}
	if !found {
		t.Fatalf("planted position %d not among tile results", start)
	}
}
