package align

// HitType ranks partial FM hits for anchor selection.
type HitType uint8

const (
	CandidateHit HitType = iota + 1
	PseudogeneHit
	AnchorHit
)

const invalidPos = -1

// PartialFmHit is one partial exact match found on the FM index: an SA
// interval plus the read window it covers. Bwoff counts from the read's 3'
// end (search direction).
type PartialFmHit struct {
	Top, Bot int
	Fw       bool
	Bwoff    int
	Len      int
	Type     HitType
	Coords   []Coord
}

func (h *PartialFmHit) reset() {
	h.Top, h.Bot = 0, 0
	h.Fw = true
	h.Bwoff = invalidPos
	h.Len = 0
	h.Type = CandidateHit
	h.Coords = h.Coords[:0]
}

// Empty reports whether the hit has no SA range.
func (h *PartialFmHit) Empty() bool { return h.Bot <= h.Top }

// Size returns the width of the SA range.
func (h *PartialFmHit) Size() int { return h.Bot - h.Top }

// HasCoords reports whether the hit's coordinates have been resolved.
func (h *PartialFmHit) HasCoords() bool { return len(h.Coords) > 0 }

// ReadFmHits is the per-(read, strand) seeding state: the partial hits found
// so far tile the read from its 3' end up to the cursor Cur.
type ReadFmHits struct {
	Fw   bool
	Len  int
	Cur  int
	Done bool

	NumPartialSearch int
	NumUniqueSearch  int

	Partial []PartialFmHit
}

// Init resets the state for a read of the given length and strand.
func (r *ReadFmHits) Init(fw bool, length int) {
	r.Fw = fw
	r.Len = length
	r.Cur = 0
	r.Done = false
	r.NumPartialSearch = 0
	r.NumUniqueSearch = 0
	r.Partial = r.Partial[:0]
}

// SetDone marks seeding finished for this strand.
func (r *ReadFmHits) SetDone() { r.Done = true }

// NumActualPartialSearch discounts unique stops from the search count.
func (r *ReadFmHits) NumActualPartialSearch() int {
	return r.NumPartialSearch - r.NumUniqueSearch
}

// appendHit adds a new partial hit tiling the read from bwoff.
func (r *ReadFmHits) appendHit(top, bot int, fw bool, bwoff, length int, typ HitType) *PartialFmHit {
	r.Partial = append(r.Partial, PartialFmHit{})
	h := &r.Partial[len(r.Partial)-1]
	h.reset()
	h.Top, h.Bot = top, bot
	h.Fw = fw
	h.Bwoff = bwoff
	h.Len = length
	h.Type = typ
	return h
}

// SearchScore ranks this record for the seeding scheduler: long partials
// score quadratically, and each non-unique search costs a quadratic penalty
// plus an exponentially growing term.
func (r *ReadFmHits) SearchScore(minK int) int64 {
	var score int64
	penaltyPerOffset := int64(minK) * int64(minK)
	for i := range r.Partial {
		l := int64(r.Partial[i].Len)
		score += l * l
	}
	actual := int64(r.NumActualPartialSearch())
	score -= actual * penaltyPerOffset
	shift := uint(actual << 1)
	if shift > 62 {
		shift = 62
	}
	score -= 1 << shift
	return score
}

// MinWidth returns the smallest SA-range width among non-empty partial hits,
// preferring longer hits on ties, and the slot holding it.
func (r *ReadFmHits) MinWidth() (width int, offset int) {
	width = int(^uint(0) >> 1)
	widthLen := 0
	for i := range r.Partial {
		h := &r.Partial[i]
		if h.Empty() {
			continue
		}
		if width > h.Size() || (width == h.Size() && widthLen < h.Len) {
			width = h.Size()
			widthLen = h.Len
			offset = i
		}
	}
	return width, offset
}

// AdjustOffset pops the last partial hit when it is too short to anchor and
// rewinds the cursor just past a minK-sized prefix of it. It reports whether
// anything changed.
func (r *ReadFmHits) AdjustOffset(minK int) bool {
	if len(r.Partial) == 0 {
		return false
	}
	last := &r.Partial[len(r.Partial)-1]
	if last.Len >= minK+3 {
		return false
	}
	origCur := r.Cur - last.Len
	adv := last.Len
	if adv < minK+1 {
		adv = minK + 1
	}
	r.Cur = origCur + adv - minK
	r.Partial = r.Partial[:len(r.Partial)-1]
	return true
}

func (r *ReadFmHits) repOk() bool {
	for i := range r.Partial {
		if i+1 < len(r.Partial) {
			if r.Partial[i].Bwoff+r.Partial[i].Len > r.Partial[i+1].Bwoff {
				return false
			}
		} else if r.Partial[i].Bwoff+r.Partial[i].Len != r.Cur {
			return false
		}
	}
	return true
}
