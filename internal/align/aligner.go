package align

import (
	"math/rand"

	"github.com/Carla-Radames/Rhisat/internal/index"
	"github.com/Carla-Radames/Rhisat/internal/reference"
)

const minKLocalDefault = 8

// Options configures an Aligner.
type Options struct {
	MinIntronLen       int
	MaxIntronLen       int
	KHits              int
	Secondary          bool
	NoSplicedAlignment bool
	ThreadRidsMindist  uint64
	Mate1Fw            bool
	Mate2Fw            bool
}

// Aligner is the per-worker alignment engine. It owns all mutable scratch
// state (arena, hit lists, depth-indexed coordinate slots); the indexes,
// reference, scoring, and splice-site database it points at are shared and
// either immutable or internally synchronized.
type Aligner struct {
	gidx  *index.Index
	tiles *index.TileSet
	ref   *reference.Reference
	ssdb  *SpliceSiteDB
	sc    *Scoring
	opts  Options

	minK      int
	minKLocal int

	rds          [2]*Read
	paired       bool
	rightendonly bool
	nofw         [2]bool
	norc         [2]bool
	minsc        [2]int64
	maxpen       [2]int64

	hits [2][2]ReadFmHits

	shared *TempVars
	sink   *Sink

	genomeHits      []Hit
	genomeHitsDone  []bool
	coords          [][]Coord
	spliceSites     [][]SpliceSite
	localGenomeHits [][]Hit
	anchorsAdded    []int
	concordantPairs [][2]int
	hitsSearched    [2][]Hit

	maxLocalIndexAtts int64

	walker index.Walker
	wm     index.WalkMetrics
	cnt    Counters
	rnd    *rand.Rand
	bwops  int64

	search searchStrategy
}

// New builds a worker-local aligner over the shared index structures.
func New(gidx *index.Index, tiles *index.TileSet, ref *reference.Reference, ssdb *SpliceSiteDB, sc *Scoring, opts Options) *Aligner {
	if opts.MinIntronLen <= 0 {
		opts.MinIntronLen = 20
	}
	if opts.MaxIntronLen <= 0 {
		opts.MaxIntronLen = 500000
	}
	if opts.KHits <= 0 {
		opts.KHits = 5
	}
	a := &Aligner{
		gidx:      gidx,
		tiles:     tiles,
		ref:       ref,
		ssdb:      ssdb,
		sc:        sc,
		opts:      opts,
		minKLocal: minKLocalDefault,
		shared:    NewTempVars(),
		rnd:       rand.New(rand.NewSource(77)),
		// pre-size the depth-indexed scratch so recursion frames keep
		// stable slots
		coords:          make([][]Coord, 0, 64),
		spliceSites:     make([][]SpliceSite, 0, 64),
		localGenomeHits: make([][]Hit, 0, 64),
		search:          splicedSearch{},
	}
	genomeLen := gidx.Len()
	for genomeLen > 0 {
		genomeLen >>= 2
		a.minK++
	}
	return a
}

// Counters returns the aligner's work counters.
func (a *Aligner) Counters() *Counters { return &a.cnt }

// WalkMetrics returns the aligner's locate metrics.
func (a *Aligner) WalkMetrics() *index.WalkMetrics { return &a.wm }

// InitRead prepares the aligner for one unpaired read.
func (a *Aligner) InitRead(rd *Read, nofw, norc bool, minsc, maxpen int64, rightendonly bool) {
	a.rds[0] = rd
	a.rds[1] = nil
	a.paired = false
	a.rightendonly = rightendonly
	a.nofw[0], a.nofw[1] = nofw, true
	a.norc[0], a.norc[1] = norc, true
	a.minsc[0], a.minsc[1] = minsc, 0
	a.maxpen[0], a.maxpen[1] = maxpen, 0
	for fwi := 0; fwi < 2; fwi++ {
		a.hits[0][fwi].Init(fwi == 0, rd.Len())
	}
	a.resetScratch()
	a.hitsSearched[0] = releaseHits(a.hitsSearched[0])
}

// InitReads prepares the aligner for a pair.
func (a *Aligner) InitReads(rds [2]*Read, nofw, norc [2]bool, minsc, maxpen [2]int64) {
	a.paired = true
	a.rightendonly = false
	for rdi := 0; rdi < 2; rdi++ {
		a.rds[rdi] = rds[rdi]
		a.nofw[rdi] = nofw[rdi]
		a.norc[rdi] = norc[rdi]
		a.minsc[rdi] = minsc[rdi]
		a.maxpen[rdi] = maxpen[rdi]
		for fwi := 0; fwi < 2; fwi++ {
			a.hits[rdi][fwi].Init(fwi == 0, rds[rdi].Len())
		}
		a.hitsSearched[rdi] = releaseHits(a.hitsSearched[rdi])
	}
	a.resetScratch()
}

func (a *Aligner) resetScratch() {
	a.genomeHits = releaseHits(a.genomeHits)
	a.concordantPairs = a.concordantPairs[:0]
	// depth-indexed lists may hold stale copies after slice growth, so they
	// are truncated rather than released back to the arena
	for d := range a.localGenomeHits {
		a.localGenomeHits[d] = a.localGenomeHits[d][:0]
	}
}

func releaseHits(hits []Hit) []Hit {
	for i := range hits {
		hits[i].Release()
	}
	return hits[:0]
}

// Go aligns the current read or pair, reporting into sink.
func (a *Aligner) Go(sink *Sink) {
	a.sink = sink
	found := [2]bool{true, a.paired}
	for {
		rdi, fw, ok := a.nextSeed()
		if !ok {
			break
		}
		found[rdi] = a.align(rdi, fw)
		if !found[0] && !found[1] {
			break
		}
		if a.paired {
			a.pairReads()
		}
	}

	// if no concordant pair was found, use an aligned end as the anchor for
	// a local search on the other end's expected region
	if a.paired && len(a.concordantPairs) == 0 &&
		(sink.BestUnp(0) >= a.minsc[0] || sink.BestUnp(1) >= a.minsc[1]) {
		mateFound := false
		for i := 0; i < 2; i++ {
			for _, res := range sink.GetUnp(i) {
				mateFound = a.alignMate(i, res.Fw, res.Tidx, res.Toff) || mateFound
			}
		}
		if mateFound {
			a.pairReads()
		}
	}
}

// pickNextReadToSearch chooses the (read, strand) with the best search score
// among the records still seeding.
func (a *Aligner) pickNextReadToSearch() (rdi int, fw bool, ok bool) {
	maxScore := int64(minScore)
	n := 1
	if a.paired {
		n = 2
	}
	for rdi2 := 0; rdi2 < n; rdi2++ {
		for fwi := 0; fwi < 2; fwi++ {
			if fwi == 0 && a.nofw[rdi2] {
				continue
			}
			if fwi == 1 && a.norc[rdi2] {
				continue
			}
			if a.hits[rdi2][fwi].Done {
				continue
			}
			curScore := a.hits[rdi2][fwi].SearchScore(a.minK)
			if a.hits[rdi2][fwi].Cur == 0 {
				curScore = int64(^uint64(0) >> 1)
			}
			if curScore > maxScore {
				maxScore = curScore
				rdi = rdi2
				fw = fwi == 0
				ok = true
			}
		}
	}
	return rdi, fw, ok
}

// nextSeed resumes seeding on the best candidate record and reports whether
// any record produced a new partial hit worth aligning.
func (a *Aligner) nextSeed() (rdi int, fw bool, ok bool) {
	for {
		rdi, fw, ok = a.pickNextReadToSearch()
		if !ok {
			return 0, false, false
		}
		fwi := 0
		if !fw {
			fwi = 1
		}
		hit := &a.hits[rdi][fwi]
		pseudogeneStop, anchorStop := true, true

		if !a.opts.Secondary {
			numSearched := hit.NumActualPartialSearch()
			bestScore := a.sink.BestUnp(rdi)
			if bestScore >= a.minsc[rdi] {
				// stop seeding unless this strand may still match the best
				maxmm := int((-bestScore + a.sc.MmpMax() - 1) / a.sc.MmpMax())
				if numSearched > maxmm+a.sink.BestSplicedUnp(rdi)+1 {
					hit.SetDone()
					if a.paired {
						if a.sink.BestUnp(1-rdi) >= a.minsc[1-rdi] && len(a.concordantPairs) > 0 {
							return 0, false, false
						}
						continue
					}
					return 0, false, false
				}
			}
			rchit := &a.hits[rdi][1-fwi]
			if rchit.Done && bestScore < a.minsc[rdi] {
				if numSearched > rchit.NumActualPartialSearch()+1 {
					hit.SetDone()
					return 0, false, false
				}
			}
		}

		a.partialSearch(a.rds[rdi], fw, hit, &pseudogeneStop, &anchorStop)
		if hit.Done {
			return rdi, fw, true
		}
		if !pseudogeneStop {
			if hit.Cur+1 < hit.Len {
				hit.Cur++
			}
		}
		if anchorStop {
			hit.SetDone()
			return rdi, fw, true
		}
	}
}

// partialSearch resumes the right-to-left exact search at hit.Cur, appends
// exactly one new partial hit, and advances the cursor. The stop flags are
// in/out: enabled on entry, set on exit when the corresponding stop fired.
func (a *Aligner) partialSearch(rd *Read, fw bool, hit *ReadFmHits, pseudogeneStop, anchorStop *bool) int {
	psStop, anStop := *pseudogeneStop, *anchorStop
	*pseudogeneStop, *anchorStop = false, false
	ftabLen := a.gidx.FtabChars()
	length := rd.Len()
	seq := rd.SeqFor(fw)

	hit.NumPartialSearch++

	offset := hit.Cur
	dep := offset
	left := length - dep
	if left < ftabLen {
		hit.Cur = length
		hit.appendHit(0, 0, fw, offset, hit.Cur-offset, CandidateHit)
		hit.SetDone()
		return 0
	}
	// does an N interfere with the ftab lookup?
	for i := 0; i < ftabLen; i++ {
		if seq[length-dep-1-i] > 3 {
			hit.Cur += i + 1
			hit.appendHit(0, 0, fw, offset, hit.Cur-offset, CandidateHit)
			if hit.Cur >= length {
				hit.SetDone()
			}
			return 0
		}
	}

	top, bot := a.gidx.FtabLoHi(seq, length-dep-ftabLen)
	dep += ftabLen
	if bot <= top {
		hit.Cur = dep
		hit.appendHit(0, 0, fw, offset, hit.Cur-offset, CandidateHit)
		if hit.Cur >= length {
			hit.SetDone()
		}
		return 0
	}

	sameRange, similarRange := 0, 0
	for dep < length {
		c := seq[length-dep-1]
		var topT, botT int
		if c > 3 {
			topT, botT = 0, 0
		} else if bot-top == 1 {
			a.bwops++
			t := a.gidx.MapLF1(top, c)
			if t < 0 {
				topT, botT = 0, 0
			} else {
				topT, botT = t, t+1
			}
		} else {
			a.bwops += 2
			topT = a.gidx.MapLF(top, c)
			botT = a.gidx.MapLF(bot, c)
		}
		if botT <= topT {
			break
		}

		if psStop {
			if botT-topT < bot-top && bot-top <= 5 {
				if dep-offset >= a.minK+6 && similarRange >= 5 {
					hit.NumUniqueSearch++
					*pseudogeneStop = true
					break
				}
			}
			if botT-topT != 1 {
				if botT-topT+2 >= bot-top {
					similarRange++
				} else if botT-topT+4 < bot-top {
					similarRange = 0
				}
			} else {
				psStop = false
			}
		}

		if anStop {
			if botT-topT != 1 && bot-top == botT-topT {
				sameRange++
				if sameRange >= 5 {
					anStop = false
				}
			} else {
				sameRange = 0
			}
			if dep-offset >= a.minK+8 && botT-topT >= 4 {
				anStop = false
			}
		}

		top, bot = topT, botT
		dep++

		if anStop {
			if dep-offset >= a.minK+12 && bot-top == 1 {
				hit.NumUniqueSearch++
				*anchorStop = true
				break
			}
		}
	}

	nelt := 0
	if bot > top {
		typ := CandidateHit
		if *anchorStop {
			typ = AnchorHit
		} else if *pseudogeneStop {
			typ = PseudogeneHit
		}
		hit.appendHit(top, bot, fw, offset, dep-offset, typ)
		nelt = bot - top
		hit.Cur = dep
		if hit.Cur >= length {
			if typ == CandidateHit {
				hit.NumUniqueSearch++
			}
			hit.SetDone()
		}
	}
	return nelt
}

// globalSearch performs an exact right-to-left search on the global index
// starting at read position hitoff, stopping early at a unique interval of
// length minK when uniqueStop is enabled.
func (a *Aligner) globalSearch(rd *Read, fw bool, hitoff int, uniqueStop *bool) (nelt, hitlen, top, bot int) {
	usStop := *uniqueStop
	*uniqueStop = false
	ftabLen := a.gidx.FtabChars()
	length := rd.Len()
	seq := rd.SeqFor(fw)

	offset := length - hitoff - 1
	dep := offset
	left := length - dep
	if left < ftabLen {
		return 0, left, 0, 0
	}
	for i := 0; i < ftabLen; i++ {
		if seq[length-dep-1-i] > 3 {
			return 0, i + 1, 0, 0
		}
	}
	top, bot = a.gidx.FtabLoHi(seq, length-dep-ftabLen)
	dep += ftabLen
	if bot <= top {
		return 0, ftabLen, 0, 0
	}
	for dep < length {
		c := seq[length-dep-1]
		var topT, botT int
		if c > 3 {
			topT, botT = 0, 0
		} else if bot-top == 1 {
			a.bwops++
			t := a.gidx.MapLF1(top, c)
			if t < 0 {
				topT, botT = 0, 0
			} else {
				topT, botT = t, t+1
			}
		} else {
			a.bwops += 2
			topT = a.gidx.MapLF(top, c)
			botT = a.gidx.MapLF(bot, c)
		}
		if botT <= topT {
			break
		}
		top, bot = topT, botT
		dep++
		if usStop && bot-top == 1 && dep-offset >= a.minK {
			*uniqueStop = true
			break
		}
	}
	if bot > top {
		return bot - top, dep - offset, top, bot
	}
	return 0, dep - offset, top, bot
}

// localSearch is globalSearch against one tile index, with a unique-stop
// length and an optional cap on the hit length.
func (a *Aligner) localSearch(tile *index.Tile, rd *Read, fw bool, rdoff int, uniqueStop *bool, minUniqueLen, maxHitLen int) (nelt, hitlen, top, bot int) {
	usStop := *uniqueStop
	*uniqueStop = false
	ftabLen := tile.FtabChars()
	length := rd.Len()
	seq := rd.SeqFor(fw)

	offset := length - rdoff - 1
	dep := offset
	left := length - dep
	if left < ftabLen {
		return 0, left, 0, 0
	}
	for i := 0; i < ftabLen; i++ {
		if seq[length-dep-1-i] > 3 {
			return 0, i + 1, 0, 0
		}
	}
	top, bot = tile.FtabLoHi(seq, length-dep-ftabLen)
	dep += ftabLen
	if bot <= top {
		return 0, ftabLen, 0, 0
	}
	for dep < length {
		c := seq[length-dep-1]
		var topT, botT int
		if c > 3 {
			topT, botT = 0, 0
		} else if bot-top == 1 {
			a.bwops++
			t := tile.MapLF1(top, c)
			if t < 0 {
				topT, botT = 0, 0
			} else {
				topT, botT = t, t+1
			}
		} else {
			a.bwops += 2
			topT = tile.MapLF(top, c)
			botT = tile.MapLF(bot, c)
		}
		if botT <= topT {
			break
		}
		top, bot = topT, botT
		dep++
		if usStop && bot-top == 1 && dep-offset >= minUniqueLen {
			*uniqueStop = true
			break
		}
		if dep-offset >= maxHitLen {
			break
		}
	}
	if bot > top {
		return bot - top, dep - offset, top, bot
	}
	return 0, dep - offset, top, bot
}

// getGenomeCoords resolves an SA interval of the global index into genomic
// coordinates. It returns false when a straddled hit must be discarded.
func (a *Aligner) getGenomeCoords(top, bot int, fw bool, maxelt, rdoff, rdlen int, coords *[]Coord, rejectStraddle bool) (bool, bool) {
	nelt := bot - top
	if nelt > maxelt {
		nelt = maxelt
	}
	*coords = (*coords)[:0]
	a.cnt.GlobalGenomeCoords += int64(bot - top)
	a.walker.Init(a.gidx, top, bot)
	straddled := false
	for off := 0; off < nelt; off++ {
		joined := a.walker.AdvanceElement(off, &a.wm)
		tidx, toff, _, straddled2 := a.ref.JoinedToTextOff(rdlen, joined, rejectStraddle)
		straddled = straddled || straddled2
		if tidx < 0 {
			return false, straddled
		}
		if toff < rdoff {
			continue
		}
		*coords = append(*coords, Coord{tidx, toff, fw})
	}
	return true, straddled
}

// getGenomeCoordsLocal is getGenomeCoords against one tile.
func (a *Aligner) getGenomeCoordsLocal(tile *index.Tile, top, bot int, fw bool, rdoff, rdlen int, coords *[]Coord) bool {
	nelt := bot - top
	*coords = (*coords)[:0]
	a.cnt.LocalGenomeCoords += int64(bot - top)
	a.walker.Init(tile.Index, top, bot)
	for off := 0; off < nelt; off++ {
		local := a.walker.AdvanceElement(off, &a.wm)
		toff := local + tile.LocalOffset
		if toff+rdlen > a.ref.ApproxLen(tile.TIdx) {
			continue
		}
		if toff < rdoff {
			continue
		}
		*coords = append(*coords, Coord{tile.TIdx, toff, fw})
	}
	return true
}

// getAnchorHits turns the completed seed record of (rdi, fw) into at most
// maxGenomeHitSize genome hits, preferring anchors over pseudogene hits over
// candidates, then smaller SA ranges, then longer matches. Coordinates that
// project within maxIntronLen of an already chosen hit only bump its
// hitcount.
func (a *Aligner) getAnchorHits(rdi int, fw bool, maxGenomeHitSize int) int {
	fwi := 0
	if !fw {
		fwi = 1
	}
	hit := &a.hits[rdi][fwi]
	offsetSize := len(hit.Partial)
	maxSize := 1
	if hit.Cur >= hit.Len {
		maxSize = maxGenomeHitSize
	}
	a.genomeHits = releaseHits(a.genomeHits)
	for hi := 0; hi < offsetSize; hi++ {
		hj := 0
		for ; hj < offsetSize; hj++ {
			ph := &hit.Partial[hj]
			if ph.Empty() ||
				(ph.Type == CandidateHit && ph.Size() > maxSize) ||
				ph.HasCoords() ||
				ph.Len <= a.minK+2 {
				continue
			}
			break
		}
		if hj >= offsetSize {
			break
		}
		for hk := hj + 1; hk < offsetSize; hk++ {
			phj := &hit.Partial[hj]
			phk := &hit.Partial[hk]
			if phk.Empty() ||
				(phk.Type == CandidateHit && phk.Size() > maxSize) ||
				phk.HasCoords() ||
				phk.Len <= a.minK+2 {
				continue
			}
			if phj.Type == phk.Type {
				if phj.Size() > phk.Size() || (phj.Size() == phk.Size() && phj.Len < phk.Len) {
					hj = hk
				}
			} else if phk.Type > phj.Type {
				hj = hk
			}
		}
		ph := &hit.Partial[hj]
		_, straddled := a.getGenomeCoords(ph.Top, ph.Bot, fw, ph.Size(), hit.Len-ph.Bwoff-ph.Len, ph.Len, &ph.Coords, false)
		if !ph.HasCoords() {
			// mark the slot examined so it is not reselected
			ph.Top, ph.Bot = 0, 0
			continue
		}
		coords := ph.Coords
		genomeHitSize := len(a.genomeHits)
		if genomeHitSize+len(coords) > maxGenomeHitSize {
			a.rnd.Shuffle(len(coords), func(i, j int) { coords[i], coords[j] = coords[j], coords[i] })
		}
		for k := range coords {
			coord := coords[k]
			length := ph.Len
			rdoff := hit.Len - ph.Bwoff - length
			overlapped := false
			for l := 0; l < genomeHitSize; l++ {
				gh := &a.genomeHits[l]
				if gh.Ref() != coord.Tidx || gh.Fw() != coord.Fw {
					continue
				}
				hitoff := gh.Refoff() + hit.Len - gh.Rdoff()
				hitoff2 := coord.Toff + hit.Len - rdoff
				d := hitoff - hitoff2
				if d < 0 {
					d = -d
				}
				if d <= a.opts.MaxIntronLen {
					overlapped = true
					gh.hitcount++
					break
				}
			}
			if !overlapped {
				hlen := length
				if straddled {
					hlen = 1
				}
				a.genomeHits = append(a.genomeHits, Hit{})
				a.genomeHits[len(a.genomeHits)-1].Init(coord.Fw, rdoff, hlen, 0, 0, coord.Tidx, coord.Toff, a.shared)
			}
			if ph.Type == CandidateHit && len(a.genomeHits) >= maxGenomeHitSize {
				break
			}
		}
		if ph.Type == CandidateHit && len(a.genomeHits) >= maxGenomeHitSize {
			break
		}
	}
	return len(a.genomeHits)
}

// align extends the partial alignments of (rdi, fw) into full alignments.
func (a *Aligner) align(rdi int, fw bool) bool {
	rp := a.sink.ReportingParams()
	fwi := 0
	if !fw {
		fwi = 1
	}
	hit := &a.hits[rdi][fwi]
	if w, _ := hit.MinWidth(); w > rp.KHits*2 {
		return false
	}

	bestScore := a.sink.BestUnp(rdi)
	numSpliced := a.sink.BestSplicedUnp(rdi)
	if bestScore < a.minsc[rdi] {
		bestScore = a.minsc[rdi]
	}
	maxmm := int((-bestScore + a.sc.MmpMax() - 1) / a.sc.MmpMax())
	if !a.opts.Secondary && hit.NumActualPartialSearch() > maxmm+numSpliced+1 {
		return true
	}

	numHits := a.getAnchorHits(rdi, fw, rp.KHits)
	if numHits <= 0 {
		return false
	}

	// cap the local-index work spent on this read
	var add int64
	if a.opts.Secondary {
		add = (-a.minsc[rdi] / a.sc.MmpMax()) * int64(numHits) * 2
	} else {
		add = (-a.minsc[rdi] / a.sc.MmpMax()) * int64(numHits)
	}
	if add < 10 {
		add = 10
	}
	a.maxLocalIndexAtts = a.cnt.LocalIndexAtts + add

	a.search.hybridSearch(a, rdi)
	return true
}

// alignMate uses an aligned mate's coordinate as the anchor for a local
// search of the unaligned mate in the expected region.
func (a *Aligner) alignMate(rdi int, fw bool, tidx, toff int) bool {
	ordi := 1 - rdi
	var ofw bool
	if fw == a.opts.Mate2Fw {
		ofw = a.opts.Mate1Fw
	} else {
		ofw = a.opts.Mate2Fw
	}
	ord := a.rds[ordi]
	if ord == nil {
		return false
	}
	rdlen := ord.Len()

	a.genomeHits = releaseHits(a.genomeHits)
	if len(a.coords) == 0 {
		a.coords = append(a.coords, nil)
	}
	coords := &a.coords[0]

	tile := a.tiles.GetTile(tidx, toff)
	success, first := false, true
	count := 0
	maxHitlen := 0
	for !success && count < 2 {
		count++
		if first {
			first = false
		} else {
			tile = a.tiles.Prev(tile)
			if tile == nil {
				break
			}
		}
		hitoff := rdlen - 1
		for hitoff >= a.minKLocal-1 {
			uniqueStop := false
			nelt, hitlen, top, bot := a.localSearch(tile, ord, ofw, hitoff, &uniqueStop, a.minKLocal, rdlen)
			if nelt > 0 && nelt <= 5 && hitlen > maxHitlen {
				a.getGenomeCoordsLocal(tile, top, bot, ofw, hitoff-hitlen+1, hitlen, coords)
				a.genomeHits = releaseHits(a.genomeHits)
				for ri := range *coords {
					coord := (*coords)[ri]
					a.genomeHits = append(a.genomeHits, Hit{})
					a.genomeHits[len(a.genomeHits)-1].Init(coord.Fw, hitoff-hitlen+1, hitlen, 0, 0, coord.Tidx, coord.Toff, a.shared)
				}
				maxHitlen = hitlen
			}
			hitoff -= hitlen - 1
			if hitoff > 0 {
				hitoff--
			}
		}
	}

	if maxHitlen < a.minKLocal {
		return false
	}

	const maxsize = 5
	if len(a.genomeHits) > maxsize {
		a.rnd.Shuffle(len(a.genomeHits), func(i, j int) { a.genomeHits[i], a.genomeHits[j] = a.genomeHits[j], a.genomeHits[i] })
		for i := maxsize; i < len(a.genomeHits); i++ {
			a.genomeHits[i].Release()
		}
		a.genomeHits = a.genomeHits[:maxsize]
	}

	for hi := range a.genomeHits {
		a.cnt.AnchorAtts++
		gh := &a.genomeHits[hi]
		leftext, rightext := maxExtent, maxExtent
		gh.Extend(ord, a.ref, a.ssdb, a.sc, a.minsc[ordi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, 0)
		a.search.hybridSearchRecur(a, ordi, gh, gh.Rdoff(), gh.Len(), 0)
	}
	return true
}

// pairReads scans the unpaired result lists of both mates and reports every
// concordant combination not yet recorded.
func (a *Aligner) pairReads() bool {
	rs1 := a.sink.GetUnp(0)
	rs2 := a.sink.GetUnp(1)
	for i := range rs1 {
		for j := range rs2 {
			exists := false
			for _, p := range a.concordantPairs {
				if p[0] == i && p[1] == j {
					exists = true
					break
				}
			}
			if exists {
				continue
			}
			if a.sink.State().DoneConcordant() {
				return true
			}
			r1, r2 := rs1[i], rs2[j]
			if r1.Tidx != r2.Tidx {
				continue
			}
			leftOff, rightOff := r1.Toff, r1.RefcoordRight()
			left2Off, right2Off := r2.Toff, r2.RefcoordRight()
			if r1.Fw == a.opts.Mate1Fw {
				if r2.Fw != a.opts.Mate2Fw {
					continue
				}
			} else {
				if r2.Fw == a.opts.Mate2Fw {
					continue
				}
				leftOff, left2Off = left2Off, leftOff
				rightOff, right2Off = right2Off, rightOff
			}
			if leftOff > left2Off {
				continue
			}
			if rightOff > right2Off {
				continue
			}
			if rightOff+a.opts.MaxIntronLen < left2Off {
				continue
			}
			if r1.Score+r2.Score >= a.sink.BestPair() || a.opts.Secondary {
				a.sink.Report(r1, r2)
				a.concordantPairs = append(a.concordantPairs, [2]int{i, j})
			}
		}
	}
	return true
}

// redundantCoord reports whether mate rdi already has an alignment covering
// (tidx, toff).
func (a *Aligner) redundantCoord(rdi, tidx, toff int) bool {
	for _, r := range a.sink.GetUnp(rdi) {
		if r.Tidx != tidx {
			continue
		}
		if toff >= r.Toff && toff <= r.RefcoordRight() {
			return true
		}
	}
	return false
}

// redundant reports whether an identical alignment was already recorded.
func (a *Aligner) redundant(rdi int, hit *Hit) bool {
	for _, r := range a.sink.GetUnp(rdi) {
		if r.Tidx == hit.Ref() && r.Toff == hit.Refoff() && r.Fw == hit.Fw() && editsEqual(r.Edits, hit.Edits()) {
			return true
		}
	}
	return false
}

func (a *Aligner) isSearched(rdi int, hit *Hit) bool {
	for i := range a.hitsSearched[rdi] {
		if a.hitsSearched[rdi][i].Equal(hit) {
			return true
		}
	}
	return false
}

func (a *Aligner) addSearched(rdi int, hit *Hit) {
	a.hitsSearched[rdi] = append(a.hitsSearched[rdi], Hit{})
	a.hitsSearched[rdi][len(a.hitsSearched[rdi])-1].CopyFrom(hit)
}

// reportHit converts a fully covering hit into a result record and hands it
// to the sink. Novel splice sites of the reported alignment are recorded in
// the shared database.
func (a *Aligner) reportHit(rdi int, hit *Hit) bool {
	rd := a.rds[rdi]
	rdlen := rd.Len()
	if hit.Rdoff()-hit.Trim5() > 0 || hit.Len()+hit.Trim5()+hit.Trim3() < rdlen {
		return false
	}
	if hit.Score() < a.minsc[rdi] {
		return false
	}
	if debugChecks {
		assert(hit.repOk(rd, a.ref), "reporting inconsistent hit")
	}

	res := a.buildResult(rdi, hit)
	if rdi == 0 && !a.rightendonly {
		return a.sink.Report(res, nil)
	}
	return a.sink.Report(nil, res)
}

func (a *Aligner) buildResult(rdi int, hit *Hit) *AlnResult {
	rd := a.rds[rdi]
	res := &AlnResult{
		Score:       hit.Score(),
		SpliceScore: hit.SpliceScore(),
		Fw:          hit.Fw(),
		Tidx:        hit.Ref(),
		Toff:        hit.Refoff(),
		ReadLen:     rd.Len(),
		RefLen:      a.ref.ApproxLen(hit.Ref()),
		Trim5:       hit.Trim5(),
		Trim3:       hit.Trim3(),
		NumSplices:  hit.NumSplices(),
	}
	res.Edits = append([]Edit(nil), hit.Edits()...)
	if hit.Trim5() > 0 {
		for i := range res.Edits {
			res.Edits[i].Pos += hit.Trim5()
		}
	}

	// record novel splice sites so later reads can reuse them
	toffBase := hit.Refoff()
	for i := range hit.Edits() {
		e := &hit.Edits()[i]
		switch e.Type {
		case EditSplice:
			left := toffBase + e.Pos - 1
			right := left + e.SplLen + 1
			if !e.KnownSpl {
				a.ssdb.Add(SpliceSite{
					Tidx:   hit.Ref(),
					Left:   left,
					Right:  right,
					Dir:    e.SplDir,
					ReadID: rd.ID,
				})
			}
			toffBase += e.SplLen
		case EditReadGap:
			toffBase++
		case EditRefGap:
			toffBase--
		}
	}

	// prefer exonic alignments near splice sites over pseudogene placements
	res.NearSpliceSites = hit.Spliced()
	if !a.opts.NoSplicedAlignment && !hit.Spliced() {
		const maxExonSize = 2000
		left1, right1 := 0, hit.Refoff()
		if right1 > maxExonSize {
			left1 = right1 - maxExonSize
		}
		left2 := hit.Refoff() + hit.Len() - 1
		right2 := left2 + maxExonSize
		res.NearSpliceSites = a.ssdb.HasSpliceSites(hit.Ref(), left1, right1, left2, right2, true)
	}
	return res
}
