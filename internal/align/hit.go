package align

import (
	"math"

	"github.com/Carla-Radames/Rhisat/internal/reference"
)

// Numeric bounds of the hit algebra.
const (
	maxInsLen          = 3
	maxDelLen          = 3
	minAnchorLen       = 7
	minAnchorLenNoncan = 14

	scoreSentinel = -1000
	minScore      = math.MinInt64
)

// maxIntronLenCanonical returns the permitted intron length for a canonical
// splice given the shorter anchor length, or 0 when the anchor is too short.
func maxIntronLenCanonical(anchor int) int {
	if anchor < minAnchorLen {
		return 0
	}
	shift := anchor<<1 - 4
	if shift < 13 {
		shift = 13
	}
	if shift > 30 {
		shift = 30
	}
	return 1 << uint(shift)
}

// maxIntronLenNoncan is maxIntronLenCanonical for non-canonical splices.
func maxIntronLenNoncan(anchor int) int {
	if anchor < minAnchorLenNoncan {
		return 0
	}
	shift := anchor<<1 - 10
	if shift > 30 {
		shift = 30
	}
	return 1 << uint(shift)
}

// intronLenProb relates an observed intron length to the longest intron the
// anchor supports, capped at 1.
func intronLenProb(anchor, intronLen, maxIntronLen int) float64 {
	expected := maxIntronLen
	if anchor < 14 {
		expected = 1 << uint(anchor<<1+4)
		if expected > maxIntronLen {
			expected = maxIntronLen
		}
	}
	r := float64(intronLen) / float64(expected)
	if r > 1 {
		r = 1
	}
	return r
}

func intronLenProbNoncan(anchor, intronLen, maxIntronLen int) float64 {
	expected := maxIntronLen
	if anchor < 16 {
		expected = 1 << uint(anchor<<1)
		if expected > maxIntronLen {
			expected = maxIntronLen
		}
	}
	r := float64(intronLen) / float64(expected)
	if r > 1 {
		r = 1
	}
	return r
}

// Coord is a genomic coordinate: reference id, leftmost offset, strand.
type Coord struct {
	Tidx int
	Toff int
	Fw   bool
}

// Hit is a partial (or full) alignment of a read window against one
// reference. Its edit slice is borrowed from the worker's shared arena;
// Release returns it.
type Hit struct {
	fw    bool
	rdoff int
	len   int
	trim5 int
	trim3 int
	tidx  int
	toff  int

	edits       []Edit
	score       int64
	splicescore float64
	hitcount    int

	shared *TempVars
}

// Init resets the hit to a fresh partial alignment with no edits.
func (h *Hit) Init(fw bool, rdoff, length, trim5, trim3, tidx, toff int, shared *TempVars) {
	h.fw = fw
	h.rdoff = rdoff
	h.len = length
	h.trim5 = trim5
	h.trim3 = trim3
	h.tidx = tidx
	h.toff = toff
	h.score = 0
	h.splicescore = 0
	h.hitcount = 1
	if h.shared == nil {
		h.shared = shared
		h.edits = shared.getEdits()
	} else {
		h.edits = h.edits[:0]
	}
}

// Release returns the edit storage to the arena. The hit is unusable until
// re-initialized.
func (h *Hit) Release() {
	if h.shared != nil {
		h.shared.putEdits(h.edits)
		h.edits = nil
		h.shared = nil
	}
}

// CopyFrom deep-copies other into h, borrowing fresh edit storage when
// needed.
func (h *Hit) CopyFrom(other *Hit) {
	if h == other {
		return
	}
	h.Init(other.fw, other.rdoff, other.len, other.trim5, other.trim3, other.tidx, other.toff, other.shared)
	h.edits = append(h.edits, other.edits...)
	h.score = other.score
	h.splicescore = other.splicescore
	h.hitcount = other.hitcount
}

// Inited reports whether the hit has been initialized.
func (h *Hit) Inited() bool { return h.shared != nil }

func (h *Hit) Fw() bool            { return h.fw }
func (h *Hit) Rdoff() int          { return h.rdoff }
func (h *Hit) Len() int            { return h.len }
func (h *Hit) Trim5() int          { return h.trim5 }
func (h *Hit) Trim3() int          { return h.trim3 }
func (h *Hit) Ref() int            { return h.tidx }
func (h *Hit) Refoff() int         { return h.toff }
func (h *Hit) Score() int64        { return h.score }
func (h *Hit) SpliceScore() float64 { return h.splicescore }
func (h *Hit) HitCount() int       { return h.hitcount }
func (h *Hit) Edits() []Edit       { return h.edits }

func (h *Hit) SetTrim5(t int) { h.trim5 = t }
func (h *Hit) SetTrim3(t int) { h.trim3 = t }

// Coordinate returns the leftmost coordinate of the hit.
func (h *Hit) Coordinate() Coord { return Coord{h.tidx, h.toff, h.fw} }

// Equal reports structural equality (coordinates, trims, and edit script).
func (h *Hit) Equal(other *Hit) bool {
	return h.fw == other.fw &&
		h.rdoff == other.rdoff &&
		h.len == other.len &&
		h.tidx == other.tidx &&
		h.toff == other.toff &&
		h.trim5 == other.trim5 &&
		h.trim3 == other.trim3 &&
		editsEqual(h.edits, other.edits)
}

// Spliced reports whether the hit contains a splice edit.
func (h *Hit) Spliced() bool {
	for i := range h.edits {
		if h.edits[i].Type == EditSplice {
			return true
		}
	}
	return false
}

// NumSplices counts splice edits.
func (h *Hit) NumSplices() int {
	n := 0
	for i := range h.edits {
		if h.edits[i].Type == EditSplice {
			n++
		}
	}
	return n
}

// RightOff returns the reference offset one past the rightmost aligned base.
func (h *Hit) RightOff() int {
	toff := h.toff + h.len
	for i := range h.edits {
		switch h.edits[i].Type {
		case EditSplice:
			toff += h.edits[i].SplLen
		case EditReadGap:
			toff++
		case EditRefGap:
			toff--
		}
	}
	return toff
}

// GetLeft returns the leftmost exonic partial of the hit: the read window
// and reference offset up to the first indel or splice. With rd and sc it
// also returns the mismatch-score sum inside that partial.
func (h *Hit) GetLeft(rd *Read, sc *Scoring) (rdoff, length, toff int, score int64) {
	rdoff, length, toff = h.rdoff, h.len, h.toff
	for i := range h.edits {
		e := &h.edits[i]
		if e.isGapOrSplice() {
			length = e.Pos
			break
		}
		if rd != nil && e.Type == EditMM {
			score += sc.Score(int(e.Qchr), 1<<e.Chr, rd.qualAt(h.fw, h.rdoff+e.Pos))
		}
	}
	return rdoff, length, toff, score
}

// GetRight is GetLeft for the rightmost exonic partial.
func (h *Hit) GetRight(rd *Read, sc *Scoring) (rdoff, length, toff int, score int64) {
	rdoff, length, toff = h.rdoff, h.len, h.toff
	if len(h.edits) == 0 {
		return
	}
	for i := len(h.edits) - 1; i >= 0; i-- {
		e := &h.edits[i]
		if e.isGapOrSplice() {
			rdoff = h.rdoff + e.Pos
			length = h.len - e.Pos
			if e.Type == EditRefGap {
				rdoff++
				length--
			}
			toff = h.RightOff() - length
			break
		}
		if rd != nil && e.Type == EditMM {
			score += sc.Score(int(e.Qchr), 1<<e.Chr, rd.qualAt(h.fw, h.rdoff+e.Pos))
		}
	}
	return rdoff, length, toff, score
}

// LeftAnchor returns the length of the leftmost anchor (up to the first
// splice) and the number of mismatch/indel edits inside it.
func (h *Hit) LeftAnchor() (anchor, nedits int) {
	anchor = h.len
	for i := range h.edits {
		e := &h.edits[i]
		if e.Type == EditSplice {
			anchor = e.Pos
			break
		}
		nedits++
	}
	return anchor, nedits
}

// RightAnchor is LeftAnchor from the right end.
func (h *Hit) RightAnchor() (anchor, nedits int) {
	anchor = h.len
	for i := len(h.edits) - 1; i >= 0; i-- {
		e := &h.edits[i]
		if e.Type == EditSplice {
			anchor = h.len - e.Pos - 1
			break
		}
		nedits++
	}
	return anchor, nedits
}

// CompatibleWith reports whether h (read-order earlier) can be combined with
// other: same strand and reference, consistent ordering on read and
// reference, and a gap between the facing partials that is either empty, a
// short indel, or an intron within bounds.
func (h *Hit) CompatibleWith(other *Hit, minIntronLen, maxIntronLen int, noSpliced bool) bool {
	if h == other {
		return false
	}
	if h.fw != other.fw || h.tidx != other.tidx {
		return false
	}
	if h.rdoff > other.rdoff {
		return false
	}
	if h.rdoff+h.len > other.rdoff+other.len {
		return false
	}
	if h.toff > other.toff {
		return false
	}

	thisRdoff, thisLen, thisToff, _ := h.GetRight(nil, nil)
	otherRdoff, otherLen, otherToff, _ := other.GetLeft(nil, nil)

	if thisRdoff > otherRdoff {
		return false
	}
	if thisRdoff+thisLen > otherRdoff+otherLen {
		return false
	}
	if thisToff > otherToff {
		return false
	}

	refdif := otherToff - thisToff
	rddif := otherRdoff - thisRdoff
	if rddif != refdif {
		if rddif > refdif {
			if rddif > refdif+maxInsLen {
				return false
			}
		} else {
			if refdif-rddif < minIntronLen {
				if refdif-rddif > maxDelLen {
					return false
				}
			} else {
				if noSpliced {
					return false
				}
				if refdif-rddif > maxIntronLen {
					return false
				}
			}
		}
	}
	return true
}

// CombineWith merges other (read-order later, already compatible) into h,
// discovering the intervening mismatches and the indel or splice between the
// facing partials. On success h covers both windows and carries the
// recomputed score; on failure h is left unchanged in coverage (its edits
// may have been rebuilt only on success paths).
func (h *Hit) CombineWith(
	other *Hit,
	rd *Read,
	ref *reference.Reference,
	ssdb *SpliceSiteDB,
	sc *Scoring,
	minsc int64,
	minKLocal, minIntronLen, maxIntronLen int,
	canMal, noncanMal int,
	spliceSite *SpliceSite,
	noSpliced bool,
) bool {
	if h == other {
		return false
	}
	assert(h.CompatibleWith(other, minIntronLen, maxIntronLen, noSpliced), "combine on incompatible hits")
	if h.tidx != other.tidx || h.tidx >= ref.NumRefs() {
		return false
	}

	thisRdoff, thisLen, thisToff, thisScore := h.GetRight(rd, sc)
	otherRdoff, otherLen, otherToff, otherScore := other.GetLeft(rd, sc)
	if thisRdoff > otherRdoff {
		return false
	}
	if thisLen != 0 && otherLen != 0 && thisRdoff+thisLen >= otherRdoff+otherLen {
		return false
	}
	length := otherRdoff - thisRdoff + otherLen
	reflen := ref.ApproxLen(h.tidx)
	if thisToff+length > reflen {
		return false
	}

	refdif := otherToff - thisToff
	rddif := otherRdoff - thisRdoff
	spliced, ins, del := false, false, false
	if refdif != rddif {
		if refdif > rddif {
			if refdif-rddif >= minIntronLen {
				spliced = true
			} else {
				del = true
			}
		} else {
			ins = true
		}
	}
	if noSpliced && spliced {
		return false
	}

	// No indel, no splice, exactly abutting: concatenate and rescore.
	if !spliced && !ins && !del && thisRdoff+thisLen == otherRdoff {
		addoff := other.rdoff - h.rdoff
		for i := range other.edits {
			e := other.edits[i]
			e.Pos += addoff
			h.edits = append(h.edits, e)
		}
		h.len += other.len
		h.score = h.calculateScore(rd, ssdb, sc, minKLocal, minIntronLen, maxIntronLen, ref)
		return true
	}

	seq := rd.SeqFor(h.fw)
	qual := rd.QualFor(h.fw)
	rdlen := rd.Len()
	remainsc := minsc - (h.score - thisScore) - (other.score - otherScore)
	if remainsc > 0 {
		remainsc = 0
	}
	readGaps := 0
	if spliced {
		readGaps = sc.MaxReadGaps(remainsc+sc.CanSpl(refdif-rddif), rdlen)
	}
	thisRefExt := readGaps
	if spliced {
		thisRefExt += donorIntronicLen
	}
	if thisToff+length > reflen {
		return false
	}
	if thisToff+length+thisRefExt > reflen {
		thisRefExt = reflen - (thisToff + length)
	}

	tmp := h.shared
	tmp.refbuf = ref.GetStretch(tmp.refbuf[:0], h.tidx, thisToff, length+thisRefExt)
	refbuf := tmp.refbuf

	maxscorei := length // split index; length means "no split examined"
	var maxscore int64 = minScore
	maxspldir := SpliceUnknown
	maxsplscore := 0.0
	var donorSeq, acceptorSeq uint64
	intronLen := refdif - rddif
	var otherRefExt int

	if spliced || ins || del {
		otherRefExt = readGaps + donorIntronicLen
		if m := otherToff + otherLen - length; otherRefExt > m {
			otherRefExt = m
		}
		if otherRefExt < 0 {
			otherRefExt = 0
		}
		tmp.refbuf2 = ref.GetStretch(tmp.refbuf2[:0], other.tidx, otherToff+otherLen-length-otherRefExt, length+otherRefExt)
		// refbuf2At(i) is valid for i in [-otherRefExt, length)
		refbuf2At := func(i int) byte { return tmp.refbuf2[i+otherRefExt] }
		scores, scores2 := tmp.scoreBufs(length)

		if spliced {
			var i, i2 int
			for i = 0; i < length; i++ {
				rdc := int(seq[thisRdoff+i])
				rfc := int(refbuf[i])
				if i > 0 {
					scores[i] = scores[i-1]
				} else {
					scores[i] = 0
				}
				if rdc != rfc {
					scores[i] += sc.Score(rdc, 1<<uint(rfc), int(qual[thisRdoff+i])-33)
				}
				if scores[i] < remainsc {
					break
				}
			}
			iLimit := i
			if iLimit > length {
				iLimit = length
			}
			for i2 = length - 1; i2 >= 0; i2-- {
				rdc := int(seq[thisRdoff+i2])
				rfc := int(refbuf2At(i2))
				if i2+1 < length {
					scores2[i2] = scores2[i2+1]
				} else {
					scores2[i2] = 0
				}
				if rdc != rfc {
					scores2[i2] += sc.Score(rdc, 1<<uint(rfc), int(qual[thisRdoff+i2])-33)
				}
				if scores2[i2] < remainsc {
					break
				}
			}
			i2Limit := i2
			if i2Limit < 0 {
				i2Limit = 0
			}
			if spliceSite != nil {
				ssSplit := spliceSite.Left - thisToff
				if i2Limit <= ssSplit {
					i2Limit = ssSplit
					iLimit = i2Limit + 1
				} else {
					iLimit = i2Limit
				}
			}
			for i, i2 = i2Limit, i2Limit+1; i < iLimit && i2 < length; i, i2 = i+1, i2+1 {
				tempscore := scores[i] + scores2[i2]
				donor, acceptor := byte(0xff), byte(0xff)
				if i+2 < length+thisRefExt {
					donor = refbuf[i+1]<<4 | refbuf[i+2]
				}
				if i2-2 >= -otherRefExt {
					acceptor = refbuf2At(i2-2)<<4 | refbuf2At(i2-1)
				}
				spldir := SpliceUnknown
				if donor == dinucGT && acceptor == dinucAG {
					spldir = SpliceFw
				} else if donor == dinucAGrc && acceptor == dinucGTrc {
					spldir = SpliceRC
				}
				semiCanonical := (donor == dinucGC && acceptor == dinucAG) ||
					(donor == dinucAT && acceptor == dinucAC) ||
					(donor == dinucAGrc && acceptor == dinucGCrc) ||
					(donor == dinucACrc && acceptor == dinucATrc)
				if spldir == SpliceUnknown {
					tempscore -= sc.NoncanSpl(intronLen)
				} else {
					tempscore -= sc.CanSpl(intronLen)
				}
				var tempDonorSeq, tempAcceptorSeq uint64
				splscore := 0.0
				if spldir != SpliceUnknown {
					// extract donor and acceptor context to score the
					// splicing event
					if spldir == SpliceFw {
						if i+1 >= donorExonicLen &&
							length+thisRefExt > i+donorIntronicLen &&
							i2+otherRefExt >= acceptorIntronicLen &&
							length > i2+acceptorExonicLen-1 {
							for j := i + 1 - donorExonicLen; j <= i+donorIntronicLen; j++ {
								base := refbuf[j]
								if base > 3 {
									base = 0
								}
								tempDonorSeq = tempDonorSeq<<2 | uint64(base)
							}
							for j := i2 - acceptorIntronicLen; j <= i2+acceptorExonicLen-1; j++ {
								base := refbuf2At(j)
								if base > 3 {
									base = 0
								}
								tempAcceptorSeq = tempAcceptorSeq<<2 | uint64(base)
							}
						}
					} else {
						if i+1 >= acceptorExonicLen &&
							length+thisRefExt > i+acceptorIntronicLen &&
							i2+otherRefExt >= donorIntronicLen &&
							length > i2+donorExonicLen-1 {
							for j := i + acceptorIntronicLen; j >= i+1-acceptorExonicLen; j-- {
								base := refbuf[j]
								if base > 3 {
									base = 0
								}
								tempAcceptorSeq = tempAcceptorSeq<<2 | uint64(base^0x3)
							}
							for j := i2 + donorExonicLen - 1; j >= i2-donorIntronicLen; j-- {
								base := refbuf2At(j)
								if base > 3 {
									base = 0
								}
								tempDonorSeq = tempDonorSeq<<2 | uint64(base^0x3)
							}
						}
					}
					splscore = ssdb.Probscore(tempDonorSeq, tempAcceptorSeq)
				}
				// prefer higher score, canonical over unknown, then higher
				// splice-site probability
				better := (maxspldir == SpliceUnknown && spldir == SpliceUnknown && maxscore < tempscore) ||
					(maxspldir == SpliceUnknown && spldir == SpliceUnknown && maxscore == tempscore && semiCanonical) ||
					(maxspldir != SpliceUnknown && spldir != SpliceUnknown &&
						(maxscore < tempscore || (maxscore == tempscore && maxsplscore < splscore))) ||
					(maxspldir == SpliceUnknown && spldir != SpliceUnknown)
				if better {
					maxscore = tempscore
					maxscorei = i
					maxspldir = spldir
					maxsplscore = splscore
					if maxspldir != SpliceUnknown {
						donorSeq = tempDonorSeq
						acceptorSeq = tempAcceptorSeq
					} else {
						donorSeq = 0
						acceptorSeq = 0
					}
				}
			}
		} else {
			// discover an insertion or a deletion
			inslen, dellen := 0, 0
			var gapPenalty int64
			if ins {
				inslen = rddif - refdif
				gapPenalty = -(sc.RefGapOpen() + sc.RefGapExtend()*int64(inslen-1))
			} else {
				dellen = refdif - rddif
				gapPenalty = -(sc.ReadGapOpen() + sc.ReadGapExtend()*int64(dellen-1))
			}
			if gapPenalty < remainsc {
				return false
			}
			var i, i2 int
			for i = 0; i < length; i++ {
				rdc := int(seq[thisRdoff+i])
				rfc := int(refbuf[i])
				if i > 0 {
					scores[i] = scores[i-1]
				} else {
					scores[i] = 0
				}
				if rdc != rfc {
					scores[i] += sc.Score(rdc, 1<<uint(rfc), int(qual[thisRdoff+i])-33)
				}
				if scores[i]+gapPenalty < remainsc {
					break
				}
			}
			iLimit := i
			if iLimit > length {
				iLimit = length
			}
			for i2 = length - 1; i2 >= 0; i2-- {
				rdc := int(seq[thisRdoff+i2])
				rfc := int(refbuf2At(i2))
				if i2+1 < length {
					scores2[i2] = scores2[i2+1]
				} else {
					scores2[i2] = 0
				}
				if rdc != rfc {
					scores2[i2] += sc.Score(rdc, 1<<uint(rfc), int(qual[thisRdoff+i2])-33)
				}
				if scores2[i2]+gapPenalty < remainsc {
					break
				}
			}
			i2Limit := i2 - inslen
			if i2Limit < 0 {
				i2Limit = 0
			}
			for i, i2 = i2Limit, i2Limit+1+inslen; i < iLimit && i2 < length; i, i2 = i+1, i2+1 {
				tempscore := scores[i] + scores2[i2] + gapPenalty
				if maxscore < tempscore {
					maxscore = tempscore
					maxscorei = i
				}
			}
		}
		if maxscore == minScore {
			return false
		}
		if spliced && spliceSite == nil {
			shorterAnchor := maxscorei + 1
			if r := length - maxscorei - 1; r < shorterAnchor {
				shorterAnchor = r
			}
			if maxspldir == SpliceUnknown {
				if shorterAnchor < noncanMal {
					if intronLenProbNoncan(shorterAnchor, otherToff-thisToff, maxIntronLen) > 0.01 {
						return false
					}
				}
			} else {
				if shorterAnchor < canMal {
					if intronLenProb(shorterAnchor, otherToff-thisToff, maxIntronLen) > 0.01 {
						return false
					}
				}
			}
		}
		if maxscore < remainsc {
			return false
		}
	}

	// Keep h's edits up to and including its last indel/splice; the right
	// partial's mismatches are rebuilt below.
	clear := true
	for i := len(h.edits) - 1; i >= 0; i-- {
		if h.edits[i].isGapOrSplice() {
			h.edits = h.edits[:i+1]
			clear = false
			break
		}
	}
	if clear {
		h.edits = h.edits[:0]
	}

	addoff := thisRdoff - h.rdoff
	if spliced {
		for i := 0; i < length; i++ {
			rdc := seq[thisRdoff+i]
			var rfc byte
			if i <= maxscorei {
				rfc = refbuf[i]
			} else {
				rfc = tmp.refbuf2[i+otherRefExt]
			}
			if rdc != rfc {
				h.edits = append(h.edits, Edit{Pos: i + addoff, Type: EditMM, Chr: rfc, Qchr: rdc})
			}
			if i == maxscorei {
				left := thisToff + i + 1
				right := otherToff + otherLen - (length - i - 1)
				skipLen := right - left
				h.edits = append(h.edits, Edit{
					Pos:         i + 1 + addoff,
					Type:        EditSplice,
					SplLen:      skipLen,
					SplDir:      maxspldir,
					KnownSpl:    spliceSite != nil,
					DonorSeq:    donorSeq,
					AcceptorSeq: acceptorSeq,
				})
			}
		}
	} else {
		for i := 0; i < length; i++ {
			rdc := seq[thisRdoff+i]
			var rfc byte
			if i <= maxscorei {
				rfc = refbuf[i]
			} else {
				rfc = tmp.refbuf2[i+otherRefExt]
			}
			if rdc != rfc {
				h.edits = append(h.edits, Edit{Pos: i + addoff, Type: EditMM, Chr: rfc, Qchr: rdc})
			}
			if i == maxscorei {
				left := thisToff + i + 1
				right := otherToff + otherLen - (length - i - 1)
				if del {
					skipLen := right - left
					for j := 0; j < skipLen; j++ {
						var rfcj byte
						if i+1+j < length+thisRefExt {
							rfcj = refbuf[i+1+j]
						} else {
							rfcj = ref.GetBase(h.tidx, thisToff+i+1+j)
						}
						h.edits = append(h.edits, Edit{Pos: i + 1 + addoff, Type: EditReadGap, Chr: rfcj, Qchr: '-'})
					}
				} else if ins {
					skipLen := left - right
					for j := 0; j < skipLen; j++ {
						rdcj := seq[thisRdoff+i+1+j]
						h.edits = append(h.edits, Edit{Pos: i + 1 + j + addoff, Type: EditRefGap, Chr: '-', Qchr: rdcj})
					}
					i += skipLen
				}
			}
		}
	}

	// Append other's edits from its first indel/splice onward; earlier
	// mismatches were re-derived above.
	fsi := len(other.edits)
	for i := range other.edits {
		if other.edits[i].isGapOrSplice() {
			fsi = i
			break
		}
	}
	addoff2 := other.rdoff - h.rdoff
	for i := fsi; i < len(other.edits); i++ {
		e := other.edits[i]
		e.Pos += addoff2
		h.edits = append(h.edits, e)
	}

	if ins || del {
		h.LeftAlign(rd)
	}

	h.len = other.rdoff + other.len - h.rdoff
	h.score = h.calculateScore(rd, ssdb, sc, minKLocal, minIntronLen, maxIntronLen, ref)
	h.trim3 += other.trim3
	if debugChecks {
		assert(h.repOk(rd, ref), "combineWith produced inconsistent hit")
	}
	return true
}

// Extend grows the hit outward by up to *leftext and *rightext read bases
// with at most mm mismatches per side, opening at most one short gap per
// side when the budget allows. On return *leftext and *rightext hold the
// bases actually gained.
func (h *Hit) Extend(
	rd *Read,
	ref *reference.Reference,
	ssdb *SpliceSiteDB,
	sc *Scoring,
	minsc int64,
	minKLocal, minIntronLen, maxIntronLen int,
	leftext, rightext *int,
	mm int,
) bool {
	if h.tidx >= ref.NumRefs() {
		return false
	}
	maxLeftext, maxRightext := *leftext, *rightext
	*leftext, *rightext = 0, 0
	rdlen := rd.Len()
	doLeftAlign := false
	seq := rd.SeqFor(h.fw)
	qual := rd.QualFor(h.fw)
	tmp := h.shared

	if maxLeftext > 0 && h.rdoff > 0 {
		if h.rdoff > h.toff {
			return false
		}
		rl := h.toff - h.rdoff
		reflen := ref.ApproxLen(h.tidx)
		readGaps := sc.MaxReadGaps(minsc-h.score, rdlen)
		refGaps := sc.MaxRefGaps(minsc-h.score, rdlen)
		if mm <= 0 {
			readGaps, refGaps = 0, 0
		}
		if readGaps > rl {
			readGaps = rl
			rl = 0
		} else {
			rl -= readGaps
		}
		if refGaps > h.rdoff-1 {
			refGaps = h.rdoff - 1
		}
		if refGaps < 0 {
			refGaps = 0
		}
		if rl+readGaps+h.rdoff <= reflen {
			tmp.refbuf = ref.GetStretch(tmp.refbuf[:0], h.tidx, rl, h.rdoff+readGaps)
			refbuf := tmp.refbuf
			bestGapOff, bestExt := 0, 0
			var bestScore int64 = minScore
			for gapOff := -readGaps; gapOff <= refGaps; gapOff++ {
				rdGapOff := gapOff
				if rdGapOff > 0 {
					rdGapOff = 0
				}
				refGapOff := -gapOff
				if refGapOff > 0 {
					refGapOff = 0
				}
				tempExt, tempMM, tempMMExt := 0, 0, 0
				var tempScore int64
				if rdGapOff < 0 {
					tempScore -= sc.ReadGapOpen() + sc.ReadGapExtend()*int64(-rdGapOff-1)
				} else if refGapOff < 0 {
					tempScore -= sc.RefGapOpen() + sc.RefGapExtend()*int64(-refGapOff-1)
				}
				for tempExt-refGapOff < h.rdoff && tempExt-refGapOff < minKLocal {
					rdcOff := h.rdoff - tempExt - 1 + refGapOff
					if rdcOff < 0 || rdcOff >= rdlen {
						break
					}
					rdc := int(seq[rdcOff])
					rfcOff := h.rdoff - tempExt - 1 + readGaps + rdGapOff
					if rfcOff < 0 {
						break
					}
					rfc := int(refbuf[rfcOff])
					if rdc != rfc {
						tempMM++
						tempScore += sc.Score(rdc, 1<<uint(rfc), int(qual[rdcOff])-33)
					}
					if tempMM <= mm {
						tempMMExt++
					}
					tempExt++
				}
				if bestScore < tempScore {
					bestGapOff = gapOff
					bestExt = tempMMExt
					bestScore = tempScore
				}
			}
			if bestExt > 0 {
				addedEdit := 0
				rdGapOff := bestGapOff
				if rdGapOff > 0 {
					rdGapOff = 0
				}
				refGapOff := -bestGapOff
				if refGapOff > 0 {
					refGapOff = 0
				}
				if rdGapOff < 0 {
					for i := -1; i >= rdGapOff; i-- {
						rfc := refbuf[h.rdoff+readGaps+i]
						h.edits = insertEdit(h.edits, 0, Edit{Pos: 0, Type: EditReadGap, Chr: rfc, Qchr: '-'})
						addedEdit++
					}
					doLeftAlign = true
				} else if refGapOff < 0 {
					for i := -1; i >= refGapOff; i-- {
						rdc := seq[h.rdoff+i]
						h.edits = insertEdit(h.edits, 0, Edit{Pos: -i, Type: EditRefGap, Chr: '-', Qchr: rdc})
						addedEdit++
					}
					doLeftAlign = true
				}
				leftMM := 0
				ext := 0
				for ext-refGapOff < h.rdoff && ext-refGapOff < maxLeftext {
					rdcOff := h.rdoff - ext - 1 + refGapOff
					rdc := seq[rdcOff]
					rfcOff := h.rdoff - ext - 1 + readGaps + rdGapOff
					rfc := refbuf[rfcOff]
					if rdc != rfc {
						leftMM++
						if leftMM > mm {
							break
						}
						h.edits = insertEdit(h.edits, 0, Edit{Pos: ext + 1 - refGapOff, Type: EditMM, Chr: rfc, Qchr: rdc})
						addedEdit++
					}
					ext++
				}
				ext -= refGapOff
				if ext > 0 {
					h.toff -= ext + refGapOff - rdGapOff
					h.rdoff -= ext
					h.len += ext
					// prepended edits were recorded most-recent-first with
					// distances from the old boundary; the remap below turns
					// them into ascending positions from the new read start
					for i := range h.edits {
						if i < addedEdit {
							h.edits[i].Pos = ext - h.edits[i].Pos
						} else {
							h.edits[i].Pos += ext
						}
					}
					*leftext = ext
				}
			}
		}
	}

	if maxRightext > 0 && h.rdoff+h.len < rdlen {
		_, rightLen, rightToff, _ := h.GetRight(nil, nil)
		rl := rightToff + rightLen
		rr := rdlen - (h.rdoff + h.len)
		reflen := ref.ApproxLen(h.tidx)
		readGaps := sc.MaxReadGaps(minsc-h.score, rdlen)
		refGaps := sc.MaxRefGaps(minsc-h.score, rdlen)
		if mm <= 0 {
			readGaps, refGaps = 0, 0
		}
		if rl+rr+readGaps > reflen {
			if rl+rr >= reflen {
				readGaps = 0
			} else {
				readGaps = reflen - (rl + rr)
			}
		}
		rr += readGaps
		if refGaps > rdlen-(h.rdoff+h.len)-1 {
			refGaps = rdlen - (h.rdoff + h.len) - 1
		}
		if refGaps < 0 {
			refGaps = 0
		}
		if rl+rr <= reflen {
			tmp.refbuf = ref.GetStretch(tmp.refbuf[:0], h.tidx, rl, rr)
			refbuf := tmp.refbuf
			bestGapOff, bestExt := 0, 0
			var bestScore int64 = minScore
			for gapOff := -readGaps; gapOff <= refGaps; gapOff++ {
				rdGapOff := -gapOff
				if rdGapOff < 0 {
					rdGapOff = 0
				}
				refGapOff := gapOff
				if refGapOff < 0 {
					refGapOff = 0
				}
				tempExt, tempMM, tempMMExt := 0, 0, 0
				var tempScore int64
				if rdGapOff > 0 {
					tempScore -= sc.ReadGapOpen() + sc.ReadGapExtend()*int64(rdGapOff-1)
				} else if refGapOff > 0 {
					tempScore -= sc.RefGapOpen() + sc.RefGapExtend()*int64(refGapOff-1)
				}
				for h.rdoff+h.len+tempExt+refGapOff < rdlen && tempExt+refGapOff < minKLocal {
					rdcOff := h.rdoff + h.len + tempExt + refGapOff
					if rdcOff < 0 || rdcOff >= rdlen {
						break
					}
					rdc := int(seq[rdcOff])
					rfcOff := tempExt + rdGapOff
					if rfcOff >= rr {
						break
					}
					rfc := int(refbuf[rfcOff])
					if rdc != rfc {
						tempMM++
						tempScore += sc.Score(rdc, 1<<uint(rfc), int(qual[rdcOff])-33)
					}
					if tempMM <= mm {
						tempMMExt++
					}
					tempExt++
				}
				if bestScore < tempScore {
					bestGapOff = gapOff
					bestExt = tempMMExt
					bestScore = tempScore
				}
			}
			if bestExt > 0 {
				rdGapOff := -bestGapOff
				if rdGapOff < 0 {
					rdGapOff = 0
				}
				refGapOff := bestGapOff
				if refGapOff < 0 {
					refGapOff = 0
				}
				if rdGapOff > 0 {
					for i := 0; i < rdGapOff; i++ {
						rfc := refbuf[i]
						h.edits = append(h.edits, Edit{Pos: h.len, Type: EditReadGap, Chr: rfc, Qchr: '-'})
					}
					doLeftAlign = true
				} else if refGapOff > 0 {
					for i := 0; i < refGapOff; i++ {
						rdc := seq[h.rdoff+h.len+i]
						h.edits = append(h.edits, Edit{Pos: h.len + i, Type: EditRefGap, Chr: '-', Qchr: rdc})
					}
					doLeftAlign = true
				}
				rightMM := 0
				ext := 0
				for h.rdoff+h.len+ext+refGapOff < rdlen && ext+refGapOff < maxRightext {
					rdcOff := h.rdoff + h.len + ext + refGapOff
					rdc := seq[rdcOff]
					rfc := refbuf[ext+rdGapOff]
					if rdc != rfc {
						rightMM++
						if rightMM > mm {
							break
						}
						h.edits = append(h.edits, Edit{Pos: h.len + ext + refGapOff, Type: EditMM, Chr: rfc, Qchr: rdc})
					}
					ext++
				}
				ext += refGapOff
				h.len += ext
				*rightext = ext
			}
		}
	}

	if doLeftAlign {
		h.LeftAlign(rd)
	}
	h.score = h.calculateScore(rd, ssdb, sc, minKLocal, minIntronLen, maxIntronLen, ref)
	if debugChecks {
		assert(h.repOk(rd, ref), "extend produced inconsistent hit")
	}
	return *leftext > 0 || *rightext > 0
}

func insertEdit(edits []Edit, at int, e Edit) []Edit {
	edits = append(edits, Edit{})
	copy(edits[at+1:], edits[at:])
	edits[at] = e
	return edits
}

// LeftAlign shuffles every run of same-direction indel edits to the leftmost
// reference position producing the same alignment. Indels never move across
// a splice.
func (h *Hit) LeftAlign(rd *Read) {
	seq := rd.SeqFor(h.fw)
	for ei := 0; ei < len(h.edits); ei++ {
		edit := &h.edits[ei]
		if edit.Type != EditReadGap && edit.Type != EditRefGap {
			continue
		}
		ei2 := ei + 1
		for ; ei2 < len(h.edits); ei2++ {
			edit2 := &h.edits[ei2]
			if edit2.Type != edit.Type {
				break
			}
			if edit.Type == EditReadGap {
				if edit.Pos != edit2.Pos {
					break
				}
			} else {
				if edit.Pos+ei2-ei != edit2.Pos {
					break
				}
			}
		}
		ei2--
		edit2 := &h.edits[ei2]
		b := 0
		if ei > 0 {
			b = h.edits[ei-1].Pos
		}
		l := edit.Pos - 1
		for l > b {
			rdc := seq[h.rdoff+l]
			var rfc byte
			if edit.Type == EditReadGap {
				rfc = edit2.Chr
			} else {
				rfc = edit2.Qchr
			}
			if rfc != rdc {
				break
			}
			for ei3 := ei2; ei3 > ei; ei3-- {
				if edit.Type == EditReadGap {
					h.edits[ei3].Chr = h.edits[ei3-1].Chr
				} else {
					h.edits[ei3].Qchr = h.edits[ei3-1].Qchr
				}
				h.edits[ei3].Pos--
			}
			rdc = seq[h.rdoff+l]
			if edit.Type == EditReadGap {
				edit.Chr = rdc
			} else {
				edit.Qchr = rdc
			}
			edit.Pos--
			l--
		}
		ei = ei2
	}
}

// calculateScore recomputes and caches the alignment score of the hit,
// applying splice gates. It returns the sentinel when an anchor-dependent
// intron bound or a splice-site probability gate fails.
func (h *Hit) calculateScore(
	rd *Read,
	ssdb *SpliceSiteDB,
	sc *Scoring,
	minKLocal, minIntronLen, maxIntronLen int,
	ref *reference.Reference,
) int64 {
	var score int64
	splicescore := 0.0
	numsplices := 0
	mm := 0
	qual := rd.QualFor(h.fw)
	rdlen := rd.Len()
	conflict := false
	whichsense := SpliceUnknown
	for i := range h.edits {
		edit := &h.edits[i]
		switch edit.Type {
		case EditMM:
			score += sc.Score(int(edit.Qchr), 1<<edit.Chr, int(qual[h.rdoff+edit.Pos])-33)
			mm++
		case EditSplice:
			if !edit.KnownSpl {
				leftAnchorLen := h.rdoff + edit.Pos
				rightAnchorLen := rdlen - leftAnchorLen
				mm2 := 0
				for j := i + 1; j < len(h.edits); j++ {
					if h.edits[j].Type == EditMM || h.edits[j].Type == EditReadGap || h.edits[j].Type == EditRefGap {
						mm2++
					}
				}
				leftAnchorLen -= mm * 2
				rightAnchorLen -= mm2 * 2
				shorterAnchor := leftAnchorLen
				if rightAnchorLen < shorterAnchor {
					shorterAnchor = rightAnchorLen
				}
				if shorterAnchor <= 0 {
					shorterAnchor = 1
				}
				var intronLenThresh int
				if edit.SplDir != SpliceUnknown {
					intronLenThresh = maxIntronLenCanonical(shorterAnchor)
				} else {
					intronLenThresh = maxIntronLenNoncan(shorterAnchor)
				}
				if intronLenThresh < maxIntronLen {
					if edit.SplLen > intronLenThresh {
						return scoreSentinel
					}
					if edit.SplDir != SpliceUnknown {
						probscore := ssdb.Probscore(edit.DonorSeq, edit.AcceptorSeq)
						thresh := 0.80
						switch {
						case edit.SplLen>>16 != 0:
							thresh = 0.99
						case edit.SplLen>>15 != 0:
							thresh = 0.97
						case edit.SplLen>>14 != 0:
							thresh = 0.94
						case edit.SplLen>>13 != 0:
							thresh = 0.91
						case edit.SplLen>>12 != 0:
							thresh = 0.88
						}
						if probscore < thresh {
							return scoreSentinel
						}
					}
					// a short anchor must be edit-free
					if shorterAnchor == leftAnchorLen {
						if h.trim5 > 0 {
							return scoreSentinel
						}
						for j := i - 1; j >= 0; j-- {
							if h.edits[j].Type == EditMM || h.edits[j].Type == EditReadGap || h.edits[j].Type == EditRefGap {
								return scoreSentinel
							}
						}
					} else {
						if h.trim3 > 0 {
							return scoreSentinel
						}
						for j := i + 1; j < len(h.edits); j++ {
							if h.edits[j].Type == EditMM || h.edits[j].Type == EditReadGap || h.edits[j].Type == EditRefGap {
								return scoreSentinel
							}
						}
					}
				}
				if edit.SplDir != SpliceUnknown {
					score -= sc.CanSpl(edit.SplLen)
				} else {
					score -= sc.NoncanSpl(edit.SplLen)
				}
				if shorterAnchor <= 15 {
					numsplices++
					splicescore += float64(edit.SplLen)
				}
			}
			if !conflict {
				if whichsense == SpliceUnknown {
					whichsense = edit.SplDir
				} else if edit.SplDir != SpliceUnknown && whichsense != edit.SplDir {
					conflict = true
				}
			}
		case EditReadGap:
			open := true
			if i > 0 && h.edits[i-1].Type == EditReadGap && h.edits[i-1].Pos == edit.Pos {
				open = false
			}
			if open {
				score -= sc.ReadGapOpen()
			} else {
				score -= sc.ReadGapExtend()
			}
		case EditRefGap:
			open := true
			if i > 0 && h.edits[i-1].Type == EditRefGap && h.edits[i-1].Pos+1 == edit.Pos {
				open = false
			}
			if open {
				score -= sc.RefGapOpen()
			} else {
				score -= sc.RefGapExtend()
			}
		}
	}

	if conflict {
		score -= sc.ConflictSpl()
	}
	if numsplices > 1 {
		splicescore /= float64(numsplices)
	}
	score += int64(h.len-mm) * sc.Match()
	h.score = score
	h.splicescore = splicescore
	return score
}

// ReconstructRef applies the edit script to the aligned read substring,
// reproducing the reference bases the hit claims to match (splice skips
// excluded). Used by the debug representation check and tests.
func (h *Hit) ReconstructRef(rd *Read) []byte {
	seq := rd.SeqFor(h.fw)
	out := make([]byte, 0, h.len+8)
	eidx := 0
	for i := 0; i < h.len; i++ {
		skip := false
		for eidx < len(h.edits) && h.edits[eidx].Pos == i {
			e := &h.edits[eidx]
			switch e.Type {
			case EditReadGap:
				out = append(out, e.Chr)
				eidx++
				continue
			case EditRefGap:
				skip = true
			case EditMM:
				out = append(out, e.Chr)
				skip = true
			}
			eidx++
			if skip {
				break
			}
		}
		if !skip {
			out = append(out, seq[h.rdoff+i])
		}
	}
	for eidx < len(h.edits) && h.edits[eidx].Pos == h.len {
		if h.edits[eidx].Type == EditReadGap {
			out = append(out, h.edits[eidx].Chr)
		}
		eidx++
	}
	return out
}

// repOk checks the reconstructed reference bases against the genome.
func (h *Hit) repOk(rd *Read, ref *reference.Reference) bool {
	recon := h.ReconstructRef(rd)
	expected := make([]byte, 0, len(recon))
	cur := h.toff
	eidx := 0
	for i := 0; i < h.len; i++ {
		refgap := false
		for eidx < len(h.edits) && h.edits[eidx].Pos == i {
			switch h.edits[eidx].Type {
			case EditReadGap:
				expected = append(expected, ref.GetBase(h.tidx, cur))
				cur++
			case EditRefGap:
				refgap = true
			case EditSplice:
				cur += h.edits[eidx].SplLen
			}
			eidx++
		}
		if !refgap {
			expected = append(expected, ref.GetBase(h.tidx, cur))
			cur++
		}
	}
	for eidx < len(h.edits) && h.edits[eidx].Pos == h.len {
		if h.edits[eidx].Type == EditReadGap {
			expected = append(expected, ref.GetBase(h.tidx, cur))
			cur++
		}
		eidx++
	}
	if len(expected) != len(recon) {
		return false
	}
	for i := range expected {
		if expected[i] != recon[i] {
			return false
		}
	}
	return true
}
