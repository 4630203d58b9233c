package align

import (
	"testing"

	"github.com/Carla-Radames/Rhisat/pkg/config"
)

const (
	testMinIntron = 20
	testMaxIntron = 500000
)

func newHit(tv *TempVars, fw bool, rdoff, length, tidx, toff int) *Hit {
	h := &Hit{}
	h.Init(fw, rdoff, length, 0, 0, tidx, toff, tv)
	return h
}

func TestCompatibleWith(t *testing.T) {
	tv := NewTempVars()
	a := newHit(tv, true, 0, 10, 0, 100)

	cases := []struct {
		name string
		b    *Hit
		want bool
	}{
		{"exact abutting", newHit(tv, true, 10, 10, 0, 110), true},
		{"no gap overlap", newHit(tv, true, 12, 10, 0, 112), true},
		{"short deletion", newHit(tv, true, 12, 10, 0, 115), true},
		{"deletion too long", newHit(tv, true, 12, 10, 0, 117), false},
		{"short insertion", newHit(tv, true, 12, 10, 0, 109), true},
		{"insertion too long", newHit(tv, true, 12, 10, 0, 108), false},
		{"intron", newHit(tv, true, 12, 10, 0, 112+1000), true},
		{"intron too long", newHit(tv, true, 12, 10, 0, 112+testMaxIntron+1), false},
		{"other strand", newHit(tv, false, 12, 10, 0, 112), false},
		{"other reference", newHit(tv, true, 12, 10, 1, 112), false},
		{"behind on read", newHit(tv, true, 0, 5, 0, 112), false},
		{"behind on reference", newHit(tv, true, 12, 10, 0, 90), false},
	}
	for _, c := range cases {
		if got := a.CompatibleWith(c.b, testMinIntron, testMaxIntron, false); got != c.want {
			t.Errorf("%s: compatible = %v, want %v", c.name, got, c.want)
		}
	}

	// spliced gaps are rejected in DNA mode
	b := newHit(tv, true, 12, 10, 0, 112+1000)
	if a.CompatibleWith(b, testMinIntron, testMaxIntron, true) {
		t.Error("intron accepted with spliced alignment disabled")
	}
}

func TestCombineAbutting(t *testing.T) {
	refSeq := "TTACGCATCGAAGTCCGTAGCAATCCTGAA"
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()
	sc := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()
	rd := NewRead(0, "r", codes(refSeq[:12]), quals(12))

	a := newHit(tv, true, 0, 5, 0, 0)
	b := newHit(tv, true, 5, 7, 0, 5)
	if !a.CombineWith(b, rd, ref, ssdb, sc, -10, 8, testMinIntron, testMaxIntron, minAnchorLen, minAnchorLenNoncan, nil, false) {
		t.Fatal("combine failed")
	}
	if a.Len() != 12 || a.Rdoff() != 0 || len(a.Edits()) != 0 {
		t.Fatalf("combined hit: rdoff=%d len=%d edits=%v", a.Rdoff(), a.Len(), a.Edits())
	}
	if a.Score() != 0 {
		t.Fatalf("score = %d, want 0", a.Score())
	}
	if !a.repOk(rd, ref) {
		t.Fatal("combined hit fails reconstruction")
	}
}

func TestCombineMismatchOverlap(t *testing.T) {
	refSeq := "TTACGCATCGAAGTCCGTAGCAATCCTGAACGTTCAGG"
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()
	sc := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()

	readSeq := []byte(refSeq[:20])
	readSeq[9] = 'T' // ref has G at position 9
	rd := NewRead(0, "r", codes(string(readSeq)), quals(20))

	a := newHit(tv, true, 0, 8, 0, 0)
	b := newHit(tv, true, 10, 10, 0, 10)
	if !a.CombineWith(b, rd, ref, ssdb, sc, -10, 8, testMinIntron, testMaxIntron, minAnchorLen, minAnchorLenNoncan, nil, false) {
		t.Fatal("combine failed")
	}
	if a.Len() != 20 {
		t.Fatalf("len = %d, want 20", a.Len())
	}
	edits := a.Edits()
	if len(edits) != 1 || edits[0].Type != EditMM || edits[0].Pos != 9 {
		t.Fatalf("edits = %+v, want one mismatch at 9", edits)
	}
	wantScore := sc.Score(int(codes("T")[0]), 1<<codes("G")[0], 40)
	if a.Score() != wantScore {
		t.Fatalf("score = %d, want %d", a.Score(), wantScore)
	}
	if !a.repOk(rd, ref) {
		t.Fatal("combined hit fails reconstruction")
	}
}

func TestCombineDeletion(t *testing.T) {
	refSeq := "TTACGCATCGAAGTCCGTAGCAATCCTGAACGTTCAGG"
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()
	sc := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()

	// read skips reference bases 10 and 11
	readSeq := refSeq[:10] + refSeq[12:22]
	rd := NewRead(0, "r", codes(readSeq), quals(20))

	a := newHit(tv, true, 0, 8, 0, 0)
	b := newHit(tv, true, 12, 8, 0, 14)
	if !a.CombineWith(b, rd, ref, ssdb, sc, -20, 8, testMinIntron, testMaxIntron, minAnchorLen, minAnchorLenNoncan, nil, false) {
		t.Fatal("combine failed")
	}
	if a.Len() != 20 {
		t.Fatalf("len = %d, want 20", a.Len())
	}
	gaps := 0
	for _, e := range a.Edits() {
		if e.Type == EditReadGap {
			gaps++
		} else if e.Type != EditMM {
			t.Fatalf("unexpected edit %+v", e)
		}
	}
	if gaps != 2 {
		t.Fatalf("read gaps = %d, want 2", gaps)
	}
	wantScore := -(sc.ReadGapOpen() + sc.ReadGapExtend())
	if a.Score() != wantScore {
		t.Fatalf("score = %d, want %d", a.Score(), wantScore)
	}
	if !a.repOk(rd, ref) {
		t.Fatal("combined hit fails reconstruction")
	}
}

func TestCombineSplice(t *testing.T) {
	exonA := "TAGGCGTCGATGCCGATCCCACGGATGATC"
	exonB := "CACACGACCGGCTGAAATATCAGCATAATG"
	inner := "TTCTCTTCTCTTCTCTTCTCTTCTCT"
	refSeq := exonA + "GT" + inner + "AG" + exonB
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()
	sc := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()

	readSeq := exonA[10:] + exonB[:10]
	rd := NewRead(0, "r", codes(readSeq), quals(30))

	intronLen := len(inner) + 4
	a := newHit(tv, true, 0, 15, 0, 10)
	b := newHit(tv, true, 20, 10, 0, len(exonA)+intronLen)
	if !a.CompatibleWith(b, testMinIntron, testMaxIntron, false) {
		t.Fatal("splice candidates not compatible")
	}
	if !a.CombineWith(b, rd, ref, ssdb, sc, -10, 8, testMinIntron, testMaxIntron, minAnchorLen, minAnchorLenNoncan, nil, false) {
		t.Fatal("combine failed")
	}
	var spl *Edit
	for i := range a.Edits() {
		if a.Edits()[i].Type == EditSplice {
			spl = &a.Edits()[i]
		}
	}
	if spl == nil {
		t.Fatalf("no splice edit in %+v", a.Edits())
	}
	if spl.Pos != 20 || spl.SplLen != intronLen || spl.SplDir != SpliceFw || spl.KnownSpl {
		t.Fatalf("splice edit = %+v, want pos 20, skip %d, forward, novel", spl, intronLen)
	}
	if a.Len() != 30 {
		t.Fatalf("len = %d, want 30", a.Len())
	}
	if a.Score() != -sc.CanSpl(intronLen) {
		t.Fatalf("score = %d", a.Score())
	}
	if !a.repOk(rd, ref) {
		t.Fatal("spliced hit fails reconstruction")
	}
}

func TestCombineIdempotent(t *testing.T) {
	refSeq := "TTACGCATCGAAGTCCGTAGCAATCCTGAA"
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()
	sc := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()
	rd := NewRead(0, "r", codes(refSeq[:12]), quals(12))

	a := newHit(tv, true, 0, 12, 0, 0)
	cp := &Hit{}
	cp.CopyFrom(a)
	if a.CombineWith(cp, rd, ref, ssdb, sc, -10, 8, testMinIntron, testMaxIntron, minAnchorLen, minAnchorLenNoncan, nil, false) {
		t.Fatal("combining a hit with its own copy succeeded")
	}
	if a.Len() != 12 || a.Rdoff() != 0 || len(a.Edits()) != 0 {
		t.Fatalf("hit mutated by failed combine: %+v", a)
	}
}

func TestExtendMismatchBudget(t *testing.T) {
	refSeq := "TTACGCATCGAAGTCCGTAGCAATCCTGAACGTTCAGG"
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()
	sc := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()

	// read matches ref[8:28] except positions 3 and 17 (read coords)
	readSeq := []byte(refSeq[8:28])
	readSeq[3] = 'C' // ref A at 11
	readSeq[17] = 'A' // ref C at 25
	rd := NewRead(0, "r", codes(string(readSeq)), quals(20))

	h := newHit(tv, true, 6, 8, 0, 14)
	leftext, rightext := maxExtent, maxExtent
	if !h.Extend(rd, ref, ssdb, sc, -20, 8, testMinIntron, testMaxIntron, &leftext, &rightext, 1) {
		t.Fatal("extend failed")
	}
	if h.Rdoff() != 0 || h.Rdoff()+h.Len() != 20 {
		t.Fatalf("extended window [%d, %d), want [0, 20)", h.Rdoff(), h.Rdoff()+h.Len())
	}
	mm := 0
	for _, e := range h.Edits() {
		if e.Type != EditMM {
			t.Fatalf("unexpected edit %+v", e)
		}
		mm++
	}
	if mm != 2 {
		t.Fatalf("mismatches = %d, want 2", mm)
	}
	if !h.repOk(rd, ref) {
		t.Fatal("extended hit fails reconstruction")
	}
	if got := h.calculateScore(rd, ssdb, sc, 8, testMinIntron, testMaxIntron, ref); got != h.Score() {
		t.Fatalf("cached score %d != recomputed %d", h.Score(), got)
	}
}

func TestExtendZeroMismatchStopsEarly(t *testing.T) {
	refSeq := "TTACGCATCGAAGTCCGTAGCAATCCTGAA"
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()
	sc := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()

	readSeq := []byte(refSeq[:20])
	readSeq[4] = 'T' // ref G at 4
	rd := NewRead(0, "r", codes(string(readSeq)), quals(20))

	h := newHit(tv, true, 8, 6, 0, 8)
	leftext, rightext := maxExtent, maxExtent
	h.Extend(rd, ref, ssdb, sc, -20, 8, testMinIntron, testMaxIntron, &leftext, &rightext, 0)
	if h.Rdoff() != 5 {
		t.Fatalf("left extension stopped at rdoff %d, want 5", h.Rdoff())
	}
	if h.Rdoff()+h.Len() != 20 {
		t.Fatalf("right edge %d, want 20", h.Rdoff()+h.Len())
	}
	if len(h.Edits()) != 0 {
		t.Fatalf("mismatch-free extension added edits: %+v", h.Edits())
	}
}

func TestLeftAlign(t *testing.T) {
	// read carries an inserted A inside an A-run; the ref gap must settle at
	// the leftmost equivalent position
	refSeq := "TTGCAAAATCGGAT"
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()

	readSeq := refSeq[:8] + "A" + refSeq[8:]
	rd := NewRead(0, "r", codes(readSeq), quals(len(readSeq)))

	h := newHit(tv, true, 0, len(readSeq), 0, 0)
	h.edits = append(h.edits, Edit{Pos: 8, Type: EditRefGap, Chr: '-', Qchr: codes("A")[0]})
	h.LeftAlign(rd)
	if len(h.edits) != 1 || h.edits[0].Pos != 4 {
		t.Fatalf("left-aligned gap at %d, want 4 (edits %+v)", h.edits[0].Pos, h.edits)
	}
	if !h.repOk(rd, ref) {
		t.Fatal("left-aligned hit fails reconstruction")
	}
}

func TestCalculateScoreSentinelOnShortAnchorGate(t *testing.T) {
	refSeq := "TTACGCATCGAAGTCCGTAGCAATCCTGAA"
	ref := buildRef(t, []string{"chr1"}, []string{refSeq})
	tv := NewTempVars()
	sc := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()
	rd := NewRead(0, "r", codes(refSeq[:20]), quals(20))

	h := newHit(tv, true, 0, 20, 0, 0)
	// an unknown-direction splice with a 4-base right anchor and an intron
	// far beyond what such an anchor supports
	h.edits = append(h.edits, Edit{Pos: 16, Type: EditSplice, SplLen: 100000, SplDir: SpliceUnknown})
	got := h.calculateScore(rd, ssdb, sc, 8, testMinIntron, testMaxIntron, ref)
	if got != scoreSentinel {
		t.Fatalf("score = %d, want sentinel %d", got, scoreSentinel)
	}
}

func TestAnchorBounds(t *testing.T) {
	if maxIntronLenCanonical(6) != 0 {
		t.Error("anchor below canonical minimum must not allow introns")
	}
	if got := maxIntronLenCanonical(7); got != 1<<13 {
		t.Errorf("anchor 7: %d, want %d", got, 1<<13)
	}
	if got := maxIntronLenCanonical(20); got != 1<<30 {
		t.Errorf("anchor 20: %d, want %d", got, 1<<30)
	}
	if maxIntronLenNoncan(13) != 0 {
		t.Error("anchor below non-canonical minimum must not allow introns")
	}
	if got := maxIntronLenNoncan(14); got != 1<<18 {
		t.Errorf("non-canonical anchor 14: %d, want %d", got, 1<<18)
	}
	if p := intronLenProb(7, 1<<20, testMaxIntron); p != 1 {
		t.Errorf("ratio should cap at 1, got %f", p)
	}
}
