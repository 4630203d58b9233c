package align

import (
	"strings"
	"testing"
)

// Fixed sequences for the end-to-end scenarios. The exon/reference contents
// were chosen so that every planted anchor k-mer is unique in its reference.
const (
	e2eExon1 = "TAGGCGTCGATGCCGATCCCACGGATGATAACCGATACTCGACATCCGTC"
	e2eExon2 = "CACACGACCGGCTGAAATATCAGCATAATGTCGACATCGCCCCGCAACAT"

	e2eMismatchRef = "CGCCCCGCAACATCAGTATTCCCAGGCT"

	e2eInsPad = "CCCTTGAATCCCCGGCAGTAGAACGAGTGTGTGGTTAGTA"
	e2eInsSeg = "ACGTACGTAAGTACGTACGT"

	e2ePairRef = "CGCAAAACTTCGGCGGTAGGATCCACGCGTCACAAGTGACATCCGGCGAAACTACGCTTTAGATGAGTTAGGTGCTAATAACAAGCATTTATCCGCTCTCCCCTACAAAAGCCGCTGTTCTAAGCTTATTAGCTGTACCTGCAGATGCGATGCGCACGAACCGCCGGACTTTTGGATTCTAAAGGTTTATATCATCAGCGCTCGGGTAGCTAGTTCGGCTTATGCTTCGTGCTGACCAATCGACCAAGGCGGGGTAATTGCGACGACCCGCGGAACCACAACTTTACCCTAGACAAGCGG"
)

func spliceRef() string {
	inner := strings.Repeat("TTCTC", 200)[:998]
	return e2eExon1 + "GT" + inner + "AG" + e2eExon2
}

func revcompStr(s string) string {
	m := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[len(s)-1-i] = m[s[i]]
	}
	return string(out)
}

// An exactly matching read aligns end to end with no edits.
func TestAlignExact(t *testing.T) {
	refSeq := "ACGTACGTACGTACGTACGTACGTACGT"
	eng := newTestEngine(t, refSeq, Options{KHits: 5})
	rd := NewRead(0, "exact", codes(refSeq), quals(28))

	results := eng.alignOne(rd, true, 0)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if !r.Fw || r.Tidx != 0 || r.Toff != 0 {
		t.Fatalf("placement (%v, %d, %d), want (fw, 0, 0)", r.Fw, r.Tidx, r.Toff)
	}
	if len(r.Edits) != 0 {
		t.Fatalf("edits = %+v, want none", r.Edits)
	}
	if want := int64(28) * eng.scoring.Match(); r.Score != want {
		t.Fatalf("score = %d, want %d", r.Score, want)
	}
}

// A single substitution yields one mismatch edit at the substituted
// position.
func TestAlignOneMismatch(t *testing.T) {
	eng := newTestEngine(t, e2eMismatchRef, Options{KHits: 5})
	readSeq := []byte(e2eMismatchRef)
	readSeq[14] = 'T' // reference has A
	rd := NewRead(0, "mm", codes(string(readSeq)), quals(28))

	results := eng.alignOne(rd, false, -10)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if !r.Fw || r.Toff != 0 {
		t.Fatalf("placement (%v, %d), want (fw, 0)", r.Fw, r.Toff)
	}
	if len(r.Edits) != 1 || r.Edits[0].Type != EditMM || r.Edits[0].Pos != 14 {
		t.Fatalf("edits = %+v, want one mismatch at 14", r.Edits)
	}
	want := int64(27)*eng.scoring.Match() + eng.scoring.Score(int(codes("T")[0]), 1<<codes("A")[0], 40)
	if r.Score != want {
		t.Fatalf("score = %d, want %d", r.Score, want)
	}
}

// An inserted base yields a single ref-gap edit, left-aligned within its
// homopolymer run.
func TestAlignShortInsertion(t *testing.T) {
	refSeq := e2eInsPad + e2eInsSeg
	eng := newTestEngine(t, refSeq, Options{KHits: 5})
	// insert an extra A into the AA run of the segment
	readSeq := e2eInsSeg[:9] + "A" + e2eInsSeg[9:]
	rd := NewRead(0, "ins", codes(readSeq), quals(21))

	results := eng.alignOne(rd, false, -10)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Toff != len(e2eInsPad) {
		t.Fatalf("toff = %d, want %d", r.Toff, len(e2eInsPad))
	}
	var gaps []Edit
	for _, e := range r.Edits {
		if e.Type == EditRefGap {
			gaps = append(gaps, e)
		} else {
			t.Fatalf("unexpected edit %+v", e)
		}
	}
	if len(gaps) != 1 {
		t.Fatalf("ref gaps = %+v, want exactly one", gaps)
	}
	// the A-run starts at read position 8
	if gaps[0].Pos != 8 {
		t.Fatalf("ref gap at %d, want left-aligned position 8", gaps[0].Pos)
	}
	if want := -eng.scoring.RefGapOpen(); r.Score != want {
		t.Fatalf("score = %d, want %d", r.Score, want)
	}
}

// A read spanning a canonical GT-AG intron is spliced with the exact skip
// length and forward direction.
func TestAlignCanonicalSplice(t *testing.T) {
	refSeq := spliceRef()
	eng := newTestEngine(t, refSeq, Options{KHits: 5})
	readSeq := e2eExon1[20:] + e2eExon2[:20]
	rd := NewRead(0, "spliced", codes(readSeq), quals(50))

	results := eng.alignOne(rd, false, 0)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if !r.Fw || r.Toff != 20 {
		t.Fatalf("placement (%v, %d), want (fw, 20)", r.Fw, r.Toff)
	}
	if r.NumSplices != 1 {
		t.Fatalf("splices = %d, want 1", r.NumSplices)
	}
	var spl *Edit
	for i := range r.Edits {
		if r.Edits[i].Type == EditSplice {
			spl = &r.Edits[i]
		} else {
			t.Fatalf("unexpected edit %+v", r.Edits[i])
		}
	}
	if spl.Pos != 30 {
		t.Fatalf("splice pos = %d, want 30", spl.Pos)
	}
	if spl.SplLen != 1002 {
		t.Fatalf("skip = %d, want 1002", spl.SplLen)
	}
	if spl.SplDir != SpliceFw {
		t.Fatalf("direction = %d, want forward", spl.SplDir)
	}
	if spl.KnownSpl {
		t.Fatal("novel splice reported as known")
	}
	// the discovered junction is recorded in the shared database
	if eng.ssdb.Empty() {
		t.Fatal("novel splice site not recorded")
	}
	sites := eng.ssdb.GetLeftSpliceSites(0, 1052, 1, nil)
	if len(sites) != 1 || sites[0].Left != 49 || sites[0].Right != 1052 {
		t.Fatalf("recorded site = %+v, want left 49 right 1052", sites)
	}
}

// With only 3 bases beyond the junction the anchor is too short for any
// splice.
func TestAlignAnchorTooShort(t *testing.T) {
	refSeq := spliceRef()
	eng := newTestEngine(t, refSeq, Options{KHits: 5})
	readSeq := e2eExon1[20:] + e2eExon2[:3]
	rd := NewRead(0, "short-anchor", codes(readSeq), quals(33))

	results := eng.alignOne(rd, false, -12)
	for _, r := range results {
		if r.Spliced() {
			t.Fatalf("spliced alignment reported for a 3-base anchor: %+v", r.Edits)
		}
	}
}

// Two exact mates in FR orientation on the same reference produce one
// concordant pair.
func TestAlignPairedConcordant(t *testing.T) {
	eng := newTestEngine(t, e2ePairRef, Options{KHits: 5, Mate1Fw: true})
	m1 := e2ePairRef[20:70]
	m2 := revcompStr(e2ePairRef[170:220])
	r1 := NewRead(0, "pair", codes(m1), quals(50))
	r2 := NewRead(0, "pair", codes(m2), quals(50))

	minsc := [2]int64{eng.scoring.ScoreMin(50), eng.scoring.ScoreMin(50)}
	eng.sink.InitRead(minsc[0], minsc[1])
	eng.aligner.InitReads([2]*Read{r1, r2}, [2]bool{false, false}, [2]bool{false, false}, minsc, [2]int64{0, 0})
	eng.aligner.Go(eng.sink)

	pairs := eng.sink.ConcordantPairs()
	if len(pairs) != 1 {
		t.Fatalf("concordant pairs = %d, want 1", len(pairs))
	}
	p := pairs[0]
	if p[0].Toff != 20 || !p[0].Fw {
		t.Fatalf("mate1 at (%d, fw=%v), want (20, true)", p[0].Toff, p[0].Fw)
	}
	if p[1].Toff != 170 || p[1].Fw {
		t.Fatalf("mate2 at (%d, fw=%v), want (170, false)", p[1].Toff, p[1].Fw)
	}
}

// A spliced junction discovered by one read is served from the database to
// later reads through the splice-site passes.
func TestNovelSpliceSiteReuse(t *testing.T) {
	refSeq := spliceRef()
	eng := newTestEngine(t, refSeq, Options{KHits: 5})

	first := NewRead(0, "discoverer", codes(e2eExon1[20:]+e2eExon2[:20]), quals(50))
	if results := eng.alignOne(first, false, 0); len(results) != 1 {
		t.Fatalf("discoverer read did not align")
	}
	if eng.ssdb.Empty() {
		t.Fatal("no splice site recorded")
	}

	second := NewRead(5, "follower", codes(e2eExon1[25:]+e2eExon2[:25]), quals(50))
	results := eng.alignOne(second, false, 0)
	if len(results) != 1 {
		t.Fatalf("follower read did not align: %d results", len(results))
	}
	if results[0].NumSplices != 1 {
		t.Fatalf("follower not spliced: %+v", results[0].Edits)
	}
}
