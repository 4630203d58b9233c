package align

import "sort"

// AlnResult is a finalized alignment record handed to the sink. Edit
// positions are relative to the read start in aligned orientation.
type AlnResult struct {
	Score           int64
	SpliceScore     float64
	Fw              bool
	Tidx            int
	Toff            int
	Edits           []Edit
	ReadLen         int
	RefLen          int
	Trim5           int
	Trim3           int
	NumSplices      int
	NearSpliceSites bool
}

// RefcoordRight returns the reference offset of the rightmost aligned base.
func (r *AlnResult) RefcoordRight() int {
	span := r.ReadLen - r.Trim5 - r.Trim3
	for i := range r.Edits {
		switch r.Edits[i].Type {
		case EditSplice:
			span += r.Edits[i].SplLen
		case EditReadGap:
			span++
		case EditRefGap:
			span--
		}
	}
	return r.Toff + span - 1
}

// Spliced reports whether the result contains a splice.
func (r *AlnResult) Spliced() bool { return r.NumSplices > 0 }

// ReportingParams bounds how many distinct alignments are retained.
type ReportingParams struct {
	KHits int
}

// SinkState summarizes reporting progress for the search loops.
type SinkState struct {
	concordant int
	khits      int
}

// DoneConcordant reports whether enough concordant pairs have been found.
func (s SinkState) DoneConcordant() bool { return s.concordant >= s.khits }

// Sink accumulates the alignments of one read (or pair) during its
// alignment. One Sink is owned by one worker at a time; results are drained
// into the output stage when the read completes.
type Sink struct {
	rp        ReportingParams
	secondary bool

	unp   [2][]*AlnResult
	pairs [][2]*AlnResult
	minsc [2]int64
}

// NewSink returns a sink with the given reporting parameters.
func NewSink(rp ReportingParams, secondary bool) *Sink {
	if rp.KHits <= 0 {
		rp.KHits = 5
	}
	return &Sink{rp: rp, secondary: secondary}
}

// InitRead clears per-read state before a new read or pair.
func (s *Sink) InitRead(minsc1, minsc2 int64) {
	s.unp[0] = s.unp[0][:0]
	s.unp[1] = s.unp[1][:0]
	s.pairs = s.pairs[:0]
	s.minsc[0] = minsc1
	s.minsc[1] = minsc2
}

// ReportingParams returns the sink's reporting parameters.
func (s *Sink) ReportingParams() ReportingParams { return s.rp }

// State returns a snapshot of reporting progress.
func (s *Sink) State() SinkState {
	return SinkState{concordant: len(s.pairs), khits: s.rp.KHits}
}

// Report records an unpaired alignment (one of left, right nil) or a
// concordant pair (both non-nil). It returns true when the sink has all the
// alignments it wants for this read.
func (s *Sink) Report(left, right *AlnResult) bool {
	if left != nil && right != nil {
		s.pairs = append(s.pairs, [2]*AlnResult{left, right})
		s.record(0, left)
		s.record(1, right)
		return len(s.pairs) >= s.rp.KHits
	}
	if left != nil {
		s.record(0, left)
		return len(s.unp[0]) >= s.rp.KHits*2
	}
	if right != nil {
		s.record(1, right)
		return len(s.unp[1]) >= s.rp.KHits*2
	}
	return false
}

func (s *Sink) record(rdi int, r *AlnResult) {
	for _, have := range s.unp[rdi] {
		if have.Tidx == r.Tidx && have.Toff == r.Toff && have.Fw == r.Fw && editsEqual(have.Edits, r.Edits) {
			return
		}
	}
	s.unp[rdi] = append(s.unp[rdi], r)
}

// GetUnp returns the recorded unpaired alignments of mate rdi.
func (s *Sink) GetUnp(rdi int) []*AlnResult { return s.unp[rdi] }

// BestUnp returns the best unpaired score of mate rdi, or the score floor
// when nothing aligned yet.
func (s *Sink) BestUnp(rdi int) int64 {
	best := s.minsc[rdi]
	for _, r := range s.unp[rdi] {
		if r.Score > best {
			best = r.Score
		}
	}
	return best
}

// BestSplicedUnp returns the number of splices in the best alignment of
// mate rdi.
func (s *Sink) BestSplicedUnp(rdi int) int {
	best := s.minsc[rdi]
	n := 0
	for _, r := range s.unp[rdi] {
		if r.Score > best || (r.Score == best && r.NumSplices > n) {
			best = r.Score
			n = r.NumSplices
		}
	}
	return n
}

// BestPair returns the best combined score among concordant pairs.
func (s *Sink) BestPair() int64 {
	best := s.minsc[0] + s.minsc[1]
	for _, p := range s.pairs {
		if sc := p[0].Score + p[1].Score; sc > best {
			best = sc
		}
	}
	return best
}

// ConcordantPairs returns the recorded pairs.
func (s *Sink) ConcordantPairs() [][2]*AlnResult { return s.pairs }

// Finalize returns up to khits alignments of mate rdi, best first. With
// secondary reporting disabled only top-scoring alignments survive.
func (s *Sink) Finalize(rdi int) []*AlnResult {
	out := make([]*AlnResult, len(s.unp[rdi]))
	copy(out, s.unp[rdi])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if !s.secondary && len(out) > 0 {
		best := out[0].Score
		keep := out[:0]
		for _, r := range out {
			if r.Score == best {
				keep = append(keep, r)
			}
		}
		out = keep
	}
	if len(out) > s.rp.KHits {
		out = out[:s.rp.KHits]
	}
	return out
}
