package align

import (
	"math"

	"github.com/Carla-Radames/Rhisat/pkg/config"
)

// Scoring holds the alignment scoring scheme. Penalty accessors return
// positive magnitudes; Score returns the (non-positive) contribution of a
// mismatch directly.
type Scoring struct {
	matchBonus  int64
	mmPenMax    int64
	mmPenMin    int64
	nPen        int64
	rdGapOpen   int64
	rdGapExtend int64
	rfGapOpen   int64
	rfGapExtend int64
	canSpl      int64
	noncanSpl   int64
	conflictSpl int64

	scoreMinConst  float64
	scoreMinLinear float64
}

// NewScoring builds a Scoring from configuration.
func NewScoring(cfg config.ScoringConfig) *Scoring {
	return &Scoring{
		matchBonus:     int64(cfg.Match),
		mmPenMax:       int64(cfg.MismatchMax),
		mmPenMin:       int64(cfg.MismatchMin),
		nPen:           int64(cfg.NPenalty),
		rdGapOpen:      int64(cfg.ReadGapOpen),
		rdGapExtend:    int64(cfg.ReadGapExtend),
		rfGapOpen:      int64(cfg.RefGapOpen),
		rfGapExtend:    int64(cfg.RefGapExtend),
		canSpl:         int64(cfg.CanonicalSpl),
		noncanSpl:      int64(cfg.NoncanSpl),
		conflictSpl:    int64(cfg.ConflictSpl),
		scoreMinConst:  cfg.ScoreMinConst,
		scoreMinLinear: cfg.ScoreMinLinear,
	}
}

// Score returns the score contribution of aligning read base rdc (code,
// 0..4) against the reference mask refMask at quality q (0..40+). Matches
// contribute zero here; the per-base match bonus is applied during score
// recomputation.
func (s *Scoring) Score(rdc int, refMask int, q int) int64 {
	if rdc > 3 || refMask > 8 || refMask == 0 {
		return -s.nPen
	}
	if refMask&(1<<uint(rdc)) != 0 {
		return 0
	}
	if q > 40 {
		q = 40
	}
	return -(s.mmPenMin + (s.mmPenMax-s.mmPenMin)*int64(q)/40)
}

// MmpMax returns the worst-case mismatch penalty.
func (s *Scoring) MmpMax() int64 { return s.mmPenMax }

// Match returns the per-base match bonus.
func (s *Scoring) Match() int64 { return s.matchBonus }

// CanSpl returns the penalty of a canonical splice over an intron of the
// given length.
func (s *Scoring) CanSpl(intronLen int) int64 { return s.canSpl }

// NoncanSpl returns the penalty of a non-canonical splice.
func (s *Scoring) NoncanSpl(intronLen int) int64 { return s.noncanSpl }

// ConflictSpl returns the penalty applied when one alignment carries splices
// in conflicting directions.
func (s *Scoring) ConflictSpl() int64 { return s.conflictSpl }

// ReadGapOpen and friends expose the gap scheme.
func (s *Scoring) ReadGapOpen() int64   { return s.rdGapOpen }
func (s *Scoring) ReadGapExtend() int64 { return s.rdGapExtend }
func (s *Scoring) RefGapOpen() int64    { return s.rfGapOpen }
func (s *Scoring) RefGapExtend() int64  { return s.rfGapExtend }

// MaxReadGaps returns how many read gaps fit in the remaining score budget.
// remsc is the (non-positive) room left before the score floor.
func (s *Scoring) MaxReadGaps(remsc int64, rdlen int) int {
	return s.maxGaps(remsc, s.rdGapOpen, s.rdGapExtend, rdlen)
}

// MaxRefGaps is MaxReadGaps for reference gaps.
func (s *Scoring) MaxRefGaps(remsc int64, rdlen int) int {
	return s.maxGaps(remsc, s.rfGapOpen, s.rfGapExtend, rdlen)
}

func (s *Scoring) maxGaps(remsc, open, extend int64, rdlen int) int {
	avail := -remsc
	if avail < open {
		return 0
	}
	g := 1 + int((avail-open)/extend)
	if g > rdlen {
		g = rdlen
	}
	return g
}

// ScoreMin returns the minimum acceptable alignment score for a read of the
// given length.
func (s *Scoring) ScoreMin(rdlen int) int64 {
	return int64(math.Floor(s.scoreMinConst + s.scoreMinLinear*float64(rdlen)))
}
