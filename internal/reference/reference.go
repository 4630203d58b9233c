// Package reference holds the loaded genome as 2-bit-coded sequences and
// serves the base-level access the alignment core needs: single bases,
// stretches into caller-owned buffers, and per-sequence metadata.
package reference

import (
	"fmt"
)

// Base codes. Everything outside ACGT collapses to N.
const (
	BaseA = 0
	BaseC = 1
	BaseG = 2
	BaseT = 3
	BaseN = 4
)

// CodeToChar maps a base code back to its nucleotide character.
var CodeToChar = [5]byte{'A', 'C', 'G', 'T', 'N'}

// CharToCode maps nucleotide characters (upper or lower case) to base codes.
var CharToCode [256]byte

func init() {
	for i := range CharToCode {
		CharToCode[i] = BaseN
	}
	CharToCode['A'], CharToCode['a'] = BaseA, BaseA
	CharToCode['C'], CharToCode['c'] = BaseC, BaseC
	CharToCode['G'], CharToCode['g'] = BaseG, BaseG
	CharToCode['T'], CharToCode['t'] = BaseT, BaseT
}

// Comp returns the complement of a base code; N stays N.
func Comp(c byte) byte {
	if c > 3 {
		return BaseN
	}
	return c ^ 0x3
}

// Reference is the immutable set of genome sequences an index is built over.
type Reference struct {
	names []string
	seqs  [][]byte // base codes 0..4
	cum   []int    // cumulative offsets of each sequence in the joined text
	total int
}

// New builds a Reference from named, base-coded sequences.
func New(names []string, seqs [][]byte) (*Reference, error) {
	if len(names) != len(seqs) {
		return nil, fmt.Errorf("reference: %d names for %d sequences", len(names), len(seqs))
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("reference: no sequences")
	}
	r := &Reference{
		names: names,
		seqs:  seqs,
		cum:   make([]int, len(seqs)+1),
	}
	for i, s := range seqs {
		if len(s) == 0 {
			return nil, fmt.Errorf("reference: sequence %q is empty", names[i])
		}
		r.cum[i+1] = r.cum[i] + len(s)
	}
	r.total = r.cum[len(seqs)]
	return r, nil
}

// NumRefs returns the number of sequences.
func (r *Reference) NumRefs() int { return len(r.seqs) }

// Name returns the name of sequence tidx.
func (r *Reference) Name(tidx int) string { return r.names[tidx] }

// ApproxLen returns the length of sequence tidx.
func (r *Reference) ApproxLen(tidx int) int { return len(r.seqs[tidx]) }

// TotalLen returns the length of the joined text.
func (r *Reference) TotalLen() int { return r.total }

// GetBase returns the base code at (tidx, off), or BaseN when off is out of
// range.
func (r *Reference) GetBase(tidx, off int) byte {
	s := r.seqs[tidx]
	if off < 0 || off >= len(s) {
		return BaseN
	}
	return s[off]
}

// GetStretch appends n base codes starting at (tidx, off) to dst and returns
// the extended slice. Positions outside the sequence are filled with N so
// callers can probe past either end without branching.
func (r *Reference) GetStretch(dst []byte, tidx, off, n int) []byte {
	s := r.seqs[tidx]
	for i := 0; i < n; i++ {
		p := off + i
		if p < 0 || p >= len(s) {
			dst = append(dst, BaseN)
		} else {
			dst = append(dst, s[p])
		}
	}
	return dst
}

// Joined writes the joined text (all sequences concatenated) into a fresh
// slice. The FM index is built over this text.
func (r *Reference) Joined() []byte {
	out := make([]byte, 0, r.total)
	for _, s := range r.seqs {
		out = append(out, s...)
	}
	return out
}

// JoinedToTextOff translates an offset in the joined text into (tidx, toff,
// tlen). A hit of length qlen starting at joined straddles a sequence
// boundary when it does not fit inside the containing sequence; straddlers
// are flagged and, when rejectStraddle is set, reported with tidx -1.
func (r *Reference) JoinedToTextOff(qlen, joined int, rejectStraddle bool) (tidx, toff, tlen int, straddled bool) {
	if joined < 0 || joined >= r.total {
		return -1, 0, 0, false
	}
	// binary search over cumulative offsets
	lo, hi := 0, len(r.seqs)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if r.cum[mid] <= joined {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	toff = joined - r.cum[lo]
	tlen = len(r.seqs[lo])
	if toff+qlen > tlen {
		straddled = true
		if rejectStraddle {
			return -1, 0, 0, true
		}
	}
	return lo, toff, tlen, straddled
}
