// Package index implements the FM indexes the aligner searches: one global
// index over the joined reference text and a set of small per-tile indexes
// built lazily over reference segments. Both support backward search via
// MapLF, prefix bootstrap via a packed k-mer table (ftab), and locate via a
// sampled suffix array.
package index

import (
	"math/bits"
)

const sentinel = 0xFF

// Options controls index construction.
type Options struct {
	FtabChars   int // packed k-mer table width, capped to the text size
	OccInterval int // rows between occurrence checkpoints
	SASample    int // suffix-array sampling rate (text positions)
}

// DefaultOptions are suitable for whole-genome indexes.
func DefaultOptions() Options {
	return Options{FtabChars: 10, OccInterval: 128, SASample: 4}
}

type fmInterval struct {
	top, bot int32
}

// Index is an FM index over a base-coded text. Row 0 corresponds to the
// virtual sentinel suffix; valid match intervals never include it.
type Index struct {
	bwt    []byte
	count  [5]int32 // count[c] = first row of char c; count[4] = numRows
	occ    [4][]int32
	occInt int

	samples   []int32
	marked    []uint64
	markRank  []int32
	saSample  int
	endPos    int
	ftab      []fmInterval
	ftabChars int
	length    int
}

// New builds an FM index over text (base codes; N collapses to A for
// indexing purposes, reads containing N never extend through it).
func New(text []byte, opts Options) *Index {
	n := len(text)
	data := make([]byte, n+1)
	for i, c := range text {
		if c > 3 {
			c = 0
		}
		data[i] = c + 1
	}
	data[n] = 0
	sa := suffixArray(data)

	idx := &Index{
		occInt:   opts.OccInterval,
		saSample: opts.SASample,
		length:   n,
	}
	if idx.occInt <= 0 {
		idx.occInt = 128
	}
	if idx.saSample <= 0 {
		idx.saSample = 4
	}

	rows := n + 1
	idx.bwt = make([]byte, rows)
	var freq [4]int32
	for i, p := range sa {
		if p == 0 {
			idx.endPos = i
			idx.bwt[i] = sentinel
			continue
		}
		c := data[p-1] - 1
		idx.bwt[i] = c
		freq[c]++
	}
	idx.count[0] = 1
	for c := 1; c <= 4; c++ {
		idx.count[c] = idx.count[c-1] + freq[c-1]
	}

	idx.buildOcc(rows)
	idx.buildSamples(sa)
	idx.buildFtab(opts.FtabChars, freq)
	return idx
}

func (x *Index) buildOcc(rows int) {
	nchk := rows/x.occInt + 1
	var running [4]int32
	for c := 0; c < 4; c++ {
		x.occ[c] = make([]int32, nchk)
	}
	for i := 0; i < rows; i++ {
		if i%x.occInt == 0 {
			j := i / x.occInt
			for c := 0; c < 4; c++ {
				x.occ[c][j] = running[c]
			}
		}
		if b := x.bwt[i]; b != sentinel {
			running[b]++
		}
	}
}

func (x *Index) buildSamples(sa []int32) {
	rows := len(sa)
	words := (rows + 63) / 64
	x.marked = make([]uint64, words)
	nsamp := 0
	for i, p := range sa {
		if int(p)%x.saSample == 0 {
			x.marked[i/64] |= 1 << uint(i%64)
			nsamp++
		}
	}
	x.markRank = make([]int32, words+1)
	for w := 0; w < words; w++ {
		x.markRank[w+1] = x.markRank[w] + int32(bits.OnesCount64(x.marked[w]))
	}
	x.samples = make([]int32, nsamp)
	j := 0
	for _, p := range sa {
		if int(p)%x.saSample == 0 {
			x.samples[j] = p
			j++
		}
	}
}

// buildFtab fills the packed k-mer interval table by extending the tables of
// shorter k-mers one backward-search step at a time.
func (x *Index) buildFtab(k int, freq [4]int32) {
	if k < 1 {
		k = 1
	}
	for k > 1 && (1<<(2*uint(k))) > 4*(x.length+1) {
		k--
	}
	x.ftabChars = k

	prev := make([]fmInterval, 4)
	for c := 0; c < 4; c++ {
		prev[c] = fmInterval{x.count[c], x.count[c] + freq[c]}
	}
	for level := 2; level <= k; level++ {
		cur := make([]fmInterval, 1<<(2*uint(level)))
		stride := 1 << (2 * uint(level-1))
		for c := 0; c < 4; c++ {
			for rest := 0; rest < stride; rest++ {
				iv := prev[rest]
				if iv.bot <= iv.top {
					continue
				}
				cur[c*stride+rest] = fmInterval{
					int32(x.MapLF(int(iv.top), byte(c))),
					int32(x.MapLF(int(iv.bot), byte(c))),
				}
			}
		}
		prev = cur
	}
	x.ftab = prev
}

// Len returns the length of the indexed text (without the sentinel).
func (x *Index) Len() int { return x.length }

// FtabChars returns the effective k-mer table width.
func (x *Index) FtabChars() int { return x.ftabChars }

// occAt counts occurrences of c in bwt[0:row).
func (x *Index) occAt(c byte, row int) int32 {
	chk := row / x.occInt
	n := x.occ[c][chk]
	for i := chk * x.occInt; i < row; i++ {
		if x.bwt[i] == c {
			n++
		}
	}
	return n
}

// MapLF maps a row boundary through the LF function for base c. Applying it
// to both ends of an SA interval extends the matched pattern leftward by c.
func (x *Index) MapLF(row int, c byte) int {
	return int(x.count[c] + x.occAt(c, row))
}

// MapLF1 extends a width-1 interval at row top by base c. It returns -1 when
// the single occurrence cannot be extended.
func (x *Index) MapLF1(top int, c byte) int {
	if x.bwt[top] != c {
		return -1
	}
	return x.MapLF(top, c)
}

// FtabLoHi looks up the SA interval of the ftabChars-long sequence starting
// at seq[off]. An N anywhere in the window yields an empty interval.
func (x *Index) FtabLoHi(seq []byte, off int) (top, bot int) {
	idx := 0
	for i := 0; i < x.ftabChars; i++ {
		c := seq[off+i]
		if c > 3 {
			return 0, 0
		}
		idx = idx<<2 | int(c)
	}
	iv := x.ftab[idx]
	return int(iv.top), int(iv.bot)
}

// lfRow maps a row through LF using its own BWT character.
func (x *Index) lfRow(row int) int {
	c := x.bwt[row]
	if c == sentinel {
		return 0
	}
	return x.MapLF(row, c)
}

func (x *Index) isMarked(row int) bool {
	return x.marked[row/64]&(1<<uint(row%64)) != 0
}

func (x *Index) sampleAt(row int) int32 {
	r := x.markRank[row/64] + int32(bits.OnesCount64(x.marked[row/64]&((1<<uint(row%64))-1)))
	return x.samples[r]
}

// locate resolves a single SA row to its text offset, walking LF until a
// sampled row is reached. It reports the number of LF steps taken.
func (x *Index) locate(row int) (off int, steps int) {
	for !x.isMarked(row) {
		row = x.lfRow(row)
		steps++
	}
	return int(x.sampleAt(row)) + steps, steps
}
