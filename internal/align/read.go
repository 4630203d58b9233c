package align

import "github.com/Carla-Radames/Rhisat/internal/reference"

// Read is one input read prepared for alignment: base codes 5'→3' plus the
// precomputed reverse complement and reversed qualities.
type Read struct {
	ID   uint64
	Name string
	Seq  []byte // base codes
	Qual []byte // phred+33, always the same length as Seq

	seqRc   []byte
	qualRev []byte
}

// NewRead prepares a read from base codes and raw qualities. A missing or
// short quality string is padded with 'I'.
func NewRead(id uint64, name string, seq, qual []byte) *Read {
	n := len(seq)
	q := make([]byte, n)
	for i := range q {
		if i < len(qual) {
			q[i] = qual[i]
		} else {
			q[i] = 'I'
		}
	}
	r := &Read{ID: id, Name: name, Seq: seq, Qual: q}
	r.seqRc = make([]byte, n)
	r.qualRev = make([]byte, n)
	for i := 0; i < n; i++ {
		r.seqRc[n-1-i] = reference.Comp(seq[i])
		r.qualRev[n-1-i] = q[i]
	}
	return r
}

// Len returns the read length.
func (r *Read) Len() int { return len(r.Seq) }

// SeqFor returns the base codes in the given orientation.
func (r *Read) SeqFor(fw bool) []byte {
	if fw {
		return r.Seq
	}
	return r.seqRc
}

// QualFor returns the qualities matching SeqFor's orientation.
func (r *Read) QualFor(fw bool) []byte {
	if fw {
		return r.Qual
	}
	return r.qualRev
}

func (r *Read) qualAt(fw bool, pos int) int {
	q := r.QualFor(fw)
	if pos < 0 || pos >= len(q) {
		return 40
	}
	v := int(q[pos]) - 33
	if v < 0 {
		v = 0
	}
	return v
}
