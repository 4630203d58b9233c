// Package output renders finished alignments as SAM records.
package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/biogo/hts/sam"

	"github.com/Carla-Radames/Rhisat/internal/align"
	"github.com/Carla-Radames/Rhisat/internal/reference"
)

// Writer serializes alignment results to SAM. Write calls are serialized so
// workers can share one Writer.
type Writer struct {
	mu   sync.Mutex
	w    *sam.Writer
	refs []*sam.Reference
}

// NewWriter builds a SAM header from the reference metadata and returns a
// ready writer.
func NewWriter(w io.Writer, ref *reference.Reference) (*Writer, error) {
	refs := make([]*sam.Reference, ref.NumRefs())
	for i := 0; i < ref.NumRefs(); i++ {
		r, err := sam.NewReference(ref.Name(i), "", "", ref.ApproxLen(i), nil, nil)
		if err != nil {
			return nil, fmt.Errorf("building SAM reference %s: %w", ref.Name(i), err)
		}
		refs[i] = r
	}
	h, err := sam.NewHeader(nil, refs)
	if err != nil {
		return nil, fmt.Errorf("building SAM header: %w", err)
	}
	sw, err := sam.NewWriter(w, h, sam.FlagDecimal)
	if err != nil {
		return nil, fmt.Errorf("creating SAM writer: %w", err)
	}
	return &Writer{w: sw, refs: refs}, nil
}

// WriteAligned emits one alignment of rd. mate may be nil; pairFlags carries
// the paired-end flag bits already decided by the caller.
func (o *Writer) WriteAligned(rd *align.Read, res *align.AlnResult, secondary bool, pairFlags sam.Flags, mate *align.AlnResult) error {
	flags := pairFlags
	if !res.Fw {
		flags |= sam.Reverse
	}
	if secondary {
		flags |= sam.Secondary
	}

	var mateRef *sam.Reference
	matePos := -1
	tlen := 0
	if mate != nil {
		mateRef = o.refs[mate.Tidx]
		matePos = mate.Toff
		if !mate.Fw {
			flags |= sam.MateReverse
		}
		left, right := res.Toff, mate.RefcoordRight()
		if mate.Toff < res.Toff {
			left = mate.Toff
			right = res.RefcoordRight()
		}
		tlen = right - left + 1
		if res.Toff > mate.Toff {
			tlen = -tlen
		}
	}

	var aux []sam.Aux
	aux = appendAux(aux, "AS", int(res.Score))
	aux = appendAux(aux, "NM", editDistance(res.Edits))
	if res.Spliced() {
		strand := sam.ASCII('+')
		for i := range res.Edits {
			if res.Edits[i].Type == align.EditSplice && res.Edits[i].SplDir == align.SpliceRC {
				strand = '-'
				break
			}
		}
		aux = appendAux(aux, "XS", strand)
	}

	rec, err := sam.NewRecord(
		rd.Name,
		o.refs[res.Tidx],
		mateRef,
		res.Toff,
		matePos,
		tlen,
		mapq(secondary),
		cigarFromResult(res),
		seqChars(rd, res.Fw),
		qualScores(rd, res.Fw),
		aux,
	)
	if err != nil {
		return fmt.Errorf("building SAM record for %s: %w", rd.Name, err)
	}
	rec.Flags = flags

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(rec)
}

// WriteUnaligned emits an unmapped record for rd.
func (o *Writer) WriteUnaligned(rd *align.Read, pairFlags sam.Flags) error {
	rec, err := sam.NewRecord(
		rd.Name,
		nil,
		nil,
		-1,
		-1,
		0,
		0,
		nil,
		seqChars(rd, true),
		qualScores(rd, true),
		nil,
	)
	if err != nil {
		return fmt.Errorf("building unmapped SAM record for %s: %w", rd.Name, err)
	}
	rec.Flags = pairFlags | sam.Unmapped

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(rec)
}

func mapq(secondary bool) byte {
	if secondary {
		return 0
	}
	return 60
}

func appendAux(aux []sam.Aux, tag string, value interface{}) []sam.Aux {
	a, err := sam.NewAux(sam.NewTag(tag), value)
	if err != nil {
		return aux
	}
	return append(aux, a)
}

func seqChars(rd *align.Read, fw bool) []byte {
	codes := rd.SeqFor(fw)
	out := make([]byte, len(codes))
	for i, c := range codes {
		out[i] = reference.CodeToChar[c]
	}
	return out
}

func qualScores(rd *align.Read, fw bool) []byte {
	q := rd.QualFor(fw)
	out := make([]byte, len(q))
	for i, c := range q {
		if c >= 33 {
			out[i] = c - 33
		}
	}
	return out
}

// cigarFromResult converts the edit script into CIGAR operations, with soft
// clips for trims and N ops for splices.
func cigarFromResult(res *align.AlnResult) sam.Cigar {
	var ops sam.Cigar
	if res.Trim5 > 0 {
		ops = append(ops, sam.NewCigarOp(sam.CigarSoftClipped, res.Trim5))
	}
	alnLen := res.ReadLen - res.Trim5 - res.Trim3
	edits := res.Edits
	cur := 0
	flushM := func(n int) {
		if n > 0 {
			ops = append(ops, sam.NewCigarOp(sam.CigarMatch, n))
		}
	}
	for ei := 0; ei < len(edits); {
		e := edits[ei]
		pos := e.Pos - res.Trim5
		switch e.Type {
		case align.EditMM:
			ei++
		case align.EditReadGap:
			n := 1
			for ei+n < len(edits) && edits[ei+n].Type == align.EditReadGap && edits[ei+n].Pos == e.Pos {
				n++
			}
			flushM(pos - cur)
			cur = pos
			ops = append(ops, sam.NewCigarOp(sam.CigarDeletion, n))
			ei += n
		case align.EditRefGap:
			n := 1
			for ei+n < len(edits) && edits[ei+n].Type == align.EditRefGap && edits[ei+n].Pos == e.Pos+n {
				n++
			}
			flushM(pos - cur)
			ops = append(ops, sam.NewCigarOp(sam.CigarInsertion, n))
			cur = pos + n
			ei += n
		case align.EditSplice:
			flushM(pos - cur)
			cur = pos
			ops = append(ops, sam.NewCigarOp(sam.CigarSkipped, e.SplLen))
			ei++
		default:
			ei++
		}
	}
	flushM(alnLen - cur)
	if res.Trim3 > 0 {
		ops = append(ops, sam.NewCigarOp(sam.CigarSoftClipped, res.Trim3))
	}
	return ops
}

func editDistance(edits []align.Edit) int {
	n := 0
	for i := range edits {
		switch edits[i].Type {
		case align.EditMM, align.EditReadGap, align.EditRefGap:
			n++
		}
	}
	return n
}
