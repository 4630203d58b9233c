package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Carla-Radames/Rhisat/internal/align"
	"github.com/Carla-Radames/Rhisat/internal/reference"
)

func testRef(t *testing.T) *reference.Reference {
	seq := make([]byte, 2000)
	for i := range seq {
		seq[i] = byte(i % 4)
	}
	ref, err := reference.New([]string{"chr1"}, [][]byte{seq})
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func TestCigarFromResult(t *testing.T) {
	cases := []struct {
		name string
		res  *align.AlnResult
		want string
	}{
		{
			"plain match",
			&align.AlnResult{ReadLen: 50},
			"50M",
		},
		{
			"mismatches stay match ops",
			&align.AlnResult{ReadLen: 50, Edits: []align.Edit{{Pos: 10, Type: align.EditMM}}},
			"50M",
		},
		{
			"splice",
			&align.AlnResult{ReadLen: 50, Edits: []align.Edit{{Pos: 30, Type: align.EditSplice, SplLen: 1002}}},
			"30M1002N20M",
		},
		{
			"deletion",
			&align.AlnResult{ReadLen: 20, Edits: []align.Edit{
				{Pos: 10, Type: align.EditReadGap},
				{Pos: 10, Type: align.EditReadGap},
			}},
			"10M2D10M",
		},
		{
			"insertion",
			&align.AlnResult{ReadLen: 21, Edits: []align.Edit{{Pos: 8, Type: align.EditRefGap}}},
			"8M1I12M",
		},
		{
			"soft trims",
			&align.AlnResult{ReadLen: 50, Trim5: 3, Trim3: 2},
			"3S45M2S",
		},
	}
	for _, c := range cases {
		if got := cigarFromResult(c.res).String(); got != c.want {
			t.Errorf("%s: cigar = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestWriterSplicedRecord(t *testing.T) {
	ref := testRef(t)
	var buf bytes.Buffer
	w, err := NewWriter(&buf, ref)
	if err != nil {
		t.Fatal(err)
	}

	seq := make([]byte, 50)
	rd := align.NewRead(0, "read1", seq, nil)
	res := &align.AlnResult{
		Score:      -2,
		Fw:         true,
		Tidx:       0,
		Toff:       100,
		ReadLen:    50,
		NumSplices: 1,
		Edits: []align.Edit{
			{Pos: 14, Type: align.EditMM, Chr: 2, Qchr: 0},
			{Pos: 30, Type: align.EditSplice, SplLen: 500, SplDir: align.SpliceFw},
		},
	}
	if err := w.WriteAligned(rd, res, false, 0, nil); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "@SQ") || !strings.Contains(out, "SN:chr1") {
		t.Fatalf("missing header in output:\n%s", out)
	}
	line := ""
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "read1") {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("no record line in output:\n%s", out)
	}
	fields := strings.Split(line, "\t")
	if len(fields) < 11 {
		t.Fatalf("short SAM line: %q", line)
	}
	if fields[2] != "chr1" {
		t.Errorf("RNAME = %s", fields[2])
	}
	if fields[3] != "101" {
		t.Errorf("POS = %s, want 101", fields[3])
	}
	if fields[5] != "30M500N20M" {
		t.Errorf("CIGAR = %s", fields[5])
	}
	if !strings.Contains(line, "NM:i:1") {
		t.Errorf("NM tag missing in %q", line)
	}
	if !strings.Contains(line, "AS:i:-2") {
		t.Errorf("AS tag missing in %q", line)
	}
	if !strings.Contains(line, "XS:") {
		t.Errorf("XS strand tag missing in %q", line)
	}
}

func TestWriterUnaligned(t *testing.T) {
	ref := testRef(t)
	var buf bytes.Buffer
	w, err := NewWriter(&buf, ref)
	if err != nil {
		t.Fatal(err)
	}
	rd := align.NewRead(0, "nohit", make([]byte, 30), nil)
	if err := w.WriteUnaligned(rd, 0); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "nohit\t4\t") {
		t.Fatalf("unmapped flag missing:\n%s", out)
	}
}
