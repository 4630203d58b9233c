package reference

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadFasta(t *testing.T) {
	in := ">chr1 description text\nACGTacgt\nNNAC\n>chr2\nTTTT\n"
	ref, err := ReadFasta(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if ref.NumRefs() != 2 {
		t.Fatalf("got %d sequences, want 2", ref.NumRefs())
	}
	if ref.Name(0) != "chr1" || ref.Name(1) != "chr2" {
		t.Fatalf("names: %q, %q", ref.Name(0), ref.Name(1))
	}
	if ref.ApproxLen(0) != 12 || ref.ApproxLen(1) != 4 {
		t.Fatalf("lengths: %d, %d", ref.ApproxLen(0), ref.ApproxLen(1))
	}
	want := []byte{BaseA, BaseC, BaseG, BaseT, BaseA, BaseC, BaseG, BaseT, BaseN, BaseN, BaseA, BaseC}
	got := ref.GetStretch(nil, 0, 0, 12)
	if !bytes.Equal(got, want) {
		t.Fatalf("chr1 codes: got %v want %v", got, want)
	}
	if ref.GetBase(1, 0) != BaseT {
		t.Fatalf("chr2[0] = %d", ref.GetBase(1, 0))
	}
}

func TestGetStretchOutOfRange(t *testing.T) {
	ref, err := New([]string{"s"}, [][]byte{{BaseA, BaseC, BaseG}})
	if err != nil {
		t.Fatal(err)
	}
	got := ref.GetStretch(nil, 0, -2, 7)
	want := []byte{BaseN, BaseN, BaseA, BaseC, BaseG, BaseN, BaseN}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestJoinedToTextOff(t *testing.T) {
	a := []byte{0, 1, 2, 3, 0, 1}
	b := []byte{3, 2, 1, 0}
	ref, err := New([]string{"a", "b"}, [][]byte{a, b})
	if err != nil {
		t.Fatal(err)
	}
	tidx, toff, tlen, straddled := ref.JoinedToTextOff(2, 7, true)
	if tidx != 1 || toff != 1 || tlen != 4 || straddled {
		t.Fatalf("got (%d, %d, %d, %v)", tidx, toff, tlen, straddled)
	}
	// a hit crossing the a/b boundary straddles
	tidx, _, _, straddled = ref.JoinedToTextOff(4, 4, true)
	if tidx != -1 || !straddled {
		t.Fatalf("straddler not rejected: tidx=%d straddled=%v", tidx, straddled)
	}
	tidx, toff, _, straddled = ref.JoinedToTextOff(4, 4, false)
	if tidx != 0 || toff != 4 || !straddled {
		t.Fatalf("non-rejecting straddle resolution wrong: (%d, %d, %v)", tidx, toff, straddled)
	}
}

func TestComp(t *testing.T) {
	pairs := [][2]byte{{BaseA, BaseT}, {BaseC, BaseG}, {BaseG, BaseC}, {BaseT, BaseA}, {BaseN, BaseN}}
	for _, p := range pairs {
		if Comp(p[0]) != p[1] {
			t.Fatalf("Comp(%d) = %d, want %d", p[0], Comp(p[0]), p[1])
		}
	}
}
