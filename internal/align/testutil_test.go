package align

import (
	"testing"

	"github.com/Carla-Radames/Rhisat/internal/index"
	"github.com/Carla-Radames/Rhisat/internal/reference"
	"github.com/Carla-Radames/Rhisat/pkg/config"
)

func codes(s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = reference.CharToCode[s[i]]
	}
	return out
}

func quals(n int) []byte {
	q := make([]byte, n)
	for i := range q {
		q[i] = 'I'
	}
	return q
}

func buildRef(tb testing.TB, names []string, seqs []string) *reference.Reference {
	tb.Helper()
	coded := make([][]byte, len(seqs))
	for i, s := range seqs {
		coded[i] = codes(s)
	}
	ref, err := reference.New(names, coded)
	if err != nil {
		tb.Fatal(err)
	}
	return ref
}

type testEngine struct {
	ref     *reference.Reference
	gidx    *index.Index
	tiles   *index.TileSet
	scoring *Scoring
	ssdb    *SpliceSiteDB
	aligner *Aligner
	sink    *Sink
}

func newTestEngine(tb testing.TB, refSeq string, opts Options) *testEngine {
	tb.Helper()
	ref := buildRef(tb, []string{"chr1"}, []string{refSeq})
	idxOpts := index.Options{FtabChars: 10, OccInterval: 16, SASample: 4}
	gidx := index.New(ref.Joined(), idxOpts)
	tileOpts := index.Options{FtabChars: 6, OccInterval: 16, SASample: 4}
	tiles := index.NewTileSet(ref, 1<<16, 1024, tileOpts)
	scoring := NewScoring(config.Default().Scoring)
	ssdb := NewSpliceSiteDB()
	al := New(gidx, tiles, ref, ssdb, scoring, opts)
	sink := NewSink(ReportingParams{KHits: opts.KHits}, opts.Secondary)
	return &testEngine{
		ref:     ref,
		gidx:    gidx,
		tiles:   tiles,
		scoring: scoring,
		ssdb:    ssdb,
		aligner: al,
		sink:    sink,
	}
}

// alignOne runs a full single-end alignment and returns the finalized
// results.
func (e *testEngine) alignOne(rd *Read, norc bool, minsc int64) []*AlnResult {
	e.sink.InitRead(minsc, 0)
	e.aligner.InitRead(rd, false, norc, minsc, 0, false)
	e.aligner.Go(e.sink)
	return e.sink.Finalize(0)
}
