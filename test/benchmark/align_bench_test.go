// Package benchmark contains Go benchmarks for the index and alignment core,
// measuring throughput and allocation behaviour.
package benchmark

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/Carla-Radames/Rhisat/internal/align"
	"github.com/Carla-Radames/Rhisat/internal/index"
	"github.com/Carla-Radames/Rhisat/internal/reference"
	"github.com/Carla-Radames/Rhisat/pkg/config"
)

func randomCodes(rnd *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = byte(rnd.Intn(4))
	}
	return s
}

type benchEnv struct {
	ref     *reference.Reference
	gidx    *index.Index
	tiles   *index.TileSet
	scoring *align.Scoring
	ssdb    *align.SpliceSiteDB
	opts    align.Options
}

func newBenchEnv(b *testing.B, seq []byte) *benchEnv {
	b.Helper()
	ref, err := reference.New([]string{"chr1"}, [][]byte{seq})
	if err != nil {
		b.Fatal(err)
	}
	idxOpts := index.Options{FtabChars: 10, OccInterval: 128, SASample: 4}
	gidx := index.New(ref.Joined(), idxOpts)
	tileOpts := index.Options{FtabChars: 6, OccInterval: 128, SASample: 4}
	tiles := index.NewTileSet(ref, 1<<16, 1024, tileOpts)
	return &benchEnv{
		ref:     ref,
		gidx:    gidx,
		tiles:   tiles,
		scoring: align.NewScoring(config.Default().Scoring),
		ssdb:    align.NewSpliceSiteDB(),
		opts:    align.Options{KHits: 5, Mate1Fw: true},
	}
}

// BenchmarkIndexBuild measures FM-index construction over a 100 kb text.
func BenchmarkIndexBuild(b *testing.B) {
	rnd := rand.New(rand.NewSource(1))
	seq := randomCodes(rnd, 100_000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx := index.New(seq, index.Options{FtabChars: 8, OccInterval: 128, SASample: 4})
		_ = idx
	}
}

// BenchmarkAlignExact measures end-to-end alignment of exact 100-mers.
func BenchmarkAlignExact(b *testing.B) {
	rnd := rand.New(rand.NewSource(2))
	seq := randomCodes(rnd, 200_000)
	env := newBenchEnv(b, seq)
	al := align.New(env.gidx, env.tiles, env.ref, env.ssdb, env.scoring, env.opts)
	sink := align.NewSink(align.ReportingParams{KHits: 5}, false)

	reads := make([]*align.Read, 64)
	for i := range reads {
		off := rnd.Intn(len(seq) - 100)
		rs := make([]byte, 100)
		copy(rs, seq[off:off+100])
		reads[i] = align.NewRead(uint64(i), "bench", rs, nil)
	}
	minsc := env.scoring.ScoreMin(100)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rd := reads[i%len(reads)]
		sink.InitRead(minsc, 0)
		al.InitRead(rd, false, false, minsc, 0, false)
		al.Go(sink)
	}
}

// BenchmarkAlignSpliced measures alignment of reads spanning a canonical
// intron.
func BenchmarkAlignSpliced(b *testing.B) {
	rnd := rand.New(rand.NewSource(3))
	exon1 := randomCodes(rnd, 1000)
	exon2 := randomCodes(rnd, 1000)
	intron := []byte(strings.Repeat("\x03\x03\x01\x03\x01", 1000))[:4996]
	intron[0], intron[1] = 2, 3 // GT
	intron[len(intron)-2], intron[len(intron)-1] = 0, 2 // AG

	seq := append(append(append([]byte(nil), exon1...), intron...), exon2...)
	env := newBenchEnv(b, seq)
	al := align.New(env.gidx, env.tiles, env.ref, env.ssdb, env.scoring, env.opts)
	sink := align.NewSink(align.ReportingParams{KHits: 5}, false)

	rs := make([]byte, 100)
	copy(rs, exon1[len(exon1)-60:])
	copy(rs[60:], exon2[:40])
	rd := align.NewRead(0, "spliced", rs, nil)
	minsc := env.scoring.ScoreMin(100)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sink.InitRead(minsc, 0)
		al.InitRead(rd, false, false, minsc, 0, false)
		al.Go(sink)
	}
}

// BenchmarkPartialSeedScheduling measures the seeding scheduler over many
// strand records.
func BenchmarkPartialSeedScheduling(b *testing.B) {
	rnd := rand.New(rand.NewSource(4))
	seq := randomCodes(rnd, 50_000)
	env := newBenchEnv(b, seq)
	al := align.New(env.gidx, env.tiles, env.ref, env.ssdb, env.scoring, env.opts)
	sink := align.NewSink(align.ReportingParams{KHits: 5}, false)

	// reads with a mismatch in the middle exercise multi-seed scheduling
	reads := make([]*align.Read, 32)
	for i := range reads {
		off := rnd.Intn(len(seq) - 100)
		rs := make([]byte, 100)
		copy(rs, seq[off:off+100])
		rs[50] ^= 1
		reads[i] = align.NewRead(uint64(i), "bench", rs, nil)
	}
	minsc := env.scoring.ScoreMin(100)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rd := reads[i%len(reads)]
		sink.InitRead(minsc, 0)
		al.InitRead(rd, false, false, minsc, 0, false)
		al.Go(sink)
	}
}
