package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/biogo/hts/sam"
	"golang.org/x/sync/errgroup"

	"github.com/Carla-Radames/Rhisat/internal/align"
	"github.com/Carla-Radames/Rhisat/internal/fastq"
	"github.com/Carla-Radames/Rhisat/internal/index"
	"github.com/Carla-Radames/Rhisat/internal/output"
	"github.com/Carla-Radames/Rhisat/internal/reference"
	"github.com/Carla-Radames/Rhisat/pkg/config"
	"github.com/Carla-Radames/Rhisat/pkg/logger"
	"github.com/Carla-Radames/Rhisat/pkg/metrics"
)

type job struct {
	r1, r2 *align.Read
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	refPath := flag.String("x", "", "reference FASTA")
	unpPath := flag.String("U", "", "unpaired reads FASTQ")
	m1Path := flag.String("1", "", "mate 1 FASTQ")
	m2Path := flag.String("2", "", "mate 2 FASTQ")
	outPath := flag.String("S", "", "output SAM (default stdout)")
	knownPath := flag.String("known-splicesite-infile", "", "known splice sites file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *refPath == "" || (*unpPath == "" && (*m1Path == "" || *m2Path == "")) {
		fmt.Fprintln(os.Stderr, "usage: rhisat -x ref.fa (-U reads.fq | -1 m1.fq -2 m2.fq) [-S out.sam]")
		os.Exit(2)
	}

	start := time.Now()
	ref, err := reference.LoadFasta(*refPath)
	if err != nil {
		slog.Error("failed to load reference", "error", err)
		os.Exit(1)
	}
	slog.Info("reference loaded", "sequences", ref.NumRefs(), "total_len", ref.TotalLen())

	idxOpts := index.Options{
		FtabChars:   cfg.Index.FtabChars,
		OccInterval: cfg.Index.OccInterval,
		SASample:    4,
	}
	gidx := index.New(ref.Joined(), idxOpts)
	slog.Info("global index built",
		"len", gidx.Len(),
		"ftab_chars", gidx.FtabChars(),
		"elapsed", time.Since(start),
	)
	tileOpts := idxOpts
	tileOpts.FtabChars = cfg.Index.LocalFtabChars
	tiles := index.NewTileSet(ref, cfg.Index.TileLen, cfg.Index.TileOverlap, tileOpts)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		tiles.OnBuild = func() { m.TilesBuilt.Inc() }
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			slog.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	ssdb := align.NewSpliceSiteDB()
	if m != nil {
		ssdb.OnRecord = func() { m.SpliceSitesRecorded.Inc() }
	}
	if *knownPath != "" {
		f, err := os.Open(*knownPath)
		if err != nil {
			slog.Error("failed to open splice-site file", "error", err)
			os.Exit(1)
		}
		n, err := align.LoadKnownSpliceSites(f, ref, ssdb)
		f.Close()
		if err != nil {
			slog.Error("failed to load splice sites", "error", err)
			os.Exit(1)
		}
		slog.Info("known splice sites loaded", "count", n)
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			slog.Error("failed to create output", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	writer, err := output.NewWriter(out, ref)
	if err != nil {
		slog.Error("failed to create SAM writer", "error", err)
		os.Exit(1)
	}

	scoring := align.NewScoring(cfg.Scoring)
	alignerOpts := align.Options{
		MinIntronLen:       cfg.Aligner.MinIntronLen,
		MaxIntronLen:       cfg.Aligner.MaxIntronLen,
		KHits:              cfg.Aligner.KHits,
		Secondary:          cfg.Aligner.Secondary,
		NoSplicedAlignment: cfg.Aligner.NoSplicedAlignment,
		ThreadRidsMindist:  uint64(cfg.Aligner.ThreadRidsMindist),
		Mate1Fw:            cfg.Pairing.Mate1Fw,
		Mate2Fw:            cfg.Pairing.Mate2Fw,
	}

	jobs := make(chan job, 64)
	g, _ := errgroup.WithContext(context.Background())

	g.Go(func() error {
		defer close(jobs)
		if *unpPath != "" {
			return feedUnpaired(*unpPath, jobs)
		}
		return feedPaired(*m1Path, *m2Path, jobs)
	})

	threads := cfg.Aligner.Threads
	if threads < 1 {
		threads = 1
	}
	for w := 0; w < threads; w++ {
		g.Go(func() error {
			return runWorker(jobs, gidx, tiles, ref, ssdb, scoring, alignerOpts, cfg, writer, m)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("alignment failed", "error", err)
		os.Exit(1)
	}
	slog.Info("run finished", "elapsed", time.Since(start), "splice_sites", ssdb.Size())
}

func feedUnpaired(path string, jobs chan<- job) error {
	rdr, closer, err := fastq.Open(path)
	if err != nil {
		return err
	}
	defer closer.Close()
	var id uint64
	for {
		rec, err := rdr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		jobs <- job{r1: prepare(id, rec)}
		id++
	}
}

func feedPaired(path1, path2 string, jobs chan<- job) error {
	rdr1, closer1, err := fastq.Open(path1)
	if err != nil {
		return err
	}
	defer closer1.Close()
	rdr2, closer2, err := fastq.Open(path2)
	if err != nil {
		return err
	}
	defer closer2.Close()
	var id uint64
	for {
		rec1, err1 := rdr1.Next()
		rec2, err2 := rdr2.Next()
		if err1 == io.EOF && err2 == io.EOF {
			return nil
		}
		if err1 != nil || err2 != nil {
			if err1 == io.EOF || err2 == io.EOF {
				return fmt.Errorf("paired input out of sync")
			}
			if err1 != nil {
				return err1
			}
			return err2
		}
		jobs <- job{r1: prepare(id, rec1), r2: prepare(id, rec2)}
		id++
	}
}

func prepare(id uint64, rec *fastq.Record) *align.Read {
	codes := make([]byte, len(rec.Seq))
	for i, c := range rec.Seq {
		codes[i] = reference.CharToCode[c]
	}
	return align.NewRead(id, rec.Name, codes, rec.Qual)
}

func runWorker(
	jobs <-chan job,
	gidx *index.Index,
	tiles *index.TileSet,
	ref *reference.Reference,
	ssdb *align.SpliceSiteDB,
	scoring *align.Scoring,
	opts align.Options,
	cfg *config.Config,
	writer *output.Writer,
	m *metrics.Metrics,
) error {
	al := align.New(gidx, tiles, ref, ssdb, scoring, opts)
	sink := align.NewSink(align.ReportingParams{KHits: opts.KHits}, opts.Secondary)

	for j := range jobs {
		if j.r2 == nil {
			if err := alignUnpaired(al, sink, scoring, cfg, writer, m, j.r1); err != nil {
				return err
			}
		} else {
			if err := alignPair(al, sink, scoring, cfg, writer, m, j.r1, j.r2); err != nil {
				return err
			}
		}
		al.Counters().Publish(m)
	}
	return nil
}

func alignUnpaired(al *align.Aligner, sink *align.Sink, scoring *align.Scoring, cfg *config.Config, writer *output.Writer, m *metrics.Metrics, rd *align.Read) error {
	minsc := scoring.ScoreMin(rd.Len())
	sink.InitRead(minsc, 0)
	al.InitRead(rd, cfg.Aligner.NoFw, cfg.Aligner.NoRc, minsc, 0, false)
	al.Go(sink)

	results := sink.Finalize(0)
	if len(results) == 0 {
		observeRead(m, false, nil)
		return writer.WriteUnaligned(rd, 0)
	}
	for i, res := range results {
		if err := writer.WriteAligned(rd, res, i > 0, 0, nil); err != nil {
			return err
		}
	}
	observeRead(m, true, results[0])
	return nil
}

func alignPair(al *align.Aligner, sink *align.Sink, scoring *align.Scoring, cfg *config.Config, writer *output.Writer, m *metrics.Metrics, r1, r2 *align.Read) error {
	minsc := [2]int64{scoring.ScoreMin(r1.Len()), scoring.ScoreMin(r2.Len())}
	sink.InitRead(minsc[0], minsc[1])
	nofw := [2]bool{cfg.Aligner.NoFw, cfg.Aligner.NoFw}
	norc := [2]bool{cfg.Aligner.NoRc, cfg.Aligner.NoRc}
	al.InitReads([2]*align.Read{r1, r2}, nofw, norc, minsc, [2]int64{0, 0})
	al.Go(sink)

	pairs := sink.ConcordantPairs()
	if len(pairs) > 0 {
		best := pairs[0]
		for _, p := range pairs[1:] {
			if p[0].Score+p[1].Score > best[0].Score+best[1].Score {
				best = p
			}
		}
		if m != nil {
			m.PairsTotal.Inc()
		}
		base := sam.Paired | sam.ProperPair
		if err := writer.WriteAligned(r1, best[0], false, base|sam.Read1, best[1]); err != nil {
			return err
		}
		if err := writer.WriteAligned(r2, best[1], false, base|sam.Read2, best[0]); err != nil {
			return err
		}
		observeRead(m, true, best[0])
		observeRead(m, true, best[1])
		return nil
	}

	reads := [2]*align.Read{r1, r2}
	mateFlags := [2]sam.Flags{sam.Paired | sam.Read1, sam.Paired | sam.Read2}
	for i := 0; i < 2; i++ {
		results := sink.Finalize(i)
		if len(results) == 0 {
			observeRead(m, false, nil)
			if err := writer.WriteUnaligned(reads[i], mateFlags[i]|sam.MateUnmapped); err != nil {
				return err
			}
			continue
		}
		for k, res := range results {
			if err := writer.WriteAligned(reads[i], res, k > 0, mateFlags[i], nil); err != nil {
				return err
			}
		}
		observeRead(m, true, results[0])
	}
	return nil
}

func observeRead(m *metrics.Metrics, aligned bool, res *align.AlnResult) {
	if m == nil {
		return
	}
	if !aligned {
		m.ReadsTotal.WithLabelValues("unaligned").Inc()
		return
	}
	m.ReadsTotal.WithLabelValues("aligned").Inc()
	if res != nil && res.Spliced() {
		m.AlignmentsTotal.WithLabelValues("spliced").Inc()
	} else {
		m.AlignmentsTotal.WithLabelValues("unspliced").Inc()
	}
}
