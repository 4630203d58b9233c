package align

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Carla-Radames/Rhisat/internal/reference"
)

// LoadKnownSpliceSites reads a tab-separated splice-site file (chromosome,
// last base of upstream exon, first base of downstream exon, strand) into
// db, marking every site as file-provided. It returns the number of sites
// loaded; lines naming unknown chromosomes are skipped.
func LoadKnownSpliceSites(r io.Reader, ref *reference.Reference, db *SpliceSiteDB) (int, error) {
	names := make(map[string]int, ref.NumRefs())
	for i := 0; i < ref.NumRefs(); i++ {
		names[ref.Name(i)] = i
	}
	n := 0
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return n, fmt.Errorf("splice sites: line %d: expected 4 fields, got %d", lineno, len(fields))
		}
		tidx, ok := names[fields[0]]
		if !ok {
			continue
		}
		left, err := strconv.Atoi(fields[1])
		if err != nil {
			return n, fmt.Errorf("splice sites: line %d: bad left offset: %w", lineno, err)
		}
		right, err := strconv.Atoi(fields[2])
		if err != nil {
			return n, fmt.Errorf("splice sites: line %d: bad right offset: %w", lineno, err)
		}
		dir := SpliceFw
		if fields[3] == "-" {
			dir = SpliceRC
		}
		if db.Add(SpliceSite{Tidx: tidx, Left: left, Right: right, Dir: dir, FromFile: true}) {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("reading splice sites: %w", err)
	}
	return n, nil
}
