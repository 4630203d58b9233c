package align

import (
	"sort"
	"sync"
)

// SpliceSite is one known or discovered splice junction. Left is the last
// base of the upstream exon, Right the first base of the downstream exon;
// the intron spans (Left, Right) exclusive.
type SpliceSite struct {
	Tidx     int
	Left     int
	Right    int
	Dir      SpliceDir
	ReadID   uint64
	FromFile bool
}

// SkipLen returns the intron length of the site.
func (s *SpliceSite) SkipLen() int { return s.Right - s.Left - 1 }

type ssKey struct {
	tidx, left, right int
}

// SpliceSiteDB is the shared database of splice sites. All query and insert
// methods are safe for concurrent use; the alignment workers share one
// instance.
type SpliceSiteDB struct {
	mu      sync.RWMutex
	byLeft  map[int][]SpliceSite // per reference, sorted by Left
	byRight map[int][]SpliceSite // per reference, sorted by Right
	seen    map[ssKey]struct{}

	// OnRecord, when set, is invoked once per novel site actually inserted.
	OnRecord func()
}

// NewSpliceSiteDB returns an empty database.
func NewSpliceSiteDB() *SpliceSiteDB {
	return &SpliceSiteDB{
		byLeft:  make(map[int][]SpliceSite),
		byRight: make(map[int][]SpliceSite),
		seen:    make(map[ssKey]struct{}),
	}
}

// Empty reports whether the database holds no sites.
func (db *SpliceSiteDB) Empty() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.seen) == 0
}

// Size returns the number of distinct sites.
func (db *SpliceSiteDB) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.seen)
}

// Add records a site if it is new. It reports whether the site was inserted.
func (db *SpliceSiteDB) Add(ss SpliceSite) bool {
	if ss.Right <= ss.Left {
		return false
	}
	key := ssKey{ss.Tidx, ss.Left, ss.Right}
	db.mu.Lock()
	if _, ok := db.seen[key]; ok {
		db.mu.Unlock()
		return false
	}
	db.seen[key] = struct{}{}
	insertSorted(&db.byLeft, ss.Tidx, ss, func(a, b SpliceSite) bool { return a.Left < b.Left })
	insertSorted(&db.byRight, ss.Tidx, ss, func(a, b SpliceSite) bool { return a.Right < b.Right })
	db.mu.Unlock()
	if db.OnRecord != nil {
		db.OnRecord()
	}
	return true
}

func insertSorted(m *map[int][]SpliceSite, tidx int, ss SpliceSite, less func(a, b SpliceSite) bool) {
	list := (*m)[tidx]
	i := sort.Search(len(list), func(i int) bool { return less(ss, list[i]) })
	list = append(list, SpliceSite{})
	copy(list[i+1:], list[i:])
	list[i] = ss
	(*m)[tidx] = list
}

// GetLeftSpliceSites appends sites whose downstream-exon start lies in
// (pos-minMatch, pos], i.e. sites a leftward extension anchored near pos
// could splice back to.
func (db *SpliceSiteDB) GetLeftSpliceSites(tidx, pos, minMatch int, out []SpliceSite) []SpliceSite {
	db.mu.RLock()
	defer db.mu.RUnlock()
	list := db.byRight[tidx]
	lo := sort.Search(len(list), func(i int) bool { return list[i].Right > pos-minMatch })
	for ; lo < len(list) && list[lo].Right <= pos; lo++ {
		out = append(out, list[lo])
	}
	return out
}

// GetRightSpliceSites appends sites whose upstream-exon end lies in
// [pos, pos+minMatch), i.e. sites a rightward extension anchored near pos
// could splice forward from.
func (db *SpliceSiteDB) GetRightSpliceSites(tidx, pos, minMatch int, out []SpliceSite) []SpliceSite {
	db.mu.RLock()
	defer db.mu.RUnlock()
	list := db.byLeft[tidx]
	lo := sort.Search(len(list), func(i int) bool { return list[i].Left >= pos })
	for ; lo < len(list) && list[lo].Left < pos+minMatch; lo++ {
		out = append(out, list[lo])
	}
	return out
}

// HasSpliceSites reports whether any site lands in the windows flanking an
// exonic alignment: an acceptor in [left1, right1] or a donor in
// [left2, right2].
func (db *SpliceSiteDB) HasSpliceSites(tidx, left1, right1, left2, right2 int, includeNovel bool) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	list := db.byRight[tidx]
	lo := sort.Search(len(list), func(i int) bool { return list[i].Right >= left1 })
	for ; lo < len(list) && list[lo].Right <= right1; lo++ {
		if includeNovel || list[lo].FromFile {
			return true
		}
	}
	list = db.byLeft[tidx]
	lo = sort.Search(len(list), func(i int) bool { return list[i].Left >= left2 })
	for ; lo < len(list) && list[lo].Left <= right2; lo++ {
		if includeNovel || list[lo].FromFile {
			return true
		}
	}
	return false
}

// Splice-site probability model: a pair of position weight matrices over the
// donor window (donorExonicLen exonic + donorIntronicLen intronic bases) and
// the acceptor window (acceptorIntronicLen intronic + acceptorExonicLen
// exonic bases). The returned score is normalized to [0, 1] with the
// consensus sequence at 1.
var donorWeights = [donorExonicLen + donorIntronicLen][4]float64{
	{0.2, 0.2, 0.5, 0.2},
	{0.2, 0.2, 0.5, 0.2},
	{0.3, 0.2, 0.5, 0.2},
	{0, 0, 12, 0}, // G
	{0, 0, 0, 12}, // T
	{1.5, 0.2, 0.5, 0.2},
	{1.2, 0.2, 0.8, 0.2},
	{0.2, 0.2, 1.5, 0.2},
	{0.3, 0.2, 0.2, 1.2},
}

var acceptorWeights = [acceptorIntronicLen + acceptorExonicLen][4]float64{
	{0.2, 1.0, 0.2, 1.0},
	{0.2, 1.0, 0.2, 1.0},
	{0.2, 1.0, 0.2, 1.0},
	{0.2, 1.0, 0.2, 1.0},
	{12, 0, 0, 0}, // A
	{0, 0, 12, 0}, // G
	{0.3, 0.3, 0.4, 0.3},
	{0.3, 0.3, 0.4, 0.3},
	{0.3, 0.3, 0.4, 0.3},
}

var probscoreMin, probscoreMax float64

func init() {
	for _, w := range donorWeights {
		probscoreMin += minOf4(w)
		probscoreMax += maxOf4(w)
	}
	for _, w := range acceptorWeights {
		probscoreMin += minOf4(w)
		probscoreMax += maxOf4(w)
	}
}

func minOf4(w [4]float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf4(w [4]float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Probscore scores a donor/acceptor context pair. The sequences are packed
// two bits per base, first base in the highest bits, as extracted during
// combination.
func (db *SpliceSiteDB) Probscore(donorSeq, acceptorSeq uint64) float64 {
	sum := 0.0
	nd := len(donorWeights)
	for p := 0; p < nd; p++ {
		base := (donorSeq >> (2 * uint(nd-1-p))) & 3
		sum += donorWeights[p][base]
	}
	na := len(acceptorWeights)
	for p := 0; p < na; p++ {
		base := (acceptorSeq >> (2 * uint(na-1-p))) & 3
		sum += acceptorWeights[p][base]
	}
	return (sum - probscoreMin) / (probscoreMax - probscoreMin)
}
