package index

// WalkMetrics counts locate work done while resolving SA intervals.
type WalkMetrics struct {
	Resolves int64
	LFSteps  int64
}

// Merge adds other into m.
func (m *WalkMetrics) Merge(other WalkMetrics) {
	m.Resolves += other.Resolves
	m.LFSteps += other.LFSteps
}

// Walker resolves the elements of one SA interval to text offsets, caching
// each element so repeated advances are free.
type Walker struct {
	idx  *Index
	top  int
	offs []int32
}

// Init points the walker at [top, bot) of idx. Previously cached elements
// are discarded.
func (w *Walker) Init(idx *Index, top, bot int) {
	w.idx = idx
	w.top = top
	n := bot - top
	if cap(w.offs) < n {
		w.offs = make([]int32, n)
	} else {
		w.offs = w.offs[:n]
	}
	for i := range w.offs {
		w.offs[i] = -1
	}
}

// AdvanceElement resolves element slot of the interval to its offset in the
// indexed text.
func (w *Walker) AdvanceElement(slot int, wm *WalkMetrics) int {
	if w.offs[slot] < 0 {
		off, steps := w.idx.locate(w.top + slot)
		w.offs[slot] = int32(off)
		wm.Resolves++
		wm.LFSteps += int64(steps)
	}
	return int(w.offs[slot])
}
