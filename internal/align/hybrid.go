package align

import "sort"

const maxExtent = int(^uint(0) >> 1)

func sortCoords(coords []Coord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Tidx != coords[j].Tidx {
			return coords[i].Tidx < coords[j].Tidx
		}
		return coords[i].Toff < coords[j].Toff
	})
}

// searchStrategy is the hybrid-search override point: the spliced variant
// below is the default; an unspliced variant can be swapped in at
// construction.
type searchStrategy interface {
	hybridSearch(a *Aligner, rdi int)
	hybridSearchRecur(a *Aligner, rdi int, hit *Hit, hitoff, hitlen, dep int) int64
}

// splicedSearch is the splice-aware hybrid search strategy.
type splicedSearch struct{}

// hybridSearch extends every anchor hit mismatch-free, then runs the
// recursive search on each candidate, best (most multiply seeded, longest)
// first.
func (s splicedSearch) hybridSearch(a *Aligner, rdi int) {
	a.cnt.LocalAtts++
	rd := a.rds[rdi]

	for hi := range a.genomeHits {
		gh := &a.genomeHits[hi]
		leftext, rightext := maxExtent, maxExtent
		gh.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, 0)
	}

	if cap(a.genomeHitsDone) < len(a.genomeHits) {
		a.genomeHitsDone = make([]bool, len(a.genomeHits))
	}
	a.genomeHitsDone = a.genomeHitsDone[:len(a.genomeHits)]
	for i := range a.genomeHitsDone {
		a.genomeHitsDone[i] = false
	}
	for range a.genomeHits {
		hj := -1
		for j := range a.genomeHits {
			if !a.genomeHitsDone[j] {
				hj = j
				break
			}
		}
		if hj < 0 {
			break
		}
		for hk := hj + 1; hk < len(a.genomeHits); hk++ {
			if a.genomeHitsDone[hk] {
				continue
			}
			ghj := &a.genomeHits[hj]
			ghk := &a.genomeHits[hk]
			if ghk.HitCount() > ghj.HitCount() ||
				(ghk.HitCount() == ghj.HitCount() && ghk.Len() > ghj.Len()) {
				hj = hk
			}
		}
		a.cnt.AnchorAtts++
		gh := &a.genomeHits[hj]
		s.hybridSearchRecur(a, rdi, gh, gh.Rdoff(), gh.Len(), 0)
		a.genomeHitsDone[hj] = true
	}
}

// hybridSearchRecur grows the committed window [hitoff, hitoff+hitlen) of
// hit toward full read coverage, trying in order: known splice sites, local
// tile indexes, the global index, direct extension, and a read-skip
// fallback; it recurs on every successful combination and reports full
// alignments. It returns the best score reported from this frame.
func (s splicedSearch) hybridSearchRecur(a *Aligner, rdi int, hit *Hit, hitoff, hitlen, dep int) int64 {
	var maxsc int64 = minScore
	a.cnt.LocalSearchRecur++
	rd := a.rds[rdi]
	rdlen := rd.Len()
	if hit.Score() < a.minsc[rdi] {
		return maxsc
	}

	// already examined?
	if hitoff == hit.Rdoff()-hit.Trim5() && hitlen == hit.Len()+hit.Trim5()+hit.Trim3() {
		if a.isSearched(rdi, hit) {
			return maxsc
		}
		a.addSearched(rdi, hit)
	}

	// per-depth scratch slots
	for len(a.coords) <= dep {
		a.coords = append(a.coords, nil)
		a.localGenomeHits = append(a.localGenomeHits, nil)
		a.spliceSites = append(a.spliceSites, nil)
	}
	coords := &a.coords[dep]
	spliceSites := &a.spliceSites[dep]

	if hitoff == 0 && hitlen == rdlen {
		// fully covered: try to attach extra spliced partials at either end
		// through the splice-site database, then report
		if a.redundant(rdi, hit) {
			return maxsc
		}
		if a.ssdb.Empty() {
			a.reportHit(rdi, hit)
			if hit.Score() > maxsc {
				maxsc = hit.Score()
			}
			return maxsc
		}

		bestScore := hit.Score()
		lg := &a.localGenomeHits[dep]
		*lg = (*lg)[:0]
		a.anchorsAdded = a.anchorsAdded[:0]
		*lg = append(*lg, Hit{})
		(*lg)[len(*lg)-1].CopyFrom(hit)
		a.anchorsAdded = append(a.anchorsAdded, 0)

		_, fraglen, left, _ := hit.GetLeft(nil, nil)
		minMatchLen := a.minK
		if fraglen >= minMatchLen && left >= minMatchLen && hit.Trim5() == 0 && !a.opts.NoSplicedAlignment {
			*spliceSites = (*spliceSites)[:0]
			*spliceSites = a.ssdb.GetLeftSpliceSites(hit.Ref(), left+minMatchLen, minMatchLen, *spliceSites)
			for si := range *spliceSites {
				ss := &(*spliceSites)[si]
				if !ss.FromFile && ss.ReadID+a.opts.ThreadRidsMindist > rd.ID {
					continue
				}
				if left+fraglen-1 < ss.Right {
					continue
				}
				frag2off := ss.Left - (ss.Right - left)
				if frag2off+1 < hitoff {
					continue
				}
				var tempHit Hit
				tempHit.Init(hit.Fw(), 0, hitoff, 0, 0, hit.Ref(), frag2off+1, a.shared)
				if !tempHit.CompatibleWith(hit, a.opts.MinIntronLen, a.opts.MaxIntronLen, a.opts.NoSplicedAlignment) {
					tempHit.Release()
					continue
				}
				minsc := a.minsc[rdi]
				if bestScore > minsc {
					minsc = bestScore
				}
				combined := tempHit.CombineWith(hit, rd, a.ref, a.ssdb, a.sc, minsc, a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, 1, 1, ss, a.opts.NoSplicedAlignment)
				if s := a.sink.BestUnp(rdi); s > minsc {
					minsc = s
				}
				leftAnchorLen, nedits := tempHit.LeftAnchor()
				if combined && tempHit.Score() >= minsc && nedits <= leftAnchorLen/4 {
					if !a.redundant(rdi, &tempHit) {
						if tempHit.Score() > bestScore {
							bestScore = tempHit.Score()
						}
						*lg = append(*lg, Hit{})
						(*lg)[len(*lg)-1].CopyFrom(&tempHit)
						a.anchorsAdded = append(a.anchorsAdded, 1)
					}
				}
				tempHit.Release()
			}
		}

		numLocal := len(*lg)
		for i := 0; i < numLocal; i++ {
			fragoff, fraglen, right, _ := (*lg)[i].GetRight(nil, nil)
			if (*lg)[i].Score() < bestScore {
				continue
			}
			if fraglen >= minMatchLen && (*lg)[i].Trim3() == 0 && !a.opts.NoSplicedAlignment {
				*spliceSites = (*spliceSites)[:0]
				*spliceSites = a.ssdb.GetRightSpliceSites((*lg)[i].Ref(), right+fraglen-minMatchLen, minMatchLen, *spliceSites)
				for si := range *spliceSites {
					canHit := &(*lg)[i]
					ss := &(*spliceSites)[si]
					if !ss.FromFile && ss.ReadID+a.opts.ThreadRidsMindist > rd.ID {
						continue
					}
					if right > ss.Left {
						continue
					}
					frag2off := ss.Right - ss.Left + right + fraglen - 1
					var tempHit Hit
					tempHit.Init(canHit.Fw(), fragoff+fraglen, rdlen-fragoff-fraglen, 0, 0, canHit.Ref(), frag2off, a.shared)
					if !canHit.CompatibleWith(&tempHit, a.opts.MinIntronLen, a.opts.MaxIntronLen, a.opts.NoSplicedAlignment) {
						tempHit.Release()
						continue
					}
					var combinedHit Hit
					combinedHit.CopyFrom(canHit)
					minsc := a.minsc[rdi]
					if bestScore > minsc {
						minsc = bestScore
					}
					combined := combinedHit.CombineWith(&tempHit, rd, a.ref, a.ssdb, a.sc, minsc, a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, 1, 1, ss, a.opts.NoSplicedAlignment)
					if s := a.sink.BestUnp(rdi); s > minsc {
						minsc = s
					}
					rightAnchorLen, nedits := combinedHit.RightAnchor()
					if combined && combinedHit.Score() >= minsc && nedits <= rightAnchorLen/4 {
						if !a.redundant(rdi, &combinedHit) {
							if combinedHit.Score() > bestScore {
								bestScore = combinedHit.Score()
							}
							*lg = append(*lg, Hit{})
							(*lg)[len(*lg)-1].CopyFrom(&combinedHit)
							a.anchorsAdded = append(a.anchorsAdded, a.anchorsAdded[i]+1)
						}
					}
					combinedHit.Release()
					tempHit.Release()
				}
			}
		}

		for i := range *lg {
			canHit := &(*lg)[i]
			if !a.opts.Secondary && canHit.Score() < bestScore {
				continue
			}
			if a.anchorsAdded[i] < a.anchorsAdded[len(a.anchorsAdded)-1] {
				continue
			}
			if !a.redundant(rdi, canHit) {
				a.reportHit(rdi, canHit)
				if canHit.Score() > maxsc {
					maxsc = canHit.Score()
				}
			}
		}
		return maxsc
	} else if hitoff > 0 && (hitoff+hitlen == rdlen || hitoff+hitoff < rdlen-hitlen) {
		// unaligned portion on the left
		if !a.ssdb.Empty() {
			fragoff, fraglen, left, _ := hit.GetLeft(nil, nil)
			minMatchLen := a.minKLocal
			if fraglen >= minMatchLen && left >= minMatchLen && !a.opts.NoSplicedAlignment {
				*spliceSites = (*spliceSites)[:0]
				rangeLen := minMatchLen
				if fragoff < rangeLen {
					rangeLen = fragoff
				}
				*spliceSites = a.ssdb.GetLeftSpliceSites(hit.Ref(), left+minMatchLen, minMatchLen+rangeLen, *spliceSites)
				for si := range *spliceSites {
					ss := &(*spliceSites)[si]
					if !ss.FromFile && ss.ReadID+a.opts.ThreadRidsMindist > rd.ID {
						continue
					}
					if left+fraglen-1 < ss.Right {
						continue
					}
					frag2off := ss.Left - (ss.Right - left)
					if frag2off+1 < hitoff {
						continue
					}
					var tempHit Hit
					tempHit.Init(hit.Fw(), 0, fragoff, 0, 0, hit.Ref(), frag2off+1-fragoff, a.shared)
					if !tempHit.CompatibleWith(hit, a.opts.MinIntronLen, a.opts.MaxIntronLen, a.opts.NoSplicedAlignment) {
						tempHit.Release()
						continue
					}
					minsc := a.minsc[rdi]
					combined := tempHit.CombineWith(hit, rd, a.ref, a.ssdb, a.sc, minsc, a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, 1, 1, ss, a.opts.NoSplicedAlignment)
					if !a.opts.Secondary {
						if s := a.sink.BestUnp(rdi); s > minsc {
							minsc = s
						}
					}
					leftAnchorLen, nedits := tempHit.LeftAnchor()
					if combined && tempHit.Score() >= minsc && nedits <= leftAnchorLen/4 {
						tmpMaxsc := s.hybridSearchRecur(a, rdi, &tempHit, tempHit.Rdoff(), tempHit.Len()+tempHit.Trim3(), dep+1)
						if tmpMaxsc > maxsc {
							maxsc = tmpMaxsc
						}
					}
					tempHit.Release()
				}
			}
		}

		useLocalIndex := true
		if hitoff == hit.Rdoff() && hitoff <= a.minK {
			var tempHit Hit
			tempHit.CopyFrom(hit)
			leftext, rightext := maxExtent, 0
			tempHit.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, 1)
			if tempHit.Rdoff() == 0 {
				useLocalIndex = false
			}
			tempHit.Release()
		}

		tile := a.tiles.GetTile(hit.Ref(), hit.Refoff())
		success, first := false, true
		count := 0
		const maxCount = 2
		prevScore := hit.Score()
		lg := &a.localGenomeHits[dep]
		*lg = (*lg)[:0]
		for !success && count < maxCount && useLocalIndex {
			count++
			if a.cnt.LocalIndexAtts >= a.maxLocalIndexAtts {
				break
			}
			if first {
				first = false
			} else {
				tile = a.tiles.Prev(tile)
				if tile == nil {
					break
				}
			}
			extlen := 0
			var top, bot int
			extoff := hitoff - 1
			if extoff > 0 {
				extoff--
			}
			if extoff < minAnchorLen {
				extoff = minAnchorLen
			}
			nelt := maxExtent
			maxNelt := 5
			noExtension := false
			uniqueStop := false
			for ; extoff < rdlen; extoff++ {
				uniqueStop = true
				a.cnt.LocalIndexAtts++
				nelt, extlen, top, bot = a.localSearch(tile, rd, hit.Fw(), extoff, &uniqueStop, a.minKLocal, maxExtent)
				if extoff+1-extlen >= hitoff {
					noExtension = true
					break
				}
				if nelt <= maxNelt {
					break
				}
			}
			if nelt > 0 && nelt <= maxNelt && extlen >= minAnchorLen && !noExtension {
				a.getGenomeCoordsLocal(tile, top, bot, hit.Fw(), extoff+1-extlen, extlen, coords)
				sortCoords(*coords)
				for ri := len(*coords) - 1; ri >= 0; ri-- {
					coord := (*coords)[ri]
					var tempHit Hit
					tempHit.Init(coord.Fw, extoff+1-extlen, extlen, 0, 0, coord.Tidx, coord.Toff, a.shared)
					if !tempHit.CompatibleWith(hit, a.opts.MinIntronLen, a.opts.MaxIntronLen, a.opts.NoSplicedAlignment) {
						tempHit.Release()
						if count == 1 {
							continue
						}
						break
					}
					if uniqueStop {
						leftext, rightext := maxExtent, 0
						tempHit.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, 0)
					}
					minsc := a.minsc[rdi]
					combined := tempHit.CombineWith(hit, rd, a.ref, a.ssdb, a.sc, minsc, a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, minAnchorLen, minAnchorLenNoncan, nil, a.opts.NoSplicedAlignment)
					if !a.opts.Secondary {
						if s := a.sink.BestUnp(rdi); s > minsc {
							minsc = s
						}
					}
					if combined && tempHit.Score() >= minsc {
						if tempHit.Score() >= prevScore-a.sc.MmpMax() {
							tmpMaxsc := s.hybridSearchRecur(a, rdi, &tempHit, tempHit.Rdoff(), tempHit.Len()+tempHit.Trim3(), dep+1)
							if tmpMaxsc > maxsc {
								maxsc = tmpMaxsc
							}
						} else {
							*lg = append(*lg, Hit{})
							(*lg)[len(*lg)-1].CopyFrom(&tempHit)
						}
					}
					tempHit.Release()
				}
			}
			if maxsc >= prevScore-a.sc.MmpMax() {
				success = true
			}
			if !success &&
				(a.cnt.LocalIndexAtts >= a.maxLocalIndexAtts || count == maxCount || a.tiles.Prev(tile) == nil) {
				for ti := range *lg {
					tempHit := &(*lg)[ti]
					minsc := a.minsc[rdi]
					if !a.opts.Secondary {
						if s := a.sink.BestUnp(rdi); s > minsc {
							minsc = s
						}
					}
					if tempHit.Score() >= minsc {
						tmpMaxsc := s.hybridSearchRecur(a, rdi, tempHit, tempHit.Rdoff(), tempHit.Len()+tempHit.Trim3(), dep+1)
						if tmpMaxsc > maxsc {
							maxsc = tmpMaxsc
						}
					}
				}
			}
		}

		if !success {
			if hitoff > a.minK && a.cnt.LocalIndexAtts < a.maxLocalIndexAtts {
				// global search for long introns
				extoff := hitoff - 1
				uniqueStop := true
				nelt, extlen, top, bot := a.globalSearch(rd, hit.Fw(), extoff, &uniqueStop)
				if nelt > 0 && nelt <= 5 && extlen >= a.minK {
					a.getGenomeCoords(top, bot, hit.Fw(), bot-top, extoff+1-extlen, extlen, coords, true)
					sortCoords(*coords)
					for ri := len(*coords) - 1; ri >= 0; ri-- {
						coord := (*coords)[ri]
						var tempHit Hit
						tempHit.Init(coord.Fw, extoff+1-extlen, extlen, 0, 0, coord.Tidx, coord.Toff, a.shared)
						if !tempHit.CompatibleWith(hit, a.opts.MinIntronLen, a.opts.MaxIntronLen, a.opts.NoSplicedAlignment) {
							tempHit.Release()
							continue
						}
						if uniqueStop {
							leftext, rightext := maxExtent, 0
							tempHit.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, 0)
						}
						minsc := a.minsc[rdi]
						combined := tempHit.CombineWith(hit, rd, a.ref, a.ssdb, a.sc, minsc, a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, minAnchorLen, minAnchorLenNoncan, nil, a.opts.NoSplicedAlignment)
						if !a.opts.Secondary {
							if s := a.sink.BestUnp(rdi); s > minsc {
								minsc = s
							}
						}
						if combined && tempHit.Score() >= minsc {
							tmpMaxsc := s.hybridSearchRecur(a, rdi, &tempHit, tempHit.Rdoff(), tempHit.Len()+tempHit.Trim3(), dep+1)
							if tmpMaxsc > maxsc {
								maxsc = tmpMaxsc
							}
						}
						tempHit.Release()
					}
				}
			}
			// direct extension with a bounded mismatch budget
			var tempHit Hit
			tempHit.CopyFrom(hit)
			minsc := a.minsc[rdi]
			mm := (tempHit.Score() - minsc) / a.sc.MmpMax()
			numMismatchAllowed := 1
			if hitoff <= a.minKLocal {
				numMismatchAllowed = tempHit.Rdoff()
				if int64(numMismatchAllowed) > mm {
					numMismatchAllowed = int(mm)
				}
			}
			a.cnt.LocalExtAtts++
			leftext, rightext := maxExtent, 0
			tempHit.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, numMismatchAllowed)
			if !a.opts.Secondary {
				if s := a.sink.BestUnp(rdi); s > minsc {
					minsc = s
				}
			}
			minLeft := a.minKLocal
			if hit.Rdoff() < minLeft {
				minLeft = hit.Rdoff()
			}
			if tempHit.Score() >= minsc && leftext >= minLeft {
				tmpMaxsc := s.hybridSearchRecur(a, rdi, &tempHit, tempHit.Rdoff(), tempHit.Len()+tempHit.Trim3(), dep+1)
				if tmpMaxsc > maxsc {
					maxsc = tmpMaxsc
				}
			} else if hitoff > a.minKLocal {
				// skip some bases of the read
				jumplen := a.minKLocal
				if hitoff > a.minK {
					jumplen = a.minK
				}
				expected := hit.Score() - int64((hit.Rdoff()-hitoff)/jumplen)*a.sc.MmpMax() - a.sc.MmpMax()
				if expected >= minsc {
					tmpMaxsc := s.hybridSearchRecur(a, rdi, hit, hitoff-jumplen, hitlen+jumplen, dep+1)
					if tmpMaxsc > maxsc {
						maxsc = tmpMaxsc
					}
				}
			}
			tempHit.Release()
		}
	} else {
		// unaligned portion on the right
		if !a.ssdb.Empty() {
			fragoff, fraglen, right, _ := hit.GetRight(nil, nil)
			minMatchLen := a.minKLocal
			if fraglen >= minMatchLen && !a.opts.NoSplicedAlignment {
				*spliceSites = (*spliceSites)[:0]
				rightUnmapped := rdlen - fragoff - fraglen
				rangeLen := minMatchLen
				if rightUnmapped < rangeLen {
					rangeLen = rightUnmapped
				}
				*spliceSites = a.ssdb.GetRightSpliceSites(hit.Ref(), right+fraglen-minMatchLen, minMatchLen+rangeLen, *spliceSites)
				for si := range *spliceSites {
					ss := &(*spliceSites)[si]
					if !ss.FromFile && ss.ReadID+a.opts.ThreadRidsMindist > rd.ID {
						continue
					}
					if right > ss.Left {
						continue
					}
					frag2off := ss.Right - ss.Left + right + fraglen - 1
					var tempHit Hit
					tempHit.Init(hit.Fw(), fragoff+fraglen, rdlen-fragoff-fraglen, 0, 0, hit.Ref(), frag2off, a.shared)
					if !hit.CompatibleWith(&tempHit, a.opts.MinIntronLen, a.opts.MaxIntronLen, a.opts.NoSplicedAlignment) {
						tempHit.Release()
						continue
					}
					var combinedHit Hit
					combinedHit.CopyFrom(hit)
					minsc := a.minsc[rdi]
					combined := combinedHit.CombineWith(&tempHit, rd, a.ref, a.ssdb, a.sc, minsc, a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, 1, 1, ss, a.opts.NoSplicedAlignment)
					if !a.opts.Secondary {
						if s := a.sink.BestUnp(rdi); s > minsc {
							minsc = s
						}
					}
					rightAnchorLen, nedits := combinedHit.RightAnchor()
					if combined && combinedHit.Score() >= minsc && nedits <= rightAnchorLen/4 {
						tmpMaxsc := s.hybridSearchRecur(a, rdi, &combinedHit, combinedHit.Rdoff()-combinedHit.Trim5(), combinedHit.Len()+combinedHit.Trim5(), dep+1)
						if tmpMaxsc > maxsc {
							maxsc = tmpMaxsc
						}
					}
					combinedHit.Release()
					tempHit.Release()
				}
			}
		}

		useLocalIndex := true
		if hit.Len() == hitlen && hitoff+hitlen+a.minK > rdlen {
			var tempHit Hit
			tempHit.CopyFrom(hit)
			leftext, rightext := 0, maxExtent
			tempHit.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, 1)
			if tempHit.Rdoff()+tempHit.Len() == rdlen {
				useLocalIndex = false
			}
			tempHit.Release()
		}

		tile := a.tiles.GetTile(hit.Ref(), hit.Refoff())
		success, first := false, true
		count := 0
		const maxCount = 2
		prevScore := hit.Score()
		lg := &a.localGenomeHits[dep]
		*lg = (*lg)[:0]
		for !success && count < maxCount && useLocalIndex {
			count++
			if a.cnt.LocalIndexAtts >= a.maxLocalIndexAtts {
				break
			}
			if first {
				first = false
			} else {
				tile = a.tiles.Next(tile)
				if tile == nil {
					break
				}
			}
			extlen := 0
			var top, bot int
			extoff := hitoff + hitlen + a.minKLocal
			if extoff+1 < rdlen {
				extoff++
			}
			if extoff >= rdlen {
				extoff = rdlen - 1
			}
			nelt := maxExtent
			maxNelt := 5
			noExtension := false
			uniqueStop := false
			maxHitLen := extoff - hitoff - hitlen
			if maxHitLen < a.minKLocal {
				maxHitLen = a.minKLocal
			}
			for maxHitLen < extoff+1 && extoff < rdlen {
				uniqueStop = false
				a.cnt.LocalIndexAtts++
				nelt, extlen, top, bot = a.localSearch(tile, rd, hit.Fw(), extoff, &uniqueStop, a.minKLocal, maxHitLen)
				if extoff < hitoff+hitlen {
					noExtension = true
					break
				}
				if nelt <= maxNelt {
					break
				}
				if extoff+1 < rdlen {
					extoff++
				} else {
					if extlen < maxHitLen {
						break
					}
					maxHitLen++
				}
			}
			if nelt > 0 && nelt <= maxNelt && extlen >= minAnchorLen && !noExtension {
				a.getGenomeCoordsLocal(tile, top, bot, hit.Fw(), extoff+1-extlen, extlen, coords)
				sortCoords(*coords)
				for ri := 0; ri < len(*coords); ri++ {
					coord := (*coords)[ri]
					var tempHit Hit
					tempHit.Init(coord.Fw, extoff+1-extlen, extlen, 0, 0, coord.Tidx, coord.Toff, a.shared)
					if !hit.CompatibleWith(&tempHit, a.opts.MinIntronLen, a.opts.MaxIntronLen, a.opts.NoSplicedAlignment) {
						tempHit.Release()
						if count == 1 {
							continue
						}
						break
					}
					leftext, rightext := 0, maxExtent
					tempHit.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, 0)
					var combinedHit Hit
					combinedHit.CopyFrom(hit)
					minsc := a.minsc[rdi]
					combined := combinedHit.CombineWith(&tempHit, rd, a.ref, a.ssdb, a.sc, minsc, a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, minAnchorLen, minAnchorLenNoncan, nil, a.opts.NoSplicedAlignment)
					if !a.opts.Secondary {
						if s := a.sink.BestUnp(rdi); s > minsc {
							minsc = s
						}
					}
					if combined && combinedHit.Score() >= minsc {
						if combinedHit.Score() >= prevScore-a.sc.MmpMax() {
							tmpMaxsc := s.hybridSearchRecur(a, rdi, &combinedHit, combinedHit.Rdoff()-combinedHit.Trim5(), combinedHit.Len()+combinedHit.Trim5(), dep+1)
							if tmpMaxsc > maxsc {
								maxsc = tmpMaxsc
							}
						} else {
							*lg = append(*lg, Hit{})
							(*lg)[len(*lg)-1].CopyFrom(&combinedHit)
						}
					}
					combinedHit.Release()
					tempHit.Release()
				}
			}
			if maxsc >= prevScore-a.sc.MmpMax() {
				success = true
			}
			if !success &&
				(a.cnt.LocalIndexAtts >= a.maxLocalIndexAtts || count == maxCount || a.tiles.Next(tile) == nil) {
				for ti := range *lg {
					tempHit := &(*lg)[ti]
					minsc := a.minsc[rdi]
					if !a.opts.Secondary {
						if s := a.sink.BestUnp(rdi); s > minsc {
							minsc = s
						}
					}
					if tempHit.Score() >= minsc {
						tmpMaxsc := s.hybridSearchRecur(a, rdi, tempHit, tempHit.Rdoff()-tempHit.Trim5(), tempHit.Len()+tempHit.Trim5(), dep+1)
						if tmpMaxsc > maxsc {
							maxsc = tmpMaxsc
						}
					}
				}
			}
		}

		if !success {
			if hitoff+hitlen+a.minK+1 < rdlen && a.cnt.LocalIndexAtts < a.maxLocalIndexAtts {
				// global search for long introns
				extoff := hitoff + hitlen + a.minK + 1
				uniqueStop := true
				nelt, extlen, top, bot := a.globalSearch(rd, hit.Fw(), extoff, &uniqueStop)
				if nelt > 0 && nelt <= 5 && extlen >= a.minK {
					a.getGenomeCoords(top, bot, hit.Fw(), bot-top, extoff+1-extlen, extlen, coords, true)
					sortCoords(*coords)
					for ri := 0; ri < len(*coords); ri++ {
						coord := (*coords)[ri]
						var tempHit Hit
						tempHit.Init(coord.Fw, extoff+1-extlen, extlen, 0, 0, coord.Tidx, coord.Toff, a.shared)
						if !hit.CompatibleWith(&tempHit, a.opts.MinIntronLen, a.opts.MaxIntronLen, a.opts.NoSplicedAlignment) {
							tempHit.Release()
							continue
						}
						leftext, rightext := 0, maxExtent
						tempHit.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, 0)
						var combinedHit Hit
						combinedHit.CopyFrom(hit)
						minsc := a.minsc[rdi]
						combined := combinedHit.CombineWith(&tempHit, rd, a.ref, a.ssdb, a.sc, minsc, a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, minAnchorLen, minAnchorLenNoncan, nil, a.opts.NoSplicedAlignment)
						if !a.opts.Secondary {
							if s := a.sink.BestUnp(rdi); s > minsc {
								minsc = s
							}
						}
						if combined && combinedHit.Score() >= minsc {
							tmpMaxsc := s.hybridSearchRecur(a, rdi, &combinedHit, combinedHit.Rdoff()-combinedHit.Trim5(), combinedHit.Len()+combinedHit.Trim5(), dep+1)
							if tmpMaxsc > maxsc {
								maxsc = tmpMaxsc
							}
						}
						combinedHit.Release()
						tempHit.Release()
					}
				}
			}
			// direct extension with a bounded mismatch budget
			var tempHit Hit
			tempHit.CopyFrom(hit)
			minsc := a.minsc[rdi]
			mm := (tempHit.Score() - minsc) / a.sc.MmpMax()
			numMismatchAllowed := 1
			if rdlen-hitoff-hitlen <= a.minKLocal {
				numMismatchAllowed = rdlen - tempHit.Rdoff() - tempHit.Len()
				if int64(numMismatchAllowed) > mm {
					numMismatchAllowed = int(mm)
				}
			}
			a.cnt.LocalExtAtts++
			leftext, rightext := 0, maxExtent
			tempHit.Extend(rd, a.ref, a.ssdb, a.sc, a.minsc[rdi], a.minKLocal, a.opts.MinIntronLen, a.opts.MaxIntronLen, &leftext, &rightext, numMismatchAllowed)
			if !a.opts.Secondary {
				if s := a.sink.BestUnp(rdi); s > minsc {
					minsc = s
				}
			}
			minRight := a.minKLocal
			if r := rdlen - hit.Len() - hit.Rdoff(); r < minRight {
				minRight = r
			}
			if tempHit.Score() >= minsc && rightext >= minRight {
				tmpMaxsc := s.hybridSearchRecur(a, rdi, &tempHit, tempHit.Rdoff()-tempHit.Trim5(), tempHit.Len()+tempHit.Trim5(), dep+1)
				if tmpMaxsc > maxsc {
					maxsc = tmpMaxsc
				}
			} else if hitoff+hitlen+a.minKLocal < rdlen {
				// skip some bases of the read
				jumplen := a.minKLocal
				if hitoff+hitlen+a.minK < rdlen {
					jumplen = a.minK
				}
				expected := hit.Score() - int64((hitlen-hit.Len())/jumplen)*a.sc.MmpMax() - a.sc.MmpMax()
				if expected >= minsc {
					tmpMaxsc := s.hybridSearchRecur(a, rdi, hit, hitoff, hitlen+jumplen, dep+1)
					if tmpMaxsc > maxsc {
						maxsc = tmpMaxsc
					}
				}
			}
			tempHit.Release()
		}
	}

	return maxsc
}
