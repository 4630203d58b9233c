package index

import "sort"

// suffixArray builds the suffix array of data by prefix doubling. Ranks are
// compared pairwise at distance k, doubling k each round until every suffix
// has a distinct rank.
func suffixArray(data []byte) []int32 {
	n := len(data)
	sa := make([]int32, n)
	rank := make([]int32, n)
	next := make([]int32, n)
	for i := 0; i < n; i++ {
		sa[i] = int32(i)
		rank[i] = int32(data[i])
	}
	for k := 1; ; k *= 2 {
		rankAt := func(i int32) int32 {
			if int(i)+k < n {
				return rank[int(i)+k]
			}
			return -1
		}
		less := func(i, j int32) bool {
			if rank[i] != rank[j] {
				return rank[i] < rank[j]
			}
			return rankAt(i) < rankAt(j)
		}
		sort.Slice(sa, func(a, b int) bool { return less(sa[a], sa[b]) })
		next[sa[0]] = 0
		for i := 1; i < n; i++ {
			next[sa[i]] = next[sa[i-1]]
			if less(sa[i-1], sa[i]) {
				next[sa[i]]++
			}
		}
		copy(rank, next)
		if int(rank[sa[n-1]]) == n-1 {
			break
		}
	}
	return sa
}
