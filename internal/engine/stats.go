package engine

import (
	"math"
	"sort"
)

// InterarrivalStd computes the sample standard deviation of the positive
// gaps between consecutive timestamps. It is undefined (ok=false) with
// fewer than two positive gaps.
func InterarrivalStd(txs []*TxData) (float64, bool) {
	ts := make([]int64, 0, len(txs))
	for _, tx := range txs {
		ts = append(ts, timestampOf(tx))
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	var gaps []float64
	for i := 1; i < len(ts); i++ {
		if d := ts[i] - ts[i-1]; d > 0 {
			gaps = append(gaps, float64(d))
		}
	}
	if len(gaps) < 2 {
		return 0, false
	}

	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))

	var sq float64
	for _, g := range gaps {
		sq += (g - mean) * (g - mean)
	}
	return math.Sqrt(sq / float64(len(gaps)-1)), true
}

// CheckPrerequisites reports whether the address has accumulated enough
// edges for the statistics branch to be meaningful.
func CheckPrerequisites(txs []*TxData, minEdges int) bool {
	return len(txs) >= minEdges
}
