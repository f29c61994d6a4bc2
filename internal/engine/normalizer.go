package engine

import (
	"math"
	"strings"
)

// FlowFeatures are the normalized in/out flow descriptors the hybrid
// scorer feeds into its blend: Theta captures temporal coupling of
// inflows and outflows, Omega captures amount symmetry. Both live in
// [0, 1] and are 0 when either side of the flow is empty.
type FlowFeatures struct {
	Theta float64
	Omega float64
}

// NormalizeFlows derives the flow features for a target address from its
// transaction set.
func NormalizeFlows(txs []*TxData, target string) FlowFeatures {
	target = strings.ToLower(target)

	var inTs, outTs []float64
	var inAmt, outAmt []float64
	for _, tx := range txs {
		w := tx.Weight()
		if strings.ToLower(tx.To) == target {
			inTs = append(inTs, float64(timestampOf(tx)))
			inAmt = append(inAmt, w)
		}
		if strings.ToLower(tx.From) == target {
			outTs = append(outTs, float64(timestampOf(tx)))
			outAmt = append(outAmt, w)
		}
	}
	if len(inTs) == 0 || len(outTs) == 0 {
		return FlowFeatures{}
	}

	return FlowFeatures{
		Theta: temporalCoupling(inTs, outTs),
		Omega: amountSymmetry(inAmt, outAmt),
	}
}

// temporalCoupling measures how close in time the average inflow and
// outflow are, scaled by the combined spread of both sides. Degenerate
// zero-spread sides fall back to a one-day scale.
func temporalCoupling(inTs, outTs []float64) float64 {
	gap := math.Abs(mean(outTs) - mean(inTs))
	scale := spread(inTs) + spread(outTs)
	if scale == 0 {
		return 1 - math.Min(1, gap/86400)
	}
	return 1 - math.Min(1, gap/(scale+1))
}

// amountSymmetry blends the count balance and the average-amount balance
// of the two directions.
func amountSymmetry(inAmt, outAmt []float64) float64 {
	total := float64(len(inAmt) + len(outAmt))
	ratioIn := float64(len(inAmt)) / total
	ratioOut := float64(len(outAmt)) / total

	avgIn, avgOut := mean(inAmt), mean(outAmt)
	var amtDelta float64
	if avgIn+avgOut > 0 {
		amtDelta = math.Abs(avgIn-avgOut) / (avgIn + avgOut)
	}
	return math.Min(1, (math.Abs(ratioIn-ratioOut)+amtDelta)/2)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func spread(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return hi - lo
}
