package engine

// evalWindowRule gathers the sliding-window candidates for the
// transaction's group key and requires every aggregation to pass. The
// current transaction always participates even when it has not been
// appended to history yet.
func evalWindowRule(r *Rule, tx *TxData, h *History) bool {
	ts := timestampOf(tx)
	candidates := h.Window(tx.GroupKey(), ts, r.WindowDuration())

	present := false
	for _, c := range candidates {
		if c == tx {
			present = true
			break
		}
	}
	if !present {
		candidates = append(candidates, tx)
	}

	aggs := r.WindowAggregations()
	if len(aggs) == 0 {
		return false
	}
	return evalAggregations(aggs, candidates)
}
