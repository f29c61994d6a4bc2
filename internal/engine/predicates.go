package engine

import (
	"strconv"
	"strings"

	"github.com/tracex/risk-engine/internal/lists"
)

// evalClause walks the match/conditions/exceptions grammar. A nil clause
// is false; composition members take precedence over predicate fields.
func evalClause(c *Clause, tx *TxData, l *lists.Lists) bool {
	if c == nil {
		return false
	}
	if len(c.All) > 0 {
		for _, sub := range c.All {
			if !evalClause(sub, tx, l) {
				return false
			}
		}
		return true
	}
	if len(c.Any) > 0 {
		for _, sub := range c.Any {
			if evalClause(sub, tx, l) {
				return true
			}
		}
		return false
	}

	switch {
	case c.InList != nil:
		return evalInList(c.InList, tx, l)
	case c.Gte != nil:
		return cmpNumeric(c.Gte, tx, func(a, b float64) bool { return a >= b })
	case c.Lte != nil:
		return cmpNumeric(c.Lte, tx, func(a, b float64) bool { return a <= b })
	case c.Gt != nil:
		return cmpNumeric(c.Gt, tx, func(a, b float64) bool { return a > b })
	case c.Lt != nil:
		return cmpNumeric(c.Lt, tx, func(a, b float64) bool { return a < b })
	case c.Eq != nil:
		return evalEq(c.Eq, tx)
	}
	return false
}

// evalInList checks list membership of the field value. When the field is
// the counterparty ("to") the transaction's pre-resolved membership flag
// also counts, covering graphs built without loaded lists.
func evalInList(p *InListPred, tx *TxData, l *lists.Lists) bool {
	if value, ok := tx.StringField(p.Field); ok && value != "" {
		if l != nil && l.Contains(p.List, value) {
			return true
		}
	}
	if p.Field == "to" || p.Field == "to_address" {
		return tx.flagForList(p.List)
	}
	return false
}

func cmpNumeric(p *CmpPred, tx *TxData, cmp func(a, b float64) bool) bool {
	fieldVal, ok := tx.Field(p.Field)
	if !ok {
		return false
	}
	threshold, ok := toFloat(p.Value)
	if !ok {
		return false
	}
	return cmp(fieldVal, threshold)
}

// evalEq is value equality: numeric fields compare as numbers, string
// fields compare case-insensitively.
func evalEq(p *CmpPred, tx *TxData) bool {
	if fieldVal, ok := tx.Field(p.Field); ok {
		if want, ok := toFloat(p.Value); ok {
			return fieldVal == want
		}
		return false
	}
	if fieldVal, ok := tx.StringField(p.Field); ok {
		want, isStr := p.Value.(string)
		return isStr && fieldVal == strings.ToLower(want)
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// evalAggregations requires every aggregation to pass over the candidate
// set. An empty list passes vacuously.
func evalAggregations(aggs []Aggregation, candidates []*TxData) bool {
	for _, a := range aggs {
		if !evalAggregation(a, candidates) {
			return false
		}
	}
	return true
}

func evalAggregation(a Aggregation, candidates []*TxData) bool {
	switch {
	case a.CountGte != nil:
		return float64(len(candidates)) >= a.CountGte.Value
	case a.SumGte != nil:
		return aggSum(candidates, aggField(a.SumGte)) >= a.SumGte.Value
	case a.AvgGte != nil:
		if len(candidates) == 0 {
			return false
		}
		return aggSum(candidates, aggField(a.AvgGte))/float64(len(candidates)) >= a.AvgGte.Value
	case a.EveryGte != nil:
		for _, tx := range candidates {
			if v, _ := tx.Field(aggField(a.EveryGte)); v < a.EveryGte.Value {
				return false
			}
		}
		return len(candidates) > 0
	case a.AnyGte != nil:
		for _, tx := range candidates {
			if v, _ := tx.Field(aggField(a.AnyGte)); v >= a.AnyGte.Value {
				return true
			}
		}
		return false
	case a.DistinctGte != nil:
		return float64(aggDistinct(candidates, aggField(a.DistinctGte))) >= a.DistinctGte.Value
	}
	return false
}

func aggField(arg *AggArg) string {
	if arg.Field == "" {
		return "usd_value"
	}
	return arg.Field
}

func aggSum(candidates []*TxData, field string) float64 {
	var sum float64
	for _, tx := range candidates {
		v, _ := tx.Field(field)
		sum += v
	}
	return sum
}

// aggDistinct counts distinct non-empty values of the field, preferring
// the string form and falling back to the numeric one.
func aggDistinct(candidates []*TxData, field string) int {
	seen := map[string]struct{}{}
	for _, tx := range candidates {
		var key string
		if s, ok := tx.StringField(field); ok {
			key = s
		} else if v, ok := tx.Field(field); ok {
			key = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if key == "" {
			continue
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}
