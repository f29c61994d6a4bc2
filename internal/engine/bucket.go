package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// bucketGroupMarker is a width annotation some rulesets carry in the
// group_by list; it names the bucket, not a transaction field.
const bucketGroupMarker = "bucket_10m"

// BucketStore accumulates transactions in fixed-width epoch-anchored
// buckets keyed by (rule, group, bucket start). Old buckets are evicted
// on insert.
type BucketStore struct {
	maxAgeSec int64
	buckets   map[string]*bucket

	now func() time.Time
}

type bucket struct {
	start int64
	txs   []*TxData
}

func NewBucketStore(maxHistoryDays int) *BucketStore {
	return &BucketStore{
		maxAgeSec: int64(maxHistoryDays) * 86400,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// Evaluate inserts the transaction into its bucket and applies the rule's
// aggregations over the bucket contents. Transactions with no resolvable
// group key never fire.
func (s *BucketStore) Evaluate(r *Rule, tx *TxData) bool {
	spec := r.BucketSpecOf()
	if spec == nil || spec.SizeSec <= 0 {
		return false
	}
	groupKey := bucketGroupKey(spec.GroupBy, tx)
	if groupKey == "" {
		return false
	}

	ts := timestampOf(tx)
	start := (ts / spec.SizeSec) * spec.SizeSec
	key := fmt.Sprintf("%s|%s|%d", r.ID, groupKey, start)

	s.evict()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{start: start}
		s.buckets[key] = b
	}
	present := false
	for _, c := range b.txs {
		if c == tx {
			present = true
			break
		}
	}
	if !present {
		b.txs = append(b.txs, tx)
	}

	if len(spec.Aggregations) == 0 {
		return false
	}
	return evalAggregations(spec.Aggregations, b.txs)
}

func (s *BucketStore) evict() {
	cutoff := s.now().Unix() - s.maxAgeSec
	for key, b := range s.buckets {
		if b.start < cutoff {
			delete(s.buckets, key)
		}
	}
}

// bucketGroupKey joins the lowercased non-empty field values with "_".
// The bucket-width marker entry is skipped; an empty key means the
// transaction cannot be grouped.
func bucketGroupKey(groupBy []string, tx *TxData) string {
	var parts []string
	for _, field := range groupBy {
		if field == bucketGroupMarker {
			continue
		}
		if s, ok := tx.StringField(field); ok && s != "" {
			parts = append(parts, s)
			continue
		}
		if v, ok := tx.Field(field); ok {
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return strings.Join(parts, "_")
}

// evalRangeRule resolves the numeric-range score for the rule's field.
// The rule fires only when the matched range scores above zero.
func evalRangeRule(r *Rule, tx *TxData) (float64, bool) {
	field := r.Field
	if field == "" {
		field = "usd_value"
	}
	v, ok := tx.Field(field)
	if !ok {
		return 0, false
	}
	for _, rng := range r.Ranges {
		if rng.Contains(v) {
			return rng.Score, rng.Score > 0
		}
	}
	return 0, false
}
