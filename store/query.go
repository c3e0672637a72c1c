package store

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Matches - reports whether fields satisfy every filter
func Matches(fields Fields, filters []Filter) bool {
	for _, filter := range filters {
		value, ok := fields[filter.Field]
		if !ok || Compare(value, filter.Value) != 0 {
			return false
		}
	}
	return true
}

func rank(value interface{}) int {
	switch value.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// Compare - orders two field values. Missing values (nil) sort before everything else,
// values of different kinds are ordered by kind
func Compare(a, b interface{}) int {
	rankA, rankB := rank(a), rank(b)
	if rankA != rankB {
		if rankA < rankB {
			return -1
		}
		return 1
	}

	switch v := a.(type) {
	case nil:
		return 0
	case bool:
		w := b.(bool)
		switch {
		case v == w:
			return 0
		case !v:
			return -1
		default:
			return 1
		}
	case time.Time:
		w := b.(time.Time)
		switch {
		case v.Before(w):
			return -1
		case v.After(w):
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(v, b.(string))
	}

	if rankA == 2 {
		x, y := toFloat(a), toFloat(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return -1
}

// Apply - evaluates the query over documents of its collection in memory
func Apply(documents []Document, q Query) []Document {
	result := make([]Document, 0, len(documents))
	for _, document := range documents {
		if Matches(document.Fields, q.Filters) {
			result = append(result, document)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(result, func(i, j int) bool {
			c := Compare(result[i].Fields[q.OrderBy], result[j].Fields[q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(result) {
			return []Document{}
		}
		result = result[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}
	return result
}
