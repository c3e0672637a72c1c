package store

import (
	"gotest.tools/assert"
	"testing"
	"time"
)

func docs(values ...interface{}) []Document {
	documents := make([]Document, 0, len(values))
	for i, value := range values {
		fields := Fields{"n": i}
		if value != nil {
			fields["createdAt"] = value
		}
		documents = append(documents, Document{ID: string(rune('a' + i)), Fields: fields})
	}
	return documents
}

func ids(documents []Document) string {
	var result string
	for _, document := range documents {
		result += document.ID
	}
	return result
}

func TestApplyOrdersDescendingWithMissingLast(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	documents := docs(base, nil, base.Add(time.Hour), base.Add(-time.Hour))

	result := Apply(documents, Query{OrderBy: "createdAt", Descending: true})

	assert.Equal(t, ids(result), "cadb")
}

func TestApplyOrdersAscendingWithMissingFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	documents := docs(base, nil, base.Add(time.Hour))

	result := Apply(documents, Query{OrderBy: "createdAt"})

	assert.Equal(t, ids(result), "bac")
}

func TestApplyKeepsTiesInInputOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	documents := docs(base, base, base)

	result := Apply(documents, Query{OrderBy: "createdAt", Descending: true})

	assert.Equal(t, ids(result), "abc")
}

func TestApplyFiltersAndPages(t *testing.T) {
	documents := []Document{
		{ID: "1", Fields: Fields{"author": "x@example.com", "rank": 1}},
		{ID: "2", Fields: Fields{"author": "y@example.com", "rank": 2}},
		{ID: "3", Fields: Fields{"author": "x@example.com", "rank": 3}},
		{ID: "4", Fields: Fields{"author": "x@example.com", "rank": 4}},
		{ID: "5", Fields: Fields{"rank": 5}},
	}

	q := Query{OrderBy: "rank", Descending: true}.Where("author", "x@example.com")
	assert.Equal(t, ids(Apply(documents, q)), "431")

	q.Offset = 1
	q.Limit = 1
	assert.Equal(t, ids(Apply(documents, q)), "3")

	q.Offset = 10
	assert.Equal(t, len(Apply(documents, q)), 0)
}

func TestWhereDoesNotShareFilters(t *testing.T) {
	base := Query{Collection: "posts"}.Where("a", 1)
	first := base.Where("b", 2)
	second := base.Where("c", 3)

	assert.Equal(t, len(base.Filters), 1)
	assert.Equal(t, first.Filters[1].Field, "b")
	assert.Equal(t, second.Filters[1].Field, "c")
}

func TestCompareNumbersOfDifferentTypes(t *testing.T) {
	assert.Equal(t, Compare(1, 2.5), -1)
	assert.Equal(t, Compare(int64(3), 3.0), 0)
	assert.Equal(t, Compare(nil, 0), -1)
	assert.Equal(t, Compare("b", "a"), 1)
}

func TestResolveTimestamps(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	fields := Fields{"title": "A", "createdAt": ServerTimestamp}

	resolved := ResolveTimestamps(fields, now)

	assert.Equal(t, resolved["createdAt"], now)
	assert.Equal(t, resolved["title"], "A")
	assert.Equal(t, fields["createdAt"], ServerTimestamp)
}
