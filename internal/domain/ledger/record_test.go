package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewRecord_TruncatesDate(t *testing.T) {
	r := NewRecord("A-1", time.Date(2024, 3, 5, 17, 45, 0, 0, time.UTC), 10)
	assert.Equal(t, day(2024, 3, 5), r.Date)
	assert.True(t, r.Equal(Record{Label: "A-1", Date: day(2024, 3, 5), Amount: 10}))
}

func TestRecord_Validate(t *testing.T) {
	assert.NoError(t, NewRecord("ok", day(2024, 1, 1), 0).Validate())

	err := NewRecord("bad", day(2024, 1, 1), -3).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNegativeAmount))
}

func TestSort_ByDateThenAmount(t *testing.T) {
	records := []Record{
		NewRecord("c", day(2024, 1, 2), 5),
		NewRecord("a", day(2024, 1, 1), 9),
		NewRecord("b", day(2024, 1, 1), 3),
		NewRecord("d", day(2024, 1, 2), 5),
	}

	Sort(records)

	labels := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.Label
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, labels, "equal keys keep load order")
}

func TestMatchResult(t *testing.T) {
	unmatched := MatchResult{Target: NewRecord("t", day(2024, 1, 1), 7)}
	assert.False(t, unmatched.Matched())
	assert.Zero(t, unmatched.Sum())

	matched := MatchResult{
		Target: unmatched.Target,
		Subset: []Record{NewRecord("x", day(2024, 1, 1), 3), NewRecord("y", day(2024, 1, 1), 4)},
	}
	assert.True(t, matched.Matched())
	assert.Equal(t, int64(7), matched.Sum())
}

func TestClone_IsIndependent(t *testing.T) {
	original := []Record{NewRecord("a", day(2024, 1, 1), 1)}
	cloned := Clone(original)
	cloned[0] = NewRecord("b", day(2024, 1, 1), 2)

	assert.Equal(t, "a", original[0].Label)
	assert.Nil(t, Clone(nil))
}
