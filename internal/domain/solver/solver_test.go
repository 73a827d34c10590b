package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

var baseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func records(amounts ...int64) []ledger.Record {
	out := make([]ledger.Record, len(amounts))
	for i, a := range amounts {
		out[i] = ledger.NewRecord(fmt.Sprintf("P-%d", i), baseDate, a)
	}
	return out
}

func target(amount int64) ledger.Record {
	return ledger.NewRecord("T", baseDate, amount)
}

func amounts(rs []ledger.Record) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.Amount
	}
	return out
}

func TestFindSubset_SizeAscendingIndexAscending(t *testing.T) {
	s := NewSolver(DefaultConfig())

	subset, err := s.FindSubset(context.Background(), target(10), records(3, 4, 5, 5), nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{5, 5}, amounts(subset))
}

func TestFindSubset_SmallestSizeWins(t *testing.T) {
	s := NewSolver(DefaultConfig())
	pool := records(1, 2, 3, 4, 5, 6)

	subset, err := s.FindSubset(context.Background(), target(6), pool, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{6}, amounts(subset))
}

func TestFindSubset_FirstMatchWithinSize(t *testing.T) {
	s := NewSolver(DefaultConfig())

	subset, err := s.FindSubset(context.Background(), target(6), records(1, 2, 3, 4, 5), nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 5}, amounts(subset), "(1,5) precedes (2,4) in index order")
}

func TestFindSubset_NoMatch(t *testing.T) {
	s := NewSolver(DefaultConfig())

	subset, err := s.FindSubset(context.Background(), target(100), records(1, 2, 3), nil)
	require.NoError(t, err)
	assert.Nil(t, subset)
}

func TestFindSubset_FiltersRecordsAboveTarget(t *testing.T) {
	s := NewSolver(DefaultConfig())
	// 11 alone would never be eligible; 7+3 is the only way to 10
	pool := records(11, 7, 20, 3, 1)

	subset, err := s.FindSubset(context.Background(), target(10), pool, nil)
	require.NoError(t, err)

	for _, r := range subset {
		assert.LessOrEqual(t, r.Amount, int64(10))
	}
	assert.Equal(t, []int64{7, 3}, amounts(subset))
}

func TestFindSubset_FullPoolNeverTriedByDefault(t *testing.T) {
	tests := []struct {
		name   string
		pool   []ledger.Record
		target int64
	}{
		{name: "single eligible record equal to target", pool: records(5), target: 5},
		{name: "two records summing to target", pool: records(2, 3), target: 5},
		{name: "all eligible records needed", pool: records(1, 2, 4, 50), target: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subset, err := NewSolver(DefaultConfig()).FindSubset(context.Background(), target(tt.target), tt.pool, nil)
			require.NoError(t, err)
			assert.Nil(t, subset)

			full := NewSolver(Config{IncludeFullPool: true})
			subset, err = full.FindSubset(context.Background(), target(tt.target), tt.pool, nil)
			require.NoError(t, err)
			require.NotNil(t, subset)
		})
	}
}

func TestFindSubset_ZeroTarget(t *testing.T) {
	s := NewSolver(DefaultConfig())

	subset, err := s.FindSubset(context.Background(), target(0), records(0, 0, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, amounts(subset))
}

func TestFindSubset_NegativeAmountIsAnError(t *testing.T) {
	s := NewSolver(DefaultConfig())

	_, err := s.FindSubset(context.Background(), target(5), records(1, -2, 3), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrNegativeAmount))

	_, err = s.FindSubset(context.Background(), target(-5), records(1), nil)
	assert.True(t, errors.Is(err, ledger.ErrNegativeAmount))
}

func TestFindSubset_ReportsProgressAgainstPowerOfTwo(t *testing.T) {
	s := NewSolver(DefaultConfig())
	var got []float64

	// 4 eligible records, no match: sizes 1..3 give 4+6+4 = 14 combinations over 2^4
	_, err := s.FindSubset(context.Background(), target(1000), records(1, 2, 3, 4), func(f float64) {
		got = append(got, f)
	})
	require.NoError(t, err)

	require.Len(t, got, 14)
	assert.InDelta(t, 14.0/16.0, got[len(got)-1], 1e-9)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
}

func TestFindSubset_ExactProgressReachesOne(t *testing.T) {
	s := NewSolver(Config{ExactProgress: true})
	var last float64

	_, err := s.FindSubset(context.Background(), target(1000), records(1, 2, 3, 4), func(f float64) {
		last = f
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, last, 1e-9)
}

func TestSearch_ReturnsPoolIndices(t *testing.T) {
	s := NewSolver(DefaultConfig())
	pool := records(50, 4, 60, 6, 1)

	match, err := s.Search(context.Background(), target(10), pool, nil)
	require.NoError(t, err)
	require.NotNil(t, match)

	assert.Equal(t, []int{1, 3}, match.Indices)
	assert.Equal(t, []int64{4, 6}, amounts(match.Records))
}

func TestSearch_HonoursCancelledContext(t *testing.T) {
	s := NewSolver(DefaultConfig())
	pool := make([]ledger.Record, 24)
	for i := range pool {
		pool[i] = ledger.NewRecord("P", baseDate, int64(i+1))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, target(1_000_000), pool, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchSpace(t *testing.T) {
	assert.Equal(t, float64(16), NewSolver(DefaultConfig()).SearchSpace(4))
	assert.Equal(t, float64(14), NewSolver(Config{ExactProgress: true}).SearchSpace(4))
	assert.Equal(t, float64(15), NewSolver(Config{ExactProgress: true, IncludeFullPool: true}).SearchSpace(4))
	assert.Equal(t, float64(0), NewSolver(Config{ExactProgress: true}).SearchSpace(1))
}

func TestNextCombination_Lexicographic(t *testing.T) {
	idx := []int{0, 1}
	var seen [][]int
	for {
		seen = append(seen, append([]int(nil), idx...))
		if !nextCombination(idx, 4) {
			break
		}
	}
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, seen)
}

func TestFindSubset_LargeAmountsDoNotOverflow(t *testing.T) {
	s := NewSolver(DefaultConfig())
	a := int64(math.MaxInt64 - 2)

	// 7+a+a+a wraps to MaxInt64-1 in int64 arithmetic
	subset, err := s.FindSubset(context.Background(), target(math.MaxInt64-1), records(1000, 7, a, a, a), nil)
	require.NoError(t, err)
	assert.Nil(t, subset)

	subset, err = s.FindSubset(context.Background(), target(math.MaxInt64), records(math.MaxInt64-5, 5, 9), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{math.MaxInt64 - 5, 5}, amounts(subset))
}
