package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func sampleResults() []ledger.MatchResult {
	return []ledger.MatchResult{
		{
			Target: ledger.NewRecord("T1", day(1), 10),
			Subset: []ledger.Record{
				ledger.NewRecord("20240301-a", day(1), 4),
				ledger.NewRecord("20240302-b", day(2), 6),
			},
		},
		{Target: ledger.NewRecord("T2", day(3), 99)},
	}
}

// repositories runs each test against both the SQLite store and the mock
func repositories(t *testing.T) map[string]Repository {
	tmpDB := createTempDB(t)
	t.Cleanup(func() { os.Remove(tmpDB) })

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return map[string]Repository{
		"sqlite": store,
		"mock":   NewMockRepository(),
	}
}

func TestRepository_StartAndGetRun(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			run := &Run{ID: "run-1", Source: "csv", TargetCount: 2, PoolCount: 5}
			require.NoError(t, repo.StartRun(run))

			got, err := repo.GetRun("run-1")
			require.NoError(t, err)
			assert.Equal(t, "csv", got.Source)
			assert.Equal(t, 2, got.TargetCount)
			assert.Equal(t, 5, got.PoolCount)
			assert.Equal(t, StatusRunning, got.Status)
			assert.Nil(t, got.CompletedAt)
			assert.False(t, got.StartedAt.IsZero())
			assert.Zero(t, got.Duration())
		})
	}
}

func TestRepository_CompleteRun(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.StartRun(&Run{ID: "run-1", TargetCount: 2}))
			require.NoError(t, repo.CompleteRun("run-1", sampleResults()))

			run, err := repo.GetRun("run-1")
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, run.Status)
			assert.Equal(t, 1, run.MatchedCount)
			assert.Equal(t, 1, run.UnmatchedCount)
			require.NotNil(t, run.CompletedAt)

			results, err := repo.GetResults("run-1")
			require.NoError(t, err)
			require.Len(t, results, 2)

			assert.True(t, results[0].Target.Equal(ledger.NewRecord("T1", day(1), 10)))
			require.Len(t, results[0].Subset, 2)
			assert.True(t, results[0].Subset[1].Equal(ledger.NewRecord("20240302-b", day(2), 6)))
			assert.Equal(t, int64(10), results[0].Sum())

			assert.Equal(t, "T2", results[1].Target.Label)
			assert.False(t, results[1].Matched())
		})
	}
}

func TestRepository_FailRun(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.StartRun(&Run{ID: "run-1"}))
			require.NoError(t, repo.FailRun("run-1", StatusCancelled, "stopped by user"))

			run, err := repo.GetRun("run-1")
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, run.Status)
			assert.Equal(t, "stopped by user", run.ErrorMessage)
			assert.NotNil(t, run.CompletedAt)

			err = repo.FailRun("run-1", StatusCompleted, "")
			assert.ErrorIs(t, err, ErrInvalidStatus)
		})
	}
}

func TestRepository_UnknownRun(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.GetRun("missing")
			assert.ErrorIs(t, err, ErrRunNotFound)

			_, err = repo.GetResults("missing")
			assert.ErrorIs(t, err, ErrRunNotFound)

			assert.ErrorIs(t, repo.CompleteRun("missing", sampleResults()), ErrRunNotFound)
			assert.ErrorIs(t, repo.FailRun("missing", StatusFailed, "boom"), ErrRunNotFound)
		})
	}
}

func TestRepository_ListRuns(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			for i, id := range []string{"a", "b", "c"} {
				require.NoError(t, repo.StartRun(&Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute)}))
			}

			runs, err := repo.ListRuns(2)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "c", runs[0].ID, "newest first")
			assert.Equal(t, "b", runs[1].ID)

			all, err := repo.ListRuns(0)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestStorage_StartRunRequiresID(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.StartRun(&Run{}))
}

func TestMockRepository_ErrorInjection(t *testing.T) {
	repo := NewMockRepository()
	repo.StartRunErr = assert.AnError

	err := repo.StartRun(&Run{ID: "x"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, repo.StartRunCalled)
}
