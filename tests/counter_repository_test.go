// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"sync"
	"testing"
	"time"

	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/repository"
	testingutil "github.com/sitearc/docnum/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCounterKey(projectID uint, scope string) models.CounterKey {
	return models.CounterKey{
		ProjectID:       projectID,
		OriginatorOrgID: 1,
		RecipientOrgID:  2,
		TypeID:          1,
		ResetScope:      scope,
	}
}

func TestCounterRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCounterRepository(testDB.DB, repository.DefaultCounterRetryPolicy())
		ctx := testingutil.CreateTestContext()

		t.Run("IncrementCreatesCounterAtOne", func(t *testing.T) {
			key := testCounterKey(10, models.YearScope(2025))

			inc, err := repo.Increment(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 1, inc.Sequence)
			assert.Zero(t, inc.Retries)
		})

		t.Run("IncrementIsMonotonic", func(t *testing.T) {
			key := testCounterKey(11, models.YearScope(2025))

			for want := 1; want <= 5; want++ {
				inc, err := repo.Increment(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, want, inc.Sequence)
			}
		})

		t.Run("ScopesAreIndependent", func(t *testing.T) {
			key2025 := testCounterKey(12, models.YearScope(2025))
			key2026 := testCounterKey(12, models.YearScope(2026))
			keyNone := testCounterKey(12, models.ResetScopeNone)

			for i := 0; i < 3; i++ {
				_, err := repo.Increment(ctx, key2025)
				require.NoError(t, err)
			}

			inc, err := repo.Increment(ctx, key2026)
			require.NoError(t, err)
			assert.Equal(t, 1, inc.Sequence)

			inc, err = repo.Increment(ctx, keyNone)
			require.NoError(t, err)
			assert.Equal(t, 1, inc.Sequence)
		})

		t.Run("PeekCurrent", func(t *testing.T) {
			key := testCounterKey(13, models.ResetScopeNone)

			current, err := repo.PeekCurrent(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 0, current)

			_, err = repo.Increment(ctx, key)
			require.NoError(t, err)
			_, err = repo.Increment(ctx, key)
			require.NoError(t, err)

			current, err = repo.PeekCurrent(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 2, current)
		})

		t.Run("ForceSet", func(t *testing.T) {
			key := testCounterKey(14, models.ResetScopeNone)

			// Force-set creates the row when absent
			require.NoError(t, repo.ForceSet(ctx, key, 500))

			counter, err := repo.ByKey(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, counter)
			assert.Equal(t, 500, counter.LastNumber)

			versionBefore := counter.Version

			// Force-set on an existing row bumps the version
			require.NoError(t, repo.ForceSet(ctx, key, 42))
			counter, err = repo.ByKey(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 42, counter.LastNumber)
			assert.Greater(t, counter.Version, versionBefore)

			// The next increment continues from the forced value
			inc, err := repo.Increment(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 43, inc.Sequence)
		})

		t.Run("ForceSetRejectsNegative", func(t *testing.T) {
			key := testCounterKey(15, models.ResetScopeNone)
			assert.Error(t, repo.ForceSet(ctx, key, -1))
		})

		t.Run("BulkImport", func(t *testing.T) {
			entries := []repository.CounterImportEntry{
				{Key: testCounterKey(16, models.YearScope(2024)), LastNumber: 120},
				{Key: testCounterKey(16, models.YearScope(2025)), LastNumber: 37},
				{Key: testCounterKey(17, models.ResetScopeNone), LastNumber: 9000},
			}
			require.NoError(t, repo.BulkImport(ctx, entries))

			for _, entry := range entries {
				counter, err := repo.ByKey(ctx, entry.Key)
				require.NoError(t, err)
				require.NotNil(t, counter)
				assert.Equal(t, entry.LastNumber, counter.LastNumber)
			}

			inc, err := repo.Increment(ctx, entries[1].Key)
			require.NoError(t, err)
			assert.Equal(t, 38, inc.Sequence)
		})

		t.Run("ListByProject", func(t *testing.T) {
			key := testCounterKey(18, models.YearScope(2025))
			_, err := repo.Increment(ctx, key)
			require.NoError(t, err)

			counters, err := repo.ListByProject(ctx, 18)
			require.NoError(t, err)
			require.Len(t, counters, 1)
			assert.Equal(t, key, counters[0].CounterKey)
		})

		t.Run("ByKeyNotFound", func(t *testing.T) {
			counter, err := repo.ByKey(ctx, testCounterKey(999, models.ResetScopeNone))
			require.NoError(t, err)
			assert.Nil(t, counter)
		})

		return nil
	})
	require.NoError(t, err)
}

// TestCounterRepositoryConcurrency drives parallel increments against one
// counter and checks that every goroutine received a distinct sequence with
// no gaps and no duplicates.
func TestCounterRepositoryConcurrency(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		// Generous retry budget: the point here is uniqueness, not contention
		// failure behavior.
		repo := repository.NewCounterRepository(testDB.DB, repository.CounterRetryPolicy{
			MaxRetries: 50,
			Backoff:    5 * time.Millisecond,
			Jitter:     5 * time.Millisecond,
		})
		ctx := testingutil.CreateTestContext()
		key := testCounterKey(20, models.YearScope(2025))

		const workers = 20

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			sequences = make(map[int]int)
		)
		errs := make(chan error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				inc, err := repo.Increment(ctx, key)
				if err != nil {
					errs <- err
					return
				}
				mu.Lock()
				sequences[inc.Sequence]++
				mu.Unlock()
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		assert.Len(t, sequences, workers)
		for seq := 1; seq <= workers; seq++ {
			assert.Equal(t, 1, sequences[seq], "sequence %d issued %d times", seq, sequences[seq])
		}

		current, err := repo.PeekCurrent(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, workers, current)

		return nil
	})
	require.NoError(t, err)
}

// TestForceSetInvalidatesInFlightCAS verifies that an administrative
// force-set bumps the version so the counter's optimistic writers cannot
// overwrite it with a stale value.
func TestForceSetInvalidatesInFlightCAS(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCounterRepository(testDB.DB, repository.DefaultCounterRetryPolicy())
		ctx := testingutil.CreateTestContext()
		key := testCounterKey(21, models.ResetScopeNone)

		_, err := repo.Increment(ctx, key)
		require.NoError(t, err)

		before, err := repo.ByKey(ctx, key)
		require.NoError(t, err)

		require.NoError(t, repo.ForceSet(ctx, key, 100))

		after, err := repo.ByKey(ctx, key)
		require.NoError(t, err)
		assert.Greater(t, after.Version, before.Version)

		// An increment after the override continues from the new value; the
		// stale version can no longer win a conditional write.
		inc, err := repo.Increment(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 101, inc.Sequence)

		return nil
	})
	require.NoError(t, err)
}
