//go:build integration_test || all_tests

package nutrition

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/dayjournal/internal/db"
	"github.com/2beens/dayjournal/internal/journal"
)

func deleteAll(ctx context.Context, repo *Repo) (int64, error) {
	tag, err := repo.db.Exec(ctx, `DELETE FROM nutrition`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func testRepoSetup(t *testing.T) (*Repo, func()) {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	t.Logf("using postgres host: %s", host)

	dbPool, err := db.NewDBPool(timeoutCtx, db.NewDBPoolParams{
		DBHost:         host,
		DBPort:         "5432",
		DBName:         "dayjournal",
		TracingEnabled: false,
	})
	require.NoError(t, err)
	require.NoError(t, db.EnsureJournalTables(timeoutCtx, dbPool))

	return NewRepo(dbPool, nil), func() {
		dbPool.Close()
	}
}

func TestRepo_SaveAndGet(t *testing.T) {
	repo, shutdown := testRepoSetup(t)
	defer shutdown()

	ctx := context.Background()
	deleted, err := deleteAll(ctx, repo)
	require.NoError(t, err)
	t.Logf("test setup, deleted nutrition days: %d", deleted)

	date := journal.DateKey("2024-05-02")
	_, err = repo.Get(ctx, "user-1", date)
	require.ErrorIs(t, err, ErrDayNotFound)

	day := NewDay(date, 150)
	day.AddFood(FoodEntry{Name: "Eggs", Quantity: "4", Protein: 24, Calories: fptr(280)})
	day.AddFood(FoodEntry{Name: "Oats", Quantity: "80g", Protein: 10, Calories: fptr(230)})
	day.AIRecommendations = []string{"add a protein shake"}
	require.NoError(t, repo.Save(ctx, "user-1", *day))

	stored, err := repo.Get(ctx, "user-1", date)
	require.NoError(t, err)
	assert.Equal(t, float64(150), stored.ProteinGoal)
	require.Len(t, stored.Foods, 2)
	assert.Equal(t, float64(34), stored.TotalProtein)
	assert.Equal(t, float64(510), stored.TotalCalories)
	assert.Equal(t, []string{"add a protein shake"}, stored.AIRecommendations)

	// second save for the same day updates the one row
	day.RemoveFood(day.Foods[0].ID)
	require.NoError(t, repo.Save(ctx, "user-1", *day))
	stored, err = repo.Get(ctx, "user-1", date)
	require.NoError(t, err)
	require.Len(t, stored.Foods, 1)
	assert.Equal(t, float64(10), stored.TotalProtein)
}

func TestRepo_FoodNames(t *testing.T) {
	repo, shutdown := testRepoSetup(t)
	defer shutdown()

	ctx := context.Background()
	_, err := deleteAll(ctx, repo)
	require.NoError(t, err)

	day1 := NewDay("2024-05-01", 150)
	day1.AddFood(FoodEntry{Name: "Oats", Protein: 10})
	day1.AddFood(FoodEntry{Name: "eggs", Protein: 24})
	day2 := NewDay("2024-05-02", 150)
	day2.AddFood(FoodEntry{Name: "Chicken", Protein: 40})
	day2.AddFood(FoodEntry{Name: "Oats", Protein: 10})
	require.NoError(t, repo.Save(ctx, "user-1", *day1))
	require.NoError(t, repo.Save(ctx, "user-1", *day2))

	names, err := repo.FoodNames(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Chicken", "eggs", "Oats"}, names)
}

func TestRepo_ConcurrentFirstSave(t *testing.T) {
	repo, shutdown := testRepoSetup(t)
	defer shutdown()

	ctx := context.Background()
	_, err := deleteAll(ctx, repo)
	require.NoError(t, err)

	date := journal.DateKey("2024-05-02")
	d1 := NewDay(date, 150)
	d1.AddFood(FoodEntry{Name: "Eggs", Protein: 24})
	d2 := NewDay(date, 150)
	d2.AddFood(FoodEntry{Name: "Oats", Protein: 10})

	errs := make(chan error, 2)
	go func() { errs <- repo.Save(ctx, "user-1", *d1) }()
	go func() { errs <- repo.Save(ctx, "user-1", *d2) }()
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	stored, err := repo.Get(ctx, "user-1", date)
	require.NoError(t, err)
	require.Len(t, stored.Foods, 1)
	name := stored.Foods[0].Name
	assert.True(t, name == "Eggs" || name == "Oats")
}
