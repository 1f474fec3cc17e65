package workouts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/dayjournal/internal/journal"
)

func TestWorkout_AddExercise(t *testing.T) {
	w := NewWorkout(journal.DateKey("2024-05-01"))

	bench := w.AddExercise("Bench Press")
	require.NotNil(t, bench)
	assert.NotEmpty(t, bench.ID)
	assert.Equal(t, TypeStrength, bench.Type)
	assert.Len(t, bench.Sets, 1)
	assert.False(t, bench.Completed)

	run := w.AddExercise("5 mile run")
	assert.Equal(t, TypeCardio, run.Type)
	assert.Len(t, run.Sets, 1)

	assert.Len(t, w.Exercises, 2)
	assert.NotEqual(t, w.Exercises[0].ID, w.Exercises[1].ID)
}

func TestWorkout_RemoveExercise(t *testing.T) {
	w := NewWorkout(journal.DateKey("2024-05-01"))
	ex := w.AddExercise("Squat")
	w.AddExercise("Deadlift")

	w.RemoveExercise(ex.ID)
	require.Len(t, w.Exercises, 1)
	assert.Equal(t, "Deadlift", w.Exercises[0].Name)

	// unknown id: no-op, no panic
	w.RemoveExercise("no-such-id")
	assert.Len(t, w.Exercises, 1)
}

func TestWorkout_UpdateExercise(t *testing.T) {
	w := NewWorkout(journal.DateKey("2024-05-01"))
	ex := w.AddExercise("Squat")

	newName := "Front Squat"
	completed := true
	w.UpdateExercise(ex.ID, ExerciseUpdate{Name: &newName, Completed: &completed})

	assert.Equal(t, "Front Squat", w.Exercises[0].Name)
	assert.True(t, w.Exercises[0].Completed)
	// type untouched
	assert.Equal(t, TypeStrength, w.Exercises[0].Type)

	w.UpdateExercise("unknown", ExerciseUpdate{Name: &newName})
	assert.Len(t, w.Exercises, 1)
}

func TestWorkout_SetOperations(t *testing.T) {
	w := NewWorkout(journal.DateKey("2024-05-01"))
	ex := w.AddExercise("Bench Press")

	w.UpdateSet(ex.ID, 0, Set{Reps: 10, Weight: 60})
	assert.Equal(t, Set{Reps: 10, Weight: 60}, w.Exercises[0].Sets[0])

	// new set clones the last one's values
	w.AddSet(ex.ID)
	require.Len(t, w.Exercises[0].Sets, 2)
	assert.Equal(t, Set{Reps: 10, Weight: 60}, w.Exercises[0].Sets[1])

	// out of range updates are ignored
	w.UpdateSet(ex.ID, 5, Set{Reps: 1})
	w.UpdateSet(ex.ID, -1, Set{Reps: 1})
	assert.Len(t, w.Exercises[0].Sets, 2)

	w.RemoveSet(ex.ID, 0)
	require.Len(t, w.Exercises[0].Sets, 1)
	assert.Equal(t, Set{Reps: 10, Weight: 60}, w.Exercises[0].Sets[0])
}

// removing the last remaining set replaces it with a zeroed default
// instead of leaving the exercise with zero sets
func TestWorkout_RemoveSet_NeverEmpty(t *testing.T) {
	w := NewWorkout(journal.DateKey("2024-05-01"))
	ex := w.AddExercise("Squat")
	w.UpdateSet(ex.ID, 0, Set{Reps: 5, Weight: 100})

	for i := 0; i < 5; i++ {
		w.RemoveSet(ex.ID, 0)
		require.GreaterOrEqual(t, len(w.Exercises[0].Sets), 1)
	}
	assert.Equal(t, Set{}, w.Exercises[0].Sets[0])
}

func TestWorkout_ReorderExercises(t *testing.T) {
	w := NewWorkout(journal.DateKey("2024-05-01"))
	for _, name := range []string{"e0", "e1", "e2", "e3", "e4"} {
		w.AddExercise(name)
	}

	w.ReorderExercises(2, 0)

	var names []string
	for _, ex := range w.Exercises {
		names = append(names, ex.Name)
	}
	assert.Equal(t, []string{"e2", "e0", "e1", "e3", "e4"}, names)

	// out of range moves are ignored
	w.ReorderExercises(-1, 2)
	w.ReorderExercises(0, 9)
	assert.Len(t, w.Exercises, 5)
	assert.Equal(t, "e2", w.Exercises[0].Name)
}

func TestWorkout_ImportExercises(t *testing.T) {
	source := NewWorkout(journal.DateKey("2024-04-30"))
	ex := source.AddExercise("Bench Press")
	source.UpdateSet(ex.ID, 0, Set{Reps: 8, Weight: 80})
	completed := true
	source.UpdateExercise(ex.ID, ExerciseUpdate{Completed: &completed})

	w := NewWorkout(journal.DateKey("2024-05-01"))
	w.ImportExercises(source.Exercises)

	require.Len(t, w.Exercises, 1)
	imported := w.Exercises[0]
	assert.NotEqual(t, ex.ID, imported.ID)
	assert.False(t, imported.Completed)
	assert.Equal(t, Set{Reps: 8, Weight: 80}, imported.Sets[0])

	// sets are deep copies, the source day is never aliased
	w.UpdateSet(imported.ID, 0, Set{Reps: 1, Weight: 1})
	assert.Equal(t, Set{Reps: 8, Weight: 80}, source.Exercises[0].Sets[0])
}

func TestWorkout_Backfill(t *testing.T) {
	w := &Workout{
		Date: journal.DateKey("2024-05-01"),
		Exercises: []Exercise{
			{ID: "a", Name: "Rowing Machine"},
			{ID: "b", Name: "Barbell Row", Sets: []Set{{Reps: 10}}},
			{ID: "c", Name: "Deadlift", Type: TypeCardio, Sets: []Set{{}}}, // wrong but explicit
		},
	}

	w.Backfill()

	assert.Equal(t, TypeCardio, w.Exercises[0].Type)
	assert.Len(t, w.Exercises[0].Sets, 1)
	assert.Equal(t, TypeStrength, w.Exercises[1].Type)
	// explicitly stored type is never overwritten by the backfill
	assert.Equal(t, TypeCardio, w.Exercises[2].Type)
}

func TestWorkout_Copy(t *testing.T) {
	w := NewWorkout(journal.DateKey("2024-05-01"))
	ex := w.AddExercise("Squat")
	w.UpdateSet(ex.ID, 0, Set{Reps: 5, Weight: 120})

	snapshot := w.Copy()
	w.UpdateSet(ex.ID, 0, Set{Reps: 3, Weight: 140})
	w.AddExercise("Deadlift")

	require.Len(t, snapshot.Exercises, 1)
	assert.Equal(t, Set{Reps: 5, Weight: 120}, snapshot.Exercises[0].Sets[0])
}
