package workouts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyExercise_Cardio(t *testing.T) {
	for _, name := range []string{
		"Running",
		"running",
		"5 mile run",
		"  treadmill  ",
		"Rowing Machine",
		"Erg",
		"Jump Rope",
		"morning hike",
		"Stair Climber",
		"BIKE",
	} {
		assert.Equal(t, TypeCardio, ClassifyExercise(name), "name: %s", name)
	}
}

func TestClassifyExercise_Strength(t *testing.T) {
	for _, name := range []string{
		"Barbell Row",
		"Dumbbell Row",
		"Bench Press",
		"Squat",
		"Deadlift",
		"Lat Pulldown",
		"",
	} {
		assert.Equal(t, TypeStrength, ClassifyExercise(name), "name: %s", name)
	}
}

func TestClassifyExercise_Deterministic(t *testing.T) {
	first := ClassifyExercise("Rowing Machine")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClassifyExercise("Rowing Machine"))
	}
}
