package workouts

import "strings"

// cardioKeywords marks an exercise as cardio when its normalized name
// equals or contains one of these. Deliberately permissive: "erg" also
// catches "rowing machine erg" and similar compound names. "row" alone
// is NOT here, so that barbell/dumbbell rows stay strength.
var cardioKeywords = []string{
	"run", "running", "jog", "jogging", "sprint", "sprints",
	"cycling", "cycle", "bike", "biking",
	"swimming", "swim",
	"rowing", "erg",
	"elliptical",
	"stair climber", "stairmaster", "stairs",
	"jump rope", "skipping",
	"walking", "walk",
	"hiking", "hike",
	"treadmill",
}

// ClassifyExercise maps a free-text exercise name to strength or
// cardio. Pure and deterministic; anything not matching a cardio
// keyword is strength.
func ClassifyExercise(name string) ExerciseType {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, kw := range cardioKeywords {
		if normalized == kw || strings.Contains(normalized, kw) {
			return TypeCardio
		}
	}
	return TypeStrength
}
