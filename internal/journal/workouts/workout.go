package workouts

import (
	"time"

	"github.com/google/uuid"

	"github.com/2beens/dayjournal/internal/journal"
)

type ExerciseType string

const (
	TypeStrength ExerciseType = "strength"
	TypeCardio   ExerciseType = "cardio"
)

// Set is a tagged union keyed by the owning Exercise's type: a strength
// set uses Reps/Weight, a cardio set uses Distance/Time.
type Set struct {
	Reps     int     `json:"reps,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	Distance float64 `json:"distance,omitempty"` // miles
	Time     float64 `json:"time,omitempty"`     // minutes
}

type Exercise struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Type      ExerciseType `json:"type"`
	Sets      []Set        `json:"sets"`
	Completed bool         `json:"completed"`
}

type Workout struct {
	ID        string          `json:"id"`
	Date      journal.DateKey `json:"date"`
	Notes     string          `json:"notes,omitempty"`
	Exercises []Exercise      `json:"exercises"`
	CreatedAt time.Time       `json:"createdAt,omitempty"`
}

func NewWorkout(date journal.DateKey) *Workout {
	return &Workout{
		ID:        uuid.NewString(),
		Date:      date,
		Exercises: []Exercise{},
		CreatedAt: time.Now(),
	}
}

func defaultSet(exType ExerciseType) Set {
	// zeroed set of the correct shape; both variants zero out to the
	// same empty struct, the shape matters once values get filled in
	return Set{}
}

// Copy returns a deep copy, so snapshots handed to the persistence
// layer never alias the live in-memory record.
func (w *Workout) Copy() Workout {
	cp := *w
	cp.Exercises = make([]Exercise, len(w.Exercises))
	for i, ex := range w.Exercises {
		exCp := ex
		exCp.Sets = make([]Set, len(ex.Sets))
		copy(exCp.Sets, ex.Sets)
		cp.Exercises[i] = exCp
	}
	return cp
}

// AddExercise classifies the exercise type from its name and seeds it
// with a single default set of the matching shape.
func (w *Workout) AddExercise(name string) *Exercise {
	exType := ClassifyExercise(name)
	w.Exercises = append(w.Exercises, Exercise{
		ID:   uuid.NewString(),
		Name: name,
		Type: exType,
		Sets: []Set{defaultSet(exType)},
	})
	return &w.Exercises[len(w.Exercises)-1]
}

// RemoveExercise is a no-op for an unknown id.
func (w *Workout) RemoveExercise(exerciseID string) {
	for i, ex := range w.Exercises {
		if ex.ID == exerciseID {
			w.Exercises = append(w.Exercises[:i], w.Exercises[i+1:]...)
			return
		}
	}
}

type ExerciseUpdate struct {
	Name      *string       `json:"name,omitempty"`
	Type      *ExerciseType `json:"type,omitempty"`
	Completed *bool         `json:"completed,omitempty"`
}

// UpdateExercise applies the non-nil fields of the update to the
// exercise with the given id. Unknown ids are ignored.
func (w *Workout) UpdateExercise(exerciseID string, update ExerciseUpdate) {
	ex := w.findExercise(exerciseID)
	if ex == nil {
		return
	}
	if update.Name != nil {
		ex.Name = *update.Name
	}
	if update.Type != nil {
		ex.Type = *update.Type
	}
	if update.Completed != nil {
		ex.Completed = *update.Completed
	}
}

// UpdateSet replaces the set at setIndex of the given exercise.
// Unknown ids and out-of-range indexes are ignored.
func (w *Workout) UpdateSet(exerciseID string, setIndex int, set Set) {
	ex := w.findExercise(exerciseID)
	if ex == nil {
		return
	}
	if setIndex < 0 || setIndex >= len(ex.Sets) {
		return
	}
	ex.Sets[setIndex] = set
}

// AddSet appends a new set, cloning the last existing set's values as
// a starting point (a zeroed default if the exercise has none).
func (w *Workout) AddSet(exerciseID string) {
	ex := w.findExercise(exerciseID)
	if ex == nil {
		return
	}
	newSet := defaultSet(ex.Type)
	if len(ex.Sets) > 0 {
		newSet = ex.Sets[len(ex.Sets)-1]
	}
	ex.Sets = append(ex.Sets, newSet)
}

// RemoveSet removes the set at setIndex, but never leaves an exercise
// with zero sets: removing the last one replaces it with a zeroed
// default instead.
func (w *Workout) RemoveSet(exerciseID string, setIndex int) {
	ex := w.findExercise(exerciseID)
	if ex == nil {
		return
	}
	if setIndex < 0 || setIndex >= len(ex.Sets) {
		return
	}
	ex.Sets = append(ex.Sets[:setIndex], ex.Sets[setIndex+1:]...)
	if len(ex.Sets) == 0 {
		ex.Sets = []Set{defaultSet(ex.Type)}
	}
}

// ReorderExercises moves the exercise at fromIndex to toIndex; all
// other exercises keep their relative order. Out-of-range indexes are
// ignored.
func (w *Workout) ReorderExercises(fromIndex, toIndex int) {
	if fromIndex < 0 || fromIndex >= len(w.Exercises) {
		return
	}
	if toIndex < 0 || toIndex >= len(w.Exercises) {
		return
	}
	if fromIndex == toIndex {
		return
	}
	moved := w.Exercises[fromIndex]
	w.Exercises = append(w.Exercises[:fromIndex], w.Exercises[fromIndex+1:]...)
	w.Exercises = append(w.Exercises, Exercise{})
	copy(w.Exercises[toIndex+1:], w.Exercises[toIndex:])
	w.Exercises[toIndex] = moved
}

// ImportExercises clones exercises from another day into this one:
// each clone gets a fresh id, completed reset to false, and deep-copied
// sets so the source day's record is never aliased.
func (w *Workout) ImportExercises(source []Exercise) {
	for _, ex := range source {
		cloned := ex
		cloned.ID = uuid.NewString()
		cloned.Completed = false
		cloned.Sets = make([]Set, len(ex.Sets))
		copy(cloned.Sets, ex.Sets)
		w.Exercises = append(w.Exercises, cloned)
	}
}

// Backfill defaults fields that records saved before those fields
// existed are missing: the exercise type (classified from the name).
// An explicitly stored type is never overwritten.
func (w *Workout) Backfill() {
	for i := range w.Exercises {
		if w.Exercises[i].Type == "" {
			w.Exercises[i].Type = ClassifyExercise(w.Exercises[i].Name)
		}
		if w.Exercises[i].Sets == nil {
			w.Exercises[i].Sets = []Set{defaultSet(w.Exercises[i].Type)}
		}
	}
	if w.Exercises == nil {
		w.Exercises = []Exercise{}
	}
}

func (w *Workout) findExercise(exerciseID string) *Exercise {
	for i := range w.Exercises {
		if w.Exercises[i].ID == exerciseID {
			return &w.Exercises[i]
		}
	}
	return nil
}
