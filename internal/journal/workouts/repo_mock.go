package workouts

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/2beens/dayjournal/internal/journal"
)

type repoMock struct {
	mu       sync.Mutex
	workouts map[string]map[journal.DateKey]Workout

	// when set, the next Save calls fail with this error
	saveErr   error
	saveCount int
}

func NewMockWorkoutsRepo() *repoMock {
	return &repoMock{
		workouts: make(map[string]map[journal.DateKey]Workout),
	}
}

func (r *repoMock) Get(_ context.Context, userID string, date journal.DateKey) (*Workout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workouts[userID][date]
	if !ok {
		return nil, ErrWorkoutNotFound
	}
	wCopy := w.Copy()
	return &wCopy, nil
}

func (r *repoMock) Save(_ context.Context, userID string, workout Workout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCount++
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.workouts[userID] == nil {
		r.workouts[userID] = make(map[journal.DateKey]Workout)
	}
	r.workouts[userID][workout.Date] = workout.Copy()
	return nil
}

func (r *repoMock) GetRange(_ context.Context, userID string, from, to journal.DateKey) ([]Workout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	workouts := make([]Workout, 0)
	for date, w := range r.workouts[userID] {
		if date < from || date > to {
			continue
		}
		workouts = append(workouts, w.Copy())
	}
	sort.Slice(workouts, func(i, j int) bool {
		return workouts[i].Date < workouts[j].Date
	})
	return workouts, nil
}

func (r *repoMock) ExerciseNames(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nameSet := make(map[string]struct{})
	for _, w := range r.workouts[userID] {
		for _, ex := range w.Exercises {
			if ex.Name != "" {
				nameSet[ex.Name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names, nil
}

func (r *repoMock) setSaveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

func (r *repoMock) saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveCount
}

func (r *repoMock) stored(userID string, date journal.DateKey) (Workout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workouts[userID][date]
	return w, ok
}
