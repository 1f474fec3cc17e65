package workouts

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/2beens/dayjournal/internal/journal"
	"github.com/2beens/dayjournal/internal/journal/autosave"
	"github.com/2beens/dayjournal/internal/telemetry/metrics"
)

const saveRecordLabel = "workout"

type trackerRepo interface {
	Get(ctx context.Context, userID string, date journal.DateKey) (*Workout, error)
	Save(ctx context.Context, userID string, workout Workout) error
	GetRange(ctx context.Context, userID string, from, to journal.DateKey) ([]Workout, error)
	ExerciseNames(ctx context.Context, userID string) ([]string, error)
}

// Session is one user's workout for one date, held in memory while
// being edited. Mutations go through the session so every change is
// serialized under one mutex and noted with the autosave scheduler.
type Session struct {
	mu        sync.Mutex
	userID    string
	workout   *Workout
	scheduler *autosave.Scheduler
}

// Workout returns a deep-copied snapshot of the current state. The
// caller can hold it as long as it wants, later mutations through the
// session never show up in it.
func (s *Session) Workout() Workout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workout.Copy()
}

func (s *Session) Status() autosave.Status {
	return s.scheduler.Status()
}

func (s *Session) SetNotes(notes string) {
	s.mu.Lock()
	s.workout.Notes = notes
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) AddExercise(name string) Exercise {
	s.mu.Lock()
	added := *s.workout.AddExercise(name)
	s.mu.Unlock()
	s.scheduler.NoteChange()
	return added
}

func (s *Session) RemoveExercise(exerciseID string) {
	s.mu.Lock()
	s.workout.RemoveExercise(exerciseID)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) UpdateExercise(exerciseID string, update ExerciseUpdate) {
	s.mu.Lock()
	s.workout.UpdateExercise(exerciseID, update)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) UpdateSet(exerciseID string, setIndex int, set Set) {
	s.mu.Lock()
	s.workout.UpdateSet(exerciseID, setIndex, set)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) AddSet(exerciseID string) {
	s.mu.Lock()
	s.workout.AddSet(exerciseID)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) RemoveSet(exerciseID string, setIndex int) {
	s.mu.Lock()
	s.workout.RemoveSet(exerciseID, setIndex)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) ReorderExercises(from, to int) {
	s.mu.Lock()
	s.workout.ReorderExercises(from, to)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) ImportExercises(exercises []Exercise) {
	s.mu.Lock()
	s.workout.ImportExercises(exercises)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

// Flush persists any unsaved changes synchronously.
func (s *Session) Flush(ctx context.Context) error {
	return s.scheduler.Flush(ctx)
}

type sessionKey struct {
	userID string
	date   journal.DateKey
}

type TrackerParams struct {
	Repo  trackerRepo
	Instr *metrics.Manager

	// zero values fall back to the autosave defaults
	DebounceWindow   time.Duration
	SavedDisplayTime time.Duration
	ErrorDisplayTime time.Duration
}

// Tracker is the keyed store of active workout sessions. One session
// per (user, date); activating the same key twice returns the same
// session.
type Tracker struct {
	mu       sync.Mutex
	repo     trackerRepo
	instr    *metrics.Manager
	delays   autosave.Params
	sessions map[sessionKey]*Session
}

func NewTracker(params TrackerParams) *Tracker {
	return &Tracker{
		repo:  params.Repo,
		instr: params.Instr,
		delays: autosave.Params{
			DebounceWindow:   params.DebounceWindow,
			SavedDisplayTime: params.SavedDisplayTime,
			ErrorDisplayTime: params.ErrorDisplayTime,
		},
		sessions: make(map[sessionKey]*Session),
	}
}

// Activate returns the session for (user, date), loading the workout
// from the repo when the key is seen for the first time. A date with
// no stored workout starts from a fresh empty one. A load failure is
// logged and also starts empty, so the user can keep journaling while
// the store is unreachable.
func (t *Tracker) Activate(ctx context.Context, userID string, date journal.DateKey) *Session {
	key := sessionKey{userID: userID, date: date}

	t.mu.Lock()
	if session, ok := t.sessions[key]; ok {
		t.mu.Unlock()
		return session
	}
	t.mu.Unlock()

	// load outside the tracker lock, it can take a while
	workout, err := t.repo.Get(ctx, userID, date)
	switch {
	case err == nil:
	case errors.Is(err, ErrWorkoutNotFound):
		workout = NewWorkout(date)
	default:
		log.Errorf("workouts tracker: load [user %s, date %s] failed, starting empty: %s", userID, date, err)
		workout = NewWorkout(date)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// lost the race to another Activate for the same key
	if session, ok := t.sessions[key]; ok {
		return session
	}

	session := &Session{
		userID:  userID,
		workout: workout,
	}
	saveParams := t.delays
	saveParams.Save = func(ctx context.Context) error {
		return t.persist(ctx, session)
	}
	session.scheduler = autosave.NewScheduler(saveParams)

	t.sessions[key] = session
	if t.instr != nil {
		t.instr.GaugeActiveSessions.Inc()
	}
	return session
}

// Session returns the active session for (user, date), or nil when
// that key has not been activated.
func (t *Tracker) Session(userID string, date journal.DateKey) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[sessionKey{userID: userID, date: date}]
}

// Deactivate flushes the session's unsaved changes and drops it from
// the tracker. The flush error is returned but the session is removed
// either way, a broken store must not pin sessions in memory forever.
func (t *Tracker) Deactivate(ctx context.Context, userID string, date journal.DateKey) error {
	key := sessionKey{userID: userID, date: date}

	t.mu.Lock()
	session, ok := t.sessions[key]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.sessions, key)
	if t.instr != nil {
		t.instr.GaugeActiveSessions.Dec()
	}
	t.mu.Unlock()

	flushErr := session.Flush(ctx)
	session.scheduler.Close()
	return flushErr
}

// FlushAll flushes every active session, collecting the errors. Used
// on shutdown so no buffered journal changes are lost.
func (t *Tracker) FlushAll(ctx context.Context) error {
	t.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	var merr error
	for _, s := range sessions {
		if err := s.Flush(ctx); err != nil {
			merr = multierr.Append(merr, err)
		}
	}
	return merr
}

func (t *Tracker) persist(ctx context.Context, session *Session) error {
	snapshot := session.Workout()

	start := time.Now()
	err := t.repo.Save(ctx, session.userID, snapshot)
	if t.instr != nil {
		t.instr.HistDaySaveDuration.Observe(time.Since(start).Seconds())
		t.instr.CounterDaySaves.WithLabelValues(saveRecordLabel).Inc()
		if err != nil {
			t.instr.CounterDaySaveErrors.WithLabelValues(saveRecordLabel).Inc()
		}
	}
	return err
}

// Workouts returns the user's stored workouts between from and to.
// Active sessions are not consulted, range queries read persisted
// state only.
func (t *Tracker) Workouts(ctx context.Context, userID string, from, to journal.DateKey) ([]Workout, error) {
	return t.repo.GetRange(ctx, userID, from, to)
}

// ExerciseNames returns the user's distinct exercise names for
// autocomplete.
func (t *Tracker) ExerciseNames(ctx context.Context, userID string) ([]string, error) {
	return t.repo.ExerciseNames(ctx, userID)
}
