package nutrition

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

const saveRecordLabel = "nutrition"

type trackerRepo interface {
	Get(ctx context.Context, userID string, date journal.DateKey) (*Day, error)
	Save(ctx context.Context, userID string, day Day) error
	FoodNames(ctx context.Context, userID string) ([]string, error)
}

// Session is one user's nutrition day, held in memory while being
// edited. Totals are recomputed by the mutation ops; callers never
// write totals directly.
type Session struct {
	mu        sync.Mutex
	userID    string
	day       *Day
	scheduler *autosave.Scheduler
}

// Day returns a deep-copied snapshot of the current state.
func (s *Session) Day() Day {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day.Copy()
}

func (s *Session) Status() autosave.Status {
	return s.scheduler.Status()
}

func (s *Session) AddFood(entry FoodEntry) FoodEntry {
	s.mu.Lock()
	added := *s.day.AddFood(entry)
	s.mu.Unlock()
	s.scheduler.NoteChange()
	return added
}

func (s *Session) RemoveFood(foodID string) {
	s.mu.Lock()
	s.day.RemoveFood(foodID)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) UpdateFood(foodID string, update FoodUpdate) {
	s.mu.Lock()
	s.day.UpdateFood(foodID, update)
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) SetProteinGoal(goal float64) {
	s.mu.Lock()
	s.day.ProteinGoal = goal
	s.mu.Unlock()
	s.scheduler.NoteChange()
}

func (s *Session) SetAIRecommendations(recommendations []string) {
	s.mu.Lock()
	s.day.AIRecommendations = recommendations
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

	// protein goal for days synthesized from scratch; zero falls back
	// to DefaultProteinGoal
	ProteinGoal float64

	// zero values fall back to the autosave defaults
	DebounceWindow   time.Duration
	SavedDisplayTime time.Duration
	ErrorDisplayTime time.Duration
}

// Tracker is the keyed store of active nutrition sessions, one per
// (user, date).
type Tracker struct {
	mu          sync.Mutex
	repo        trackerRepo
	instr       *metrics.Manager
	proteinGoal float64
	delays      autosave.Params
	sessions    map[sessionKey]*Session
}

func NewTracker(params TrackerParams) *Tracker {
	if params.ProteinGoal <= 0 {
		params.ProteinGoal = DefaultProteinGoal
	}
	return &Tracker{
		repo:        params.Repo,
		instr:       params.Instr,
		proteinGoal: params.ProteinGoal,
		delays: autosave.Params{
			DebounceWindow:   params.DebounceWindow,
			SavedDisplayTime: params.SavedDisplayTime,
			ErrorDisplayTime: params.ErrorDisplayTime,
		},
		sessions: make(map[sessionKey]*Session),
	}
}

// Activate returns the session for (user, date), loading the day from
// the repo when the key is seen for the first time. A date with no
// stored day starts fresh with the configured protein goal. A load
// failure also starts fresh, logged loudly so it can be told apart
// from a genuinely new day.
func (t *Tracker) Activate(ctx context.Context, userID string, date journal.DateKey) *Session {
	key := sessionKey{userID: userID, date: date}

	t.mu.Lock()
	if session, ok := t.sessions[key]; ok {
		t.mu.Unlock()
		return session
	}
	t.mu.Unlock()

	day, err := t.repo.Get(ctx, userID, date)
	switch {
	case err == nil:
	case errors.Is(err, ErrDayNotFound):
		day = NewDay(date, t.proteinGoal)
	default:
		log.Errorf("nutrition tracker: load [user %s, date %s] failed, starting fresh: %s", userID, date, err)
		day = NewDay(date, t.proteinGoal)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if session, ok := t.sessions[key]; ok {
		return session
	}

	session := &Session{
		userID: userID,
		day:    day,
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
// the tracker.
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

// FlushAll flushes every active session, collecting the errors.
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
	snapshot := session.Day()

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

// FoodNames returns the user's distinct food names for autocomplete.
func (t *Tracker) FoodNames(ctx context.Context, userID string) ([]string, error) {
	return t.repo.FoodNames(ctx, userID)
}
