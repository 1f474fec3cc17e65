package autosave

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Status is the save-state signal exposed to the presentation layer.
// It moves idle -> saving -> saved -> idle on success, and
// idle -> saving -> error -> idle on failure.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

const (
	DefaultDebounceWindow   = time.Second
	DefaultSavedDisplayTime = 2 * time.Second
	DefaultErrorDisplayTime = 3 * time.Second
)

// SaveFunc persists the owning record. It must take its snapshot of
// the record when invoked, not when scheduled, so that mutations
// arriving between scheduling and firing are included.
type SaveFunc func(ctx context.Context) error

type Params struct {
	Save             SaveFunc
	DebounceWindow   time.Duration
	SavedDisplayTime time.Duration
	ErrorDisplayTime time.Duration
}

// Scheduler coalesces a burst of record mutations into a single
// persist call. At most one timer is pending and at most one save is
// in flight at any time; a mutation arriving while a save runs marks
// the record dirty again and the follow-up save is debounced after the
// in-flight one completes.
type Scheduler struct {
	mu sync.Mutex

	save           SaveFunc
	debounceWindow time.Duration
	savedDisplay   time.Duration
	errorDisplay   time.Duration

	timer     *time.Timer
	status    Status
	statusGen int
	dirty     bool
	inFlight  bool
	saveDone  chan struct{}
	closed    bool
}

func NewScheduler(params Params) *Scheduler {
	if params.DebounceWindow <= 0 {
		params.DebounceWindow = DefaultDebounceWindow
	}
	if params.SavedDisplayTime <= 0 {
		params.SavedDisplayTime = DefaultSavedDisplayTime
	}
	if params.ErrorDisplayTime <= 0 {
		params.ErrorDisplayTime = DefaultErrorDisplayTime
	}
	return &Scheduler{
		save:           params.Save,
		debounceWindow: params.DebounceWindow,
		savedDisplay:   params.SavedDisplayTime,
		errorDisplay:   params.ErrorDisplayTime,
		status:         StatusIdle,
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// NoteChange restarts the debounce timer. A new change cancels and
// replaces the previous pending timer rather than stacking a second
// one. During an in-flight save it only marks the record dirty; the
// follow-up timer is armed once that save completes.
func (s *Scheduler) NoteChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.dirty = true
	if s.inFlight {
		return
	}
	s.armTimerLocked()
}

// Flush cancels any pending timer, waits out an in-flight save, and
// then saves the latest snapshot synchronously. After a successful
// flush no further save fires for the flushed state.
func (s *Scheduler) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		if s.inFlight {
			done := s.saveDone
			s.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if !s.dirty {
			s.mu.Unlock()
			return nil
		}
		done := s.beginSaveLocked()
		s.mu.Unlock()
		return s.runSave(ctx, done)
	}
}

// Close tears the scheduler down, firing one last best-effort save if
// changes are still unsaved. It does not wait for that save; there is
// no further UI to report its status to.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.dirty && !s.inFlight {
		done := s.beginSaveLocked()
		go func() {
			_ = s.runSave(context.Background(), done)
		}()
	}
	// if a save is in flight, it completes in the background and
	// handles any remaining dirty state itself
}

func (s *Scheduler) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounceWindow, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.closed || s.inFlight || !s.dirty {
		s.mu.Unlock()
		return
	}
	done := s.beginSaveLocked()
	s.mu.Unlock()

	if err := s.runSave(context.Background(), done); err != nil {
		log.Errorf("autosave: debounced save failed: %s", err)
	}
}

// beginSaveLocked transitions to saving and claims the single
// in-flight save slot. The dirty flag resets here: the snapshot about
// to be taken covers everything up to this point.
func (s *Scheduler) beginSaveLocked() chan struct{} {
	s.inFlight = true
	s.dirty = false
	s.status = StatusSaving
	s.statusGen++
	s.saveDone = make(chan struct{})
	return s.saveDone
}

func (s *Scheduler) runSave(ctx context.Context, done chan struct{}) error {
	err := s.save(ctx)

	s.mu.Lock()
	s.inFlight = false
	s.settleStatusLocked(err)
	if s.dirty {
		if s.closed {
			// teardown already happened, run the trailing save now
			trailingDone := s.beginSaveLocked()
			go func() {
				_ = s.runSave(context.Background(), trailingDone)
			}()
		} else {
			s.armTimerLocked()
		}
	}
	close(done)
	s.mu.Unlock()

	return err
}

// settleStatusLocked flips the status to saved or error and schedules
// the revert to idle after the display delay. The generation counter
// keeps a stale revert from clobbering a newer status.
func (s *Scheduler) settleStatusLocked(err error) {
	s.statusGen++
	gen := s.statusGen

	displayTime := s.savedDisplay
	if err != nil {
		s.status = StatusError
		displayTime = s.errorDisplay
	} else {
		s.status = StatusSaved
	}

	time.AfterFunc(displayTime, func() {
		s.mu.Lock()
		if s.statusGen == gen {
			s.status = StatusIdle
		}
		s.mu.Unlock()
	})
}
