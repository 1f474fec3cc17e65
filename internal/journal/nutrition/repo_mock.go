package nutrition

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/2beens/dayjournal/internal/journal"
)

type repoMock struct {
	mu   sync.Mutex
	days map[string]map[journal.DateKey]Day

	// when set, Get calls fail with this error
	getErr error
	// when set, Save calls fail with this error
	saveErr   error
	saveCount int
}

func NewMockNutritionRepo() *repoMock {
	return &repoMock{
		days: make(map[string]map[journal.DateKey]Day),
	}
}

func (r *repoMock) Get(_ context.Context, userID string, date journal.DateKey) (*Day, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	d, ok := r.days[userID][date]
	if !ok {
		return nil, ErrDayNotFound
	}
	dCopy := d.Copy()
	return &dCopy, nil
}

func (r *repoMock) Save(_ context.Context, userID string, day Day) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCount++
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.days[userID] == nil {
		r.days[userID] = make(map[journal.DateKey]Day)
	}
	r.days[userID][day.Date] = day.Copy()
	return nil
}

func (r *repoMock) FoodNames(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nameSet := make(map[string]struct{})
	for _, d := range r.days[userID] {
		for _, f := range d.Foods {
			if f.Name != "" {
				nameSet[f.Name] = struct{}{}
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

func (r *repoMock) setGetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getErr = err
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

func (r *repoMock) stored(userID string, date journal.DateKey) (Day, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.days[userID][date]
	return d, ok
}
