package workouts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/dayjournal/internal/journal"
	"github.com/2beens/dayjournal/internal/journal/autosave"
	"github.com/2beens/dayjournal/internal/telemetry/metrics"
)

func handlerTestSetup(t *testing.T) (*Handler, *repoMock, *mux.Router) {
	t.Helper()
	repo := NewMockWorkoutsRepo()
	tracker := NewTracker(TrackerParams{
		Repo:           repo,
		Instr:          metrics.NewTestManager(),
		DebounceWindow: 30 * time.Millisecond,
	})
	handler := NewHandler(tracker, repo)
	r := mux.NewRouter()
	handler.SetupRoutes(r)
	return handler, repo, r
}

func TestHandler_GetDay_NewDate(t *testing.T) {
	_, _, r := handlerTestSetup(t)

	req := httptest.NewRequest("GET", "/journal/user-1/workouts/2024-05-02", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DayResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, journal.DateKey("2024-05-02"), resp.Workout.Date)
	assert.Empty(t, resp.Workout.Exercises)
	assert.Equal(t, autosave.StatusIdle, resp.SaveStatus)
}

func TestHandler_GetDay_StoredDate(t *testing.T) {
	_, repo, r := handlerTestSetup(t)

	stored := NewWorkout("2024-05-02")
	stored.AddExercise("Bench Press")
	require.NoError(t, repo.Save(context.Background(), "user-1", *stored))

	req := httptest.NewRequest("GET", "/journal/user-1/workouts/2024-05-02", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DayResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Workout.Exercises, 1)
	assert.Equal(t, "Bench Press", resp.Workout.Exercises[0].Name)
}

func TestHandler_GetDay_InvalidDate(t *testing.T) {
	_, _, r := handlerTestSetup(t)

	req := httptest.NewRequest("GET", "/journal/user-1/workouts/02.05.2024", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_SaveDay(t *testing.T) {
	_, repo, r := handlerTestSetup(t)

	workout := NewWorkout("2024-05-02")
	workout.AddExercise("Squat")
	workoutJson, err := json.Marshal(workout)
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/journal/user-1/workouts/2024-05-02", bytes.NewReader(workoutJson))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	stored, ok := repo.stored("user-1", "2024-05-02")
	require.True(t, ok)
	require.Len(t, stored.Exercises, 1)
	assert.Equal(t, "Squat", stored.Exercises[0].Name)
}

func TestHandler_SaveDay_WrongContentType(t *testing.T) {
	_, _, r := handlerTestSetup(t)

	req := httptest.NewRequest("PUT", "/journal/user-1/workouts/2024-05-02", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_FlushDay(t *testing.T) {
	handler, repo, r := handlerTestSetup(t)

	// no session yet
	req := httptest.NewRequest("POST", "/journal/user-1/workouts/2024-05-02/flush", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	session := handler.tracker.Activate(context.Background(), "user-1", "2024-05-02")
	session.AddExercise("Deadlift")

	req = httptest.NewRequest("POST", "/journal/user-1/workouts/2024-05-02/flush", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	stored, ok := repo.stored("user-1", "2024-05-02")
	require.True(t, ok)
	assert.Len(t, stored.Exercises, 1)
}

func TestHandler_CloseDay(t *testing.T) {
	handler, repo, r := handlerTestSetup(t)

	session := handler.tracker.Activate(context.Background(), "user-1", "2024-05-02")
	session.AddExercise("Squat")

	req := httptest.NewRequest("DELETE", "/journal/user-1/workouts/2024-05-02", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	_, ok := repo.stored("user-1", "2024-05-02")
	assert.True(t, ok)
	assert.Nil(t, handler.tracker.Session("user-1", "2024-05-02"))
}

func TestHandler_Range(t *testing.T) {
	_, repo, r := handlerTestSetup(t)

	for _, date := range []journal.DateKey{"2024-05-01", "2024-05-02", "2024-05-07"} {
		w := NewWorkout(date)
		w.AddExercise("Squat")
		require.NoError(t, repo.Save(context.Background(), "user-1", *w))
	}

	req := httptest.NewRequest("GET", "/journal/user-1/workouts/from/2024-05-01/to/2024-05-03", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp RangeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Workouts, 2)
	assert.Equal(t, journal.DateKey("2024-05-01"), resp.Workouts[0].Date)

	// to before from
	req = httptest.NewRequest("GET", "/journal/user-1/workouts/from/2024-05-03/to/2024-05-01", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_ExerciseNames(t *testing.T) {
	_, repo, r := handlerTestSetup(t)

	w := NewWorkout("2024-05-01")
	w.AddExercise("Squat")
	w.AddExercise("Bench Press")
	require.NoError(t, repo.Save(context.Background(), "user-1", *w))

	req := httptest.NewRequest("GET", "/journal/user-1/workouts/names", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp NamesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Bench Press", "Squat"}, resp.Names)
}
