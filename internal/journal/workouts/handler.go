package workouts

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/dayjournal/internal/journal"
	"github.com/2beens/dayjournal/internal/journal/autosave"
	"github.com/2beens/dayjournal/internal/telemetry/tracing"
	"github.com/2beens/dayjournal/pkg"
)

type DayResponse struct {
	Workout    Workout         `json:"workout"`
	SaveStatus autosave.Status `json:"saveStatus"`
}

type RangeResponse struct {
	Workouts []Workout `json:"workouts"`
	Total    int       `json:"total"`
}

type NamesResponse struct {
	Names []string `json:"names"`
}

type Handler struct {
	tracker *Tracker
	repo    trackerRepo
}

func NewHandler(tracker *Tracker, repo trackerRepo) *Handler {
	return &Handler{
		tracker: tracker,
		repo:    repo,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/journal/{userID}/workouts/names", handler.HandleExerciseNames).
		Methods("GET", "OPTIONS").Name("workout-exercise-names")
	r.HandleFunc("/journal/{userID}/workouts/from/{from}/to/{to}", handler.HandleRange).
		Methods("GET", "OPTIONS").Name("workouts-range")
	r.HandleFunc("/journal/{userID}/workouts/{date}", handler.HandleGetDay).
		Methods("GET", "OPTIONS").Name("get-workout")
	r.HandleFunc("/journal/{userID}/workouts/{date}", handler.HandleSaveDay).
		Methods("PUT", "OPTIONS").Name("save-workout")
	r.HandleFunc("/journal/{userID}/workouts/{date}/flush", handler.HandleFlushDay).
		Methods("POST", "OPTIONS").Name("flush-workout")
	r.HandleFunc("/journal/{userID}/workouts/{date}", handler.HandleCloseDay).
		Methods("DELETE", "OPTIONS").Name("close-workout")
}

// HandleGetDay activates the workout session for the date and returns
// its current state. Days never opened before come back empty.
func (handler *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.getDay")
	defer span.End()

	userID, date, ok := handler.pathParams(w, r)
	if !ok {
		return
	}

	session := handler.tracker.Activate(ctx, userID, date)
	handler.writeDayResponse(w, session)
}

// HandleSaveDay durably stores the posted workout under the date,
// bypassing the debounce. Used by clients that hold their own local
// state and only sync full records.
func (handler *Handler) HandleSaveDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.saveDay")
	defer span.End()

	userID, date, ok := handler.pathParams(w, r)
	if !ok {
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var workout Workout
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		log.Tracef("save workout, unmarshal json params: %s", err)
		http.Error(w, "save workout failed", http.StatusBadRequest)
		return
	}

	workout.Date = date
	workout.Backfill()

	if err := handler.repo.Save(ctx, userID, workout); err != nil {
		log.Errorf("failed to save workout [user %s, date %s]: %s", userID, date, err)
		http.Error(w, "error, failed to save workout", http.StatusInternalServerError)
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("failed to marshal saved workout: %s", err)
		http.Error(w, "error, failed to save workout", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(workoutJson))
}

// HandleFlushDay persists the session's unsaved changes synchronously.
func (handler *Handler) HandleFlushDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.flushDay")
	defer span.End()

	userID, date, ok := handler.pathParams(w, r)
	if !ok {
		return
	}

	session := handler.tracker.Session(userID, date)
	if session == nil {
		http.Error(w, "error, no active session for date", http.StatusNotFound)
		return
	}

	if err := session.Flush(ctx); err != nil {
		log.Errorf("failed to flush workout [user %s, date %s]: %s", userID, date, err)
		http.Error(w, "error, failed to flush workout", http.StatusInternalServerError)
		return
	}

	handler.writeDayResponse(w, session)
}

// HandleCloseDay flushes and drops the session for the date.
func (handler *Handler) HandleCloseDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.closeDay")
	defer span.End()

	userID, date, ok := handler.pathParams(w, r)
	if !ok {
		return
	}

	if err := handler.tracker.Deactivate(ctx, userID, date); err != nil {
		log.Errorf("failed to close workout session [user %s, date %s]: %s", userID, date, err)
		http.Error(w, "error, failed to close workout session", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponse(w, "", "closed", http.StatusOK)
}

func (handler *Handler) HandleRange(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.range")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}
	from, err := journal.ParseDateKey(vars["from"])
	if err != nil {
		http.Error(w, "error, invalid from date", http.StatusBadRequest)
		return
	}
	to, err := journal.ParseDateKey(vars["to"])
	if err != nil {
		http.Error(w, "error, invalid to date", http.StatusBadRequest)
		return
	}
	if to < from {
		http.Error(w, "error, to date before from date", http.StatusBadRequest)
		return
	}

	workouts, err := handler.tracker.Workouts(ctx, userID, from, to)
	if err != nil {
		log.Errorf("failed to get workouts range [user %s, %s - %s]: %s", userID, from, to, err)
		http.Error(w, "error, failed to get workouts", http.StatusInternalServerError)
		return
	}

	rangeJson, err := json.Marshal(RangeResponse{
		Workouts: workouts,
		Total:    len(workouts),
	})
	if err != nil {
		log.Errorf("failed to marshal workouts range: %s", err)
		http.Error(w, "error, failed to get workouts", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(rangeJson))
}

func (handler *Handler) HandleExerciseNames(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.exerciseNames")
	defer span.End()

	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	names, err := handler.tracker.ExerciseNames(ctx, userID)
	if err != nil {
		log.Errorf("failed to get exercise names [user %s]: %s", userID, err)
		http.Error(w, "error, failed to get exercise names", http.StatusInternalServerError)
		return
	}

	namesJson, err := json.Marshal(NamesResponse{Names: names})
	if err != nil {
		log.Errorf("failed to marshal exercise names: %s", err)
		http.Error(w, "error, failed to get exercise names", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(namesJson))
}

func (handler *Handler) pathParams(w http.ResponseWriter, r *http.Request) (string, journal.DateKey, bool) {
	vars := mux.Vars(r)
	userID := vars["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return "", "", false
	}
	date, err := journal.ParseDateKey(vars["date"])
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return "", "", false
	}
	return userID, date, true
}

func (handler *Handler) writeDayResponse(w http.ResponseWriter, session *Session) {
	dayJson, err := json.Marshal(DayResponse{
		Workout:    session.Workout(),
		SaveStatus: session.Status(),
	})
	if err != nil {
		log.Errorf("failed to marshal workout day response: %s", err)
		http.Error(w, "error, failed to get workout", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(dayJson))
}
