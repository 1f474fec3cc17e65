package nutrition

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
	Day        Day             `json:"day"`
	SaveStatus autosave.Status `json:"saveStatus"`
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
	r.HandleFunc("/journal/{userID}/nutrition/names", handler.HandleFoodNames).
		Methods("GET", "OPTIONS").Name("nutrition-food-names")
	r.HandleFunc("/journal/{userID}/nutrition/{date}", handler.HandleGetDay).
		Methods("GET", "OPTIONS").Name("get-nutrition-day")
	r.HandleFunc("/journal/{userID}/nutrition/{date}", handler.HandleSaveDay).
		Methods("PUT", "OPTIONS").Name("save-nutrition-day")
	r.HandleFunc("/journal/{userID}/nutrition/{date}/flush", handler.HandleFlushDay).
		Methods("POST", "OPTIONS").Name("flush-nutrition-day")
	r.HandleFunc("/journal/{userID}/nutrition/{date}", handler.HandleCloseDay).
		Methods("DELETE", "OPTIONS").Name("close-nutrition-day")
}

// HandleGetDay activates the nutrition session for the date and
// returns its current state. Days never opened before come back with
// the default protein goal and no foods.
func (handler *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.getDay")
	defer span.End()

	userID, date, ok := handler.pathParams(w, r)
	if !ok {
		return
	}

	session := handler.tracker.Activate(ctx, userID, date)
	handler.writeDayResponse(w, session)
}

// HandleSaveDay durably stores the posted day under the date,
// bypassing the debounce. Totals are recomputed server side, client
// supplied totals are never trusted.
func (handler *Handler) HandleSaveDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.saveDay")
	defer span.End()

	userID, date, ok := handler.pathParams(w, r)
	if !ok {
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var day Day
	if err := json.NewDecoder(r.Body).Decode(&day); err != nil {
		log.Tracef("save nutrition day, unmarshal json params: %s", err)
		http.Error(w, "save nutrition day failed", http.StatusBadRequest)
		return
	}

	day.Date = date
	if day.ProteinGoal <= 0 {
		day.ProteinGoal = handler.tracker.proteinGoal
	}
	day.Backfill()

	if err := handler.repo.Save(ctx, userID, day); err != nil {
		log.Errorf("failed to save nutrition day [user %s, date %s]: %s", userID, date, err)
		http.Error(w, "error, failed to save nutrition day", http.StatusInternalServerError)
		return
	}

	dayJson, err := json.Marshal(day)
	if err != nil {
		log.Errorf("failed to marshal saved nutrition day: %s", err)
		http.Error(w, "error, failed to save nutrition day", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(dayJson))
}

// HandleFlushDay persists the session's unsaved changes synchronously.
func (handler *Handler) HandleFlushDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.flushDay")
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
		log.Errorf("failed to flush nutrition day [user %s, date %s]: %s", userID, date, err)
		http.Error(w, "error, failed to flush nutrition day", http.StatusInternalServerError)
		return
	}

	handler.writeDayResponse(w, session)
}

// HandleCloseDay flushes and drops the session for the date.
func (handler *Handler) HandleCloseDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.closeDay")
	defer span.End()

	userID, date, ok := handler.pathParams(w, r)
	if !ok {
		return
	}

	if err := handler.tracker.Deactivate(ctx, userID, date); err != nil {
		log.Errorf("failed to close nutrition session [user %s, date %s]: %s", userID, date, err)
		http.Error(w, "error, failed to close nutrition session", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponse(w, "", "closed", http.StatusOK)
}

func (handler *Handler) HandleFoodNames(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.foodNames")
	defer span.End()

	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	names, err := handler.tracker.FoodNames(ctx, userID)
	if err != nil {
		log.Errorf("failed to get food names [user %s]: %s", userID, err)
		http.Error(w, "error, failed to get food names", http.StatusInternalServerError)
		return
	}

	namesJson, err := json.Marshal(NamesResponse{Names: names})
	if err != nil {
		log.Errorf("failed to marshal food names: %s", err)
		http.Error(w, "error, failed to get food names", http.StatusInternalServerError)
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
		Day:        session.Day(),
		SaveStatus: session.Status(),
	})
	if err != nil {
		log.Errorf("failed to marshal nutrition day response: %s", err)
		http.Error(w, "error, failed to get nutrition day", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(dayJson))
}
