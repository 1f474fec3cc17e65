package ai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/dayjournal/internal/telemetry/tracing"
	"github.com/2beens/dayjournal/pkg"
)

type estimationClient interface {
	FoodMacros(ctx context.Context, foodName, quantity string) (*Macros, error)
	ExerciseSteps(ctx context.Context, exerciseName string) ([]string, error)
	Recommendations(ctx context.Context, req RecommendationsRequest) ([]Recommendation, error)
}

type StepsResponse struct {
	Steps []string `json:"steps"`
}

type RecommendationsResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}

type Handler struct {
	client estimationClient
}

func NewHandler(client estimationClient) *Handler {
	return &Handler{
		client: client,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/ai/food-macros", handler.HandleFoodMacros).
		Methods("POST", "OPTIONS").Name("ai-food-macros")
	r.HandleFunc("/ai/exercise-steps", handler.HandleExerciseSteps).
		Methods("POST", "OPTIONS").Name("ai-exercise-steps")
	r.HandleFunc("/ai/recommendations", handler.HandleRecommendations).
		Methods("POST", "OPTIONS").Name("ai-recommendations")
}

func (handler *Handler) HandleFoodMacros(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.ai.foodMacros")
	defer span.End()

	var params struct {
		FoodName string `json:"foodName"`
		Quantity string `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("food macros, unmarshal json params: %s", err)
		http.Error(w, "food macros lookup failed", http.StatusBadRequest)
		return
	}
	if params.FoodName == "" {
		http.Error(w, "error, food name empty", http.StatusBadRequest)
		return
	}

	macros, err := handler.client.FoodMacros(ctx, params.FoodName, params.Quantity)
	if err != nil {
		log.Errorf("failed to get food macros for [%s]: %s", params.FoodName, err)
		http.Error(w, "error, failed to get food macros", http.StatusInternalServerError)
		return
	}

	macrosJson, err := json.Marshal(macros)
	if err != nil {
		log.Errorf("failed to marshal food macros: %s", err)
		http.Error(w, "error, failed to get food macros", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(macrosJson))
}

func (handler *Handler) HandleExerciseSteps(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.ai.exerciseSteps")
	defer span.End()

	var params struct {
		ExerciseName string `json:"exerciseName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("exercise steps, unmarshal json params: %s", err)
		http.Error(w, "exercise steps lookup failed", http.StatusBadRequest)
		return
	}
	if params.ExerciseName == "" {
		http.Error(w, "error, exercise name empty", http.StatusBadRequest)
		return
	}

	steps, err := handler.client.ExerciseSteps(ctx, params.ExerciseName)
	if err != nil {
		log.Errorf("failed to get exercise steps for [%s]: %s", params.ExerciseName, err)
		http.Error(w, "error, failed to get exercise steps", http.StatusInternalServerError)
		return
	}

	stepsJson, err := json.Marshal(StepsResponse{Steps: steps})
	if err != nil {
		log.Errorf("failed to marshal exercise steps: %s", err)
		http.Error(w, "error, failed to get exercise steps", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(stepsJson))
}

func (handler *Handler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.ai.recommendations")
	defer span.End()

	var params RecommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("recommendations, unmarshal json params: %s", err)
		http.Error(w, "recommendations lookup failed", http.StatusBadRequest)
		return
	}

	recommendations, err := handler.client.Recommendations(ctx, params)
	if err != nil {
		log.Errorf("failed to get recommendations: %s", err)
		http.Error(w, "error, failed to get recommendations", http.StatusInternalServerError)
		return
	}

	recJson, err := json.Marshal(RecommendationsResponse{Recommendations: recommendations})
	if err != nil {
		log.Errorf("failed to marshal recommendations: %s", err)
		http.Error(w, "error, failed to get recommendations", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(recJson))
}
