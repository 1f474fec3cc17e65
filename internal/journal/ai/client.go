package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/dayjournal/internal/telemetry/tracing"
)

// estimation results for well-known names barely change, so cached
// entries can live long
const (
	oneHour                  = 60 * 60
	exerciseStepsCacheExpire = oneHour * 24 * 7

	defaultQuantity = "1 standard serving"
)

// Macros is the estimated macronutrient content for one food entry.
// Protein is the number the journal actually tracks, the rest is
// informational.
type Macros struct {
	Protein  float64 `json:"protein"`
	Calories float64 `json:"calories"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type Recommendation struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	EstimatedProtein float64 `json:"estimatedProtein"`
}

// RecommendationsRequest describes the user's day so far. FollowUp
// and CurrentRecommendations carry the running conversation when the
// user refines an earlier suggestion list.
type RecommendationsRequest struct {
	FoodsEaten             []string         `json:"foodsEaten"`
	ProteinGoal            float64          `json:"proteinGoal"`
	ProteinCurrent         float64          `json:"proteinCurrent"`
	CurrentRecommendations []Recommendation `json:"currentRecommendations,omitempty"`
	FollowUp               string           `json:"followUp,omitempty"`
}

// Client talks to the estimation service. Food macros are cached in
// redis so repeat lookups for the same food+quantity stay free across
// restarts; exercise steps live in an in-process cache since they are
// small and effectively static.
type Client struct {
	endpoint      string
	apiKey        string
	httpClient    *http.Client
	redisClient   *redis.Client
	exerciseCache *freecache.Cache
}

func NewClient(endpoint, apiKey string, httpClient *http.Client, redisClient *redis.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   time.Minute,
		}
	}

	megabyte := 1024 * 1024
	cacheSize := 10 * megabyte

	return &Client{
		endpoint:      strings.TrimSuffix(endpoint, "/"),
		apiKey:        apiKey,
		httpClient:    httpClient,
		redisClient:   redisClient,
		exerciseCache: freecache.NewCache(cacheSize),
	}
}

// FoodMacros estimates the macros for a food and quantity. An empty
// quantity means one standard serving.
func (c *Client) FoodMacros(ctx context.Context, foodName, quantity string) (_ *Macros, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aiClient.foodMacros")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	foodName = strings.TrimSpace(foodName)
	if foodName == "" {
		return nil, fmt.Errorf("food name is required")
	}
	quantity = strings.TrimSpace(quantity)
	if quantity == "" {
		quantity = defaultQuantity
	}

	cacheKey := fmt.Sprintf("food-macros::%s::%s", normalizeName(foodName), normalizeName(quantity))

	// try redis first
	macros := &Macros{}
	cmd := c.redisClient.Get(ctx, cacheKey)
	if cachedBytes := cmd.Val(); cachedBytes != "" {
		span.SetAttributes(attribute.Bool("from-cache", true))
		log.Tracef("found food macros for [%s] in redis cache", cacheKey)
		unmarshalErr := json.Unmarshal([]byte(cachedBytes), macros)
		if unmarshalErr == nil {
			return macros, nil
		}
		log.Errorf("failed to unmarshal cached food macros for [%s]: %s", cacheKey, unmarshalErr)
		// fall through to the estimation service
	} else {
		span.SetAttributes(attribute.Bool("from-cache", false))
		log.Debugf("food macros for [%s] not found in redis", cacheKey)
	}

	respBytes, err := c.post(ctx, "/food-macros", map[string]string{
		"foodName": foodName,
		"quantity": quantity,
	})
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(respBytes, macros); err != nil {
		return nil, fmt.Errorf("unmarshal food macros response: %w", err)
	}

	if err := c.redisClient.Set(ctx, cacheKey, respBytes, 0).Err(); err != nil {
		log.Errorf("failed to cache food macros for [%s]: %s", cacheKey, err)
	} else {
		log.Debugf("food macros cache set for: %s", cacheKey)
	}

	return macros, nil
}

// ExerciseSteps returns up to three short how-to steps for the named
// exercise.
func (c *Client) ExerciseSteps(ctx context.Context, exerciseName string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aiClient.exerciseSteps")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exerciseName = strings.TrimSpace(exerciseName)
	if exerciseName == "" {
		return nil, fmt.Errorf("exercise name is required")
	}

	cacheKey := []byte(normalizeName(exerciseName))
	if stepsBytes, err := c.exerciseCache.Get(cacheKey); err == nil {
		var steps []string
		if err = json.Unmarshal(stepsBytes, &steps); err == nil {
			span.SetAttributes(attribute.Bool("from-cache", true))
			log.Tracef("found exercise steps for [%s] in cache", exerciseName)
			return steps, nil
		}
		log.Errorf("failed to unmarshal cached exercise steps for [%s]: %s", exerciseName, err)
	}
	span.SetAttributes(attribute.Bool("from-cache", false))

	respBytes, err := c.post(ctx, "/exercise-steps", map[string]string{
		"exerciseName": exerciseName,
	})
	if err != nil {
		return nil, err
	}

	var stepsResponse struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal(respBytes, &stepsResponse); err != nil {
		return nil, fmt.Errorf("unmarshal exercise steps response: %w", err)
	}
	if len(stepsResponse.Steps) == 0 {
		return nil, fmt.Errorf("no steps for exercise: %s", exerciseName)
	}
	if len(stepsResponse.Steps) > 3 {
		stepsResponse.Steps = stepsResponse.Steps[:3]
	}

	if stepsBytes, err := json.Marshal(stepsResponse.Steps); err == nil {
		if err = c.exerciseCache.Set(cacheKey, stepsBytes, exerciseStepsCacheExpire); err != nil {
			log.Errorf("failed to cache exercise steps for [%s]: %s", exerciseName, err)
		}
	}

	return stepsResponse.Steps, nil
}

// Recommendations suggests meals to close the user's remaining
// protein gap. Never cached, the answer depends on the whole request.
func (c *Client) Recommendations(ctx context.Context, req RecommendationsRequest) (_ []Recommendation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aiClient.recommendations")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	respBytes, err := c.post(ctx, "/recommendations", req)
	if err != nil {
		return nil, err
	}

	var recResponse struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal(respBytes, &recResponse); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations response: %w", err)
	}

	return recResponse.Recommendations, nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.endpoint + path
	log.Debugf("calling estimation service: %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response bytes: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("estimation service status %d: %s", resp.StatusCode, respBytes)
	}

	return respBytes, nil
}

// normalizeName makes cache keys insensitive to casing and extra
// whitespace, e.g. "  Bench   Press " and "bench press" share one
// entry.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
