package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/dayjournal/internal/journal"
	"github.com/2beens/dayjournal/internal/telemetry/metrics"
	"github.com/2beens/dayjournal/internal/telemetry/tracing"
)

var ErrDayNotFound = errors.New("nutrition day not found")

const (
	pgCodeUniqueViolation = "23505"
	pgCodeUndefinedColumn = "42703"

	totalCaloriesColumn = "total_calories"
)

type journalDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repo struct {
	db    journalDB
	instr *metrics.Manager
}

func NewRepo(db journalDB, instr *metrics.Manager) *Repo {
	return &Repo{
		db:    db,
		instr: instr,
	}
}

// Get returns the nutrition day for (user, date), or ErrDayNotFound
// when no row exists for that key.
func (r *Repo) Get(ctx context.Context, userID string, date journal.DateKey) (_ *Day, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date", date.String()))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT date, protein_goal, foods, total_protein, total_calories, ai_recommendations
			FROM nutrition
			WHERE user_id = $1 AND date = $2;`,
		userID, date.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrDayNotFound
	}

	var dateStr string
	var proteinGoal float64
	var foodsBytes []byte
	var totalProtein, totalCalories float64
	var recommendationsBytes []byte
	if err := rows.Scan(&dateStr, &proteinGoal, &foodsBytes, &totalProtein, &totalCalories, &recommendationsBytes); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	day := &Day{
		Date:          journal.DateKey(dateStr),
		ProteinGoal:   proteinGoal,
		TotalProtein:  totalProtein,
		TotalCalories: totalCalories,
	}
	if len(foodsBytes) > 0 {
		if err := json.Unmarshal(foodsBytes, &day.Foods); err != nil {
			return nil, fmt.Errorf("unmarshal foods for %s: %w", dateStr, err)
		}
	}
	if len(recommendationsBytes) > 0 {
		if err := json.Unmarshal(recommendationsBytes, &day.AIRecommendations); err != nil {
			return nil, fmt.Errorf("unmarshal recommendations for %s: %w", dateStr, err)
		}
	}

	day.Backfill()
	return day, nil
}

// Save durably persists the day under (user, date) with the same
// update - insert - retry-update-once sequence as the workouts repo.
// One extra tolerance: deployments that haven't added the
// total_calories column yet reject the write with an undefined-column
// error, in which case the whole sequence is retried once with that
// column omitted. Required fields are never part of this fallback.
func (r *Repo) Save(ctx context.Context, userID string, day Day) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date", day.Date.String()))

	err = r.trySave(ctx, userID, day, true)
	if err == nil {
		return nil
	}

	if !isUndefinedColumn(err, totalCaloriesColumn) {
		return err
	}

	// backward compatibility for DBs without nutrition.total_calories
	span.SetAttributes(attribute.Bool("schema_fallback", true))
	if r.instr != nil {
		r.instr.CounterSchemaFallbacks.Inc()
	}
	return r.trySave(ctx, userID, day, false)
}

func (r *Repo) trySave(ctx context.Context, userID string, day Day, withTotalCalories bool) error {
	foodsJson, err := json.Marshal(day.Foods)
	if err != nil {
		return fmt.Errorf("marshal foods: %w", err)
	}
	recommendationsJson, err := json.Marshal(day.AIRecommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	now := time.Now()

	updateSql := `UPDATE nutrition
		SET protein_goal = $3, foods = $4, total_protein = $5, total_calories = $6, ai_recommendations = $7, updated_at = $8
		WHERE user_id = $1 AND date = $2;`
	updateArgs := []any{
		userID, day.Date.String(),
		day.ProteinGoal, foodsJson, day.TotalProtein, day.TotalCalories, recommendationsJson, now,
	}
	insertSql := `INSERT INTO nutrition
		(user_id, date, protein_goal, foods, total_protein, total_calories, ai_recommendations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`
	insertArgs := []any{
		userID, day.Date.String(),
		day.ProteinGoal, foodsJson, day.TotalProtein, day.TotalCalories, recommendationsJson, now, now,
	}

	if !withTotalCalories {
		updateSql = `UPDATE nutrition
			SET protein_goal = $3, foods = $4, total_protein = $5, ai_recommendations = $6, updated_at = $7
			WHERE user_id = $1 AND date = $2;`
		updateArgs = []any{
			userID, day.Date.String(),
			day.ProteinGoal, foodsJson, day.TotalProtein, recommendationsJson, now,
		}
		insertSql = `INSERT INTO nutrition
			(user_id, date, protein_goal, foods, total_protein, ai_recommendations, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
		insertArgs = []any{
			userID, day.Date.String(),
			day.ProteinGoal, foodsJson, day.TotalProtein, recommendationsJson, now, now,
		}
	}

	tag, err := r.db.Exec(ctx, updateSql, updateArgs...)
	if err != nil {
		return fmt.Errorf("update nutrition day: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = r.db.Exec(ctx, insertSql, insertArgs...)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgCodeUniqueViolation {
		return fmt.Errorf("insert nutrition day: %w", err)
	}

	// another session inserted this day first - one retry as update
	if r.instr != nil {
		r.instr.CounterSaveConflictRetries.Inc()
	}

	tag, err = r.db.Exec(ctx, updateSql, updateArgs...)
	if err != nil {
		return fmt.Errorf("retry update nutrition day after conflict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("retry update nutrition day after conflict: no rows affected")
	}
	return nil
}

// FoodNames returns the distinct food names across all of the user's
// nutrition days, sorted case-insensitively. Used for autocomplete.
func (r *Repo) FoodNames(ctx context.Context, userID string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.foodnames")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT foods FROM nutrition WHERE user_id = $1;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	nameSet := make(map[string]struct{})
	for rows.Next() {
		var foodsBytes []byte
		if err := rows.Scan(&foodsBytes); err != nil {
			return nil, err
		}
		var foods []FoodEntry
		if err := json.Unmarshal(foodsBytes, &foods); err != nil {
			return nil, fmt.Errorf("unmarshal foods: %w", err)
		}
		for _, f := range foods {
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

// isUndefinedColumn reports whether err is the remote store rejecting
// a write because the given column does not exist. Deliberately
// narrow: any other error must not trigger the schema fallback.
func isUndefinedColumn(err error, column string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgCodeUndefinedColumn && strings.Contains(pgErr.Message, column)
}
