package workouts

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

var ErrWorkoutNotFound = errors.New("workout not found")

const pgCodeUniqueViolation = "23505"

// journalDB is the slice of pgxpool.Pool the repo needs; tests plug in
// a stub to drive the upsert protocol through its conflict branches.
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

// Get returns the workout for (user, date), or ErrWorkoutNotFound when
// no row exists for that key. Records written before the exercise type
// field existed are backfilled on the way out.
func (r *Repo) Get(ctx context.Context, userID string, date journal.DateKey) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date", date.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, date, notes, exercises, created_at FROM workout WHERE user_id = $1 AND date = $2;`,
		userID, date.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, err
	}
	if len(workouts) != 1 {
		return nil, ErrWorkoutNotFound
	}

	return &workouts[0], nil
}

// Save durably persists the workout under (user, date): update first,
// insert when no row exists yet, and when the insert loses a
// concurrent first-write race (unique violation on user+date) retry
// with a single update. A second violation is fatal for this save.
func (r *Repo) Save(ctx context.Context, userID string, workout Workout) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date", workout.Date.String()))

	exercisesJson, err := json.Marshal(workout.Exercises)
	if err != nil {
		return fmt.Errorf("marshal exercises: %w", err)
	}

	now := time.Now()

	update := func() (int64, error) {
		tag, err := r.db.Exec(
			ctx,
			`UPDATE workout SET notes = $3, exercises = $4, updated_at = $5 WHERE user_id = $1 AND date = $2;`,
			userID, workout.Date.String(), workout.Notes, exercisesJson, now,
		)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}

	affected, err := update()
	if err != nil {
		return fmt.Errorf("update workout: %w", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO workout (id, user_id, date, notes, exercises, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		workout.ID, userID, workout.Date.String(), workout.Notes, exercisesJson, now, now,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgCodeUniqueViolation {
		return fmt.Errorf("insert workout: %w", err)
	}

	// another session inserted this day first - one retry as update
	span.SetAttributes(attribute.Bool("conflict_retry", true))
	if r.instr != nil {
		r.instr.CounterSaveConflictRetries.Inc()
	}

	affected, err = update()
	if err != nil {
		return fmt.Errorf("retry update workout after conflict: %w", err)
	}
	if affected == 0 {
		return errors.New("retry update workout after conflict: no rows affected")
	}
	return nil
}

// GetRange returns the user's workouts between from and to inclusive,
// ordered by date ascending.
func (r *Repo) GetRange(ctx context.Context, userID string, from, to journal.DateKey) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.getrange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("from", from.String()))
	span.SetAttributes(attribute.String("to", to.String()))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, date, notes, exercises, created_at
			FROM workout
			WHERE user_id = $1 AND date >= $2 AND date <= $3
			ORDER BY date ASC;`,
		userID, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return rows2workouts(rows)
}

// ExerciseNames returns the distinct exercise names across all of the
// user's workouts, sorted case-insensitively. Used for autocomplete.
func (r *Repo) ExerciseNames(ctx context.Context, userID string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.exercisenames")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT exercises FROM workout WHERE user_id = $1;`,
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
		var exercisesBytes []byte
		if err := rows.Scan(&exercisesBytes); err != nil {
			return nil, err
		}
		var exercises []Exercise
		if err := json.Unmarshal(exercisesBytes, &exercises); err != nil {
			return nil, fmt.Errorf("unmarshal exercises: %w", err)
		}
		for _, ex := range exercises {
			if ex.Name != "" {
				nameSet[ex.Name] = struct{}{}
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

func rows2workouts(rows pgx.Rows) ([]Workout, error) {
	var workouts []Workout
	for rows.Next() {
		var id string
		var date string
		var notes *string
		var exercisesBytes []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &date, &notes, &exercisesBytes, &createdAt); err != nil {
			return nil, err
		}

		w := Workout{
			ID:        id,
			Date:      journal.DateKey(date),
			CreatedAt: createdAt,
		}
		if notes != nil {
			w.Notes = *notes
		}

		if len(exercisesBytes) > 0 {
			if err := json.Unmarshal(exercisesBytes, &w.Exercises); err != nil {
				return nil, fmt.Errorf("unmarshal exercises for workout %s: %w", id, err)
			}
		}

		w.Backfill()
		workouts = append(workouts, w)
	}

	if workouts == nil {
		workouts = make([]Workout, 0)
	}

	return workouts, nil
}
