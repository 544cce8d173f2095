package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

var (
	// ErrInvalidScenario is returned when a scenario lacks a title, or an
	// update lacks steps.
	ErrInvalidScenario = errors.New("saved scenario requires a title and steps")
	// ErrConflict is returned when an update would collide with another saved
	// scenario for the same URL.
	ErrConflict = errors.New("saved scenario conflicts with an existing one")
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS saved_scenarios (
    id          UUID PRIMARY KEY,
    url         TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL,
    user_story  TEXT NOT NULL DEFAULT '',
    story_key   TEXT,
    steps       JSONB NOT NULL DEFAULT '[]',
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (url, title),
    UNIQUE (url, story_key)
);
CREATE INDEX IF NOT EXISTS saved_scenarios_url_idx ON saved_scenarios (url);
`

const selectColumns = `id, url, title, user_story, steps, created_at, updated_at`

const (
	sqlSelectAll = `
        SELECT ` + selectColumns + `
        FROM saved_scenarios
        ORDER BY created_at ASC, id ASC;
    `
	sqlSelectByURL = `
        SELECT ` + selectColumns + `
        FROM saved_scenarios
        WHERE url = $1
        ORDER BY created_at ASC, id ASC;
    `
	sqlInsert = `
        INSERT INTO saved_scenarios (id, url, title, user_story, story_key, steps, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        ON CONFLICT DO NOTHING
        RETURNING ` + selectColumns + `;
    `
	sqlUpdate = `
        UPDATE saved_scenarios SET
            steps = $2,
            title = COALESCE($3, title),
            user_story = COALESCE($4, user_story),
            story_key = CASE WHEN $4::text IS NULL THEN story_key ELSE $5 END,
            updated_at = $6
        WHERE id = $1
        RETURNING ` + selectColumns + `;
    `
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides a PostgreSQL implementation of schemas.ScenarioStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

var _ schemas.ScenarioStore = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureSchema creates the saved_scenarios table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure saved_scenarios schema: %w", err)
	}
	return nil
}

func (s *Store) GetAllSavedScenarios(ctx context.Context) ([]schemas.SavedScenario, error) {
	return s.query(ctx, sqlSelectAll)
}

func (s *Store) GetSavedScenariosByURL(ctx context.Context, url string) ([]schemas.SavedScenario, error) {
	return s.query(ctx, sqlSelectByURL, url)
}

// CreateSavedScenario inserts a scenario. It returns (nil, nil) when a
// scenario with the same title or an equivalent user story already exists
// for the URL.
func (s *Store) CreateSavedScenario(ctx context.Context, in schemas.SavedScenarioInput) (*schemas.SavedScenario, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	steps, err := encodeSteps(in.Steps)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, sqlInsert,
		uuid.NewString(), in.URL, in.Title, in.UserStory, storyKeyParam(in.UserStory), steps, s.now(),
	)
	saved, err := scanScenario(row)
	if errors.Is(err, pgx.ErrNoRows) {
		s.log.Info("Saved scenario already exists.", zap.String("url", in.URL), zap.String("title", in.Title))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert saved scenario: %w", err)
	}
	return saved, nil
}

// UpdateSavedScenario applies upd to the scenario with the given id. It
// returns (nil, nil) when no such scenario exists.
func (s *Store) UpdateSavedScenario(ctx context.Context, id string, upd schemas.SavedScenarioUpdate) (*schemas.SavedScenario, error) {
	if err := validateUpdate(upd); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	steps, err := encodeSteps(upd.Steps)
	if err != nil {
		return nil, err
	}
	var key *string
	if upd.UserStory != nil {
		key = storyKeyParam(*upd.UserStory)
	}

	row := s.pool.QueryRow(ctx, sqlUpdate, id, steps, upd.Title, upd.UserStory, key, s.now())
	saved, err := scanScenario(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case isUniqueViolation(err):
		return nil, fmt.Errorf("update %s: %w", id, ErrConflict)
	case err != nil:
		return nil, fmt.Errorf("failed to update saved scenario %s: %w", id, err)
	}
	return saved, nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]schemas.SavedScenario, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved scenarios: %w", err)
	}
	defer rows.Close()

	out := []schemas.SavedScenario{}
	for rows.Next() {
		saved, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved scenario row: %w", err)
		}
		out = append(out, *saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func scanScenario(row pgx.Row) (*schemas.SavedScenario, error) {
	var (
		saved schemas.SavedScenario
		steps []byte
	)
	if err := row.Scan(&saved.ID, &saved.URL, &saved.Title, &saved.UserStory, &steps, &saved.CreatedAt, &saved.UpdatedAt); err != nil {
		return nil, err
	}
	saved.Steps = []string{}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &saved.Steps); err != nil {
			return nil, fmt.Errorf("decode steps of %s: %w", saved.ID, err)
		}
	}
	return &saved, nil
}

func encodeSteps(steps []string) ([]byte, error) {
	if steps == nil {
		steps = []string{}
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	return b, nil
}

// storyKeyParam maps a blank story to NULL so that blank stories never collide.
func storyKeyParam(story string) *string {
	key := schemas.StoryKey(story)
	if key == "" {
		return nil
	}
	return &key
}

// validateInput requires a title. Scenarios without a URL share the empty URL
// and still dedupe by title.
func validateInput(in schemas.SavedScenarioInput) error {
	if in.Title == "" {
		return ErrInvalidScenario
	}
	return nil
}

// validateUpdate requires the replacement steps and rejects a blank title.
func validateUpdate(upd schemas.SavedScenarioUpdate) error {
	if upd.Steps == nil || (upd.Title != nil && *upd.Title == "") {
		return ErrInvalidScenario
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
