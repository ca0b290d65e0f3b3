package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/geo"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/ranking"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

// SQLiteStore is the relational/local backend. It keeps all four entities
// in a single file-backed database and computes recommendations by loading
// the full catalog and scoring it in application code.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	poisPath string
	ttlDays  int
	logger   *zap.Logger
}

// NewSQLiteStore opens (or creates) the database file. WAL mode keeps the
// single-writer store friendly to concurrent readers.
func NewSQLiteStore(path, poisPath string, ttlDays int, logger *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory: %v", models.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", models.ErrStorageUnavailable, path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %v", models.ErrStorageUnavailable, err)
	}

	return &SQLiteStore{
		db:       db,
		path:     path,
		poisPath: poisPath,
		ttlDays:  ttlDays,
		logger:   logger,
	}, nil
}

// Init creates the schema. Safe to call repeatedly.
func (s *SQLiteStore) Init(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			profile_type TEXT,
			has_mobility_issues INTEGER NOT NULL DEFAULT 0,
			age_range TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_locations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_locations_expires_at ON user_locations(expires_at)`,
		`CREATE TABLE IF NOT EXISTS pois (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			kids_friendly INTEGER NOT NULL DEFAULT 1,
			accessible INTEGER NOT NULL DEFAULT 1,
			short TEXT,
			source TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			model TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_user_created ON chat_turns(user_id, created_at DESC)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SeedFromReferenceIfEmpty(ctx context.Context) error {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pois`).Scan(&count); err != nil {
		return fmt.Errorf("counting pois: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.SeedPOIs(ctx, loadReferenceOrFallback(s.poisPath, s.logger))
}

func (s *SQLiteStore) SeedPOIs(ctx context.Context, pois []models.POI) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range pois {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pois (id, name, latitude, longitude, kids_friendly, accessible, short, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				kids_friendly = excluded.kids_friendly,
				accessible = excluded.accessible,
				short = excluded.short,
				source = excluded.source
		`, p.ID, p.Name, p.Latitude, p.Longitude, p.KidsFriendly, p.Accessible, p.Short, p.Source)
		if err != nil {
			return fmt.Errorf("upserting poi %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	s.logger.Info("POI catalog seeded", zap.Int("count", len(pois)))
	return nil
}

func (s *SQLiteStore) SaveLocation(ctx context.Context, upd models.LocationUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	mobility := upd.HasMobilityIssues
	if err := upsertUserTx(ctx, tx, upd.UserID, models.UserPatch{
		ProfileType:       upd.ProfileType,
		HasMobilityIssues: &mobility,
		AgeRange:          upd.AgeRange,
	}); err != nil {
		return err
	}

	ttl := upd.TTLDays
	if ttl <= 0 {
		ttl = s.ttlDays
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_locations (id, user_id, latitude, longitude, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), upd.UserID, upd.Latitude, upd.Longitude, now, now.AddDate(0, 0, ttl))
	if err != nil {
		return fmt.Errorf("inserting location: %w", err)
	}

	return tx.Commit()
}

// TopPOIs loads the whole catalog and filters/scores it in memory. The
// catalog is small and static, so the full scan is the exact variant of
// candidate selection.
func (s *SQLiteStore) TopPOIs(ctx context.Context, q models.RecommendationQuery) ([]models.Recommendation, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, latitude, longitude, kids_friendly, accessible, short
		FROM pois
	`)
	if err != nil {
		return nil, fmt.Errorf("querying pois: %w", err)
	}
	defer rows.Close()

	var candidates []ranking.Candidate
	for rows.Next() {
		var p models.POI
		var short sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.KidsFriendly, &p.Accessible, &short); err != nil {
			return nil, fmt.Errorf("scanning poi: %w", err)
		}
		p.Short = short.String

		d := geo.DistanceMeters(q.Latitude, q.Longitude, p.Latitude, p.Longitude)
		if d > float64(q.RadiusM) {
			continue
		}
		candidates = append(candidates, ranking.Candidate{POI: p, DistanceM: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pois: %w", err)
	}

	return ranking.Rank(candidates, q.PMR, q.AgeRange, q.K), nil
}

func (s *SQLiteStore) Summary(ctx context.Context) (models.StoreSummary, error) {
	var sum models.StoreSummary
	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM pois`, &sum.POIs},
		{`SELECT COUNT(*) FROM users`, &sum.Users},
		{`SELECT COUNT(*) FROM user_locations`, &sum.Locations},
		{`SELECT COUNT(*) FROM chat_turns`, &sum.ChatTurns},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return models.StoreSummary{}, fmt.Errorf("counting rows: %w", err)
		}
	}
	return sum, nil
}

func (s *SQLiteStore) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_locations WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning expired locations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading pruned count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, userID string, patch models.UserPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertUserTx(ctx, tx, userID, patch); err != nil {
		return err
	}
	return tx.Commit()
}

// upsertUserTx creates the user on first sight or patches the non-nil
// fields of an existing record.
func upsertUserTx(ctx context.Context, tx *sql.Tx, userID string, patch models.UserPatch) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		mobility := false
		if patch.HasMobilityIssues != nil {
			mobility = *patch.HasMobilityIssues
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, profile_type, has_mobility_issues, age_range, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, userID, nullableString(patch.ProfileType), mobility, nullableString(patch.AgeRange), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("inserting user %s: %w", userID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("looking up user %s: %w", userID, err)
	}

	if patch.ProfileType != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET profile_type = ? WHERE id = ?`, *patch.ProfileType, userID); err != nil {
			return fmt.Errorf("patching profile_type: %w", err)
		}
	}
	if patch.HasMobilityIssues != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET has_mobility_issues = ? WHERE id = ?`, *patch.HasMobilityIssues, userID); err != nil {
			return fmt.Errorf("patching has_mobility_issues: %w", err)
		}
	}
	if patch.AgeRange != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET age_range = ? WHERE id = ?`, *patch.AgeRange, userID); err != nil {
			return fmt.Errorf("patching age_range: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveChatTurn(ctx context.Context, userID, prompt, response, model string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, user_id, prompt, response, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, userID, prompt, response, nullString(model), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("inserting chat turn: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetChatHistory(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error) {
	if limit <= 0 {
		limit = defaultChatHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, prompt, response, model, created_at
		FROM chat_turns
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		t, err := scanChatTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) GetChatTurn(ctx context.Context, turnID string) (*models.ChatTurn, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, prompt, response, model, created_at
		FROM chat_turns
		WHERE id = ?
	`, turnID)

	t, err := scanChatTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) Close(_ context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChatTurn(row rowScanner) (models.ChatTurn, error) {
	var t models.ChatTurn
	var model sql.NullString
	var createdAt sql.NullTime
	if err := row.Scan(&t.ID, &t.UserID, &t.Prompt, &t.Response, &model, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ChatTurn{}, sql.ErrNoRows
		}
		return models.ChatTurn{}, fmt.Errorf("scanning chat turn: %w", err)
	}
	t.Model = model.String
	if createdAt.Valid {
		t.CreatedAt = createdAt.Time
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
