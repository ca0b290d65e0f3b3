package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/ranking"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

// PGXPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type PGXPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore is the PostGIS-backed geo-indexed backend. Candidate
// retrieval delegates to ST_DWithin over a GiST-indexed geography column,
// ordered by distance and capped like the Mongo backend, then re-scored by
// the shared ranking code. Schema is managed by the database package's
// migrations.
type PostgresStore struct {
	pool     PGXPool
	poisPath string
	ttlDays  int
	logger   *zap.Logger
}

func NewPostgresStore(pool PGXPool, poisPath string, ttlDays int, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		pool:     pool,
		poisPath: poisPath,
		ttlDays:  ttlDays,
		logger:   logger,
	}
}

// Init verifies connectivity; the schema itself is migrated when the pool
// is built.
func (s *PostgresStore) Init(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: postgres ping: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) SeedFromReferenceIfEmpty(ctx context.Context) error {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pois`).Scan(&count); err != nil {
		return fmt.Errorf("counting pois: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.SeedPOIs(ctx, loadReferenceOrFallback(s.poisPath, s.logger))
}

func (s *PostgresStore) SeedPOIs(ctx context.Context, pois []models.POI) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting seed transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range pois {
		_, err := tx.Exec(ctx, `
			INSERT INTO pois (id, name, latitude, longitude, location, kids_friendly, accessible, short, source)
			VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($4, $3), 4326)::geography, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				latitude = EXCLUDED.latitude,
				longitude = EXCLUDED.longitude,
				location = EXCLUDED.location,
				kids_friendly = EXCLUDED.kids_friendly,
				accessible = EXCLUDED.accessible,
				short = EXCLUDED.short,
				source = EXCLUDED.source
		`, p.ID, p.Name, p.Latitude, p.Longitude, p.KidsFriendly, p.Accessible, p.Short, p.Source)
		if err != nil {
			return fmt.Errorf("upserting poi %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	s.logger.Info("POI catalog seeded", zap.Int("count", len(pois)))
	return nil
}

// SaveLocation wraps the user upsert and the location insert in one
// transaction, so the two-step write is atomic on this backend.
func (s *PostgresStore) SaveLocation(ctx context.Context, upd models.LocationUpdate) error {
	ctx, span := otel.Tracer("storage.postgres").Start(ctx, "SaveLocation")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", upd.UserID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "begin failed")
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	mobility := upd.HasMobilityIssues
	if err := upsertUserPgx(ctx, tx, upd.UserID, models.UserPatch{
		ProfileType:       upd.ProfileType,
		HasMobilityIssues: &mobility,
		AgeRange:          upd.AgeRange,
	}); err != nil {
		span.SetStatus(codes.Error, "user upsert failed")
		return err
	}

	ttl := upd.TTLDays
	if ttl <= 0 {
		ttl = s.ttlDays
	}
	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO user_locations (id, user_id, latitude, longitude, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), upd.UserID, upd.Latitude, upd.Longitude, now, now.AddDate(0, 0, ttl))
	if err != nil {
		span.SetStatus(codes.Error, "location insert failed")
		return fmt.Errorf("inserting location: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) TopPOIs(ctx context.Context, q models.RecommendationQuery) ([]models.Recommendation, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("storage.postgres").Start(ctx, "TopPOIs")
	defer span.End()
	span.SetAttributes(
		attribute.Int("query.radius_m", q.RadiusM),
		attribute.Int("query.k", q.K),
	)

	query, args, err := psql.
		Select("id", "name", "latitude", "longitude", "kids_friendly", "accessible", "COALESCE(short, '')").
		Column(sq.Expr("ST_Distance(location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography) AS distance_m",
			q.Longitude, q.Latitude)).
		From("pois").
		Where(sq.Expr("ST_DWithin(location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)",
			q.Longitude, q.Latitude, q.RadiusM)).
		OrderBy("distance_m ASC").
		Limit(geoCandidateLimit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building geo query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.SetStatus(codes.Error, "geo query failed")
		return nil, fmt.Errorf("geo query: %w", err)
	}
	defer rows.Close()

	var candidates []ranking.Candidate
	for rows.Next() {
		var p models.POI
		var distance float64
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.KidsFriendly, &p.Accessible, &p.Short, &distance); err != nil {
			return nil, fmt.Errorf("scanning poi: %w", err)
		}
		candidates = append(candidates, ranking.Candidate{POI: p, DistanceM: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating geo results: %w", err)
	}

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return ranking.Rank(candidates, q.PMR, q.AgeRange, q.K), nil
}

func (s *PostgresStore) Summary(ctx context.Context) (models.StoreSummary, error) {
	var sum models.StoreSummary
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM pois),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM user_locations),
			(SELECT COUNT(*) FROM chat_turns)
	`).Scan(&sum.POIs, &sum.Users, &sum.Locations, &sum.ChatTurns)
	if err != nil {
		return models.StoreSummary{}, fmt.Errorf("counting rows: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) PruneExpired(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("storage.postgres").Start(ctx, "PruneExpired")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `DELETE FROM user_locations WHERE expires_at < now()`)
	if err != nil {
		span.SetStatus(codes.Error, "prune failed")
		return 0, fmt.Errorf("pruning expired locations: %w", err)
	}
	span.SetAttributes(attribute.Int64("pruned", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) EnsureUser(ctx context.Context, userID string, patch models.UserPatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertUserPgx(ctx, tx, userID, patch); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertUserPgx(ctx context.Context, tx pgx.Tx, userID string, patch models.UserPatch) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, profile_type, has_mobility_issues, age_range, created_at)
		VALUES ($1, $2, COALESCE($3, FALSE), $4, now())
		ON CONFLICT (id) DO UPDATE SET
			profile_type = COALESCE(EXCLUDED.profile_type, users.profile_type),
			has_mobility_issues = COALESCE($3, users.has_mobility_issues),
			age_range = COALESCE(EXCLUDED.age_range, users.age_range)
	`, userID, patch.ProfileType, patch.HasMobilityIssues, patch.AgeRange)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) SaveChatTurn(ctx context.Context, userID, prompt, response, model string) (string, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_turns (id, user_id, prompt, response, model, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), now())
	`, id, userID, prompt, response, model)
	if err != nil {
		return "", fmt.Errorf("inserting chat turn: %w", err)
	}
	return id.String(), nil
}

func (s *PostgresStore) GetChatHistory(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error) {
	if limit <= 0 {
		limit = defaultChatHistoryLimit
	}

	query, args, err := psql.
		Select("id", "user_id", "prompt", "response", "COALESCE(model, '')", "created_at").
		From("chat_turns").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		var id uuid.UUID
		if err := rows.Scan(&id, &t.UserID, &t.Prompt, &t.Response, &t.Model, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat turn: %w", err)
		}
		t.ID = id.String()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *PostgresStore) GetChatTurn(ctx context.Context, turnID string) (*models.ChatTurn, error) {
	id, err := uuid.Parse(turnID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	var t models.ChatTurn
	var rowID uuid.UUID
	err = s.pool.QueryRow(ctx, `
		SELECT id, user_id, prompt, response, COALESCE(model, ''), created_at
		FROM chat_turns
		WHERE id = $1
	`, id).Scan(&rowID, &t.UserID, &t.Prompt, &t.Response, &t.Model, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up chat turn: %w", err)
	}
	t.ID = rowID.String()
	return &t, nil
}

func (s *PostgresStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}
