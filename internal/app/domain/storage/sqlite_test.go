package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), filepath.Join(dir, "missing.json"), 3, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func strPtr(s string) *string { return &s }

func TestSQLiteStore_InitIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Init(context.Background()))
	assert.NoError(t, s.Init(context.Background()))
}

func TestSQLiteStore_SeedFromReferenceIfEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("missing reference file falls back to built-in catalog", func(t *testing.T) {
		require.NoError(t, s.SeedFromReferenceIfEmpty(ctx))
		sum, err := s.Summary(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, sum.POIs)
	})

	t.Run("does not reseed a non-empty catalog", func(t *testing.T) {
		require.NoError(t, s.SeedPOIs(ctx, []models.POI{{
			ID: "poi_extra", Name: "Extra", Latitude: 40, Longitude: -3,
			KidsFriendly: true, Accessible: true,
		}}))
		require.NoError(t, s.SeedFromReferenceIfEmpty(ctx))

		sum, err := s.Summary(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, sum.POIs)
	})
}

func TestSQLiteStore_SeedPOIsUpsertsByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := models.POI{ID: "poi_sol", Name: "Puerta del Sol", Latitude: 40.4169, Longitude: -3.7035, KidsFriendly: true, Accessible: true}
	require.NoError(t, s.SeedPOIs(ctx, []models.POI{p}))

	p.Name = "Puerta del Sol (renamed)"
	require.NoError(t, s.SeedPOIs(ctx, []models.POI{p}))

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.POIs)

	top, err := s.TopPOIs(ctx, models.RecommendationQuery{Latitude: 40.4169, Longitude: -3.7035, RadiusM: 100, K: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Puerta del Sol (renamed)", top[0].Name)
}

func TestSQLiteStore_TopPOIs_RadiusExcludesRemote(t *testing.T) {
	// Seed a central POI and a remote one, query with a tight radius.
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SeedPOIs(ctx, []models.POI{
		{ID: "poi_sol", Name: "Puerta del Sol", Latitude: 40.4169, Longitude: -3.7035, KidsFriendly: true, Accessible: true},
		{ID: "poi_tower", Name: "Remote Tower", Latitude: 40.5000, Longitude: -3.9000, KidsFriendly: false, Accessible: false},
	}))

	top, err := s.TopPOIs(ctx, models.RecommendationQuery{
		Latitude: 40.4170, Longitude: -3.7036, RadiusM: 1000, K: 2,
	})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "poi_sol", top[0].ID)
}

func TestSQLiteStore_TopPOIs_PMRRanksAccessibleFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SeedPOIs(ctx, []models.POI{
		{ID: "poi_sol", Name: "Puerta del Sol", Latitude: 40.4169, Longitude: -3.7035, KidsFriendly: true, Accessible: true},
		{ID: "poi_tower", Name: "Remote Tower", Latitude: 40.5000, Longitude: -3.9000, KidsFriendly: false, Accessible: false},
	}))

	top, err := s.TopPOIs(ctx, models.RecommendationQuery{
		Latitude: 40.4170, Longitude: -3.7036, RadiusM: 50000, PMR: true, K: 2,
	})
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "poi_sol", top[0].ID)
	assert.Equal(t, "poi_tower", top[1].ID)
}

func TestSQLiteStore_TopPOIs_EmptyCatalogIsEmptyList(t *testing.T) {
	s := newTestStore(t)
	top, err := s.TopPOIs(context.Background(), models.RecommendationQuery{
		Latitude: 40.4169, Longitude: -3.7035, RadiusM: 1000, K: 3,
	})
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestSQLiteStore_TopPOIs_ValidatesInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		q    models.RecommendationQuery
	}{
		{"negative radius", models.RecommendationQuery{Latitude: 40, Longitude: -3, RadiusM: -1, K: 3}},
		{"zero k", models.RecommendationQuery{Latitude: 40, Longitude: -3, RadiusM: 1000, K: 0}},
		{"latitude out of range", models.RecommendationQuery{Latitude: 91, Longitude: -3, RadiusM: 1000, K: 3}},
		{"longitude out of range", models.RecommendationQuery{Latitude: 40, Longitude: -181, RadiusM: 1000, K: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.TopPOIs(ctx, tc.q)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestSQLiteStore_SaveLocation_ZeroTTLDefaultsToThreeDays(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveLocation(ctx, models.LocationUpdate{
		UserID: "u1", Latitude: 40.4169, Longitude: -3.7035, TTLDays: 0,
	}))

	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM user_locations WHERE user_id = ?`, "u1").Scan(&expiresAt)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 3), expiresAt, time.Minute)

	pruned, err := s.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestSQLiteStore_PruneExpired_RemovesOnlyExpiredRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveLocation(ctx, models.LocationUpdate{
		UserID: "u1", Latitude: 40.4169, Longitude: -3.7035,
	}))
	require.NoError(t, s.SaveLocation(ctx, models.LocationUpdate{
		UserID: "u1", Latitude: 40.4200, Longitude: -3.7000,
	}))

	// Backdate one row past its expiry.
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_locations SET expires_at = ?
		WHERE id = (SELECT id FROM user_locations LIMIT 1)
	`, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	pruned, err := s.PruneExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.Locations)
}

func TestSQLiteStore_EnsureUser_PatchWithoutDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveLocation(ctx, models.LocationUpdate{
		UserID: "u2", Latitude: 40.4169, Longitude: -3.7035,
	}))
	require.NoError(t, s.EnsureUser(ctx, "u2", models.UserPatch{ProfileType: strPtr("parent")}))

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.Users)

	var profileType string
	err = s.db.QueryRowContext(ctx, `SELECT profile_type FROM users WHERE id = ?`, "u2").Scan(&profileType)
	require.NoError(t, err)
	assert.Equal(t, "parent", profileType)
}

func TestSQLiteStore_EnsureUser_NilFieldsLeftUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mobility := true
	require.NoError(t, s.EnsureUser(ctx, "u3", models.UserPatch{
		ProfileType:       strPtr("parent"),
		HasMobilityIssues: &mobility,
		AgeRange:          strPtr("4-6"),
	}))
	require.NoError(t, s.EnsureUser(ctx, "u3", models.UserPatch{AgeRange: strPtr("7-9")}))

	var profileType, ageRange string
	var hasMobility bool
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_type, has_mobility_issues, age_range FROM users WHERE id = ?`, "u3").
		Scan(&profileType, &hasMobility, &ageRange)
	require.NoError(t, err)
	assert.Equal(t, "parent", profileType)
	assert.True(t, hasMobility)
	assert.Equal(t, "7-9", ageRange)
}

func TestSQLiteStore_ChatTurns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.EnsureUser(ctx, "u1", models.UserPatch{}))

	id1, err := s.SaveChatTurn(ctx, "u1", "hola", "¡Hola!", "gemini-pro")
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	// Second turn strictly later so the newest-first order is observable.
	time.Sleep(5 * time.Millisecond)
	id2, err := s.SaveChatTurn(ctx, "u1", "¿dónde estoy?", "En Madrid.", "")
	require.NoError(t, err)

	t.Run("history is newest first", func(t *testing.T) {
		turns, err := s.GetChatHistory(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, id2, turns[0].ID)
		assert.Equal(t, id1, turns[1].ID)
	})

	t.Run("limit caps the history", func(t *testing.T) {
		turns, err := s.GetChatHistory(ctx, "u1", 1)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, id2, turns[0].ID)
	})

	t.Run("get by id round-trips", func(t *testing.T) {
		turn, err := s.GetChatTurn(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, "hola", turn.Prompt)
		assert.Equal(t, "¡Hola!", turn.Response)
		assert.Equal(t, "gemini-pro", turn.Model)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := s.GetChatTurn(ctx, "nope")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("history of unknown user is empty", func(t *testing.T) {
		turns, err := s.GetChatHistory(ctx, "ghost", 10)
		require.NoError(t, err)
		assert.Empty(t, turns)
	})
}
