// Package storage defines the persistence capability set of the guide
// backend and its interchangeable implementations (SQLite, MongoDB,
// Postgres/PostGIS). Candidate retrieval differs per backend but every
// implementation scores candidates through the shared ranking package, so
// the same data always produces the same ordering.
package storage

import (
	"context"
	"fmt"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

// Store is the capability set any backend must satisfy. Implementations own
// their connection pool; no other component opens a second connection to
// the same backing store.
type Store interface {
	// Init performs idempotent setup (tables, collections, indexes).
	Init(ctx context.Context) error

	// SeedFromReferenceIfEmpty loads the reference JSON (or the built-in
	// fallback list when the file is missing or malformed) and seeds the
	// catalog, but only when the catalog has no records yet.
	SeedFromReferenceIfEmpty(ctx context.Context) error

	// SeedPOIs upserts exactly the given records, keyed by POI id.
	SeedPOIs(ctx context.Context, pois []models.POI) error

	// SaveLocation upserts the user (patching non-nil profile hints) and
	// appends a new location row expiring TTLDays from now. A TTLDays of
	// zero or less falls back to the configured default.
	SaveLocation(ctx context.Context, upd models.LocationUpdate) error

	// TopPOIs returns at most q.K recommendations ordered best-first.
	// Zero candidates within radius is an empty list, not an error.
	TopPOIs(ctx context.Context, q models.RecommendationQuery) ([]models.Recommendation, error)

	// Summary returns approximate per-entity counts for diagnostics.
	Summary(ctx context.Context) (models.StoreSummary, error)

	// PruneExpired deletes all location rows whose expiry has passed and
	// reports how many were removed.
	PruneExpired(ctx context.Context) (int64, error)

	// EnsureUser creates the user if absent or patches the non-nil
	// fields if present.
	EnsureUser(ctx context.Context, userID string, patch models.UserPatch) error

	// SaveChatTurn appends a prompt/response pair and returns its id.
	SaveChatTurn(ctx context.Context, userID, prompt, response, model string) (string, error)

	// GetChatHistory returns up to limit turns for the user, newest
	// first.
	GetChatHistory(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error)

	// GetChatTurn looks a turn up by id; absent ids yield
	// models.ErrNotFound.
	GetChatTurn(ctx context.Context, turnID string) (*models.ChatTurn, error)

	// Close releases the backing connection/pool.
	Close(ctx context.Context) error
}

// geoCandidateLimit caps the candidate set the geo-indexed backends fetch
// before scoring. POIs ranked past this point by raw distance are not
// considered even when inside the radius; a known approximation, not a
// contract.
const geoCandidateLimit = 50

const defaultChatHistoryLimit = 20

// validateQuery rejects out-of-contract recommendation inputs before any
// backend work happens.
func validateQuery(q models.RecommendationQuery) error {
	if q.RadiusM < 0 {
		return fmt.Errorf("%w: radius_m must not be negative", models.ErrValidation)
	}
	if q.K <= 0 {
		return fmt.Errorf("%w: k must be positive", models.ErrValidation)
	}
	if q.Latitude < -90 || q.Latitude > 90 || q.Longitude < -180 || q.Longitude > 180 {
		return fmt.Errorf("%w: coordinates out of range", models.ErrValidation)
	}
	return nil
}
