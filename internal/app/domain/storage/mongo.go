package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/ranking"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/pkg/config"
)

// MongoStore is the document/geo-indexed backend. Candidate retrieval rides
// the 2dsphere index through $geoNear (nearest geoCandidateLimit inside the
// radius) and the shared ranking code re-scores the returned set. The TTL
// index on user_locations mirrors manual pruning.
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	poisPath string
	ttlDays  int
	logger   *zap.Logger
}

// geoPoint is a GeoJSON point; coordinates are [lon, lat].
type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type poiDoc struct {
	ID           string   `bson:"_id"`
	Name         string   `bson:"name"`
	Loc          geoPoint `bson:"loc"`
	KidsFriendly bool     `bson:"kids_friendly"`
	Accessible   bool     `bson:"accessible"`
	Short        string   `bson:"short,omitempty"`
	Source       string   `bson:"source,omitempty"`
	DistanceM    float64  `bson:"distance_m,omitempty"`
}

type chatTurnDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Prompt    string             `bson:"prompt"`
	Response  string             `bson:"response"`
	Model     string             `bson:"model,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

// NewMongoStore connects to the configured deployment. A short server
// selection timeout makes a bad URI fail fast at startup instead of hanging
// the first request.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig, poisPath string, ttlDays int, logger *zap.Logger) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: MONGODB_URI not set", models.ErrConfiguration)
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to mongo: %v", models.ErrStorageUnavailable, err)
	}

	return &MongoStore{
		client:   client,
		db:       client.Database(cfg.DB),
		poisPath: poisPath,
		ttlDays:  ttlDays,
		logger:   logger,
	}, nil
}

// Init pings the deployment and creates the indexes: TTL on location
// expiry, 2dsphere on POI location, unique user id and the chat history
// sort.
func (s *MongoStore) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: mongo ping: %v", models.ErrStorageUnavailable, err)
	}

	indexes := []struct {
		coll  string
		model mongo.IndexModel
	}{
		{"user_locations", mongo.IndexModel{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}},
		{"pois", mongo.IndexModel{
			Keys: bson.D{{Key: "loc", Value: "2dsphere"}},
		}},
		{"users", mongo.IndexModel{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{"chat_logs", mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		}},
	}
	for _, idx := range indexes {
		if _, err := s.db.Collection(idx.coll).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("creating %s index: %w", idx.coll, err)
		}
	}
	return nil
}

func (s *MongoStore) SeedFromReferenceIfEmpty(ctx context.Context) error {
	count, err := s.db.Collection("pois").EstimatedDocumentCount(ctx)
	if err != nil {
		return fmt.Errorf("counting pois: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.SeedPOIs(ctx, loadReferenceOrFallback(s.poisPath, s.logger))
}

func (s *MongoStore) SeedPOIs(ctx context.Context, pois []models.POI) error {
	if len(pois) == 0 {
		return nil
	}

	ops := make([]mongo.WriteModel, 0, len(pois))
	for _, p := range pois {
		ops = append(ops, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetUpdate(bson.M{"$set": bson.M{
				"name":          p.Name,
				"loc":           geoPoint{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}},
				"kids_friendly": p.KidsFriendly,
				"accessible":    p.Accessible,
				"short":         p.Short,
				"source":        p.Source,
			}}).
			SetUpsert(true))
	}
	if _, err := s.db.Collection("pois").BulkWrite(ctx, ops); err != nil {
		return fmt.Errorf("upserting pois: %w", err)
	}
	s.logger.Info("POI catalog seeded", zap.Int("count", len(pois)))
	return nil
}

// SaveLocation is a two-step write (user upsert, then location insert)
// without a cross-document transaction. A failure between the steps can
// leave the user patched without a new location row; the user patch is
// idempotent so the race is benign.
func (s *MongoStore) SaveLocation(ctx context.Context, upd models.LocationUpdate) error {
	mobility := upd.HasMobilityIssues
	if err := s.EnsureUser(ctx, upd.UserID, models.UserPatch{
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
	_, err := s.db.Collection("user_locations").InsertOne(ctx, bson.M{
		"user_id":    upd.UserID,
		"latitude":   upd.Latitude,
		"longitude":  upd.Longitude,
		"created_at": now,
		"expires_at": now.AddDate(0, 0, ttl),
	})
	if err != nil {
		return fmt.Errorf("inserting location: %w", err)
	}
	return nil
}

func (s *MongoStore) TopPOIs(ctx context.Context, q models.RecommendationQuery) ([]models.Recommendation, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: geoPoint{Type: "Point", Coordinates: []float64{q.Longitude, q.Latitude}}},
			{Key: "distanceField", Value: "distance_m"},
			{Key: "maxDistance", Value: float64(q.RadiusM)},
			{Key: "spherical", Value: true},
		}}},
		bson.D{{Key: "$limit", Value: geoCandidateLimit}},
	}

	cur, err := s.db.Collection("pois").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("geo query: %w", err)
	}
	defer cur.Close(ctx)

	var candidates []ranking.Candidate
	for cur.Next(ctx) {
		var d poiDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decoding poi: %w", err)
		}
		candidates = append(candidates, ranking.Candidate{
			POI: models.POI{
				ID:           d.ID,
				Name:         d.Name,
				Latitude:     d.Loc.lat(),
				Longitude:    d.Loc.lon(),
				KidsFriendly: d.KidsFriendly,
				Accessible:   d.Accessible,
				Short:        d.Short,
			},
			DistanceM: d.DistanceM,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterating geo results: %w", err)
	}

	return ranking.Rank(candidates, q.PMR, q.AgeRange, q.K), nil
}

func (s *MongoStore) Summary(ctx context.Context) (models.StoreSummary, error) {
	var sum models.StoreSummary
	counts := []struct {
		coll string
		dest *int64
	}{
		{"pois", &sum.POIs},
		{"users", &sum.Users},
		{"user_locations", &sum.Locations},
		{"chat_logs", &sum.ChatTurns},
	}
	for _, c := range counts {
		n, err := s.db.Collection(c.coll).EstimatedDocumentCount(ctx)
		if err != nil {
			return models.StoreSummary{}, fmt.Errorf("counting %s: %w", c.coll, err)
		}
		*c.dest = n
	}
	return sum, nil
}

// PruneExpired deletes past-expiry rows by hand even though the TTL index
// reaps them too; the Mongo TTL monitor only runs periodically and freshly
// created indexes lag behind.
func (s *MongoStore) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.Collection("user_locations").DeleteMany(ctx,
		bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("pruning expired locations: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) EnsureUser(ctx context.Context, userID string, patch models.UserPatch) error {
	set := bson.M{}
	if patch.ProfileType != nil {
		set["profile_type"] = *patch.ProfileType
	}
	if patch.HasMobilityIssues != nil {
		set["has_mobility_issues"] = *patch.HasMobilityIssues
	}
	if patch.AgeRange != nil {
		set["age_range"] = *patch.AgeRange
	}

	update := bson.M{
		"$setOnInsert": bson.M{"id": userID, "created_at": time.Now().UTC()},
	}
	if len(set) > 0 {
		update["$set"] = set
	}

	_, err := s.db.Collection("users").UpdateOne(ctx,
		bson.M{"id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", userID, err)
	}
	return nil
}

func (s *MongoStore) SaveChatTurn(ctx context.Context, userID, prompt, response, model string) (string, error) {
	res, err := s.db.Collection("chat_logs").InsertOne(ctx, chatTurnDoc{
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("inserting chat turn: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) GetChatHistory(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error) {
	if limit <= 0 {
		limit = defaultChatHistoryLimit
	}
	cur, err := s.db.Collection("chat_logs").Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer cur.Close(ctx)

	var turns []models.ChatTurn
	for cur.Next(ctx) {
		var d chatTurnDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decoding chat turn: %w", err)
		}
		turns = append(turns, d.toModel())
	}
	return turns, cur.Err()
}

func (s *MongoStore) GetChatTurn(ctx context.Context, turnID string) (*models.ChatTurn, error) {
	oid, err := primitive.ObjectIDFromHex(turnID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	var d chatTurnDoc
	err = s.db.Collection("chat_logs").FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up chat turn: %w", err)
	}
	t := d.toModel()
	return &t, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (d chatTurnDoc) toModel() models.ChatTurn {
	return models.ChatTurn{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Prompt:    d.Prompt,
		Response:  d.Response,
		Model:     d.Model,
		CreatedAt: d.CreatedAt,
	}
}

func (g geoPoint) lon() float64 {
	if len(g.Coordinates) > 0 {
		return g.Coordinates[0]
	}
	return 0
}

func (g geoPoint) lat() float64 {
	if len(g.Coordinates) > 1 {
		return g.Coordinates[1]
	}
	return 0
}
