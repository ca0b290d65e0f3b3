package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

// stubStore records SaveLocation calls and serves canned prune results.
type stubStore struct {
	saved      []models.LocationUpdate
	saveErr    error
	pruned     int64
	pruneErr   error
	pruneCalls int
}

func (s *stubStore) Init(context.Context) error                     { return nil }
func (s *stubStore) SeedFromReferenceIfEmpty(context.Context) error { return nil }
func (s *stubStore) SeedPOIs(context.Context, []models.POI) error   { return nil }

func (s *stubStore) SaveLocation(_ context.Context, upd models.LocationUpdate) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, upd)
	return nil
}

func (s *stubStore) TopPOIs(context.Context, models.RecommendationQuery) ([]models.Recommendation, error) {
	return nil, nil
}

func (s *stubStore) Summary(context.Context) (models.StoreSummary, error) {
	return models.StoreSummary{}, nil
}

func (s *stubStore) PruneExpired(context.Context) (int64, error) {
	s.pruneCalls++
	return s.pruned, s.pruneErr
}

func (s *stubStore) EnsureUser(context.Context, string, models.UserPatch) error { return nil }

func (s *stubStore) SaveChatTurn(context.Context, string, string, string, string) (string, error) {
	return "", nil
}

func (s *stubStore) GetChatHistory(context.Context, string, int) ([]models.ChatTurn, error) {
	return nil, nil
}

func (s *stubStore) GetChatTurn(context.Context, string) (*models.ChatTurn, error) {
	return nil, models.ErrNotFound
}
func (s *stubStore) Close(context.Context) error { return nil }

func postLocation(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var err error
	c.Request, err = http.NewRequest(http.MethodPost, "/locations", strings.NewReader(body))
	require.NoError(t, err)
	c.Request.Header.Set("Content-Type", "application/json")
	h.SaveLocation(c)
	return w
}

func TestSaveLocation_PersistsUpdate(t *testing.T) {
	store := &stubStore{}
	h := NewHandler(store, zap.NewNop())

	w := postLocation(t, h, `{"user_id": "u1", "latitude": 40.4169, "longitude": -3.7035, "ttl_days": 7, "profile_type": "parent", "pmr": true, "age_range": "4-6"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true}`, w.Body.String())

	require.Len(t, store.saved, 1)
	upd := store.saved[0]
	assert.Equal(t, "u1", upd.UserID)
	assert.Equal(t, 7, upd.TTLDays)
	assert.True(t, upd.HasMobilityIssues)
	require.NotNil(t, upd.ProfileType)
	assert.Equal(t, "parent", *upd.ProfileType)
	require.NotNil(t, upd.AgeRange)
	assert.Equal(t, "4-6", *upd.AgeRange)
}

func TestSaveLocation_ZeroCoordinatesAreValid(t *testing.T) {
	store := &stubStore{}
	h := NewHandler(store, zap.NewNop())

	w := postLocation(t, h, `{"user_id": "u1", "latitude": 0, "longitude": 0}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.saved, 1)
}

func TestSaveLocation_Rejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing user_id", `{"latitude": 40.4169, "longitude": -3.7035}`},
		{"latitude out of range", `{"user_id": "u1", "latitude": 91, "longitude": -3.7035}`},
		{"longitude out of range", `{"user_id": "u1", "latitude": 40.4169, "longitude": 181}`},
		{"malformed body", `{"user_id":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubStore{}
			h := NewHandler(store, zap.NewNop())
			w := postLocation(t, h, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.saved)
		})
	}
}

func TestSaveLocation_StorageUnavailableIs503(t *testing.T) {
	h := NewHandler(&stubStore{saveErr: models.ErrStorageUnavailable}, zap.NewNop())
	w := postLocation(t, h, `{"user_id": "u1", "latitude": 40.4169, "longitude": -3.7035}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPruner_PruneNow(t *testing.T) {
	store := &stubStore{pruned: 2}
	p := NewPruner(store, time.Hour, zap.NewNop())

	n, err := p.PruneNow(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 1, store.pruneCalls)
}

func TestPruner_RunStopsOnContextCancel(t *testing.T) {
	store := &stubStore{}
	p := NewPruner(store, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
	assert.GreaterOrEqual(t, store.pruneCalls, 1)
}
