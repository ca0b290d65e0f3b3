package recommend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

type fixedService struct {
	got models.RecommendationQuery
	top []models.Recommendation
	err error
}

func (f *fixedService) TopPOIs(_ context.Context, q models.RecommendationQuery) ([]models.Recommendation, error) {
	f.got = q
	return f.top, f.err
}

func postRecommendations(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var err error
	c.Request, err = http.NewRequest(http.MethodPost, "/recommendations", strings.NewReader(body))
	require.NoError(t, err)
	c.Request.Header.Set("Content-Type", "application/json")
	h.Recommendations(c)
	return w
}

func TestRecommendations_ReturnsTopList(t *testing.T) {
	svc := &fixedService{top: []models.Recommendation{
		{ID: "poi_sol", Name: "Puerta del Sol", DistanceM: 23, Accessible: true, Short: "La plaza."},
	}}
	h := NewHandler(svc, zap.NewNop())

	w := postRecommendations(t, h, `{"user_id": "u1", "latitude": 40.4169, "longitude": -3.7035}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Top []models.Recommendation `json:"top"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Top, 1)
	assert.Equal(t, "poi_sol", resp.Top[0].ID)

	t.Run("defaults applied when radius and k are omitted", func(t *testing.T) {
		assert.Equal(t, defaultRadiusM, svc.got.RadiusM)
		assert.Equal(t, defaultK, svc.got.K)
	})
}

func TestRecommendations_HonorsExplicitRadiusAndK(t *testing.T) {
	svc := &fixedService{}
	h := NewHandler(svc, zap.NewNop())

	w := postRecommendations(t, h, `{"latitude": 40.4169, "longitude": -3.7035, "radius_m": 250, "k": 5, "pmr": true, "age_range": "4-6"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 250, svc.got.RadiusM)
	assert.Equal(t, 5, svc.got.K)
	assert.True(t, svc.got.PMR)
	require.NotNil(t, svc.got.AgeRange)
	assert.Equal(t, "4-6", *svc.got.AgeRange)
}

func TestRecommendations_EmptyResultIsEmptyArray(t *testing.T) {
	h := NewHandler(&fixedService{}, zap.NewNop())

	w := postRecommendations(t, h, `{"latitude": 40.4169, "longitude": -3.7035}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"top": []}`, w.Body.String())
}

func TestRecommendations_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation error is 400", models.ErrValidation, http.StatusBadRequest},
		{"storage unavailable is 503", models.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{"unknown error is 500", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&fixedService{err: tc.err}, zap.NewNop())
			w := postRecommendations(t, h, `{"latitude": 40.4169, "longitude": -3.7035}`)
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestRecommendations_MalformedBodyIs400(t *testing.T) {
	h := NewHandler(&fixedService{}, zap.NewNop())
	w := postRecommendations(t, h, `{"latitude": "not a number"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
