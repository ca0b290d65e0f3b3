package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

// seedRecord is the wire shape of one entry of the reference JSON file.
// kids_friendly and accessible default to true when absent.
type seedRecord struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	KidsFriendly *bool   `json:"kids_friendly"`
	Accessible   *bool   `json:"accessible"`
	Short        string  `json:"short"`
}

// fallbackPOIs is the built-in minimal catalog used when the reference file
// is missing, empty or malformed.
func fallbackPOIs() []models.POI {
	return []models.POI{
		{
			ID:           "poi_casa_perez",
			Name:         "Casa Museo del Ratón Pérez",
			Latitude:     40.4179,
			Longitude:    -3.7065,
			KidsFriendly: true,
			Accessible:   true,
			Short:        "Pequeño museo dedicado al famoso ratoncito.",
		},
		{
			ID:           "poi_puerta_sol",
			Name:         "Puerta del Sol",
			Latitude:     40.4169,
			Longitude:    -3.7035,
			KidsFriendly: true,
			Accessible:   true,
			Short:        "La plaza más célebre de Madrid.",
		},
	}
}

// loadReference reads and parses the reference JSON file into POI records.
func loadReference(path string) ([]models.POI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", models.ErrSeedDataInvalid, path, err)
	}

	var records []seedRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", models.ErrSeedDataInvalid, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s holds no records", models.ErrSeedDataInvalid, path)
	}

	pois := make([]models.POI, 0, len(records))
	for _, r := range records {
		p := models.POI{
			ID:           r.ID,
			Name:         r.Name,
			Latitude:     r.Lat,
			Longitude:    r.Lon,
			KidsFriendly: true,
			Accessible:   true,
			Short:        r.Short,
		}
		if r.KidsFriendly != nil {
			p.KidsFriendly = *r.KidsFriendly
		}
		if r.Accessible != nil {
			p.Accessible = *r.Accessible
		}
		pois = append(pois, p)
	}
	return pois, nil
}

// loadReferenceOrFallback degrades bad seed data to the built-in list
// instead of failing the caller. The problem is logged, not raised.
func loadReferenceOrFallback(path string, logger *zap.Logger) []models.POI {
	pois, err := loadReference(path)
	if err != nil {
		logger.Warn("Seed reference unusable, using built-in fallback POIs",
			zap.String("path", path),
			zap.Error(err))
		return fallbackPOIs()
	}
	return pois
}
