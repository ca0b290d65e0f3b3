// Package ranking holds the POI scoring formula shared by every storage
// backend. Keeping the formula in one place guarantees all backends produce
// the same ordering for the same candidate set.
package ranking

import (
	"sort"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

// Weights of the blended score. Distance matters most, accessibility next,
// age fit least.
const (
	distanceWeight = 0.5
	pmrWeight      = 0.3
	ageWeight      = 0.2

	// distanceHalfM is the distance at which the proximity score decays
	// to 0.5. The decay is smooth so far-but-in-radius POIs are never
	// zeroed out.
	distanceHalfM = 300.0

	pmrPenalty = 0.3
	agePenalty = 0.7
)

// Candidate is a POI paired with its precomputed distance to the query
// point.
type Candidate struct {
	POI       models.POI
	DistanceM float64
}

// Score computes the blended fitness of one candidate for the given
// filters. PMR users see inaccessible POIs strongly penalized but not
// disqualified; a non-nil age range mildly penalizes non-kids-friendly POIs.
func Score(c Candidate, pmr bool, ageRange *string) float64 {
	distScore := 1 / (1 + c.DistanceM/distanceHalfM)

	pmrFit := 1.0
	if pmr && !c.POI.Accessible {
		pmrFit = pmrPenalty
	}

	ageFit := 1.0
	if ageRange != nil && !c.POI.KidsFriendly {
		ageFit = agePenalty
	}

	return distanceWeight*distScore + pmrWeight*pmrFit + ageWeight*ageFit
}

// Rank scores the candidates, orders them best-first and returns at most k
// user-facing recommendations. Equal scores fall back to POI id order so the
// result is deterministic.
func Rank(candidates []Candidate, pmr bool, ageRange *string, k int) []models.Recommendation {
	type scored struct {
		c     Candidate
		score float64
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{c: c, score: Score(c, pmr, ageRange)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].c.POI.ID < ranked[j].c.POI.ID
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}

	out := make([]models.Recommendation, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, models.Recommendation{
			ID:         s.c.POI.ID,
			Name:       s.c.POI.Name,
			DistanceM:  int(s.c.DistanceM),
			Accessible: s.c.POI.Accessible,
			Short:      s.c.POI.Short,
		})
	}
	return out
}
