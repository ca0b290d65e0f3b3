package models

import "time"

// POI is a point of interest from the Madrid catalog. Records are created at
// seed time and never mutated by request traffic.
type POI struct {
	ID           string  `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	Latitude     float64 `json:"lat" db:"latitude"`
	Longitude    float64 `json:"lon" db:"longitude"`
	KidsFriendly bool    `json:"kids_friendly" db:"kids_friendly"`
	Accessible   bool    `json:"accessible" db:"accessible"`
	Short        string  `json:"short" db:"short"`
	Source       string  `json:"source,omitempty" db:"source"`
}

// User is a device/session-scoped profile. Fields are patched in place on
// subsequent writes; the record is never deleted.
type User struct {
	ID                string    `json:"id" db:"id"`
	ProfileType       string    `json:"profile_type" db:"profile_type"` // "parent" | "child"
	HasMobilityIssues bool      `json:"has_mobility_issues" db:"has_mobility_issues"`
	AgeRange          string    `json:"age_range" db:"age_range"` // "4-6" | "7-9" | "10-12"
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// UserLocation is one reported position. Rows are append-only and deleted
// only by expiry pruning; ExpiresAt is fixed at write time.
type UserLocation struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// ChatTurn is one prompt/response pair of the guide agent, read-only once
// written.
type ChatTurn struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Prompt    string    `json:"prompt" db:"prompt"`
	Response  string    `json:"response" db:"response"`
	Model     string    `json:"model,omitempty" db:"model"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Recommendation is the user-facing shape of a ranked POI. The ranking score
// stays internal.
type Recommendation struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DistanceM  int    `json:"distance_m"`
	Accessible bool   `json:"accessible"`
	Short      string `json:"short"`
}

// RecommendationQuery carries the inputs of a top-POIs request.
type RecommendationQuery struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusM   int     `json:"radius_m"`
	PMR       bool    `json:"pmr"`
	AgeRange  *string `json:"age_range"`
	K         int     `json:"k"`
}

// LocationUpdate carries a user-reported position plus optional profile
// hints that are patched onto the user record.
type LocationUpdate struct {
	UserID            string  `json:"user_id"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	TTLDays           int     `json:"ttl_days"`
	ProfileType       *string `json:"profile_type"`
	HasMobilityIssues bool    `json:"pmr"`
	AgeRange          *string `json:"age_range"`
}

// UserPatch is a partial user update; nil fields are left untouched.
type UserPatch struct {
	ProfileType       *string `json:"profile_type"`
	HasMobilityIssues *bool   `json:"has_mobility_issues"`
	AgeRange          *string `json:"age_range"`
}

// StoreSummary holds approximate per-entity counts for diagnostics.
type StoreSummary struct {
	POIs      int64 `json:"poi"`
	Users     int64 `json:"users"`
	Locations int64 `json:"user_locations"`
	ChatTurns int64 `json:"chat_logs"`
}
