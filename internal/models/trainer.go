package models

import "time"

// Trainer delivers sessions. Predilection zones are where the trainer prefers
// to work; expertise zones are where the trainer is certified to deliver
// expertise formations.
type Trainer struct {
	ID                  int64     `json:"id"`
	UserID              *int64    `json:"user_id,omitempty"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	Email               string    `json:"email"`
	Bio                 *string   `json:"bio,omitempty"`
	IsActive            bool      `json:"is_active"`
	PredilectionZoneIDs []int64   `json:"predilection_zone_ids"`
	ExpertiseZoneIDs    []int64   `json:"expertise_zone_ids"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TrainerSummary is the shape exposed to the booking flow.
type TrainerSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (t Trainer) Summary() TrainerSummary {
	return TrainerSummary{ID: t.ID, FirstName: t.FirstName, LastName: t.LastName}
}

func (t Trainer) HasPredilectionZone(zoneID int64) bool {
	return containsID(t.PredilectionZoneIDs, zoneID)
}

func (t Trainer) HasExpertiseZone(zoneID int64) bool {
	return containsID(t.ExpertiseZoneIDs, zoneID)
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
