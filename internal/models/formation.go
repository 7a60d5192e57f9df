package models

import "time"

const (
	DurationHalfDay = "HALF_DAY"
	DurationFullDay = "FULL_DAY"
)

// Formation is a training program offering. Expertise formations may only be
// delivered by trainers in the authorized set.
type Formation struct {
	ID                   int64     `json:"id"`
	Title                string    `json:"title"`
	Description          *string   `json:"description,omitempty"`
	Category             *string   `json:"category,omitempty"`
	DurationType         string    `json:"duration_type"`
	Price                float64   `json:"price"`
	IsExpertise          bool      `json:"is_expertise"`
	IsPublished          bool      `json:"is_published"`
	AuthorizedTrainerIDs []int64   `json:"authorized_trainer_ids"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (f Formation) IsTrainerAuthorized(trainerID int64) bool {
	return containsID(f.AuthorizedTrainerIDs, trainerID)
}

func ValidDurationType(value string) bool {
	return value == DurationHalfDay || value == DurationFullDay
}
