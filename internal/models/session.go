package models

import "time"

// Persisted session statuses. The displayed status is always derived from
// these plus the session facts, never stored.
const (
	DBStatusPending         = "PENDING"
	DBStatusPendingApproval = "PENDING_APPROVAL"
	DBStatusOfferSent       = "OFFER_SENT"
	DBStatusConfirmed       = "CONFIRMED"
	DBStatusCancelled       = "CANCELLED"
	DBStatusInvoiced        = "INVOICED"
)

const (
	SlotAM     = "AM"
	SlotPM     = "PM"
	SlotAllDay = "ALL_DAY"
)

// ComputedStatus is the derived display/action status of a session.
type ComputedStatus string

const (
	StatusPending             ComputedStatus = "PENDING"
	StatusConfirmed           ComputedStatus = "CONFIRMED"
	StatusCancelled           ComputedStatus = "CANCELLED"
	StatusLogisticsMissing    ComputedStatus = "LOGISTICS_MISSING"
	StatusParticipantsMissing ComputedStatus = "PARTICIPANTS_MISSING"
	StatusReady               ComputedStatus = "READY"
	StatusProofMissing        ComputedStatus = "PROOF_MISSING"
	StatusToBill              ComputedStatus = "TO_BILL"
	StatusBilled              ComputedStatus = "BILLED"
)

// TrainingSession is one scheduled delivery of a formation to a client.
// Logistics, participants and billing data are stored as raw JSON text and
// parsed defensively at read time.
type TrainingSession struct {
	ID              int64      `json:"id"`
	FormationID     int64      `json:"formation_id"`
	ClientID        int64      `json:"client_id"`
	TrainerID       *int64     `json:"trainer_id"`
	Date            time.Time  `json:"date"`
	Slot            string     `json:"slot"`
	Status          string     `json:"status"`
	Location        *string    `json:"location"`
	Logistics       *string    `json:"logistics"`
	IsLogisticsOpen bool       `json:"is_logistics_open"`
	Participants    *string    `json:"participants"`
	ProofURL        *string    `json:"proof_url"`
	Price           *float64   `json:"price"`
	BilledAt        *time.Time `json:"billed_at"`
	BillingData     *string    `json:"billing_data"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type SessionDetail struct {
	TrainingSession
	ComputedStatus ComputedStatus  `json:"computed_status"`
	Formation      *Formation      `json:"formation,omitempty"`
	Trainer        *TrainerSummary `json:"trainer,omitempty"`
	Client         *Client         `json:"client,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

func ValidSlot(value string) bool {
	return value == SlotAM || value == SlotPM || value == SlotAllDay
}
