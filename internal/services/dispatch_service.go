package services

import (
	"context"
	"sort"
	"time"

	"github.com/Ganngann/form-act-sub001/internal/models"
)

type trainerLister interface {
	ListActive(ctx context.Context) ([]models.Trainer, error)
}

type formationReader interface {
	GetByID(ctx context.Context, id int64) (*models.Formation, error)
}

type zoneReader interface {
	GetByID(ctx context.Context, id int64) (*models.Zone, error)
}

type occupancyReader interface {
	ListByTrainerAndDate(ctx context.Context, trainerID int64, date time.Time) ([]models.TrainingSession, error)
	ListByTrainerFrom(ctx context.Context, trainerID int64, from time.Time) ([]models.TrainingSession, error)
}

// DispatchService decides which trainers a client may book for a formation in
// a zone, and which time slots remain open on a given day.
type DispatchService struct {
	trainerRepo   trainerLister
	formationRepo formationReader
	zoneRepo      zoneReader
	sessionRepo   occupancyReader
}

func NewDispatchService(
	trainerRepo trainerLister,
	formationRepo formationReader,
	zoneRepo zoneReader,
	sessionRepo occupancyReader,
) *DispatchService {
	return &DispatchService{
		trainerRepo:   trainerRepo,
		formationRepo: formationRepo,
		zoneRepo:      zoneRepo,
		sessionRepo:   sessionRepo,
	}
}

// TrainerMatch is the eligibility result for one formation/zone pair. When no
// trainer covers a non-expertise formation the client may still file a manual
// request, which routes to the offer workflow; expertise formations have no
// such fallback.
type TrainerMatch struct {
	Trainers             []models.TrainerSummary `json:"trainers"`
	ManualRequestAllowed bool                    `json:"manual_request_allowed"`
}

func (s *DispatchService) ResolveTrainers(ctx context.Context, formationID, zoneID int64) (*TrainerMatch, error) {
	formation, err := s.formationRepo.GetByID(ctx, formationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.zoneRepo.GetByID(ctx, zoneID); err != nil {
		return nil, err
	}

	trainers, err := s.trainerRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]models.TrainerSummary, 0, len(trainers))
	for _, trainer := range trainers {
		if isEligible(formation, trainer, zoneID) {
			eligible = append(eligible, trainer.Summary())
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].LastName == eligible[j].LastName {
			return eligible[i].FirstName < eligible[j].FirstName
		}
		return eligible[i].LastName < eligible[j].LastName
	})

	return &TrainerMatch{
		Trainers:             eligible,
		ManualRequestAllowed: !formation.IsExpertise && len(eligible) == 0,
	}, nil
}

// isEligible: expertise formations need an authorized trainer certified for
// the zone; standard formations accept any active trainer working the zone.
func isEligible(formation *models.Formation, trainer models.Trainer, zoneID int64) bool {
	if !trainer.IsActive {
		return false
	}
	if formation.IsExpertise {
		return formation.IsTrainerAuthorized(trainer.ID) && trainer.HasExpertiseZone(zoneID)
	}
	return trainer.HasPredilectionZone(zoneID)
}

// ResolveAvailableSlots returns the bookable slots for a trainer on a date.
// A day with nothing left yields an empty list, not an error; the booking UI
// disables submission on its own.
func (s *DispatchService) ResolveAvailableSlots(ctx context.Context, formationID, trainerID int64, date time.Time) ([]string, error) {
	formation, err := s.formationRepo.GetByID(ctx, formationID)
	if err != nil {
		return nil, err
	}

	occupied, err := s.sessionRepo.ListByTrainerAndDate(ctx, trainerID, date)
	if err != nil {
		return nil, err
	}

	return availableSlots(formation.DurationType, occupied), nil
}

func availableSlots(durationType string, occupied []models.TrainingSession) []string {
	taken := make(map[string]bool, len(occupied))
	for _, session := range occupied {
		if session.Status == models.DBStatusCancelled {
			continue
		}
		taken[session.Slot] = true
	}

	if durationType == models.DurationFullDay {
		if len(taken) > 0 {
			return []string{}
		}
		return []string{models.SlotAllDay}
	}

	slots := make([]string, 0, 2)
	if !taken[models.SlotAllDay] {
		if !taken[models.SlotAM] {
			slots = append(slots, models.SlotAM)
		}
		if !taken[models.SlotPM] {
			slots = append(slots, models.SlotPM)
		}
	}
	return slots
}

// SlotConflicts reports whether a requested slot collides with an existing
// non-cancelled session: a full-day booking collides with anything, and
// anything collides with a full-day booking.
func SlotConflicts(requested string, existing []models.TrainingSession) bool {
	for _, session := range existing {
		if session.Status == models.DBStatusCancelled {
			continue
		}
		if requested == models.SlotAllDay || session.Slot == models.SlotAllDay || session.Slot == requested {
			return true
		}
	}
	return false
}

// TrainerAvailability lists the occupied calendar of a trainer from a given
// day, for the booking calendar to grey out.
func (s *DispatchService) TrainerAvailability(ctx context.Context, trainerID int64, from time.Time) ([]models.TrainingSession, error) {
	return s.sessionRepo.ListByTrainerFrom(ctx, trainerID, from)
}
