package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/jackc/pgx/v5"
)

type stubTrainerLister struct {
	trainers []models.Trainer
}

func (s *stubTrainerLister) ListActive(_ context.Context) ([]models.Trainer, error) {
	active := make([]models.Trainer, 0, len(s.trainers))
	for _, trainer := range s.trainers {
		if trainer.IsActive {
			active = append(active, trainer)
		}
	}
	return active, nil
}

type stubFormationReader struct {
	formations map[int64]*models.Formation
}

func (s *stubFormationReader) GetByID(_ context.Context, id int64) (*models.Formation, error) {
	formation, ok := s.formations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return formation, nil
}

type stubZoneReader struct {
	zones map[int64]*models.Zone
}

func (s *stubZoneReader) GetByID(_ context.Context, id int64) (*models.Zone, error) {
	zone, ok := s.zones[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return zone, nil
}

type stubOccupancyReader struct {
	sessions []models.TrainingSession
}

func (s *stubOccupancyReader) ListByTrainerAndDate(_ context.Context, trainerID int64, _ time.Time) ([]models.TrainingSession, error) {
	matches := make([]models.TrainingSession, 0)
	for _, session := range s.sessions {
		if session.TrainerID != nil && *session.TrainerID == trainerID {
			matches = append(matches, session)
		}
	}
	return matches, nil
}

func (s *stubOccupancyReader) ListByTrainerFrom(_ context.Context, trainerID int64, _ time.Time) ([]models.TrainingSession, error) {
	return s.ListByTrainerAndDate(context.Background(), trainerID, time.Time{})
}

func newDispatchFixture() (*DispatchService, *stubTrainerLister, *stubFormationReader, *stubOccupancyReader) {
	trainers := &stubTrainerLister{trainers: []models.Trainer{
		{ID: 1, FirstName: "Marc", LastName: "Dubois", IsActive: true, PredilectionZoneIDs: []int64{10}, ExpertiseZoneIDs: []int64{10}},
		{ID: 2, FirstName: "Sofie", LastName: "Claes", IsActive: true, PredilectionZoneIDs: []int64{20}, ExpertiseZoneIDs: []int64{10, 20}},
		{ID: 3, FirstName: "Jan", LastName: "Aerts", IsActive: false, PredilectionZoneIDs: []int64{10}, ExpertiseZoneIDs: []int64{10}},
	}}
	formations := &stubFormationReader{formations: map[int64]*models.Formation{
		100: {ID: 100, Title: "Safety basics", DurationType: models.DurationHalfDay, IsPublished: true},
		200: {ID: 200, Title: "Crane certification", DurationType: models.DurationFullDay, IsExpertise: true, IsPublished: true, AuthorizedTrainerIDs: []int64{2, 3}},
	}}
	zones := &stubZoneReader{zones: map[int64]*models.Zone{
		10: {ID: 10, Code: "LIE", Name: "Liège"},
		20: {ID: 20, Code: "ANT", Name: "Antwerpen"},
	}}
	occupancy := &stubOccupancyReader{}
	return NewDispatchService(trainers, formations, zones, occupancy), trainers, formations, occupancy
}

func TestResolveTrainersStandardFormation(t *testing.T) {
	service, _, _, _ := newDispatchFixture()

	match, err := service.ResolveTrainers(context.Background(), 100, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(match.Trainers) != 1 || match.Trainers[0].ID != 1 {
		t.Fatalf("expected only trainer 1 (active, predilection Liège), got %+v", match.Trainers)
	}
	if match.ManualRequestAllowed {
		t.Error("manual request must not be offered when trainers are available")
	}
}

func TestResolveTrainersStandardFormationEmptyAllowsManualRequest(t *testing.T) {
	service, trainers, _, _ := newDispatchFixture()
	for i := range trainers.trainers {
		trainers.trainers[i].PredilectionZoneIDs = nil
	}

	match, err := service.ResolveTrainers(context.Background(), 100, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(match.Trainers) != 0 {
		t.Fatalf("expected no trainers, got %d", len(match.Trainers))
	}
	if !match.ManualRequestAllowed {
		t.Error("standard formation with no coverage must allow a manual request")
	}
}

func TestResolveTrainersExpertiseFormation(t *testing.T) {
	service, _, _, _ := newDispatchFixture()

	match, err := service.ResolveTrainers(context.Background(), 200, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Trainer 1 is not authorized, trainer 3 is inactive; only trainer 2
	// is authorized, active and certified for the zone.
	if len(match.Trainers) != 1 || match.Trainers[0].ID != 2 {
		t.Fatalf("expected only trainer 2, got %+v", match.Trainers)
	}
	if match.ManualRequestAllowed {
		t.Error("expertise formations never fall back to a manual request")
	}
}

func TestResolveTrainersExpertiseFormationEmptyHasNoFallback(t *testing.T) {
	service, trainers, _, _ := newDispatchFixture()
	trainers.trainers[1].IsActive = false

	match, err := service.ResolveTrainers(context.Background(), 200, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(match.Trainers) != 0 {
		t.Fatalf("expected no trainers, got %d", len(match.Trainers))
	}
	if match.ManualRequestAllowed {
		t.Error("expertise formation with no coverage must stay blocked")
	}
}

func TestResolveTrainersUnknownFormation(t *testing.T) {
	service, _, _, _ := newDispatchFixture()

	if _, err := service.ResolveTrainers(context.Background(), 999, 10); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
	if _, err := service.ResolveTrainers(context.Background(), 100, 999); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows for unknown zone, got %v", err)
	}
}

func TestResolveTrainersSortsByName(t *testing.T) {
	service, trainers, _, _ := newDispatchFixture()
	trainers.trainers = append(trainers.trainers, models.Trainer{
		ID: 4, FirstName: "An", LastName: "Bex", IsActive: true, PredilectionZoneIDs: []int64{10},
	})

	match, err := service.ResolveTrainers(context.Background(), 100, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(match.Trainers) != 2 || match.Trainers[0].LastName != "Bex" || match.Trainers[1].LastName != "Dubois" {
		t.Fatalf("expected Bex before Dubois, got %+v", match.Trainers)
	}
}

func TestResolveAvailableSlots(t *testing.T) {
	trainerID := int64(1)
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		formationID int64
		occupied    []models.TrainingSession
		want        []string
	}{
		{
			name:        "free day, half-day formation",
			formationID: 100,
			want:        []string{models.SlotAM, models.SlotPM},
		},
		{
			name:        "free day, full-day formation",
			formationID: 200,
			want:        []string{models.SlotAllDay},
		},
		{
			name:        "morning taken leaves the afternoon",
			formationID: 100,
			occupied: []models.TrainingSession{
				{TrainerID: &trainerID, Date: date, Slot: models.SlotAM, Status: models.DBStatusConfirmed},
			},
			want: []string{models.SlotPM},
		},
		{
			name:        "full-day booking blocks both halves",
			formationID: 100,
			occupied: []models.TrainingSession{
				{TrainerID: &trainerID, Date: date, Slot: models.SlotAllDay, Status: models.DBStatusConfirmed},
			},
			want: []string{},
		},
		{
			name:        "any occupation blocks a full-day formation",
			formationID: 200,
			occupied: []models.TrainingSession{
				{TrainerID: &trainerID, Date: date, Slot: models.SlotPM, Status: models.DBStatusConfirmed},
			},
			want: []string{},
		},
		{
			name:        "cancelled sessions do not occupy",
			formationID: 200,
			occupied: []models.TrainingSession{
				{TrainerID: &trainerID, Date: date, Slot: models.SlotAllDay, Status: models.DBStatusCancelled},
			},
			want: []string{models.SlotAllDay},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _, occupancy := newDispatchFixture()
			occupancy.sessions = tt.occupied

			slots, err := service.ResolveAvailableSlots(context.Background(), tt.formationID, trainerID, date)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(slots) != len(tt.want) {
				t.Fatalf("got %v, want %v", slots, tt.want)
			}
			for i := range slots {
				if slots[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", slots, tt.want)
				}
			}
		})
	}
}

func TestSlotConflicts(t *testing.T) {
	existing := []models.TrainingSession{
		{Slot: models.SlotAM, Status: models.DBStatusConfirmed},
	}

	if !SlotConflicts(models.SlotAM, existing) {
		t.Error("same slot must conflict")
	}
	if !SlotConflicts(models.SlotAllDay, existing) {
		t.Error("full day must conflict with any occupied half")
	}
	if SlotConflicts(models.SlotPM, existing) {
		t.Error("free half must not conflict")
	}

	cancelled := []models.TrainingSession{
		{Slot: models.SlotAllDay, Status: models.DBStatusCancelled},
	}
	if SlotConflicts(models.SlotAM, cancelled) {
		t.Error("cancelled sessions must not conflict")
	}
}
