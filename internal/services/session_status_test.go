package services

import (
	"testing"
	"time"

	"github.com/Ganngann/form-act-sub001/internal/models"
)

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func strPtr(value string) *string {
	return &value
}

func completeSession(date time.Time) *models.TrainingSession {
	return &models.TrainingSession{
		ID:           1,
		Status:       models.DBStatusConfirmed,
		Date:         date,
		Slot:         models.SlotAllDay,
		Location:     strPtr("12 rue des Ateliers, Liège"),
		Logistics:    strPtr(`{"parking":"yes","beamer":"yes"}`),
		Participants: strPtr(`[{"firstName":"Anna","lastName":"Peeters"}]`),
		CreatedAt:    testNow.Add(-30 * 24 * time.Hour),
	}
}

func TestComputeStatusCascade(t *testing.T) {
	farFuture := testNow.Add(30 * 24 * time.Hour)
	nearFuture := testNow.Add(5 * 24 * time.Hour)
	past := testNow.Add(-10 * 24 * time.Hour)
	billedAt := testNow.Add(-2 * 24 * time.Hour)

	tests := []struct {
		name   string
		mutate func(s *models.TrainingSession)
		want   models.ComputedStatus
	}{
		{
			name:   "cancelled wins over everything",
			mutate: func(s *models.TrainingSession) { s.Status = models.DBStatusCancelled; s.Date = past; s.BilledAt = &billedAt },
			want:   models.StatusCancelled,
		},
		{
			name:   "pending stays pending",
			mutate: func(s *models.TrainingSession) { s.Status = models.DBStatusPending },
			want:   models.StatusPending,
		},
		{
			name:   "manual request awaiting offer is pending",
			mutate: func(s *models.TrainingSession) { s.Status = models.DBStatusPendingApproval },
			want:   models.StatusPending,
		},
		{
			name:   "sent offer is still pending",
			mutate: func(s *models.TrainingSession) { s.Status = models.DBStatusOfferSent },
			want:   models.StatusPending,
		},
		{
			name: "past and billed",
			mutate: func(s *models.TrainingSession) {
				s.Date = past
				s.ProofURL = strPtr("https://files.example/proof.pdf")
				s.BilledAt = &billedAt
			},
			want: models.StatusBilled,
		},
		{
			name: "past with proof awaits invoicing",
			mutate: func(s *models.TrainingSession) {
				s.Date = past
				s.ProofURL = strPtr("https://files.example/proof.pdf")
			},
			want: models.StatusToBill,
		},
		{
			name:   "past without proof",
			mutate: func(s *models.TrainingSession) { s.Date = past },
			want:   models.StatusProofMissing,
		},
		{
			name:   "complete future session is ready",
			mutate: func(s *models.TrainingSession) { s.Date = nearFuture },
			want:   models.StatusReady,
		},
		{
			name: "missing participants inside J-15",
			mutate: func(s *models.TrainingSession) {
				s.Date = nearFuture
				s.Participants = nil
			},
			want: models.StatusParticipantsMissing,
		},
		{
			name: "participants win over logistics inside J-15",
			mutate: func(s *models.TrainingSession) {
				s.Date = nearFuture
				s.Participants = nil
				s.Location = nil
				s.Logistics = nil
			},
			want: models.StatusParticipantsMissing,
		},
		{
			name: "missing logistics past the grace window",
			mutate: func(s *models.TrainingSession) {
				s.Date = farFuture
				s.Location = nil
				s.Logistics = nil
			},
			want: models.StatusLogisticsMissing,
		},
		{
			name: "location without logistics blob still counts as missing",
			mutate: func(s *models.TrainingSession) {
				s.Date = farFuture
				s.Logistics = nil
			},
			want: models.StatusLogisticsMissing,
		},
		{
			name: "far future with missing participants only is confirmed",
			mutate: func(s *models.TrainingSession) {
				s.Date = farFuture
				s.Participants = nil
			},
			want: models.StatusConfirmed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := completeSession(farFuture)
			tt.mutate(session)
			if got := ComputeStatus(session, testNow); got != tt.want {
				t.Errorf("ComputeStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeStatusIsIdempotent(t *testing.T) {
	session := completeSession(testNow.Add(5 * 24 * time.Hour))
	session.Participants = nil

	first := ComputeStatus(session, testNow)
	second := ComputeStatus(session, testNow)
	if first != second {
		t.Fatalf("ComputeStatus not stable: %s then %s", first, second)
	}
}

func TestParticipantsDeadlineBoundary(t *testing.T) {
	session := completeSession(testNow)
	session.Participants = nil

	// Exactly 15 calendar days out is inside the chase window.
	session.Date = time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC)
	if got := ComputeStatus(session, testNow); got != models.StatusParticipantsMissing {
		t.Errorf("at J-15 got %s, want PARTICIPANTS_MISSING", got)
	}

	// Sixteen days out is not.
	session.Date = time.Date(2026, 3, 26, 0, 0, 0, 0, time.UTC)
	if got := ComputeStatus(session, testNow); got != models.StatusConfirmed {
		t.Errorf("at J-16 got %s, want CONFIRMED", got)
	}
}

func TestLogisticsGraceBoundary(t *testing.T) {
	session := completeSession(testNow.Add(30 * 24 * time.Hour))
	session.Location = nil
	session.Logistics = nil

	// Exactly 48 hours after creation the grace still holds.
	session.CreatedAt = testNow.Add(-48 * time.Hour)
	if got := ComputeStatus(session, testNow); got != models.StatusConfirmed {
		t.Errorf("at exactly 48h got %s, want CONFIRMED", got)
	}

	session.CreatedAt = testNow.Add(-48*time.Hour - time.Second)
	if got := ComputeStatus(session, testNow); got != models.StatusLogisticsMissing {
		t.Errorf("past 48h got %s, want LOGISTICS_MISSING", got)
	}

	// Unknown creation time counts as expired.
	session.CreatedAt = time.Time{}
	if got := ComputeStatus(session, testNow); got != models.StatusLogisticsMissing {
		t.Errorf("zero createdAt got %s, want LOGISTICS_MISSING", got)
	}
}

func TestPastIsSlotAware(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	earlyAfternoon := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)

	am := completeSession(day)
	am.Slot = models.SlotAM
	am.ProofURL = strPtr("https://files.example/proof.pdf")
	if got := ComputeStatus(am, earlyAfternoon); got != models.StatusToBill {
		t.Errorf("AM session at 13:00 got %s, want TO_BILL", got)
	}

	pm := completeSession(day)
	pm.Slot = models.SlotPM
	if got := ComputeStatus(pm, earlyAfternoon); got != models.StatusReady {
		t.Errorf("PM session at 13:00 got %s, want READY", got)
	}
}

func TestMalformedBlobsCountAsPresent(t *testing.T) {
	session := completeSession(testNow.Add(5 * 24 * time.Hour))
	session.Participants = strPtr(`{"oops": truncated`)
	if got := ComputeStatus(session, testNow); got != models.StatusReady {
		t.Errorf("corrupt roster got %s, want READY", got)
	}

	// Structurally empty blobs stay absent.
	for _, raw := range []string{"", "  ", "[]", "null"} {
		session.Participants = strPtr(raw)
		if got := ComputeStatus(session, testNow); got != models.StatusParticipantsMissing {
			t.Errorf("roster %q got %s, want PARTICIPANTS_MISSING", raw, got)
		}
	}

	session = completeSession(testNow.Add(30 * 24 * time.Hour))
	session.Logistics = strPtr("{}")
	if got := ComputeStatus(session, testNow); got != models.StatusLogisticsMissing {
		t.Errorf("empty logistics object got %s, want LOGISTICS_MISSING", got)
	}
}

func TestIsLogisticsLocked(t *testing.T) {
	session := completeSession(testNow)

	session.Date = testNow.Add(7 * 24 * time.Hour)
	if !IsLogisticsLocked(session, testNow) {
		t.Error("expected lock at J-7")
	}

	session.Date = testNow.Add(8 * 24 * time.Hour)
	if IsLogisticsLocked(session, testNow) {
		t.Error("expected no lock at J-8")
	}

	session.Date = testNow.Add(2 * 24 * time.Hour)
	session.IsLogisticsOpen = true
	if IsLogisticsLocked(session, testNow) {
		t.Error("expected admin override to open the lock")
	}
}

func TestParseParticipants(t *testing.T) {
	entries, ok := ParseParticipants(strPtr(`[{"firstName":"Anna","lastName":"Peeters","email":"anna@example.be"}]`))
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one parsed entry, got ok=%v entries=%d", ok, len(entries))
	}
	if entries[0].FirstName != "Anna" {
		t.Errorf("unexpected first name %q", entries[0].FirstName)
	}

	if _, ok := ParseParticipants(strPtr("not json")); ok {
		t.Error("expected parse failure to be reported")
	}

	if entries, ok := ParseParticipants(nil); !ok || entries != nil {
		t.Error("expected nil roster to parse as empty")
	}
}
