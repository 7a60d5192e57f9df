package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/Ganngann/form-act-sub001/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrIneligibleAssignment   = errors.New("trainer not eligible for this session")
	ErrTrainerRequired        = errors.New("expertise formations require a trainer")
	ErrLogisticsLocked        = errors.New("logistics are locked")
	ErrProofMissing           = errors.New("attendance proof missing")
	ErrSessionNotFound        = errors.New("session not found")
	ErrFormationNotFound      = errors.New("formation not found")
	ErrTrainerNotFound        = errors.New("trainer not found")
	ErrClientNotFound         = errors.New("client not found")
)

type trainerGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Trainer, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Trainer, error)
}

type clientGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Client, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Client, error)
}

type sessionStore interface {
	Create(ctx context.Context, input repository.CreateSessionInput) (*models.TrainingSession, error)
	GetByID(ctx context.Context, sessionID int64) (*models.TrainingSession, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.TrainingSession, error)
	HasConflict(ctx context.Context, trainerID int64, date time.Time, slot string) (bool, error)
	UpdateStatusIfCurrent(ctx context.Context, sessionID int64, currentStatus, nextStatus string) (*models.TrainingSession, error)
	UpdateOfferIfStatus(ctx context.Context, sessionID int64, price float64, currentStatus, nextStatus string) (*models.TrainingSession, error)
	UpdateContent(ctx context.Context, sessionID int64, patch repository.SessionContentPatch) (*models.TrainingSession, error)
	AssignTrainer(ctx context.Context, sessionID, trainerID int64) (*models.TrainingSession, error)
	UnassignTrainer(ctx context.Context, sessionID int64) (*models.TrainingSession, error)
	SetLogisticsOpen(ctx context.Context, sessionID int64, open bool) (*models.TrainingSession, error)
	UpdateProof(ctx context.Context, sessionID int64, proofURL string) (*models.TrainingSession, error)
	Bill(ctx context.Context, sessionID int64, billingData string) (*models.TrainingSession, error)
}

// SessionEvent is pushed to the admin feed whenever a session changes state.
type SessionEvent struct {
	Type      string                `json:"type"`
	SessionID int64                 `json:"session_id"`
	Status    models.ComputedStatus `json:"status"`
}

type StatusNotifier interface {
	NotifySession(event SessionEvent)
}

type SessionService struct {
	db            *pgxpool.Pool
	sessionRepo   sessionStore
	formationRepo formationReader
	trainerRepo   trainerGetter
	clientRepo    clientGetter
	notifier      StatusNotifier
	now           func() time.Time
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo sessionStore,
	formationRepo formationReader,
	trainerRepo trainerGetter,
	clientRepo clientGetter,
	notifier StatusNotifier,
) *SessionService {
	return &SessionService{
		db:            db,
		sessionRepo:   sessionRepo,
		formationRepo: formationRepo,
		trainerRepo:   trainerRepo,
		clientRepo:    clientRepo,
		notifier:      notifier,
		now:           time.Now,
	}
}

type BookSessionInput struct {
	FormationID int64
	ZoneID      int64
	TrainerID   *int64
	Date        time.Time
	Slot        string
}

// BookSession creates a session for the client behind userID. A booking with a
// chosen trainer goes through eligibility enforcement and an advisory-locked
// conflict check, and lands CONFIRMED. A booking without a trainer is a manual
// request: only allowed for non-expertise formations, lands PENDING_APPROVAL
// and holds no slot until an offer is accepted.
func (s *SessionService) BookSession(ctx context.Context, userID int64, input BookSessionInput) (*models.SessionDetail, error) {
	if input.FormationID <= 0 || input.ZoneID <= 0 || !models.ValidSlot(input.Slot) {
		return nil, ErrInvalidInput
	}
	if input.Date.Before(startOfDay(s.now())) {
		return nil, ErrInvalidInput
	}

	client, err := s.clientRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	formation, err := s.formationRepo.GetByID(ctx, input.FormationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFormationNotFound
		}
		return nil, err
	}
	if !formation.IsPublished {
		return nil, ErrInvalidInput
	}
	if !slotMatchesDuration(formation.DurationType, input.Slot) {
		return nil, ErrInvalidInput
	}

	if input.TrainerID == nil {
		if formation.IsExpertise {
			return nil, ErrTrainerRequired
		}
		session, err := s.sessionRepo.Create(ctx, repository.CreateSessionInput{
			FormationID: formation.ID,
			ClientID:    client.ID,
			TrainerID:   nil,
			Date:        input.Date,
			Slot:        input.Slot,
			Status:      models.DBStatusPendingApproval,
		})
		if err != nil {
			return nil, err
		}
		s.notify("session.booked", session)
		return s.detail(ctx, session)
	}

	trainer, err := s.trainerRepo.GetByID(ctx, *input.TrainerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}
	if !isEligible(formation, *trainer, input.ZoneID) {
		return nil, ErrIneligibleAssignment
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", trainer.ID); err != nil {
		return nil, err
	}

	hasConflict, err := txSessionRepo.HasConflict(ctx, trainer.ID, input.Date, input.Slot)
	if err != nil {
		return nil, err
	}
	if hasConflict {
		return nil, ErrConflict
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		FormationID: formation.ID,
		ClientID:    client.ID,
		TrainerID:   &trainer.ID,
		Date:        input.Date,
		Slot:        input.Slot,
		Status:      models.DBStatusConfirmed,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notify("session.booked", session)
	return s.detail(ctx, session)
}

type ListSessionsFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
}

func (s *SessionService) ListSessions(ctx context.Context, userID int64, role string, filter ListSessionsFilter) ([]models.SessionDetail, error) {
	actorID, err := s.actorID(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessionRepo.List(ctx, repository.SessionListFilter{
		ActorID: actorID,
		Role:    role,
		Status:  filter.Status,
		From:    filter.From,
		To:      filter.To,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	formations := map[int64]*models.Formation{}
	trainers := map[int64]*models.Trainer{}

	details := make([]models.SessionDetail, 0, len(sessions))
	for i := range sessions {
		session := sessions[i]
		detail := models.SessionDetail{
			TrainingSession: session,
			ComputedStatus:  ComputeStatus(&session, now),
		}

		formation, ok := formations[session.FormationID]
		if !ok {
			formation, err = s.formationRepo.GetByID(ctx, session.FormationID)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return nil, err
			}
			formations[session.FormationID] = formation
		}
		detail.Formation = formation

		if session.TrainerID != nil {
			trainer, ok := trainers[*session.TrainerID]
			if !ok {
				trainer, err = s.trainerRepo.GetByID(ctx, *session.TrainerID)
				if err != nil && !errors.Is(err, pgx.ErrNoRows) {
					return nil, err
				}
				trainers[*session.TrainerID] = trainer
			}
			if trainer != nil {
				summary := trainer.Summary()
				detail.Trainer = &summary
			}
		}

		details = append(details, detail)
	}
	return details, nil
}

func (s *SessionService) GetSession(ctx context.Context, userID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, userID, role, session); err != nil {
		return nil, err
	}
	return s.detail(ctx, session)
}

type SessionContentPatch struct {
	Location     *string
	Logistics    *string
	Participants *string
}

// UpdateSessionContent lets the owning client (or an admin) fill in location,
// logistics and the participant roster. Client edits freeze seven days before
// the session unless an admin has reopened them; blobs are validated as JSON
// at this write boundary, reads stay defensive regardless.
func (s *SessionService) UpdateSessionContent(ctx context.Context, userID int64, role string, sessionID int64, patch SessionContentPatch) (*models.SessionDetail, error) {
	if role != models.RoleClient && role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, userID, role, session); err != nil {
		return nil, err
	}
	if session.Status == models.DBStatusCancelled || session.Status == models.DBStatusInvoiced {
		return nil, ErrInvalidStateTransition
	}
	if role == models.RoleClient && IsLogisticsLocked(session, s.now()) {
		return nil, ErrLogisticsLocked
	}
	if !validJSONPatch(patch.Logistics) || !validJSONPatch(patch.Participants) {
		return nil, ErrInvalidInput
	}

	updated, err := s.sessionRepo.UpdateContent(ctx, sessionID, repository.SessionContentPatch{
		Location:     patch.Location,
		Logistics:    patch.Logistics,
		Participants: patch.Participants,
	})
	if err != nil {
		return nil, err
	}
	s.notify("session.updated", updated)
	return s.detail(ctx, updated)
}

// SendOffer prices a manual request and moves it PENDING_APPROVAL to
// OFFER_SENT in one compare-and-swap.
func (s *SessionService) SendOffer(ctx context.Context, sessionID int64, price float64) (*models.SessionDetail, error) {
	if price <= 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.UpdateOfferIfStatus(
		ctx, sessionID, price,
		models.DBStatusPendingApproval, models.DBStatusOfferSent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	s.notify("offer.sent", updated)
	return s.detail(ctx, updated)
}

// AcceptOffer confirms a priced offer. The stored price stays the source of
// truth; tax-inclusive figures are derived at presentation, never persisted.
func (s *SessionService) AcceptOffer(ctx context.Context, userID int64, sessionID int64) (*models.SessionDetail, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, userID, models.RoleClient, session); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.UpdateStatusIfCurrent(
		ctx, sessionID,
		models.DBStatusOfferSent, models.DBStatusConfirmed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	s.notify("offer.accepted", updated)
	return s.detail(ctx, updated)
}

func (s *SessionService) CancelSession(ctx context.Context, userID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	if role != models.RoleClient && role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, userID, role, session); err != nil {
		return nil, err
	}
	if session.Status == models.DBStatusCancelled || session.Status == models.DBStatusInvoiced {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, session.Status, models.DBStatusCancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	s.notify("session.cancelled", updated)
	return s.detail(ctx, updated)
}

// AssignTrainer is the admin escape hatch. Authorization on expertise
// formations is a hard block even here; a slot conflict only produces a
// warning, the admin owns that call. Assignment never confirms a session on
// its own, the offer workflow does that.
func (s *SessionService) AssignTrainer(ctx context.Context, sessionID, trainerID int64) (*models.SessionDetail, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.DBStatusCancelled || session.Status == models.DBStatusInvoiced {
		return nil, ErrInvalidStateTransition
	}

	trainer, err := s.trainerRepo.GetByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}
	if !trainer.IsActive {
		return nil, ErrIneligibleAssignment
	}

	formation, err := s.formationRepo.GetByID(ctx, session.FormationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFormationNotFound
		}
		return nil, err
	}
	if formation.IsExpertise && !formation.IsTrainerAuthorized(trainer.ID) {
		return nil, ErrIneligibleAssignment
	}

	warnings := []string{}
	hasConflict, err := s.sessionRepo.HasConflict(ctx, trainer.ID, session.Date, session.Slot)
	if err != nil {
		return nil, err
	}
	if hasConflict {
		warnings = append(warnings, "trainer already has a session on this date")
	}

	updated, err := s.sessionRepo.AssignTrainer(ctx, sessionID, trainer.ID)
	if err != nil {
		return nil, err
	}
	s.notify("trainer.assigned", updated)
	return s.detail(ctx, updated, warnings...)
}

func (s *SessionService) UnassignTrainer(ctx context.Context, sessionID int64) (*models.SessionDetail, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.DBStatusCancelled || session.Status == models.DBStatusInvoiced {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.sessionRepo.UnassignTrainer(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.notify("trainer.unassigned", updated)
	return s.detail(ctx, updated)
}

func (s *SessionService) SetLogisticsOpen(ctx context.Context, sessionID int64, open bool) (*models.SessionDetail, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	updated, err := s.sessionRepo.SetLogisticsOpen(ctx, sessionID, open)
	if err != nil {
		return nil, err
	}
	s.notify("session.updated", updated)
	return s.detail(ctx, updated)
}

// UpdateProof records the attendance proof URL. Only the delivering trainer or
// an admin may attach it.
func (s *SessionService) UpdateProof(ctx context.Context, userID int64, role string, sessionID int64, proofURL string) (*models.SessionDetail, error) {
	if strings.TrimSpace(proofURL) == "" {
		return nil, ErrInvalidInput
	}
	if role != models.RoleTrainer && role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, userID, role, session); err != nil {
		return nil, err
	}
	if session.Status == models.DBStatusCancelled {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.sessionRepo.UpdateProof(ctx, sessionID, proofURL)
	if err != nil {
		return nil, err
	}
	s.notify("proof.uploaded", updated)
	return s.detail(ctx, updated)
}

// BillingPreview composes the invoice lines without persisting anything.
func (s *SessionService) BillingPreview(ctx context.Context, sessionID int64, adminAdjustment float64) (*BillingData, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	formation, err := s.formationRepo.GetByID(ctx, session.FormationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFormationNotFound
		}
		return nil, err
	}

	preview := BuildBillingPreview(session, formation, adminAdjustment)
	return &preview, nil
}

// BillSession stamps the invoice on a delivered session. A session cannot be
// billed before it is over or without an attendance proof.
func (s *SessionService) BillSession(ctx context.Context, sessionID int64, adminAdjustment float64) (*models.SessionDetail, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !isPastSession(session, s.now()) {
		return nil, ErrInvalidStateTransition
	}
	if session.ProofURL == nil || strings.TrimSpace(*session.ProofURL) == "" {
		return nil, ErrProofMissing
	}

	formation, err := s.formationRepo.GetByID(ctx, session.FormationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFormationNotFound
		}
		return nil, err
	}

	billingData := BuildBillingPreview(session, formation, adminAdjustment)
	encoded, err := billingData.Encode()
	if err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.Bill(ctx, sessionID, encoded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	s.notify("session.billed", updated)
	return s.detail(ctx, updated)
}

// SessionStats is the back-office chase list: how many sessions sit in each
// computed status right now.
type SessionStats struct {
	Total    int                           `json:"total"`
	ByStatus map[models.ComputedStatus]int `json:"by_status"`
}

func (s *SessionService) AdminStats(ctx context.Context) (*SessionStats, error) {
	sessions, err := s.sessionRepo.List(ctx, repository.SessionListFilter{Role: models.RoleAdmin})
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := SessionStats{
		Total:    len(sessions),
		ByStatus: map[models.ComputedStatus]int{},
	}
	for i := range sessions {
		stats.ByStatus[ComputeStatus(&sessions[i], now)]++
	}
	return &stats, nil
}

func (s *SessionService) getSession(ctx context.Context, sessionID int64) (*models.TrainingSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// actorID resolves the session-table scope of a user: the client row for
// clients, the trainer row for trainers, zero (no scope) for admins.
func (s *SessionService) actorID(ctx context.Context, userID int64, role string) (int64, error) {
	switch role {
	case models.RoleClient:
		client, err := s.clientRepo.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, ErrClientNotFound
			}
			return 0, err
		}
		return client.ID, nil
	case models.RoleTrainer:
		trainer, err := s.trainerRepo.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, ErrTrainerNotFound
			}
			return 0, err
		}
		return trainer.ID, nil
	case models.RoleAdmin:
		return 0, nil
	default:
		return 0, ErrForbidden
	}
}

func (s *SessionService) checkAccess(ctx context.Context, userID int64, role string, session *models.TrainingSession) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleClient:
		actorID, err := s.actorID(ctx, userID, role)
		if err != nil {
			return err
		}
		if session.ClientID != actorID {
			return ErrForbidden
		}
		return nil
	case models.RoleTrainer:
		actorID, err := s.actorID(ctx, userID, role)
		if err != nil {
			return err
		}
		if session.TrainerID == nil || *session.TrainerID != actorID {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

func (s *SessionService) detail(ctx context.Context, session *models.TrainingSession, warnings ...string) (*models.SessionDetail, error) {
	detail := &models.SessionDetail{
		TrainingSession: *session,
		ComputedStatus:  ComputeStatus(session, s.now()),
	}
	if len(warnings) > 0 {
		detail.Warnings = warnings
	}

	formation, err := s.formationRepo.GetByID(ctx, session.FormationID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	detail.Formation = formation

	if session.TrainerID != nil {
		trainer, err := s.trainerRepo.GetByID(ctx, *session.TrainerID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if trainer != nil {
			summary := trainer.Summary()
			detail.Trainer = &summary
		}
	}

	client, err := s.clientRepo.GetByID(ctx, session.ClientID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	detail.Client = client

	return detail, nil
}

func (s *SessionService) notify(eventType string, session *models.TrainingSession) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifySession(SessionEvent{
		Type:      eventType,
		SessionID: session.ID,
		Status:    ComputeStatus(session, s.now()),
	})
}

func slotMatchesDuration(durationType, slot string) bool {
	if durationType == models.DurationFullDay {
		return slot == models.SlotAllDay
	}
	return slot == models.SlotAM || slot == models.SlotPM
}

func validJSONPatch(raw *string) bool {
	if raw == nil {
		return true
	}
	return json.Valid([]byte(*raw))
}

func startOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}
