package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ganngann/form-act-sub001/internal/models"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `
	id, formation_id, client_id, trainer_id, date, slot, status,
	location, logistics, is_logistics_open, participants,
	proof_url, price, billed_at, billing_data, created_at, updated_at
`

type CreateSessionInput struct {
	FormationID int64
	ClientID    int64
	TrainerID   *int64
	Date        time.Time
	Slot        string
	Status      string
}

type SessionListFilter struct {
	ActorID int64
	Role    string
	Status  string
	From    *time.Time
	To      *time.Time
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, input CreateSessionInput) (*models.TrainingSession, error) {
	query := `
		INSERT INTO training_sessions (formation_id, client_id, trainer_id, date, slot, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query,
		input.FormationID,
		input.ClientID,
		input.TrainerID,
		input.Date,
		input.Slot,
		input.Status,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.TrainingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM training_sessions WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(ctx context.Context, filter SessionListFilter) ([]models.TrainingSession, error) {
	args := []any{}
	whereParts := []string{}

	switch filter.Role {
	case models.RoleClient:
		args = append(args, filter.ActorID)
		whereParts = append(whereParts, fmt.Sprintf("client_id = $%d", len(args)))
	case models.RoleTrainer:
		args = append(args, filter.ActorID)
		whereParts = append(whereParts, fmt.Sprintf("trainer_id = $%d", len(args)))
	}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		whereParts = append(whereParts, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		whereParts = append(whereParts, fmt.Sprintf("date <= $%d", len(args)))
	}

	where := ""
	if len(whereParts) > 0 {
		where = "WHERE " + strings.Join(whereParts, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT %s FROM training_sessions %s ORDER BY date ASC, id ASC`,
		sessionColumns, where,
	)
	return r.listQuery(ctx, query, args...)
}

func (r *SessionRepository) ListByTrainerAndDate(ctx context.Context, trainerID int64, date time.Time) ([]models.TrainingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM training_sessions
		WHERE trainer_id = $1 AND date = $2 AND status <> 'CANCELLED'
		ORDER BY slot ASC
	`
	return r.listQuery(ctx, query, trainerID, dateOnly(date))
}

func (r *SessionRepository) ListByTrainerFrom(ctx context.Context, trainerID int64, from time.Time) ([]models.TrainingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM training_sessions
		WHERE trainer_id = $1 AND date >= $2 AND status <> 'CANCELLED'
		ORDER BY date ASC, id ASC
	`
	return r.listQuery(ctx, query, trainerID, dateOnly(from))
}

// HasConflict reports whether the trainer already holds a non-cancelled
// session colliding with the requested slot: a full day collides with
// anything and anything collides with a full day.
func (r *SessionRepository) HasConflict(ctx context.Context, trainerID int64, date time.Time, slot string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM training_sessions
			WHERE trainer_id = $1
			  AND date = $2
			  AND status <> 'CANCELLED'
			  AND (slot = 'ALL_DAY' OR $3 = 'ALL_DAY' OR slot = $3)
		)
	`
	var hasConflict bool
	if err := r.db.QueryRow(ctx, query, trainerID, dateOnly(date), slot).Scan(&hasConflict); err != nil {
		return false, err
	}
	return hasConflict, nil
}

func (r *SessionRepository) UpdateStatusIfCurrent(ctx context.Context, sessionID int64, currentStatus, nextStatus string) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// UpdateOfferIfStatus sets the offered price and advances the status in one
// compare-and-swap, so two concurrent offers cannot both land.
func (r *SessionRepository) UpdateOfferIfStatus(ctx context.Context, sessionID int64, price float64, currentStatus, nextStatus string) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET price = $4, status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus, price))
}

type SessionContentPatch struct {
	Location     *string
	Logistics    *string
	Participants *string
}

func (r *SessionRepository) UpdateContent(ctx context.Context, sessionID int64, patch SessionContentPatch) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET location = COALESCE($2, location),
		    logistics = COALESCE($3, logistics),
		    participants = COALESCE($4, participants),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query, sessionID, patch.Location, patch.Logistics, patch.Participants))
}

func (r *SessionRepository) AssignTrainer(ctx context.Context, sessionID, trainerID int64) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET trainer_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query, sessionID, trainerID))
}

func (r *SessionRepository) UnassignTrainer(ctx context.Context, sessionID int64) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET trainer_id = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) SetLogisticsOpen(ctx context.Context, sessionID int64, open bool) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET is_logistics_open = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query, sessionID, open))
}

func (r *SessionRepository) UpdateProof(ctx context.Context, sessionID int64, proofURL string) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET proof_url = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query, sessionID, proofURL))
}

// Bill stamps the invoice. The proof guard lives in the query so billing can
// never race past a missing attendance proof.
func (r *SessionRepository) Bill(ctx context.Context, sessionID int64, billingData string) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET billing_data = $2, billed_at = NOW(), status = 'INVOICED', updated_at = NOW()
		WHERE id = $1 AND status = 'CONFIRMED' AND proof_url IS NOT NULL
		RETURNING ` + sessionColumns

	return r.scanOne(r.db.QueryRow(ctx, query, sessionID, billingData))
}

func (r *SessionRepository) listQuery(ctx context.Context, query string, args ...any) ([]models.TrainingSession, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.TrainingSession, 0)
	for rows.Next() {
		session, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) scanOne(row pgx.Row) (*models.TrainingSession, error) {
	return r.scanRow(row)
}

func (r *SessionRepository) scanRow(row interface{ Scan(...any) error }) (*models.TrainingSession, error) {
	var session models.TrainingSession
	err := row.Scan(
		&session.ID,
		&session.FormationID,
		&session.ClientID,
		&session.TrainerID,
		&session.Date,
		&session.Slot,
		&session.Status,
		&session.Location,
		&session.Logistics,
		&session.IsLogisticsOpen,
		&session.Participants,
		&session.ProofURL,
		&session.Price,
		&session.BilledAt,
		&session.BillingData,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func dateOnly(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}
