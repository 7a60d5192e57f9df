package repository

import (
	"context"

	"github.com/Ganngann/form-act-sub001/internal/models"
)

const trainerColumns = `
	f.id, f.user_id, f.first_name, f.last_name, f.email, f.bio, f.is_active,
	COALESCE((SELECT array_agg(zone_id ORDER BY zone_id) FROM formateur_predilection_zones WHERE formateur_id = f.id), '{}'),
	COALESCE((SELECT array_agg(zone_id ORDER BY zone_id) FROM formateur_expertise_zones WHERE formateur_id = f.id), '{}'),
	f.created_at, f.updated_at
`

type TrainerRepository struct {
	db DBTX
}

func NewTrainerRepository(db DBTX) *TrainerRepository {
	return &TrainerRepository{db: db}
}

type CreateTrainerInput struct {
	UserID              *int64
	FirstName           string
	LastName            string
	Email               string
	Bio                 *string
	PredilectionZoneIDs []int64
	ExpertiseZoneIDs    []int64
}

func (r *TrainerRepository) Create(ctx context.Context, input CreateTrainerInput) (*models.Trainer, error) {
	query := `
		INSERT INTO formateurs (user_id, first_name, last_name, email, bio, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at, updated_at
	`
	trainer := models.Trainer{
		UserID:              input.UserID,
		FirstName:           input.FirstName,
		LastName:            input.LastName,
		Email:               input.Email,
		Bio:                 input.Bio,
		IsActive:            true,
		PredilectionZoneIDs: input.PredilectionZoneIDs,
		ExpertiseZoneIDs:    input.ExpertiseZoneIDs,
	}
	err := r.db.QueryRow(ctx, query, input.UserID, input.FirstName, input.LastName, input.Email, input.Bio).
		Scan(&trainer.ID, &trainer.CreatedAt, &trainer.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := r.replaceZoneLinks(ctx, "formateur_predilection_zones", trainer.ID, input.PredilectionZoneIDs); err != nil {
		return nil, err
	}
	if err := r.replaceZoneLinks(ctx, "formateur_expertise_zones", trainer.ID, input.ExpertiseZoneIDs); err != nil {
		return nil, err
	}
	return &trainer, nil
}

func (r *TrainerRepository) GetByID(ctx context.Context, id int64) (*models.Trainer, error) {
	query := `SELECT ` + trainerColumns + ` FROM formateurs f WHERE f.id = $1`

	var trainer models.Trainer
	err := r.db.QueryRow(ctx, query, id).Scan(
		&trainer.ID,
		&trainer.UserID,
		&trainer.FirstName,
		&trainer.LastName,
		&trainer.Email,
		&trainer.Bio,
		&trainer.IsActive,
		&trainer.PredilectionZoneIDs,
		&trainer.ExpertiseZoneIDs,
		&trainer.CreatedAt,
		&trainer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &trainer, nil
}

func (r *TrainerRepository) GetByUserID(ctx context.Context, userID int64) (*models.Trainer, error) {
	query := `SELECT ` + trainerColumns + ` FROM formateurs f WHERE f.user_id = $1`

	var trainer models.Trainer
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&trainer.ID,
		&trainer.UserID,
		&trainer.FirstName,
		&trainer.LastName,
		&trainer.Email,
		&trainer.Bio,
		&trainer.IsActive,
		&trainer.PredilectionZoneIDs,
		&trainer.ExpertiseZoneIDs,
		&trainer.CreatedAt,
		&trainer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &trainer, nil
}

func (r *TrainerRepository) ListActive(ctx context.Context) ([]models.Trainer, error) {
	query := `SELECT ` + trainerColumns + ` FROM formateurs f WHERE f.is_active ORDER BY f.last_name ASC, f.first_name ASC`
	return r.list(ctx, query)
}

func (r *TrainerRepository) ListAll(ctx context.Context) ([]models.Trainer, error) {
	query := `SELECT ` + trainerColumns + ` FROM formateurs f ORDER BY f.last_name ASC, f.first_name ASC`
	return r.list(ctx, query)
}

func (r *TrainerRepository) list(ctx context.Context, query string) ([]models.Trainer, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trainers := make([]models.Trainer, 0)
	for rows.Next() {
		var trainer models.Trainer
		if err := rows.Scan(
			&trainer.ID,
			&trainer.UserID,
			&trainer.FirstName,
			&trainer.LastName,
			&trainer.Email,
			&trainer.Bio,
			&trainer.IsActive,
			&trainer.PredilectionZoneIDs,
			&trainer.ExpertiseZoneIDs,
			&trainer.CreatedAt,
			&trainer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		trainers = append(trainers, trainer)
	}
	return trainers, rows.Err()
}

func (r *TrainerRepository) SetActive(ctx context.Context, id int64, isActive bool) (*models.Trainer, error) {
	query := `
		UPDATE formateurs
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`
	var updatedID int64
	if err := r.db.QueryRow(ctx, query, id, isActive).Scan(&updatedID); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, updatedID)
}

func (r *TrainerRepository) replaceZoneLinks(ctx context.Context, table string, trainerID int64, zoneIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE formateur_id = $1`, trainerID); err != nil {
		return err
	}
	for _, zoneID := range zoneIDs {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO `+table+` (formateur_id, zone_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			trainerID, zoneID,
		); err != nil {
			return err
		}
	}
	return nil
}
