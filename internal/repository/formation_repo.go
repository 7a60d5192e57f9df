package repository

import (
	"context"

	"github.com/Ganngann/form-act-sub001/internal/models"
)

const formationColumns = `
	fo.id, fo.title, fo.description, fo.category, fo.duration_type, fo.price,
	fo.is_expertise, fo.is_published,
	COALESCE((SELECT array_agg(formateur_id ORDER BY formateur_id) FROM formation_formateur WHERE formation_id = fo.id), '{}'),
	fo.created_at, fo.updated_at
`

type FormationRepository struct {
	db DBTX
}

func NewFormationRepository(db DBTX) *FormationRepository {
	return &FormationRepository{db: db}
}

type CreateFormationInput struct {
	Title                string
	Description          *string
	Category             *string
	DurationType         string
	Price                float64
	IsExpertise          bool
	IsPublished          bool
	AuthorizedTrainerIDs []int64
}

func (r *FormationRepository) Create(ctx context.Context, input CreateFormationInput) (*models.Formation, error) {
	query := `
		INSERT INTO formations (title, description, category, duration_type, price, is_expertise, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	formation := models.Formation{
		Title:                input.Title,
		Description:          input.Description,
		Category:             input.Category,
		DurationType:         input.DurationType,
		Price:                input.Price,
		IsExpertise:          input.IsExpertise,
		IsPublished:          input.IsPublished,
		AuthorizedTrainerIDs: input.AuthorizedTrainerIDs,
	}
	err := r.db.QueryRow(ctx, query,
		input.Title, input.Description, input.Category, input.DurationType,
		input.Price, input.IsExpertise, input.IsPublished,
	).Scan(&formation.ID, &formation.CreatedAt, &formation.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, trainerID := range input.AuthorizedTrainerIDs {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO formation_formateur (formation_id, formateur_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			formation.ID, trainerID,
		); err != nil {
			return nil, err
		}
	}
	return &formation, nil
}

func (r *FormationRepository) GetByID(ctx context.Context, id int64) (*models.Formation, error) {
	query := `SELECT ` + formationColumns + ` FROM formations fo WHERE fo.id = $1`

	var formation models.Formation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&formation.ID,
		&formation.Title,
		&formation.Description,
		&formation.Category,
		&formation.DurationType,
		&formation.Price,
		&formation.IsExpertise,
		&formation.IsPublished,
		&formation.AuthorizedTrainerIDs,
		&formation.CreatedAt,
		&formation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &formation, nil
}

func (r *FormationRepository) ListPublished(ctx context.Context) ([]models.Formation, error) {
	query := `SELECT ` + formationColumns + ` FROM formations fo WHERE fo.is_published ORDER BY fo.title ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	formations := make([]models.Formation, 0)
	for rows.Next() {
		var formation models.Formation
		if err := rows.Scan(
			&formation.ID,
			&formation.Title,
			&formation.Description,
			&formation.Category,
			&formation.DurationType,
			&formation.Price,
			&formation.IsExpertise,
			&formation.IsPublished,
			&formation.AuthorizedTrainerIDs,
			&formation.CreatedAt,
			&formation.UpdatedAt,
		); err != nil {
			return nil, err
		}
		formations = append(formations, formation)
	}
	return formations, rows.Err()
}
