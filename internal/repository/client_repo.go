package repository

import (
	"context"

	"github.com/Ganngann/form-act-sub001/internal/models"
)

type ClientRepository struct {
	db DBTX
}

func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (user_id, company_name, vat_number, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, client.UserID, client.CompanyName, client.VATNumber, client.Address).
		Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
}

func (r *ClientRepository) GetByUserID(ctx context.Context, userID int64) (*models.Client, error) {
	query := `
		SELECT id, user_id, company_name, vat_number, address, created_at, updated_at
		FROM clients
		WHERE user_id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, userID))
}

func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	query := `
		SELECT id, user_id, company_name, vat_number, address, created_at, updated_at
		FROM clients
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *ClientRepository) scanOne(row interface{ Scan(...any) error }) (*models.Client, error) {
	var client models.Client
	err := row.Scan(
		&client.ID,
		&client.UserID,
		&client.CompanyName,
		&client.VATNumber,
		&client.Address,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}
