package repository

import (
	"context"

	"github.com/Ganngann/form-act-sub001/internal/models"
)

type ZoneRepository struct {
	db DBTX
}

func NewZoneRepository(db DBTX) *ZoneRepository {
	return &ZoneRepository{db: db}
}

func (r *ZoneRepository) List(ctx context.Context) ([]models.Zone, error) {
	query := `
		SELECT id, code, name
		FROM zones
		ORDER BY name ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	zones := make([]models.Zone, 0)
	for rows.Next() {
		var zone models.Zone
		if err := rows.Scan(&zone.ID, &zone.Code, &zone.Name); err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

func (r *ZoneRepository) GetByID(ctx context.Context, id int64) (*models.Zone, error) {
	query := `
		SELECT id, code, name
		FROM zones
		WHERE id = $1
	`
	var zone models.Zone
	if err := r.db.QueryRow(ctx, query, id).Scan(&zone.ID, &zone.Code, &zone.Name); err != nil {
		return nil, err
	}
	return &zone, nil
}
