// Package deals stores the vehicle deals that evaluations are computed from.
package deals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles deal persistence.
// Database: dealeval.db (deals table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new deal repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "deal").Logger(),
	}
}

// GetDeal returns domain.ErrDealNotFound when no deal has dealID
func (r *Repository) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	var (
		deal                 domain.Deal
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, vehicle_make, vehicle_model, vehicle_year, vehicle_mileage,
		       vin, asking_price, created_at, updated_at
		FROM deals
		WHERE id = ?
	`, dealID).Scan(
		&deal.ID,
		&deal.UserID,
		&deal.VehicleMake,
		&deal.VehicleModel,
		&deal.VehicleYear,
		&deal.VehicleMileage,
		&deal.VIN,
		&deal.AskingPrice,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDealNotFound, dealID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deal %s: %w", dealID, err)
	}

	deal.CreatedAt = time.Unix(createdAt, 0).UTC()
	deal.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &deal, nil
}

// Upsert validates and stores a deal, keeping the original created_at on update
func (r *Repository) Upsert(ctx context.Context, deal *domain.Deal) error {
	if err := Validate(deal); err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deals
		(id, user_id, vehicle_make, vehicle_model, vehicle_year, vehicle_mileage,
		 vin, asking_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			vehicle_make = excluded.vehicle_make,
			vehicle_model = excluded.vehicle_model,
			vehicle_year = excluded.vehicle_year,
			vehicle_mileage = excluded.vehicle_mileage,
			vin = excluded.vin,
			asking_price = excluded.asking_price,
			updated_at = excluded.updated_at
	`,
		deal.ID,
		deal.UserID,
		deal.VehicleMake,
		deal.VehicleModel,
		deal.VehicleYear,
		deal.VehicleMileage,
		domain.NormalizeVIN(deal.VIN),
		deal.AskingPrice,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to store deal %s: %w", deal.ID, err)
	}

	r.log.Debug().Str("deal_id", deal.ID).Msg("Deal stored")
	return nil
}

// ListByUser returns a user's deals, most recently updated first
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Deal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, vehicle_make, vehicle_model, vehicle_year, vehicle_mileage,
		       vin, asking_price, created_at, updated_at
		FROM deals
		WHERE user_id = ?
		ORDER BY updated_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		var (
			deal                 domain.Deal
			createdAt, updatedAt int64
		)
		if err := rows.Scan(
			&deal.ID,
			&deal.UserID,
			&deal.VehicleMake,
			&deal.VehicleModel,
			&deal.VehicleYear,
			&deal.VehicleMileage,
			&deal.VIN,
			&deal.AskingPrice,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deal.CreatedAt = time.Unix(createdAt, 0).UTC()
		deal.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		deals = append(deals, deal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deals: %w", err)
	}
	return deals, nil
}
