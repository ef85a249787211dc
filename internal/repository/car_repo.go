package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"drivehub/internal/db"
	apperr "drivehub/internal/errors"
)

type CarRepository struct {
	DB *sql.DB
}

func NewCarRepository(database *sql.DB) *CarRepository {
	return &CarRepository{DB: database}
}

const carSelect = `
	SELECT id, owner_id, make, model, year, plate, daily_price_cents, currency,
	       average_rating, total_ratings, created_at, updated_at
	FROM cars`

func (r *CarRepository) GetByID(ctx context.Context, id string) (*db.Car, error) {
	var c db.Car
	err := r.DB.QueryRowContext(ctx, carSelect+` WHERE id = $1`, id).Scan(
		&c.ID, &c.OwnerID, &c.Make, &c.Model, &c.Year, &c.Plate,
		&c.DailyPriceCents, &c.Currency, &c.AverageRating, &c.TotalRatings,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("car %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("query car: %w: %v", apperr.ErrStorage, err)
	}
	return &c, nil
}

func (r *CarRepository) List(ctx context.Context) ([]db.Car, error) {
	rows, err := r.DB.QueryContext(ctx, carSelect+` ORDER BY make, model`)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var cars []db.Car
	for rows.Next() {
		var c db.Car
		err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Make, &c.Model, &c.Year, &c.Plate,
			&c.DailyPriceCents, &c.Currency, &c.AverageRating, &c.TotalRatings,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

func (r *CarRepository) Create(ctx context.Context, c *db.Car) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO cars (id, owner_id, make, model, year, plate, daily_price_cents, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at`,
		c.ID, c.OwnerID, c.Make, c.Model, c.Year, c.Plate, c.DailyPriceCents, c.Currency,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create car: %w: %v", apperr.ErrStorage, err)
	}
	return nil
}

func (r *CarRepository) UpdateDailyPrice(ctx context.Context, id string, dailyPriceCents int64) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE cars SET daily_price_cents = $1, updated_at = now() WHERE id = $2`,
		dailyPriceCents, id,
	)
	if err != nil {
		return fmt.Errorf("update car price: %w: %v", apperr.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("car %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
