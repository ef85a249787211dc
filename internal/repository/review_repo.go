package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/lib/pq"

	"drivehub/internal/db"
	apperr "drivehub/internal/errors"
)

type ReviewRepository struct {
	DB *sql.DB
}

func NewReviewRepository(database *sql.DB) *ReviewRepository {
	return &ReviewRepository{DB: database}
}

// CreateAndRecompute inserts a review and recomputes the car's aggregate
// rating in the same transaction, so no committed review is ever missing
// from the aggregate. The car row is locked FOR UPDATE to serialize
// concurrent recomputations for the same car. Returns the new aggregate.
func (r *ReviewRepository) CreateAndRecompute(ctx context.Context, review *db.Review) (float64, int, error) {
	avg, total, err := r.createAndRecompute(ctx, review)
	if err != nil && retryable(err) {
		avg, total, err = r.createAndRecompute(ctx, review)
	}
	if err == nil {
		return avg, total, nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return 0, 0, fmt.Errorf("booking %s: %w", review.BookingID, apperr.ErrDuplicateReview)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return 0, 0, err
	}
	return 0, 0, fmt.Errorf("create review: %w: %v", apperr.ErrStorage, err)
}

func (r *ReviewRepository) createAndRecompute(ctx context.Context, review *db.Review) (float64, int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var carID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM cars WHERE id = $1 FOR UPDATE`, review.CarID).Scan(&carID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, fmt.Errorf("car %s: %w", review.CarID, apperr.ErrNotFound)
		}
		return 0, 0, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO reviews (id, booking_id, car_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		review.ID, review.BookingID, review.CarID, review.UserID,
		review.Rating, review.Comment, review.CreatedAt,
	).Scan(&review.CreatedAt)
	if err != nil {
		return 0, 0, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT rating FROM reviews WHERE car_id = $1`, review.CarID)
	if err != nil {
		return 0, 0, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return 0, 0, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate ratings: %w", err)
	}

	avg, total := AggregateRating(ratings)

	_, err = tx.ExecContext(ctx, `
		UPDATE cars SET average_rating = $1, total_ratings = $2, updated_at = now()
		WHERE id = $3`,
		avg, total, review.CarID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("update car aggregate: %w", err)
	}

	return avg, total, tx.Commit()
}

// AggregateRating computes the full recompute-from-scratch aggregate: the
// count and the mean rounded half-up to one decimal place.
func AggregateRating(ratings []int) (float64, int) {
	if len(ratings) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(ratings))
	return math.Floor(mean*10+0.5) / 10, len(ratings)
}

// ListForCar returns the reviews for a car, newest first.
func (r *ReviewRepository) ListForCar(ctx context.Context, carID string) ([]db.Review, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, booking_id, car_id, user_id, rating, comment, created_at
		FROM reviews WHERE car_id = $1 ORDER BY created_at DESC`, carID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var reviews []db.Review
	for rows.Next() {
		var rv db.Review
		if err := rows.Scan(&rv.ID, &rv.BookingID, &rv.CarID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}
