package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"drivehub/internal/db"
	"drivehub/internal/entities"
	apperr "drivehub/internal/errors"
)

// ReviewStore persists a review together with the car aggregate recompute,
// in one transaction.
type ReviewStore interface {
	CreateAndRecompute(ctx context.Context, review *db.Review) (avg float64, total int, err error)
	ListForCar(ctx context.Context, carID string) ([]db.Review, error)
}

type ReviewService struct {
	reviews  ReviewStore
	bookings BookingStore
}

func NewReviewService(reviews ReviewStore, bookings BookingStore) *ReviewService {
	return &ReviewService{reviews: reviews, bookings: bookings}
}

// AttachReview creates the review for a completed booking and recomputes the
// car's average rating atomically with it. Only the renter who made the
// booking may review it, and only once.
func (s *ReviewService) AttachReview(ctx context.Context, bookingID, renterID string, rating int, comment string) (*entities.ReviewResponse, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating %d out of range 1-5: %w", rating, apperr.ErrValidation)
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != db.StatusCompleted {
		return nil, fmt.Errorf("booking %s is %s: %w", b.Code, b.Status, apperr.ErrNotCompleted)
	}
	if b.UserID != renterID {
		return nil, fmt.Errorf("booking %s does not belong to renter %s: %w", b.Code, renterID, apperr.ErrForbidden)
	}

	review := &db.Review{
		ID:        uuid.New().String(),
		BookingID: b.ID,
		CarID:     b.CarID,
		UserID:    renterID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}

	avg, total, err := s.reviews.CreateAndRecompute(ctx, review)
	if err != nil {
		return nil, err
	}

	return &entities.ReviewResponse{
		ID:            review.ID,
		BookingID:     review.BookingID,
		CarID:         review.CarID,
		UserID:        review.UserID,
		Rating:        review.Rating,
		Comment:       review.Comment,
		AverageRating: avg,
		TotalRatings:  total,
		CreatedAt:     review.CreatedAt,
	}, nil
}

func (s *ReviewService) ListForCar(ctx context.Context, carID string) ([]db.Review, error) {
	return s.reviews.ListForCar(ctx, carID)
}
