package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"drivehub/internal/db"
	"drivehub/internal/repository"
)

type JobService struct {
	Repo       *repository.JobRepository
	PaymentTTL time.Duration
}

func NewJobService(repo *repository.JobRepository, paymentTTL time.Duration) *JobService {
	return &JobService{Repo: repo, PaymentTTL: paymentTTL}
}

// CompleteFinishedBookings marks bookings still out on delivery whose rental
// period ended as completed. Guarded by the current status so a booking
// transitioned elsewhere in the meantime is left alone.
func (s *JobService) CompleteFinishedBookings(ctx context.Context) error {
	ids, err := s.Repo.GetDeliveredBookingIDsPastEndDate(ctx)
	if err != nil {
		return fmt.Errorf("cron job: failed to get bookings past end date: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	log.Printf("Cron Job: marking %d bookings as completed. IDs: %v", len(ids), ids)
	err = s.Repo.UpdateBookingStatuses(ctx, ids, db.StatusOnDeliveryPending, db.StatusCompleted)
	if err != nil {
		return fmt.Errorf("cron job: failed to complete bookings: %w", err)
	}
	return nil
}

// ExpireStalePayments fails bookings whose checkout was never paid within
// the payment TTL, releasing their calendar slots.
func (s *JobService) ExpireStalePayments(ctx context.Context) error {
	ids, err := s.Repo.GetStaleAwaitingPaymentIDs(ctx, s.PaymentTTL)
	if err != nil {
		return fmt.Errorf("cron job: failed to get stale awaiting-payment bookings: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	log.Printf("Cron Job: expiring %d unpaid bookings. IDs: %v", len(ids), ids)
	err = s.Repo.UpdateBookingStatuses(ctx, ids, db.StatusAwaitingPayment, db.StatusPaymentFailed)
	if err != nil {
		return fmt.Errorf("cron job: failed to expire unpaid bookings: %w", err)
	}
	if err := s.Repo.UpdatePaymentStatuses(ctx, ids, db.PaymentFailed); err != nil {
		return fmt.Errorf("cron job: failed to mark payments failed: %w", err)
	}
	return nil
}
