package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"drivehub/internal/db"
)

type JobRepository struct {
	DB *sql.DB
}

func NewJobRepository(database *sql.DB) *JobRepository {
	return &JobRepository{DB: database}
}

// GetDeliveredBookingIDsPastEndDate returns ids of bookings still out on
// delivery whose rental period already ended.
func (r *JobRepository) GetDeliveredBookingIDsPastEndDate(ctx context.Context) ([]string, error) {
	return r.queryIDs(ctx, `
		SELECT id FROM bookings
		WHERE status = $1 AND end_date < now()`,
		string(db.StatusOnDeliveryPending))
}

// GetStaleAwaitingPaymentIDs returns ids of bookings that have been waiting
// for payment longer than ttl.
func (r *JobRepository) GetStaleAwaitingPaymentIDs(ctx context.Context, ttl time.Duration) ([]string, error) {
	return r.queryIDs(ctx, `
		SELECT id FROM bookings
		WHERE status = $1 AND created_at < now() - $2::interval`,
		string(db.StatusAwaitingPayment), fmt.Sprintf("%d seconds", int(ttl.Seconds())))
}

func (r *JobRepository) queryIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying booking ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning booking id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return ids, nil
}

// UpdateBookingStatuses moves a list of bookings to newStatus, guarded by
// fromStatus so a booking transitioned elsewhere in the meantime is skipped.
func (r *JobRepository) UpdateBookingStatuses(ctx context.Context, ids []string, fromStatus, newStatus db.BookingStatus) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE bookings SET status = $1, updated_at = now() WHERE status = $2 AND id = ANY($3)`
	result, err := r.DB.ExecContext(ctx, query, string(newStatus), string(fromStatus), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error updating booking statuses: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Printf("Could not get rows affected: %v", err)
	} else {
		log.Printf("Updated status for %d bookings to '%s'", rowsAffected, newStatus)
	}
	return nil
}

// UpdatePaymentStatuses marks the payments of the given bookings.
func (r *JobRepository) UpdatePaymentStatuses(ctx context.Context, bookingIDs []string, status db.PaymentStatus) error {
	if len(bookingIDs) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = now() WHERE booking_id = ANY($2)`,
		string(status), pq.Array(bookingIDs))
	if err != nil {
		return fmt.Errorf("error updating payment statuses: %w", err)
	}
	return nil
}
