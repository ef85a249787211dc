package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"drivehub/internal/db"
	"drivehub/internal/entities"
	apperr "drivehub/internal/errors"
)

const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
	pqSerializationFail  = "40001"
	pqDeadlockDetected   = "40P01"
)

type BookingRepository struct {
	DB *sql.DB
}

func NewBookingRepository(database *sql.DB) *BookingRepository {
	return &BookingRepository{DB: database}
}

func blockingStatusStrings() []string {
	out := make([]string, len(db.BlockingStatuses))
	for i, s := range db.BlockingStatuses {
		out[i] = string(s)
	}
	return out
}

// CreateWithPayment inserts a booking and its payment row after verifying the
// requested range is free. The car row is locked FOR UPDATE so concurrent
// requests for the same car serialize on the check-then-insert; the
// bookings_no_overlap exclusion constraint catches anything that still slips
// through. A transient serialization failure is retried once from scratch.
func (r *BookingRepository) CreateWithPayment(ctx context.Context, b *db.Booking, p *db.Payment) error {
	err := r.createWithPayment(ctx, b, p)
	if err != nil && retryable(err) {
		err = r.createWithPayment(ctx, b, p)
	}
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqExclusionViolation, pqSerializationFail, pqDeadlockDetected:
			return fmt.Errorf("booking %s: %w", b.Code, apperr.ErrConflict)
		}
	}
	if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return fmt.Errorf("create booking: %w: %v", apperr.ErrStorage, err)
}

func (r *BookingRepository) createWithPayment(ctx context.Context, b *db.Booking, p *db.Payment) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var carID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM cars WHERE id = $1 FOR UPDATE`, b.CarID).Scan(&carID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("car %s: %w", b.CarID, apperr.ErrNotFound)
		}
		return err
	}

	var conflictID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM bookings
		WHERE car_id = $1
		  AND status = ANY($2)
		  AND start_date < $4
		  AND end_date > $3
		LIMIT 1`,
		b.CarID, pq.Array(blockingStatusStrings()), b.StartDate, b.EndDate,
	).Scan(&conflictID)
	if err == nil {
		return fmt.Errorf("overlaps booking %s: %w", conflictID, apperr.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO bookings
		(id, code, car_id, user_id, start_date, end_date, status, total_price_cents, currency, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		b.ID, b.Code, b.CarID, b.UserID, b.StartDate, b.EndDate, string(b.Status),
		b.TotalPriceCents, b.Currency, b.Notes, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments
		(id, booking_id, amount_cents, currency, method, status, stripe_session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.BookingID, p.AmountCents, p.Currency, p.Method, string(p.Status),
		p.StripeSessionID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}

	b.PaymentStatus = p.Status
	b.StripeSessionID = p.StripeSessionID
	return tx.Commit()
}

// retryable reports whether a store error is transient: serialization or
// deadlock aborts, dropped connections, and connection-class (08xxx)
// Postgres errors. Callers retry these once from scratch.
func retryable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return true
		}
		return pqErr.Code == pqSerializationFail || pqErr.Code == pqDeadlockDetected
	}
	return false
}

const bookingSelect = `
	SELECT b.id, b.code, b.car_id, c.owner_id, b.user_id, b.start_date, b.end_date,
	       b.status, b.total_price_cents, b.currency, b.notes,
	       p.status, p.stripe_session_id, b.created_at, b.updated_at
	FROM bookings b
	JOIN cars c ON c.id = b.car_id
	JOIN payments p ON p.booking_id = b.id`

func scanBooking(row *sql.Row) (*db.Booking, error) {
	var b db.Booking
	var status, paymentStatus string
	err := row.Scan(
		&b.ID, &b.Code, &b.CarID, &b.CarOwnerID, &b.UserID, &b.StartDate, &b.EndDate,
		&status, &b.TotalPriceCents, &b.Currency, &b.Notes,
		&paymentStatus, &b.StripeSessionID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.Status = db.BookingStatus(status)
	b.PaymentStatus = db.PaymentStatus(paymentStatus)
	return &b, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*db.Booking, error) {
	return scanBooking(r.DB.QueryRowContext(ctx, bookingSelect+` WHERE b.id = $1`, id))
}

func (r *BookingRepository) GetByCode(ctx context.Context, code, email string) (*db.Booking, error) {
	query := bookingSelect + `
	JOIN users u ON u.id = b.user_id
	WHERE b.code = $1 AND u.email = $2`
	return scanBooking(r.DB.QueryRowContext(ctx, query, code, email))
}

func (r *BookingRepository) GetByStripeSessionID(ctx context.Context, sessionID string) (*db.Booking, error) {
	return scanBooking(r.DB.QueryRowContext(ctx, bookingSelect+` WHERE p.stripe_session_id = $1`, sessionID))
}

// Transition moves a booking from one status to another with a conditional
// update, so a concurrent transition loses cleanly instead of overwriting.
// It reports whether the row was actually moved. paymentStatus, when non-nil,
// is applied to the payment row in the same transaction.
func (r *BookingRepository) Transition(ctx context.Context, id string, from, to db.BookingStatus, paymentStatus *db.PaymentStatus) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w: %v", apperr.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if paymentStatus != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE payments SET status = $1, updated_at = now()
			WHERE booking_id = $2`,
			string(*paymentStatus), id,
		)
		if err != nil {
			return false, fmt.Errorf("update payment status: %w: %v", apperr.ErrStorage, err)
		}
	}

	return true, tx.Commit()
}

// SetPaymentStatus updates a booking's payment row on its own, outside any
// booking status change. Used when a refund is confirmed after the booking
// already moved to its final status.
func (r *BookingRepository) SetPaymentStatus(ctx context.Context, bookingID string, status db.PaymentStatus) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = now()
		WHERE booking_id = $2`,
		string(status), bookingID,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w: %v", apperr.ErrStorage, err)
	}
	return nil
}

// BlockedIntervals returns the occupied ranges on a car's calendar, current
// and future only, ordered by start date.
func (r *BookingRepository) BlockedIntervals(ctx context.Context, carID string) ([]entities.DateInterval, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT start_date, end_date FROM bookings
		WHERE car_id = $1
		  AND status = ANY($2)
		  AND end_date >= now()
		ORDER BY start_date`,
		carID, pq.Array(blockingStatusStrings()),
	)
	if err != nil {
		return nil, fmt.Errorf("query blocked intervals: %w: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var intervals []entities.DateInterval
	for rows.Next() {
		var iv entities.DateInterval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intervals: %w", err)
	}
	return intervals, nil
}

// List returns bookings matching the given filters, newest first. Empty
// filter values are ignored.
func (r *BookingRepository) List(ctx context.Context, date, status, carID string) ([]db.Booking, error) {
	query := bookingSelect + ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if date != "" {
		query += " AND DATE(b.start_date) = $" + strconv.Itoa(idx)
		args = append(args, date)
		idx++
	}
	if status != "" {
		query += " AND b.status = $" + strconv.Itoa(idx)
		args = append(args, status)
		idx++
	}
	if carID != "" {
		query += " AND b.car_id = $" + strconv.Itoa(idx)
		args = append(args, carID)
		idx++
	}
	query += " ORDER BY b.start_date DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		var b db.Booking
		var bStatus, pStatus string
		err := rows.Scan(
			&b.ID, &b.Code, &b.CarID, &b.CarOwnerID, &b.UserID, &b.StartDate, &b.EndDate,
			&bStatus, &b.TotalPriceCents, &b.Currency, &b.Notes,
			&pStatus, &b.StripeSessionID, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		b.Status = db.BookingStatus(bStatus)
		b.PaymentStatus = db.PaymentStatus(pStatus)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListForUser returns a renter's own bookings, newest first.
func (r *BookingRepository) ListForUser(ctx context.Context, userID string) ([]db.Booking, error) {
	rows, err := r.DB.QueryContext(ctx, bookingSelect+`
		WHERE b.user_id = $1 ORDER BY b.start_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		var b db.Booking
		var bStatus, pStatus string
		err := rows.Scan(
			&b.ID, &b.Code, &b.CarID, &b.CarOwnerID, &b.UserID, &b.StartDate, &b.EndDate,
			&bStatus, &b.TotalPriceCents, &b.Currency, &b.Notes,
			&pStatus, &b.StripeSessionID, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		b.Status = db.BookingStatus(bStatus)
		b.PaymentStatus = db.PaymentStatus(pStatus)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
