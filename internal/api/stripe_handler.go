package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"drivehub/internal/db"
	apperr "drivehub/internal/errors"
)

// paymentActor is the system identity webhook-driven transitions run as.
var paymentActor = db.Actor{ID: "stripe-webhook", Role: db.RolePayment}

// BookingTransitions is the slice of the booking service the payment
// webhook drives.
type BookingTransitions interface {
	GetBookingByStripeSessionID(ctx context.Context, sessionID string) (*db.Booking, error)
	Transition(ctx context.Context, bookingID string, event db.BookingEvent, actor db.Actor) (*db.Booking, error)
	ReconcileRefund(ctx context.Context, sessionID string) error
}

// PaymentSessions resolves gateway identifiers for events that do not carry
// the checkout session directly.
type PaymentSessions interface {
	GetSessionIDByPaymentIntentID(paymentIntentID string) (string, error)
}

type StripeWebhookHandler struct {
	StripeSecret string
	bookings     BookingTransitions
	sessions     PaymentSessions
}

func NewStripeWebhookHandler(stripeSecret string, bookings BookingTransitions, sessions PaymentSessions) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		StripeSecret: stripeSecret,
		bookings:     bookings,
		sessions:     sessions,
	}
}

// HandleWebhook verifies the event signature and translates payment events
// into booking transitions. The core never calls the gateway from here.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.StripeSecret)
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.sessionEvent(w, r, event, db.EventPaymentConfirmed)
		return

	case "checkout.session.expired":
		h.sessionEvent(w, r, event, db.EventPaymentFailed)
		return

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			log.Printf("Error parsing charge: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
			sessionID, err := h.sessions.GetSessionIDByPaymentIntentID(charge.PaymentIntent.ID)
			if err != nil {
				log.Printf("No session found for PaymentIntent %s: %v", charge.PaymentIntent.ID, err)
				w.WriteHeader(http.StatusOK)
				return
			}
			if err := h.bookings.ReconcileRefund(r.Context(), sessionID); err != nil {
				log.Printf("Refund reconciliation failed for session %s: %v", sessionID, err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}

	default:
		log.Printf("Unhandled event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) sessionEvent(w http.ResponseWriter, r *http.Request, event stripe.Event, bookingEvent db.BookingEvent) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		log.Printf("Error parsing checkout.session: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if sess.ID == "" {
		log.Printf("No session ID in %s", event.Type)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	booking, err := h.bookings.GetBookingByStripeSessionID(r.Context(), sess.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Not one of ours; acknowledge so Stripe stops retrying.
			log.Printf("No booking for session %s", sess.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("DB error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	_, err = h.bookings.Transition(r.Context(), booking.ID, bookingEvent, paymentActor)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidState) {
			// Duplicate delivery or a state already advanced; acknowledge.
			log.Printf("Ignoring %s for booking %s in status %s", event.Type, booking.Code, booking.Status)
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("Transition failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
