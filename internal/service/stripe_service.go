package service

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
)

type StripeService struct {
	successURL string
	cancelURL  string
}

func NewStripeService(successURL, cancelURL string) *StripeService {
	return &StripeService{successURL: successURL, cancelURL: cancelURL}
}

// CreateCheckoutSession opens a Stripe Checkout session for a booking and
// returns its redirect URL and session id.
func (s *StripeService) CreateCheckoutSession(amountCents int64, currency, code, customerEmail string) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Car rental booking %s", code)),
					},
					UnitAmount: stripe.Int64(amountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(s.successURL),
		CancelURL:     stripe.String(s.cancelURL),
		CustomerEmail: stripe.String(customerEmail),
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", err
	}
	return sess.URL, sess.ID, nil
}

// RefundBySessionID refunds the payment behind a checkout session.
func (s *StripeService) RefundBySessionID(sessionID string) error {
	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return err
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return fmt.Errorf("no PaymentIntent found for session %s", sessionID)
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
	}
	_, err = refund.New(params)
	return err
}

// GetSessionIDByPaymentIntentID looks up the checkout session that produced
// a PaymentIntent, for webhook events that only carry the intent.
func (s *StripeService) GetSessionIDByPaymentIntentID(paymentIntentID string) (string, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: &paymentIntentID,
	}
	params.Limit = stripe.Int64(1)
	it := session.List(params)
	for it.Next() {
		sess := it.CheckoutSession()
		if sess != nil && sess.ID != "" {
			return sess.ID, nil
		}
	}
	return "", fmt.Errorf("no session found for PaymentIntent %s", paymentIntentID)
}
