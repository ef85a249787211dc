package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"drivehub/internal/db"
	"drivehub/internal/entities"
)

// SenderService delivers booking lifecycle emails (SendGrid) and SMS
// (Twilio). Delivery is best-effort: failures are logged, never returned
// into the booking flow.
type SenderService struct {
	sendgridAPIKey string
	fromEmail      string
	fromName       string

	twilioAccountSID string
	twilioAuthToken  string
	twilioFromNumber string
}

func NewSenderService(sendgridAPIKey, fromEmail, fromName, twilioAccountSID, twilioAuthToken, twilioFromNumber string) *SenderService {
	return &SenderService{
		sendgridAPIKey:   sendgridAPIKey,
		fromEmail:        fromEmail,
		fromName:         fromName,
		twilioAccountSID: twilioAccountSID,
		twilioAuthToken:  twilioAuthToken,
		twilioFromNumber: twilioFromNumber,
	}
}

// statusWording maps a booking status to the phrasing used in messages.
func statusWording(status db.BookingStatus) string {
	switch status {
	case db.StatusRequested:
		return "requested"
	case db.StatusAwaitingPayment:
		return "awaiting payment"
	case db.StatusConfirmed:
		return "confirmed"
	case db.StatusOnDeliveryPending:
		return "out for delivery"
	case db.StatusCompleted:
		return "completed"
	case db.StatusCancelled:
		return "cancelled"
	case db.StatusPaymentFailed:
		return "cancelled (payment failed)"
	case db.StatusNoShow:
		return "closed as no-show"
	}
	return string(status)
}

// bookingEmail renders the subject and plain-text body for a status change.
func bookingEmail(data entities.BookingEmailData) (subject, body string) {
	subject = fmt.Sprintf("Your DriveHub booking is %s - Code: %s", data.Status, data.BookingCode)
	body = fmt.Sprintf(
		"Hello %s,\n\nYour booking at DriveHub is %s.\n\n"+
			"Booking details:\n"+
			"Booking code: %s\n"+
			"Car: %s %s\n"+
			"Pick-up: %s\n"+
			"Drop-off: %s\n\n"+
			"Thank you for choosing DriveHub.\n\n"+
			"(c) %d DriveHub",
		data.UserName, data.Status, data.BookingCode, data.CarMake, data.CarModel,
		data.StartDateFormatted, data.EndDateFormatted, data.CurrentYear,
	)
	return subject, body
}

func (s *SenderService) BookingStatusChanged(b *db.Booking, user *db.User, car *db.Car) {
	status := statusWording(b.Status)

	data := entities.BookingEmailData{
		UserName:           user.Name,
		BookingCode:        b.Code,
		CarMake:            car.Make,
		CarModel:           car.Model,
		StartDateFormatted: b.StartDate.Format("02 Jan 2006 15:04 MST"),
		EndDateFormatted:   b.EndDate.Format("02 Jan 2006 15:04 MST"),
		Status:             status,
		CurrentYear:        time.Now().Year(),
	}

	subject, body := bookingEmail(data)

	go func() {
		if err := s.sendEmail(user.Email, user.Name, subject, body); err != nil {
			log.Printf("booking %s: email notification failed: %v", b.Code, err)
		}
	}()

	if user.Phone != "" {
		sms := fmt.Sprintf("DriveHub: booking %s is %s.\nPick-up: %s.\nDetails in your email.",
			b.Code, status, b.StartDate.Format("02/01 15:04"))
		if err := s.sendSMS(user.Phone, sms); err != nil {
			log.Printf("booking %s: SMS notification failed: %v", b.Code, err)
		}
	}
}

func (s *SenderService) sendEmail(toEmail, toName, subject, plainText string) error {
	if s.sendgridAPIKey == "" || s.fromEmail == "" {
		return fmt.Errorf("sendgrid not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, "")

	client := sendgrid.NewSendClient(s.sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func (s *SenderService) sendSMS(toNumber, messageBody string) error {
	if s.twilioAccountSID == "" || s.twilioAuthToken == "" || s.twilioFromNumber == "" {
		return fmt.Errorf("twilio not configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("destination number %q is not E.164, SMS may fail", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   s.twilioAccountSID,
		Password:   s.twilioAuthToken,
		AccountSid: s.twilioAccountSID,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(s.twilioFromNumber)
	params.SetBody(messageBody)

	_, err := client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	return nil
}
