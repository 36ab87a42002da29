package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	config SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPService(config SMTPConfig) Service {
	return &smtpService{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}
}

func (s *smtpService) SendBookingConfirmation(ctx context.Context, to string, tokenNumber int, scheduledAt string) error {
	body := fmt.Sprintf(
		"Your appointment is confirmed.\n\nToken number: %d\nScheduled time: %s\n\nPlease arrive 10 minutes before your scheduled time.",
		tokenNumber, scheduledAt,
	)
	return s.send(ctx, to, "Appointment confirmed", body)
}

func (s *smtpService) SendRescheduleNotice(ctx context.Context, to string, tokenNumber int, scheduledAt string) error {
	body := fmt.Sprintf(
		"Your appointment has been rescheduled.\n\nNew token number: %d\nNew scheduled time: %s",
		tokenNumber, scheduledAt,
	)
	return s.send(ctx, to, "Appointment rescheduled", body)
}

func (s *smtpService) SendCancellationNotice(ctx context.Context, to string, reason string) error {
	body := "Your appointment has been cancelled."
	if reason != "" {
		body = fmt.Sprintf("%s\n\nReason: %s", body, reason)
	}
	return s.send(ctx, to, "Appointment cancelled", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	return s.send(ctx, to, subject, content)
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
