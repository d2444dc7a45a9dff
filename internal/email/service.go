package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Service sends transactional mail. Failures are the caller's to log; the
// scheduling and billing cores never block on mail delivery.
type Service interface {
	SendAppointmentConfirmation(ctx context.Context, to string, start string) error
	SendPaymentReceipt(ctx context.Context, to string, billNumber string, total float64) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
	logger *zerolog.Logger
}

func NewService(cfg Config, logger *zerolog.Logger) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *smtpService) SendAppointmentConfirmation(ctx context.Context, to string, start string) error {
	body := fmt.Sprintf("Your appointment is confirmed for %s.", start)
	return s.send(to, "Appointment confirmation", body)
}

func (s *smtpService) SendPaymentReceipt(ctx context.Context, to string, billNumber string, total float64) error {
	body := fmt.Sprintf("Payment of %.2f received for bill %s. Thank you.", total, billNumber)
	return s.send(to, fmt.Sprintf("Receipt for %s", billNumber), body)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	return s.send(to, subject, content)
}

func (s *smtpService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn().Err(err).Str("to", to).Str("subject", subject).Msg("failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
