package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"devportal-billing/internal/config"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
	"devportal-billing/internal/infra/metrics"
)

var _ adapter.ConfirmationSender = (*SMTPSender)(nil)

// SMTPSender delivers confirmation messages over plain SMTP. One attempt per
// call; the dispatcher owns logging and never blocks the webhook path on it.
type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendPaymentConfirmation(ctx context.Context, email string, sub *model.Subscription, intent *model.PaymentIntent) error {
	subject := fmt.Sprintf("Payment confirmed: %s plan", sub.Plan)
	body := fmt.Sprintf(
		"Your payment of %d.%02d PLN was confirmed.\r\n"+
			"Plan: %s (%s billing)\r\n"+
			"Subscription active until %s.\r\n",
		intent.Amount/100, intent.Amount%100,
		intent.Plan, intent.Period,
		sub.PeriodEnd.Format("2006-01-02"),
	)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", s.cfg.Sender, email, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
			body,
	)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, s.cfg.Sender, []string{email}, msg) }()
	select {
	case <-ctx.Done():
		metrics.ConfirmationMailTotal.WithLabelValues("error").Inc()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			metrics.ConfirmationMailTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.ConfirmationMailTotal.WithLabelValues("sent").Inc()
		return nil
	}
}
