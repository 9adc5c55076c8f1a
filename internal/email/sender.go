package email

import (
	"context"
	"errors"
	"time"
)

// Sender entrega códigos de verificación a un número de teléfono.
type Sender interface {
	SendCode(ctx context.Context, phoneNumber string, code string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendCode(_ context.Context, _ string, _ string, _ time.Time) error {
	if s.reason == "" {
		return errors.New("code sender disabled")
	}
	return errors.New(s.reason)
}
