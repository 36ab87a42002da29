package email

import (
	"context"
)

type Service interface {
	SendBookingConfirmation(ctx context.Context, to string, tokenNumber int, scheduledAt string) error
	SendRescheduleNotice(ctx context.Context, to string, tokenNumber int, scheduledAt string) error
	SendCancellationNotice(ctx context.Context, to string, reason string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}
