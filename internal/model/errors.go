package model

import "errors"

// Domain sentinels shared across services and handlers. Transport code
// maps these to HTTP status codes in one place instead of re-deriving
// failure categories per screen.
var (
	ErrNoSession                 = errors.New("no session for provider and date")
	ErrSessionCancelled          = errors.New("session cancelled")
	ErrSessionEnded              = errors.New("session ended")
	ErrSlotUnavailable           = errors.New("no token slot available")
	ErrAppointmentNotFound       = errors.New("appointment not found")
	ErrPaymentOrderNotFound      = errors.New("payment order not found")
	ErrPaymentOrderFailed        = errors.New("payment order creation failed")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrReservationExpired        = errors.New("reservation expired before payment completed")
	ErrRescheduleBlocked         = errors.New("cannot reschedule onto the cancelled session date")
	ErrRescheduleNotEligible     = errors.New("appointment not eligible for reschedule")
	ErrInvalidTransition         = errors.New("invalid appointment state transition")
)
