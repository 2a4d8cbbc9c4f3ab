package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/careops/hospital-backend/pkg/logger"
)

// Routing keys for appointment events
const (
	KeyAppointmentBooked    = "appointment.booked"
	KeyAppointmentCancelled = "appointment.cancelled"
	KeyAppointmentCompleted = "appointment.completed"
	KeyAppointmentNoShow    = "appointment.no_show"
)

// Notifier dispatches domain events to whatever delivery channel is
// configured. Dispatch is fire-and-forget: callers log failures and move on.
type Notifier interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}

// LogNotifier writes events to the log. Used when no broker is configured.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier that only logs events
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Component("notify")}
}

// Publish logs the event
func (n *LogNotifier) Publish(ctx context.Context, key string, payload any) error {
	n.log.Info().Str("key", key).Interface("payload", payload).Msg("Notification dispatched")
	return nil
}

// Close is a no-op
func (n *LogNotifier) Close() error { return nil }
