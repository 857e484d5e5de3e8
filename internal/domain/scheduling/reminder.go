package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/pkg/timeslot"
)

const reminderBatch = 100

// ReminderJob periodically sends one reminder per active appointment
// scheduled for the next day.
type ReminderJob struct {
	appointments AppointmentRepository
	notifier     notification.Notifier
	interval     time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

func NewReminderJob(appts AppointmentRepository, notifier notification.Notifier, interval time.Duration, logger zerolog.Logger) *ReminderJob {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &ReminderJob{
		appointments: appts,
		notifier:     notifier,
		interval:     interval,
		logger:       logger.With().Str("component", "reminder").Logger(),
		now:          time.Now,
	}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (j *ReminderJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if n, err := j.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			j.logger.Error().Err(err).Msg("reminder sweep failed")
		} else if n > 0 {
			j.logger.Info().Int("sent", n).Msg("appointment reminders queued")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep claims tomorrow's unreminded appointments in batches and notifies
// each patient. It returns the number of reminders queued. When the
// notifier refuses a reminder, that claim and the rest of the batch are
// released for the next sweep and this one stops.
func (j *ReminderJob) Sweep(ctx context.Context) (int, error) {
	tomorrow := timeslot.DateOf(j.now()).AddDays(1)
	sent := 0
	for {
		batch, err := j.appointments.ClaimReminders(ctx, tomorrow, reminderBatch)
		if err != nil {
			return sent, err
		}
		for i, a := range batch {
			if j.notifier.Notify(ctx, a.PatientID, a.info(), notification.EventReminder) {
				sent++
				continue
			}
			j.logger.Warn().
				Str("appointment_id", a.ID.String()).
				Int("released", len(batch)-i).
				Msg("reminder not queued, releasing claims")
			return sent, j.release(ctx, batch[i:])
		}
		if len(batch) < reminderBatch {
			return sent, nil
		}
	}
}

func (j *ReminderJob) release(ctx context.Context, appts []*Appointment) error {
	for _, a := range appts {
		if err := j.appointments.ReleaseReminder(ctx, a.ID); err != nil {
			return fmt.Errorf("release reminder %s: %w", a.ID, err)
		}
	}
	return nil
}
