package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/pkg/timeslot"
)

func TestReminderJob_Sweep(t *testing.T) {
	env := newTestEnv()
	due := env.book(t, "10:00", "10:30")
	canceled := env.book(t, "11:00", "11:30")
	if _, err := env.svc.CancelAppointment(context.Background(), canceled.ID); err != nil {
		t.Fatal(err)
	}
	in := env.input("10:00", "10:30")
	in.Date = monday.AddDays(1)
	later, err := env.svc.CreateAppointment(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	job := NewReminderJob(env.repo, env.notifier, time.Minute, zerolog.Nop())
	job.now = func() time.Time { return monday.AddDays(-1).Time().Add(20 * time.Hour) }

	n, err := job.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reminder, got %d", n)
	}
	if got := env.notifier.events(due.PatientID); got[len(got)-1] != notification.EventReminder {
		t.Errorf("expected reminder for due appointment, got %v", got)
	}
	for _, ev := range env.notifier.events(later.PatientID) {
		if ev == notification.EventReminder {
			t.Error("appointment two days out should not be reminded yet")
		}
	}

	// A second sweep finds nothing left to claim.
	if n, _ := job.Sweep(context.Background()); n != 0 {
		t.Errorf("expected no repeat reminders, got %d", n)
	}
}

func TestReminderJob_SweepBatches(t *testing.T) {
	env := newTestEnv()
	env.repo.claimSize = 2
	for _, start := range []string{"09:00", "09:30", "10:00", "10:30", "11:00"} {
		env.book(t, start, tod(start).Add(30).String())
	}

	job := NewReminderJob(env.repo, env.notifier, 0, zerolog.Nop())
	job.now = func() time.Time { return monday.AddDays(-1).Time() }

	// A short batch ends the pass.
	n, err := job.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 reminders from a short batch, got %d", n)
	}
}

func TestReminderJob_SweepReleasesRefusedReminders(t *testing.T) {
	env := newTestEnv()
	first := env.book(t, "09:00", "09:30")
	second := env.book(t, "10:00", "10:30")

	job := NewReminderJob(env.repo, env.notifier, time.Minute, zerolog.Nop())
	job.now = func() time.Time { return monday.AddDays(-1).Time() }

	env.notifier.refuse = true
	n, err := job.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected nothing queued, got %d", n)
	}
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		a, _ := env.repo.GetByID(context.Background(), id)
		if a.ReminderSentAt != nil {
			t.Errorf("expected claim on %s to be released", id)
		}
	}

	env.notifier.refuse = false
	n, err = job.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected both reminders on the next sweep, got %d", n)
	}
}

type failingClaimRepo struct {
	*mockAppointmentRepo
}

func (failingClaimRepo) ClaimReminders(context.Context, timeslot.Date, int) ([]*Appointment, error) {
	return nil, errors.New("db down")
}

func TestReminderJob_SweepError(t *testing.T) {
	env := newTestEnv()
	job := NewReminderJob(failingClaimRepo{env.repo}, env.notifier, time.Minute, zerolog.Nop())
	if _, err := job.Sweep(context.Background()); err == nil {
		t.Error("expected claim error to propagate")
	}
}

func TestReminderJob_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv()
	job := NewReminderJob(env.repo, env.notifier, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()
	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
