package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/pkg/timeslot"
)

type AppointmentRepository interface {
	// Create inserts a. It returns ErrSlotBooked if another active
	// appointment already starts at the same doctor, date and time.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update writes the schedule and detail columns of a, but never its
	// status, if the stored version still equals a.Version. On success
	// a.Status, a.Version and a.UpdatedAt reflect the stored row. A version
	// mismatch returns ErrStaleAppointment.
	Update(ctx context.Context, a *Appointment) error
	// UpdateStatus sets the status if the stored version still equals
	// version, and returns ErrStaleAppointment otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, version int, status Status) (*Appointment, error)
	// Complete records a's diagnosis columns and marks it completed under
	// the same version check. Canceled appointments are never completed.
	Complete(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Appointment, int, error)
	// ActiveIntervals returns the intervals of non-canceled appointments for
	// doctorID on date, skipping excludeID.
	ActiveIntervals(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, excludeID uuid.UUID) ([]timeslot.Interval, error)
	// ClaimReminders marks up to limit active appointments on date that have
	// not been reminded and returns them.
	ClaimReminders(ctx context.Context, date timeslot.Date, limit int) ([]*Appointment, error)
	// ReleaseReminder clears a claim whose reminder could not be queued so a
	// later sweep picks it up again.
	ReleaseReminder(ctx context.Context, id uuid.UUID) error
}

// DoctorLookup is the part of the doctor service scheduling depends on.
type DoctorLookup interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}
