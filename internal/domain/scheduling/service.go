package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/lock"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/pkg/timeslot"
)

type Service struct {
	appointments AppointmentRepository
	doctors      DoctorLookup
	locker       lock.Locker
	notifier     notification.Notifier
	logger       zerolog.Logger
}

func NewService(appts AppointmentRepository, doctors DoctorLookup, locker lock.Locker, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appts,
		doctors:      doctors,
		locker:       locker,
		notifier:     notifier,
		logger:       logger.With().Str("component", "scheduling").Logger(),
	}
}

// -- Availability --

// AvailableSlots returns the free slots of a doctor on date: the doctor's
// working hours for that weekday cut into slotDuration pieces, minus every
// slot that overlaps an active appointment. A non-working day yields an
// empty list.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date timeslot.Date) ([]timeslot.Slot, error) {
	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	day := doc.WorkingHours.For(date)
	slots := timeslot.ComputeSlots(day, doc.SlotDuration)
	if len(slots) == 0 {
		return slots, nil
	}

	booked, err := s.appointments.ActiveIntervals(ctx, doctorID, date, uuid.Nil)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load booked slots")
	}
	return timeslot.FilterAvailable(slots, booked), nil
}

// -- Booking --

// CreateInput is a booking request. PatientID is the patient's user id.
type CreateInput struct {
	DoctorID      uuid.UUID          `json:"doctorId" validate:"required"`
	PatientID     uuid.UUID          `json:"patientId"`
	Date          timeslot.Date      `json:"date"`
	StartTime     timeslot.TimeOfDay `json:"startTime"`
	EndTime       timeslot.TimeOfDay `json:"endTime"`
	Type          Type               `json:"type" validate:"required"`
	Notes         *string            `json:"notes" validate:"omitempty,max=2000"`
	Location      *string            `json:"location" validate:"omitempty,max=200"`
	PaymentAmount float64            `json:"paymentAmount" validate:"gte=0"`
}

func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*AppointmentView, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patientId is required")
	}
	if in.Date.IsZero() {
		return nil, apperr.Validation("date is required")
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("invalid appointment type")
	}
	if _, err := timeslot.NewInterval(in.StartTime, in.EndTime); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	doc, err := s.doctors.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		DoctorID:      in.DoctorID,
		PatientID:     in.PatientID,
		Date:          in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Type:          in.Type,
		Status:        StatusUpcoming,
		Notes:         in.Notes,
		Location:      in.Location,
		PaymentStatus: PaymentUnpaid,
		PaymentAmount: in.PaymentAmount,
		Diagnoses:     []Diagnosis{},
		Medications:   []string{},
	}

	err = s.withSlotLock(ctx, a.DoctorID, a.Date, func(ctx context.Context) error {
		if err := s.checkConflict(ctx, a.DoctorID, a.Date, a.Interval(), uuid.Nil); err != nil {
			return err
		}
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		return nil, s.classify(err, "failed to create appointment")
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Str("date", a.Date.String()).
		Str("start", a.StartTime.String()).
		Msg("appointment booked")

	s.notify(ctx, a.PatientID, a, notification.EventBooked)
	s.notify(ctx, doc.UserID, a, notification.EventBooked)
	return s.view(a, doc), nil
}

// UpdateInput is a partial update. Nil fields keep their current value.
type UpdateInput struct {
	DoctorID      *uuid.UUID          `json:"doctorId"`
	Date          *timeslot.Date      `json:"date"`
	StartTime     *timeslot.TimeOfDay `json:"startTime"`
	EndTime       *timeslot.TimeOfDay `json:"endTime"`
	Type          *Type               `json:"type"`
	Notes         *string             `json:"notes" validate:"omitempty,max=2000"`
	Location      *string             `json:"location" validate:"omitempty,max=200"`
	PaymentStatus *PaymentStatus      `json:"paymentStatus" validate:"omitempty,oneof=Paid Unpaid"`
	PaymentAmount *float64            `json:"paymentAmount" validate:"omitempty,gte=0"`
}

func (in UpdateInput) apply(a Appointment) Appointment {
	if in.DoctorID != nil {
		a.DoctorID = *in.DoctorID
	}
	if in.Date != nil {
		a.Date = *in.Date
	}
	if in.StartTime != nil {
		a.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		a.EndTime = *in.EndTime
	}
	if in.Type != nil {
		a.Type = *in.Type
	}
	if in.Notes != nil {
		a.Notes = in.Notes
	}
	if in.Location != nil {
		a.Location = in.Location
	}
	if in.PaymentStatus != nil {
		a.PaymentStatus = *in.PaymentStatus
	}
	if in.PaymentAmount != nil {
		a.PaymentAmount = *in.PaymentAmount
	}
	return a
}

// UpdateSchedule applies in to the appointment. Status is left alone. When
// the doctor, date or times of an active appointment change, the merged
// interval is checked against the target day's other active appointments
// under that day's lock. The write only lands if the appointment is still
// the version that was read.
func (s *Service) UpdateSchedule(ctx context.Context, id uuid.UUID, in UpdateInput) (*AppointmentView, error) {
	if in.Type != nil && !in.Type.Valid() {
		return nil, apperr.Validation("invalid appointment type")
	}

	var (
		merged Appointment
		doc    *doctor.Doctor
		moved  bool
	)
	err := s.retryStale(ctx, func() error {
		current, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		merged = in.apply(*current)
		if _, err := timeslot.NewInterval(merged.StartTime, merged.EndTime); err != nil {
			return apperr.Validation("%s", err.Error())
		}
		if doc == nil || doc.ID != merged.DoctorID {
			if doc, err = s.doctors.GetDoctor(ctx, merged.DoctorID); err != nil {
				return err
			}
		}

		moved = merged.DoctorID != current.DoctorID || merged.Date != current.Date ||
			merged.StartTime != current.StartTime || merged.EndTime != current.EndTime
		if !moved || !merged.Status.Active() {
			return s.appointments.Update(ctx, &merged)
		}
		return s.withSlotLock(ctx, merged.DoctorID, merged.Date, func(ctx context.Context) error {
			if err := s.checkConflict(ctx, merged.DoctorID, merged.Date, merged.Interval(), merged.ID); err != nil {
				return err
			}
			return s.appointments.Update(ctx, &merged)
		})
	})
	if err != nil {
		return nil, s.classify(err, "failed to update appointment")
	}

	if moved {
		s.logger.Info().
			Str("appointment_id", merged.ID.String()).
			Str("date", merged.Date.String()).
			Str("start", merged.StartTime.String()).
			Msg("appointment rescheduled")
		s.notify(ctx, merged.PatientID, &merged, notification.EventRescheduled)
	}
	return s.view(&merged, doc), nil
}

// UpdateStatus overwrites the status of the version just read. Status
// changes never move an interval, so no conflict check runs, except when a
// canceled appointment is reactivated: its slot may have been rebooked in
// the meantime.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*AppointmentView, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status")
	}

	var current, updated *Appointment
	err := s.retryStale(ctx, func() error {
		var err error
		current, err = s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status.Active() || !status.Active() {
			updated, err = s.appointments.UpdateStatus(ctx, id, current.Version, status)
			return err
		}
		return s.withSlotLock(ctx, current.DoctorID, current.Date, func(ctx context.Context) error {
			if err := s.checkConflict(ctx, current.DoctorID, current.Date, current.Interval(), current.ID); err != nil {
				return err
			}
			var err error
			updated, err = s.appointments.UpdateStatus(ctx, id, current.Version, status)
			return err
		})
	})
	if err != nil {
		return nil, s.classify(err, "failed to update appointment status")
	}

	doc := s.lookupDoctor(ctx, updated.DoctorID)
	if current.Status != status {
		s.notify(ctx, updated.PatientID, updated, status.event())
		if status == StatusCanceled && doc != nil {
			s.notify(ctx, doc.UserID, updated, notification.EventCanceled)
		}
	}
	return s.view(updated, doc), nil
}

// CancelAppointment is UpdateStatus(id, canceled).
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*AppointmentView, error) {
	return s.UpdateStatus(ctx, id, StatusCanceled)
}

// DiagnosisInput records the outcome of a visit.
type DiagnosisInput struct {
	Diagnoses     []Diagnosis    `json:"diagnoses"`
	Prescription  *string        `json:"prescription"`
	FollowUpDate  *timeslot.Date `json:"followUpDate"`
	Medications   []string       `json:"medications"`
	PaymentAmount *float64       `json:"paymentAmount" validate:"omitempty,gte=0"`
}

// AddDiagnosis replaces the appointment's diagnoses and marks it completed.
func (s *Service) AddDiagnosis(ctx context.Context, id uuid.UUID, in DiagnosisInput) (*AppointmentView, error) {
	if len(in.Diagnoses) == 0 {
		return nil, apperr.Validation("at least one diagnosis is required")
	}
	now := time.Now().UTC()
	diagnoses := make([]Diagnosis, 0, len(in.Diagnoses))
	for _, d := range in.Diagnoses {
		if d.ToothNumber == "" || d.Condition == "" {
			return nil, apperr.Validation("each diagnosis must have a tooth number and condition")
		}
		switch d.Severity {
		case "":
			d.Severity = SeverityLow
		case SeverityLow, SeverityMedium, SeverityHigh:
		default:
			return nil, apperr.Validation("invalid severity %q", d.Severity)
		}
		d.CreatedAt = now
		diagnoses = append(diagnoses, d)
	}

	var (
		a        *Appointment
		previous Status
	)
	err := s.retryStale(ctx, func() error {
		var err error
		a, err = s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusCanceled {
			return apperr.Validation("cannot record a diagnosis on a canceled appointment")
		}
		previous = a.Status

		a.Diagnoses = diagnoses
		if in.Prescription != nil {
			a.Prescription = in.Prescription
		}
		if in.FollowUpDate != nil {
			a.FollowUpDate = in.FollowUpDate
		}
		if in.Medications != nil {
			a.Medications = in.Medications
		}
		if in.PaymentAmount != nil {
			a.PaymentAmount = *in.PaymentAmount
		}
		return s.appointments.Complete(ctx, a)
	})
	if err != nil {
		return nil, s.classify(err, "failed to record diagnosis")
	}
	if previous != StatusCompleted {
		s.notify(ctx, a.PatientID, a, notification.EventCompleted)
	}
	return s.view(a, s.lookupDoctor(ctx, a.DoctorID)), nil
}

// -- Reads --

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, s.classify(err, "failed to load appointment")
	}
	return a, nil
}

// View attaches the doctor summary to a. A missing doctor leaves it empty.
func (s *Service) View(ctx context.Context, a *Appointment) *AppointmentView {
	return s.view(a, s.lookupDoctor(ctx, a.DoctorID))
}

// ListAppointments returns matching appointments ordered by date and start
// time, each with its doctor summary.
func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]*AppointmentView, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("invalid status")
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, apperr.Validation("invalid appointment type")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperr.Validation("to must not be before from")
	}
	items, total, err := s.appointments.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Upstream(err, "failed to list appointments")
	}

	doctors := make(map[uuid.UUID]*doctor.Doctor)
	views := make([]*AppointmentView, 0, len(items))
	for _, a := range items {
		doc, ok := doctors[a.DoctorID]
		if !ok {
			doc = s.lookupDoctor(ctx, a.DoctorID)
			doctors[a.DoctorID] = doc
		}
		views = append(views, s.view(a, doc))
	}
	return views, total, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err := s.appointments.Delete(ctx, id); err != nil {
		return s.classify(err, "failed to delete appointment")
	}
	s.logger.Info().Str("appointment_id", id.String()).Msg("appointment deleted")
	return nil
}

// -- helpers --

const maxWriteAttempts = 3

// retryStale reruns a read-modify-write while its conditional write loses
// to a concurrent writer.
func (s *Service) retryStale(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if err = fn(); !errors.Is(err, ErrStaleAppointment) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug().Int("attempt", attempt).Msg("appointment changed during update, retrying")
	}
	return err
}

// lookupDoctor returns the doctor for a response summary. Failures are
// logged and leave the summary empty.
func (s *Service) lookupDoctor(ctx context.Context, id uuid.UUID) *doctor.Doctor {
	doc, err := s.doctors.GetDoctor(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", id.String()).Msg("doctor lookup failed")
		return nil
	}
	return doc
}

func (s *Service) withSlotLock(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, fn func(ctx context.Context) error) error {
	release, err := s.locker.Lock(ctx, lock.Key("appointment", doctorID.String(), date.String()))
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (s *Service) checkConflict(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, candidate timeslot.Interval, excludeID uuid.UUID) error {
	booked, err := s.appointments.ActiveIntervals(ctx, doctorID, date, excludeID)
	if err != nil {
		return err
	}
	if timeslot.HasConflict(candidate, booked) {
		return ErrSlotBooked
	}
	return nil
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, a *Appointment, event notification.Event) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Notify(ctx, userID, a.info(), event)
}

func (s *Service) view(a *Appointment, doc *doctor.Doctor) *AppointmentView {
	v := &AppointmentView{Appointment: a}
	if doc != nil {
		sum := doc.Summary()
		v.Doctor = &sum
	}
	return v
}

func (s *Service) classify(err error, msg string) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, ErrSlotBooked):
		return apperr.Conflict(err)
	case errors.Is(err, ErrAppointmentNotFound):
		return apperr.NotFound("appointment")
	case errors.Is(err, ErrStaleAppointment):
		return apperr.ConcurrentUpdate(err)
	case errors.Is(err, lock.ErrNotAcquired):
		return apperr.Upstream(err, "timed out waiting for the booking lock")
	default:
		return apperr.Upstream(err, msg)
	}
}
