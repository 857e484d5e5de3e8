package scheduling

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/pkg/timeslot"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotBooked          = errors.New("slot already booked")
	// ErrStaleAppointment is returned by conditional writes when the row
	// changed after it was read.
	ErrStaleAppointment = errors.New("appointment was modified concurrently")
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusUpcoming    Status = "upcoming"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCanceled    Status = "canceled"
	StatusRescheduled Status = "rescheduled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusConfirmed, StatusCompleted, StatusCanceled, StatusRescheduled:
		return true
	}
	return false
}

// Active reports whether an appointment in this status holds its slot.
func (s Status) Active() bool { return s != StatusCanceled }

// event maps a status change onto the notification sent to the patient.
func (s Status) event() notification.Event {
	switch s {
	case StatusConfirmed:
		return notification.EventConfirmed
	case StatusCanceled:
		return notification.EventCanceled
	case StatusCompleted:
		return notification.EventCompleted
	case StatusRescheduled:
		return notification.EventRescheduled
	default:
		return notification.EventUpdated
	}
}

type Type string

const (
	TypeGeneralCheckup Type = "general-checkup"
	TypeScaling        Type = "scaling"
	TypeExtraction     Type = "extraction"
	TypeBleaching      Type = "bleaching"
	TypeConsultation   Type = "consultation"
	TypeOther          Type = "other"
)

func (t Type) Valid() bool {
	switch t {
	case TypeGeneralCheckup, TypeScaling, TypeExtraction, TypeBleaching, TypeConsultation, TypeOther:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "Paid"
	PaymentUnpaid PaymentStatus = "Unpaid"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Diagnosis is a per-tooth finding recorded when an appointment completes.
type Diagnosis struct {
	ToothNumber string    `json:"toothNumber"`
	Condition   string    `json:"condition"`
	Severity    Severity  `json:"severity"`
	Treatment   string    `json:"treatment"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Appointment is one booking in the ledger. Appointments are never removed
// except by an explicit admin delete; cancellation is a status.
type Appointment struct {
	ID             uuid.UUID          `json:"id"`
	DoctorID       uuid.UUID          `json:"doctorId"`
	PatientID      uuid.UUID          `json:"patientId"`
	Date           timeslot.Date      `json:"date"`
	StartTime      timeslot.TimeOfDay `json:"startTime"`
	EndTime        timeslot.TimeOfDay `json:"endTime"`
	Type           Type               `json:"type"`
	Status         Status             `json:"status"`
	Notes          *string            `json:"notes,omitempty"`
	Location       *string            `json:"location,omitempty"`
	PaymentStatus  PaymentStatus      `json:"paymentStatus"`
	PaymentAmount  float64            `json:"paymentAmount"`
	Diagnoses      []Diagnosis        `json:"diagnoses"`
	Prescription   *string            `json:"prescription,omitempty"`
	FollowUpDate   *timeslot.Date     `json:"followUpDate,omitempty"`
	Medications    []string           `json:"medications"`
	ReminderSentAt *time.Time         `json:"reminderSentAt,omitempty"`
	// Version increments on every write and guards read-modify-write
	// updates.
	Version        int                `json:"version"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func (a *Appointment) Interval() timeslot.Interval {
	return timeslot.Interval{Start: a.StartTime, End: a.EndTime}
}

func (a *Appointment) info() notification.AppointmentInfo {
	return notification.AppointmentInfo{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      a.Date,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Status:    string(a.Status),
	}
}

// AppointmentView is an appointment with its doctor summary attached.
type AppointmentView struct {
	*Appointment
	Doctor *doctor.Summary `json:"doctor,omitempty"`
}

// ListFilter narrows an appointment listing. Zero values are ignored; From
// and To are inclusive.
type ListFilter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    Status
	Type      Type
	From      *timeslot.Date
	To        *timeslot.Date
	Limit     int
	Offset    int
}
