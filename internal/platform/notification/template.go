package notification

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/timeslot"
)

// Event is an appointment lifecycle change that produces a notification.
type Event string

const (
	EventBooked      Event = "booked"
	EventConfirmed   Event = "confirmed"
	EventCanceled    Event = "canceled"
	EventRescheduled Event = "rescheduled"
	EventCompleted   Event = "completed"
	EventReminder    Event = "reminder"
	EventUpdated     Event = "updated"
)

// AppointmentInfo is the slice of an appointment a message needs.
type AppointmentInfo struct {
	ID        uuid.UUID          `json:"id"`
	DoctorID  uuid.UUID          `json:"doctorId"`
	PatientID uuid.UUID          `json:"patientId"`
	Date      timeslot.Date      `json:"date"`
	StartTime timeslot.TimeOfDay `json:"startTime"`
	EndTime   timeslot.TimeOfDay `json:"endTime"`
	Status    string             `json:"status"`
}

// Template defines the title and message for one event. {{date}} and
// {{time}} are substituted on render.
type Template struct {
	Event   Event
	Title   string
	Message string
	Type    Type
	LinkTo  string
}

// TemplateEngine maps events to message templates.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[Event]Template
	fallback  Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[Event]Template),
		fallback: Template{
			Event:   EventUpdated,
			Title:   "Appointment Update",
			Message: "Your appointment for {{date}} at {{time}} has been updated",
			Type:    TypeAppointment,
			LinkTo:  "/patient/calendar",
		},
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{Event: EventBooked, Title: "New Appointment Booked",
			Message: "Your appointment has been scheduled for {{date}} at {{time}}"},
		{Event: EventConfirmed, Title: "Appointment Confirmed",
			Message: "Your appointment for {{date}} at {{time}} has been confirmed"},
		{Event: EventCanceled, Title: "Appointment Cancelled",
			Message: "Your appointment for {{date}} at {{time}} has been cancelled"},
		{Event: EventRescheduled, Title: "Appointment Rescheduled",
			Message: "Your appointment has been moved to {{date}} at {{time}}"},
		{Event: EventCompleted, Title: "Appointment Completed",
			Message: "Your appointment on {{date}} at {{time}} has been completed"},
		{Event: EventReminder, Title: "Appointment Reminder", Type: TypeReminder,
			Message: "Reminder: You have an appointment scheduled for {{date}} at {{time}}"},
	}
	for _, t := range builtIn {
		if t.Type == "" {
			t.Type = TypeAppointment
		}
		t.LinkTo = "/patient/calendar"
		e.templates[t.Event] = t
	}
}

// RegisterTemplate adds or replaces the template for t.Event.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.Event] = t
}

// Render builds the notification for event about appt. Unknown events use
// the generic "Appointment Update" wording.
func (e *TemplateEngine) Render(event Event, userID uuid.UUID, appt AppointmentInfo) *Notification {
	e.mu.RLock()
	t, ok := e.templates[event]
	e.mu.RUnlock()
	if !ok {
		t = e.fallback
	}

	r := strings.NewReplacer("{{date}}", FormatDate(appt.Date), "{{time}}", FormatTime(appt.StartTime))
	return &Notification{
		UserID:  userID,
		Title:   r.Replace(t.Title),
		Message: r.Replace(t.Message),
		Type:    t.Type,
		LinkTo:  t.LinkTo,
		Data: map[string]interface{}{
			"event":       string(event),
			"appointment": appt,
		},
	}
}

// FormatDate renders d as "January 2, 2006".
func FormatDate(d timeslot.Date) string {
	return d.Time().Format("January 2, 2006")
}

// FormatTime renders t in 12-hour form, e.g. "9:30 AM".
func FormatTime(t timeslot.TimeOfDay) string {
	h := t.Hour()
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute(), suffix)
}
