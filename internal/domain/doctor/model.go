package doctor

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/timeslot"
)

var (
	ErrNotFound        = errors.New("doctor not found")
	ErrUserLinked      = errors.New("a doctor is already linked to this user")
	ErrHasAppointments = errors.New("doctor has appointments")
)

// Specialities accepted on a doctor profile.
var Specialities = []string{
	"General Dentist",
	"Orthodontist",
	"Periodontist",
	"Endodontist",
	"Oral Surgeon",
	"Pediatric Dentist",
	"Prosthodontist",
}

const DefaultSpeciality = "General Dentist"

func ValidSpeciality(s string) bool {
	for _, v := range Specialities {
		if v == s {
			return true
		}
	}
	return false
}

// Doctor is a bookable resource. UserID links the record to the doctor's
// login; ID is what appointments reference.
type Doctor struct {
	ID             uuid.UUID               `json:"id"`
	UserID         uuid.UUID               `json:"userId"`
	Name           string                  `json:"name"`
	Email          *string                 `json:"email,omitempty"`
	Phone          *string                 `json:"phone,omitempty"`
	Speciality     string                  `json:"speciality"`
	Qualifications []string                `json:"qualifications"`
	Experience     int                     `json:"experience"`
	Bio            *string                 `json:"bio,omitempty"`
	WorkingHours   timeslot.WeeklySchedule `json:"workingHours"`
	SlotDuration   int                     `json:"slotDuration"`
	Available      bool                    `json:"available"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// Validate checks the fields the availability engine depends on.
func (d *Doctor) Validate() error {
	if d.UserID == uuid.Nil {
		return errors.New("userId is required")
	}
	if d.Name == "" {
		return errors.New("name is required")
	}
	if !ValidSpeciality(d.Speciality) {
		return errors.New("invalid speciality")
	}
	if d.Experience < 0 {
		return errors.New("experience must not be negative")
	}
	if !timeslot.ValidSlotDuration(d.SlotDuration) {
		return errors.New("slotDuration must be one of 15, 30, 45, 60")
	}
	return d.WorkingHours.Validate()
}

// Summary is the doctor fragment embedded in appointment responses.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Speciality string    `json:"speciality"`
}

func (d *Doctor) Summary() Summary {
	return Summary{ID: d.ID, Name: d.Name, Speciality: d.Speciality}
}

// ListFilter narrows a doctor listing.
type ListFilter struct {
	Speciality    string
	AvailableOnly bool
	Limit         int
	Offset        int
}
