package auth

import "github.com/google/uuid"

// Action names an operation on an appointment or doctor record.
type Action string

const (
	ActionRead         Action = "read"
	ActionBook         Action = "book"
	ActionReschedule   Action = "reschedule"
	ActionChangeStatus Action = "change-status"
	ActionCancel       Action = "cancel"
	ActionDiagnose     Action = "diagnose"
	ActionDelete       Action = "delete"
	ActionEditDoctor   Action = "edit-doctor"
	ActionManageDoctor Action = "manage-doctor"
)

// Resource carries the ownership attributes a decision depends on. PatientID
// is the booking patient's user id; DoctorUserID is the user id linked to the
// booked doctor.
type Resource struct {
	PatientID    uuid.UUID
	DoctorUserID uuid.UUID
}

// Allow decides whether p may perform action on res. Handlers call it once
// per request after loading the resource.
//
//   - admins may do anything
//   - patients may read, book, reschedule and cancel their own appointments
//   - doctors may do the same for appointments booked with them, and may
//     also change status, record a diagnosis and edit their own profile
//   - creating and deleting doctors, and deleting appointments, is admin only
func Allow(p Principal, action Action, res Resource) bool {
	if p.IsAdmin() {
		return true
	}
	if p.UserID == uuid.Nil {
		return false
	}

	switch p.Role {
	case RolePatient:
		if res.PatientID != p.UserID {
			return false
		}
		switch action {
		case ActionRead, ActionBook, ActionReschedule, ActionCancel:
			return true
		}
	case RoleDoctor:
		if res.DoctorUserID != p.UserID {
			return false
		}
		switch action {
		case ActionRead, ActionBook, ActionReschedule, ActionChangeStatus,
			ActionCancel, ActionDiagnose, ActionEditDoctor:
			return true
		}
	}
	return false
}
