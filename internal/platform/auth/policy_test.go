package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestAllow(t *testing.T) {
	patient := Principal{UserID: uuid.New(), Role: RolePatient}
	doctor := Principal{UserID: uuid.New(), Role: RoleDoctor}
	admin := Principal{UserID: uuid.New(), Role: RoleAdmin}
	other := uuid.New()

	own := Resource{PatientID: patient.UserID, DoctorUserID: doctor.UserID}
	foreign := Resource{PatientID: other, DoctorUserID: other}

	tests := []struct {
		name   string
		p      Principal
		action Action
		res    Resource
		want   bool
	}{
		{"admin deletes anything", admin, ActionDelete, foreign, true},
		{"admin manages doctors", admin, ActionManageDoctor, Resource{}, true},

		{"patient reads own", patient, ActionRead, own, true},
		{"patient books for self", patient, ActionBook, own, true},
		{"patient cancels own", patient, ActionCancel, own, true},
		{"patient reschedules own", patient, ActionReschedule, own, true},
		{"patient cannot change status", patient, ActionChangeStatus, own, false},
		{"patient cannot diagnose", patient, ActionDiagnose, own, false},
		{"patient cannot delete", patient, ActionDelete, own, false},
		{"patient cannot read others", patient, ActionRead, foreign, false},
		{"patient cannot book for others", patient, ActionBook, Resource{PatientID: other}, false},

		{"doctor reads own", doctor, ActionRead, own, true},
		{"doctor changes status", doctor, ActionChangeStatus, own, true},
		{"doctor diagnoses", doctor, ActionDiagnose, own, true},
		{"doctor edits own profile", doctor, ActionEditDoctor, Resource{DoctorUserID: doctor.UserID}, true},
		{"doctor cannot edit other profile", doctor, ActionEditDoctor, Resource{DoctorUserID: other}, false},
		{"doctor cannot create doctors", doctor, ActionManageDoctor, Resource{DoctorUserID: doctor.UserID}, false},
		{"doctor cannot touch other doctor's appointment", doctor, ActionChangeStatus, foreign, false},
		{"doctor cannot delete", doctor, ActionDelete, own, false},

		{"zero principal denied", Principal{Role: RolePatient}, ActionRead, Resource{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allow(tt.p, tt.action, tt.res); got != tt.want {
				t.Errorf("Allow(%s, %s) = %v, want %v", tt.p.Role, tt.action, got, tt.want)
			}
		})
	}
}
