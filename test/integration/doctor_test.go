package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/pkg/timeslot"
)

func TestDoctorRepo(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := doctor.NewRepoPG(globalPool)
	d := createTestDoctor(t, ctx, "Dr. Repo")

	t.Run("GetByUserID", func(t *testing.T) {
		got, err := repo.GetByUserID(ctx, d.UserID)
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != d.ID || got.WorkingHours != d.WorkingHours {
			t.Errorf("doctor did not round-trip: %+v", got)
		}
	})

	t.Run("Create_UserLinked", func(t *testing.T) {
		dup := *d
		if err := repo.Create(ctx, &dup); !errors.Is(err, doctor.ErrUserLinked) {
			t.Errorf("expected ErrUserLinked, got %v", err)
		}
	})

	t.Run("UpdateWorkingHours", func(t *testing.T) {
		hours := timeslot.DefaultWeeklySchedule()
		hours.Saturday = timeslot.DaySchedule{IsWorking: true, Start: timeslot.MustTimeOfDay("10:00"), End: timeslot.MustTimeOfDay("14:00")}
		got, err := repo.UpdateWorkingHours(ctx, d.ID, hours, 45)
		if err != nil {
			t.Fatal(err)
		}
		if got.SlotDuration != 45 || !got.WorkingHours.Saturday.IsWorking {
			t.Errorf("working hours not updated: %+v", got)
		}
	})

	t.Run("ListBySpeciality", func(t *testing.T) {
		ortho := &doctor.Doctor{
			UserID:       uuid.New(),
			Name:         "Dr. Brace",
			Speciality:   "Orthodontist",
			WorkingHours: timeslot.DefaultWeeklySchedule(),
			SlotDuration: 30,
			Available:    true,
		}
		if err := repo.Create(ctx, ortho); err != nil {
			t.Fatal(err)
		}
		items, total, err := repo.List(ctx, doctor.ListFilter{Speciality: "Orthodontist", Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		if total != 1 || items[0].ID != ortho.ID {
			t.Errorf("expected only the orthodontist, got %d", total)
		}
	})

	t.Run("Delete_WithAppointments", func(t *testing.T) {
		a := newAppointment(d.ID, timeslot.NewDate(2026, time.March, 9), "09:00", "09:30")
		if err := scheduling.NewAppointmentRepoPG(globalPool).Create(ctx, a); err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(ctx, d.ID); !errors.Is(err, doctor.ErrHasAppointments) {
			t.Errorf("expected ErrHasAppointments, got %v", err)
		}
	})

	t.Run("Delete_NotFound", func(t *testing.T) {
		if err := repo.Delete(ctx, uuid.New()); !errors.Is(err, doctor.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
