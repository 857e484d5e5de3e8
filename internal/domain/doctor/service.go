package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/pkg/timeslot"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "doctor").Logger()}
}

// CreateInput is the payload for creating a doctor. Working hours default to
// Monday-Friday 09:00-17:00 and the slot duration to 30 minutes.
type CreateInput struct {
	UserID         uuid.UUID                `json:"userId" validate:"required"`
	Name           string                   `json:"name" validate:"required,max=200"`
	Email          *string                  `json:"email" validate:"omitempty,email"`
	Phone          *string                  `json:"phone" validate:"omitempty,max=40"`
	Speciality     string                   `json:"speciality"`
	Qualifications []string                 `json:"qualifications"`
	Experience     int                      `json:"experience" validate:"gte=0"`
	Bio            *string                  `json:"bio"`
	WorkingHours   *timeslot.WeeklySchedule `json:"workingHours"`
	SlotDuration   int                      `json:"slotDuration"`
	Available      *bool                    `json:"available"`
}

func (s *Service) CreateDoctor(ctx context.Context, in CreateInput) (*Doctor, error) {
	d := &Doctor{
		UserID:         in.UserID,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Speciality:     in.Speciality,
		Qualifications: in.Qualifications,
		Experience:     in.Experience,
		Bio:            in.Bio,
		SlotDuration:   in.SlotDuration,
		Available:      true,
	}
	if d.Speciality == "" {
		d.Speciality = DefaultSpeciality
	}
	if d.SlotDuration == 0 {
		d.SlotDuration = timeslot.DefaultSlotDuration
	}
	if in.WorkingHours != nil {
		d.WorkingHours = *in.WorkingHours
	} else {
		d.WorkingHours = timeslot.DefaultWeeklySchedule()
	}
	if in.Available != nil {
		d.Available = *in.Available
	}
	if err := d.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	if err := s.repo.Create(ctx, d); err != nil {
		if errors.Is(err, ErrUserLinked) {
			return nil, apperr.Validation("%s", ErrUserLinked.Error())
		}
		return nil, apperr.Upstream(err, "failed to create doctor")
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Str("user_id", d.UserID.String()).Msg("doctor created")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	return d, classify(err, "failed to load doctor")
}

// GetDoctorByUserID resolves the doctor linked to a login. Scheduling paths
// never use it; appointments always reference Doctor.ID.
func (s *Service) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByUserID(ctx, userID)
	return d, classify(err, "failed to load doctor")
}

func (s *Service) ListDoctors(ctx context.Context, f ListFilter) ([]*Doctor, int, error) {
	if f.Speciality != "" && !ValidSpeciality(f.Speciality) {
		return nil, 0, apperr.Validation("invalid speciality")
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Upstream(err, "failed to list doctors")
	}
	return items, total, nil
}

// UpdateInput carries a partial profile update; nil fields are left as is.
type UpdateInput struct {
	Name           *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Email          *string  `json:"email" validate:"omitempty,email"`
	Phone          *string  `json:"phone" validate:"omitempty,max=40"`
	Speciality     *string  `json:"speciality"`
	Qualifications []string `json:"qualifications"`
	Experience     *int     `json:"experience" validate:"omitempty,gte=0"`
	Bio            *string  `json:"bio"`
	Available      *bool    `json:"available"`
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, in UpdateInput) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err, "failed to load doctor")
	}
	if in.Name != nil {
		d.Name = *in.Name
	}
	if in.Email != nil {
		d.Email = in.Email
	}
	if in.Phone != nil {
		d.Phone = in.Phone
	}
	if in.Speciality != nil {
		d.Speciality = *in.Speciality
	}
	if in.Qualifications != nil {
		d.Qualifications = in.Qualifications
	}
	if in.Experience != nil {
		d.Experience = *in.Experience
	}
	if in.Bio != nil {
		d.Bio = in.Bio
	}
	if in.Available != nil {
		d.Available = *in.Available
	}
	if err := d.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, classify(err, "failed to update doctor")
	}
	return d, nil
}

// WorkingHoursInput replaces a doctor's weekly schedule. A zero SlotDuration
// keeps the current one.
type WorkingHoursInput struct {
	WorkingHours timeslot.WeeklySchedule `json:"workingHours"`
	SlotDuration int                     `json:"slotDuration"`
}

// UpdateWorkingHours changes future availability only. Existing bookings are
// not re-validated against the new hours.
func (s *Service) UpdateWorkingHours(ctx context.Context, id uuid.UUID, in WorkingHoursInput) (*Doctor, error) {
	if err := in.WorkingHours.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	slot := in.SlotDuration
	if slot == 0 {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, classify(err, "failed to load doctor")
		}
		slot = current.SlotDuration
	}
	if !timeslot.ValidSlotDuration(slot) {
		return nil, apperr.Validation("slotDuration must be one of 15, 30, 45, 60")
	}
	d, err := s.repo.UpdateWorkingHours(ctx, id, in.WorkingHours, slot)
	if err != nil {
		return nil, classify(err, "failed to update working hours")
	}
	s.logger.Info().Str("doctor_id", id.String()).Int("slot_duration", slot).Msg("working hours updated")
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrHasAppointments) {
		return apperr.Validation("cannot delete a doctor with appointments")
	}
	return classify(err, "failed to delete doctor")
}

func classify(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("doctor")
	default:
		return apperr.Upstream(err, msg)
	}
}
