package doctor

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/timeslot"
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	UpdateWorkingHours(ctx context.Context, id uuid.UUID, hours timeslot.WeeklySchedule, slotDuration int) (*Doctor, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Doctor, int, error)
}
