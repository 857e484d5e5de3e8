package doctor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/timeslot"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const doctorCols = `id, user_id, name, email, phone, speciality, qualifications, experience, bio,
	working_hours, slot_duration, active, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d     Doctor
		hours []byte
	)
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Email, &d.Phone, &d.Speciality, &d.Qualifications,
		&d.Experience, &d.Bio, &hours, &d.SlotDuration, &d.Available, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(hours, &d.WorkingHours); err != nil {
		return nil, fmt.Errorf("decode working hours for doctor %s: %w", d.ID, err)
	}
	if d.Qualifications == nil {
		d.Qualifications = []string{}
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	hours, err := json.Marshal(d.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}
	if d.Qualifications == nil {
		d.Qualifications = []string{}
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctor (id, user_id, name, email, phone, speciality, qualifications,
			experience, bio, working_hours, slot_duration, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.Name, d.Email, d.Phone, d.Speciality, d.Qualifications,
		d.Experience, d.Bio, hours, d.SlotDuration, d.Available,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrUserLinked
	}
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.getOne(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id)
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return r.getOne(ctx, `SELECT `+doctorCols+` FROM doctor WHERE user_id = $1`, userID)
}

func (r *repoPG) getOne(ctx context.Context, query string, arg uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	hours, err := json.Marshal(d.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctor SET name = $2, email = $3, phone = $4, speciality = $5, qualifications = $6,
			experience = $7, bio = $8, working_hours = $9, slot_duration = $10, active = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Name, d.Email, d.Phone, d.Speciality, d.Qualifications,
		d.Experience, d.Bio, hours, d.SlotDuration, d.Available,
	).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}

func (r *repoPG) UpdateWorkingHours(ctx context.Context, id uuid.UUID, hours timeslot.WeeklySchedule, slotDuration int) (*Doctor, error) {
	raw, err := json.Marshal(hours)
	if err != nil {
		return nil, fmt.Errorf("encode working hours: %w", err)
	}
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctor SET working_hours = $2, slot_duration = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+doctorCols, id, raw, slotDuration))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update working hours: %w", err)
	}
	return d, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return ErrHasAppointments
	}
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.Speciality != "" {
		where += ` AND speciality = $` + strconv.Itoa(idx)
		args = append(args, f.Speciality)
		idx++
	}
	if f.AvailableOnly {
		where += ` AND active`
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM doctor`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	query := `SELECT ` + doctorCols + ` FROM doctor` + where +
		` ORDER BY name, id LIMIT $` + strconv.Itoa(idx) + ` OFFSET $` + strconv.Itoa(idx+1)
	args = append(args, f.Limit, f.Offset)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	items := []*Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
