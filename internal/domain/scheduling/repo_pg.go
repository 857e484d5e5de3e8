package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/timeslot"
)

const microsPerMinute = 60 * 1_000_000

func pgTime(t timeslot.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Minutes()) * microsPerMinute, Valid: true}
}

func fromPGTime(t pgtype.Time) timeslot.TimeOfDay {
	return timeslot.TimeOfDay(t.Microseconds / microsPerMinute)
}

func pgDate(d timeslot.Date) pgtype.Date {
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func pgDatePtr(d *timeslot.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgDate(*d)
}

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, doctor_id, patient_id, date, start_time, end_time, type, status, notes, location,
	payment_status, payment_amount, diagnoses, prescription, follow_up_date, medications,
	reminder_sent_at, version, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a           Appointment
		date        pgtype.Date
		start, end  pgtype.Time
		followUp    pgtype.Date
		diagnoses   []byte
		medications []string
	)
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &date, &start, &end, &a.Type, &a.Status,
		&a.Notes, &a.Location, &a.PaymentStatus, &a.PaymentAmount, &diagnoses, &a.Prescription,
		&followUp, &medications, &a.ReminderSentAt, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Date = timeslot.DateOf(date.Time)
	a.StartTime = fromPGTime(start)
	a.EndTime = fromPGTime(end)
	if followUp.Valid {
		d := timeslot.DateOf(followUp.Time)
		a.FollowUpDate = &d
	}
	a.Diagnoses = []Diagnosis{}
	if len(diagnoses) > 0 {
		if err := json.Unmarshal(diagnoses, &a.Diagnoses); err != nil {
			return nil, fmt.Errorf("decode diagnoses for appointment %s: %w", a.ID, err)
		}
	}
	a.Medications = medications
	if a.Medications == nil {
		a.Medications = []string{}
	}
	return &a, nil
}

func encodeDiagnoses(d []Diagnosis) ([]byte, error) {
	if d == nil {
		d = []Diagnosis{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode diagnoses: %w", err)
	}
	return b, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	diagnoses, err := encodeDiagnoses(a.Diagnoses)
	if err != nil {
		return err
	}
	if a.Medications == nil {
		a.Medications = []string{}
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointment (id, doctor_id, patient_id, date, start_time, end_time, type, status,
			notes, location, payment_status, payment_amount, diagnoses, prescription,
			follow_up_date, medications)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING version, created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientID, pgDate(a.Date), pgTime(a.StartTime), pgTime(a.EndTime),
		a.Type, a.Status, a.Notes, a.Location, a.PaymentStatus, a.PaymentAmount, diagnoses,
		a.Prescription, pgDatePtr(a.FollowUpDate), a.Medications,
	).Scan(&a.Version, &a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrSlotBooked
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	diagnoses, err := encodeDiagnoses(a.Diagnoses)
	if err != nil {
		return err
	}
	if a.Medications == nil {
		a.Medications = []string{}
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment SET doctor_id = $2, date = $3, start_time = $4, end_time = $5,
			type = $6, notes = $7, location = $8, payment_status = $9,
			payment_amount = $10, diagnoses = $11, prescription = $12, follow_up_date = $13,
			medications = $14, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $15
		RETURNING status, version, updated_at`,
		a.ID, a.DoctorID, pgDate(a.Date), pgTime(a.StartTime), pgTime(a.EndTime),
		a.Type, a.Notes, a.Location, a.PaymentStatus, a.PaymentAmount, diagnoses,
		a.Prescription, pgDatePtr(a.FollowUpDate), a.Medications, a.Version,
	).Scan(&a.Status, &a.Version, &a.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return r.missingOrStale(ctx, a.ID)
	case db.IsUniqueViolation(err):
		return ErrSlotBooked
	case err != nil:
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, version int, status Status) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment SET status = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING `+apptCols, id, version, status))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, r.missingOrStale(ctx, id)
	case db.IsUniqueViolation(err):
		return nil, ErrSlotBooked
	case err != nil:
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Complete(ctx context.Context, a *Appointment) error {
	diagnoses, err := encodeDiagnoses(a.Diagnoses)
	if err != nil {
		return err
	}
	if a.Medications == nil {
		a.Medications = []string{}
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment SET status = 'completed', diagnoses = $2, prescription = $3,
			follow_up_date = $4, medications = $5, payment_amount = $6,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $7 AND status <> 'canceled'
		RETURNING status, version, updated_at`,
		a.ID, diagnoses, a.Prescription, pgDatePtr(a.FollowUpDate), a.Medications,
		a.PaymentAmount, a.Version,
	).Scan(&a.Status, &a.Version, &a.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return r.missingOrStale(ctx, a.ID)
	case err != nil:
		return fmt.Errorf("complete appointment: %w", err)
	}
	return nil
}

// missingOrStale explains why a conditional write matched no row.
func (r *appointmentRepoPG) missingOrStale(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&exists)
	switch {
	case err != nil:
		return fmt.Errorf("check appointment: %w", err)
	case !exists:
		return ErrAppointmentNotFound
	default:
		return ErrStaleAppointment
	}
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.DoctorID != uuid.Nil {
		add("doctor_id = ?", f.DoctorID)
	}
	if f.PatientID != uuid.Nil {
		add("patient_id = ?", f.PatientID)
	}
	if f.Status != "" {
		add("status = ?", f.Status)
	}
	if f.Type != "" {
		add("type = ?", f.Type)
	}
	if f.From != nil {
		add("date >= ?", pgDate(*f.From))
	}
	if f.To != nil {
		add("date <= ?", pgDate(*f.To))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	n := len(args)
	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		` ORDER BY date, start_time, id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := q.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) ActiveIntervals(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, excludeID uuid.UUID) ([]timeslot.Interval, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT start_time, end_time FROM appointment
		WHERE doctor_id = $1 AND date = $2 AND status <> 'canceled' AND id <> $3
		ORDER BY start_time`, doctorID, pgDate(date), excludeID)
	if err != nil {
		return nil, fmt.Errorf("load booked intervals: %w", err)
	}
	defer rows.Close()

	var out []timeslot.Interval
	for rows.Next() {
		var start, end pgtype.Time
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		out = append(out, timeslot.Interval{Start: fromPGTime(start), End: fromPGTime(end)})
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) ClaimReminders(ctx context.Context, date timeslot.Date, limit int) ([]*Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		UPDATE appointment SET reminder_sent_at = NOW()
		WHERE id IN (
			SELECT id FROM appointment
			WHERE date = $1 AND status <> 'canceled' AND reminder_sent_at IS NULL
			ORDER BY start_time
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+apptCols, pgDate(date), limit)
	if err != nil {
		return nil, fmt.Errorf("claim reminders: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) ReleaseReminder(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE appointment SET reminder_sent_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("release reminder: %w", err)
	}
	return nil
}
