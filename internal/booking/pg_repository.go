package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repository uses. pgxmock
// satisfies it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var phone *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Phone = phone
	return &p, nil
}

func scanSlotWithDoctor(row pgx.Row) (*SlotWithDoctor, error) {
	var s SlotWithDoctor

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.IsBooked,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.Doctor.ID,
		&s.Doctor.Name,
		&s.Doctor.Specialty,
		&s.Doctor.CreatedAt,
		&s.Doctor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var phone *string

	err := row.Scan(
		&d.ID,
		&d.SlotID,
		&d.PatientID,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Slot.ID,
		&d.Slot.DoctorID,
		&d.Slot.StartTime,
		&d.Slot.EndTime,
		&d.Slot.IsBooked,
		&d.Slot.CreatedAt,
		&d.Slot.UpdatedAt,
		&d.Slot.Doctor.ID,
		&d.Slot.Doctor.Name,
		&d.Slot.Doctor.Specialty,
		&d.Slot.Doctor.CreatedAt,
		&d.Slot.Doctor.UpdatedAt,
		&d.Patient.ID,
		&d.Patient.Name,
		&d.Patient.Email,
		&phone,
		&d.Patient.CreatedAt,
		&d.Patient.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Patient.Phone = phone
	return &d, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const appointmentDetailQuery = `
	SELECT a.id, a.slot_id, a.patient_id, a.status, a.created_at, a.updated_at,
	       s.id, s.doctor_id, s.start_time, s.end_time, s.is_booked, s.created_at, s.updated_at,
	       d.id, d.name, d.specialty, d.created_at, d.updated_at,
	       p.id, p.name, p.email, p.phone, p.created_at, p.updated_at
	FROM appointments a
	JOIN slots s ON s.id = a.slot_id
	JOIN doctors d ON d.id = s.doctor_id
	JOIN patients p ON p.id = a.patient_id
`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE email = $1
	`, email)
	return scanPatient(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, name, email string, phone *string) (*Patient, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, name, email, phone, created_at, updated_at
	`, id, name, email, phone)

	p, err := scanPatient(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return p, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*SlotWithDoctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT s.id, s.doctor_id, s.start_time, s.end_time, s.is_booked, s.created_at, s.updated_at,
		       d.id, d.name, d.specialty, d.created_at, d.updated_at
		FROM slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE s.id = $1
	`, id)
	return scanSlotWithDoctor(row)
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, after time.Time, offset, limit int) ([]SlotWithDoctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.doctor_id, s.start_time, s.end_time, s.is_booked, s.created_at, s.updated_at,
		       d.id, d.name, d.specialty, d.created_at, d.updated_at
		FROM slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE s.is_booked = false
		  AND s.start_time > $1
		ORDER BY s.start_time
		OFFSET $2
		LIMIT $3
	`, after, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotWithDoctor
	for rows.Next() {
		s, err := scanSlotWithDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.db.QueryRow(ctx, appointmentDetailQuery+`WHERE a.id = $1`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, after time.Time) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, appointmentDetailQuery+`
		WHERE a.patient_id = $1
		  AND a.status <> 'cancelled'
		  AND s.start_time >= $2
		ORDER BY s.start_time
	`, patientID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) BookSlot(ctx context.Context, slotID, patientID uuid.UUID) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Conditional update serializes concurrent bookings: the loser
	// matches zero rows.
	tag, err := tx.Exec(ctx, `
		UPDATE slots
		SET is_booked = true,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = false
	`, slotID)
	if err != nil {
		return nil, fmt.Errorf("mark slot booked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSlotAlreadyBooked
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, patient_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'confirmed', now(), now())
		RETURNING id, slot_id, patient_id, status, created_at, updated_at
	`, id, slotID, patientID)

	appt, err := scanAppointment(row)
	if err != nil {
		// The unique constraint on appointments.slot_id is the final
		// backstop against a double insert.
		if isUniqueViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return appt, nil
}

func (r *PgRepository) CancelAppointment(ctx context.Context, appointmentID, slotID uuid.UUID) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
		RETURNING id, slot_id, patient_id, status, created_at, updated_at
	`, appointmentID)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slots
		SET is_booked = false,
		    updated_at = now()
		WHERE id = $1
	`, slotID); err != nil {
		return nil, fmt.Errorf("free slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel tx: %w", err)
	}

	return appt, nil
}
