package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotAlreadyBooked   = errors.New("slot is already booked")
	ErrSlotInPast          = errors.New("cannot book a slot in the past")
	ErrAlreadyCancelled    = errors.New("appointment is already cancelled")
	ErrEmailTaken          = errors.New("email is already registered")
)

// Repository contains all DB interactions needed by the service.
// Writes run inside a single transaction: BookSlot and CancelAppointment
// either commit fully or leave no trace.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)
	CreatePatient(ctx context.Context, name, email string, phone *string) (*Patient, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*SlotWithDoctor, error)
	ListOpenSlots(ctx context.Context, after time.Time, offset, limit int) ([]SlotWithDoctor, error)

	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, after time.Time) ([]AppointmentDetail, error)

	// BookSlot marks the slot booked and inserts a confirmed appointment
	// in one transaction. Returns ErrSlotAlreadyBooked if the slot was
	// taken by a concurrent writer.
	BookSlot(ctx context.Context, slotID, patientID uuid.UUID) (*Appointment, error)

	// CancelAppointment flips the appointment to cancelled and frees its
	// slot in one transaction. Returns ErrAlreadyCancelled if the status
	// was already terminal.
	CancelAppointment(ctx context.Context, appointmentID, slotID uuid.UUID) (*Appointment, error)
}
