package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/medagenda/booking-api/internal/cache"
	"github.com/medagenda/booking-api/internal/metrics"
)

const (
	// DefaultListLimit matches the listing page size the cache snapshots.
	DefaultListLimit = 100
)

type Service struct {
	repo     Repository
	cache    cache.Cache
	metrics  *metrics.Metrics
	cacheTTL time.Duration
	now      func() time.Time
}

func NewService(repo Repository, c cache.Cache, m *metrics.Metrics, cacheTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		metrics:  m,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// ListAvailableSlots returns unbooked future slots with their doctors,
// ordered by start time. The default page is served read-through from
// the cache; explicitly paginated requests always hit the database so a
// cached snapshot can never answer the wrong page.
func (s *Service) ListAvailableSlots(ctx context.Context, offset, limit int) ([]SlotWithDoctor, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	cacheable := offset == 0 && limit == DefaultListLimit

	if cacheable {
		if data, ok := s.cache.Get(ctx, cache.SlotsKey); ok {
			var slots []SlotWithDoctor
			if err := json.Unmarshal(data, &slots); err == nil {
				return slots, nil
			}
			log.Printf("discarding undecodable cache payload key=%s", cache.SlotsKey)
		}
	}

	slots, err := s.repo.ListOpenSlots(ctx, s.now(), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}
	if slots == nil {
		slots = []SlotWithDoctor{}
	}

	if cacheable {
		if data, err := json.Marshal(slots); err == nil {
			s.cache.Set(ctx, cache.SlotsKey, data, s.cacheTTL)
		}
	}

	return slots, nil
}

// CreateAppointment reserves a slot for a patient. Preconditions fail
// fast with their sentinel error; the commit itself is guarded by the
// repository transaction and the unique slot constraint, so two
// concurrent attempts on one slot cannot both succeed.
func (s *Service) CreateAppointment(ctx context.Context, slotID, patientID uuid.UUID) (*AppointmentDetail, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			s.metrics.ObserveBooking("patient_not_found")
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			s.metrics.ObserveBooking("slot_not_found")
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}

	if slot.IsBooked {
		s.metrics.ObserveBooking("conflict")
		return nil, ErrSlotAlreadyBooked
	}
	if !slot.StartTime.After(s.now()) {
		s.metrics.ObserveBooking("past_slot")
		return nil, ErrSlotInPast
	}

	appt, err := s.repo.BookSlot(ctx, slotID, patientID)
	if err != nil {
		if errors.Is(err, ErrSlotAlreadyBooked) {
			s.metrics.ObserveBooking("conflict")
			return nil, err
		}
		s.metrics.ObserveBooking("error")
		return nil, fmt.Errorf("book slot: %w", err)
	}

	s.metrics.ObserveBooking("confirmed")
	s.invalidateSlotsCache(ctx)

	detail, err := s.repo.GetAppointmentDetail(ctx, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("load created appointment: %w", err)
	}
	return detail, nil
}

// CancelAppointment flips a booking to cancelled and frees its slot.
// Cancelled is terminal: a second cancel returns ErrAlreadyCancelled
// and leaves the slot untouched.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.metrics.ObserveCancellation("not_found")
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if detail.Status == StatusCancelled {
		s.metrics.ObserveCancellation("already_cancelled")
		return nil, ErrAlreadyCancelled
	}

	if _, err := s.repo.CancelAppointment(ctx, appointmentID, detail.SlotID); err != nil {
		if errors.Is(err, ErrAlreadyCancelled) {
			s.metrics.ObserveCancellation("already_cancelled")
			return nil, err
		}
		s.metrics.ObserveCancellation("error")
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.metrics.ObserveCancellation("cancelled")
	s.invalidateSlotsCache(ctx)

	updated, err := s.repo.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load cancelled appointment: %w", err)
	}
	return updated, nil
}

// CreateOrGetPatient looks a patient up by email and registers one when
// missing. The unique email constraint turns a racing duplicate insert
// into ErrEmailTaken.
func (s *Service) CreateOrGetPatient(ctx context.Context, name, email string, phone *string) (*Patient, error) {
	existing, err := s.repo.GetPatientByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("load patient by email: %w", err)
	}

	created, err := s.repo.CreatePatient(ctx, name, email, phone)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

// ListPatientAppointments returns the patient's non-cancelled
// appointments on future slots, soonest first. An unknown email yields
// an empty list, not an error.
func (s *Service) ListPatientAppointments(ctx context.Context, email string) ([]AppointmentDetail, error) {
	patient, err := s.repo.GetPatientByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return []AppointmentDetail{}, nil
		}
		return nil, fmt.Errorf("load patient by email: %w", err)
	}

	appts, err := s.repo.ListUpcomingByPatient(ctx, patient.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	if appts == nil {
		appts = []AppointmentDetail{}
	}
	return appts, nil
}

// invalidateSlotsCache evicts the availability snapshot after a
// committed write. Best effort: the cache layer never returns errors
// and the next miss repopulates from the database.
func (s *Service) invalidateSlotsCache(ctx context.Context) {
	s.cache.Delete(ctx, cache.SlotsKey)
}
