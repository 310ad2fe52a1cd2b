package booking

import (
	"context"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/booking-api/internal/cache"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// fakeRepo is an in-memory Repository mirroring the schema invariants:
// at most one appointment row per slot ever, cancelled is terminal.
type fakeRepo struct {
	patients     map[uuid.UUID]Patient
	slots        map[uuid.UUID]SlotWithDoctor
	appointments map[uuid.UUID]Appointment
	listCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:     make(map[uuid.UUID]Patient),
		slots:        make(map[uuid.UUID]SlotWithDoctor),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (f *fakeRepo) addDoctorSlot(start time.Time, booked bool) SlotWithDoctor {
	doctor := Doctor{ID: uuid.New(), Name: "Dr. Teste", Specialty: "Testologia", CreatedAt: testNow, UpdatedAt: testNow}
	slot := SlotWithDoctor{
		Slot: Slot{
			ID:        uuid.New(),
			DoctorID:  doctor.ID,
			StartTime: start,
			EndTime:   start.Add(time.Hour),
			IsBooked:  booked,
			CreatedAt: testNow,
			UpdatedAt: testNow,
		},
		Doctor: doctor,
	}
	f.slots[slot.ID] = slot
	return slot
}

func (f *fakeRepo) addPatient(email string) Patient {
	p := Patient{ID: uuid.New(), Name: "Paciente Teste", Email: email, CreatedAt: testNow, UpdatedAt: testNow}
	f.patients[p.ID] = p
	return p
}

func (f *fakeRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (f *fakeRepo) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	for _, p := range f.patients {
		if p.Email == email {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) CreatePatient(ctx context.Context, name, email string, phone *string) (*Patient, error) {
	if _, err := f.GetPatientByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	}
	p := Patient{ID: uuid.New(), Name: name, Email: email, Phone: phone, CreatedAt: testNow, UpdatedAt: testNow}
	f.patients[p.ID] = p
	return &p, nil
}

func (f *fakeRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*SlotWithDoctor, error) {
	s, ok := f.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (f *fakeRepo) ListOpenSlots(ctx context.Context, after time.Time, offset, limit int) ([]SlotWithDoctor, error) {
	f.listCalls++

	var open []SlotWithDoctor
	for _, s := range f.slots {
		if !s.IsBooked && s.StartTime.After(after) {
			open = append(open, s)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartTime.Before(open[j].StartTime) })

	if offset >= len(open) {
		return nil, nil
	}
	open = open[offset:]
	if limit < len(open) {
		open = open[:limit]
	}
	return open, nil
}

func (f *fakeRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &AppointmentDetail{
		Appointment: a,
		Slot:        f.slots[a.SlotID],
		Patient:     f.patients[a.PatientID],
	}, nil
}

func (f *fakeRepo) ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, after time.Time) ([]AppointmentDetail, error) {
	var result []AppointmentDetail
	for _, a := range f.appointments {
		slot := f.slots[a.SlotID]
		if a.PatientID == patientID && a.Status != StatusCancelled && !slot.StartTime.Before(after) {
			result = append(result, AppointmentDetail{Appointment: a, Slot: slot, Patient: f.patients[patientID]})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slot.StartTime.Before(result[j].Slot.StartTime) })
	return result, nil
}

func (f *fakeRepo) BookSlot(ctx context.Context, slotID, patientID uuid.UUID) (*Appointment, error) {
	slot, ok := f.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if slot.IsBooked {
		return nil, ErrSlotAlreadyBooked
	}
	// Unique constraint on appointments.slot_id.
	for _, a := range f.appointments {
		if a.SlotID == slotID {
			return nil, ErrSlotAlreadyBooked
		}
	}

	slot.IsBooked = true
	f.slots[slotID] = slot

	a := Appointment{
		ID:        uuid.New(),
		SlotID:    slotID,
		PatientID: patientID,
		Status:    StatusConfirmed,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	f.appointments[a.ID] = a
	return &a, nil
}

func (f *fakeRepo) CancelAppointment(ctx context.Context, appointmentID, slotID uuid.UUID) (*Appointment, error) {
	a, ok := f.appointments[appointmentID]
	if !ok || a.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	a.Status = StatusCancelled
	f.appointments[appointmentID] = a

	slot := f.slots[slotID]
	slot.IsBooked = false
	f.slots[slotID] = slot

	return &a, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newFakeRepo()
	svc := NewService(repo, cache.NewRedisCache(client, nil), nil, 300*time.Second)
	svc.now = func() time.Time { return testNow }

	return svc, repo, mr
}

func TestCreateAppointmentSuccess(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()

	slot := repo.addDoctorSlot(testNow.Add(24*time.Hour), false)
	patient := repo.addPatient("teste@teste.com")

	// A stale listing is cached; booking must evict it.
	require.NoError(t, mr.Set(cache.SlotsKey, "[]"))

	detail, err := svc.CreateAppointment(ctx, slot.ID, patient.ID)
	require.NoError(t, err)

	require.Equal(t, StatusConfirmed, detail.Status)
	require.Equal(t, slot.ID, detail.Slot.ID)
	require.Equal(t, patient.ID, detail.Patient.ID)
	require.True(t, repo.slots[slot.ID].IsBooked)

	require.False(t, mr.Exists(cache.SlotsKey), "booking must invalidate the slots cache")
}

func TestCreateAppointmentPatientNotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)

	slot := repo.addDoctorSlot(testNow.Add(24*time.Hour), false)

	_, err := svc.CreateAppointment(context.Background(), slot.ID, uuid.New())
	require.ErrorIs(t, err, ErrPatientNotFound)
	require.Empty(t, repo.appointments)
}

func TestCreateAppointmentSlotNotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)

	patient := repo.addPatient("teste@teste.com")

	_, err := svc.CreateAppointment(context.Background(), uuid.New(), patient.ID)
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestCreateAppointmentConflict(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	slot := repo.addDoctorSlot(testNow.Add(24*time.Hour), false)
	p1 := repo.addPatient("um@teste.com")
	p2 := repo.addPatient("dois@teste.com")

	_, err := svc.CreateAppointment(ctx, slot.ID, p1.ID)
	require.NoError(t, err)

	_, err = svc.CreateAppointment(ctx, slot.ID, p2.ID)
	require.ErrorIs(t, err, ErrSlotAlreadyBooked)
	require.Len(t, repo.appointments, 1)
}

func TestCreateAppointmentPastSlot(t *testing.T) {
	svc, repo, _ := newTestService(t)

	slot := repo.addDoctorSlot(testNow.Add(-time.Hour), false)
	patient := repo.addPatient("teste@teste.com")

	_, err := svc.CreateAppointment(context.Background(), slot.ID, patient.ID)
	require.ErrorIs(t, err, ErrSlotInPast)
	require.Empty(t, repo.appointments)
	require.False(t, repo.slots[slot.ID].IsBooked)
}

func TestCancelAppointment(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()

	slot := repo.addDoctorSlot(testNow.Add(24*time.Hour), false)
	patient := repo.addPatient("teste@teste.com")

	detail, err := svc.CreateAppointment(ctx, slot.ID, patient.ID)
	require.NoError(t, err)

	require.NoError(t, mr.Set(cache.SlotsKey, "[]"))

	cancelled, err := svc.CancelAppointment(ctx, detail.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.False(t, repo.slots[slot.ID].IsBooked, "cancel must free the slot")
	require.False(t, mr.Exists(cache.SlotsKey), "cancel must invalidate the slots cache")

	// Cancelled is terminal; a second cancel must not touch the slot.
	_, err = svc.CancelAppointment(ctx, detail.ID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	require.False(t, repo.slots[slot.ID].IsBooked)
}

func TestCancelAppointmentNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CancelAppointment(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestListAvailableSlotsReadThrough(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	repo.addDoctorSlot(testNow.Add(24*time.Hour), false)
	repo.addDoctorSlot(testNow.Add(48*time.Hour), false)
	repo.addDoctorSlot(testNow.Add(-time.Hour), false) // past, never listed
	repo.addDoctorSlot(testNow.Add(72*time.Hour), true)

	first, err := svc.ListAvailableSlots(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, repo.listCalls, "cold cache must query the store once")

	second, err := svc.ListAvailableSlots(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.listCalls, "warm cache must not query the store")
}

func TestListAvailableSlotsReflectsWrites(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	slot := repo.addDoctorSlot(testNow.Add(24*time.Hour), false)
	patient := repo.addPatient("teste@teste.com")

	before, err := svc.ListAvailableSlots(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, before, 1)

	detail, err := svc.CreateAppointment(ctx, slot.ID, patient.ID)
	require.NoError(t, err)

	after, err := svc.ListAvailableSlots(ctx, 0, 0)
	require.NoError(t, err)
	require.Empty(t, after, "booked slot must not be listed")
	require.Equal(t, 2, repo.listCalls)

	_, err = svc.CancelAppointment(ctx, detail.ID)
	require.NoError(t, err)

	freed, err := svc.ListAvailableSlots(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, freed, 1, "cancelled slot must reappear")
	require.Equal(t, slot.ID, freed[0].ID)
}

func TestListAvailableSlotsPaginatedBypassesCache(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()

	repo.addDoctorSlot(testNow.Add(24*time.Hour), false)
	repo.addDoctorSlot(testNow.Add(48*time.Hour), false)

	page, err := svc.ListAvailableSlots(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.False(t, mr.Exists(cache.SlotsKey), "paginated reads must not populate the cache")

	_, err = svc.ListAvailableSlots(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, repo.listCalls, "paginated reads must always hit the store")
}

func TestCreateOrGetPatient(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateOrGetPatient(ctx, "Maria Souza", "maria@teste.com", nil)
	require.NoError(t, err)

	again, err := svc.CreateOrGetPatient(ctx, "Outro Nome", "maria@teste.com", nil)
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID, "existing email must return the existing patient")
	require.Equal(t, "Maria Souza", again.Name)
}

func TestListPatientAppointments(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	slotA := repo.addDoctorSlot(testNow.Add(48*time.Hour), false)
	slotB := repo.addDoctorSlot(testNow.Add(24*time.Hour), false)
	patient := repo.addPatient("teste@teste.com")

	a, err := svc.CreateAppointment(ctx, slotA.ID, patient.ID)
	require.NoError(t, err)
	b, err := svc.CreateAppointment(ctx, slotB.ID, patient.ID)
	require.NoError(t, err)

	appts, err := svc.ListPatientAppointments(ctx, "teste@teste.com")
	require.NoError(t, err)
	require.Len(t, appts, 2)
	require.Equal(t, b.ID, appts[0].ID, "soonest slot first")
	require.Equal(t, a.ID, appts[1].ID)

	_, err = svc.CancelAppointment(ctx, a.ID)
	require.NoError(t, err)

	appts, err = svc.ListPatientAppointments(ctx, "teste@teste.com")
	require.NoError(t, err)
	require.Len(t, appts, 1, "cancelled appointments are excluded")

	empty, err := svc.ListPatientAppointments(ctx, "desconhecido@teste.com")
	require.NoError(t, err)
	require.Empty(t, empty)
}
