package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medagenda/booking-api/internal/booking"
)

type StatusResponse struct {
	Status string `json:"status"`
}

type CreateAppointmentRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
}

type CreatePatientRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

type DoctorResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
}

type SlotResponse struct {
	ID        uuid.UUID      `json:"id"`
	DoctorID  uuid.UUID      `json:"doctor_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	IsBooked  bool           `json:"is_booked"`
	Doctor    DoctorResponse `json:"doctor"`
}

type PatientResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`
}

type AppointmentResponse struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Status    string          `json:"status"`
	Slot      SlotResponse    `json:"slot"`
	Patient   PatientResponse `json:"patient"`
}

type PaymentInfoResponse struct {
	Methods []string `json:"methods"`
	Value   string   `json:"value"`
	PixKey  string   `json:"pix_key,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toDoctorResponse(d booking.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:        d.ID,
		Name:      d.Name,
		Specialty: d.Specialty,
	}
}

func toSlotResponse(s booking.SlotWithDoctor) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		IsBooked:  s.IsBooked,
		Doctor:    toDoctorResponse(s.Doctor),
	}
}

func toSlotResponses(slots []booking.SlotWithDoctor) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toPatientResponse(p booking.Patient) PatientResponse {
	return PatientResponse{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
	}
}

func toAppointmentResponse(d booking.AppointmentDetail) AppointmentResponse {
	return AppointmentResponse{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		Status:    string(d.Status),
		Slot:      toSlotResponse(d.Slot),
		Patient:   toPatientResponse(d.Patient),
	}
}

func toAppointmentResponses(details []booking.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toAppointmentResponse(d))
	}
	return out
}
