package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/medagenda/booking-api/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	doctors, err := seedDoctors(seedCtx, pool, 10)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	patients, err := seedPatients(seedCtx, pool, 50)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedHistory(seedCtx, pool, doctors, patients, 100); err != nil {
		log.Fatalf("seed history: %v", err)
	}
	if err := seedOpenSlots(seedCtx, pool, doctors); err != nil {
		log.Fatalf("seed open slots: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Clínico Geral",
		"Cardiologia",
		"Dermatologia",
		"Ortopedia",
		"Endocrinologia",
		"Neurologia",
		"Pediatria",
		"Psiquiatria",
		"Oftalmologia",
		"Otorrinolaringologia",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[i%len(specialties)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()
		phone := gofakeit.Phone()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, email, phone)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedHistory creates past booked slots with confirmed or cancelled
// appointments, so listings have realistic history to filter out.
func seedHistory(ctx context.Context, pool *pgxpool.Pool, doctors, patients []uuid.UUID, count int) error {
	log.Printf("seeding %d past appointments", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC().Truncate(time.Hour)

	for i := 0; i < count; i++ {
		doctor := doctors[gofakeit.Number(0, len(doctors)-1)]
		patient := patients[gofakeit.Number(0, len(patients)-1)]

		start := now.Add(-time.Duration(gofakeit.Number(1, 90)) * 24 * time.Hour)
		status := "confirmed"
		cancelled := gofakeit.Float64() > 0.8
		if cancelled {
			status = "cancelled"
		}

		slotID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO slots (id, doctor_id, start_time, end_time, is_booked, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, slotID, doctor, start, start.Add(time.Hour), !cancelled)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO appointments (id, slot_id, patient_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, uuid.New(), slotID, patient, status, start.Add(-7*24*time.Hour))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("history seeded")
	return nil
}

// seedOpenSlots creates unbooked working-hour slots over the next days.
func seedOpenSlots(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID) error {
	log.Println("seeding open future slots")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	created := 0

	for day := 1; day <= 5; day++ {
		for hour := 9; hour < 17; hour++ {
			if gofakeit.Float64() > 0.5 {
				continue
			}

			doctor := doctors[gofakeit.Number(0, len(doctors)-1)]
			start := time.Date(base.Year(), base.Month(), base.Day(), hour, 0, 0, 0, time.UTC).
				Add(time.Duration(day) * 24 * time.Hour)

			_, err := tx.Exec(ctx, `
				INSERT INTO slots (id, doctor_id, start_time, end_time, is_booked, created_at, updated_at)
				VALUES ($1, $2, $3, $4, false, now(), now())
			`, uuid.New(), doctor, start, start.Add(time.Hour))
			if err != nil {
				return err
			}
			created++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("open slots seeded: %d", created)
	return nil
}
