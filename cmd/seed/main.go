package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var medicines = []string{"Paracetamol", "Ibuprofen", "Amoxicillin", "Cetirizine", "Omeprazole", "Metformin"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json").Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", "seed").Logger()
	log.Info().Str("store", cfg.StoreBackend).Msg("seed starting")

	doctors := getInt("SEED_DOCTORS", 10)
	patients := getInt("SEED_PATIENTS", 200)
	days := getInt("SEED_DAYS", 5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if err := gofakeit.Seed(time.Now().UnixNano()); err != nil {
		log.Fatal().Err(err).Msg("seed faker")
	}

	patientIDs := make([]string, patients)
	for i := range patientIDs {
		patientIDs[i] = fmt.Sprintf("P-%s", gofakeit.DigitN(6))
	}

	for i := 0; i < doctors; i++ {
		doctorID := fmt.Sprintf("D-%s", gofakeit.LetterN(3))
		if err := seedDoctor(ctx, a.Scheduler, log, doctorID, days, patientIDs); err != nil {
			log.Fatal().Err(err).Str("doctor_id", doctorID).Msg("seed doctor")
		}
	}

	log.Info().Int("doctors", doctors).Int("patients", patients).Msg("seed complete")
}

// seedDoctor opens a morning and an afternoon block on each of the next
// working days, books a share of the hours and confirms some of those.
func seedDoctor(ctx context.Context, sched *scheduling.Scheduler, log zerolog.Logger, doctorID string, days int, patients []string) error {
	var slots []availability.Slot
	for _, date := range workingDays(time.Now(), days) {
		for _, block := range [][2]string{{"9 AM", "12 PM"}, {"2 PM", "5 PM"}} {
			status := availability.StatusAvailable
			if gofakeit.Float64Range(0, 1) < 0.15 {
				status = availability.StatusBusy
			}
			created, err := sched.SubmitAvailability(ctx, availability.SubmitRequest{
				DoctorID: doctorID, Date: date, StartTime: block[0], EndTime: block[1], Status: status,
			})
			if errors.Is(err, apperr.ErrConflict) {
				continue
			}
			if err != nil {
				return err
			}
			slots = append(slots, created...)
		}
	}

	booked, confirmed := 0, 0
	for _, s := range slots {
		if s.Status != availability.StatusAvailable || gofakeit.Float64Range(0, 1) > 0.6 {
			continue
		}
		appt, err := sched.Book(ctx, appointment.BookRequest{
			DoctorID:  doctorID,
			PatientID: patients[gofakeit.Number(0, len(patients)-1)],
			Date:      s.Date,
			StartTime: s.StartTime,
		})
		if apperr.IsBusiness(err) {
			continue
		}
		if err != nil {
			return err
		}
		booked++

		if gofakeit.Bool() {
			if _, err := sched.Accept(ctx, appt.ID); err != nil {
				if apperr.IsBusiness(err) {
					continue
				}
				return err
			}
			confirmed++
			if gofakeit.Float64Range(0, 1) < 0.3 {
				if err := seedOutcome(ctx, sched, appt.ID); err != nil {
					return err
				}
			}
		}
	}

	log.Info().Str("doctor_id", doctorID).Int("slots", len(slots)).Int("booked", booked).
		Int("confirmed", confirmed).Msg("doctor seeded")
	return nil
}

func seedOutcome(ctx context.Context, sched *scheduling.Scheduler, appointmentID string) error {
	var meds []appointment.Medication
	for i := 0; i < gofakeit.Number(0, 2); i++ {
		status := appointment.DispensePending
		if gofakeit.Bool() {
			status = appointment.DispenseDispensed
		}
		meds = append(meds, appointment.Medication{
			Name:     medicines[gofakeit.Number(0, len(medicines)-1)],
			Status:   status,
			Quantity: gofakeit.Number(1, 3),
		})
	}
	_, err := sched.RecordOutcome(ctx, appointment.OutcomeRequest{
		AppointmentID:     appointmentID,
		ServiceType:       gofakeit.RandomString([]string{"Consultation", "Follow-up", "Vaccination", "Check-up"}),
		Medications:       meds,
		ConsultationNotes: gofakeit.Sentence(8),
		FinalOutcome:      gofakeit.RandomString([]string{"Resolved", "Recovering", "Referred", "Review in two weeks"}),
	})
	if apperr.IsBusiness(err) {
		return nil
	}
	return err
}

func workingDays(from time.Time, n int) []time.Time {
	var out []time.Time
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.Local)
	for len(out) < n {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
