package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/audit"
	"github.com/hackgods/clinic-booking-engine/internal/booking"
	"github.com/hackgods/clinic-booking-engine/internal/calendar"
	"github.com/hackgods/clinic-booking-engine/internal/config"
	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/logging"
	redisclient "github.com/hackgods/clinic-booking-engine/internal/redis"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "dev")
		fallback.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("component", "seed").Logger()
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConns, MinConns: cfg.PostgresMinConns})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	clinic := buildClinic(faker, cfg.ClinicID, cfg.ClinicTimezone, envInt("SEED_DOCTORS", 5))
	store := schedule.NewRedisStore(rdb, cfg.ClinicID)
	if err := store.Save(ctx, clinic); err != nil {
		logger.Fatal().Err(err).Msg("save schedule")
	}
	logger.Info().Str("clinic_id", clinic.ClinicID).
		Int("doctors", len(clinic.Doctors)).
		Int("services", len(clinic.Services)).
		Msg("schedule seeded")

	cal, err := calendar.New(ctx, calendar.GoogleOptions{
		CredentialsFile: cfg.CalendarCredentialsFile,
		CalendarID:      cfg.CalendarID,
		Timeout:         cfg.CalendarTimeout,
		RatePerSec:      cfg.CalendarRatePerSec,
		Burst:           cfg.CalendarBurst,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("calendar adapter error")
	}

	svc := booking.NewService(
		booking.NewPgRepository(pool),
		cal,
		audit.NewPgSink(pool),
		store,
		logger,
		booking.Options{Location: cfg.Location(), CalendarTimeout: cfg.CalendarTimeout},
	)

	created, err := seedBookings(ctx, svc, faker, clinic, time.Now().In(cfg.Location()), envInt("SEED_BOOKINGS", 50), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed bookings")
	}

	logger.Info().Int("bookings", created).Msg("seed complete")
}

type bookingCreator interface {
	CreateBooking(ctx context.Context, req booking.Request) (booking.Result, error)
}

// buildClinic generates a scheduled-mode clinic open 09:00-18:00 with one
// service per specialty and a mix of available and unavailable doctors.
func buildClinic(faker *gofakeit.Faker, clinicID, timezone string, doctors int) schedule.Config {
	cfg := schedule.Config{
		ClinicID:            clinicID,
		Name:                faker.Company() + " Clinic",
		Timezone:            timezone,
		OperatingHours:      schedule.Hours{Start: schedule.MustTimeOfDay("09:00"), End: schedule.MustTimeOfDay("18:00")},
		BookingMode:         schedule.ModeScheduled,
		SlotDurationMinutes: 30,
		Services: []schedule.Service{
			{ID: "general", Label: "General consultation", DurationMinutes: 30},
			{ID: "followup", Label: "Follow-up", DurationMinutes: 15},
			{ID: "extended", Label: "Extended consultation", DurationMinutes: 45},
			{ID: "teleconsult", Label: "Teleconsultation", DurationMinutes: 20, Online: true},
		},
	}

	for i := 0; i < doctors; i++ {
		cfg.Doctors = append(cfg.Doctors, schedule.Doctor{
			ID:        fmt.Sprintf("doc-%d", i+1),
			Name:      "Dr. " + faker.Name(),
			Specialty: specialties[faker.Number(0, len(specialties)-1)],
			// Keep the first doctor available so the roster is never empty.
			IsAvailable: i == 0 || faker.Float64Range(0, 1) < 0.8,
		})
	}
	return cfg
}

// seedBookings books count random open slots over the next week. Slots that
// are already taken are skipped.
func seedBookings(ctx context.Context, svc bookingCreator, faker *gofakeit.Faker, clinic schedule.Config, now time.Time, count int, logger zerolog.Logger) (int, error) {
	doctors := clinic.AvailableDoctors()
	created := 0

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		service := clinic.Services[faker.Number(0, len(clinic.Services)-1)]
		date := schedule.DateOf(now.AddDate(0, 0, faker.Number(1, 7)))
		steps := int(clinic.OperatingHours.End-clinic.OperatingHours.Start) / clinic.SlotDurationMinutes
		start := clinic.OperatingHours.Start.Add(faker.Number(0, steps-1) * clinic.SlotDurationMinutes)

		req := booking.Request{
			PatientName:  faker.Name(),
			PatientPhone: faker.Phone(),
			ServiceID:    service.ID,
			Date:         date.String(),
			StartTime:    start.String(),
			RequestedBy:  "seed",
		}
		if faker.Bool() {
			email := faker.Email()
			req.PatientEmail = &email
		}
		if len(doctors) > 0 {
			doctorID := doctors[faker.Number(0, len(doctors)-1)].ID
			req.DoctorID = &doctorID
		}
		if faker.Number(1, 10) == 1 {
			req.Type = booking.TypeAcademic
		}

		res, err := svc.CreateBooking(ctx, req)
		if err != nil {
			logger.Debug().Err(err).Str("date", req.Date).Str("start_time", req.StartTime).Msg("booking skipped")
			continue
		}
		created++
		logger.Debug().Str("booking_id", res.BookingID).Str("status", string(res.Status)).Msg("booking seeded")
	}

	return created, nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
