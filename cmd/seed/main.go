package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/config"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/db"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/logging"
	"github.com/hackgods/doctor-day-scheduling/internal/schema"
)

type seeder struct {
	svc    *command.Service
	faker  *gofakeit.Faker
	logger log15.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New("seed", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		os.Stderr.WriteString("logger setup error: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Info("Seed starting.")

	ctx := context.Background()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		logger.Crit("Postgres connection failed.", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Crit("Migration failed.", "err", err)
		os.Exit(1)
	}

	s := &seeder{
		svc:    command.NewService(eventlog.NewPostgresStore(pool), schema.NewCodec(), day.RandomSlotID, logging.Discard()),
		faker:  gofakeit.New(0),
		logger: logger,
	}

	doctors := envInt("SEED_DOCTORS", 20)
	days := envInt("SEED_DAYS", 14)
	patients := envInt("SEED_PATIENTS", 500)

	if err := s.seed(ctx, doctors, days, patients); err != nil {
		logger.Crit("Seed failed.", "err", err)
		os.Exit(1)
	}
	logger.Info("Seed complete.")
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return def
}

func (s *seeder) seed(ctx context.Context, doctors, days, patients int) error {
	s.logger.Info("Seeding doctor days.", "doctors", doctors, "days", days, "patients", patients)

	pool := make([]day.PatientID, patients)
	for i := range pool {
		pool[i] = day.PatientID(s.faker.Username())
	}

	start := day.DateOf(time.Now())
	scheduled, booked := 0, 0
	for i := 0; i < doctors; i++ {
		doctorID := day.DoctorID(strings.ToLower(s.faker.LastName()) + "-" + s.faker.DigitN(3))

		for d := 0; d < days; d++ {
			date := start.AddDate(0, 0, d)
			res, err := s.svc.Handle(ctx, command.ScheduleDay{DoctorID: doctorID, Date: date, Slots: s.slots(date)})
			if errors.Is(err, day.ErrDayAlreadyScheduled) {
				continue
			}
			if err != nil {
				return err
			}
			scheduled++

			for _, e := range res.Events {
				slot, ok := e.(day.SlotScheduled)
				if !ok || s.faker.Number(1, 100) > 30 {
					continue
				}
				patient := pool[s.faker.Number(0, len(pool)-1)]
				_, err := s.svc.Handle(ctx, command.BookSlot{DayID: res.DayID, SlotID: slot.SlotID, PatientID: patient})
				if err != nil {
					return err
				}
				booked++
			}
		}
		s.logger.Info("Doctor seeded.", "doctor", doctorID, "progress", strconv.Itoa(i+1)+"/"+strconv.Itoa(doctors))
	}

	s.logger.Info("Doctor days seeded.", "days", scheduled, "bookings", booked)
	return nil
}

// slots lays out a morning block of back-to-back slots from 08:00.
func (s *seeder) slots(date time.Time) []command.SlotToSchedule {
	n := s.faker.Number(6, day.Capacity)
	first := date.Add(8 * time.Hour)
	out := make([]command.SlotToSchedule, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, command.SlotToSchedule{
			StartTime: first.Add(time.Duration(i) * day.SlotDuration),
			Duration:  day.SlotDuration,
		})
	}
	return out
}
