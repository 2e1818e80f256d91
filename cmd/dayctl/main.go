package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/urfave/cli/v2"

	"github.com/hackgods/doctor-day-scheduling/internal/coldstorage"
	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/db"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/logging"
	"github.com/hackgods/doctor-day-scheduling/internal/mongodb"
	"github.com/hackgods/doctor-day-scheduling/internal/schema"
)

var logger log15.Logger

func main() {
	app := cli.App{
		Name:  "dayctl",
		Usage: "Administer doctor days in the event log.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-dsn", EnvVars: []string{"POSTGRES_DSN"}, Usage: "Event log database."},
			&cli.StringFlag{Name: "mongo-uri", EnvVars: []string{"MONGO_URI"}, Value: "mongodb://127.0.0.1:27017"},
			&cli.StringFlag{Name: "mongo-database", EnvVars: []string{"MONGO_DATABASE"}, Value: "doctorday"},
			&cli.StringFlag{Name: "cold-storage-bucket", EnvVars: []string{"COLD_STORAGE_BUCKET"}, Value: "archived_streams"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"LOG_LEVEL"}, Value: "warn"},
		},
		Before: func(c *cli.Context) error {
			var err error
			logger, err = logging.New("dayctl", logging.Options{Level: c.String("log-level"), Format: "terminal", Output: os.Stderr})
			return err
		},
		Commands: []*cli.Command{
			{
				Name:  "schedule-day",
				Usage: "Schedule a day of back-to-back slots.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "doctor", Required: true},
					&cli.StringFlag{Name: "date", Required: true, Usage: "yyyy-MM-dd"},
					&cli.StringFlag{Name: "start", Value: "09:00", Usage: "First slot, HH:MM UTC."},
					&cli.IntFlag{Name: "slots", Value: 12},
				},
				Action: func(c *cli.Context) error {
					doctorID, err := day.NewDoctorID(c.String("doctor"))
					if err != nil {
						return err
					}
					date, err := day.ParseDate(c.String("date"))
					if err != nil {
						return err
					}
					start, err := time.Parse("15:04", c.String("start"))
					if err != nil {
						return fmt.Errorf("invalid start: %w", err)
					}

					cmd := command.ScheduleDay{DoctorID: doctorID, Date: date}
					first := date.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute)
					for i := 0; i < c.Int("slots"); i++ {
						cmd.Slots = append(cmd.Slots, command.SlotToSchedule{
							StartTime: first.Add(time.Duration(i) * day.SlotDuration),
							Duration:  day.SlotDuration,
						})
					}

					return withService(c, func(ctx context.Context, svc *command.Service) error {
						res, err := svc.Handle(ctx, cmd)
						if err != nil {
							return err
						}
						fmt.Println(res.DayID)
						for _, e := range res.Events {
							if s, ok := e.(day.SlotScheduled); ok {
								fmt.Printf("  %s %s\n", s.SlotID, s.StartTime.Format("15:04"))
							}
						}
						return nil
					})
				},
			},
			{
				Name:      "book",
				Usage:     "Book a slot for a patient.",
				ArgsUsage: "DAY_ID SLOT_ID PATIENT_ID",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 3 {
						return errors.New("exactly three arguments expected")
					}
					dayID, slotID, err := dayAndSlot(c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return err
					}
					patientID, err := day.NewPatientID(c.Args().Get(2))
					if err != nil {
						return err
					}
					return run(c, command.BookSlot{DayID: dayID, SlotID: slotID, PatientID: patientID})
				},
			},
			{
				Name:      "cancel-booking",
				Usage:     "Cancel the booking of a slot.",
				ArgsUsage: "DAY_ID SLOT_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Value: "Cancelled by administrator."},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 2 {
						return errors.New("exactly two arguments expected")
					}
					dayID, slotID, err := dayAndSlot(c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return err
					}
					return run(c, command.CancelSlotBooking{DayID: dayID, SlotID: slotID, Reason: c.String("reason")})
				},
			},
			{
				Name:      "cancel-day",
				Usage:     "Cancel every booking and slot of a day.",
				ArgsUsage: "DAY_ID",
				Action: func(c *cli.Context) error {
					dayID, err := day.ParseDayID(c.Args().First())
					if err != nil {
						return err
					}
					return run(c, command.CancelDaySchedule{DayID: dayID})
				},
			},
			{
				Name:      "archive",
				Usage:     "Archive a day.",
				ArgsUsage: "DAY_ID",
				Action: func(c *cli.Context) error {
					dayID, err := day.ParseDayID(c.Args().First())
					if err != nil {
						return err
					}
					return run(c, command.ArchiveDaySchedule{DayID: dayID})
				},
			},
			{
				Name:      "start-day",
				Usage:     "Record that a calendar day started.",
				ArgsUsage: "DATE",
				Action: func(c *cli.Context) error {
					date, err := day.ParseDate(c.Args().First())
					if err != nil {
						return err
					}
					return run(c, command.StartCalendarDay{Date: date})
				},
			},
			{
				Name:      "stream",
				Usage:     "Print the live events of a stream.",
				ArgsUsage: "STREAM",
				Action: func(c *cli.Context) error {
					stream := c.Args().First()
					if stream == "" {
						return errors.New("stream name expected")
					}
					return withStore(c, func(ctx context.Context, store eventlog.Store) error {
						events, err := store.ReadStream(ctx, stream, 0, eventlog.Forwards)
						if err != nil {
							return err
						}
						printEvents(events)
						return nil
					})
				},
			},
			{
				Name:      "archived",
				Usage:     "Print the cold-storage copy of a stream.",
				ArgsUsage: "STREAM",
				Action: func(c *cli.Context) error {
					stream := c.Args().First()
					if stream == "" {
						return errors.New("stream name expected")
					}
					client, database, err := mongodb.Connect(c.Context, c.String("mongo-uri"), c.String("mongo-database"), logger)
					if err != nil {
						return err
					}
					defer client.Disconnect(context.Background())

					events, err := coldstorage.NewGridFSStorage(database, c.String("cold-storage-bucket")).ReadArchive(c.Context, stream)
					if err != nil {
						return err
					}
					printEvents(events)
					return nil
				},
			},
		},
	}

	// setup a context for coordinated shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dayAndSlot(rawDay, rawSlot string) (day.DayID, day.SlotID, error) {
	dayID, err := day.ParseDayID(rawDay)
	if err != nil {
		return "", day.SlotID{}, err
	}
	slotID, err := day.ParseSlotID(rawSlot)
	if err != nil {
		return "", day.SlotID{}, err
	}
	return dayID, slotID, nil
}

func withStore(c *cli.Context, fn func(ctx context.Context, store eventlog.Store) error) error {
	dsn := c.String("postgres-dsn")
	if dsn == "" {
		return errors.New("--postgres-dsn or POSTGRES_DSN is required")
	}
	pool, err := db.ConnectPostgres(c.Context, dsn, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(c.Context, pool); err != nil {
		return err
	}

	store, err := eventlog.NewLoggingStore(eventlog.NewPostgresStore(pool), logger)
	if err != nil {
		return err
	}
	return fn(c.Context, store)
}

func withService(c *cli.Context, fn func(ctx context.Context, svc *command.Service) error) error {
	return withStore(c, func(ctx context.Context, store eventlog.Store) error {
		ctx = eventlog.WithMetadata(ctx, eventlog.Metadata{CorrelationID: "dayctl-" + time.Now().UTC().Format(time.RFC3339Nano)})
		return fn(ctx, command.NewService(store, schema.NewCodec(), day.RandomSlotID, logger))
	})
}

func run(c *cli.Context, cmd command.Command) error {
	return withService(c, func(ctx context.Context, svc *command.Service) error {
		res, err := svc.Handle(ctx, cmd)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s now at version %d (position %d)\n", cmd.MessageType(), res.Stream, res.NextExpectedVersion, res.Position)
		return nil
	})
}

func printEvents(events []eventlog.RecordedEvent) {
	for _, e := range events {
		fmt.Printf("%6d %4d %-28s %s %s\n", e.Position, e.Version, e.Type, e.Created.UTC().Format(time.RFC3339), e.Data)
	}
}
