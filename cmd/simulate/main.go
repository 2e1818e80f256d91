package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/api"
	"github.com/hackgods/doctor-day-scheduling/internal/config"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookRatio    float64
	CancelRatio  float64
	ReadRatio    float64
	Patients     int
	DaysAhead    int
	BookingLimit int
}

type slotRef struct {
	DayID  string
	SlotID string
	Date   string
}

type DataPool struct {
	Patients []string
	Slots    []slotRef
	Dates    []string
	mu       sync.Mutex
	booked   []slotRef
}

func (dp *DataPool) AddBooking(s slotRef) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.booked = append(dp.booked, s)
}

// TakeBooking removes and returns a random booking made during the run.
func (dp *DataPool) TakeBooking(rng *rand.Rand) (slotRef, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.booked) == 0 {
		return slotRef{}, false
	}
	idx := rng.Intn(len(dp.booked))
	s := dp.booked[idx]
	dp.booked[idx] = dp.booked[len(dp.booked)-1]
	dp.booked = dp.booked[:len(dp.booked)-1]
	return s, true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  log15.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.New("simulate", logging.Options{Level: baseCfg.LogLevel, Format: "terminal"})
	if err != nil {
		os.Stderr.WriteString("logger setup error: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Crit("Invalid config.", "err", err)
		os.Exit(1)
	}
	logger.Info("Simulator starting.", "duration", cfg.Duration, "workers", cfg.Workers,
		"book", cfg.BookRatio, "cancel", cfg.CancelRatio, "read", cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim.pool, err = sim.loadDataPool(ctx)
	if err != nil {
		logger.Crit("Loading data pool failed.", "err", err)
		os.Exit(1)
	}
	logger.Info("Data pool loaded.", "patients", len(sim.pool.Patients), "slots", len(sim.pool.Slots))

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookRatio:    getFloat("SIM_BOOK_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		Patients:     getInt("SIM_PATIENTS", 200),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 14),
		BookingLimit: base.BookingLimitPerPatient,
	}

	// Normalize ratios
	total := cfg.BookRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 || cfg.DaysAhead <= 0 {
		return errors.New("SIM_PATIENTS and SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

// loadDataPool collects open slots from the available-slots view for the
// coming days and invents a patient population.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	faker := gofakeit.New(0)
	pool := &DataPool{}
	for i := 0; i < s.config.Patients; i++ {
		pool.Patients = append(pool.Patients, faker.Username())
	}

	today := day.DateOf(time.Now())
	for d := 0; d < s.config.DaysAhead; d++ {
		date := today.AddDate(0, 0, d).Format(day.DateLayout)
		pool.Dates = append(pool.Dates, date)

		slots, err := s.available(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("load slots for %s: %w", date, err)
		}
		for _, sl := range slots {
			pool.Slots = append(pool.Slots, slotRef{DayID: sl.DayID, SlotID: sl.SlotID, Date: date})
		}
	}

	if len(pool.Slots) == 0 {
		return nil, errors.New("no available slots, run seed first")
	}
	return pool, nil
}

func (s *Simulator) available(ctx context.Context, date string) ([]api.AvailableSlotResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/api/v1/slots/"+date+"/available", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out []api.AvailableSlotResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("Simulation started.", "duration", s.config.Duration, "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("Simulation complete.")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookRatio:
				s.doBook(ctx, rng)
			case r < s.config.BookRatio+s.config.CancelRatio:
				s.doCancelBooking(ctx, rng)
			default:
				s.doAvailable(ctx, rng)
			}
		}
	}
}

// send issues a JSON request and returns the status, or 0 on transport failure.
func (s *Simulator) send(ctx context.Context, method, path string, body any) int {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	resp.Body.Close()
	return resp.StatusCode
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status := s.send(ctx, http.MethodPut, "/api/v1/slots/"+slot.DayID+"/book", api.BookSlotRequest{SlotID: slot.SlotID, PatientID: patient})
	if status == http.StatusNoContent {
		s.pool.AddBooking(slot)
	}
	s.metrics.Book.Record(time.Since(start), status == http.StatusNoContent, status == http.StatusConflict)
}

func (s *Simulator) doCancelBooking(ctx context.Context, rng *rand.Rand) {
	slot, ok := s.pool.TakeBooking(rng)
	if !ok {
		return
	}

	start := time.Now()
	status := s.send(ctx, http.MethodPut, "/api/v1/slots/"+slot.DayID+"/cancel-booking", api.CancelBookingRequest{SlotID: slot.SlotID, Reason: "Simulated cancellation."})
	s.metrics.CancelBooking.Record(time.Since(start), status == http.StatusNoContent, status == http.StatusConflict)
}

func (s *Simulator) doAvailable(ctx context.Context, rng *rand.Rand) {
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]

	start := time.Now()
	_, err := s.available(ctx, date)
	s.metrics.Available.Record(time.Since(start), err == nil, false)
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := config.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
