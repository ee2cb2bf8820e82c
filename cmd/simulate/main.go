package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Doctors      []string
	Patients     int
	BookingRatio float64
	AcceptRatio  float64
	CancelRatio  float64
	ReadRatio    float64
}

type openSlot struct {
	DoctorID  string
	Date      string
	StartTime string
}

// DataPool is shared by all workers. Slots are loaded once; appointment ids
// grow as bookings succeed.
type DataPool struct {
	Slots    []openSlot
	Patients []string

	mu           sync.RWMutex
	appointments []string
}

func (dp *DataPool) AddAppointment(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return "", false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < http.StatusBadRequest:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.latencies) == 0 {
		return 0, 0, 0, 0
	}

	sorted := append([]time.Duration(nil), om.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	n := len(sorted)
	return sum / time.Duration(n), sorted[n*50/100], sorted[min(n*95/100, n-1)], sorted[n-1]
}

type Metrics struct {
	Booking OperationMetrics
	Accept  OperationMetrics
	Cancel  OperationMetrics
	Read    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics
}

func main() {
	log := logging.New(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "console")).With().Str("service", "simulate").Logger()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	log.Info().Dur("duration", cfg.Duration).Int("workers", cfg.Workers).Strs("doctors", cfg.Doctors).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	sim.pool = pool
	log.Info().Int("open_slots", len(pool.Slots)).Int("patients", len(pool.Patients)).Msg("data pool loaded")

	sim.Run()
	sim.PrintReport(os.Stdout)
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Patients:     getInt("SIM_PATIENTS", 500),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.45),
		AcceptRatio:  getFloat("SIM_ACCEPT_RATIO", 0.25),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.25),
	}
	for _, d := range strings.Split(os.Getenv("SIM_DOCTORS"), ",") {
		if d = strings.TrimSpace(d); d != "" {
			cfg.Doctors = append(cfg.Doctors, d)
		}
	}

	total := cfg.BookingRatio + cfg.AcceptRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.AcceptRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if len(cfg.Doctors) == 0 {
		return fmt.Errorf("SIM_DOCTORS is required (comma separated doctor ids)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// loadDataPool reads each doctor's availability through the API and keeps
// the open hours as booking targets.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}
	for _, doctorID := range s.config.Doctors {
		var days []struct {
			Date   string `json:"date"`
			Ranges []struct {
				Start  string `json:"start"`
				End    string `json:"end"`
				Status string `json:"status"`
			} `json:"ranges"`
		}
		if err := s.getJSON(ctx, "/doctors/"+doctorID+"/availability", &days); err != nil {
			return nil, fmt.Errorf("availability for %s: %w", doctorID, err)
		}
		for _, d := range days {
			for _, r := range d.Ranges {
				if r.Status == "AVAILABLE" {
					pool.Slots = append(pool.Slots, hourlyStarts(doctorID, d.Date, r.Start, r.End)...)
				}
			}
		}
	}
	if len(pool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots for doctors %v", s.config.Doctors)
	}

	for i := 0; i < s.config.Patients; i++ {
		pool.Patients = append(pool.Patients, "SIM-"+gofakeit.DigitN(6))
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.AcceptRatio:
			s.doTransition(ctx, rng, "accept", &s.metrics.Accept)
		case r < s.config.BookingRatio+s.config.AcceptRatio+s.config.CancelRatio:
			s.doTransition(ctx, rng, "cancel", &s.metrics.Cancel)
		default:
			s.doRead(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	body, _ := json.Marshal(map[string]string{
		"doctor_id":  slot.DoctorID,
		"patient_id": s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		"date":       slot.Date,
		"start_time": slot.StartTime,
	})

	start := time.Now()
	status, data, err := s.do(ctx, http.MethodPost, "/appointments", body)
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated {
		var resp struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(data, &resp) == nil && resp.ID != "" {
			s.pool.AddAppointment(resp.ID)
		}
	}
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand, action string, om *OperationMetrics) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, _, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/%s", id, action), nil)
	om.Record(time.Since(start), status, err)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	doctorID := s.config.Doctors[rng.Intn(len(s.config.Doctors))]
	path := "/doctors/" + doctorID + "/availability"
	if rng.Intn(2) == 0 {
		path = "/doctors/" + doctorID + "/appointments/pending"
	}
	start := time.Now()
	status, _, err := s.do(ctx, http.MethodGet, path, nil)
	s.metrics.Read.Record(time.Since(start), status, err)
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (s *Simulator) getJSON(ctx context.Context, path string, dst any) error {
	status, data, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", path, status, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, dst)
}

func (s *Simulator) PrintReport(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 72))
	fmt.Fprintln(w, "SIMULATION REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "Duration: %s  Workers: %d  Doctors: %d\n\n", s.config.Duration, s.config.Workers, len(s.config.Doctors))

	printOperationReport(w, "Booking", &s.metrics.Booking)
	printOperationReport(w, "Accept", &s.metrics.Accept)
	printOperationReport(w, "Cancel", &s.metrics.Cancel)
	printOperationReport(w, "Read", &s.metrics.Read)
}

func printOperationReport(w io.Writer, name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Total: %d\n", total)
	fmt.Fprintf(w, "  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Fprintf(w, "  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Fprintf(w, "  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Fprintf(w, "  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

// hourlyStarts lists the one-hour booking targets inside an open range as
// returned by the availability endpoint.
func hourlyStarts(doctorID, date, start, end string) []openSlot {
	window, err := timeslot.NewInterval(start, end)
	if err != nil {
		return nil
	}
	var out []openSlot
	for _, piece := range window.Hourly() {
		out = append(out, openSlot{DoctorID: doctorID, Date: date, StartTime: piece.Start.String()})
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
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
