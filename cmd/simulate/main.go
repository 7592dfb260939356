package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/booking"
	"github.com/hackgods/clinic-booking-engine/internal/logging"
)

type SimConfig struct {
	APIBaseURL string
	Workers    int
	Rounds     int
	Date       string
	StartTime  string
	ServiceID  string
	DoctorID   string
	Timeout    time.Duration
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// Report is the outcome of one contention run against a single slot.
type Report struct {
	Create OperationMetrics
	// Statuses counts successful creates by the status the engine reported.
	Statuses map[booking.Status]int
	// RowsOnSlot is the number of ledger rows found on the contended slot afterwards.
	RowsOnSlot int
	statusMu   sync.Mutex
}

func (r *Report) addStatus(s booking.Status) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	if r.Statuses == nil {
		r.Statuses = make(map[booking.Status]int)
	}
	r.Statuses[s]++
}

// DoubleBookings is how many rows beyond the first landed on the slot.
func (r *Report) DoubleBookings() int {
	if r.RowsOnSlot <= 1 {
		return 0
	}
	return r.RowsOnSlot - 1
}

type Simulator struct {
	config SimConfig
	client *http.Client
	faker  *gofakeit.Faker
	fakeMu sync.Mutex
	logger zerolog.Logger
}

func main() {
	logger := logging.New(getEnv("LOG_LEVEL", "info"), getEnv("APP_ENV", "dev")).With().Str("component", "simulate").Logger()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().Str("base_url", cfg.APIBaseURL).
		Int("workers", cfg.Workers).
		Int("rounds", cfg.Rounds).
		Str("date", cfg.Date).
		Str("start_time", cfg.StartTime).
		Str("service_id", cfg.ServiceID).
		Msg("simulator starting")

	sim := NewSimulator(cfg, &http.Client{Timeout: cfg.Timeout}, logger)

	report, err := sim.Run(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}

	PrintReport(cfg, report)
}

func NewSimulator(cfg SimConfig, client *http.Client, logger zerolog.Logger) *Simulator {
	return &Simulator{
		config: cfg,
		client: client,
		faker:  gofakeit.New(uint64(time.Now().UnixNano())),
		logger: logger,
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Workers:    getInt("SIM_WORKERS", 10),
		Rounds:     getInt("SIM_ROUNDS", 1),
		Date:       getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")),
		StartTime:  getEnv("SIM_START_TIME", "10:00"),
		ServiceID:  getEnv("SIM_SERVICE_ID", "general"),
		DoctorID:   os.Getenv("SIM_DOCTOR_ID"),
		Timeout:    getDuration("SIM_TIMEOUT", 15*time.Second),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Rounds <= 0 {
		return fmt.Errorf("SIM_ROUNDS must be > 0")
	}
	if cfg.ServiceID == "" {
		return fmt.Errorf("SIM_SERVICE_ID is required")
	}
	if _, err := time.Parse("2006-01-02", cfg.Date); err != nil {
		return fmt.Errorf("SIM_DATE: %w", err)
	}
	return nil
}

// Run fires Workers concurrent creates at the same slot, Rounds times each,
// then counts the ledger rows that ended up on that slot.
func (s *Simulator) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for r := 0; r < s.config.Rounds; r++ {
				if ctx.Err() != nil {
					return
				}
				s.doCreate(ctx, report)
			}
		}()
	}

	close(start)
	wg.Wait()
	s.logger.Info().Int64("requests", atomic.LoadInt64(&report.Create.Total)).Msg("create phase complete")

	rows, err := s.countRowsOnSlot(ctx)
	if err != nil {
		return report, err
	}
	report.RowsOnSlot = rows
	return report, nil
}

func (s *Simulator) patient() (name, phone string) {
	s.fakeMu.Lock()
	defer s.fakeMu.Unlock()
	return s.faker.Name(), s.faker.Phone()
}

func (s *Simulator) doCreate(ctx context.Context, report *Report) {
	name, phone := s.patient()
	req := booking.Request{
		PatientName:  name,
		PatientPhone: phone,
		ServiceID:    s.config.ServiceID,
		Date:         s.config.Date,
		StartTime:    s.config.StartTime,
	}
	if s.config.DoctorID != "" {
		doctorID := s.config.DoctorID
		req.DoctorID = &doctorID
	}
	body, _ := json.Marshal(req)

	start := time.Now()
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/bookings", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", "simulator")

	resp, err := s.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		s.logger.Debug().Err(err).Msg("create request failed")
		report.Create.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var res booking.Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err == nil {
			report.addStatus(res.Status)
		}
		report.Create.Record(latency, true, false)
	case http.StatusConflict:
		report.Create.Record(latency, false, true)
	default:
		s.logger.Debug().Int("status", resp.StatusCode).Msg("unexpected create status")
		report.Create.Record(latency, false, false)
	}
}

func (s *Simulator) countRowsOnSlot(ctx context.Context) (int, error) {
	q := url.Values{"date": {s.config.Date}}
	if s.config.DoctorID != "" {
		q.Set("doctor_id", s.config.DoctorID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/bookings?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("list bookings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("list bookings: unexpected status %d", resp.StatusCode)
	}

	var list struct {
		Bookings []booking.Booking `json:"bookings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return 0, fmt.Errorf("decode bookings: %w", err)
	}

	rows := 0
	for _, b := range list.Bookings {
		if b.StartTime.String() == s.config.StartTime && b.ServiceID == s.config.ServiceID {
			rows++
		}
	}
	return rows, nil
}

func PrintReport(cfg SimConfig, r *Report) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("CONTENTION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Slot: %s %s service=%s doctor=%q\n", cfg.Date, cfg.StartTime, cfg.ServiceID, cfg.DoctorID)
	fmt.Printf("Workers: %d  Rounds: %d\n", cfg.Workers, cfg.Rounds)
	fmt.Println()

	printOperationReport("Create booking", &r.Create)
	for status, n := range r.Statuses {
		fmt.Printf("  %s: %d\n", status, n)
	}
	fmt.Println()
	fmt.Printf("Rows on slot: %d\n", r.RowsOnSlot)
	fmt.Printf("Double bookings: %d\n", r.DoubleBookings())
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
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
