package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/gateway"
	"github.com/vladislavdragonenkov/minicrm/internal/interceptor"
)

const (
	codeOK               = "ok"
	defaultTjm           = 450.0
	defaultTauxTva       = 20.0
	scenarioMetric       = "scenario"
	loadtestPasswordSize = 16
)

type loadMode string

const (
	modeCreate loadMode = "create"
	modeCRUD   loadMode = "crud"
	modeList   loadMode = "list"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	deleteRate  int
	nbDays      int
	tjm         float64
	tauxTva     float64
	customerTag string
	outputPath  string
}

// ordersAPI — подмножество gateway.Client, которое нагружает тест.
type ordersAPI interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	CreateOrder(ctx context.Context, in domain.CreateOrder) (domain.Order, error)
	UpdateOrder(ctx context.Context, in domain.UpdateOrder) (domain.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codeOK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenario := c.methods[scenarioMetric]; scenario != nil {
		result.TotalScenarios = scenario.calls
		result.SuccessScenarios = scenario.success
		result.FailedScenarios = scenario.failed
		result.ErrorRate = ratio(scenario.failed, scenario.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenario.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codes := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codes[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codes,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}
	return result
}

func parseConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var cfg config
	var modeValue string
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:3000", "mini-crm API base url")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 1m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | crud | list")
	fs.IntVar(&cfg.deleteRate, "delete-rate", 100, "delete probability in percent for crud mode (0..100)")
	fs.IntVar(&cfg.nbDays, "days", 5, "order nbDays")
	fs.Float64Var(&cfg.tjm, "tjm", defaultTjm, "order daily rate")
	fs.Float64Var(&cfg.tauxTva, "tva", defaultTauxTva, "order VAT percent")
	fs.StringVar(&cfg.customerTag, "customer-tag", "load", "customer name prefix")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case strings.TrimSpace(cfg.baseURL) == "":
		return cfg, errors.New("url is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.deleteRate < 0 || cfg.deleteRate > 100:
		return cfg, errors.New("delete-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.customerTag) == "":
		return cfg, errors.New("customer-tag is required")
	}

	sample := domain.CreateOrder{Customer: cfg.customerTag, NbDays: cfg.nbDays, Tjm: cfg.tjm, TauxTva: cfg.tauxTva}
	if err := sample.Validate(); err != nil {
		return cfg, fmt.Errorf("order template: %w", err)
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCRUD:
		return modeCRUD, nil
	case modeList:
		return modeList, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(log.WarnLevel)

	ctx := context.Background()
	api, err := connect(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to prepare load user: %v\n", err)
		os.Exit(1)
	}

	result := run(ctx, cfg, api)
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// connect регистрирует отдельного пользователя на прогон и возвращает клиента с его токеном.
func connect(ctx context.Context, cfg config) (*gateway.Client, error) {
	var token atomic.Value
	token.Store("")

	httpClient := &http.Client{Timeout: cfg.timeout}
	doer := interceptor.Chain(httpClient,
		interceptor.RequestID(),
		interceptor.Bearer(interceptor.TokenFunc(func() string { return token.Load().(string) })),
	)
	client, err := gateway.New(cfg.baseURL, doer, log.WithField("component", "loadtest"))
	if err != nil {
		return nil, err
	}

	signUpCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	resp, err := client.SignUp(signUpCtx, domain.Credentials{
		Email:    fmt.Sprintf("%s-%s@loadtest.local", cfg.customerTag, uuid.NewString()[:8]),
		Password: uuid.NewString()[:loadtestPasswordSize],
	})
	if err != nil {
		return nil, err
	}
	token.Store(resp.AccessToken)
	return client, nil
}

// run раздаёт сценарии воркерам errgroup и собирает отчёт.
func run(ctx context.Context, cfg config, api ordersAPI) report {
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64

	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.concurrency; i++ {
		group.Go(func() error {
			for index := range jobs {
				if err := runScenario(gctx, api, cfg, index, runID, col); err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
			return nil
		})
	}

	dispatchJobs(jobs, cfg)
	_ = group.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}
	return result
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(ctx context.Context, api ordersAPI, cfg config, index int, runID string, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		col.record(scenarioMetric, time.Since(scenarioStart), errorCode(err))
	}()

	if cfg.mode == modeList {
		return timed(ctx, cfg.timeout, "ListOrders", col, func(ctx context.Context) error {
			_, err := api.ListOrders(ctx)
			return err
		})
	}

	in := domain.CreateOrder{
		Customer: fmt.Sprintf("%s-%s-%d", cfg.customerTag, runID, index),
		NbDays:   cfg.nbDays,
		Tjm:      cfg.tjm,
		TauxTva:  cfg.tauxTva,
	}
	var created domain.Order
	err = timed(ctx, cfg.timeout, "CreateOrder", col, func(ctx context.Context) error {
		var callErr error
		created, callErr = api.CreateOrder(ctx, in)
		return callErr
	})
	if err != nil {
		return err
	}
	if created.ID <= 0 {
		return errors.New("create response returned empty order id")
	}
	if cfg.mode == modeCreate {
		return nil
	}

	err = timed(ctx, cfg.timeout, "GetOrder", col, func(ctx context.Context) error {
		_, callErr := api.GetOrder(ctx, created.ID)
		return callErr
	})
	if err != nil {
		return err
	}

	update := domain.UpdateOrder{
		ID:       created.ID,
		Customer: created.Customer,
		NbDays:   created.NbDays + 1,
		Tjm:      created.Tjm,
		TauxTva:  created.TauxTva,
	}
	err = timed(ctx, cfg.timeout, "UpdateOrder", col, func(ctx context.Context) error {
		_, callErr := api.UpdateOrder(ctx, update)
		return callErr
	})
	if err != nil {
		return err
	}

	if !shouldDelete(index, cfg.deleteRate) {
		return nil
	}
	return timed(ctx, cfg.timeout, "DeleteOrder", col, func(ctx context.Context) error {
		return api.DeleteOrder(ctx, created.ID)
	})
}

func timed(ctx context.Context, timeout time.Duration, method string, col *collector, fn func(context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(ctx)
	col.record(method, time.Since(start), errorCode(err))
	return err
}

// errorCode сворачивает ошибку шлюза в метку отчёта.
func errorCode(err error) string {
	if err == nil {
		return codeOK
	}
	return string(domain.KindOf(err))
}

func shouldDelete(index, deleteRate int) bool {
	if deleteRate <= 0 {
		return false
	}
	if deleteRate >= 100 {
		return true
	}
	return index%100 < deleteRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(out, "Load test summary")
	_, _ = fmt.Fprintf(out, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	_, _ = fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(out, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == scenarioMetric {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(out,
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
