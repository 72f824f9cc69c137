package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/mockapi"
	"github.com/vladislavdragonenkov/minicrm/internal/storage/memory"
)

type fakeOrdersAPI struct {
	mu      sync.Mutex
	nextID  int64
	calls   map[string]int
	failOn  string
	failErr error
}

func newFakeOrdersAPI() *fakeOrdersAPI {
	return &fakeOrdersAPI{calls: make(map[string]int)}
}

func (f *fakeOrdersAPI) hit(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if f.failOn == method {
		return f.failErr
	}
	return nil
}

func (f *fakeOrdersAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeOrdersAPI) ListOrders(context.Context) ([]domain.Order, error) {
	return nil, f.hit("ListOrders")
}

func (f *fakeOrdersAPI) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	return domain.Order{ID: id}, f.hit("GetOrder")
}

func (f *fakeOrdersAPI) CreateOrder(_ context.Context, in domain.CreateOrder) (domain.Order, error) {
	if err := f.hit("CreateOrder"); err != nil {
		return domain.Order{}, err
	}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	order := domain.NewOrder(in)
	order.ID = id
	return order, nil
}

func (f *fakeOrdersAPI) UpdateOrder(_ context.Context, in domain.UpdateOrder) (domain.Order, error) {
	return domain.Order{ID: in.ID}, f.hit("UpdateOrder")
}

func (f *fakeOrdersAPI) DeleteOrder(context.Context, int64) error {
	return f.hit("DeleteOrder")
}

func testConfig(mode loadMode) config {
	return config{
		baseURL:     "http://localhost:3000",
		total:       10,
		concurrency: 3,
		timeout:     time.Second,
		mode:        mode,
		deleteRate:  100,
		nbDays:      2,
		tjm:         100,
		tauxTva:     20,
		customerTag: "lt",
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    loadMode
		wantErr bool
	}{
		{in: "create", want: modeCreate},
		{in: " crud ", want: modeCRUD},
		{in: "list", want: modeList},
		{in: "pay", wantErr: true},
	} {
		got, err := parseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseMode(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("parseMode(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-mode=crud", "-total=5", "-concurrency=2", "-delete-rate=50", "-url=http://api:3000"})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.mode != modeCRUD || cfg.total != 5 || !cfg.totalSet || cfg.concurrency != 2 || cfg.deleteRate != 50 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.baseURL != "http://api:3000" {
		t.Fatalf("unexpected url %q", cfg.baseURL)
	}

	defaults, err := parseConfig(nil)
	if err != nil {
		t.Fatalf("parseConfig defaults: %v", err)
	}
	if defaults.totalSet || defaults.mode != modeCreate || defaults.timeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", defaults)
	}

	invalid := [][]string{
		{"-mode=unknown"},
		{"-total=0"},
		{"-duration=-1s"},
		{"-duration=1s", "-total=0"},
		{"-concurrency=0"},
		{"-timeout=0s"},
		{"-delete-rate=101"},
		{"-customer-tag= "},
		{"-url="},
		{"-days=0"},
		{"-tva=150"},
		{"-timeout=soon"},
	}
	for _, args := range invalid {
		if _, err := parseConfig(args); err == nil {
			t.Fatalf("parseConfig(%v): expected error", args)
		}
	}
}

func TestDispatchJobs(t *testing.T) {
	jobs := make(chan int, 10)
	dispatchJobs(jobs, config{total: 4})
	var got []int
	for job := range jobs {
		got = append(got, job)
	}
	if len(got) != 4 || got[3] != 3 {
		t.Fatalf("unexpected jobs %v", got)
	}

	limited := make(chan int, 10)
	dispatchJobs(limited, config{duration: time.Second, total: 3, totalSet: true})
	count := 0
	for range limited {
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 jobs with max-total, got %d", count)
	}

	timed := make(chan int)
	done := make(chan int)
	go func() {
		n := 0
		for range timed {
			n++
			time.Sleep(5 * time.Millisecond)
		}
		done <- n
	}()
	dispatchJobs(timed, config{duration: 30 * time.Millisecond})
	if n := <-done; n == 0 {
		t.Fatal("expected at least one job in duration mode")
	}
}

func TestCollectorAndReport(t *testing.T) {
	col := newCollector()
	col.record(scenarioMetric, 10*time.Millisecond, codeOK)
	col.record(scenarioMetric, 30*time.Millisecond, string(domain.KindServerError))
	col.record("CreateOrder", 5*time.Millisecond, codeOK)

	result := col.buildReport(time.Now(), 2*time.Second)
	if result.TotalScenarios != 2 || result.SuccessScenarios != 1 || result.FailedScenarios != 1 {
		t.Fatalf("unexpected scenario counters: %+v", result)
	}
	if result.ErrorRate != 0.5 || result.RPS != 1 {
		t.Fatalf("unexpected rates: error_rate=%v rps=%v", result.ErrorRate, result.RPS)
	}
	if result.Methods[scenarioMetric].Codes[string(domain.KindServerError)] != 1 {
		t.Fatalf("expected server_error code, got %+v", result.Methods[scenarioMetric].Codes)
	}
	if result.ScenarioLatencyMs.Max != 30 || result.ScenarioLatencyMs.Min != 10 {
		t.Fatalf("unexpected latency: %+v", result.ScenarioLatencyMs)
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := percentile([]float64{1, 2, 3, 4}, 50); got != 2.5 {
		t.Fatalf("percentile p50 = %v", got)
	}
	if got := percentile(nil, 99); got != 0 {
		t.Fatalf("percentile empty = %v", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total = %v", got)
	}
	if shouldDelete(5, 0) || !shouldDelete(5, 100) || !shouldDelete(5, 10) || shouldDelete(50, 10) {
		t.Fatal("unexpected shouldDelete results")
	}
	if errorCode(nil) != codeOK {
		t.Fatal("nil error must map to ok")
	}
	if got := errorCode(domain.NewGatewayError(domain.KindNotFound, 404, "missing")); got != string(domain.KindNotFound) {
		t.Fatalf("errorCode = %q", got)
	}
	if got := runTarget(config{duration: time.Minute, total: 5, totalSet: true}); got != "duration:1m0s,max-total:5" {
		t.Fatalf("runTarget = %q", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := writeJSONReport("report.json", report{TotalScenarios: 3}); err != nil {
		t.Fatalf("writeJSONReport: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded report
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.TotalScenarios != 3 {
		t.Fatalf("unexpected report %s: %v", raw, err)
	}

	if err := writeJSONReport("../escape.json", report{}); err == nil {
		t.Fatal("expected error for path outside current directory")
	}
	if err := writeJSONReport(".", report{}); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestRunScenarioModes(t *testing.T) {
	col := newCollector()

	crud := newFakeOrdersAPI()
	if err := runScenario(context.Background(), crud, testConfig(modeCRUD), 1, "run", col); err != nil {
		t.Fatalf("crud scenario: %v", err)
	}
	for _, method := range []string{"CreateOrder", "GetOrder", "UpdateOrder", "DeleteOrder"} {
		if crud.count(method) != 1 {
			t.Fatalf("expected one %s call, got %d", method, crud.count(method))
		}
	}

	list := newFakeOrdersAPI()
	if err := runScenario(context.Background(), list, testConfig(modeList), 1, "run", col); err != nil {
		t.Fatalf("list scenario: %v", err)
	}
	if list.count("ListOrders") != 1 || list.count("CreateOrder") != 0 {
		t.Fatalf("unexpected list calls: %v", list.calls)
	}

	failing := newFakeOrdersAPI()
	failing.failOn = "UpdateOrder"
	failing.failErr = domain.NewGatewayError(domain.KindValidationFailed, 422, "bad")
	err := runScenario(context.Background(), failing, testConfig(modeCRUD), 1, "run", col)
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if failing.count("DeleteOrder") != 0 {
		t.Fatal("delete must not run after failed update")
	}
}

func TestRunCountsFailures(t *testing.T) {
	api := newFakeOrdersAPI()
	api.failOn = "CreateOrder"
	api.failErr = domain.NewGatewayError(domain.KindServerError, 500, "boom")

	result := run(context.Background(), testConfig(modeCreate), api)
	if result.TotalScenarios != 10 || result.FailedScenarios != 10 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Methods["CreateOrder"].Codes[string(domain.KindServerError)] != 10 {
		t.Fatalf("unexpected codes: %+v", result.Methods["CreateOrder"].Codes)
	}
}

func TestPrintReport(t *testing.T) {
	col := newCollector()
	col.record(scenarioMetric, time.Millisecond, codeOK)
	col.record("CreateOrder", time.Millisecond, codeOK)

	var out bytes.Buffer
	printReport(&out, col.buildReport(time.Now(), time.Second), testConfig(modeCreate))
	text := out.String()
	for _, want := range []string{"Load test summary", "mode=create run=count:10", "CreateOrder: calls=1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("report misses %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "scenario: calls") {
		t.Fatalf("scenario must not be listed as a method:\n%s", text)
	}
}

func TestConnectAndRunAgainstMockAPI(t *testing.T) {
	logger := log.New()
	logger.SetOutput(io.Discard)

	server, err := mockapi.New(mockapi.Config{JWTSecret: "loadtest", BcryptCost: bcrypt.MinCost}, mockapi.Deps{
		Orders:      memory.NewOrderRepository(),
		Users:       memory.NewUserRepository(),
		Idempotency: memory.NewIdempotencyRepository(),
		Logger:      log.NewEntry(logger),
	})
	if err != nil {
		t.Fatalf("mockapi.New: %v", err)
	}
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	cfg := testConfig(modeCRUD)
	cfg.baseURL = srv.URL
	cfg.deleteRate = 5

	api, err := connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	result := run(context.Background(), cfg, api)
	if result.FailedScenarios != 0 || result.TotalScenarios != int64(cfg.total) {
		t.Fatalf("unexpected result: %+v", result)
	}

	orders, err := api.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 5 {
		t.Fatalf("expected half of orders to survive, got %d", len(orders))
	}
}
