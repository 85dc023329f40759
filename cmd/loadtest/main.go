package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/ordercore/internal/service/grpc"
)

type loadMode string

const (
	modePlace    loadMode = "place"
	modePlaceGet loadMode = "place-get"
)

const (
	methodScenario   = "scenario"
	methodPlaceOrder = "PlaceOrder"
	methodGetOrder   = "GetOrder"
)

// orderClient подмножество grpcsvc.Client, которым пользуется нагрузочный тест.
type orderClient interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest, opts ...grpc.CallOption) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string, opts ...grpc.CallOption) (domain.Order, error)
}

type config struct {
	addr         string
	total        int
	totalSet     bool
	duration     time.Duration
	concurrency  int
	connections  int
	timeout      time.Duration
	mode         loadMode
	customers    []string
	products     []domain.RequestedProduct
	initialStock int64
	outputPath   string
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

// stockReport сравнивает проданные единицы с исходным остатком.
// Overbooked > 0 означает, что параллельные заказы списали больше, чем было на складе.
type stockReport struct {
	InitialStock int64            `json:"initial_stock"`
	UnitsPlaced  map[string]int64 `json:"units_placed"`
	Overbooked   map[string]int64 `json:"overbooked,omitempty"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	RejectedScenarios int64                   `json:"rejected_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Stock             stockReport             `json:"stock"`
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
	units   map[string]int64
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
		units:   make(map[string]int64),
	}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

// recordUnits учитывает единицы товара из успешно оформленного заказа.
func (c *collector) recordUnits(lines []domain.PricedLineItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range lines {
		c.units[line.ProductID] += int64(line.Quantity)
	}
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}
	return stats.report(), true
}

func (s *methodStats) report() methodReport {
	codesCopy := make(map[string]int64, len(s.codes))
	for code, count := range s.codes {
		codesCopy[code] = count
	}
	return methodReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration, initialStock int64) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
		Stock: stockReport{
			InitialStock: initialStock,
			UnitsPlaced:  make(map[string]int64, len(c.units)),
		},
	}

	if scenarioStats := c.methods[methodScenario]; scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
		for code, count := range scenarioStats.codes {
			if isRejectionCode(code) {
				result.RejectedScenarios += count
			}
		}
		result.FailedScenarios = scenarioStats.failed - result.RejectedScenarios
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		result.Methods[name] = stats.report()
	}

	for productID, units := range c.units {
		result.Stock.UnitsPlaced[productID] = units
		if initialStock > 0 && units > initialStock {
			if result.Stock.Overbooked == nil {
				result.Stock.Overbooked = make(map[string]int64)
			}
			result.Stock.Overbooked[productID] = units - initialStock
		}
	}

	return result
}

// isRejectionCode отделяет бизнес-отказы (нет клиента, товара или остатка)
// от сбоев: под нагрузкой на один товар отказы по остатку ожидаемы.
func isRejectionCode(code string) bool {
	return code == codes.NotFound.String() || code == codes.FailedPrecondition.String()
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string
	var customersValue string
	var productsValue string

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 1m, 10m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-get")
	flag.StringVar(&customersValue, "customers", "C1", "comma-separated customer ids, used round-robin")
	flag.StringVar(&productsValue, "products", "P1:1", "comma-separated product lines in id:quantity form")
	flag.Int64Var(&cfg.initialStock, "initial-stock", 0, "stock of each product before the run; enables overbooking report when > 0")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	cfg.customers = splitList(customersValue)
	products, err := parseProducts(productsValue)
	if err != nil {
		return cfg, err
	}
	cfg.products = products

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if len(cfg.customers) == 0 {
		return cfg, errors.New("customers are required")
	}
	if cfg.initialStock < 0 {
		return cfg, errors.New("initial-stock must be >= 0")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePlace:
		return modePlace, nil
	case modePlaceGet:
		return modePlaceGet, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// parseProducts разбирает строку вида "P1:2,P3:1".
func parseProducts(value string) ([]domain.RequestedProduct, error) {
	items := splitList(value)
	if len(items) == 0 {
		return nil, errors.New("products are required")
	}

	products := make([]domain.RequestedProduct, 0, len(items))
	for _, item := range items {
		id, qtyValue, ok := strings.Cut(item, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid product line %q: expected id:quantity", item)
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(qtyValue), 10, 32)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("invalid quantity in product line %q", item)
		}
		products = append(products, domain.RequestedProduct{ID: id, Quantity: int32(qty)})
	}
	return products, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]orderClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result := execute(clients, cfg)

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 || len(result.Stock.Overbooked) > 0 {
		os.Exit(1)
	}
}

// execute прогоняет сценарии пулом воркеров и собирает итоговый отчёт.
func execute(clients []orderClient, cfg config) report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		client := clients[workerID%len(clients)]
		go func(cli orderClient) {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(cli, cfg, id, col); runErr != nil && !isRejectionCode(grpcCode(runErr).String()) {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(client)
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt), cfg.initialStock)
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

func runScenario(client orderClient, cfg config, index int, col *collector) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record(methodScenario, time.Since(scenarioStart), scenarioCode)
	}()

	req := domain.OrderRequest{
		CustomerID: cfg.customers[index%len(cfg.customers)],
		Products:   cfg.products,
	}

	order, err := callPlaceOrder(client, cfg.timeout, req, col)
	if err != nil {
		scenarioCode = grpcCode(err)
		return err
	}
	if order.ID == "" {
		scenarioCode = codes.Internal
		return errors.New("place response returned empty order id")
	}
	col.recordUnits(order.Products)

	if cfg.mode == modePlace {
		return nil
	}

	stored, err := callGetOrder(client, cfg.timeout, order.ID, col)
	if err != nil {
		scenarioCode = grpcCode(err)
		return err
	}
	if !stored.Total().Equal(order.Total()) {
		scenarioCode = codes.Internal
		return fmt.Errorf("order %s total mismatch: placed %s, stored %s", order.ID, order.Total(), stored.Total())
	}
	return nil
}

func callPlaceOrder(client orderClient, timeout time.Duration, req domain.OrderRequest, col *collector) (domain.Order, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	order, err := client.PlaceOrder(ctx, req)
	col.record(methodPlaceOrder, time.Since(start), grpcCode(err))
	return order, err
}

func callGetOrder(client orderClient, timeout time.Duration, orderID string, col *collector) (domain.Order, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	order, err := client.GetOrder(ctx, orderID)
	col.record(methodGetOrder, time.Since(start), grpcCode(err))
	return order, err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
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

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d rejected=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.RejectedScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == methodScenario {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}

	productIDs := make([]string, 0, len(result.Stock.UnitsPlaced))
	for id := range result.Stock.UnitsPlaced {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)
	for _, id := range productIDs {
		line := fmt.Sprintf("product %s: units_placed=%d", id, result.Stock.UnitsPlaced[id])
		if result.Stock.InitialStock > 0 {
			line += fmt.Sprintf(" initial_stock=%d overbooked=%d", result.Stock.InitialStock, result.Stock.Overbooked[id])
		}
		fmt.Println(line)
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
