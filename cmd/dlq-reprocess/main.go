package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
)

const (
	defaultLimit       = 100
	defaultIdleTimeout = 2 * time.Second
	envKafkaBrokers    = "ORDERCORE_KAFKA_BROKERS"
)

type options struct {
	brokers       []string
	sourceTopic   string
	fallbackTopic string
	limit         int
	execute       bool
	fromNewest    bool
	idleTimeout   time.Duration
	orderIDs      map[string]struct{}
	minAttempts   int
	failedAfter   time.Time
	reportPath    string
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	var (
		opts        options
		brokersRaw  string
		orderIDsRaw string
		failedAfter string
	)

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers, comma-separated (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&opts.sourceTopic, "source-topic", kafka.DeadLetterTopic(kafka.TopicOrderEvents), "DLQ topic with dead letter events")
	fs.StringVar(&opts.fallbackTopic, "target-topic", kafka.TopicOrderEvents, "replay topic for events without original_topic")
	fs.IntVar(&opts.limit, "limit", defaultLimit, "max number of DLQ messages to scan")
	fs.BoolVar(&opts.execute, "execute", false, "republish selected orders; default is dry-run")
	fs.BoolVar(&opts.fromNewest, "from-newest", false, "scan the newest messages of each partition")
	fs.DurationVar(&opts.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this idle period")
	fs.StringVar(&orderIDsRaw, "order-ids", "", "replay only these order ids, comma-separated")
	fs.IntVar(&opts.minAttempts, "min-attempts", 0, "replay only events that failed at least this many times")
	fs.StringVar(&failedAfter, "failed-after", "", "replay only events dead-lettered after this RFC3339 time")
	fs.StringVar(&opts.reportPath, "report", "", "write the per-order report as JSON to this path")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv(envKafkaBrokers)
	}
	opts.brokers = splitList(brokersRaw)
	if len(opts.brokers) == 0 {
		return options{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	}

	opts.sourceTopic = strings.TrimSpace(opts.sourceTopic)
	opts.fallbackTopic = strings.TrimSpace(opts.fallbackTopic)
	switch {
	case opts.sourceTopic == "":
		return options{}, errors.New("source-topic is required")
	case opts.fallbackTopic == "":
		return options{}, errors.New("target-topic is required")
	case opts.sourceTopic == opts.fallbackTopic:
		return options{}, errors.New("source-topic and target-topic must differ")
	case opts.limit <= 0:
		return options{}, errors.New("limit must be > 0")
	case opts.idleTimeout <= 0:
		return options{}, errors.New("idle-timeout must be > 0")
	case opts.minAttempts < 0:
		return options{}, errors.New("min-attempts must be >= 0")
	}

	if ids := splitList(orderIDsRaw); len(ids) > 0 {
		opts.orderIDs = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			opts.orderIDs[id] = struct{}{}
		}
	}
	if failedAfter = strings.TrimSpace(failedAfter); failedAfter != "" {
		ts, err := time.Parse(time.RFC3339, failedAfter)
		if err != nil {
			return options{}, fmt.Errorf("invalid failed-after: %w", err)
		}
		opts.failedAfter = ts.UTC()
	}

	return opts, nil
}

func splitList(raw string) []string {
	var out []string
	for _, chunk := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(chunk); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// selects сообщает, проходит ли событие фильтры по заказу, попыткам и времени отказа.
func (o options) selects(dl deadLetter) bool {
	if o.orderIDs != nil {
		if _, ok := o.orderIDs[dl.orderID]; !ok {
			return false
		}
	}
	if dl.event.Attempts < o.minAttempts {
		return false
	}
	if !o.failedAfter.IsZero() && !dl.event.FailedAt.After(o.failedAfter) {
		return false
	}
	return true
}

// deadLetter разобранное сообщение DLQ.
type deadLetter struct {
	partition int32
	offset    int64
	event     kafka.DeadLetterEvent
	topic     string
	orderID   string
	eventType string
}

var errNotDeadLetter = errors.New("message is not a dead letter event")

func decodeDeadLetter(msg *sarama.ConsumerMessage, fallbackTopic string) (deadLetter, error) {
	dl := deadLetter{partition: msg.Partition, offset: msg.Offset}
	if err := json.Unmarshal(msg.Value, &dl.event); err != nil || strings.TrimSpace(dl.event.OriginalValue) == "" {
		return dl, errNotDeadLetter
	}

	var original kafka.OrderPlacedEvent
	if err := json.Unmarshal([]byte(dl.event.OriginalValue), &original); err != nil {
		return dl, fmt.Errorf("decode original event: %w", err)
	}

	dl.topic = strings.TrimSpace(dl.event.OriginalTopic)
	if dl.topic == "" {
		dl.topic = fallbackTopic
	}
	dl.orderID = dl.event.OriginalKey
	if dl.orderID == "" {
		dl.orderID = original.OrderID
	}
	if dl.orderID == "" {
		return dl, errors.New("dead letter event has no order id")
	}
	dl.eventType = string(original.EventType)
	return dl, nil
}

type outcome string

const (
	outcomeReplayed  outcome = "replayed"
	outcomeCandidate outcome = "candidate"
	outcomeFiltered  outcome = "filtered"
	outcomeDuplicate outcome = "duplicate"
	outcomeInvalid   outcome = "invalid"
)

type orderEntry struct {
	OrderID   string    `json:"order_id,omitempty"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
	Outcome   outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
}

type replayReport struct {
	Mode        string         `json:"mode"`
	SourceTopic string         `json:"source_topic"`
	Scanned     int            `json:"scanned"`
	Outcomes    map[string]int `json:"outcomes"`
	Orders      []orderEntry   `json:"orders"`
}

func newReplayReport(opts options) *replayReport {
	mode := "dry-run"
	if opts.execute {
		mode = "execute"
	}
	return &replayReport{
		Mode:        mode,
		SourceTopic: opts.sourceTopic,
		Outcomes:    make(map[string]int),
		Orders:      []orderEntry{},
	}
}

func (r *replayReport) add(entry orderEntry) {
	r.Scanned++
	r.Outcomes[string(entry.Outcome)]++
	r.Orders = append(r.Orders, entry)
}

func (r *replayReport) count(o outcome) int {
	return r.Outcomes[string(o)]
}

// session решает судьбу каждого сообщения DLQ. Заказ переигрывается не больше одного раза за прогон.
type session struct {
	opts     options
	producer replayProducer
	logger   *log.Entry
	seen     map[string]struct{}
	report   *replayReport
}

func newSession(opts options, producer replayProducer, logger *log.Entry) *session {
	return &session{
		opts:     opts,
		producer: producer,
		logger:   logger,
		seen:     make(map[string]struct{}),
		report:   newReplayReport(opts),
	}
}

func (s *session) handle(msg *sarama.ConsumerMessage) error {
	dl, err := decodeDeadLetter(msg, s.opts.fallbackTopic)
	entry := orderEntry{
		OrderID:   dl.orderID,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Attempts:  dl.event.Attempts,
		Error:     dl.event.Error,
		FailedAt:  dl.event.FailedAt,
	}
	if err != nil {
		entry.Outcome = outcomeInvalid
		entry.Reason = err.Error()
		s.report.add(entry)
		s.logger.WithError(err).WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("skip invalid dlq message")
		return nil
	}

	_, duplicate := s.seen[dl.orderID]
	switch {
	case !s.opts.selects(dl):
		entry.Outcome = outcomeFiltered
	case duplicate:
		entry.Outcome = outcomeDuplicate
	case !s.opts.execute:
		entry.Outcome = outcomeCandidate
		s.seen[dl.orderID] = struct{}{}
	default:
		if err := republish(s.producer, dl); err != nil {
			return fmt.Errorf("replay order %s: %w", dl.orderID, err)
		}
		entry.Outcome = outcomeReplayed
		s.seen[dl.orderID] = struct{}{}
	}

	s.report.add(entry)
	if entry.Outcome == outcomeCandidate || entry.Outcome == outcomeReplayed {
		s.logger.WithFields(log.Fields{
			"order_id":  dl.orderID,
			"topic":     dl.topic,
			"attempts":  dl.event.Attempts,
			"failed_at": dl.event.FailedAt,
			"outcome":   entry.Outcome,
		}).Info("dead-lettered order")
	}
	return nil
}

func republish(producer replayProducer, dl deadLetter) error {
	if producer == nil {
		return errors.New("producer is nil")
	}
	eventType := kafka.EventType(dl.eventType)
	if eventType == "" {
		eventType = kafka.EventTypeOrderPlaced
	}
	return producer.PublishRaw(dl.topic, dl.orderID, eventType, []byte(dl.event.OriginalValue))
}

type offsetReader interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	PublishRaw(topic, key string, eventType kafka.EventType, value []byte) error
	Close() error
}

type consumerSource struct {
	consumer sarama.Consumer
}

func (s consumerSource) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s consumerSource) Close() error {
	return s.consumer.Close()
}

type kafkaDeps struct {
	offsets  offsetReader
	source   partitionSource
	producer replayProducer
}

func (d kafkaDeps) close() {
	if d.producer != nil {
		_ = d.producer.Close()
	}
	if d.source != nil {
		_ = d.source.Close()
	}
	if d.offsets != nil {
		_ = d.offsets.Close()
	}
}

var openKafka = func(opts options) (kafkaDeps, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(opts.brokers, cfg)
	if err != nil {
		return kafkaDeps{}, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return kafkaDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := kafkaDeps{offsets: client, source: consumerSource{consumer: consumer}}
	if !opts.execute {
		return deps, nil
	}

	producer, err := kafka.NewProducer(opts.brokers)
	if err != nil {
		deps.close()
		return kafkaDeps{}, err
	}
	deps.producer = producer
	return deps, nil
}

// scan читает не больше opts.limit сообщений по партициям в порядке возрастания номера.
func scan(ctx context.Context, opts options, offsets offsetReader, source partitionSource, handle func(*sarama.ConsumerMessage) error) error {
	partitions, err := offsets.Partitions(opts.sourceTopic)
	if err != nil {
		return fmt.Errorf("list partitions of %s: %w", opts.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	budget := opts.limit
	for _, partition := range partitions {
		if budget <= 0 {
			break
		}
		read, err := scanPartition(ctx, opts, offsets, source, partition, budget, handle)
		if err != nil {
			return err
		}
		budget -= read
	}
	return nil
}

// scanPartition читает окно [oldest, newest) партиции, зафиксированное на старте.
func scanPartition(
	ctx context.Context,
	opts options,
	offsets offsetReader,
	source partitionSource,
	partition int32,
	budget int,
	handle func(*sarama.ConsumerMessage) error,
) (int, error) {
	oldest, err := offsets.GetOffset(opts.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	end, err := offsets.GetOffset(opts.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}
	if end <= oldest {
		return 0, nil
	}

	start := oldest
	if opts.fromNewest {
		start = max(end-int64(budget), oldest)
	}

	pc, err := source.ConsumePartition(opts.sourceTopic, partition, start)
	if err != nil {
		return 0, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(opts.idleTimeout)
	defer idle.Stop()

	errs := pc.Errors()
	read := 0
	for read < budget {
		select {
		case <-ctx.Done():
			return read, ctx.Err()
		case <-idle.C:
			return read, nil
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if cerr != nil {
				return read, fmt.Errorf("partition %d: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return read, nil
			}
			idle.Reset(opts.idleTimeout)

			read++
			if err := handle(msg); err != nil {
				return read, err
			}
			if msg.Offset+1 >= end {
				return read, nil
			}
		}
	}
	return read, nil
}

func run(ctx context.Context, opts options, logger *log.Entry) (*replayReport, error) {
	logger.WithFields(log.Fields{
		"source_topic": opts.sourceTopic,
		"limit":        opts.limit,
		"execute":      opts.execute,
		"order_ids":    len(opts.orderIDs),
		"min_attempts": opts.minAttempts,
	}).Info("scanning dead-lettered orders")

	deps, err := openKafka(opts)
	if err != nil {
		return nil, err
	}
	defer deps.close()

	if opts.execute && deps.producer == nil {
		return nil, errors.New("producer is required in execute mode")
	}

	s := newSession(opts, deps.producer, logger)
	if err := scan(ctx, opts, deps.offsets, deps.source, s.handle); err != nil {
		return s.report, err
	}

	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, s.report); err != nil {
			return s.report, err
		}
	}

	logger.WithFields(log.Fields{
		"mode":       s.report.Mode,
		"scanned":    s.report.Scanned,
		"replayed":   s.report.count(outcomeReplayed),
		"candidates": s.report.count(outcomeCandidate),
		"filtered":   s.report.count(outcomeFiltered),
		"duplicates": s.report.count(outcomeDuplicate),
		"invalid":    s.report.count(outcomeInvalid),
	}).Info("dlq scan finished")
	return s.report, nil
}

func writeReport(path string, report *replayReport) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "dlq-reprocess")

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}
	if _, err := run(context.Background(), opts, logger); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
