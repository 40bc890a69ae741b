package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"SVUEngine/internal/domain/repository"
	"SVUEngine/internal/graph"
	"SVUEngine/internal/handler/api"
	mid "SVUEngine/internal/middleware"
	"SVUEngine/internal/pipeline"
	internalrepo "SVUEngine/internal/repository"
	icache "SVUEngine/internal/service/cache"
	"SVUEngine/internal/service/stream"
	"SVUEngine/internal/usecase"
	pkgch "SVUEngine/pkg/clickhouse"
	"SVUEngine/pkg/config"
	xhttp "SVUEngine/pkg/http"
	pkgkafka "SVUEngine/pkg/kafka"
	applogger "SVUEngine/pkg/logger"
	"SVUEngine/pkg/metrics"
	pkgqueue "SVUEngine/pkg/queue"
	"SVUEngine/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideAnchorStore creates the anchor history store, fronted by a Redis
// cache for latest-anchor lookups when Redis is enabled.
func ProvideAnchorStore(chClient *pkgch.Client, cfg *config.Config) (repository.AnchorStore, error) {
	store := internalrepo.NewClickHouseAnchorStore(chClient.DB(), cfg.ClickHouse.Database+".anchor_history")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("anchor store init: %w", err)
	}

	var c icache.BytesCache
	if cfg.Redis.Enabled {
		c = icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	} else {
		c = icache.NewTTLCache()
	}
	return internalrepo.NewCachedAnchorStore(store, c, cfg.Redis.CacheTTL), nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideAuditLog creates the bounded in-memory audit log.
func ProvideAuditLog() repository.AuditLog {
	return internalrepo.NewMemoryAuditLog(0)
}

// ProvideAnchorPublisher creates the Kafka anchor publisher.
func ProvideAnchorPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AnchorPublisher {
	return internalrepo.NewKafkaAnchorPublisher(producer, cfg.Kafka.AnchorsTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideObservationStream creates the observation stream: WebSocket when a
// feed URL is configured, otherwise a REST poller over the sources map.
func ProvideObservationStream(cfg *config.Config) repository.ObservationStream {
	if cfg.Stream.WebSocketURL != "" {
		return stream.New(
			cfg.Stream.APIKey,
			cfg.Stream.WebSocketURL,
			cfg.Stream.Channels,
			cfg.Stream.ReconnectDelay,
			cfg.Stream.PingInterval,
		)
	}
	return stream.NewRESTPoller(cfg.Sources, cfg.Runner.Interval)
}

// ProvideObservationBuffer creates the staging buffer.
func ProvideObservationBuffer() *usecase.ObservationBuffer {
	return usecase.NewObservationBuffer(0)
}

// ProvideBufferSink creates the terminal ingest sink.
func ProvideBufferSink(buffer *usecase.ObservationBuffer, m repository.Metrics) *usecase.BufferSink {
	return usecase.NewBufferSink(buffer, m)
}

// ProvideIngestPipeline builds the middleware chain between sources and the
// staging buffer.
func ProvideIngestPipeline(sink *usecase.BufferSink, m repository.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(sink, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideObservationCollector creates the stream collector use case.
func ProvideObservationCollector(
	s repository.ObservationStream,
	sink *usecase.BufferSink,
	m repository.Metrics,
	pipe *mid.IngestPipeline,
) *usecase.ObservationCollector {
	return usecase.NewObservationCollector(s, sink, m, pipe)
}

// ProvideKafkaObservationsHandler registers the handler for the raw
// observations topic.
func ProvideKafkaObservationsHandler(pipe *mid.IngestPipeline, m repository.Metrics, cfg *config.Config) *usecase.KafkaObservationsHandler {
	return usecase.NewKafkaObservationsHandler(cfg.Kafka.ObservationsTopic, pipe, m)
}

// ProvideRunner assembles the reconciliation pipeline.
func ProvideRunner(
	cfg *config.Config,
	buffer *usecase.ObservationBuffer,
	store repository.AnchorStore,
	pub repository.AnchorPublisher,
	audit repository.AuditLog,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Runner {
	rules := pipeline.RulesFromConfig(cfg)
	freq := repository.NormalizeFrequency(cfg.Validation.Frequency)

	return usecase.NewRunner(usecase.RunnerDeps{
		Frequency:  freq,
		BaseItemID: cfg.Price.BaseItemID,
		Workers:    cfg.Runner.Workers,
		BatchSize:  cfg.Runner.BatchSize,

		Validator:  pipeline.NewValidator(rules, audit, m),
		Aligner:    pipeline.NewAligner(freq, rules, cfg.Price.TrendShortWindow, cfg.Price.TrendLongWindow),
		Anomaly:    pipeline.NewAnomalyDetector(cfg.Price.VolatilityWindow, cfg.Price.AnomalyThreshold, cfg.Anomaly.MinPoints, audit, m),
		Normalizer: pipeline.NewNormalizer(cfg.Price.NormalizationWindow),
		Reconciler: pipeline.NewReconciler(
			cfg.Validation.PrioritySources,
			cfg.ExchangeRate.ConsistencyThreshold,
			cfg.Validation.MinConfidence,
			audit, m,
		),
		Builder: graph.NewBuilder(cfg.Price.BaseItemID, cfg.ExchangeRate.ConsistencyThreshold, audit),
		Solver:  graph.NewWLSSolver(cfg.Solver.ConditionBound, cfg.Solver.ResidualVarianceBound),

		Buffer:    buffer,
		Store:     store,
		Publisher: pub,
		Audit:     audit,
		Metrics:   m,
		Logger:    l,
	})
}

// ProvideRecomputeQueue creates the Redis-backed recompute queue with the
// recompute job registered. Returns nil when Redis is disabled; recompute
// then runs inline in the HTTP handler.
func ProvideRecomputeQueue(cfg *config.Config, runner *usecase.Runner, l *applogger.Logger) *pkgqueue.RedisQueue {
	if !cfg.Redis.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	q := pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    1,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, client, pkgqueue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewRecomputeJob(runner, l))
	return q
}

// ProvideHTTPHandler creates the Echo API handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	store repository.AnchorStore,
	audit repository.AuditLog,
	runner *usecase.Runner,
	q *pkgqueue.RedisQueue,
) xhttp.Handler {
	var qs pkgqueue.QueueService
	if q != nil {
		qs = q
	}
	return api.NewAnchorsEchoHandler(l, store, audit, runner, qs)
}

// kafkaLogPublisher adapts the Kafka producer to the logger's aggregated
// error-log sink.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.ObservationCollector,
	runner *usecase.Runner,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaObservationsHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	h xhttp.Handler,
	q *pkgqueue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{}))
	}
	app := server.New(cfg, collector, runner, consumer, kh, chClient)
	app.SetHTTPHandler(h)
	app.SetLogPublisher(kafkaLogPublisher{producer: producer})
	if q != nil {
		app.SetQueue(q)
	}
	return app
}
