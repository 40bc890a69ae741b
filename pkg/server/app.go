package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SVUEngine/internal/usecase"
	pkgch "SVUEngine/pkg/clickhouse"
	"SVUEngine/pkg/config"
	xhttp "SVUEngine/pkg/http"
	pkgkafka "SVUEngine/pkg/kafka"
	applogger "SVUEngine/pkg/logger"
	pkgqueue "SVUEngine/pkg/queue"
)

// App encapsulates the entire application lifecycle: observation ingestion,
// the periodic reconciliation runner, the recompute queue, and the HTTP API.
type App struct {
	cfg         *config.Config
	collector   *usecase.ObservationCollector
	runner      *usecase.Runner
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	queue       *pkgqueue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	logPub      applogger.Publisher
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *usecase.ObservationCollector,
	runner *usecase.Runner,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		collector: collector,
		runner:    runner,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetQueue allows DI to inject the recompute queue consumer.
func (a *App) SetQueue(q *pkgqueue.RedisQueue) { a.queue = q }

// SetLogPublisher allows DI to inject the sink for aggregated error logs.
func (a *App) SetLogPublisher(p applogger.Publisher) { a.logPub = p }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := applogger.New(&applogger.Config{
		Level:  a.cfg.Log.Level,
		Format: a.cfg.Log.Format,
		Output: a.cfg.Log.Output,
	})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}

	// Aggregate repeated error logs onto a Kafka topic when configured.
	if a.logPub != nil && a.cfg.Kafka.ErrorLogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.ErrorLogsTopic,
			Publisher:      a.logPub,
		})
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start stream collector
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.String("url", a.cfg.Stream.WebSocketURL))
	}

	// Start Kafka consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start recompute queue consumer if configured
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
		}
	}

	// Periodic reconciliation over buffered observations
	go a.runLoop(ctx, l)

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

// runLoop triggers a pipeline pass every runner interval. A failed pass is
// logged and retried on the next tick; buffered observations are not lost.
func (a *App) runLoop(ctx context.Context, l *applogger.Logger) {
	interval := a.cfg.Runner.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := a.runner.RunOnce(ctx)
			if err != nil {
				l.Error("pipeline run error", applogger.Error(err))
				continue
			}
			if report.Buckets > 0 {
				l.Info("pipeline run",
					applogger.Int("observations", report.Observations),
					applogger.Int("buckets", report.Buckets),
					applogger.Int("solved", report.SolvedBuckets),
					applogger.Int("anchors", report.AnchorsWritten),
					applogger.Int("anomalies", report.AnomalyFlags))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	// Stop ingestion first so the final pipeline state is stable.
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.RemoveCollector()
	l.Info("shutdown complete")
	return nil
}
