//go:build wireinject
// +build wireinject

package di

import (
	"SVUEngine/pkg/config"
	"SVUEngine/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideAuditLog,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideAnchorStore,
		ProvideAnchorPublisher,
		ProvideObservationStream,

		// Ingestion
		ProvideObservationBuffer,
		ProvideBufferSink,
		ProvideIngestPipeline,
		ProvideObservationCollector,
		ProvideKafkaObservationsHandler,

		// Pipeline
		ProvideRunner,
		ProvideRecomputeQueue,

		// API
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
