package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"SVUEngine/internal/di"
	"SVUEngine/pkg/config"
)

func main() {
	if err := run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Printf("env=%s frequency=%s base_item=%d",
		cfg.Environment, cfg.Validation.Frequency, cfg.Price.BaseItemID)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	log.Printf("clickhouse: schema ready db=%s", cfg.ClickHouse.Database)
	log.Printf("kafka: brokers=%v topics=%s,%s",
		cfg.Kafka.Brokers, cfg.Kafka.ObservationsTopic, cfg.Kafka.AnchorsTopic)

	// Blocks until a shutdown signal.
	return app.Run()
}
