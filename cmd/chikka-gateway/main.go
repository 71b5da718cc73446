// Chikka Gateway - SMS aggregator to message bus bridge
//
// This is the main entry point for the Chikka gateway. The gateway
// admits device-originated SMS arriving on the aggregator webhook,
// publishes them to the message bus, and delivers bus-originated
// commands back to devices through the aggregator's send API, pairing
// each command with its asynchronous outcome.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/chikka"
	"github.com/edgracilla/chikka-gateway/internal/correlator"
	"github.com/edgracilla/chikka-gateway/internal/gateway"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/config"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/database"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/influxdb"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/logging"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
	"github.com/edgracilla/chikka-gateway/internal/registry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Chikka gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the registry snapshot database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Rebuild the in-memory device registry from the snapshot
	repo := registry.NewSQLiteRepository(db.DB)
	reg := registry.New()
	reg.SetLogger(log)

	snapshot, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading registry snapshot: %w", err)
	}
	reg.ReplaceAll(snapshot)
	log.Info("device registry initialised", "devices", reg.Count())

	// Connect to the MQTT broker
	bus, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bus.SetLogger(log)
	bus.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	bus.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Shared correlator pairs commands and lookups with their outcomes
	corr := correlator.New()
	corr.SetLogger(log)
	defer corr.Close()
	if influxClient != nil {
		corr.SetOnSettle(func(outcome string, elapsed time.Duration) {
			influxClient.WriteCorrelation("request", outcome, elapsed)
		})
	}

	// Aggregator send API client
	delivery := chikka.New(cfg.Chikka)

	// Authorization resolver per configured mode
	resolver, err := buildResolver(cfg, reg, corr, bus, log)
	if err != nil {
		return fmt.Errorf("building auth resolver: %w", err)
	}

	// Registry event subscriber keeps registry and snapshot aligned
	deviceEvents, err := gateway.NewDeviceEvents(bus, reg, repo, byte(cfg.MQTT.QoS), log)
	if err != nil {
		return fmt.Errorf("creating device event subscriber: %w", err)
	}
	if err := deviceEvents.Start(); err != nil {
		return fmt.Errorf("starting device event subscriber: %w", err)
	}
	log.Info("device event subscriber started")

	// Command dispatcher consumes the relay topics
	dispatcher, err := gateway.NewDispatcher(gateway.DispatcherDeps{
		Config:   cfg,
		Bus:      bus,
		Corr:     corr,
		Registry: reg,
		Delivery: delivery,
		Logger:   log,
		Metrics:  influxClient,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping dispatcher")
		dispatcher.Stop()
	}()
	log.Info("dispatcher started", "relays", cfg.Relays)

	// Admission pipeline feeds the pipe topics
	admission, err := gateway.NewAdmission(gateway.AdmissionDeps{
		Config:   cfg,
		Bus:      bus,
		Resolver: resolver,
		Delivery: delivery,
		Logger:   log,
		Metrics:  influxClient,
	})
	if err != nil {
		return fmt.Errorf("creating admission pipeline: %w", err)
	}

	// Webhook HTTP server
	server, err := gateway.NewServer(gateway.ServerDeps{
		Config:     cfg,
		Admission:  admission,
		Dispatcher: dispatcher,
		Logger:     log,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating webhook server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting webhook server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing webhook server", "error", closeErr)
		}
	}()
	log.Info("webhook server started",
		"address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"path", cfg.Server.Path,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, bus, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Webhook server (stop accepting aggregator posts)
	// 2. Dispatcher (settle in-flight deliveries)
	// 3. Correlator, InfluxDB, MQTT, database

	log.Info("Chikka gateway stopped")
	return nil
}

// buildResolver selects the authorization resolver for the configured
// auth mode.
func buildResolver(cfg *config.Config, reg *registry.Registry, corr *correlator.Correlator, bus *mqtt.Client, log *logging.Logger) (gateway.AuthResolver, error) {
	switch cfg.Auth.Mode {
	case "local":
		return gateway.NewRegistryResolver(reg), nil
	case "bus":
		resolver := gateway.NewCorrelatedResolver(bus, corr, cfg.GetLookupTimeout(), byte(cfg.MQTT.QoS), log)
		if err := resolver.Start(); err != nil {
			return nil, fmt.Errorf("starting correlated resolver: %w", err)
		}
		log.Info("correlated device lookups enabled", "timeout", cfg.GetLookupTimeout())
		return resolver, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

// getConfigPath returns the configuration file path.
// Uses CHIKKA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CHIKKA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, bus *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := bus.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
