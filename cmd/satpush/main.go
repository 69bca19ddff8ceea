// satpush - push notification relay daemon
//
// satpush keeps one resilient WebSocket connection to a push notification
// gateway, subscribes to the configured collections and relays every
// notification to the local journal, MQTT bus and InfluxDB.
//
// "satpush token <subject>" prints a bearer token for the control API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/satpush/internal/api"
	"github.com/nerrad567/satpush/internal/audit"
	"github.com/nerrad567/satpush/internal/infrastructure/config"
	"github.com/nerrad567/satpush/internal/infrastructure/database"
	"github.com/nerrad567/satpush/internal/infrastructure/influxdb"
	"github.com/nerrad567/satpush/internal/infrastructure/logging"
	"github.com/nerrad567/satpush/internal/infrastructure/mqtt"
	"github.com/nerrad567/satpush/internal/journal"
	"github.com/nerrad567/satpush/internal/push"
	"github.com/nerrad567/satpush/internal/relay"
	"github.com/nerrad567/satpush/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Components are closed by deferred calls in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting satpush",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	checks := make(map[string]api.HealthChecker)
	var relayOpts []relay.Option

	// Journal (optional). The audit trail shares its database.
	var history api.History
	var auditRepo audit.Repository
	if cfg.Journal.Enabled {
		repo, closeJournal, journalErr := openJournal(ctx, cfg.Journal, log)
		if journalErr != nil {
			return journalErr
		}
		defer closeJournal()

		history = repo.repo
		checks["journal"] = repo.db
		auditRepo = repo.audit
		relayOpts = append(relayOpts, relay.WithJournal(repo.repo), relay.WithAudit(repo.audit))

		if cfg.Journal.Retention > 0 {
			pruner := journal.NewPruner(repo.repo, cfg.Journal.Retention, 0, log.Component("journal"))
			// Registered after closeJournal, so it runs first.
			defer pruner.Start(ctx)()
		}
	} else {
		log.Info("journal disabled")
	}

	// MQTT bus (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		checks["mqtt"] = mqttClient
		relayOpts = append(relayOpts, relay.WithBus(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
			log.Error("InfluxDB write error", "error", err, "total_errors", influxClient.WriteErrors())
		})

		checks["influxdb"] = influxClient
		relayOpts = append(relayOpts, relay.WithMetrics(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	// Push client. AutoConnect is applied after the relay has subscribed so
	// the first handshake already carries the configured collections.
	client, err := push.New(pushConfig(cfg.Gateway),
		push.WithLogger(log.Component("push")),
		push.WithTransportFactory(push.NewWSTransportFactory(push.WSTransportOptions{
			HandshakeTimeout: cfg.Gateway.HandshakeTimeout,
			MaxMessageSize:   cfg.Gateway.MaxMessageSize,
		})),
	)
	if err != nil {
		return fmt.Errorf("creating push client: %w", err)
	}
	defer func() {
		log.Info("closing push client")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing push client", "error", closeErr)
		}
	}()
	log.Info("push client created",
		"gateway", cfg.Gateway.URL,
		"client_key", client.ClientKey(),
	)

	// Relay
	rel := relay.New(client, relayOpts...)
	rel.SetLogger(log.Component("relay"))
	if startErr := rel.Start(ctx, cfg.Subscriptions); startErr != nil {
		return fmt.Errorf("starting relay: %w", startErr)
	}
	defer rel.Stop()

	if cfg.Gateway.AutoConnect {
		client.Connect()
	}

	// API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Push:    client,
			Relay:   rel,
			Journal: history,
			Audit:   auditRepo,
			Checks:  checks,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API, relay, push client, InfluxDB, MQTT, journal.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SATPUSH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SATPUSH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// pushConfig maps the gateway section to the push client configuration.
// The client never connects on its own; run connects once the relay is
// subscribed.
func pushConfig(g config.GatewayConfig) push.ClientConfig {
	return push.ClientConfig{
		GatewayURL:        g.URL,
		CanisterID:        g.CanisterID,
		ReconnectInterval: g.ReconnectInterval,
		HeartbeatInterval: g.HeartbeatInterval,
		ManualConnect:     true,
	}
}

// openedJournal bundles the journal and audit repositories with their database.
type openedJournal struct {
	db    *database.DB
	repo  *journal.SQLiteRepository
	audit *audit.SQLiteRepository
}

// openJournal opens and migrates the journal database. The returned
// function closes it.
func openJournal(ctx context.Context, cfg config.JournalConfig, log *logging.Logger) (*openedJournal, func(), error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening journal database: %w", err)
	}
	log.Info("journal database opened", "path", cfg.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		db.Close() //nolint:errcheck // Already returning the migration error
		return nil, nil, fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("journal migrations complete")

	closeFn := func() {
		log.Info("closing journal database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing journal database", "error", closeErr)
		}
	}
	return &openedJournal{
		db:    db,
		repo:  journal.NewSQLiteRepository(db),
		audit: audit.NewSQLiteRepository(db),
	}, closeFn, nil
}
