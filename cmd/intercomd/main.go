// Doorlink Intercom Core - IP intercom integration daemon
//
// This is the main entry point for the intercom daemon. It bridges a
// 2N-style IP door intercom to the local network:
//   - REST API and WebSocket feed for dashboards and scripts
//   - MQTT topics for home-automation integration
//   - SQLite archive of access events, with optional InfluxDB telemetry
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/doorlink/intercom-core/migrations"

	"github.com/doorlink/intercom-core/internal/api"
	"github.com/doorlink/intercom-core/internal/events"
	"github.com/doorlink/intercom-core/internal/helios"
	"github.com/doorlink/intercom-core/internal/infrastructure/config"
	"github.com/doorlink/intercom-core/internal/infrastructure/database"
	"github.com/doorlink/intercom-core/internal/infrastructure/influxdb"
	"github.com/doorlink/intercom-core/internal/infrastructure/logging"
	"github.com/doorlink/intercom-core/internal/infrastructure/mqtt"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit // Linear wiring sequence; splitting it obscures the defer ordering
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting intercom daemon",
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

	// Open database
	db, err := database.Open(ctx, database.Config{
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device gateway
	deviceCfg := helios.Config{
		Host:               cfg.Device.Host,
		Username:           cfg.Device.Username,
		Password:           cfg.Device.Password,
		InsecureSkipVerify: cfg.Device.InsecureSkipVerify,
		Timeout:            time.Duration(cfg.Device.Timeout) * time.Second,
	}
	intercom := helios.New(deviceCfg, helios.Options{
		EventFilter: cfg.Events.Filter,
		Enroll: helios.EnrollConfig{
			PollInterval: time.Duration(cfg.Enrollment.PollInterval) * time.Second,
			MaxDuration:  time.Duration(cfg.Enrollment.MaxDuration) * time.Second,
		},
	})
	log.Info("device gateway initialised", "host", cfg.Device.Host)

	// Event archive
	store := events.NewStore(db.DB)

	// WebSocket hub, shared between the API server and the event recorder
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
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
	} else {
		log.Info("MQTT disabled")
	}

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

	// Shared sinks for door state and enrollment outcomes, fed by both
	// the REST handlers and the MQTT command subscription.
	doorStateSink := fanOutDoorState(mqttClient, influxClient, log)
	enrollmentSink := fanOutEnrollment(mqttClient, influxClient, log)

	if mqttClient != nil {
		if subErr := subscribeDoorCommands(ctx, mqttClient, intercom, doorStateSink, log); subErr != nil {
			return fmt.Errorf("subscribing to door commands: %w", subErr)
		}
	}

	// Event recorder: mirrors the device log into the archive and fans
	// newly archived events out to MQTT, InfluxDB and WebSocket clients.
	// The recorder holds its own device-side log subscription.
	recorderLogs := helios.NewLogs(helios.NewClient(deviceCfg), cfg.Events.Filter)
	recorder, err := events.NewRecorder(events.RecorderConfig{
		Logs:         recorderLogs,
		Store:        store,
		Logger:       log,
		WindowDays:   cfg.Events.WindowDays,
		PollInterval: time.Duration(cfg.Events.PollInterval) * time.Second,
		Retention:    time.Duration(cfg.Events.Retention) * 24 * time.Hour,
		OnEvent:      fanOutEvent(hub, mqttClient, influxClient, log),
	})
	if err != nil {
		return fmt.Errorf("creating event recorder: %w", err)
	}
	go recorder.Run(ctx)
	log.Info("event recorder started",
		"filter", cfg.Events.Filter,
		"window_days", cfg.Events.WindowDays,
	)

	// Start API server
	apiServer, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Device:       intercom,
		Archive:      store,
		ExternalHub:  hub,
		Version:      version,
		OnDoorState:  doorStateSink,
		OnEnrollment: enrollmentSink,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("intercom daemon stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses INTERCOM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("INTERCOM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// fanOutEvent builds the recorder callback that distributes a newly
// archived access event to every configured sink. Sinks are best effort:
// a failed publish is logged, never propagated back to the recorder.
func fanOutEvent(hub *api.Hub, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) func(events.ArchivedEvent) {
	topics := mqtt.Topics{}

	return func(ev events.ArchivedEvent) {
		hub.Broadcast(api.ChannelAccessEvent, ev)

		if mqttClient != nil {
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Error("marshalling access event for MQTT", "error", err)
			} else if pubErr := mqttClient.PublishEvent(topics.AccessEvent(), payload); pubErr != nil {
				log.Warn("publishing access event to MQTT", "error", pubErr)
			}
		}

		if influxClient != nil {
			influxClient.WriteAccessEvent(ev.UserName, ev.Type, ev.Time)
		}
	}
}

// fanOutDoorState builds the callback that mirrors a door state change
// onto the retained MQTT topic and the telemetry series. Both sinks are
// best effort.
func fanOutDoorState(mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) func(switchID int, state string) {
	topics := mqtt.Topics{}

	return func(switchID int, state string) {
		if mqttClient != nil {
			if err := mqttClient.PublishRetained(topics.DoorState(switchID), []byte(state)); err != nil {
				log.Warn("publishing door state", "door", switchID, "error", err)
			}
		}
		if influxClient != nil {
			influxClient.WriteDoorState(switchID, state)
		}
	}
}

// fanOutEnrollment builds the callback that announces a finished
// fingerprint enrollment on MQTT and records the outcome in the
// telemetry series.
func fanOutEnrollment(mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) func(userUUID, status string) {
	topics := mqtt.Topics{}

	return func(userUUID, status string) {
		if mqttClient != nil {
			if err := mqttClient.PublishEvent(topics.Enrollment(userUUID), []byte(status)); err != nil {
				log.Warn("publishing enrollment outcome", "user_uuid", userUUID, "error", err)
			}
		}
		if influxClient != nil {
			influxClient.WriteEnrollment(userUUID, status)
		}
	}
}

// subscribeDoorCommands wires intercom/command/door/+ to the device's
// switch control, fanning the resulting state back out through onState.
func subscribeDoorCommands(ctx context.Context, mqttClient *mqtt.Client, intercom *helios.Intercom, onState func(switchID int, state string), log *logging.Logger) error {
	topics := mqtt.Topics{}

	return mqttClient.Subscribe(topics.AllDoorCommands(), 1, func(topic string, payload []byte) error {
		switchID, err := doorIDFromTopic(topic)
		if err != nil {
			log.Warn("ignoring door command on malformed topic", "topic", topic, "error", err)
			return nil
		}

		action := helios.SwitchAction(strings.TrimSpace(string(payload)))
		switch action {
		case helios.ActionOpen, helios.ActionLock, helios.ActionUnlock:
		default:
			log.Warn("ignoring unknown door command", "topic", topic, "command", string(payload))
			return nil
		}

		log.Info("door command received", "door", switchID, "action", action)
		if ctrlErr := intercom.ControlDoor(ctx, action, switchID); ctrlErr != nil {
			log.Error("door command failed", "door", switchID, "action", action, "error", ctrlErr)
			return ctrlErr
		}

		// Re-read and fan out the resulting state so subscribers converge.
		state, stateErr := intercom.DoorStatus(ctx, switchID)
		if stateErr != nil {
			log.Warn("door state re-read after command failed", "door", switchID, "error", stateErr)
			return nil
		}
		onState(switchID, string(state))
		return nil
	})
}

// doorIDFromTopic extracts the switch id from intercom/command/door/{id}.
func doorIDFromTopic(topic string) (int, error) {
	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 || idx == len(topic)-1 {
		return 0, fmt.Errorf("no switch id in topic %q", topic)
	}
	id, err := strconv.Atoi(topic[idx+1:])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid switch id in topic %q", topic)
	}
	return id, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
