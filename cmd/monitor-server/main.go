package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/api"
	"github.com/esp32-monitor/esp32-monitor-server/internal/config"
	"github.com/esp32-monitor/esp32-monitor-server/internal/integration"
	"github.com/esp32-monitor/esp32-monitor-server/internal/monitor"
	"github.com/esp32-monitor/esp32-monitor-server/internal/ota"
	"github.com/esp32-monitor/esp32-monitor-server/internal/realtime"
	"github.com/esp32-monitor/esp32-monitor-server/internal/server"
	"github.com/esp32-monitor/esp32-monitor-server/internal/storage"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/monitor-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load configuration, using defaults")
		cfg = config.Default()
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Open the device store
	var store storage.Store
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		if err := pg.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		store = pg
		log.Info().Msg("Connected to database")
	} else {
		store = storage.NewMemoryStore()
		log.Info().Msg("Database not configured, using in-memory store")
	}
	defer store.Close()

	// Firmware content store
	files, err := storage.NewFileStore(cfg.Firmware.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Firmware.Dir).Msg("Failed to open firmware directory")
	}

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WaitGroup for services
	var wg sync.WaitGroup

	// Realtime monitor room
	hub := realtime.NewHub()
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	notifiers := monitor.MultiNotifier{hub}

	// Optional: NATS snapshot mirror and integration forwarder
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("esp32-monitor-server"),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
			nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
				log.Error().
					Err(err).
					Str("subject", sub.Subject).
					Msg("NATS error")
			}),
		)

		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS support")
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")

			notifiers = append(notifiers, server.NewNATSPublisher(nc))

			forwarder := integration.NewForwarder(nc, cfg.Integration)
			if forwarder.Enabled() {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := forwarder.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Msg("Integration forwarder stopped")
					}
				}()
			}
		}
	} else {
		log.Info().Msg("NATS not configured, running in standalone mode")
	}

	reconciler := monitor.NewReconciler(store, notifiers)
	otaService := ota.NewService(store, files)

	// Start REST API server
	apiServer := api.NewRESTServer(cfg, reconciler, otaService, hub)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.ListenAndServe(cfg.API.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Shutdown API server
	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Monitor server stopped")
}
