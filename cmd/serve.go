package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/bridge"
	"rinnai_gateway/internal/config"
	"rinnai_gateway/internal/handlers"
	"rinnai_gateway/internal/logger"
	"rinnai_gateway/internal/metrics"
	"rinnai_gateway/internal/repository"
	"rinnai_gateway/internal/repository/db"
	"rinnai_gateway/internal/schema"
	"rinnai_gateway/internal/server"
	"rinnai_gateway/internal/service"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// open DB
	sqlDB, err := openDB(cfg.DB, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	collector := metrics.New()

	sess := appliance.NewSession(
		cfg.Appliance.SessionOptions(),
		appliance.NewUDPDiscoverer(cfg.Appliance.DiscoveryTimeout, log),
		log,
		appliance.WithObserver(collector),
	)
	defer sess.Close()

	recorder := service.NewRecorder(repos.EventRepo, repos.EndpointRepo, log)
	if cfg.Appliance.Host == "" {
		if err := recorder.Restore(ctx, sess); err != nil {
			log.Warnw("endpoint cache unavailable", "err", err)
		}
	}
	detach := recorder.Attach(sess)
	defer detach()

	appOpts := cfg.Appliance.ServiceOptions()
	appOpts.Observer = collector
	app := service.NewApplianceService(sess, schema.Default(), appOpts, repos.EventRepo, log)
	app.OnStatusChanged(func(snap *appliance.Snapshot) {
		collector.ObserveConfig(service.Translate(schema.Default(), snap.Tree), float64(snap.ObservedAt.Unix()))
	})

	services := service.NewService(repos, app, cfg.Auth.Options())

	stopBridge := startBridge(ctx, cfg.MQTT, app, log)

	// start HTTP server
	apiHandler := handlers.NewHandler(services, collector.Handler(), log)
	srv := &server.Server{}
	runHTTPServer(srv, cfg.HTTP.Port, apiHandler, cancel, log)

	go func() {
		if err := app.Connect(ctx); err != nil && ctx.Err() == nil {
			log.Errorw("appliance connect failed", "err", err)
		}
	}()

	// graceful shutdown
	waitForShutdown(ctx, cancel, srv, log)
	stopBridge()
	return nil
}

// openDB initializes the SQLite database using configuration.
func openDB(c config.DBConfig, log *logger.Logger) (*sql.DB, error) {
	path := c.Path
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		path = "app.db"
	}
	return db.InitDB(path)
}

// startBridge connects to the broker when MQTT is enabled and runs the
// bridge until ctx ends. The returned func waits for the final offline
// publish and disconnects.
func startBridge(ctx context.Context, c config.MQTTConfig, app bridge.Appliance, log *logger.Logger) func() {
	if !c.Enabled {
		log.Infow("mqtt disabled")
		return func() {}
	}
	opts := bridge.Options{
		RootTopic:         c.RootTopic,
		DiscoveryPrefix:   c.DiscoveryPrefix,
		RepublishInterval: c.RepublishInterval,
	}
	topics := bridge.NewTopics(opts.RootTopic, opts.DiscoveryPrefix)

	var b *bridge.Bridge
	client := bridge.NewPahoClient(bridge.BrokerOptions{
		Host:      c.Host,
		Port:      c.Port,
		Username:  c.Username,
		Password:  c.Password,
		ClientID:  c.ClientID,
		WillTopic: topics.Online(),
	}, func() { b.HandleConnect() }, log.Named("mqtt"))
	b = bridge.New(client, app, opts, log.Named("bridge"))

	go func() {
		if err := client.Connect(ctx); err != nil && ctx.Err() == nil {
			log.Errorw("mqtt connect failed", "err", err)
		}
	}()
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	return func() {
		<-done
		client.Disconnect()
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine. A failure to
// serve cancels ctx so the process shuts down.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, cancel context.CancelFunc, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Errorw("error starting server", "err", err)
			cancel()
		}
	}()
}

// waitForShutdown blocks until a termination signal arrives or ctx ends,
// then stops background goroutines and drains the HTTP server.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
