package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rentwise/rentwise/internal/admin"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/cors"
	"github.com/rentwise/rentwise/internal/database"
	"github.com/rentwise/rentwise/internal/events"
	"github.com/rentwise/rentwise/internal/identity"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/metrics"
	"github.com/rentwise/rentwise/internal/tenancy"
	"github.com/rentwise/rentwise/internal/user"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configFile := pflag.String("config", "", "path to the configuration file")
	pflag.Parse()

	log, err := setup(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Setup database
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.Open(ctx, config.Current.Database, log)
	cancel()
	if err != nil {
		log.Fatal("Error opening database", zap.Error(err))
	}

	// Setup events
	var publisher events.Publisher = events.Noop{}
	if url := config.Current.Events.AMQPURL; url != "" {
		rp, err := events.NewRabbitPublisher(url, config.Current.Events.Exchange)
		if err != nil {
			log.Fatal("Error connecting to message broker", zap.Error(err))
		}
		publisher = rp
	}

	signer, err := identity.NewSigner(config.Current.Auth.SigningKey, config.Current.Auth.Issuer)
	if err != nil {
		log.Fatal("Error creating token verifier", zap.Error(err))
	}
	authn := identity.NewMiddleware(signer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	userService := user.NewService(db, identity.ContextResolver{},
		user.WithPublisher(publisher),
		user.WithLogger(log.Named("user")),
		user.WithMetrics(m),
	)
	backfiller := tenancy.NewBackfiller(db,
		tenancy.WithBatchSize(config.Current.Backfill.BatchSize),
		tenancy.WithCheckpoint(config.Current.Backfill.Checkpoint),
		tenancy.WithLogger(log.Named("backfill")),
		tenancy.WithMetrics(m),
	)

	// Setup routing
	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(logger.Middleware(log))
	api.Use(m.Middleware)
	user.SetupRoutes(api, userService, authn)
	admin.SetupRoutes(api, authn, backfiller)

	addr := config.Current.Server.Addr()
	srv := http.Server{
		Addr:    addr,
		Handler: cors.Middleware(config.Current.CORS.Origins)(r),

		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		log.Info("Listening", zap.String("addr", addr), zap.String("url", config.Current.Server.URL()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	<-c

	log.Info("Shutting down server...")
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Error shutting down server", zap.Error(err))
	}

	if err := publisher.Close(); err != nil {
		log.Error("Error closing publisher", zap.Error(err))
	}

	log.Info("Closing database connection...")
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
}

// setup loads the configuration and builds the logger. Errors are returned
// rather than logged since no logger exists yet.
func setup(configFile string) (*zap.Logger, error) {
	if err := config.LoadConfig(configFile); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.Init(logger.Config{
		Level:       config.Current.Log.Level,
		Environment: config.Current.Log.Environment,
		ServiceName: "rentwise-server",
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return log, nil
}
