package main

import (
	"clinic-booking/internal/appointments"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/doctors"
	"clinic-booking/internal/feed"
	"clinic-booking/internal/logging"
	"clinic-booking/internal/metrics"
	"clinic-booking/internal/session"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

var (
	configPath = flag.String("config", "", "Config file path")
	envPath    = flag.String("env", "", "Optional dotenv file overriding the config file")
)

// loadConfigurations loads system configurations based on the given config file.
func loadConfigurations() configs.Config {
	if *configPath == "" {
		log.Fatal("no config file path was given")
	}
	if err := configs.LoadEnvFile(*envPath); err != nil {
		log.Fatal(err)
	}
	config, err := configs.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	return config
}

// createDBConnection creates a new database connection based on the given configuration.
func createDBConnection(config configs.Config) database.Connection {
	dbConn, err := database.NewConnection(config)
	if err != nil {
		log.Fatal(err)
	}
	return dbConn
}

// createRedisClient creates the client of the change feed broker and checks it is reachable.
func createRedisClient(config configs.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal(fmt.Errorf("could not reach redis at %s: %w", config.RedisAddr(), err))
	}
	return client
}

func main() {
	// Load dependencies
	flag.Parse()
	config := loadConfigurations()
	dbConn := createDBConnection(config)
	redisClient := createRedisClient(config)
	broker := feed.NewRedisBroker(redisClient)

	// Init error logger
	logger := log.New(os.Stdout, "", log.LstdFlags)

	// Init session service
	authorizer := session.NewService(config, dbConn)

	// Init appointment service
	appointmentService, err := appointments.NewService(config, dbConn,
		appointments.WithPublisher(broker),
		appointments.WithMetrics(metrics.NewAppointmentMetrics(nil)),
		appointments.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	// Setup the HTTP router
	router := chi.NewRouter()
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(metrics.PrometheusMiddleware)
	router.Use(middleware.SetHeader("Content-type", "application/json"))

	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Setup Session routes
	session.Setup(router, logger, config, dbConn)

	// Setup Doctor directory routes
	doctors.Setup(router, logger, dbConn)

	// Setup Appointment and call routes
	appointments.Setup(router, logger, authorizer, appointmentService)

	// Setup change feed route
	feed.Setup(router, logger, authorizer, broker)

	// Creates the HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.ServerPort()),
		Handler:      router,
		ErrorLog:     logger,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// Channel to listen OS signalling in order to gracefully shutdown the HTTP server and other resources
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Starts the server
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	logging.PrintlnInfo(logger, fmt.Sprint("server started listening at ", config.ServerPort()))

	// Listens until server stop
	<-exit
	logging.PrintlnWarn(logger, "server stopped")

	// Creates a timeout to handle resources release
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logging.PrintlnWarn(logger, fmt.Sprint("could not close redis client: ", err))
		}
		dbConn.Close()
		cancel()
	}()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal(fmt.Errorf("an error occurred while server is shutting down: %w", err))
	}

	logging.PrintlnInfo(logger, "server shutdown successfully")
}
