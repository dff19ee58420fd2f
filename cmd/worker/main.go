package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sajinavi2006/julomvp-sub029/configs"
	"github.com/sajinavi2006/julomvp-sub029/internal/alerts"
	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/metrics"
	"github.com/sajinavi2006/julomvp-sub029/internal/pipeline"
	"github.com/sajinavi2006/julomvp-sub029/internal/postgres"
	"github.com/sajinavi2006/julomvp-sub029/internal/rabbitmq"
	"github.com/sajinavi2006/julomvp-sub029/internal/redis"
	"github.com/sajinavi2006/julomvp-sub029/internal/results"
	"github.com/sajinavi2006/julomvp-sub029/internal/retrier"
	"github.com/sajinavi2006/julomvp-sub029/internal/tracker"
	"github.com/sajinavi2006/julomvp-sub029/internal/vendor"
)

var postgresIsReady, rabbitIsReady, redisIsReady bool

func main() {
	cfg := configs.InitConfig()
	args := os.Args
	slog.Info("Running dialer_worker command", "args", args, "len_args", len(args))
	if len(args) < 2 {
		log.Fatal("Insufficient arguments are provided in calling the command")
		return
	}

	// workerNumber is an index showing the id of the worker (It's only needed to be unique, and there is no requirement of being a number)
	workerNumber := args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rabbitClient, err := rabbitmq.NewRabbitMQClient(ctx, cfg.RabbitMQ.ToRabbitConnectionUri())
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		err = rabbitClient.Close()
		if err != nil {
			slog.Error("An error occurred while closing RabbitMQ connection", "error", err.Error())
		}
	}()
	rabbitIsReady = true
	slog.Info("RabbitMQ connection has been initialized successfully")

	redisClient, err := redis.NewClient(ctx, cfg.RedisConfig.ToRedisConnectionUri())
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		err = redisClient.Close()
		if err != nil {
			slog.Error("An error occurred while closing Redis connection", "error", err.Error())
		}
	}()
	redisIsReady = true
	slog.Info("Redis connection has been initialized successfully")

	storage, err := postgres.NewStorage(ctx, cfg.Database.ToDbConnectionUri())
	if err != nil {
		log.Fatal(err)
	}
	postgresIsReady = true
	slog.Info("Postgres connection has been initialized successfully")

	promRegistry := prometheus.NewRegistry()
	metrics.Register(promRegistry)

	notifier := alerts.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	tasks := tracker.NewTracker(storage)
	registry := vendor.NewRegistry(
		vendor.NewRobocallAdapter(vendor.RobocallConfig{
			BaseURL:  cfg.Robocall.BaseURL,
			APIToken: cfg.Robocall.APIToken,
		}),
		vendor.NewPredictiveAdapter(vendor.PredictiveConfig{
			BaseURL:     cfg.Predictive.BaseURL,
			BearerToken: cfg.Predictive.BearerToken,
		}),
		vendor.NewPDSAdapter(vendor.PDSConfig{
			BaseURL:  cfg.PDS.BaseURL,
			Username: cfg.PDS.Username,
			Password: cfg.PDS.Password,
			SFTP: vendor.SFTPConfig{
				Host:     cfg.PDS.SFTPHost,
				Port:     cfg.PDS.SFTPPort,
				Username: cfg.PDS.SFTPUsername,
				Password: cfg.PDS.SFTPPassword,
				LocalDir: cfg.PDS.SFTPLocalDir,
			},
		}),
	)
	stageRetrier := retrier.NewRetrier(rabbitClient, tasks, notifier, cfg.Alerts.Channel).
		WithPolicy(cfg.Retry.MaxRetries, time.Duration(cfg.Retry.BackoffInSeconds)*time.Second)
	consumer := results.NewConsumer(storage, tasks)
	stages := pipeline.NewPipeline(storage, tasks, registry, stageRetrier, consumer, redisClient)

	handlerFunc := func(jobName, payload string) {
		job, err := domain.UnmarshalStageJob(payload)
		if err != nil {
			slog.Error("There was an error in unmarshalling the stage job", "error", err, "job", jobName)
			return
		}
		slog.Info("Stage job is picked up from the queue",
			"job", jobName, "job_id", job.JobID, "bucket", job.Bucket,
			"stage", job.Stage, "attempt", job.Attempt)

		jobCtx, jobCancel := context.WithTimeout(ctx, time.Duration(cfg.WorkerTimeOutInSeconds)*time.Second)
		defer jobCancel()

		switch jobName {
		case domain.JobUploadStage:
			err = stages.RunUploadStage(jobCtx, job)
		case domain.JobQueryStage:
			err = stages.RunQueryStage(jobCtx, job)
		default:
			slog.Error("Unrecognized stage job has been pushed to queue, ignoring the job...",
				"job", jobName, "job_id", job.JobID)
			return
		}
		if err != nil {
			slog.Error("Stage job finished with error",
				"job", jobName, "job_id", job.JobID, "bucket", job.Bucket, "error", err.Error())
			return
		}
		slog.Info("Stage job has been successfully finished",
			"job", jobName, "job_id", job.JobID, "bucket", job.Bucket, "stage", job.Stage)
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	consumerName := "dialer-worker:" + workerNumber
	slog.Info("Creating consumer for RabbitMQ", "consumer_name", consumerName)
	// The consumer name must be unique for each worker, so I've added workerNumber to it
	err = rabbitClient.Consume(consumerName, handlerFunc)
	if err != nil {
		log.Fatalf("Failed to start consuming messages: %v", err)
	}
	slog.Info("Consumer is created successfully", "consumer_name", consumerName)

	// Running HTTP Server in order to have liveness, readiness and metrics HTTP APIs
	go setUpHealthCheckerAPIs(ctx, cfg, storage, rabbitClient, redisClient, promRegistry)

	slog.Info("Worker is running. To exit press CTRL+C", "worker_num", workerNumber)
	<-sigChan // Wait for interrupt signal
	slog.Info("Worker is shutting down...", "worker_num", workerNumber)
}

func setUpHealthCheckerAPIs(ctx context.Context, cfg *configs.Config, storage domain.Storage, rabbitClient *rabbitmq.RabbitMQClient, redisClient *redis.Client, registry *prometheus.Registry) {
	r := gin.Default()
	// The pipeline counters are incremented on the worker's code paths, so
	// the worker has to serve them itself
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	r.GET("/readiness", func(c *gin.Context) {
		if postgresIsReady && rabbitIsReady && redisIsReady {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
		} else {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		}
	})
	r.GET("/liveness", func(c *gin.Context) {
		err := storage.Ping(ctx)
		if err != nil {
			slog.Error("Postgresql seem not to be pingable in liveness API", "error", err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not healthy"})
			return
		}

		isRabbitHealthy := rabbitClient.IsHealthy()
		if !isRabbitHealthy {
			slog.Error("Rabbit is not healthy")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not healthy"})
			return
		}

		err = redisClient.Ping(ctx)
		if err != nil {
			slog.Error("Redis seem not to be pingable in liveness API", "error", err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not healthy"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Initializing the server in a goroutine so that
	// it won't block the graceful shutdown handling below
	go func() {
		log.Printf("Starting server on port %s\n", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
}
