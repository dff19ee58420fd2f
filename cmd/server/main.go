package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sajinavi2006/julomvp-sub029/configs"
	db2 "github.com/sajinavi2006/julomvp-sub029/db"
	"github.com/sajinavi2006/julomvp-sub029/internal/alerts"
	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
	"github.com/sajinavi2006/julomvp-sub029/internal/metrics"
	"github.com/sajinavi2006/julomvp-sub029/internal/postgres"
	"github.com/sajinavi2006/julomvp-sub029/internal/rabbitmq"
	"github.com/sajinavi2006/julomvp-sub029/internal/schedule"
	"github.com/sajinavi2006/julomvp-sub029/internal/server"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

var postgresIsReady, rabbitIsReady bool

func main() {
	cfg := configs.InitConfig()

	d, err := iofs.New(db2.Migrations, "migrations")
	if err != nil {
		log.Fatal(err)
		return
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, cfg.Database.ToMigrationUri())
	if err != nil {
		log.Fatal(err)
		return
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal(err)
		}
	}
	slog.Info("Migrations ran successfully")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerTimeOutInSeconds)*time.Second)
	defer cancel()

	storage, err := postgres.NewStorage(ctx, cfg.Database.ToDbConnectionUri())
	if err != nil {
		log.Fatal(err)
	}
	postgresIsReady = true
	slog.Info("Postgres connection has been initialized successfully")

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
	slog.Info("RabbitMQ has been initialized successfully")

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	notifier := alerts.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	scheduler := schedule.NewScheduler(storage, rabbitClient, notifier, cfg.Alerts.Channel)

	router := setupHTTPServer(storage, rabbitClient, scheduler, registry, cfg.Scheduler.LateDPDMinutes)
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
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
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func setupHTTPServer(storage domain.Storage, rabbitClient *rabbitmq.RabbitMQClient, scheduler *schedule.Scheduler, registry *prometheus.Registry, lateDPDMinutes int32) *gin.Engine {
	r := gin.Default()
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("validate_bucket", validateBucket)
		if err != nil {
			log.Fatal("failed to bind validation rule of validate_bucket")
		}

		err = v.RegisterValidation("validate_vendor", validateVendor)
		if err != nil {
			log.Fatal("failed to bind validation rule of validate_vendor")
		}
	}

	serverLogic := server.NewServerLogic(storage, scheduler, lateDPDMinutes)

	campaigns := r.Group("/campaigns")
	campaigns.POST("/:bucket/trigger", func(c *gin.Context) {
		uri := triggerCampaignURI{}
		if err := c.ShouldBindUri(&uri); err != nil {
			slog.Error("error occurred while binding trigger request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bucket"})
			return
		}

		req := triggerCampaignRequest{}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
				slog.Error("error occurred while binding trigger request body", "error", err)
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vendor"})
				return
			}
		}

		bucket := domain.BucketName(uri.Bucket)
		err := serverLogic.TriggerCampaign(c, bucket, req.Vendor)
		if err != nil {
			if errors.Is(err, errval.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{})
				return
			}
			if errval.IsIntegrity(err) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}

			c.JSON(http.StatusInternalServerError, gin.H{})
			return
		}

		c.JSON(http.StatusOK, gin.H{"triggered_bucket": bucket})
	})

	tasks := r.Group("/tasks")
	tasks.GET("/:id", func(c *gin.Context) {
		idStr := c.Param("id")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			slog.Error("Invalid id parameter, error occurred while casting id str to int", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
			return
		}

		task, err := serverLogic.GetTaskStatus(c, id)
		if err != nil {
			if errors.Is(err, errval.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{})
				return
			}

			c.JSON(http.StatusInternalServerError, gin.H{})
			return
		}

		c.JSON(http.StatusOK, gin.H{"task": task})
	})

	tasks.GET("/:id/history", func(c *gin.Context) {
		idStr := c.Param("id")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			slog.Error("Invalid id parameter, error occurred while casting id str to int", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
			return
		}

		history, err := serverLogic.GetTaskHistory(c, id)
		if err != nil {
			if errors.Is(err, errval.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{})
				return
			}

			c.JSON(http.StatusInternalServerError, gin.H{})
			return
		}

		c.JSON(http.StatusOK, gin.H{"history": history})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	r.GET("/readiness", func(c *gin.Context) {
		if postgresIsReady && rabbitIsReady {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
		} else {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		}
	})
	r.GET("/liveness", func(c *gin.Context) {
		// Checking health of depending upon infra connections
		err := storage.Ping(c)
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

		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})

	return r
}

type triggerCampaignURI struct {
	Bucket string `uri:"bucket" binding:"required,validate_bucket"`
}

// triggerCampaignRequest optionally pins the vendor the caller expects the
// bucket to run against; a mismatch with the stored configuration is
// rejected instead of dialing through the wrong vendor.
type triggerCampaignRequest struct {
	Vendor string `json:"vendor" binding:"omitempty,validate_vendor"`
}

var validateBucket validator.Func = func(fl validator.FieldLevel) bool {
	return domain.BucketName(fl.Field().String()).IsValid()
}

var validateVendor validator.Func = func(fl validator.FieldLevel) bool {
	return domain.Vendor(fl.Field().String()).IsValid()
}
