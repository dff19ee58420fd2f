package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/sajinavi2006/julomvp-sub029/configs"
	"github.com/sajinavi2006/julomvp-sub029/internal/alerts"
	"github.com/sajinavi2006/julomvp-sub029/internal/postgres"
	"github.com/sajinavi2006/julomvp-sub029/internal/rabbitmq"
	"github.com/sajinavi2006/julomvp-sub029/internal/schedule"
)

// Runs one scheduling cycle over every active campaign and exits. Meant to
// run as a daily cron job before the first campaign window opens.
func main() {
	cfg := configs.InitConfig()

	ctx := context.Background()
	storage, err := postgres.NewStorage(ctx, cfg.Database.ToDbConnectionUri())
	if err != nil {
		log.Fatal(err)
	}
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
	slog.Info("RabbitMQ has been initialized successfully")

	notifier := alerts.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	scheduler := schedule.NewScheduler(storage, rabbitClient, notifier, cfg.Alerts.Channel)

	if err := scheduler.ScheduleAll(ctx, cfg.Scheduler.LateDPDMinutes); err != nil {
		log.Fatal(err)
	}
	slog.Info("Scheduling cycle finished")
}
