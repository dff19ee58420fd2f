package configs

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerPort             string `envconfig:"SERVER_PORT" default:"8080"`
	ServerTimeOutInSeconds int64  `envconfig:"SERVER_TIME_OUT_IN_SECONDS" default:"5"`
	WorkerTimeOutInSeconds int64  `envconfig:"WORKER_TIME_OUT_IN_SECONDS" default:"15"`
	Database               DatabaseConfig
	RabbitMQ               RabbitMQConfig
	RedisConfig            RedisConfig
	Alerts                 AlertsConfig
	Retry                  RetryConfig
	Scheduler              SchedulerConfig
	Recovery               RecoveryConfig
	Robocall               RobocallConfig
	Predictive             PredictiveConfig
	PDS                    PDSConfig
}

type DatabaseConfig struct {
	Username     string `envconfig:"DB_USERNAME"`
	Password     string `envconfig:"DB_PASSWORD"`
	Host         string `envconfig:"DB_HOST"`
	Port         string `envconfig:"DB_PORT"`
	Database     string `envconfig:"DB_DATABASE"`
	DatabaseTest string `envconfig:"DB_DATABASE_TEST"`
	SSLMode      string `envconfig:"DB_SSL_MODE" default:"require"`
	PoolMaxConns int    `envconfig:"DB_POOL_MAX_CONNS" default:"1"`
}

type RabbitMQConfig struct {
	Username string `envconfig:"RABBIT_USERNAME"`
	Password string `envconfig:"RABBIT_PASSWORD"`
	Host     string `envconfig:"RABBIT_HOST"`
	Port     string `envconfig:"RABBIT_PORT"`
}

type RedisConfig struct {
	Username string `envconfig:"REDIS_USERNAME"`
	Password string `envconfig:"REDIS_PASSWORD"`
	Host     string `envconfig:"REDIS_HOST"`
	Port     string `envconfig:"REDIS_PORT"`
	DBIndex  int32  `envconfig:"REDIS_DB_INDEX"`
}

type AlertsConfig struct {
	WebhookURL string `envconfig:"ALERT_WEBHOOK_URL"`
	Channel    string `envconfig:"ALERT_CHANNEL" default:"#collections-ops"`
}

type RetryConfig struct {
	MaxRetries       int32 `envconfig:"RETRY_MAX_RETRIES" default:"3"`
	BackoffInSeconds int64 `envconfig:"RETRY_BACKOFF_IN_SECONDS" default:"300"`
}

type SchedulerConfig struct {
	LateDPDMinutes int32 `envconfig:"SCHEDULER_LATE_DPD_MINUTES" default:"60"`
}

type RecoveryConfig struct {
	StuckAfterSeconds int32 `envconfig:"RECOVERY_STUCK_AFTER_SECONDS" default:"3600"`
	BatchLimit        int32 `envconfig:"RECOVERY_BATCH_LIMIT" default:"100"`
}

type RobocallConfig struct {
	BaseURL  string `envconfig:"ROBOCALL_BASE_URL"`
	APIToken string `envconfig:"ROBOCALL_API_TOKEN"`
}

type PredictiveConfig struct {
	BaseURL     string `envconfig:"PREDICTIVE_BASE_URL"`
	BearerToken string `envconfig:"PREDICTIVE_BEARER_TOKEN"`
}

type PDSConfig struct {
	BaseURL      string `envconfig:"PDS_BASE_URL"`
	Username     string `envconfig:"PDS_USERNAME"`
	Password     string `envconfig:"PDS_PASSWORD"`
	SFTPHost     string `envconfig:"PDS_SFTP_HOST"`
	SFTPPort     string `envconfig:"PDS_SFTP_PORT" default:"22"`
	SFTPUsername string `envconfig:"PDS_SFTP_USERNAME"`
	SFTPPassword string `envconfig:"PDS_SFTP_PASSWORD"`
	SFTPLocalDir string `envconfig:"PDS_SFTP_LOCAL_DIR" default:"/var/lib/dialer/recordings"`
}

// ToMigrationUri returns a string specifically for the migration package with the right prefix
func (d DatabaseConfig) ToMigrationUri() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
		d.SSLMode,
	)
}

// ToTestMigrationUri returns a string specifically for the migration package with the right prefix for test database
func (d DatabaseConfig) ToTestMigrationUri() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.DatabaseTest,
		d.SSLMode,
	)
}

// ToDbConnectionUri returns a connection URI to be used with the pgx package
func (d DatabaseConfig) ToDbConnectionUri() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%d",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
		d.SSLMode,
		d.PoolMaxConns,
	)
}

// ToTestDBConnectionUri returns a string specifically for running the integration tests
func (d DatabaseConfig) ToTestDBConnectionUri() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%d",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.DatabaseTest,
		d.SSLMode,
		d.PoolMaxConns,
	)
}

// ToRabbitConnectionUri returns a connection URI to be used with the rabbitmq/amqp091-go package
func (d RabbitMQConfig) ToRabbitConnectionUri() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
	)
}

// ToRedisConnectionUri returns a connection URI to be used with the redis/go-redis/v9 package
func (d RedisConfig) ToRedisConnectionUri() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/%d",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.DBIndex,
	)
}

func InitConfig() *Config {
	err := godotenv.Load()

	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("Unable to load .env %v", err)
	}

	var cfg Config
	err = envconfig.Process("", &cfg)
	if err != nil {
		fmt.Print("Cannot load env")
	}

	return &cfg
}
