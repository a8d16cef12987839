package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageLocal = "local"
	StorageMinIO = "minio"
	StorageS3    = "s3"

	StrategyLocal  = "local"
	StrategyRemote = "remote"

	ProgressPostgres = "postgres"
	ProgressRedis    = "redis"

	TransportRabbitMQ = "rabbitmq"
	TransportAsynq    = "asynq"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Storage  StorageConfig
	MinIO    MinIOConfig
	S3       S3Config
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	FFmpeg   FFmpegConfig
	Pipeline PipelineConfig
	Webhook  WebhookConfig
	Remote   RemoteConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"60s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes  int64         `envconfig:"API_MAX_UPLOAD_BYTES" default:"2147483648"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"footage"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"footage"`
	DBName   string `envconfig:"POSTGRES_DB" default:"footage"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type StorageConfig struct {
	Backend       string `envconfig:"STORAGE_BACKEND" default:"local"`
	LocalDir      string `envconfig:"STORAGE_LOCAL_DIR" default:"/var/lib/footage/media"`
	PublicBaseURL string `envconfig:"STORAGE_PUBLIC_BASE_URL" default:"http://localhost:8080/media"`
}

type MinIOConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"footage"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	PartSize  uint64 `envconfig:"MINIO_PART_SIZE" default:"0"`
}

type S3Config struct {
	Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	Bucket       string `envconfig:"S3_BUCKET" default:"footage"`
	AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	SecretKey    string `envconfig:"S3_SECRET_KEY"`
	Endpoint     string `envconfig:"S3_ENDPOINT"`
	UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	PartSize     int64  `envconfig:"S3_PART_SIZE" default:"0"`
	Concurrency  int    `envconfig:"S3_CONCURRENCY" default:"0"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"footage"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"footage"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type FFmpegConfig struct {
	FFmpegPath  string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	Preset      string `envconfig:"FFMPEG_PRESET" default:"fast"`
}

// PipelineConfig controls where renditions are produced and how progress
// is kept.
type PipelineConfig struct {
	Strategy             string        `envconfig:"PIPELINE_STRATEGY" default:"local"`
	UploadDir            string        `envconfig:"PIPELINE_UPLOAD_DIR" default:"/var/lib/footage/uploads"`
	WorkDir              string        `envconfig:"PIPELINE_WORK_DIR" default:"/tmp/footage"`
	MaxConcurrentEncodes int64         `envconfig:"PIPELINE_MAX_CONCURRENT_ENCODES" default:"0"`
	ProgressGracePeriod  time.Duration `envconfig:"PROGRESS_GRACE_PERIOD" default:"30s"`
	ProgressBackend      string        `envconfig:"PROGRESS_BACKEND" default:"postgres"`
	ProgressTTL          time.Duration `envconfig:"PROGRESS_TTL" default:"24h"`
}

type WebhookConfig struct {
	Secret      string        `envconfig:"WEBHOOK_SECRET"`
	CallbackURL string        `envconfig:"WEBHOOK_CALLBACK_URL" default:"http://localhost:8080/v1/webhooks/renditions"`
	Timeout     time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"30s"`
}

type RemoteConfig struct {
	Transport       string        `envconfig:"REMOTE_TRANSPORT" default:"rabbitmq"`
	DeleteOriginal  bool          `envconfig:"REMOTE_DELETE_ORIGINAL" default:"true"`
	TempDir         string        `envconfig:"REMOTE_TEMP_DIR" default:"/tmp/footage-remote"`
	// Concurrency is the number of RabbitMQ consume loops or the asynq pool size.
	Concurrency     int           `envconfig:"REMOTE_CONCURRENCY" default:"1"`
	ShutdownTimeout time.Duration `envconfig:"REMOTE_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backend, strategy and transport names.
func (c *Config) Validate() error {
	if err := oneOf("STORAGE_BACKEND", c.Storage.Backend, StorageLocal, StorageMinIO, StorageS3); err != nil {
		return err
	}
	if err := oneOf("PIPELINE_STRATEGY", c.Pipeline.Strategy, StrategyLocal, StrategyRemote); err != nil {
		return err
	}
	if err := oneOf("PROGRESS_BACKEND", c.Pipeline.ProgressBackend, ProgressPostgres, ProgressRedis); err != nil {
		return err
	}
	if err := oneOf("REMOTE_TRANSPORT", c.Remote.Transport, TransportRabbitMQ, TransportAsynq); err != nil {
		return err
	}
	if c.Pipeline.Strategy == StrategyRemote && c.Storage.Backend == StorageLocal {
		return errors.New("config: PIPELINE_STRATEGY=remote needs a shared STORAGE_BACKEND (minio or s3)")
	}
	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("config: %s=%q must be one of %v", name, value, allowed)
}
