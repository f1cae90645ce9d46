package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Upload backends.
const (
	BackendNone   = "none"
	BackendHTTP   = "http"
	BackendS3     = "s3"
	BackendMinIO  = "minio"
	BackendAzBlob = "azblob"
)

type Config struct {
	Port string `envconfig:"PORT" default:"3000" validate:"required,numeric"`

	// Request limits
	MaxBodyBytes   int64 `envconfig:"MAX_BODY_BYTES" default:"20971520" validate:"gt=0"` // 20MB
	MaxConnections int   `envconfig:"MAX_CONNECTIONS" default:"0" validate:"gte=0"`

	// Normalization
	MaxDepth       int    `envconfig:"MAX_DEPTH" default:"512" validate:"gt=0"`
	LabelDelimiter string `envconfig:"LABEL_DELIMITER" default:" > " validate:"required"`
	LenientRows    bool   `envconfig:"LENIENT_ROWS" default:"false"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`

	// Result forwarding
	ForwardTimeout   time.Duration `envconfig:"FORWARD_TIMEOUT" default:"10s" validate:"gt=0"`
	ForwardRetries   int           `envconfig:"FORWARD_RETRIES" default:"1" validate:"gte=0,lte=10"`
	ForwardWorkers   int           `envconfig:"FORWARD_WORKERS" default:"4" validate:"gt=0"`
	ForwardQueueSize int           `envconfig:"FORWARD_QUEUE_SIZE" default:"100" validate:"gt=0"`

	// File uploads
	UploadBackend string        `envconfig:"UPLOAD_BACKEND" default:"none" validate:"oneof=none http s3 minio azblob"`
	UploadTimeout time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"30s" validate:"gt=0"`
	UploadURL     string        `envconfig:"UPLOAD_URL" validate:"required_if=UploadBackend http"`
	UploadBucket  string        `envconfig:"UPLOAD_BUCKET" default:"formflat-uploads" validate:"required"`
	UploadPrefix  string        `envconfig:"UPLOAD_PREFIX" default:"uploads"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3Region    string `envconfig:"S3_REGION" validate:"required_if=UploadBackend s3"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" validate:"required_if=UploadBackend s3"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" validate:"required_if=UploadBackend s3"`
	S3PublicURL string `envconfig:"S3_PUBLIC_URL"`

	MinIOEndpoint  string `envconfig:"MINIO_ENDPOINT" validate:"required_if=UploadBackend minio"`
	MinIOAccessKey string `envconfig:"MINIO_ACCESS_KEY" validate:"required_if=UploadBackend minio"`
	MinIOSecretKey string `envconfig:"MINIO_SECRET_KEY" validate:"required_if=UploadBackend minio"`
	MinIORegion    string `envconfig:"MINIO_REGION" default:"us-east-1"`
	MinIOUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"true"`

	AzureConnectionString string `envconfig:"AZURE_STORAGE_CONNECTION_STRING" validate:"required_if=UploadBackend azblob"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
