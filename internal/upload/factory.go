package upload

import (
	"context"
	"fmt"

	"github.com/dgallion1/formflat/internal/config"
)

// New builds the uploader selected by UPLOAD_BACKEND.
func New(ctx context.Context, cfg config.Config) (Uploader, error) {
	switch cfg.UploadBackend {
	case config.BackendNone, "":
		return Disabled{}, nil
	case config.BackendHTTP:
		return NewHTTPUploader(cfg.UploadURL, cfg.UploadTimeout), nil
	case config.BackendS3:
		u, err := NewS3Uploader(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.UploadBucket,
			Prefix:    cfg.UploadPrefix,
			PublicURL: cfg.S3PublicURL,
		})
		return orNil(u, err)
	case config.BackendMinIO:
		u, err := NewMinIOUploader(MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			Region:    cfg.MinIORegion,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.UploadBucket,
			Prefix:    cfg.UploadPrefix,
			UseSSL:    cfg.MinIOUseSSL,
		})
		return orNil(u, err)
	case config.BackendAzBlob:
		u, err := NewAzureUploader(cfg.AzureConnectionString, cfg.UploadBucket, cfg.UploadPrefix)
		return orNil(u, err)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
	}
}

// orNil keeps a failed constructor from leaking a typed nil into the interface.
func orNil[U Uploader](u U, err error) (Uploader, error) {
	if err != nil {
		return nil, err
	}
	return u, nil
}
