// Package media issues presigned object store URLs for voice and image message payloads.
// Clients PUT the file directly to the store and send the returned file URL with the message.
package media

import (
	"context"
	"errors"
	"fmt"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/xid"
	"mime"
	"strconv"
	"strings"
	"time"
)

const (
	KindVoice = "voice"
	KindImage = "image"
)

var ErrInvalidUpload = errors.New("invalid upload request")

// Config defines fields parsed from environment variables
type Config struct {
	Endpoint  string        `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string        `env:"S3_ACCESS_KEY"`
	SecretKey string        `env:"S3_SECRET_KEY"`
	UseSSL    bool          `env:"S3_USE_SSL" envDefault:"false"`
	Region    string        `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket    string        `env:"S3_BUCKET" envDefault:"auxchat-media"`
	PublicURL string        `env:"S3_PUBLIC_URL"`
	UploadTTL time.Duration `env:"MEDIA_UPLOAD_TTL" envDefault:"15m"`
}

// Upload is a presigned PUT target and the URL the object is served from afterwards
type Upload struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
}

// Presigner signs upload URLs without contacting the store
type Presigner struct {
	client    *minio.Client
	bucket    string
	publicURL string
	ttl       time.Duration
}

func NewPresigner(cfg Config) (*Presigner, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		// known region keeps presigning offline
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio.New: %w", err)
	}

	publicURL := strings.TrimSuffix(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		publicURL = scheme + endpoint + "/" + cfg.Bucket
	}

	ttl := cfg.UploadTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Presigner{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		ttl:       ttl,
	}, nil
}

// EnsureBucket creates the bucket if it is missing
func (p *Presigner) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// ObjectKey builds "<kind>/<caller>/<xid>"
func ObjectKey(kind string, caller int64) string {
	return kind + "/" + strconv.FormatInt(caller, 10) + "/" + xid.New().String()
}

// checkContentType requires media type family to match kind, blank is accepted
func checkContentType(kind, contentType string) error {
	if contentType == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: malformed content type", ErrInvalidUpload)
	}

	prefix := "image/"
	if kind == KindVoice {
		prefix = "audio/"
	}
	if !strings.HasPrefix(mt, prefix) {
		return fmt.Errorf("%w: content type %q does not match kind %q", ErrInvalidUpload, mt, kind)
	}
	return nil
}

// PresignUpload returns upload target for a new object of kind owned by caller
func (p *Presigner) PresignUpload(ctx context.Context, caller int64, kind, contentType string) (Upload, error) {
	if caller < 1 {
		return Upload{}, fmt.Errorf("%w: caller id is required", ErrInvalidUpload)
	}
	if kind != KindVoice && kind != KindImage {
		return Upload{}, fmt.Errorf("%w: kind must be %q or %q", ErrInvalidUpload, KindVoice, KindImage)
	}
	if err := checkContentType(kind, contentType); err != nil {
		return Upload{}, err
	}

	key := ObjectKey(kind, caller)
	u, err := p.client.PresignedPutObject(ctx, p.bucket, key, p.ttl)
	if err != nil {
		return Upload{}, fmt.Errorf("p.client.PresignedPutObject: %w", err)
	}

	return Upload{
		UploadURL: u.String(),
		FileURL:   p.publicURL + "/" + key,
	}, nil
}
