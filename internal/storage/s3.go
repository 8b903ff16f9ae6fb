// Package storage удаляет медиа-объекты сообщений из S3-совместимого хранилища.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Config struct {
	Endpoint      string // пусто: AWS по региону
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // префикс публичных ссылок, например https://cdn.example.com/media
	PathStyle     bool
}

var ErrInvalidKey = errors.New("storage: invalid object key")

// ключи, которые создаёт upload-сервис
var keyPattern = regexp.MustCompile(`^(images|original|files)/[a-zA-Z0-9._/-]+$`)

type objectDeleter interface {
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3 struct {
	client  objectDeleter
	bucket  string
	baseURL string
}

func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newS3(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3(client objectDeleter, bucket, baseURL string) *S3 {
	return &S3{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// Delete удаляет объект по публичной ссылке. Ссылки не на наше хранилище пропускаются.
func (s *S3) Delete(ctx context.Context, mediaURL string) error {
	key, err := ObjectKey(mediaURL, s.baseURL)
	if err != nil {
		slog.DebugContext(ctx, "storage: skip foreign url", "url", mediaURL, "err", err)
		return nil
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	slog.DebugContext(ctx, "storage: object deleted", "key", key)
	return nil
}

// ObjectKey извлекает ключ объекта из ссылки. С публичным префиксом принимаются
// только ссылки под ним; без префикса ключ ищется по сегменту /images/, /original/ или /files/.
func ObjectKey(mediaURL, baseURL string) (string, error) {
	mediaURL = strings.TrimSpace(mediaURL)
	if mediaURL == "" {
		return "", ErrInvalidKey
	}

	var key string
	if baseURL != "" {
		if !strings.HasPrefix(mediaURL, baseURL+"/") {
			return "", ErrInvalidKey
		}
		key = strings.TrimPrefix(mediaURL, baseURL+"/")
		if i := strings.IndexAny(key, "?#"); i >= 0 {
			key = key[:i]
		}
	} else {
		u, err := url.Parse(mediaURL)
		if err != nil {
			return "", ErrInvalidKey
		}
		p := u.Path
		for _, seg := range []string{"/images/", "/original/", "/files/"} {
			if i := strings.Index(p, seg); i >= 0 {
				key = p[i+1:]
				break
			}
		}
	}

	if key == "" || strings.Contains(key, "..") || !keyPattern.MatchString(key) {
		return "", ErrInvalidKey
	}
	return key, nil
}

// Noop: хранилище не настроено.
type Noop struct{}

func (Noop) Delete(context.Context, string) error { return nil }
