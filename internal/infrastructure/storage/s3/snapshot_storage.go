package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

const (
	snapshotContentType  = "application/json"
	snapshotCacheControl = "private, max-age=0, no-cache"

	// Ключи пользовательских метаданных (x-amz-meta-*)
	metaSessionID     = "session_id"
	metaScenarioName  = "scenario_name"
	metaOverallStatus = "overall_status"
	metaArchivedAt    = "archived_at"
)

type URLMode string

const (
	URLModePresigned URLMode = "presigned"
	URLModePublic    URLMode = "public"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	URLMode         URLMode
	PresignedTTL    time.Duration
}

// normalize проверяет конфигурацию и подставляет значения Yandex Object Storage
func (c Config) normalize() (Config, error) {
	c.Bucket = strings.TrimSpace(c.Bucket)
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")

	switch {
	case c.Bucket == "":
		return c, fmt.Errorf("s3 bucket is required")
	case strings.TrimSpace(c.AccessKeyID) == "" || strings.TrimSpace(c.SecretAccessKey) == "":
		return c, fmt.Errorf("s3 access key id and secret are required")
	}

	if strings.TrimSpace(c.Region) == "" {
		c.Region = "ru-central1"
	}
	if c.Endpoint == "" {
		c.Endpoint = "https://storage.yandexcloud.net"
	}
	switch c.URLMode {
	case "":
		c.URLMode = URLModePresigned
	case URLModePresigned, URLModePublic:
	default:
		return c, fmt.Errorf("unsupported s3 url mode: %s", c.URLMode)
	}
	if c.PresignedTTL <= 0 {
		c.PresignedTTL = time.Hour
	}
	return c, nil
}

// SnapshotStorage хранит JSON snapshot'ы сессий в S3-совместимом хранилище.
// Атрибуты сессии пишутся в метаданные объекта, чтобы архив читался без индекса.
type SnapshotStorage struct {
	client  *s3.Client
	presign *s3.PresignClient
	config  Config
}

var _ port.SnapshotStorage = (*SnapshotStorage)(nil)

func NewSnapshotStorage(ctx context.Context, cfg Config) (*SnapshotStorage, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
		options.UsePathStyle = cfg.UsePathStyle
	})

	return &SnapshotStorage{
		client:  client,
		presign: s3.NewPresignClient(client),
		config:  cfg,
	}, nil
}

// PutSnapshot загружает snapshot сессии и возвращает ссылку для чтения
func (s *SnapshotStorage) PutSnapshot(ctx context.Context, object port.SnapshotObject) (string, error) {
	input, err := s.putInput(object)
	if err != nil {
		return "", err
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put snapshot %s: %w", object.SessionID, err)
	}

	return s.snapshotURL(ctx, *input.Key)
}

func (s *SnapshotStorage) putInput(object port.SnapshotObject) (*s3.PutObjectInput, error) {
	key := strings.TrimSpace(object.Key)
	if key == "" {
		return nil, fmt.Errorf("snapshot key is required")
	}
	if strings.TrimSpace(object.SessionID) == "" {
		return nil, fmt.Errorf("snapshot session id is required")
	}
	if len(object.Body) == 0 {
		return nil, fmt.Errorf("snapshot %s is empty", object.SessionID)
	}

	metadata := map[string]string{
		metaSessionID: headerSafe(object.SessionID),
	}
	if object.ScenarioName != "" {
		metadata[metaScenarioName] = headerSafe(object.ScenarioName)
	}
	if object.OverallStatus != "" {
		metadata[metaOverallStatus] = headerSafe(object.OverallStatus)
	}
	if !object.ArchivedAt.IsZero() {
		metadata[metaArchivedAt] = object.ArchivedAt.UTC().Format(time.RFC3339)
	}

	return &s3.PutObjectInput{
		Bucket:             aws.String(s.config.Bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(object.Body),
		ContentLength:      aws.Int64(int64(len(object.Body))),
		ContentType:        aws.String(snapshotContentType),
		CacheControl:       aws.String(snapshotCacheControl),
		ContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", snapshotFileName(key))),
		Metadata:           metadata,
	}, nil
}

// snapshotURL возвращает публичную или presigned ссылку на snapshot
func (s *SnapshotStorage) snapshotURL(ctx context.Context, key string) (string, error) {
	if s.config.URLMode == URLModePublic {
		return s.publicURL(key), nil
	}

	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:              aws.String(s.config.Bucket),
		Key:                 aws.String(key),
		ResponseContentType: aws.String(snapshotContentType),
	}, s3.WithPresignExpires(s.config.PresignedTTL))
	if err != nil {
		return "", fmt.Errorf("presign snapshot %s: %w", key, err)
	}

	return request.URL, nil
}

func (s *SnapshotStorage) publicURL(key string) string {
	base, err := url.Parse(s.config.Endpoint)
	if err != nil || base.Host == "" {
		base = &url.URL{Scheme: "https", Host: strings.TrimPrefix(strings.TrimPrefix(s.config.Endpoint, "https://"), "http://")}
	}

	target := url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/" + key}
	if s.config.UsePathStyle {
		target.Path = "/" + s.config.Bucket + "/" + key
	} else {
		target.Scheme = "https"
		target.Host = s.config.Bucket + "." + base.Host
	}
	return target.String()
}

func snapshotFileName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// headerSafe оставляет в значении метаданных только печатный ASCII
func headerSafe(value string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, strings.TrimSpace(value))
}
