package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cv-sidecar/internal/config"
	"cv-sidecar/internal/tracing"
)

// ObjectScheme 远程文档路径前缀
const ObjectScheme = "minio://"

// ErrInvalidObjectURI minio:// 路径格式错误
var ErrInvalidObjectURI = errors.New("invalid minio object uri")

var minioTracer = tracing.Tracer("storage/minio")

// IsObjectURI 判断路径是否指向对象存储
func IsObjectURI(p string) bool {
	return strings.HasPrefix(p, ObjectScheme)
}

// ParseObjectURI 拆分 minio://bucket/key。
// 只有一段时视为 key，bucket 使用 defaultBucket。
func ParseObjectURI(uri, defaultBucket string) (bucket, key string, err error) {
	if !IsObjectURI(uri) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidObjectURI, uri)
	}
	rest := strings.TrimLeft(strings.TrimPrefix(uri, ObjectScheme), "/")
	bucket, key, found := strings.Cut(rest, "/")
	if !found {
		bucket, key = defaultBucket, rest
	}
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidObjectURI, uri)
	}
	return bucket, key, nil
}

// MinIO 从对象存储读取待解析的简历
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	logger zerolog.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("default_bucket", cfg.DefaultBucket).Msg("MinIO客户端已创建")
	return &MinIO{client: client, cfg: cfg, logger: logger}, nil
}

// FetchToTemp 把 minio://bucket/key 下载到临时文件，保留原扩展名以便识别格式。
// 返回的 cleanup 删除临时文件，调用方处理完请求后调用。
func (m *MinIO) FetchToTemp(ctx context.Context, uri string) (localPath string, cleanup func(), err error) {
	bucket, key, err := ParseObjectURI(uri, m.cfg.DefaultBucket)
	if err != nil {
		return "", nil, err
	}

	ctx, span := minioTracer.Start(ctx, "MinIO.FetchToTemp", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.bucket", bucket),
		attribute.String("storage.object", tracing.SafePath(key)),
	)

	start := time.Now()
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return "", nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, key, err)
	}
	defer obj.Close()

	tmp, err := os.CreateTemp(m.cfg.TempDir, "cv-sidecar-*"+strings.ToLower(path.Ext(key)))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return "", nil, fmt.Errorf("创建临时文件失败: %w", err)
	}
	cleanup = func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			m.logger.Warn().Err(rmErr).Str("path", tmp.Name()).Msg("删除临时文件失败")
		}
	}

	n, copyErr := io.Copy(tmp, obj)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		cleanup()
		err = errors.Join(copyErr, closeErr)
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return "", nil, fmt.Errorf("下载对象 %s/%s 失败: %w", bucket, key, err)
	}

	span.SetAttributes(attribute.Int64("storage.bytes", n))
	m.logger.Debug().
		Str("bucket", bucket).
		Str("object", key).
		Int64("bytes", n).
		Dur("elapsed", time.Since(start)).
		Msg("对象已下载到临时文件")
	return tmp.Name(), cleanup, nil
}
