package minio

import (
	"Chatline/internal/api/config"
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// Client 全局 MinIO 客户端实例
	Client *minio.Client
	// BucketName 媒体存储桶
	BucketName string
	// PresignExpiry 预签名地址有效期
	PresignExpiry = time.Hour
)

// Init 初始化 MinIO 客户端，存储桶不存在时创建
func Init(cfg config.MinIOConfig) error {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to connect to minio server: %w", err)
	}
	if !exists {
		if err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("MinIO bucket created", "bucket", cfg.Bucket)
	}

	Client = client
	BucketName = cfg.Bucket
	if cfg.PresignMinute > 0 {
		PresignExpiry = time.Duration(cfg.PresignMinute) * time.Minute
	}
	return nil
}
