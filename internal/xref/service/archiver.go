package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
)

// BatchArchiver stores the raw rows of an import batch.
type BatchArchiver interface {
	Archive(ctx context.Context, batchID string, rows []Row) error
}

// MinIOArchiver writes imports/<batch>.json to a bucket.
type MinIOArchiver struct {
	client *minio.Client
	bucket string
}

func NewMinIOArchiver(client *minio.Client, bucket string) *MinIOArchiver {
	return &MinIOArchiver{client: client, bucket: bucket}
}

// ArchiveObjectName 归档对象路径
func ArchiveObjectName(batchID string) string {
	return fmt.Sprintf("imports/%s.json", batchID)
}

func (a *MinIOArchiver) Archive(ctx context.Context, batchID string, rows []Row) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}
	_, err = a.client.PutObject(ctx, a.bucket, ArchiveObjectName(batchID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// EnsureBucket 确保存储桶存在
func (a *MinIOArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
}
