// Package storage archives raw uploads in MinIO/S3-compatible object
// storage so original files can be re-downloaded or re-indexed after
// their text has been chunked and embedded.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// UploadArchive stores and retrieves original uploaded files.
type UploadArchive interface {
	SaveUpload(ctx context.Context, userID, fileID, filename string, r io.Reader, size int64, contentType string) error
	PresignDownload(ctx context.Context, userID, fileID, filename string, expiry time.Duration) (string, error)
	DeleteUpload(ctx context.Context, userID, fileID, filename string) error
}

// MinioArchive implements UploadArchive on MinIO/S3-compatible storage.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinioArchive connects to MinIO and ensures the bucket exists.
func NewMinioArchive(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioArchive{client: client, bucket: bucket}, nil
}

// uploadKey namespaces objects per user and file so deleting a file
// removes exactly its own object.
func uploadKey(userID, fileID, filename string) string {
	return path.Join("uploads", userID, fileID, filename)
}

// SaveUpload stores the original file bytes.
func (m *MinioArchive) SaveUpload(ctx context.Context, userID, fileID, filename string, r io.Reader, size int64, contentType string) error {
	key := uploadKey(userID, fileID, filename)
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("archive upload: %w", err)
	}
	return nil
}

// PresignDownload generates a pre-signed GET URL for the original file.
func (m *MinioArchive) PresignDownload(ctx context.Context, userID, fileID, filename string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, uploadKey(userID, fileID, filename), expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url.String(), nil
}

// DeleteUpload removes the archived file.
func (m *MinioArchive) DeleteUpload(ctx context.Context, userID, fileID, filename string) error {
	key := uploadKey(userID, fileID, filename)
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete archived upload: %w", err)
	}
	return nil
}
