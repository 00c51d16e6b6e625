package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New buat koneksi MinIO dan pastikan bucket ada
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// PutJSON implementasi ArtifactStore: simpan payload JSON di key
func (s *Store) PutJSON(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	// URL publik (jika bucket public), kalau private harus generate presigned URL
	return s.ObjectURL(key), nil
}

// ObjectURL returns the path-style URL of key in the bucket.
func (s *Store) ObjectURL(key string) string {
	u := s.client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, s.bucketName, key)
}

// Check reports whether the bucket is reachable, for health checks.
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}
