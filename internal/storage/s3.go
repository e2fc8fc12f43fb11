package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Service is a client for S3-compatible storage. It holds farmer voice
// notes and the JSON snapshots written by alert sweeps.
type S3Service struct {
	client *minio.Client
	bucket string
}

// NewS3Service initializes and returns a new S3 storage service.
// It connects to the MinIO server using credentials from environment variables.
func NewS3Service(bucket string) (*S3Service, error) {
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	if minioEndpoint == "" || minioAccessKey == "" || minioSecretKey == "" {
		return nil, fmt.Errorf("missing one or more required environment variables: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	minioClient, err := minio.New(minioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioAccessKey, minioSecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	log.Println("Successfully connected to MinIO endpoint:", minioEndpoint)
	return &S3Service{client: minioClient, bucket: bucket}, nil
}

// EnsureBucket creates the service's bucket if it does not exist yet.
func (s *S3Service) EnsureBucket(ctx context.Context, location string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %v", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: location}); err != nil {
			return err
		}
	}
	return nil
}

// PutAudio streams a farmer voice note into the bucket under the given key.
func (s *S3Service) PutAudio(ctx context.Context, objectKey, contentType string, body io.Reader, size int64) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, body, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store audio object: %v", err)
	}
	log.Printf("Stored audio object in bucket '%s' with key '%s'", s.bucket, objectKey)
	return nil
}

// PresignedAudioURL returns a temporary download URL for a stored voice note.
func (s *S3Service) PresignedAudioURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %v", err)
	}
	return u.String(), nil
}

// PutJSON marshals v and stores it under the given key. Used for ranking
// snapshots, which are write-once per sweep.
func (s *S3Service) PutJSON(ctx context.Context, objectKey string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot to JSON: %v", err)
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("failed to store object in S3: %v", err)
	}
	return nil
}

// GetJSON retrieves an object and decodes it into out.
func (s *S3Service) GetJSON(ctx context.Context, objectKey string, out any) error {
	object, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get object from S3: %v", err)
	}
	defer object.Close()

	// Use json.NewDecoder to stream the JSON directly from the reader.
	if err := json.NewDecoder(object).Decode(out); err != nil {
		return fmt.Errorf("failed to decode JSON from stream: %v", err)
	}
	return nil
}
