package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	uploadTimeout = 30 * time.Second
	removeTimeout = 10 * time.Second
)

// ImageStorage stores asset photos in a MinIO/S3 bucket and maps public URLs
// back to object names for deletion.
type ImageStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewImageStorageFromEnv initialises ImageStorage using MINIO_* environment
// variables. When the variables are absent image storage is treated as
// unconfigured and (nil, nil) is returned.
func NewImageStorageFromEnv() (*ImageStorage, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

	publicURL := strings.TrimSpace(os.Getenv("MINIO_PUBLIC_URL"))
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	return &ImageStorage{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Upload writes data beneath objectName and returns the public URL. The call
// is bounded so a stalled remote cannot hang a request indefinitely.
func (s *ImageStorage) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("image storage is not configured")
	}

	objectName = strings.Trim(strings.TrimSpace(objectName), "/")
	if objectName == "" {
		return "", errors.New("object name is required")
	}
	if len(data) == 0 {
		return "", errors.New("object data is empty")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(uploadCtx, s.bucket, objectName, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: "inline",
		CacheControl:       "public, max-age=604800",
	})
	if err != nil {
		return "", fmt.Errorf("upload object %s: %w", objectName, err)
	}

	return s.buildPublicURL(objectName), nil
}

// Remove deletes the object referenced by the given URL. URLs that do not
// point into this storage are silently ignored.
func (s *ImageStorage) Remove(ctx context.Context, imageURL string) error {
	if s == nil || s.client == nil {
		return nil
	}
	objectName, ok := s.objectNameFromURL(imageURL)
	if !ok {
		return nil
	}

	removeCtx, cancel := context.WithTimeout(ctx, removeTimeout)
	defer cancel()

	return s.client.RemoveObject(removeCtx, s.bucket, objectName, minio.RemoveObjectOptions{})
}

func (s *ImageStorage) buildPublicURL(objectName string) string {
	base := strings.TrimSuffix(s.publicURL, "/")
	object := strings.TrimPrefix(objectName, "/")
	return fmt.Sprintf("%s/%s/%s", base, s.bucket, object)
}

// objectNameFromURL maps a previously returned public URL back to the object
// name inside the bucket.
func (s *ImageStorage) objectNameFromURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	base := strings.TrimSuffix(s.publicURL, "/")
	if base != "" && strings.HasPrefix(trimmed, base) {
		if candidate := s.stripBucketPrefix(strings.TrimPrefix(trimmed, base)); candidate != "" {
			return candidate, true
		}
	}

	target, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err == nil && baseURL.Host != "" && baseURL.Host == target.Host {
		if candidate := s.stripBucketPrefix(target.Path); candidate != "" {
			return candidate, true
		}
	}

	// Bare object paths are accepted too.
	if !strings.Contains(trimmed, "://") {
		if candidate := s.stripBucketPrefix(trimmed); candidate != "" {
			return candidate, true
		}
	}

	return "", false
}

func (s *ImageStorage) stripBucketPrefix(path string) string {
	candidate := strings.TrimPrefix(path, "/")
	candidate = strings.TrimPrefix(candidate, s.bucket+"/")
	return strings.TrimPrefix(candidate, "/")
}
