package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"inventario-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements FileStore on a single bucket. Object keys are
// "<folder>/<filename>"; EnsureFolder writes a zero-byte marker object so
// empty folders remain listable.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and creates the bucket if absent.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", bucket, err)
		}
		log.Infof("created bucket %q", bucket)
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) EnsureFolder(ctx context.Context, path string) (string, error) {
	path = strings.Trim(path, "/")
	marker := path + "/.keep"
	_, err := s.client.StatObject(ctx, s.bucket, marker, minio.StatObjectOptions{})
	if err == nil {
		return path, nil
	}
	_, err = s.client.PutObject(ctx, s.bucket, marker, bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to ensure folder %q: %w", path, err)
	}
	return path, nil
}

func (s *MinioStore) Upload(ctx context.Context, folder, filename string, content []byte, contentType string) (string, error) {
	key := strings.Trim(folder, "/") + "/" + filename
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", key, err)
	}
	return key, nil
}

func (s *MinioStore) List(ctx context.Context, folder string) ([]ObjectInfo, error) {
	prefix := strings.Trim(folder, "/") + "/"
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/.keep") {
			continue
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size})
	}
	return objects, nil
}

func (s *MinioStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}
