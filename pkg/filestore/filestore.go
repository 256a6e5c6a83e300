// Package filestore abstracts the backing blob store for inventory backups
// and generated label archives. MinIO backs it in production; folders map to
// object-key prefixes and are only ever created, never deleted.
package filestore

import "context"

// ObjectInfo describes a stored object within a folder.
type ObjectInfo struct {
	Key  string
	Size int64
}

// FileStore is the narrow contract over the backing blob store.
type FileStore interface {
	// EnsureFolder makes sure the folder prefix exists and returns its path.
	EnsureFolder(ctx context.Context, path string) (string, error)
	Upload(ctx context.Context, folder, filename string, content []byte, contentType string) (string, error)
	List(ctx context.Context, folder string) ([]ObjectInfo, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
