// Package storage uploads snapshots of the persistence root to object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gradebook/apiserver/config"
	"github.com/gradebook/apiserver/internal/logging"
)

// ObjectStorage is the subset of bucket operations a backup needs.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "s3":
		backend, err = NewS3Client(ctx, cfg.S3)
	case "":
		return nil, fmt.Errorf("no storage backend configured")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// BackupResult summarises an upload run.
type BackupResult struct {
	Prefix  string
	Objects int
	Bytes   int64
}

// Backup walks root and uploads every regular file under
// "<prefix>/<relative path>". Temp files left by interrupted writes are
// skipped. An empty prefix becomes a UTC timestamp.
func Backup(ctx context.Context, backend ObjectStorage, root, prefix string, log logging.Logger) (BackupResult, error) {
	if prefix == "" {
		prefix = "backups/" + time.Now().UTC().Format("20060102T150405Z")
	}
	result := BackupResult{Prefix: prefix}

	if err := backend.EnsureBucket(ctx); err != nil {
		return result, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))

		n, err := upload(ctx, backend, p, key)
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		result.Objects++
		result.Bytes += n
		log.Debug(ctx, "object uploaded", "key", key, "bytes", n)
		return nil
	})
	if err != nil {
		return result, err
	}

	log.Info(ctx, "backup complete", "bucket", backend.Bucket(), "prefix", prefix, "objects", result.Objects, "bytes", result.Bytes)
	return result, nil
}

func upload(ctx context.Context, backend ObjectStorage, p, key string) (int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := backend.Put(ctx, key, f, info.Size(), "application/json"); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
