// Package storage publishes run artifacts to object storage and fetches the
// fitted pool of earlier runs back from it.
package storage

import (
	"context"

	poolerrors "github.com/molpool/molpool/internal/errors"
)

// Storage backends.
const (
	TypeNone  = "none"
	TypeLocal = "local"
	TypeS3    = "s3"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = poolerrors.New(poolerrors.ErrCategoryStorage, poolerrors.CodeObjectNotFound, "object not found")

// ObjectStorage abstracts object storage operations.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Upload copies the local file to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies objectPath to the local file, creating parent directories.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

func uploadFailed(objectPath string, cause error) error {
	return poolerrors.NewStorageError(poolerrors.CodeUploadFailed, "upload "+objectPath, cause)
}

func downloadFailed(objectPath string, cause error) error {
	return poolerrors.NewStorageError(poolerrors.CodeDownloadFailed, "download "+objectPath, cause)
}
