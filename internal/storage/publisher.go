package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	poolerrors "github.com/molpool/molpool/internal/errors"
)

// Publisher copies run artifacts to object storage under
// <prefix>/<run-id>/ and retrieves the fitted pool of a trained run.
type Publisher struct {
	store  ObjectStorage
	prefix string
	logger *zap.Logger
}

// NewPublisher creates a publisher writing below prefix.
func NewPublisher(store ObjectStorage, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{store: store, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// RunPrefix returns the object prefix of a run.
func (p *Publisher) RunPrefix(runID string) string {
	return path.Join(p.prefix, runID)
}

// Publish uploads the files at the given paths, relative to runDir, and
// returns the object keys written.
func (p *Publisher) Publish(ctx context.Context, runID, runDir string, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, rel := range files {
		key := path.Join(p.RunPrefix(runID), filepath.ToSlash(rel))
		if err := p.store.Upload(ctx, filepath.Join(runDir, rel), key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	p.logger.Info("run artifacts published",
		zap.String("prefix", p.RunPrefix(runID)),
		zap.Int("objects", len(keys)))
	return keys, nil
}

// FetchTrained downloads every object under trainedPrefix/subdir into
// destDir/subdir, preserving relative paths.
func (p *Publisher) FetchTrained(ctx context.Context, trainedPrefix, subdir, destDir string) ([]string, error) {
	src := path.Join(strings.Trim(trainedPrefix, "/"), filepath.ToSlash(subdir))
	keys, err := p.store.ListObjects(ctx, src)
	if err != nil {
		return nil, poolerrors.NewStorageError(poolerrors.CodeDownloadFailed, "list "+src, err)
	}
	if len(keys) == 0 {
		return nil, poolerrors.MissingArtifact(src, ErrObjectNotFound)
	}

	var local []string
	for _, key := range keys {
		rel := strings.TrimPrefix(strings.TrimPrefix(key, src), "/")
		if rel == "" || strings.Contains(rel, "..") {
			return nil, fmt.Errorf("storage: unexpected object key %s", key)
		}
		dst := filepath.Join(destDir, filepath.FromSlash(subdir), filepath.FromSlash(rel))
		if err := p.store.Download(ctx, key, dst); err != nil {
			return nil, err
		}
		local = append(local, dst)
	}
	p.logger.Info("trained artifacts fetched",
		zap.String("prefix", src),
		zap.Int("objects", len(local)))
	return local, nil
}
