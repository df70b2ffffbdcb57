// Package blob stores concatenated episode audio assets.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// FilesystemStore implements the BlobStore interface on a local
// directory. The reference recorded on episodes is the public base URL
// plus the key, so swapping in object storage later only changes this
// package.
type FilesystemStore struct {
	path    string
	baseURL string
	logger  arbor.ILogger
}

// NewFilesystemStore creates the audio directory and returns the store
func NewFilesystemStore(cfg *common.BlobConfig, logger arbor.ILogger) (*FilesystemStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("blob path is required")
	}
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "/audio"
	}

	return &FilesystemStore{
		path:    cfg.Path,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Put writes the asset atomically (write then rename) and returns its
// public reference
func (s *FilesystemStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	target := filepath.Join(s.path, key)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", &models.PersistenceError{Entity: "audio asset", Err: err}
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", &models.PersistenceError{Entity: "audio asset", Err: err}
	}

	s.logger.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Audio asset stored")

	return s.baseURL + "/" + key, nil
}

func (s *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.path, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("audio asset %s not found", key)
		}
		return nil, &models.PersistenceError{Entity: "audio asset", Err: err}
	}
	return data, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.path, key)); err != nil && !os.IsNotExist(err) {
		return &models.PersistenceError{Entity: "audio asset", Err: err}
	}
	return nil
}

// Dir returns the directory assets are stored under, for static serving
func (s *FilesystemStore) Dir() string {
	return s.path
}

func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

var _ interfaces.BlobStore = (*FilesystemStore)(nil)
