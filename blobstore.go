package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/google/uuid"
)

const localRefPrefix = "local://"

// BlobStore keeps uploaded files. References returned by Put are either blob
// URLs or local:// paths and are accepted by Get and Delete.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// UploadStore writes every file to a local directory and, when an Azure
// container is configured, uploads it there too.
type UploadStore struct {
	dir       string
	azure     *azblob.Client
	container string
	logger    *slog.Logger
}

// NewUploadStore prepares the local directory and, if a connection string is
// configured, the Azure container. Azure problems are logged and the store
// falls back to local files only.
func NewUploadStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*UploadStore, error) {
	logger = logger.With("component", "blobstore")
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	s := &UploadStore{dir: cfg.UploadDir, container: cfg.AzureContainer, logger: logger}
	if cfg.AzureConnectionString == "" {
		logger.Info("Azure storage not configured, keeping uploads on local disk", "dir", cfg.UploadDir)
		return s, nil
	}

	client, err := azblob.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
	if err != nil {
		logger.Warn("Invalid Azure storage connection string, keeping uploads on local disk", "error", err)
		return s, nil
	}
	if _, err := client.CreateContainer(ctx, cfg.AzureContainer, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		logger.Warn("Azure container unavailable, keeping uploads on local disk", "container", cfg.AzureContainer, "error", err)
		return s, nil
	}
	s.azure = client
	logger.Info("Azure blob storage ready", "container", cfg.AzureContainer)
	return s, nil
}

func (s *UploadStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	blobName := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	localPath := filepath.Join(s.dir, blobName)
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	if s.azure == nil {
		return localRefPrefix + localPath, nil
	}
	if _, err := s.azure.UploadBuffer(ctx, s.container, blobName, data, nil); err != nil {
		s.logger.Warn("Azure upload failed, using local copy", "blob", blobName, "error", err)
		return localRefPrefix + localPath, nil
	}
	return s.azure.ServiceClient().NewContainerClient(s.container).NewBlobClient(blobName).URL(), nil
}

func (s *UploadStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if localPath, ok := strings.CutPrefix(ref, localRefPrefix); ok {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}
	if s.azure == nil {
		return nil, fmt.Errorf("blob %q: azure storage not configured", ref)
	}

	resp, err := s.azure.DownloadStream(ctx, s.container, blobNameFromRef(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("download blob: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *UploadStore) Delete(ctx context.Context, ref string) error {
	if localPath, ok := strings.CutPrefix(ref, localRefPrefix); ok {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove upload: %w", err)
		}
		return nil
	}
	if s.azure == nil {
		return fmt.Errorf("blob %q: azure storage not configured", ref)
	}

	blobName := blobNameFromRef(ref)
	if _, err := s.azure.DeleteBlob(ctx, s.container, blobName, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := os.Remove(filepath.Join(s.dir, blobName)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove local copy", "blob", blobName, "error", err)
	}
	return nil
}

// blobNameFromRef returns the last path segment of a blob URL.
func blobNameFromRef(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return path.Base(ref)
}
