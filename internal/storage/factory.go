package storage

import (
	"fmt"
	"strings"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage configuration; Type selects the backend.
// Returns:
//   - ObjectStorage: initialized storage implementation.
//   - error: non-nil if the backend is unknown or cannot be created.
func NewStorage(cfg *Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		if cfg.Endpoint == "" {
			cfg.Type = StorageTypeLocal
		} else {
			cfg.Type = detectStorageType(cfg.Endpoint)
		}
	}

	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalDir, cfg.PublicURL)
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
