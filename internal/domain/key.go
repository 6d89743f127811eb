package domain

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	storageKeyPrefix  = "images"
	storageKeyVersion = "v1"
)

// StorageKey builds the object key for a job: images/v1/{jobID}/{fileName}.
// The job ID is its own path segment so it can be recovered without looking at the file name.
func StorageKey(jobID, fileName string) string {
	return strings.Join([]string{storageKeyPrefix, storageKeyVersion, jobID, SanitizeFileName(fileName)}, "/")
}

// ParseStorageKey recovers the job ID from a key produced by StorageKey.
func ParseStorageKey(key string) (string, error) {
	parts := strings.SplitN(key, "/", 4)
	if len(parts) != 4 {
		return "", fmt.Errorf("%w: %q", ErrInvalidStorageKey, key)
	}

	if parts[0] != storageKeyPrefix || parts[1] != storageKeyVersion {
		return "", fmt.Errorf("%w: unsupported layout %q", ErrInvalidStorageKey, key)
	}

	if _, err := uuid.Parse(parts[2]); err != nil {
		return "", fmt.Errorf("%w: job id %q is not a UUID", ErrInvalidStorageKey, parts[2])
	}

	if parts[3] == "" || strings.Contains(parts[3], "/") {
		return "", fmt.Errorf("%w: bad file segment in %q", ErrInvalidStorageKey, key)
	}

	return parts[2], nil
}

// SanitizeFileName keeps the base name of a client-supplied file name so it
// occupies exactly one key segment.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == ".." {
		return "upload"
	}
	return base
}
