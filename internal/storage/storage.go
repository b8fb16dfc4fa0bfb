// Package storage keeps data product files, either under a local media root
// or in a MinIO bucket. Both backends address files by the same slash
// separated key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotExist is returned when no file is stored under a key.
var ErrNotExist = errors.New("file does not exist")

type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// maxKeyAttempts bounds the search for a free key in AvailableKey.
const maxKeyAttempts = 100

// AvailableKey returns key when nothing is stored under it, otherwise key
// with a random suffix before its extension, e.g. img_3f9a1c2.fits.
func AvailableKey(ctx context.Context, store Store, key string) (string, error) {
	ext := path.Ext(key)
	root := strings.TrimSuffix(key, ext)

	candidate := key
	for i := 0; i < maxKeyAttempts; i++ {
		exists, err := store.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = root + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:7] + ext
	}
	return "", fmt.Errorf("no free storage key for %s", key)
}

// DataProductPath returns the key a data product file is stored under:
// <target identifier>/<facility>/<file name>. Products without an
// observation record go under "none".
func DataProductPath(targetIdentifier, facility, filename string) string {
	if facility == "" {
		facility = "none"
	}
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return path.Join(targetIdentifier, facility, filename)
}
