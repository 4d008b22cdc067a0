package cache

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/fs"
	"github.com/skyline93/seacache/internal/seaf"
)

func (c *Cache) tempDir() string {
	return filepath.Join(c.path, cacheLayoutPaths[seaf.TempFile])
}

// CreateTempFile creates an empty file in the temp area. The caller owns
// the returned file and removes it when done.
func (c *Cache) CreateTempFile() (*os.File, error) {
	name := filepath.Join(c.tempDir(), "file-"+uuid.NewString())
	f, err := fs.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Storage(name, err)
	}
	return f, nil
}

// CreateTempDir creates an empty directory in the temp area.
func (c *Cache) CreateTempDir() (string, error) {
	name := filepath.Join(c.tempDir(), "dir-"+uuid.NewString())
	if err := fs.MkdirAll(name, 0700); err != nil {
		return "", errors.Storage(name, err)
	}
	return name, nil
}

// ClearTemp removes all temporary files and directories.
func (c *Cache) ClearTemp() error {
	entries, err := os.ReadDir(c.tempDir())
	if err != nil {
		return errors.WithStack(err)
	}
	for _, e := range entries {
		if err := fs.RemoveAll(filepath.Join(c.tempDir(), e.Name())); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
