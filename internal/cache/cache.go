package cache

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/fs"
	"github.com/skyline93/seacache/internal/seaf"
)

// Cache manages the side cache area of one account: directory snapshot blobs,
// repo list snapshots and temporary files.
type Cache struct {
	path    string
	Created bool

	compression CompressionMode

	forgotten sync.Map

	allocEnc sync.Once
	allocDec sync.Once
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

var cacheLayoutPaths = map[seaf.FileType]string{
	seaf.DirentFile:   "dirents",
	seaf.RepoListFile: "repos",
	seaf.TempFile:     "tmp",
}

// CompressionMode configures if blobs should be compressed.
type CompressionMode uint

// Constants for the different compression levels.
const (
	CompressionAuto    CompressionMode = 0
	CompressionOff     CompressionMode = 1
	CompressionMax     CompressionMode = 2
	CompressionInvalid CompressionMode = 3
)

// ParseCompression parses the textual representation of a CompressionMode.
func ParseCompression(s string) (CompressionMode, error) {
	switch s {
	case "auto", "":
		return CompressionAuto, nil
	case "off":
		return CompressionOff, nil
	case "max":
		return CompressionMax, nil
	}
	return CompressionInvalid, errors.Errorf("invalid compression mode %q, must be one of (auto|off|max)", s)
}

func (c CompressionMode) String() string {
	switch c {
	case CompressionAuto:
		return "auto"
	case CompressionOff:
		return "off"
	case CompressionMax:
		return "max"
	}
	return "invalid"
}

// New opens the cache at dir, creating its directories when missing. A
// directory that cannot be created is a storage fault.
func New(dir string, compression CompressionMode) (*Cache, error) {
	if compression == CompressionInvalid {
		return nil, errors.New("invalid compression mode")
	}

	created := false
	if _, err := fs.Stat(dir); errors.Is(err, os.ErrNotExist) {
		created = true
	}

	for _, p := range cacheLayoutPaths {
		d := filepath.Join(dir, p)
		if err := fs.MkdirAll(d, 0700); err != nil {
			return nil, errors.Storage(d, err)
		}
	}

	return &Cache{
		path:        dir,
		Created:     created,
		compression: compression,
	}, nil
}

// Path returns the base directory of the cache.
func (c *Cache) Path() string {
	return c.path
}
