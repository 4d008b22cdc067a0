package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/fs"
	"github.com/skyline93/seacache/internal/seaf"
)

func (c *Cache) canBeCached(t seaf.FileType) bool {
	if c == nil {
		return false
	}

	_, ok := cacheLayoutPaths[t]
	return ok
}

func (c *Cache) filename(h seaf.Handle) string {
	if len(h.Name) < 2 {
		panic("Name is empty or too short")
	}
	if h.Type == seaf.RepoListFile {
		return filepath.Join(c.path, cacheLayoutPaths[h.Type], "repos-"+h.Name+".dat")
	}
	subdir := h.Name[:2]
	return filepath.Join(c.path, cacheLayoutPaths[h.Type], subdir, h.Name)
}

// Save writes data for h. The write is atomic: concurrent readers see either
// the previous content or data, never a partial file. Saving over an existing
// file replaces it.
func (c *Cache) Save(h seaf.Handle, data []byte) error {
	if !c.canBeCached(h.Type) {
		return errors.Errorf("cannot cache %v", h.Type)
	}

	log.Debugf("save %v %v to cache", h.Type, h.Name)
	return fs.WriteFileAtomic(c.filename(h), c.compress(data), 0600)
}

// Load returns the content of h. A missing file yields ErrCacheMiss, an
// unreadable one a CorruptCacheError.
func (c *Cache) Load(h seaf.Handle) ([]byte, error) {
	if !c.canBeCached(h.Type) {
		return nil, errors.Errorf("cannot cache %v", h.Type)
	}

	buf, err := fs.ReadFile(c.filename(h))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.CorruptCache(h.Name, err)
	}

	data, err := c.decompress(buf)
	if err != nil {
		return nil, errors.CorruptCache(h.Name, err)
	}
	return data, nil
}

// Forget removes a broken file from the cache. A file is deleted at most
// once per process, which prevents repeatedly caching and forgetting it.
func (c *Cache) Forget(h seaf.Handle) error {
	if _, ok := c.forgotten.Load(h); ok {
		return fmt.Errorf("circuit breaker prevents repeated deletion of cached file %v", h)
	}

	removed, err := c.Remove(h)
	if removed {
		c.forgotten.Store(h, struct{}{})
	}
	return err
}

// Remove deletes a file. When the file is not cached, no error is returned.
func (c *Cache) Remove(h seaf.Handle) (bool, error) {
	if !c.canBeCached(h.Type) {
		return false, nil
	}

	err := fs.Remove(c.filename(h))
	removed := err == nil
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	return removed, err
}

// Clear removes all files of type t from the cache that are not contained in
// the set valid. It returns the number of removed files.
func (c *Cache) Clear(t seaf.FileType, valid seaf.IDSet) (int, error) {
	log.Debugf("clearing cache for %v: %v valid files", t, len(valid))
	if t != seaf.DirentFile {
		return 0, nil
	}

	list, err := c.List(t)
	if err != nil {
		return 0, err
	}

	n := 0
	for id := range list {
		if valid.Has(id) {
			continue
		}

		if err = fs.Remove(c.filename(seaf.Handle{Type: t, Name: id.String()})); err != nil {
			return n, errors.WithStack(err)
		}
		n++
	}

	return n, nil
}

func isFile(fi os.FileInfo) bool {
	return fi.Mode()&(os.ModeType|os.ModeCharDevice) == 0
}

// List returns a list of all blobs of type t in the cache.
func (c *Cache) List(t seaf.FileType) (seaf.IDSet, error) {
	if t != seaf.DirentFile {
		return nil, errors.Errorf("cannot list %v files", t)
	}

	list := seaf.NewIDSet()
	dir := filepath.Join(c.path, cacheLayoutPaths[t])
	err := filepath.Walk(dir, func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return errors.Wrap(err, "Walk")
		}

		if !isFile(fi) {
			return nil
		}

		id, err := seaf.ParseID(filepath.Base(name))
		if err != nil {
			return nil
		}

		list.Insert(id)
		return nil
	})

	return list, err
}

// Wipe removes everything below the cache directory and recreates the
// empty layout.
func (c *Cache) Wipe() error {
	for _, p := range cacheLayoutPaths {
		d := filepath.Join(c.path, p)
		if err := fs.RemoveAll(d); err != nil {
			return errors.WithStack(err)
		}
		if err := fs.MkdirAll(d, 0700); err != nil {
			return errors.Storage(d, err)
		}
	}
	return nil
}

const zstdVersion = 2

func (c *Cache) compress(p []byte) []byte {
	if c.compression == CompressionOff {
		return p
	}

	// version byte
	out := []byte{zstdVersion}
	return c.getZstdEncoder().EncodeAll(p, out)
}

func (c *Cache) decompress(p []byte) ([]byte, error) {
	if len(p) == 0 {
		// too short for version header
		return p, nil
	}
	if p[0] == '[' || p[0] == '{' {
		// probably raw JSON
		return p, nil
	}
	// version
	if p[0] != zstdVersion {
		return nil, errors.New("not supported encoding format")
	}

	return c.getZstdDecoder().DecodeAll(p[1:], nil)
}

func (c *Cache) getZstdEncoder() *zstd.Encoder {
	c.allocEnc.Do(func() {
		level := zstd.SpeedDefault
		if c.compression == CompressionMax {
			level = zstd.SpeedBestCompression
		}

		opts := []zstd.EOption{
			zstd.WithEncoderLevel(level),
			zstd.WithEncoderCRC(false),
			zstd.WithWindowSize(512 * 1024),
		}

		enc, err := zstd.NewWriter(nil, opts...)
		if err != nil {
			panic(err)
		}
		c.enc = enc
	})
	return c.enc
}

func (c *Cache) getZstdDecoder() *zstd.Decoder {
	c.allocDec.Do(func() {
		opts := []zstd.DOption{
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(256 * 1024 * 1024),
		}

		dec, err := zstd.NewReader(nil, opts...)
		if err != nil {
			panic(err)
		}
		c.dec = dec
	})
	return c.dec
}
