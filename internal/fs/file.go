package fs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/skyline93/seacache/internal/errors"
)

// Stat returns a FileInfo structure describing the named file.
// If there is an error, it will be of type *PathError.
func Stat(name string) (os.FileInfo, error) {
	return os.Stat(fixpath(name))
}

// Lstat returns the FileInfo structure describing the named file without
// following a trailing symbolic link.
func Lstat(name string) (os.FileInfo, error) {
	return os.Lstat(fixpath(name))
}

// Exists returns true if anything (file, directory or link) is present at name.
func Exists(name string) bool {
	_, err := Lstat(name)
	return err == nil
}

// IsRegular returns true if name is a regular file.
func IsRegular(name string) bool {
	fi, err := Stat(name)
	return err == nil && fi.Mode().IsRegular()
}

// MkdirAll creates a directory named path, along with any necessary parents.
// If path is already a directory, MkdirAll does nothing and returns nil.
func MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(fixpath(path), perm)
}

// Remove removes the named file or (empty) directory.
func Remove(name string) error {
	return os.Remove(fixpath(name))
}

// RemoveIfExists removes a file, returning no error if it does not exist.
func RemoveIfExists(filename string) error {
	err := os.Remove(fixpath(filename))
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

// RemoveAll removes path and any children it contains.
func RemoveAll(path string) error {
	return os.RemoveAll(fixpath(path))
}

// ReadFile reads the named file.
func ReadFile(name string) ([]byte, error) {
	return os.ReadFile(fixpath(name))
}

// OpenFile is the generalized open call.
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(fixpath(name), flag, perm)
}

// TempName returns a unique name for a temporary file next to name.
func TempName(name string) string {
	return name + ".tmp-" + uuid.NewString()[:8]
}

// WriteFileAtomic writes data to a temporary file in the same directory and
// renames it to name, so readers observe either the old or the new content.
// Missing parent directories are created.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	if err := MkdirAll(dir, 0700); err != nil {
		return errors.WithStack(err)
	}

	tmp := TempName(name)
	f, err := OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = RemoveIfExists(tmp)
		return errors.Wrap(err, "write")
	}

	if err := os.Rename(tmp, fixpath(name)); err != nil {
		_ = RemoveIfExists(tmp)
		return errors.Wrap(err, "rename")
	}

	return fsyncDir(dir)
}

// CopyFile copies the content of src to dst, replacing dst atomically.
func CopyFile(src, dst string) error {
	in, err := os.Open(fixpath(src))
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = in.Close() }()

	if err := MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return errors.WithStack(err)
	}

	tmp := TempName(dst)
	out, err := OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = RemoveIfExists(tmp)
		return errors.Wrapf(err, "copy %v", src)
	}

	if err := os.Rename(tmp, fixpath(dst)); err != nil {
		_ = RemoveIfExists(tmp)
		return errors.Wrap(err, "rename")
	}
	return nil
}
