package mirror

import (
	"context"
	"path"
	"path/filepath"

	"github.com/pkg/xattr"
	log "github.com/sirupsen/logrus"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/fs"
	"github.com/skyline93/seacache/internal/index"
	"github.com/skyline93/seacache/internal/metrics"
	"github.com/skyline93/seacache/internal/seaf"
)

// fileIDAttr tags local copies with the file id they were synced at, so a
// copy can still be validated when the index lost its entry.
const fileIDAttr = "user.seacache.fileid"

// FileVersionCache tracks the file id of every local file copy, which lets
// the client decide without a round trip whether a copy is current.
type FileVersionCache struct {
	account  string
	idx      index.Index
	remote   Remote
	resolver *Resolver
	notifier MediaNotifier

	files keyedMutex
}

// NewFileVersionCache returns the file version cache of account. notifier
// may be nil.
func NewFileVersionCache(account seaf.Account, idx index.Index, remote Remote, resolver *Resolver, notifier MediaNotifier) *FileVersionCache {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &FileVersionCache{
		account:  account.Signature(),
		idx:      idx,
		remote:   remote,
		resolver: resolver,
		notifier: notifier,
	}
}

// IsLocalCopyFresh reports whether the local copy of (repoID, path) can be
// used. Without a local copy it is false. While offline any local copy is
// trusted; otherwise the recorded file id must equal knownFileID.
func (f *FileVersionCache) IsLocalCopyFresh(ctx context.Context, repoID, p, knownFileID string) (bool, error) {
	p = cleanPath(p)
	local, ok, err := f.resolver.ExistingPath(ctx, repoID, p)
	if err != nil {
		return false, err
	}
	if !ok || !fs.IsRegular(local) {
		metrics.RecordFileFreshness("missing")
		return false, nil
	}

	if !f.remote.Online() {
		metrics.RecordFileFreshness("offline")
		return true, nil
	}

	cf, err := f.idx.CachedFile(ctx, f.account, repoID, p)
	if err != nil {
		return false, err
	}
	if cf != nil && cf.FileID != "" && cf.FileID == knownFileID {
		metrics.RecordFileFreshness("fresh")
		return true, nil
	}
	metrics.RecordFileFreshness("stale")
	return false, nil
}

// LocalCachedFile returns the local copy of (repoID, path) if it is fresh
// with respect to fileID.
func (f *FileVersionCache) LocalCachedFile(ctx context.Context, repoID, p, fileID string) (string, bool, error) {
	fresh, err := f.IsLocalCopyFresh(ctx, repoID, p, fileID)
	if err != nil || !fresh {
		return "", false, err
	}
	local, _, err := f.resolver.ExistingPath(ctx, repoID, p)
	return local, err == nil, err
}

func (f *FileVersionCache) record(ctx context.Context, repoName, repoID, p, fileID, localFile string) error {
	p = cleanPath(p)
	err := f.idx.SaveCachedFile(ctx, seaf.CachedFile{
		Account:  f.account,
		RepoID:   repoID,
		RepoName: repoName,
		Path:     p,
		FileID:   fileID,
	})
	if err != nil {
		return err
	}

	if err := xattr.Set(localFile, fileIDAttr, []byte(fileID)); err != nil {
		log.Debugf("cannot tag %v: %v", localFile, err)
	}
	f.notifier.FileChanged(localFile)
	return nil
}

// RecordDownload records that localFile holds version fileID of
// (repoID, path).
func (f *FileVersionCache) RecordDownload(ctx context.Context, repoName, repoID, p, fileID, localFile string) error {
	return f.record(ctx, repoName, repoID, p, fileID, localFile)
}

// RecordUpload records that localFile was uploaded as version fileID.
func (f *FileVersionCache) RecordUpload(ctx context.Context, repoName, repoID, p, fileID, localFile string) error {
	return f.record(ctx, repoName, repoID, p, fileID, localFile)
}

// Evict deletes the local copy and its entry. A file that cannot be deleted
// is logged; the entry is removed regardless.
func (f *FileVersionCache) Evict(ctx context.Context, cf seaf.CachedFile) error {
	cf.Path = cleanPath(cf.Path)
	local := cf.LocalPath
	if local == "" {
		p, ok, err := f.resolver.ExistingPath(ctx, cf.RepoID, cf.Path)
		if err != nil {
			return err
		}
		if ok {
			local = p
		}
	}

	if local != "" {
		if err := fs.RemoveIfExists(local); err != nil {
			log.Warnf("cannot delete local copy %v: %v", local, err)
		}
	}
	return f.idx.RemoveCachedFile(ctx, f.account, cf.RepoID, cf.Path)
}

// knownFileID returns the version of an existing local copy: the indexed
// one, else the tag on the file.
func (f *FileVersionCache) knownFileID(ctx context.Context, repoID, p, local string) (id string, indexed bool, err error) {
	if !fs.IsRegular(local) {
		return "", false, nil
	}
	cf, err := f.idx.CachedFile(ctx, f.account, repoID, p)
	if err != nil {
		return "", false, err
	}
	if cf != nil && cf.FileID != "" {
		return cf.FileID, true, nil
	}

	tag, err := xattr.Get(local, fileIDAttr)
	if err != nil {
		return "", false, nil
	}
	return string(tag), false, nil
}

// Download returns the local copy of (repoID, path), fetching it only if the
// server has a version other than the one on disk.
func (f *FileVersionCache) Download(ctx context.Context, repoName, repoID, p string) (string, error) {
	p = cleanPath(p)
	if !f.remote.Online() {
		return "", errors.ErrNetworkUnavailable
	}

	unlock := f.files.Lock(dirKey(repoID, p))
	defer unlock()

	local, err := f.resolver.LocalPath(ctx, repoName, repoID, p)
	if err != nil {
		return "", err
	}

	known, indexed, err := f.knownFileID(ctx, repoID, p, local)
	if err != nil {
		return "", err
	}

	fileID, err := f.remote.GetFile(ctx, repoID, p, local, known)
	if err != nil {
		return "", errors.Remote("get file", err)
	}

	if known != "" && fileID == known {
		if !indexed {
			log.Debugf("recovered version of %v from its tag", local)
			if err := f.RecordDownload(ctx, repoName, repoID, p, fileID, local); err != nil {
				return "", err
			}
		}
		return local, nil
	}

	if err := f.RecordDownload(ctx, repoName, repoID, p, fileID, local); err != nil {
		return "", err
	}
	return local, nil
}

// Upload uploads src into dir of the repo and records the new version. With
// copyToLocal a new file is also copied into the local repo directory.
// It returns the new file id, or "" if the server did not report one.
func (f *FileVersionCache) Upload(ctx context.Context, repoName, repoID, dir, src string, update, copyToLocal bool) (string, error) {
	if !f.remote.Online() {
		return "", errors.ErrNetworkUnavailable
	}

	fileID, err := f.remote.UploadFile(ctx, repoID, dir, src, update)
	if err != nil {
		return "", errors.Remote("upload", err)
	}
	if fileID == "" {
		return "", nil
	}

	p := cleanPath(path.Join(dir, filepath.Base(src)))
	local, err := f.resolver.LocalPath(ctx, repoName, repoID, p)
	if err != nil {
		return "", err
	}

	if copyToLocal && !update {
		if err := fs.CopyFile(src, local); err != nil {
			log.Warnf("cannot copy %v into the local repo: %v", src, err)
			return fileID, nil
		}
	}

	if err := f.RecordUpload(ctx, repoName, repoID, p, fileID, local); err != nil {
		return "", err
	}
	return fileID, nil
}

// CachedFile returns the entry of (repoID, path), or nil.
func (f *FileVersionCache) CachedFile(ctx context.Context, repoID, p string) (*seaf.CachedFile, error) {
	p = cleanPath(p)
	cf, err := f.idx.CachedFile(ctx, f.account, repoID, p)
	if err != nil || cf == nil {
		return nil, err
	}
	cf.LocalPath, _, err = f.resolver.ExistingPath(ctx, repoID, p)
	return cf, err
}

// CachedFiles returns all entries of the account.
func (f *FileVersionCache) CachedFiles(ctx context.Context) ([]seaf.CachedFile, error) {
	files, err := f.idx.CachedFiles(ctx, f.account)
	if err != nil {
		return nil, err
	}
	for i := range files {
		files[i].LocalPath, _, err = f.resolver.ExistingPath(ctx, files[i].RepoID, files[i].Path)
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
