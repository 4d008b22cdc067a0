package index

import (
	"context"

	"github.com/skyline93/seacache/internal/seaf"
)

// Index is the persistent index behind the cache core. All records are
// scoped by an account signature (see seaf.Account.Signature).
//
// Every method is safe for concurrent use; a single method call is atomic.
// Read-modify-write sequences spanning several calls are serialized by the
// caller.
type Index interface {
	// RepoDir returns the directory name mapped to repoID.
	RepoDir(ctx context.Context, account, repoID string) (dir string, ok bool, err error)
	// RepoDirTaken reports whether any repo of account is mapped to dir.
	RepoDirTaken(ctx context.Context, account, dir string) (bool, error)
	// SaveRepoDir records a new mapping. It fails when repoID is already
	// mapped or dir is taken.
	SaveRepoDir(ctx context.Context, account, repoID, dir string) error

	// ContentID returns the content id of the cached listing of (repoID, path).
	ContentID(ctx context.Context, account, repoID, path string) (id seaf.ID, ok bool, err error)
	// SetContentID points (repoID, path) at id and returns the previous
	// content id, which is null if there was none.
	SetContentID(ctx context.Context, account, repoID, path string, id seaf.ID) (old seaf.ID, err error)
	// RemoveContentID drops the entry of (repoID, path) and returns its
	// content id.
	RemoveContentID(ctx context.Context, account, repoID, path string) (old seaf.ID, err error)
	// ContentRefs returns the number of entries pointing at id.
	ContentRefs(ctx context.Context, account string, id seaf.ID) (int, error)
	// ContentIDs returns all content ids referenced by account.
	ContentIDs(ctx context.Context, account string) (seaf.IDSet, error)
	// RemoveContentIDs drops all listing entries of account.
	RemoveContentIDs(ctx context.Context, account string) error

	// CachedFile returns the version entry of a local copy, or nil.
	CachedFile(ctx context.Context, account, repoID, path string) (*seaf.CachedFile, error)
	CachedFiles(ctx context.Context, account string) ([]seaf.CachedFile, error)
	SaveCachedFile(ctx context.Context, f seaf.CachedFile) error
	RemoveCachedFile(ctx context.Context, account, repoID, path string) error

	// StarredFiles returns the raw starred files list, or nil.
	StarredFiles(ctx context.Context, account string) ([]byte, error)
	SaveStarredFiles(ctx context.Context, account string, raw []byte) error

	Close() error
}
