package mirror

import (
	"context"

	"github.com/skyline93/seacache/internal/seaf"
)

// Remote is the server as seen by the cache core. Errors are either
// connectivity failures (errors.ErrNetworkUnavailable) or remote failures.
type Remote interface {
	// Online reports whether the server is believed reachable.
	Online() bool

	ListRepos(ctx context.Context) ([]byte, error)
	// ListDirents returns the listing of (repoID, path). If known is set
	// and still current, the result carries known and a nil Raw.
	ListDirents(ctx context.Context, repoID, path string, known seaf.ID) (*seaf.DirListing, error)
	// GetFile downloads (repoID, path) to dest unless known is the current
	// file id. It returns the current file id.
	GetFile(ctx context.Context, repoID, path, dest, known string) (string, error)
	UploadFile(ctx context.Context, repoID, dir, src string, update bool) (string, error)

	// The mutations return the listing of the affected directory when the
	// server sends one, nil otherwise.
	CreateDir(ctx context.Context, repoID, parentDir, name string) (*seaf.DirListing, error)
	CreateFile(ctx context.Context, repoID, parentDir, name string) (*seaf.DirListing, error)
	Rename(ctx context.Context, repoID, path, newName string, isDir bool) (*seaf.DirListing, error)
	Delete(ctx context.Context, repoID, path string, isDir bool) (*seaf.DirListing, error)
	Copy(ctx context.Context, srcRepo, srcDir, srcName, dstRepo, dstDir string) (*seaf.DirListing, error)
	Move(ctx context.Context, srcRepo, srcDir, srcName, dstRepo, dstDir string, batch bool) (*seaf.DirListing, error)

	SetPassword(ctx context.Context, repoID, password string) error
	AccountInfo(ctx context.Context) ([]byte, error)
	ServerInfo(ctx context.Context) ([]byte, error)
	Events(ctx context.Context, offset int) ([]byte, error)
	Search(ctx context.Context, query string, page int) ([]byte, error)
	StarredFiles(ctx context.Context) ([]byte, error)
	Star(ctx context.Context, repoID, path string) error
	Unstar(ctx context.Context, repoID, path string) error
	HistoryChanges(ctx context.Context, repoID, commitID string) ([]byte, error)
	ThumbnailURL(repoID, path string, size int) string
}

// MediaNotifier is told about local files that changed, e.g. to update a
// gallery index.
type MediaNotifier interface {
	FileChanged(localPath string)
}

type nopNotifier struct{}

func (nopNotifier) FileChanged(string) {}
