package mirror

import (
	"context"
	"path"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/seaf"
)

// SyncCoordinator runs mutations on the server and folds the resulting
// directory listings back into the DirentCache. When a mutation fails
// nothing in the caches changes.
type SyncCoordinator struct {
	remote  Remote
	dirents *DirentCache
	gate    *RefreshGate
}

// NewSyncCoordinator returns a coordinator updating dirents and gate.
func NewSyncCoordinator(remote Remote, dirents *DirentCache, gate *RefreshGate) *SyncCoordinator {
	return &SyncCoordinator{remote: remote, dirents: dirents, gate: gate}
}

func (s *SyncCoordinator) checkOnline() error {
	if !s.remote.Online() {
		return errors.ErrNetworkUnavailable
	}
	return nil
}

// cleanPath returns the canonical form of a repo path: absolute, without
// trailing slash or dot elements. Index keys and scopes use it.
func cleanPath(p string) string {
	return path.Clean("/" + p)
}

func parentDir(p string) string {
	return path.Dir(cleanPath(p))
}

// apply stores a listing returned by a successful mutation. The mutation
// already happened, so a bad listing only makes the directory stale.
func (s *SyncCoordinator) apply(ctx context.Context, repoID, dir string, l *seaf.DirListing) {
	scope := DirScope(repoID, dir)
	if l == nil {
		s.gate.Invalidate(scope)
		return
	}
	if err := s.dirents.ApplyPostMutationState(ctx, repoID, dir, l); err != nil {
		log.Warnf("cannot store listing of %v:%v: %v", repoID, dir, err)
		s.gate.Invalidate(scope)
		return
	}
	s.gate.MarkRefreshed(scope)
}

// refresh fetches the listing of dir after a mutation that did not return it.
func (s *SyncCoordinator) refresh(ctx context.Context, repoID, dir string) error {
	scope := DirScope(repoID, dir)
	if _, err := s.dirents.FetchOrValidate(ctx, repoID, dir); err != nil {
		s.gate.Invalidate(scope)
		return err
	}
	s.gate.MarkRefreshed(scope)
	return nil
}

// CreateDir creates directory name in parentDir.
func (s *SyncCoordinator) CreateDir(ctx context.Context, repoID, parentDir, name string) error {
	if err := s.checkOnline(); err != nil {
		return err
	}
	l, err := s.remote.CreateDir(ctx, repoID, parentDir, name)
	if err != nil {
		return errors.Remote("create dir", err)
	}
	s.apply(ctx, repoID, parentDir, l)
	return nil
}

// CreateFile creates the empty file name in parentDir.
func (s *SyncCoordinator) CreateFile(ctx context.Context, repoID, parentDir, name string) error {
	if err := s.checkOnline(); err != nil {
		return err
	}
	l, err := s.remote.CreateFile(ctx, repoID, parentDir, name)
	if err != nil {
		return errors.Remote("create file", err)
	}
	s.apply(ctx, repoID, parentDir, l)
	return nil
}

// Rename renames the file or directory at p to newName.
func (s *SyncCoordinator) Rename(ctx context.Context, repoID, p, newName string, isDir bool) error {
	if err := s.checkOnline(); err != nil {
		return err
	}
	l, err := s.remote.Rename(ctx, repoID, p, newName, isDir)
	if err != nil {
		return errors.Remote("rename", err)
	}
	s.apply(ctx, repoID, parentDir(p), l)
	return nil
}

// Delete deletes the file or directory at p.
func (s *SyncCoordinator) Delete(ctx context.Context, repoID, p string, isDir bool) error {
	if err := s.checkOnline(); err != nil {
		return err
	}
	l, err := s.remote.Delete(ctx, repoID, p, isDir)
	if err != nil {
		return errors.Remote("delete", err)
	}
	s.apply(ctx, repoID, parentDir(p), l)
	if isDir {
		if err := s.dirents.Remove(ctx, repoID, p); err != nil {
			log.Warnf("cannot drop listing of deleted directory %v: %v", p, err)
		}
	}
	return nil
}

// Copy copies srcName from srcDir to dstDir and refreshes the destination
// listing.
func (s *SyncCoordinator) Copy(ctx context.Context, srcRepo, srcDir, srcName, dstRepo, dstDir string) error {
	if err := s.checkOnline(); err != nil {
		return err
	}
	if _, err := s.remote.Copy(ctx, srcRepo, srcDir, srcName, dstRepo, dstDir); err != nil {
		return errors.Remote("copy", err)
	}
	return s.refresh(ctx, dstRepo, dstDir)
}

// Move moves srcName from srcDir to dstDir. Both listings are refreshed
// since the source listing cannot be derived from anything the server
// returns; a destination listing returned by the move is stored last.
func (s *SyncCoordinator) Move(ctx context.Context, srcRepo, srcDir, srcName, dstRepo, dstDir string, batch bool) error {
	if err := s.checkOnline(); err != nil {
		return err
	}
	l, err := s.remote.Move(ctx, srcRepo, srcDir, srcName, dstRepo, dstDir, batch)
	if err != nil {
		return errors.Remote("move", err)
	}

	wg, wgCtx := errgroup.WithContext(ctx)
	wg.Go(func() error { return s.refresh(wgCtx, dstRepo, dstDir) })
	wg.Go(func() error { return s.refresh(wgCtx, srcRepo, srcDir) })
	if err := wg.Wait(); err != nil {
		return err
	}

	if l != nil {
		s.apply(ctx, dstRepo, dstDir, l)
	}
	return nil
}
