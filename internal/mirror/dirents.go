package mirror

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/skyline93/seacache/internal/cache"
	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/index"
	"github.com/skyline93/seacache/internal/metrics"
	"github.com/skyline93/seacache/internal/seaf"
)

// Snapshot is a cached directory listing.
type Snapshot struct {
	ContentID seaf.ID
	Raw       []byte
	Dirents   []seaf.Dirent
}

// DirentCache stores directory listings by content id. Identical listings
// of different directories share one blob; a blob is deleted when the last
// index entry pointing at it is repointed or removed.
//
// Lock order: the per-directory lock, then blobMu. Index entries always
// change before blobs are written, and reference counts are taken under
// blobMu, so a blob that is still referenced is never deleted.
type DirentCache struct {
	account string
	idx     index.Index
	cache   *cache.Cache
	remote  Remote

	dirs   keyedMutex
	blobMu sync.Mutex
	group  singleflight.Group
}

// NewDirentCache returns the listing cache of account.
func NewDirentCache(account seaf.Account, idx index.Index, c *cache.Cache, remote Remote) *DirentCache {
	return &DirentCache{
		account: account.Signature(),
		idx:     idx,
		cache:   c,
		remote:  remote,
	}
}

func dirKey(repoID, path string) string {
	return repoID + "\x00" + path
}

func blobHandle(id seaf.ID) seaf.Handle {
	return seaf.Handle{Type: seaf.DirentFile, Name: id.String()}
}

// Lookup returns the cached listing of (repoID, path). A missing index
// entry or blob yields errors.ErrCacheMiss; an unreadable blob a
// CorruptCacheError, which also matches ErrCacheMiss. An empty directory is
// a hit with no dirents.
func (d *DirentCache) Lookup(ctx context.Context, repoID, path string) (*Snapshot, error) {
	path = cleanPath(path)
	id, ok, err := d.idx.ContentID(ctx, d.account, repoID, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.RecordDirentLookup("miss")
		return nil, errors.ErrCacheMiss
	}

	raw, err := d.cache.Load(blobHandle(id))
	if err == nil {
		var dirents []seaf.Dirent
		dirents, err = seaf.DecodeDirents(raw)
		if err == nil {
			metrics.RecordDirentLookup("hit")
			return &Snapshot{ContentID: id, Raw: raw, Dirents: dirents}, nil
		}
		err = errors.CorruptCache(id.String(), err)
	}

	var ce *errors.CorruptCacheError
	switch {
	case errors.As(err, &ce):
		metrics.RecordDirentLookup("corrupt")
		log.Warnf("dropping unreadable listing %v of %v:%v: %v", id.Str(), repoID, path, err)
		d.blobMu.Lock()
		if ferr := d.cache.Forget(blobHandle(id)); ferr != nil {
			log.Debug(ferr)
		}
		d.blobMu.Unlock()
	case errors.Is(err, errors.ErrCacheMiss):
		metrics.RecordDirentLookup("miss")
	}
	return nil, err
}

// FetchOrValidate asks the server for the listing of (repoID, path),
// sending the cached content id as validation token. If the server reports
// it unchanged, the cached snapshot is returned and nothing is written.
// Otherwise the new listing is persisted and returned. Concurrent calls for
// the same directory share one request, which is not canceled when one of
// the callers gives up; ctx only bounds the wait of this caller.
func (d *DirentCache) FetchOrValidate(ctx context.Context, repoID, path string) (*Snapshot, error) {
	path = cleanPath(path)
	shared := context.WithoutCancel(ctx)

	ch := d.group.DoChan(dirKey(repoID, path), func() (interface{}, error) {
		return d.fetchOrValidate(shared, repoID, path)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (d *DirentCache) fetchOrValidate(ctx context.Context, repoID, path string) (*Snapshot, error) {
	const op = "list dirents"

	base, _, err := d.idx.ContentID(ctx, d.account, repoID, path)
	if err != nil {
		return nil, err
	}
	cached, err := d.Lookup(ctx, repoID, path)
	if err != nil && !errors.Is(err, errors.ErrCacheMiss) {
		return nil, err
	}

	// only offer a token whose content we can actually serve
	var known seaf.ID
	if cached != nil {
		known = cached.ContentID
	}

	l, err := d.remote.ListDirents(ctx, repoID, path, known)
	if err != nil {
		return nil, errors.Remote(op, err)
	}

	if l.Raw == nil {
		if cached == nil || l.ContentID != cached.ContentID {
			return nil, errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, "empty listing"))
		}
		metrics.RecordConditionalFetch("unchanged")
		log.Debugf("listing %v:%v unchanged (%v)", repoID, path, known.Str())
		return cached, nil
	}

	snap, err := decodeListing(op, l)
	if err != nil {
		return nil, err
	}

	metrics.RecordConditionalFetch("changed")
	unlock := d.dirs.Lock(dirKey(repoID, path))
	defer unlock()

	// a mutation stored a newer listing while the request was in flight
	cur, _, err := d.idx.ContentID(ctx, d.account, repoID, path)
	if err != nil {
		return nil, err
	}
	if cur != base {
		log.Debugf("listing %v:%v changed to %v during fetch, keeping it", repoID, path, cur.Str())
		if newer, err := d.Lookup(ctx, repoID, path); err == nil {
			return newer, nil
		}
		return snap, nil
	}

	if err := d.persistLocked(ctx, repoID, path, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func decodeListing(op string, l *seaf.DirListing) (*Snapshot, error) {
	dirents, err := seaf.DecodeDirents(l.Raw)
	if err != nil {
		return nil, errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, err.Error()))
	}
	return &Snapshot{ContentID: l.ContentID, Raw: l.Raw, Dirents: dirents}, nil
}

// ApplyPostMutationState stores the listing of parentPath that the server
// returned for a mutation, so it does not have to be fetched again. A
// listing that does not decode leaves the cache untouched.
func (d *DirentCache) ApplyPostMutationState(ctx context.Context, repoID, parentPath string, l *seaf.DirListing) error {
	parentPath = cleanPath(parentPath)
	snap, err := decodeListing("apply listing", l)
	if err != nil {
		return err
	}
	return d.persist(ctx, repoID, parentPath, snap)
}

// persist points (repoID, path) at the snapshot, releases the blob of the
// previous content id and writes the new blob. Blob write failures are
// logged only: the index entry then points at a missing blob, which reads
// as a cache miss.
func (d *DirentCache) persist(ctx context.Context, repoID, path string, snap *Snapshot) error {
	unlock := d.dirs.Lock(dirKey(repoID, path))
	defer unlock()
	return d.persistLocked(ctx, repoID, path, snap)
}

// persistLocked is persist with the directory lock already held.
func (d *DirentCache) persistLocked(ctx context.Context, repoID, path string, snap *Snapshot) error {
	old, err := d.idx.SetContentID(ctx, d.account, repoID, path, snap.ContentID)
	if err != nil {
		return err
	}

	d.blobMu.Lock()
	defer d.blobMu.Unlock()

	if !old.IsNull() && old != snap.ContentID {
		d.release(ctx, old)
	}

	// rewriting an existing blob is harmless and repairs a broken one
	if err := d.cache.Save(blobHandle(snap.ContentID), snap.Raw); err != nil {
		metrics.RecordCacheWriteFailure("dirent")
		errors.LogCacheWriteFailure("listing "+snap.ContentID.Str(), err)
	}
	return nil
}

// release deletes the blob of id if no index entry references it anymore.
// The caller holds blobMu.
func (d *DirentCache) release(ctx context.Context, id seaf.ID) {
	n, err := d.idx.ContentRefs(ctx, d.account, id)
	if err != nil {
		log.Warnf("cannot count references of listing %v, keeping it: %v", id.Str(), err)
		return
	}
	if n > 0 {
		return
	}

	removed, err := d.cache.Remove(blobHandle(id))
	if err != nil {
		log.Warnf("cannot delete listing %v: %v", id.Str(), err)
		return
	}
	if removed {
		metrics.RecordBlobEviction()
		log.Debugf("deleted unreferenced listing %v", id.Str())
	}
}

// Remove drops the cached listing of (repoID, path).
func (d *DirentCache) Remove(ctx context.Context, repoID, path string) error {
	path = cleanPath(path)
	unlock := d.dirs.Lock(dirKey(repoID, path))
	defer unlock()

	old, err := d.idx.RemoveContentID(ctx, d.account, repoID, path)
	if err != nil {
		return err
	}

	d.blobMu.Lock()
	defer d.blobMu.Unlock()
	if !old.IsNull() {
		d.release(ctx, old)
	}
	return nil
}

// GC deletes blobs that no index entry references, e.g. left behind by an
// interrupted process. It returns the number of deleted blobs.
func (d *DirentCache) GC(ctx context.Context) (int, error) {
	d.blobMu.Lock()
	defer d.blobMu.Unlock()

	valid, err := d.idx.ContentIDs(ctx, d.account)
	if err != nil {
		return 0, err
	}
	n, err := d.cache.Clear(seaf.DirentFile, valid)
	if n > 0 {
		log.Infof("removed %d unreferenced listings", n)
	}
	return n, err
}

// Clear drops all cached listings of the account.
func (d *DirentCache) Clear(ctx context.Context) error {
	d.blobMu.Lock()
	defer d.blobMu.Unlock()

	if err := d.idx.RemoveContentIDs(ctx, d.account); err != nil {
		return err
	}
	_, err := d.cache.Clear(seaf.DirentFile, seaf.NewIDSet())
	return err
}
