package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/fs"
	"github.com/skyline93/seacache/internal/seaf"
)

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "ping", "api2/ping/", nil)
	return err
}

// ListRepos returns the raw repo list.
func (c *Client) ListRepos(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, "list repos", "api2/repos/", nil)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

func repoPath(repoID, kind string) string {
	return "api2/repos/" + url.PathEscape(repoID) + "/" + kind + "/"
}

func isUpToDate(body []byte) bool {
	return unquote(body) == "uptodate"
}

// ListDirents fetches the listing of (repoID, dir). When known is set and
// the listing did not change, the returned listing carries known and no Raw
// content.
func (c *Client) ListDirents(ctx context.Context, repoID, dir string, known seaf.ID) (*seaf.DirListing, error) {
	const op = "list dirents"

	q := url.Values{"p": {dir}}
	if !known.IsNull() {
		q.Set("oid", known.String())
	}
	resp, err := c.get(ctx, op, repoPath(repoID, "dir"), q)
	if err != nil {
		return nil, err
	}

	oid := resp.header.Get("oid")
	if !known.IsNull() && (isUpToDate(resp.body) || oid == known.String()) {
		return &seaf.DirListing{ContentID: known}, nil
	}

	id, err := seaf.ParseID(oid)
	if err != nil {
		return nil, errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, err.Error()))
	}
	return &seaf.DirListing{ContentID: id, Raw: resp.body}, nil
}

// listing extracts the listing of the parent directory that mutating
// requests with reloaddir=true return. It is nil when the server did not
// include one.
func listing(resp *response) *seaf.DirListing {
	id, err := seaf.ParseID(resp.header.Get("oid"))
	if err != nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	return &seaf.DirListing{ContentID: id, Raw: resp.body}
}

// GetFile downloads (repoID, file) to dest unless the server reports the
// same file id as known, in which case dest is left alone. It returns the
// current file id.
func (c *Client) GetFile(ctx context.Context, repoID, file, dest, known string) (string, error) {
	const op = "get file"

	resp, err := c.get(ctx, op, repoPath(repoID, "file"), url.Values{"p": {file}})
	if err != nil {
		return "", err
	}

	fileID := resp.header.Get("oid")
	if fileID == "" {
		return "", errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, "missing file id"))
	}
	if known != "" && fileID == known {
		return fileID, nil
	}

	link := unquote(resp.body)
	if _, err := url.ParseRequestURI(link); err != nil {
		return "", errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, "invalid download link"))
	}
	if err := c.download(ctx, link, dest); err != nil {
		return "", err
	}
	return fileID, nil
}

func (c *Client) download(ctx context.Context, link, dest string) error {
	const op = "download"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.setOnline(false)
		return errors.WithMessage(errors.ErrNetworkUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return errors.Remote(op, &StatusError{Code: resp.StatusCode})
	}

	if err := fs.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return errors.Storage(filepath.Dir(dest), err)
	}
	tmp := fs.TempName(dest)
	f, err := fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return errors.Storage(tmp, err)
	}
	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fs.RemoveIfExists(tmp)
		return errors.Remote(op, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = fs.RemoveIfExists(tmp)
		return errors.Storage(dest, err)
	}
	log.Debugf("downloaded %v", dest)
	return nil
}

// CreateDir creates parentDir/name and returns the new listing of
// parentDir, or nil if the server sent none.
func (c *Client) CreateDir(ctx context.Context, repoID, parentDir, name string) (*seaf.DirListing, error) {
	q := url.Values{"p": {path.Join(parentDir, name)}, "reloaddir": {"true"}}
	resp, err := c.send(ctx, "create dir", http.MethodPost, repoPath(repoID, "dir"), q, url.Values{"operation": {"mkdir"}})
	if err != nil {
		return nil, err
	}
	return listing(resp), nil
}

// CreateFile creates the empty file parentDir/name. The result is as for
// CreateDir.
func (c *Client) CreateFile(ctx context.Context, repoID, parentDir, name string) (*seaf.DirListing, error) {
	q := url.Values{"p": {path.Join(parentDir, name)}, "reloaddir": {"true"}}
	resp, err := c.send(ctx, "create file", http.MethodPost, repoPath(repoID, "file"), q, url.Values{"operation": {"create"}})
	if err != nil {
		return nil, err
	}
	return listing(resp), nil
}

func direntKind(isDir bool) string {
	if isDir {
		return "dir"
	}
	return "file"
}

// Rename renames p to newName and returns the listing of its parent.
func (c *Client) Rename(ctx context.Context, repoID, p, newName string, isDir bool) (*seaf.DirListing, error) {
	q := url.Values{"p": {p}, "reloaddir": {"true"}}
	form := url.Values{"operation": {"rename"}, "newname": {newName}}
	resp, err := c.send(ctx, "rename", http.MethodPost, repoPath(repoID, direntKind(isDir)), q, form)
	if err != nil {
		return nil, err
	}
	return listing(resp), nil
}

// Delete deletes p and returns the listing of its parent.
func (c *Client) Delete(ctx context.Context, repoID, p string, isDir bool) (*seaf.DirListing, error) {
	q := url.Values{"p": {p}, "reloaddir": {"true"}}
	resp, err := c.send(ctx, "delete", http.MethodDelete, repoPath(repoID, direntKind(isDir)), q, nil)
	if err != nil {
		return nil, err
	}
	return listing(resp), nil
}

// Copy copies srcDir/srcName into dstDir. The server returns no listing,
// so the result is always nil.
func (c *Client) Copy(ctx context.Context, srcRepo, srcDir, srcName, dstRepo, dstDir string) (*seaf.DirListing, error) {
	form := url.Values{"dst_repo": {dstRepo}, "dst_dir": {dstDir}, "file_names": {srcName}}
	_, err := c.send(ctx, "copy", http.MethodPost, repoPath(srcRepo, "fileops/copy"), url.Values{"p": {srcDir}}, form)
	return nil, err
}

// Move moves srcName. A batch move uses the fileops endpoint, which does not
// return the destination listing.
func (c *Client) Move(ctx context.Context, srcRepo, srcDir, srcName, dstRepo, dstDir string, batch bool) (*seaf.DirListing, error) {
	if batch {
		form := url.Values{"dst_repo": {dstRepo}, "dst_dir": {dstDir}, "file_names": {srcName}}
		_, err := c.send(ctx, "move", http.MethodPost, repoPath(srcRepo, "fileops/move"), url.Values{"p": {srcDir}}, form)
		return nil, err
	}

	q := url.Values{"p": {path.Join(srcDir, srcName)}, "reloaddir": {"true"}}
	form := url.Values{"operation": {"move"}, "dst_repo": {dstRepo}, "dst_dir": {dstDir}}
	resp, err := c.send(ctx, "move", http.MethodPost, repoPath(srcRepo, "file"), q, form)
	if err != nil {
		return nil, err
	}
	return listing(resp), nil
}

// UploadFile uploads the local file src into dir. With update set the file
// replaces the existing one of the same name. It returns the new file id.
func (c *Client) UploadFile(ctx context.Context, repoID, dir, src string, update bool) (string, error) {
	op, kind := "upload", "upload-link"
	if update {
		op, kind = "update", "update-link"
	}

	resp, err := c.get(ctx, op, repoPath(repoID, kind), nil)
	if err != nil {
		return "", err
	}
	link := unquote(resp.body)
	if _, err := url.ParseRequestURI(link); err != nil {
		return "", errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, "invalid upload link"))
	}

	f, err := os.Open(src)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	name := filepath.Base(src)
	if update {
		err = w.WriteField("target_file", path.Join(dir, name))
	} else {
		err = w.WriteField("parent_dir", dir)
	}
	if err != nil {
		return "", errors.WithStack(err)
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", errors.WithStack(err)
	}
	if err := w.Close(); err != nil {
		return "", errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link+"?ret-json=1", &body)
	if err != nil {
		return "", errors.WithStack(err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	up, err := c.roundTrip(req)
	if err != nil {
		return "", errors.Remote(op, err)
	}
	return uploadedFileID(up.body), nil
}

// uploadedFileID accepts both the JSON reply of upload requests and the
// plain id update requests answer with.
func uploadedFileID(body []byte) string {
	var files []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &files); err == nil {
		if len(files) == 0 {
			return ""
		}
		return files[0].ID
	}
	return unquote(body)
}

// SetPassword unlocks the encrypted repo for this token.
func (c *Client) SetPassword(ctx context.Context, repoID, password string) error {
	_, err := c.send(ctx, "set password", http.MethodPost, "api2/repos/"+url.PathEscape(repoID)+"/", nil,
		url.Values{"password": {password}})
	return err
}

func (c *Client) body(ctx context.Context, op, p string, q url.Values) ([]byte, error) {
	resp, err := c.get(ctx, op, p, q)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// AccountInfo returns the raw account info.
func (c *Client) AccountInfo(ctx context.Context) ([]byte, error) {
	return c.body(ctx, "account info", "api2/account/info/", nil)
}

// ServerInfo returns the raw server info.
func (c *Client) ServerInfo(ctx context.Context) ([]byte, error) {
	return c.body(ctx, "server info", "api2/server-info/", nil)
}

// Events returns one page of the activity feed starting at offset.
func (c *Client) Events(ctx context.Context, offset int) ([]byte, error) {
	return c.body(ctx, "events", "api2/events/", url.Values{"start": {strconv.Itoa(offset)}})
}

// Search returns one page of full text search results.
func (c *Client) Search(ctx context.Context, query string, page int) ([]byte, error) {
	return c.body(ctx, "search", "api2/search/", url.Values{"q": {query}, "page": {strconv.Itoa(page)}})
}

// StarredFiles returns the raw starred files list.
func (c *Client) StarredFiles(ctx context.Context) ([]byte, error) {
	return c.body(ctx, "starred files", "api2/starredfiles/", nil)
}

// Star stars p.
func (c *Client) Star(ctx context.Context, repoID, p string) error {
	_, err := c.send(ctx, "star", http.MethodPost, "api2/starredfiles/", nil, url.Values{"repo_id": {repoID}, "p": {p}})
	return err
}

// Unstar removes the star of p.
func (c *Client) Unstar(ctx context.Context, repoID, p string) error {
	_, err := c.send(ctx, "unstar", http.MethodDelete, "api2/starredfiles/", url.Values{"repo_id": {repoID}, "p": {p}}, nil)
	return err
}

// HistoryChanges returns the raw file changes of commitID.
func (c *Client) HistoryChanges(ctx context.Context, repoID, commitID string) ([]byte, error) {
	return c.body(ctx, "history changes", "api2/repo_history_changes/"+url.PathEscape(repoID)+"/",
		url.Values{"commit_id": {commitID}})
}

// ThumbnailURL returns the URL of the server side thumbnail of a file.
func (c *Client) ThumbnailURL(repoID, p string, size int) string {
	return c.url(fmt.Sprintf("api2/repos/%s/thumbnail/", url.PathEscape(repoID)),
		url.Values{"p": {p}, "size": {strconv.Itoa(size)}})
}
