package seaf

import "time"

// Repo is a library on the server, as returned by the repo list.
type Repo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Desc       string `json:"desc,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Permission string `json:"permission,omitempty"`
	Encrypted  bool   `json:"encrypted"`
	Root       string `json:"root,omitempty"`
	Size       int64  `json:"size"`
	MTime      int64  `json:"mtime"`
	Type       string `json:"type,omitempty"`
}

// Dirent is one entry of a directory listing.
type Dirent struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MTime      int64  `json:"mtime"`
	Permission string `json:"permission,omitempty"`
}

// IsDir returns true for subdirectories.
func (d Dirent) IsDir() bool { return d.Type == "dir" }

// StarredFile is an entry of the starred files list.
type StarredFile struct {
	RepoID   string `json:"repo"`
	RepoName string `json:"repo_name,omitempty"`
	Path     string `json:"path"`
	MTime    int64  `json:"mtime"`
	Size     int64  `json:"size"`
	Dir      bool   `json:"dir"`
}

// CachedFile records the version of a local file copy.
type CachedFile struct {
	Account  string
	RepoID   string
	RepoName string
	Path     string
	FileID   string

	// LocalPath is filled in by the file version cache and not persisted.
	LocalPath string
}

// DirListing is a directory listing returned by the server together with its
// content id. Raw is the undecoded payload.
type DirListing struct {
	ContentID ID
	Raw       []byte
}

// Event is an entry of the activity feed.
type Event struct {
	RepoID   string    `json:"repo_id"`
	RepoName string    `json:"repo_name"`
	Author   string    `json:"author"`
	Nick     string    `json:"nick"`
	Time     time.Time `json:"time"`
	OpType   string    `json:"op_type"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	CommitID string    `json:"commit_id"`
}

// Activities is one page of the activity feed.
type Activities struct {
	Events     []Event `json:"events"`
	More       bool    `json:"more"`
	MoreOffset int     `json:"more_offset"`
}

// AccountInfo describes the logged in user.
type AccountInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Usage int64  `json:"usage"`
	Total int64  `json:"total"`

	Server string `json:"-"`
}

// ServerInfo describes the server.
type ServerInfo struct {
	Version  string   `json:"version"`
	Features []string `json:"features"`

	URL string `json:"-"`
}

// SearchedFile is one search result.
type SearchedFile struct {
	RepoID       string `json:"repo_id"`
	Name         string `json:"name"`
	FileID       string `json:"oid"`
	Path         string `json:"fullpath"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"last_modified"`
	IsDir        bool   `json:"is_dir"`
}
