package seaf

import (
	"encoding/json"

	"github.com/skyline93/seacache/internal/errors"
)

// The Decode functions are the serializer boundary: the cache core only ever
// stores raw payloads and hands them to these functions.

// DecodeRepos parses a repo list. Entries without an id are skipped.
func DecodeRepos(raw []byte) ([]Repo, error) {
	var repos []Repo
	if err := json.Unmarshal(raw, &repos); err != nil {
		return nil, errors.Wrap(err, "decode repos")
	}
	out := repos[:0]
	for _, r := range repos {
		if r.ID != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// DecodeDirents parses a directory listing. An empty JSON array is a valid,
// empty directory.
func DecodeDirents(raw []byte) ([]Dirent, error) {
	var dirents []Dirent
	if err := json.Unmarshal(raw, &dirents); err != nil {
		return nil, errors.Wrap(err, "decode dirents")
	}
	if dirents == nil {
		return nil, errors.New("decode dirents: not a list")
	}
	return dirents, nil
}

// DecodeStarredFiles parses the starred files list.
func DecodeStarredFiles(raw []byte) ([]StarredFile, error) {
	var files []StarredFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, errors.Wrap(err, "decode starred files")
	}
	return files, nil
}

// DecodeActivities parses one page of the activity feed.
func DecodeActivities(raw []byte) (*Activities, error) {
	a := &Activities{}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, errors.Wrap(err, "decode events")
	}
	return a, nil
}

// DecodeAccountInfo parses the account info of server.
func DecodeAccountInfo(raw []byte, server string) (*AccountInfo, error) {
	info := &AccountInfo{}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, errors.Wrap(err, "decode account info")
	}
	info.Server = server
	return info, nil
}

// DecodeServerInfo parses the server info of server.
func DecodeServerInfo(raw []byte, server string) (*ServerInfo, error) {
	info := &ServerInfo{}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, errors.Wrap(err, "decode server info")
	}
	info.URL = server
	return info, nil
}

// DecodeSearchResults parses the "results" list of a search response.
func DecodeSearchResults(raw []byte) ([]SearchedFile, error) {
	var resp struct {
		Results []SearchedFile `json:"results"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "decode search results")
	}
	return resp.Results, nil
}
