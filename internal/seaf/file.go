package seaf

// FileType is the kind of a file kept in the side cache area.
type FileType uint8

// These are the different kinds of files the side cache area holds.
const (
	DirentFile FileType = 1 + iota
	RepoListFile
	TempFile
)

func (t FileType) String() string {
	s := "invalid"
	switch t {
	case DirentFile:
		s = "dirent"
	case RepoListFile:
		s = "repos"
	case TempFile:
		s = "temp"
	}
	return s
}

// Handle is used to store and access data in the side cache area.
type Handle struct {
	Type FileType
	Name string
}
