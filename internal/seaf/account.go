package seaf

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Account identifies the user of a server.
type Account struct {
	Server string
	Email  string
	Token  string
}

// Host returns the server host without scheme, port and slashes.
func (a Account) Host() string {
	s := a.Server
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Host
	}
	s = strings.Trim(s, "/")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}

// Signature is a stable identifier for (server, email): the full hex
// sha256. It keys every account-scoped record of the persistent index and
// names the account's cache area.
func (a Account) Signature() string {
	return Hash([]byte(strings.TrimRight(a.Server, "/") + "\x00" + a.Email)).String()
}

var unsafeDirChars = regexp.MustCompile(`[^\w.@() ]`)

// DirName is the name of the account's root directory, like
// "foo@example.com (cloud.example.com)".
func (a Account) DirName() string {
	p := fmt.Sprintf("%s (%s)", a.Email, a.Host())
	return unsafeDirChars.ReplaceAllString(p, "_")
}

func (a Account) String() string {
	return fmt.Sprintf("%s@%s", a.Email, a.Host())
}
