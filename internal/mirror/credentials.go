package mirror

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/skyline93/seacache/internal/crypto"
)

// DefaultPasswordTTL is how long a repo password is remembered.
const DefaultPasswordTTL = 59 * time.Minute

// CredentialCache remembers the passwords of encrypted repos for a short
// time so the user is not asked again within a session. It is never
// persisted; entries are sealed with a per-process key while in memory.
type CredentialCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	key     *crypto.Key
	entries map[string]credential
}

type credential struct {
	sealed []byte
	at     time.Time
}

// NewCredentialCache returns an empty cache.
func NewCredentialCache(ttl time.Duration, now Clock) *CredentialCache {
	return &CredentialCache{
		ttl:     ttl,
		now:     now,
		key:     crypto.NewRandomKey(),
		entries: make(map[string]credential),
	}
}

// Set records password for repoID.
func (c *CredentialCache) Set(repoID, password string) {
	sealed := c.key.Seal([]byte(password), []byte(repoID))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[repoID] = credential{sealed: sealed, at: c.now()}
}

// lookup returns the live entry of repoID and drops expired ones.
func (c *CredentialCache) lookup(repoID string) (credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[repoID]
	if !ok {
		return credential{}, false
	}
	if !c.now().Before(e.at.Add(c.ttl)) {
		delete(c.entries, repoID)
		return credential{}, false
	}
	return e, true
}

// IsPasswordSet reports whether a live password is known for repoID.
func (c *CredentialCache) IsPasswordSet(repoID string) bool {
	_, ok := c.lookup(repoID)
	return ok
}

// Get returns the password of repoID if it has not expired.
func (c *CredentialCache) Get(repoID string) (string, bool) {
	e, ok := c.lookup(repoID)
	if !ok {
		return "", false
	}
	pw, err := c.key.Open(e.sealed, []byte(repoID))
	if err != nil {
		log.Warnf("cannot open cached password of repo %v: %v", repoID, err)
		return "", false
	}
	return string(pw), true
}

// Forget drops the password of repoID.
func (c *CredentialCache) Forget(repoID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, repoID)
}
