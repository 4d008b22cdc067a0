// Package mirror keeps a local mirror of a Seafile account coherent with
// the versions the server reports, while avoiding redundant transfers.
package mirror

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// StateOptions configures a State.
type StateOptions struct {
	RefreshTTL  time.Duration
	PasswordTTL time.Duration
	Now         Clock
}

// State is the process-wide cache state shared by all accounts: refresh
// timestamps, repo passwords and the per-account resolution locks. It is
// created once at startup and handed to every Manager.
type State struct {
	Refresh   *RefreshGate
	Passwords *CredentialCache

	accounts keyedMutex
}

// NewState returns an empty State. Zero options fall back to the defaults.
func NewState(opts StateOptions) *State {
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.PasswordTTL == 0 {
		opts.PasswordTTL = DefaultPasswordTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &State{
		Refresh:   NewRefreshGate(opts.RefreshTTL, opts.Now),
		Passwords: NewCredentialCache(opts.PasswordTTL, opts.Now),
	}
}

// keyedMutex hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock locks key and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
