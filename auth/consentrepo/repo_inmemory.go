package consentrepo

import (
	"sync"

	"github.com/openauthkit/oidc-provider/oauth2"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo.
type InMemoryRepo struct {
	mu     sync.RWMutex
	grants map[consentKey]map[string]bool
}

type consentKey struct {
	clientID string
	subject  string
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		grants: make(map[consentKey]map[string]bool),
	}
}

func (r *InMemoryRepo) Grant(clientID, subject string, scope oauth2.Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := consentKey{clientID: clientID, subject: subject}
	granted, ok := r.grants[key]
	if !ok {
		granted = make(map[string]bool)
		r.grants[key] = granted
	}
	for _, s := range scope {
		granted[s] = true
	}
	return nil
}

func (r *InMemoryRepo) Covers(clientID, subject string, scope oauth2.Scope) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	granted, ok := r.grants[consentKey{clientID: clientID, subject: subject}]
	if !ok {
		return false
	}
	for _, s := range scope {
		if !granted[s] {
			return false
		}
	}
	return true
}
