package grant

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo. One mutex
// guards all maps; consumption is check-and-mark under that lock, which gives
// the linearizable single-use guarantee directly.
type InMemoryRepo struct {
	mu      sync.Mutex
	codes   map[string]*AuthorizationCode
	refresh map[string]*RefreshToken
	pending map[string]*PendingAuthorization
	nowFunc func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryRepoOption func(*InMemoryRepo)

// WithNowFunc overrides the clock (primarily for testing).
func WithNowFunc(now func() time.Time) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.nowFunc = now
	}
}

// NewInMemoryRepo creates an empty in-memory grant store.
func NewInMemoryRepo(options ...InMemoryRepoOption) *InMemoryRepo {
	r := &InMemoryRepo{
		codes:   make(map[string]*AuthorizationCode),
		refresh: make(map[string]*RefreshToken),
		pending: make(map[string]*PendingAuthorization),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) PutCode(code *AuthorizationCode) error {
	if code == nil || code.Value == "" {
		return errors.New("[InMemoryRepo.PutCode] code value cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *code
	r.codes[code.Value] = &stored
	return nil
}

func (r *InMemoryRepo) ConsumeCode(value, clientID string) (*AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[value]
	if !ok {
		return nil, ErrNotFound
	}
	if r.nowFunc().After(code.ExpiresAt) {
		delete(r.codes, value)
		return nil, ErrNotFound
	}
	if code.Consumed {
		return nil, ErrConsumed
	}
	if code.ClientID != clientID {
		// Redemption by the wrong client burns the code too.
		code.Consumed = true
		return nil, ErrClientMismatch
	}
	code.Consumed = true
	consumed := *code
	return &consumed, nil
}

func (r *InMemoryRepo) PutRefresh(token *RefreshToken) error {
	if token == nil || token.Value == "" {
		return errors.New("[InMemoryRepo.PutRefresh] token value cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *token
	r.refresh[token.Value] = &stored
	return nil
}

func (r *InMemoryRepo) ConsumeRefresh(value, clientID string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.refresh[value]
	if !ok {
		return nil, ErrNotFound
	}
	if r.nowFunc().After(token.ExpiresAt) {
		delete(r.refresh, value)
		return nil, ErrNotFound
	}
	if token.Consumed {
		return nil, ErrConsumed
	}
	if token.ClientID != clientID {
		token.Consumed = true
		return nil, ErrClientMismatch
	}
	token.Consumed = true
	consumed := *token
	return &consumed, nil
}

func (r *InMemoryRepo) PutPending(pending *PendingAuthorization) error {
	if pending == nil || pending.AntiForgeryToken == "" {
		return errors.New("[InMemoryRepo.PutPending] anti-forgery token cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *pending
	r.pending[pending.AntiForgeryToken] = &stored
	return nil
}

func (r *InMemoryRepo) ConsumePending(antiForgeryToken string) (*PendingAuthorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, ok := r.pending[antiForgeryToken]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.pending, antiForgeryToken)
	if r.nowFunc().After(pending.ExpiresAt) {
		return nil, ErrNotFound
	}
	consumed := *pending
	return &consumed, nil
}

// Cleanup drops expired entries. Consumption already treats them as absent;
// this just reclaims memory.
func (r *InMemoryRepo) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFunc()
	for value, code := range r.codes {
		if now.After(code.ExpiresAt) {
			delete(r.codes, value)
		}
	}
	for value, token := range r.refresh {
		if now.After(token.ExpiresAt) {
			delete(r.refresh, value)
		}
	}
	for token, pending := range r.pending {
		if now.After(pending.ExpiresAt) {
			delete(r.pending, token)
		}
	}
}
