package token

import (
	"sync"

	"github.com/pkg/errors"
)

// InMemoryAccessTokenRepo is a thread-safe in-memory AccessTokenRepo.
type InMemoryAccessTokenRepo struct {
	mu      sync.RWMutex
	records map[string]*AccessTokenRecord
}

var _ AccessTokenRepo = (*InMemoryAccessTokenRepo)(nil)

func NewInMemoryAccessTokenRepo() *InMemoryAccessTokenRepo {
	return &InMemoryAccessTokenRepo{
		records: make(map[string]*AccessTokenRecord),
	}
}

func (r *InMemoryAccessTokenRepo) Upsert(record *AccessTokenRecord) error {
	if record == nil || record.JTI == "" {
		return errors.New("[InMemoryAccessTokenRepo.Upsert] jti cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *record
	r.records[record.JTI] = &stored
	return nil
}

func (r *InMemoryAccessTokenRepo) Get(jti string) (*AccessTokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[jti]
	if !ok {
		return nil, errors.New("access token record not found")
	}
	found := *record
	return &found, nil
}

func (r *InMemoryAccessTokenRepo) Delete(jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, jti)
	return nil
}

func (r *InMemoryAccessTokenRepo) DeleteByLineage(lineageID string) error {
	if lineageID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, record := range r.records {
		if record.LineageID == lineageID {
			delete(r.records, jti)
		}
	}
	return nil
}
