package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/sales-insight/internal/domain/common"
)

// MemoryProfileRepository keeps profiles in process. Used when no database
// is configured and by the CLI.
type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]ColumnProfile
}

func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{profiles: make(map[string]ColumnProfile)}
}

func (r *MemoryProfileRepository) GetByFingerprint(_ context.Context, fingerprint string) (*ColumnProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[fingerprint]
	if !ok {
		return nil, common.ErrProfileNotFound
	}
	return &p, nil
}

func (r *MemoryProfileRepository) Save(_ context.Context, profile *ColumnProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.profiles[profile.Fingerprint]; ok {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else {
		if profile.ID == uuid.Nil {
			profile.ID = uuid.New()
		}
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	r.profiles[profile.Fingerprint] = *profile
	return nil
}

func (r *MemoryProfileRepository) List(_ context.Context) ([]*ColumnProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ColumnProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryProfileRepository) Delete(_ context.Context, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[fingerprint]; !ok {
		return common.ErrProfileNotFound
	}
	delete(r.profiles, fingerprint)
	return nil
}
