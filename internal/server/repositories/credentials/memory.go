package credentials

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/guildkeeper/internal/common"
	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
)

// MemoryRepository keeps credentials in a map. Used for local runs and tests;
// contents are lost on restart.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*models.Credential
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*models.Credential)}
}

func (r *MemoryRepository) GetAll(ctx context.Context) (map[string]*models.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*models.Credential, len(r.items))
	for id, c := range r.items {
		out[id] = c.Clone()
	}
	return out, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, userID string) (*models.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryRepository) Create(ctx context.Context, c *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[c.UserID]; ok {
		return common.ErrorAlreadyExists
	}
	r.items[c.UserID] = c.Clone()
	return nil
}

func (r *MemoryRepository) PutAll(ctx context.Context, creds map[string]*models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range creds {
		r.items[c.UserID] = c.Clone()
	}
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, c *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[c.UserID]; !ok {
		return common.ErrorNotFound
	}
	r.items[c.UserID] = c.Clone()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[userID]; !ok {
		return common.ErrorNotFound
	}
	delete(r.items, userID)
	return nil
}
