// Package directory serves the catalog of companion personas.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"companion-call-demo/backend/internal/models"
	"companion-call-demo/backend/pkg/cache"
	apperrors "companion-call-demo/backend/pkg/errors"
	"companion-call-demo/backend/pkg/logger"
)

const listKey = "companions"

// ErrNotFound is returned by Get for unknown ids
var ErrNotFound = errors.New("companion not found")

// RetrievalError reports that the backing store could not be reached
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("companion retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// AppError maps the failure onto the API envelope
func (e *RetrievalError) AppError() *apperrors.AppError {
	return apperrors.NewServiceUnavailableError(apperrors.CodeRetrieval, "Failed to fetch companions")
}

// Directory answers catalog queries, caching successful lists
type Directory struct {
	store    Store
	cache    *cache.Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

// New builds a Directory. A nil cache or zero TTL disables caching.
func New(store Store, c *cache.Cache, cacheTTL time.Duration, log *logger.Logger) *Directory {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Directory{store: store, cache: c, cacheTTL: cacheTTL, log: log}
}

// List returns the full catalog in its stable order. An empty catalog is not an error.
// Failures never return partial results.
func (d *Directory) List(ctx context.Context) ([]models.CompanionProfile, error) {
	if cached, ok := d.cached(); ok {
		return cached, nil
	}

	profiles, err := d.store.List(ctx)
	if err != nil {
		d.log.LogError(err, "companion store unreachable")
		return nil, &RetrievalError{Err: err}
	}
	if profiles == nil {
		profiles = []models.CompanionProfile{}
	}

	if d.cache != nil && d.cacheTTL > 0 {
		d.cache.SetWithExpiration(listKey, clone(profiles), d.cacheTTL)
	}
	return profiles, nil
}

// Get looks a single companion up by id
func (d *Directory) Get(ctx context.Context, id string) (models.CompanionProfile, error) {
	profiles, err := d.List(ctx)
	if err != nil {
		return models.CompanionProfile{}, err
	}
	for _, p := range profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return models.CompanionProfile{}, ErrNotFound
}

// Invalidate drops the cached list
func (d *Directory) Invalidate() {
	if d.cache != nil {
		d.cache.Delete(listKey)
	}
}

func (d *Directory) cached() ([]models.CompanionProfile, bool) {
	if d.cache == nil || d.cacheTTL <= 0 {
		return nil, false
	}
	v, ok := d.cache.Get(listKey)
	if !ok {
		return nil, false
	}
	profiles, ok := v.([]models.CompanionProfile)
	if !ok {
		return nil, false
	}
	return clone(profiles), true
}

func clone(in []models.CompanionProfile) []models.CompanionProfile {
	out := make([]models.CompanionProfile, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
