package directory

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"companion-call-demo/backend/internal/models"
	"companion-call-demo/backend/pkg/cache"
	apperrors "companion-call-demo/backend/pkg/errors"
	"companion-call-demo/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	calls    int
	err      error
	profiles []models.CompanionProfile
}

func (s *flakyStore) List(context.Context) ([]models.CompanionProfile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.profiles, nil
}

func TestListDefaultCatalog(t *testing.T) {
	d := New(NewStaticStore(DefaultCatalog()), nil, 0, logger.Discard())

	profiles, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 6)

	var ids, names []string
	for _, p := range profiles {
		ids = append(ids, p.ID)
		names = append(names, p.Name)
		assert.NotEmpty(t, p.Specialties)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, ids)
	assert.Equal(t, []string{"Alex", "Sofia", "Marcus", "Luna", "Dr. Chen", "Emma"}, names)
	assert.Equal(t, []string{"Mathematics", "Physics", "Chemistry"}, profiles[0].Specialties)
}

func TestListIsStableAndIsolated(t *testing.T) {
	d := New(NewStaticStore(DefaultCatalog()), nil, 0, logger.Discard())

	first, err := d.List(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"
	first[0].Specialties[0] = "mutated"

	second, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alex", second[0].Name)
	assert.Equal(t, "Mathematics", second[0].Specialties[0])
}

func TestEmptyCatalogIsNotAnError(t *testing.T) {
	d := New(&flakyStore{}, nil, 0, logger.Discard())

	profiles, err := d.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)
}

func TestUnreachableStoreIsRetrievalError(t *testing.T) {
	cause := errors.New("connection refused")
	d := New(&flakyStore{err: cause}, nil, 0, logger.Discard())

	profiles, err := d.List(context.Background())
	assert.Nil(t, profiles)

	var rerr *RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, cause)

	appErr := apperrors.FromError(err)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.StatusCode)
	assert.Equal(t, apperrors.CodeRetrieval, appErr.Code)
}

func TestListUsesCache(t *testing.T) {
	c := cache.New(cache.Options{})
	defer c.Close()
	store := &flakyStore{profiles: DefaultCatalog()[:2]}
	d := New(store, c, time.Minute, logger.Discard())

	_, err := d.List(context.Background())
	require.NoError(t, err)
	_, err = d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)

	d.Invalidate()
	_, err = d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestFailuresAreNotCached(t *testing.T) {
	c := cache.New(cache.Options{})
	defer c.Close()
	store := &flakyStore{err: errors.New("down")}
	d := New(store, c, time.Minute, logger.Discard())

	_, err := d.List(context.Background())
	require.Error(t, err)

	store.err = nil
	store.profiles = DefaultCatalog()
	profiles, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, profiles, 6)
}

func TestGet(t *testing.T) {
	d := New(NewStaticStore(DefaultCatalog()), nil, 0, logger.Discard())

	p, err := d.Get(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Chen", p.Name)

	_, err = d.Get(context.Background(), "42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaticStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticStore(DefaultCatalog()).List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
