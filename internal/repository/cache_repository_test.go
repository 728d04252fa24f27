package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/gme-scheduler/core/pkg/errors"
)

// No Redis mock exists in the dependency set, so these tests exercise the
// nil-client short-circuits, which is the behavior CacheService actually
// depends on when caching is configured off.

func TestCacheRepositoryGetWithNilClientReturnsCacheMiss(t *testing.T) {
	r := NewCacheRepository(nil, nil)
	var dest map[string]string
	err := r.Get(context.Background(), "key", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestCacheRepositorySetWithNilClientIsNoop(t *testing.T) {
	r := NewCacheRepository(nil, nil)
	err := r.Set(context.Background(), "key", map[string]string{"a": "b"}, 0)
	assert.NoError(t, err)
}

func TestCacheRepositoryDeleteByPatternWithNilClientIsNoop(t *testing.T) {
	r := NewCacheRepository(nil, nil)
	err := r.DeleteByPattern(context.Background(), "prefix:*")
	assert.NoError(t, err)
}

func TestCacheRepositoryCloseWithNilClientIsNoop(t *testing.T) {
	r := NewCacheRepository(nil, nil)
	assert.NoError(t, r.Close())
}
