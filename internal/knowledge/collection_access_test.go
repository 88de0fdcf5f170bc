package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionAccess_ForWorkOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("missing collection is not found", func(t *testing.T) {
		store := NewMemoryVectorStore()
		access := NewCollectionAccess(&staticResolver{alias: "default", store: store}, 4, nil)

		h, _, err := access.ForWorkOrder(ctx, "default", "64f1c2a9e4b0a1b2c3d4e5f6")
		assert.Nil(t, h)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
		assert.Equal(t, 0, access.CacheSize())
	})

	t.Run("empty normalized name is not found", func(t *testing.T) {
		access := NewCollectionAccess(&staticResolver{alias: "default", store: NewMemoryVectorStore()}, 4, nil)
		_, _, err := access.ForWorkOrder(ctx, "default", "///")
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("existing collection is loaded and cached", func(t *testing.T) {
		store := NewMemoryVectorStore()
		name := seedCollection(t, store, "pump-manual", "pump seal")
		access := NewCollectionAccess(&staticResolver{alias: "acme", store: store}, 4, nil)

		h, info, err := access.ForWorkOrder(ctx, "acme.example.com", "pump-manual")
		require.NoError(t, err)
		assert.Equal(t, name, h.Name)
		assert.Equal(t, "acme", h.Alias)
		assert.True(t, store.IsLoaded(name))
		assert.Equal(t, CollectionInfo{CollectionName: name, DocID: "pump-manual", DomainName: "acme.example.com"}, info)
		assert.Equal(t, 1, access.CacheSize())

		again, _, err := access.ForWorkOrder(ctx, "acme.example.com", "pump-manual")
		require.NoError(t, err)
		assert.Same(t, h, again)
		assert.Equal(t, 1, store.Calls(OpHas))
	})

	t.Run("stale cached handle is evicted and re-resolved", func(t *testing.T) {
		first := NewMemoryVectorStore()
		seedCollection(t, first, "pump-manual", "pump")
		resolver := &staticResolver{alias: "default", store: first}
		access := NewCollectionAccess(resolver, 4, nil)

		stale, _, err := access.ForWorkOrder(ctx, "default", "pump-manual")
		require.NoError(t, err)

		second := NewMemoryVectorStore()
		seedCollection(t, second, "pump-manual", "pump")
		first.FailOn(OpLoad, stale.Name, errors.New("handle revoked"))
		resolver.store = second

		fresh, _, err := access.ForWorkOrder(ctx, "default", "pump-manual")
		require.NoError(t, err)
		assert.NotSame(t, stale, fresh)
		assert.Same(t, second, fresh.Store())
		assert.Equal(t, 1, access.CacheSize())
	})

	t.Run("resolver configuration error surfaces", func(t *testing.T) {
		access := NewCollectionAccess(&staticResolver{err: apperrors.NewConfigurationError("no uri")}, 4, nil)
		_, _, err := access.ForWorkOrder(ctx, "acme", "doc")
		assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	})
}

func TestCollectionAccess_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("absent collection returns nil without error", func(t *testing.T) {
		access := NewCollectionAccess(&staticResolver{alias: "default", store: NewMemoryVectorStore()}, 4, nil)
		h, err := access.Get(ctx, "default", "nope")
		assert.NoError(t, err)
		assert.Nil(t, h)
	})

	t.Run("load failure returns nil without error", func(t *testing.T) {
		store := NewMemoryVectorStore()
		name := seedCollection(t, store, "doc-1", "pump")
		store.FailOn(OpLoad, name, errBoom)
		access := NewCollectionAccess(&staticResolver{alias: "default", store: store}, 4, nil)

		h, err := access.Get(ctx, "default", "doc-1")
		assert.NoError(t, err)
		assert.Nil(t, h)
	})

	t.Run("auth error surfaces", func(t *testing.T) {
		access := NewCollectionAccess(&staticResolver{err: apperrors.NewAuthError("token missing")}, 4, nil)
		_, err := access.Get(ctx, "acme", "doc")
		assert.True(t, errors.Is(err, apperrors.ErrAuth))
	})
}

func TestCollectionAccess_EnsureLoaded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()
	seedCollection(t, store, "doc-1", "pump")
	access := NewCollectionAccess(&staticResolver{alias: "default", store: store}, 4, nil)

	h, _, err := access.ForWorkOrder(ctx, "default", "doc-1")
	require.NoError(t, err)

	assert.True(t, access.EnsureLoaded(ctx, h))
	assert.False(t, access.EnsureLoaded(ctx, nil))

	loadsBefore := store.Calls(OpLoad)
	describesBefore := store.Calls(OpDescribe)
	store.FailOn(OpLoad, h.Name, errBoom)
	assert.False(t, access.EnsureLoaded(ctx, h))
	// 首次加载失败后重开集合再加载一次
	assert.Equal(t, loadsBefore+2, store.Calls(OpLoad))
	assert.Equal(t, describesBefore+1, store.Calls(OpDescribe))

	store.FailOn(OpLoad, h.Name, nil)
	assert.True(t, access.EnsureLoaded(ctx, h))
}

func TestCollectionAccess_Create(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()
	access := NewCollectionAccess(&staticResolver{alias: "default", store: store}, 4, nil)

	h, err := access.Create(ctx, "default", "64f1c2a9e4b0a1b2c3d4e5f6")
	require.NoError(t, err)
	assert.Equal(t, "c_64f1c2a9e4b0a1b2c3d4e5f6", h.Name)

	exists, err := store.HasCollection(ctx, h.Name)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = access.Create(ctx, "default", "64f1c2a9e4b0a1b2c3d4e5f6")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls(OpCreate))

	_, err = access.Create(ctx, "default", "---")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCollection))
}

func TestCollectionAccess_Invalidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()
	seedCollection(t, store, "doc-1", "pump")
	access := NewCollectionAccess(&staticResolver{alias: "default", store: store}, 4, nil)

	_, _, err := access.ForWorkOrder(ctx, "default", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, access.CacheSize())

	access.Invalidate("default", "doc-1")
	assert.Equal(t, 0, access.CacheSize())
}

func TestCollectionAccess_ConcurrentGetAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()
	docIDs := []string{"doc-1", "doc-2", "doc-3"}
	for _, id := range docIDs {
		seedCollection(t, store, id, "pump")
	}
	access := NewCollectionAccess(&staticResolver{alias: "default", store: store}, 4, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docID := docIDs[i%len(docIDs)]
			for j := 0; j < 20; j++ {
				h, err := access.Get(ctx, "default", docID)
				if !assert.NoError(t, err) || !assert.NotNil(t, h, fmt.Sprintf("worker %d", i)) {
					return
				}
				assert.True(t, access.EnsureLoaded(ctx, h))
				if j%3 == 0 {
					access.Invalidate("default", docID)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, access.CacheSize(), len(docIDs))
	for _, id := range docIDs {
		h, err := access.Get(ctx, "default", id)
		require.NoError(t, err)
		require.NotNil(t, h)
	}
	assert.Equal(t, len(docIDs), access.CacheSize())
}
