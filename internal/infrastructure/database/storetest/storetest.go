// Package storetest holds the behavioural suite every repositories.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/cvbuilder/internal/domain/repositories"
)

// Widget is the entity the suite stores
type Widget struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Serial string `json:"serial"`
	Active bool   `json:"active"`
}

// DocumentID implements repositories.Entity
func (w Widget) DocumentID() string { return w.ID }

// WidgetIndexes must be enforced by the store under test: serial is unique
// among active widgets.
var WidgetIndexes = []repositories.UniqueIndex{
	{Name: "widgets_serial_key", Fields: []string{"serial"}, Where: repositories.Where("active", true)},
}

// Factory returns an empty store for one subtest
type Factory func(t *testing.T) repositories.Store[Widget]

// Run executes the full suite against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateDuplicateKey", func(t *testing.T) { testCreateDuplicateKey(t, newStore(t)) })
	t.Run("CreateEmptyKey", func(t *testing.T) { testCreateEmptyKey(t, newStore(t)) })
	t.Run("ConcurrentCreateOneWinner", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("ReplaceMissing", func(t *testing.T) { testReplaceMissing(t, newStore(t)) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("GetAllAndCount", func(t *testing.T) { testGetAll(t, newStore(t)) })
	t.Run("FindByFields", func(t *testing.T) { testFind(t, newStore(t)) })
	t.Run("UniqueIndex", func(t *testing.T) { testUniqueIndex(t, newStore(t)) })
}

func testCreateAndGet(t *testing.T, s repositories.Store[Widget]) {
	ctx := context.Background()

	doc, err := s.Create(ctx, Widget{ID: "w1", Name: "sprocket", Color: "red"})
	require.NoError(t, err)
	assert.Equal(t, "w1", doc.Key)
	assert.Equal(t, "sprocket", doc.Value.Name)

	got, err := s.GetByID(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "w1", got.Key)
	assert.Equal(t, got.Key, got.Value.ID)
	assert.Equal(t, "red", got.Value.Color)
}

func testCreateDuplicateKey(t *testing.T, s repositories.Store[Widget]) {
	ctx := context.Background()

	_, err := s.Create(ctx, Widget{ID: "w1", Name: "first"})
	require.NoError(t, err)

	_, err = s.Create(ctx, Widget{ID: "w1", Name: "second"})
	require.ErrorIs(t, err, repositories.ErrConflict)

	got, err := s.GetByID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Value.Name, "duplicate create must not overwrite")
}

func testCreateEmptyKey(t *testing.T, s repositories.Store[Widget]) {
	_, err := s.Create(context.Background(), Widget{Name: "nameless"})
	require.ErrorIs(t, err, repositories.ErrInvalidDocument)
}

func testConcurrentCreate(t *testing.T, s repositories.Store[Widget]) {
	ctx := context.Background()
	const writers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, Widget{ID: "race", Name: "contender"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repositories.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func testReplace(t *testing.T, s repositories.Store[Widget]) {
	ctx := context.Background()

	_, err := s.Create(ctx, Widget{ID: "w1", Name: "old"})
	require.NoError(t, err)

	doc, err := s.Replace(ctx, Widget{ID: "w1", Name: "new"})
	require.NoError(t, err)
	assert.Equal(t, "w1", doc.Key)

	got, err := s.GetByID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Value.Name)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testReplaceMissing(t *testing.T, s repositories.Store[Widget]) {
	_, err := s.Replace(context.Background(), Widget{ID: "ghost"})
	require.ErrorIs(t, err, repositories.ErrNotFound)
}

func testDelete(t *testing.T, s repositories.Store[Widget]) {
	ctx := context.Background()

	_, err := s.Create(ctx, Widget{ID: "w1"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "w1"))
	require.NoError(t, s.Delete(ctx, "w1"), "second delete must be a no-op")
	require.NoError(t, s.Delete(ctx, "never-existed"))

	got, err := s.GetByID(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testGetMissing(t *testing.T, s repositories.Store[Widget]) {
	got, err := s.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testGetAll(t *testing.T, s repositories.Store[Widget]) {
	ctx := context.Background()

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	for _, id := range []string{"c", "a", "b"} {
		_, err := s.Create(ctx, Widget{ID: id})
		require.NoError(t, err)
	}

	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, w := range all {
		ids = append(ids, w.ID)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testFind(t *testing.T, s repositories.Store[Widget]) {
	ctx := context.Background()

	for _, w := range []Widget{
		{ID: "w1", Name: "a", Color: "red", Active: true},
		{ID: "w2", Name: "b", Color: "red", Active: false},
		{ID: "w3", Name: "c", Color: "blue", Active: true},
	} {
		_, err := s.Create(ctx, w)
		require.NoError(t, err)
	}

	red, err := s.Find(ctx, repositories.Where("color", "red"))
	require.NoError(t, err)
	assert.Len(t, red, 2)

	one, err := s.FindOne(ctx, repositories.Where("color", "red").And("active", true))
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "w1", one.ID)

	none, err := s.FindOne(ctx, repositories.Where("color", "green"))
	require.NoError(t, err)
	assert.Nil(t, none)

	empty, err := s.Find(ctx, repositories.Where("color", "blue").And("active", false))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testUniqueIndex(t *testing.T, s repositories.Store[Widget]) {
	ctx := context.Background()

	_, err := s.Create(ctx, Widget{ID: "w1", Serial: "SN-1", Active: true})
	require.NoError(t, err)

	_, err = s.Create(ctx, Widget{ID: "w2", Serial: "SN-1", Active: true})
	require.ErrorIs(t, err, repositories.ErrConflict)

	// Inactive rows are outside the index
	_, err = s.Create(ctx, Widget{ID: "w3", Serial: "SN-1", Active: false})
	require.NoError(t, err)

	// Empty values are outside the index
	_, err = s.Create(ctx, Widget{ID: "w4", Active: true})
	require.NoError(t, err)
	_, err = s.Create(ctx, Widget{ID: "w5", Active: true})
	require.NoError(t, err)

	// Reactivating w3 would collide with w1
	_, err = s.Replace(ctx, Widget{ID: "w3", Serial: "SN-1", Active: true})
	require.ErrorIs(t, err, repositories.ErrConflict)

	// Replacing a document with its own indexed value is fine
	_, err = s.Replace(ctx, Widget{ID: "w1", Name: "renamed", Serial: "SN-1", Active: true})
	require.NoError(t, err)
}
