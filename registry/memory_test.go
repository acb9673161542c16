package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryInsertUnique(t *testing.T) {
	r := NewMemoryRegistry()
	require.NoError(t, r.Insert("sess-1", "handle-a"))

	err := r.Insert("sess-1", "handle-b")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestMemoryRegistryLookup(t *testing.T) {
	r := NewMemoryRegistry()
	require.NoError(t, r.Insert("sess-1", "handle-a"))

	got, err := r.Lookup("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "handle-a", got)

	_, err = r.Lookup("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRegistryDeleteThenReinsert(t *testing.T) {
	r := NewMemoryRegistry()
	require.NoError(t, r.Insert("sess-1", "handle-a"))
	require.NoError(t, r.Delete("sess-1"))

	_, err := r.Lookup("sess-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Insert("sess-1", "handle-b"))
}

func TestMemoryRegistryDeleteAbsentIsNotError(t *testing.T) {
	r := NewMemoryRegistry()
	assert.NoError(t, r.Delete("never-registered"))
}

func TestMemoryRegistryConcurrentInsertOnlyOneWins(t *testing.T) {
	r := NewMemoryRegistry()

	const attempts = 50
	var wg sync.WaitGroup
	successes := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			successes <- r.Insert("contested", "handle")
		}()
	}
	wg.Wait()
	close(successes)

	successCount := 0
	for err := range successes {
		if err == nil {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount)
}

func TestMemoryRegistryKeys(t *testing.T) {
	r := NewMemoryRegistry()
	require.NoError(t, r.Insert("a", 1))
	require.NoError(t, r.Insert("b", 2))
	assert.ElementsMatch(t, []string{"a", "b"}, r.Keys())
}
