package secrets

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// mapStore is an in-memory pipekit.SecretStore.
type mapStore struct {
	values map[string]string
	err    error
	calls  int
}

func (m *mapStore) Get(ctx context.Context, key string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", key, pipekit.ErrSecretNotFound)
}

func TestChainStore_FirstHitWins(t *testing.T) {
	first := &mapStore{values: map[string]string{"a": "1"}}
	second := &mapStore{values: map[string]string{"a": "2", "b": "3"}}
	chain := NewChainStore(first, second)

	v, err := chain.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	assert.Equal(t, 0, second.calls)

	v, err = chain.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestChainStore_AllMiss(t *testing.T) {
	chain := NewChainStore(&mapStore{}, &mapStore{})

	_, err := chain.Get(context.Background(), "x")

	assert.ErrorIs(t, err, pipekit.ErrSecretNotFound)
}

func TestChainStore_StopsOnHardError(t *testing.T) {
	boom := errors.New("database unavailable")
	last := &mapStore{values: map[string]string{"x": "v"}}
	chain := NewChainStore(&mapStore{err: boom}, last)

	_, err := chain.Get(context.Background(), "x")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, last.calls)
}

func TestChainStore_Empty(t *testing.T) {
	_, err := NewChainStore().Get(context.Background(), "x")

	assert.ErrorIs(t, err, pipekit.ErrSecretNotFound)
}
