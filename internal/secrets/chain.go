package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// ChainStore asks each store in turn. The first store that knows the key
// answers; any error other than pipekit.ErrSecretNotFound stops the search.
type ChainStore struct {
	stores []pipekit.SecretStore
}

// NewChainStore creates a store consulting stores in the given order.
func NewChainStore(stores ...pipekit.SecretStore) *ChainStore {
	return &ChainStore{stores: stores}
}

func (c *ChainStore) Get(ctx context.Context, key string) (string, error) {
	var misses []error
	for _, s := range c.stores {
		v, err := s.Get(ctx, key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, pipekit.ErrSecretNotFound) {
			return "", err
		}
		misses = append(misses, err)
	}
	if len(misses) == 0 {
		return "", fmt.Errorf("%s (no secret stores configured): %w", key, pipekit.ErrSecretNotFound)
	}
	return "", errors.Join(misses...)
}

var _ pipekit.SecretStore = (*ChainStore)(nil)
