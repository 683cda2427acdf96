package result

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/storage/local"
)

const (
	collectionResults = "results"
	lastResultID      = "last"
)

// JSONStore keeps the last result as a JSON file.
type JSONStore struct {
	store *local.Store
}

// NewJSONStore creates a JSON result store rooted at basePath.
func NewJSONStore(basePath string) (*JSONStore, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &JSONStore{store: store}, nil
}

// Save replaces the stored result.
func (s *JSONStore) Save(_ context.Context, r LastResult) error {
	return s.store.Save(collectionResults, lastResultID, r)
}

// Load returns the stored result.
func (s *JSONStore) Load(_ context.Context) (LastResult, error) {
	var r LastResult
	if err := s.store.Load(collectionResults, lastResultID, &r); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return LastResult{}, domain.ErrNoResult
		}
		return LastResult{}, err
	}
	return r, nil
}
