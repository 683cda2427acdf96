//go:build js && wasm

package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall/js"

	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/result"
)

var errNoLocalStorage = errors.New("localStorage is not available")

// LocalStorageStore keeps the last result in window.localStorage.
type LocalStorageStore struct {
	key string
}

// NewLocalStorageStore returns a store under ResultKey.
func NewLocalStorageStore() *LocalStorageStore {
	return &LocalStorageStore{key: ResultKey}
}

var _ result.Store = (*LocalStorageStore)(nil)

func (s *LocalStorageStore) storage() (js.Value, error) {
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return js.Value{}, errNoLocalStorage
	}
	return ls, nil
}

func (s *LocalStorageStore) Save(_ context.Context, r result.LastResult) error {
	ls, err := s.storage()
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	ls.Call("setItem", s.key, string(data))
	return nil
}

func (s *LocalStorageStore) Load(context.Context) (result.LastResult, error) {
	ls, err := s.storage()
	if err != nil {
		return result.LastResult{}, err
	}
	v := ls.Call("getItem", s.key)
	if v.IsNull() || v.IsUndefined() {
		return result.LastResult{}, domain.ErrNoResult
	}
	var r result.LastResult
	if err := json.Unmarshal([]byte(v.String()), &r); err != nil {
		return result.LastResult{}, fmt.Errorf("parse result: %w", err)
	}
	return r, nil
}
