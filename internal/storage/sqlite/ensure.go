package sqlite

import "github.com/felixgeelhaar/listenex/internal/result"

// Ensure SQLite stores implement the storage interfaces.
var (
	_ result.Store = (*ResultStore)(nil)
	_ result.Store = (*result.JSONStore)(nil)
)
