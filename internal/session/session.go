// Package session tracks in-memory play sessions, one engine per opened
// exercise. Nothing here is persisted.
package session

import (
	"time"

	"github.com/felixgeelhaar/listenex/internal/bundle"
	"github.com/felixgeelhaar/listenex/internal/engine"
)

// Status represents the session state
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Session is one play of an exercise.
type Session struct {
	ID         string    `json:"id"`
	BundlePath string    `json:"bundle_path"`
	Title      string    `json:"title"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	engine *engine.Engine
	bundle *bundle.Bundle
}

// Engine returns the session's engine.
func (s *Session) Engine() *engine.Engine { return s.engine }

// IsActive reports whether the session still accepts moves.
func (s *Session) IsActive() bool { return s.Status == StatusActive }

func (s *Session) close() {
	_ = s.engine.Close()
	if s.bundle != nil {
		_ = s.bundle.Close()
	}
}
