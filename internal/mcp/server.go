// Package mcp exposes exercise play over the Model Context Protocol so an
// assistant can open an exercise, move items and validate.
package mcp

import (
	"context"
	"errors"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/listenex/internal/bundle"
	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/engine"
	"github.com/felixgeelhaar/listenex/internal/result"
	"github.com/felixgeelhaar/listenex/internal/session"
)

// Server wraps the MCP server with listenex functionality
type Server struct {
	mcpServer *server.Server
	sessions  *session.Manager
	results   result.Store
}

// Config contains configuration for the MCP server
type Config struct {
	Sessions *session.Manager
	Results  result.Store
	Version  string
}

// NewServer creates a new MCP server for listenex
func NewServer(cfg Config) *Server {
	s := &Server{
		sessions: cfg.Sessions,
		results:  cfg.Results,
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "listenex",
		Version: version,
	}, server.WithInstructions(`
listenex runs listening exercises: audio clips are sorted into the groups
they belong to. Every group has one slot per clip authored under it.

Available tools:
- listenex_open: Open an exercise bundle (or the built-in example)
- listenex_state: Show groups, slots and the pending pool
- listenex_drop: Place an item into a slot, move or swap placed items
- listenex_return: Send a placed item back to the pool
- listenex_validate: Score the exercise once every item is placed
- listenex_close: End a session
- listenex_last_result: Show the most recent completed exercise

Audio is not played over MCP; use item labels.
`))

	s.registerTools()
	return s
}

// registerTools registers all listenex MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("listenex_open").
		Description("Open an exercise from a bundle directory, ZIP or manifest, or the built-in example.").
		Handler(s.handleOpen)

	s.mcpServer.Tool("listenex_state").
		Description("Get the current board: groups, slots, pending items and phase.").
		Handler(s.handleState)

	s.mcpServer.Tool("listenex_drop").
		Description("Drop an item onto a slot. Pending items are placed; placed items move or swap.").
		Handler(s.handleDrop)

	s.mcpServer.Tool("listenex_return").
		Description("Return a placed item to the pending pool.").
		Handler(s.handleReturn)

	s.mcpServer.Tool("listenex_validate").
		Description("Validate the exercise and get the score. Every item must be placed.").
		Handler(s.handleValidate)

	s.mcpServer.Tool("listenex_close").
		Description("End a session.").
		Handler(s.handleClose)

	s.mcpServer.Tool("listenex_last_result").
		Description("Get the most recently completed exercise result.").
		Handler(s.handleLastResult)
}

// Input/Output types for tools

type OpenInput struct {
	Path     string `json:"path,omitempty" jsonschema:"description=Bundle directory, exported ZIP or exercise.yaml"`
	Example  bool   `json:"example,omitempty" jsonschema:"description=Open the built-in example instead of a path"`
	Groups   int    `json:"groups,omitempty" jsonschema:"description=Example group count (default 3)"`
	PerGroup int    `json:"per_group,omitempty" jsonschema:"description=Example items per group (default 2)"`
}

type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from listenex_open"`
}

type StateOutput struct {
	SessionID string      `json:"session_id"`
	Status    string      `json:"status"`
	Pending   int         `json:"pending"`
	Placed    int         `json:"placed"`
	Total     int         `json:"total"`
	Board     engine.View `json:"board"`
}

type DropInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from listenex_open"`
	Payload   string `json:"payload,omitempty" jsonschema:"description=Raw drag payload JSON; overrides item_id"`
	ItemID    int    `json:"item_id,omitempty" jsonschema:"description=Audio item to drop"`
	GroupID   int    `json:"group_id" jsonschema:"description=Target group ID"`
	SlotIndex int    `json:"slot_index" jsonschema:"description=Target slot index within the group (0-based)"`
}

type ReturnInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from listenex_open"`
	ItemID    int    `json:"item_id" jsonschema:"description=Placed audio item to return"`
}

type MoveOutput struct {
	Result engine.DropResult `json:"result"`
	State  StateOutput       `json:"state"`
}

type ValidateOutput struct {
	Correct    int                      `json:"correct"`
	Total      int                      `json:"total"`
	Percentage int                      `json:"percentage"`
	Grade      string                   `json:"grade"`
	Placements []domain.PlacementRecord `json:"placements"`
}

type CloseOutput struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type LastResultInput struct{}

type LastResultOutput struct {
	Found  bool               `json:"found"`
	Result *result.LastResult `json:"result,omitempty"`
	Grade  string             `json:"grade,omitempty"`
}

// Tool handlers

func (s *Server) handleOpen(ctx context.Context, input OpenInput) (StateOutput, error) {
	var (
		sess *session.Session
		err  error
	)
	switch {
	case input.Example:
		sess, err = s.sessions.Start(bundle.Example(input.Groups, input.PerGroup), "example")
	case input.Path != "":
		sess, err = s.sessions.Open(input.Path)
	default:
		return StateOutput{}, fmt.Errorf("%w: path or example is required", domain.ErrInvalidInput)
	}
	if err != nil {
		return StateOutput{}, fmt.Errorf("failed to open exercise: %w", err)
	}
	return s.state(sess.ID)
}

func (s *Server) handleState(ctx context.Context, input SessionInput) (StateOutput, error) {
	return s.state(input.SessionID)
}

func (s *Server) handleDrop(ctx context.Context, input DropInput) (MoveOutput, error) {
	sess, err := s.active(input.SessionID)
	if err != nil {
		return MoveOutput{}, err
	}
	eng := sess.Engine()
	target := engine.Slot{GroupID: input.GroupID, Index: input.SlotIndex}

	var res engine.DropResult
	if input.Payload != "" {
		res = eng.DropRaw([]byte(input.Payload), target)
	} else {
		if input.ItemID <= 0 {
			return MoveOutput{}, fmt.Errorf("%w: item_id or payload is required", domain.ErrInvalidInput)
		}
		res = eng.Drop(payloadFor(eng, input.ItemID), target)
	}
	s.sessions.Touch(sess.ID)

	state, err := s.state(sess.ID)
	return MoveOutput{Result: res, State: state}, err
}

// payloadFor builds the payload a drag of itemID would carry, based on
// where the item currently is.
func payloadFor(eng *engine.Engine, itemID int) engine.DragPayload {
	for _, p := range eng.Placements() {
		if p.ItemID() == itemID {
			return engine.PlacedPayload{AudioItemID: itemID, From: p.Slot}
		}
	}
	return engine.PendingPayload{AudioItemID: itemID}
}

func (s *Server) handleReturn(ctx context.Context, input ReturnInput) (MoveOutput, error) {
	sess, err := s.active(input.SessionID)
	if err != nil {
		return MoveOutput{}, err
	}
	res := sess.Engine().Return(input.ItemID)
	s.sessions.Touch(sess.ID)

	state, err := s.state(sess.ID)
	return MoveOutput{Result: res, State: state}, err
}

func (s *Server) handleValidate(ctx context.Context, input SessionInput) (ValidateOutput, error) {
	sess, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return ValidateOutput{}, fmt.Errorf("session not found: %w", err)
	}
	c, err := sess.Engine().Validate()
	if err != nil {
		return ValidateOutput{}, fmt.Errorf("cannot validate: %w", err)
	}
	return ValidateOutput{
		Correct:    c.Correct,
		Total:      c.Total,
		Percentage: c.Percentage,
		Grade:      string(c.Score.Grade()),
		Placements: c.Placements,
	}, nil
}

func (s *Server) handleClose(ctx context.Context, input SessionInput) (CloseOutput, error) {
	final, err := s.sessions.Close(input.SessionID)
	if err != nil {
		return CloseOutput{}, fmt.Errorf("failed to close session: %w", err)
	}
	return CloseOutput{
		SessionID: final.ID,
		Status:    string(final.Status),
		Message:   "Session ended successfully",
	}, nil
}

func (s *Server) handleLastResult(ctx context.Context, _ LastResultInput) (LastResultOutput, error) {
	if s.results == nil {
		return LastResultOutput{}, nil
	}
	r, err := s.results.Load(ctx)
	if errors.Is(err, domain.ErrNoResult) {
		return LastResultOutput{}, nil
	}
	if err != nil {
		return LastResultOutput{}, fmt.Errorf("failed to load result: %w", err)
	}
	return LastResultOutput{Found: true, Result: &r, Grade: string(r.Grade())}, nil
}

func (s *Server) active(id string) (*session.Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if !sess.IsActive() {
		return nil, fmt.Errorf("session is %s", sess.Status)
	}
	return sess, nil
}

func (s *Server) state(id string) (StateOutput, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return StateOutput{}, fmt.Errorf("session not found: %w", err)
	}
	eng := sess.Engine()
	pending, placed, total := eng.Counts()
	return StateOutput{
		SessionID: sess.ID,
		Status:    string(sess.Status),
		Pending:   pending,
		Placed:    placed,
		Total:     total,
		Board:     eng.View(),
	}, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
