// Package engine implements the listening exercise game: a placement store,
// drag/drop semantics over a tagged payload, single-flight playback, and the
// InProgress → ReadyToValidate → Validated completion state machine.
//
// An Engine is owned by a host (terminal player, browser bundle, MCP
// session). The host constructs it with a document, feeds it gestures,
// renders View snapshots and listens for completion.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

var (
	ErrClosed   = errors.New("engine closed")
	ErrNotReady = errors.New("exercise not ready to validate")
)

// DropOp is the outcome of a drop or return gesture.
type DropOp string

const (
	OpPlaced    DropOp = "placed"
	OpDisplaced DropOp = "displaced"
	OpMoved     DropOp = "moved"
	OpSwapped   DropOp = "swapped"
	OpReturned  DropOp = "returned"
	OpNoOp      DropOp = "noop"
	OpIgnored   DropOp = "ignored"
	OpLocked    DropOp = "locked"
)

// DropResult describes what a gesture did.
type DropResult struct {
	Op      DropOp `json:"op"`
	ItemID  int    `json:"itemId,omitempty"`
	Target  Slot   `json:"target"`
	Evicted int    `json:"evicted,omitempty"`
	Swapped int    `json:"swapped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Changed reports whether the gesture mutated placements.
func (r DropResult) Changed() bool {
	switch r.Op {
	case OpPlaced, OpDisplaced, OpMoved, OpSwapped, OpReturned:
		return true
	}
	return false
}

// Completion is the notification fired once per session on validation.
type Completion struct {
	Title string `json:"title"`
	domain.Score
	Placements  []domain.PlacementRecord `json:"placements"`
	CompletedAt time.Time                `json:"completedAt"`
}

func (c Completion) clone() Completion {
	c.Placements = slices.Clone(c.Placements)
	return c
}

// Engine is one exercise session. All methods are safe for concurrent use;
// listeners run after the engine lock is released, in the order their
// notifications were produced.
type Engine struct {
	mu      sync.Mutex
	startMu sync.Mutex
	opts    options
	log     *slog.Logger

	doc      domain.ExerciseDocument
	items    map[int]Item
	total    int
	pool     []int
	revealed map[int]bool
	store    *Store
	playback *PlaybackController

	phase      Phase
	completion *Completion

	epoch       uint64
	revealTimer *time.Timer

	changeFns    []func(View)
	completedFns []func(Completion)
	playbackFns  []func(PlaybackEvent)

	outbox   []func()
	flushing bool
	closed   bool
}

// New builds an engine for doc. The document is copied; later changes to
// doc do not affect the engine.
func New(doc *domain.ExerciseDocument, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.rand == nil {
		o.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.sessionID == uuid.Nil {
		o.sessionID = uuid.New()
	}

	e := &Engine{
		opts:     o,
		log:      o.logger,
		store:    NewStore(),
		playback: NewPlaybackController(o.player, o.logger),
	}
	if err := e.Reload(doc); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload fully resets the session with a new document: placements, pool,
// playback, phase and any pending reveal.
func (e *Engine) Reload(doc *domain.ExerciseDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", domain.ErrInvalidDocument)
	}
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.resetLocked(doc.Clone())
	e.mu.Unlock()

	e.flush()
	return nil
}

func (e *Engine) resetLocked(doc domain.ExerciseDocument) {
	e.epoch++
	e.stopRevealLocked()
	e.emitPlaybackLocked(e.playback.Stop())

	e.doc = doc
	e.items = make(map[int]Item, doc.TotalItems())
	e.pool = make([]int, 0, doc.TotalItems())
	e.revealed = make(map[int]bool)
	for _, g := range doc.Groups {
		for _, a := range g.AudioItems {
			e.items[a.ID] = Item{AudioItem: a, CorrectGroupID: g.ID}
			e.pool = append(e.pool, a.ID)
		}
	}
	e.total = len(e.pool)
	if e.opts.shuffle {
		e.opts.rand.Shuffle(len(e.pool), func(i, j int) {
			e.pool[i], e.pool[j] = e.pool[j], e.pool[i]
		})
	}

	e.store.Clear()
	e.phase = PhaseInProgress
	e.completion = nil

	if e.opts.revealMode == RevealAll {
		for _, id := range e.pool {
			e.revealed[id] = true
		}
	} else {
		e.revealNextLocked()
	}
	e.updatePhaseLocked()

	e.log.Debug("exercise loaded", "title", doc.Title, "groups", len(doc.Groups), "items", e.total)
	e.publishLocked(domain.NewExerciseStartedEvent(e.opts.sessionID, &e.doc))
	e.enqueueChangeLocked()
}

// Close stops audio, releases the player and drops listeners. Later calls
// are no-ops.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.epoch++
	e.stopRevealLocked()
	e.emitPlaybackLocked(e.playback.Close())
	e.changeFns = nil
	e.completedFns = nil
	e.playbackFns = nil
	e.mu.Unlock()

	e.flush()
	return nil
}

// Drop applies a drag payload to target.
func (e *Engine) Drop(p DragPayload, target Slot) DropResult {
	e.mu.Lock()
	res := e.dropLocked(p, target)
	e.mu.Unlock()

	e.flush()
	return res
}

// DropRaw parses raw drag data and applies it. Malformed data is logged and
// ignored.
func (e *Engine) DropRaw(data []byte, target Slot) DropResult {
	p, err := ParsePayload(data)
	if err != nil {
		e.log.Warn("ignoring drop", "reason", err, "target", target.String())
		return DropResult{Op: OpIgnored, Target: target, Reason: err.Error()}
	}
	return e.Drop(p, target)
}

func (e *Engine) dropLocked(p DragPayload, target Slot) DropResult {
	res := DropResult{Target: target}
	if p == nil {
		return e.ignore(res, "nil payload")
	}
	res.ItemID = p.ItemID()
	if e.closed {
		return e.ignore(res, ErrClosed.Error())
	}
	if e.phase.Locked() {
		res.Op = OpLocked
		return res
	}
	if !e.doc.HasSlot(target.GroupID, target.Index) {
		return e.ignore(res, "target is not a slot of this exercise")
	}
	item, ok := e.items[res.ItemID]
	if !ok {
		return e.ignore(res, domain.ErrUnknownItem.Error())
	}
	occupant, occupied := e.store.FindBySlot(target)

	switch p := p.(type) {
	case PendingPayload:
		if !slices.Contains(e.pool, item.ID) {
			return e.ignore(res, "pending payload for an item that is not pending")
		}
		res.Op = OpPlaced
		if occupied {
			e.store.Remove(occupant.ItemID())
			e.returnToPoolLocked(occupant.ItemID())
			res.Op = OpDisplaced
			res.Evicted = occupant.ItemID()
		}
		e.removeFromPoolLocked(item.ID)
		if err := e.store.Place(item, target); err != nil {
			e.log.Error("placement failed after eviction", "item_id", item.ID, "error", err)
		}
		e.scheduleRevealLocked()

	case PlacedPayload:
		current, placed := e.store.Get(item.ID)
		if !placed {
			return e.ignore(res, "placed payload for an item that is not placed")
		}
		if current.Slot != p.From {
			e.log.Debug("drag source disagrees with store", "item_id", item.ID,
				"payload", p.From.String(), "store", current.Slot.String())
		}
		switch {
		case current.Slot == target:
			res.Op = OpNoOp
			return res
		case occupied:
			if err := e.store.Swap(item.ID, occupant.ItemID()); err != nil {
				e.log.Error("swap failed", "item_id", item.ID, "other_id", occupant.ItemID(), "error", err)
				return e.ignore(res, err.Error())
			}
			res.Op = OpSwapped
			res.Swapped = occupant.ItemID()
		default:
			if err := e.store.Place(item, target); err != nil {
				return e.ignore(res, err.Error())
			}
			res.Op = OpMoved
		}
	}

	e.updatePhaseLocked()
	e.enqueueChangeLocked()
	return res
}

// Return moves a placed item back into the pending pool.
func (e *Engine) Return(itemID int) DropResult {
	e.mu.Lock()
	res := e.returnLocked(itemID)
	e.mu.Unlock()

	e.flush()
	return res
}

func (e *Engine) returnLocked(itemID int) DropResult {
	res := DropResult{ItemID: itemID}
	if e.closed {
		return e.ignore(res, ErrClosed.Error())
	}
	if e.phase.Locked() {
		res.Op = OpLocked
		return res
	}
	p, ok := e.store.Remove(itemID)
	if !ok {
		return e.ignore(res, ErrNotPlaced.Error())
	}
	res.Target = p.Slot
	res.Op = OpReturned
	e.returnToPoolLocked(itemID)
	e.updatePhaseLocked()
	e.enqueueChangeLocked()
	return res
}

func (e *Engine) ignore(res DropResult, reason string) DropResult {
	e.log.Warn("ignoring drop", "reason", reason, "item_id", res.ItemID, "target", res.Target.String())
	res.Op = OpIgnored
	res.Reason = reason
	return res
}

// Validate finalises the session. It is legal only once every item is
// placed; repeated calls return the first result and notify nobody.
func (e *Engine) Validate() (Completion, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Completion{}, ErrClosed
	}
	switch e.phase {
	case PhaseValidated:
		c := e.completion.clone()
		e.mu.Unlock()
		return c, nil
	case PhaseInProgress:
		placed, total := e.store.Len(), e.total
		e.mu.Unlock()
		return Completion{}, fmt.Errorf("%w: %d of %d items placed", ErrNotReady, placed, total)
	}

	c := Completion{
		Title:       e.doc.Title,
		Score:       e.store.Score(),
		Placements:  e.store.Records(),
		CompletedAt: e.opts.now(),
	}
	e.phase = PhaseValidated
	e.completion = &c
	e.stopRevealLocked()

	for _, fn := range e.completedFns {
		fn, snapshot := fn, c.clone()
		e.outbox = append(e.outbox, func() { fn(snapshot) })
	}
	e.publishLocked(domain.NewExerciseCompletedEvent(e.opts.sessionID, c.Title, c.Score, c.clone().Placements))
	e.enqueueChangeLocked()
	result := c.clone()
	e.mu.Unlock()

	e.flush()
	e.log.Info("exercise validated", "title", result.Title,
		"correct", result.Correct, "total", result.Total, "percentage", result.Percentage)
	return result, nil
}

// TogglePlayback plays, pauses or resumes the item. Starting an item stops
// whatever else is playing.
func (e *Engine) TogglePlayback(ctx context.Context, itemID int) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	item, ok := e.items[itemID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("toggle %d: %w", itemID, domain.ErrUnknownItem)
	}
	events, start, err := e.playback.Toggle(ctx, item)
	e.emitPlaybackLocked(events)
	if len(events) > 0 {
		e.enqueueChangeLocked()
	}
	e.mu.Unlock()

	e.flush()
	if start == nil {
		return err
	}
	return e.startPlayback(ctx, start)
}

// startPlayback runs the player without the engine lock. Starts are
// serialised so each one is reconciled before the next begins.
func (e *Engine) startPlayback(ctx context.Context, s *PlayStart) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	err := e.playback.Start(ctx, s, e.playbackEnded)

	e.mu.Lock()
	events := e.playback.Started(s, err)
	e.emitPlaybackLocked(events)
	if len(events) > 0 {
		e.enqueueChangeLocked()
	}
	e.mu.Unlock()

	e.flush()
	if err != nil {
		return fmt.Errorf("play item %d: %w", s.ItemID, err)
	}
	return nil
}

// StopPlayback halts the current item, if any.
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	events := e.playback.Stop()
	e.emitPlaybackLocked(events)
	if len(events) > 0 {
		e.enqueueChangeLocked()
	}
	e.mu.Unlock()

	e.flush()
}

// SetVolume sets the output volume, clamped to [0, 1], and returns it.
func (e *Engine) SetVolume(v float64) float64 {
	e.mu.Lock()
	v = e.playback.SetVolume(v)
	e.enqueueChangeLocked()
	e.mu.Unlock()

	e.flush()
	return v
}

func (e *Engine) playbackEnded(gen uint64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if events, ok := e.playback.Ended(gen); ok {
		e.emitPlaybackLocked(events)
		e.enqueueChangeLocked()
	}
	e.mu.Unlock()

	e.flush()
}

// View returns a snapshot for rendering.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Counts returns the pending, placed and total item counts.
func (e *Engine) Counts() (pending, placed, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pool), e.store.Len(), e.total
}

// Pending returns the ids in the pending pool in pool order, including
// items not yet revealed.
func (e *Engine) Pending() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pool)
}

// Placements returns the placements ordered by group then slot.
func (e *Engine) Placements() []Placement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Completion returns the validation result once the session is validated.
func (e *Engine) Completion() (Completion, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.completion == nil {
		return Completion{}, false
	}
	return e.completion.clone(), true
}

// Document returns a copy of the loaded document.
func (e *Engine) Document() domain.ExerciseDocument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// SessionID returns the id stamped on published events.
func (e *Engine) SessionID() uuid.UUID { return e.opts.sessionID }

// OnChange registers fn to receive a View after every state change.
func (e *Engine) OnChange(fn func(View)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changeFns = append(e.changeFns, fn)
}

// OnCompleted registers fn to receive the completion notification.
func (e *Engine) OnCompleted(fn func(Completion)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completedFns = append(e.completedFns, fn)
}

// OnPlayback registers fn to receive playback transitions.
func (e *Engine) OnPlayback(fn func(PlaybackEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playbackFns = append(e.playbackFns, fn)
}

func (e *Engine) viewLocked() View {
	cur, state := e.playback.Current()
	v := View{
		Title:       e.doc.Title,
		Phase:       e.phase,
		Groups:      make([]GroupView, 0, len(e.doc.Groups)),
		Pool:        make([]ItemView, 0, len(e.pool)),
		CanValidate: e.phase == PhaseReadyToValidate,
		Playback:    PlaybackView{ItemID: cur, State: state, Volume: e.playback.Volume()},
	}

	for _, g := range e.doc.Groups {
		gv := GroupView{
			ID:              g.ID,
			BackgroundImage: g.BackgroundImage,
			Slots:           make([]SlotView, g.SlotCount()),
		}
		for i := range gv.Slots {
			s := Slot{GroupID: g.ID, Index: i}
			sv := SlotView{Slot: s, Locked: e.phase.Locked()}
			if p, ok := e.store.FindBySlot(s); ok {
				iv := e.itemViewLocked(p.Item)
				sv.Occupant = &iv
				if e.phase == PhaseValidated {
					sv.Verdict = VerdictIncorrect
					if p.Correct() {
						sv.Verdict = VerdictCorrect
					}
				}
			}
			gv.Slots[i] = sv
		}
		v.Groups = append(v.Groups, gv)
	}

	for _, id := range e.pool {
		if !e.revealed[id] {
			v.Hidden++
			continue
		}
		v.Pool = append(v.Pool, e.itemViewLocked(e.items[id]))
	}

	if e.completion != nil {
		s := e.completion.Score
		v.Score = &s
	}
	return v
}

func (e *Engine) itemViewLocked(it Item) ItemView {
	return ItemView{
		ID:      it.ID,
		Label:   it.Label(),
		Source:  it.Source,
		Missing: it.Missing(),
		Glyph:   e.playback.Glyph(it.ID),
	}
}

func (e *Engine) updatePhaseLocked() {
	if e.phase == PhaseValidated {
		return
	}
	prev := e.phase
	if e.store.IsComplete(e.total) {
		e.phase = PhaseReadyToValidate
	} else {
		e.phase = PhaseInProgress
	}
	if prev != e.phase {
		e.log.Debug("exercise phase changed", "from", prev.String(), "to", e.phase.String())
	}
}

func (e *Engine) returnToPoolLocked(id int) {
	e.pool = append(e.pool, id)
	e.revealed[id] = true
}

func (e *Engine) removeFromPoolLocked(id int) {
	if i := slices.Index(e.pool, id); i >= 0 {
		e.pool = slices.Delete(e.pool, i, i+1)
	}
	delete(e.revealed, id)
}

// revealNextLocked shows the head of the pool when nothing is visible.
func (e *Engine) revealNextLocked() bool {
	if len(e.pool) == 0 {
		return false
	}
	for _, id := range e.pool {
		if e.revealed[id] {
			return false
		}
	}
	e.revealed[e.pool[0]] = true
	return true
}

func (e *Engine) scheduleRevealLocked() {
	if e.opts.revealMode == RevealAll || e.revealTimer != nil {
		return
	}
	if e.opts.revealDelay <= 0 {
		e.revealNextLocked()
		return
	}
	epoch := e.epoch
	e.revealTimer = time.AfterFunc(e.opts.revealDelay, func() { e.revealFired(epoch) })
}

func (e *Engine) revealFired(epoch uint64) {
	e.mu.Lock()
	if e.closed || epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	e.revealTimer = nil
	if e.revealNextLocked() {
		e.enqueueChangeLocked()
	}
	e.mu.Unlock()

	e.flush()
}

func (e *Engine) stopRevealLocked() {
	if e.revealTimer != nil {
		e.revealTimer.Stop()
		e.revealTimer = nil
	}
}

func (e *Engine) enqueueChangeLocked() {
	if len(e.changeFns) == 0 {
		return
	}
	v := e.viewLocked()
	fns := slices.Clone(e.changeFns)
	e.outbox = append(e.outbox, func() {
		for _, fn := range fns {
			fn(v)
		}
	})
}

func (e *Engine) emitPlaybackLocked(events []PlaybackEvent) {
	if len(events) == 0 || len(e.playbackFns) == 0 {
		return
	}
	fns := slices.Clone(e.playbackFns)
	e.outbox = append(e.outbox, func() {
		for _, ev := range events {
			for _, fn := range fns {
				fn(ev)
			}
		}
	})
}

func (e *Engine) publishLocked(ev domain.Event) {
	d := e.opts.dispatcher
	if d == nil {
		return
	}
	e.outbox = append(e.outbox, func() { d.Publish(ev) })
}

// flush delivers queued notifications. Only one goroutine drains at a time;
// a listener that calls back into the engine has its notifications drained
// by the outer loop.
func (e *Engine) flush() {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true
	for len(e.outbox) > 0 {
		batch := e.outbox
		e.outbox = nil
		e.mu.Unlock()
		for _, fn := range batch {
			e.deliver(fn)
		}
		e.mu.Lock()
	}
	e.flushing = false
	e.mu.Unlock()
}

func (e *Engine) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("engine listener panicked", "panic", r)
		}
	}()
	fn()
}
