//go:build js && wasm

package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"syscall/js"

	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/engine"
	"github.com/felixgeelhaar/listenex/internal/result"
)

var errNotInitialized = errors.New("exercise is not initialized")

// App owns the engine and its DOM projection for one page.
type App struct {
	doc  js.Value
	log  *slog.Logger
	opts []engine.Option

	eng      *engine.Engine
	player   *AudioPlayer
	renderer *renderer
	view     engine.View

	exports []js.Func
}

// NewApp creates an app for the current document. opts are passed to every
// engine it builds.
func NewApp(log *slog.Logger, opts ...engine.Option) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{doc: js.Global().Get("document"), log: log, opts: opts}
}

// Register exposes initialize, reload and cleanup on globalThis and tells
// the page the engine is ready.
func (a *App) Register() {
	api := js.Global().Get("Object").New()
	export := func(name string, fn func(args []js.Value) error) {
		f := js.FuncOf(func(_ js.Value, args []js.Value) any {
			if err := fn(args); err != nil {
				a.log.Error("listenex call failed", "call", name, "error", err)
				return err.Error()
			}
			return nil
		})
		a.exports = append(a.exports, f)
		api.Set(name, f)
	}
	export("initialize", func(args []js.Value) error {
		doc, err := decodeDocument(args)
		if err != nil {
			return err
		}
		return a.Initialize(doc)
	})
	export("reload", func(args []js.Value) error {
		doc, err := decodeDocument(args)
		if err != nil {
			return err
		}
		return a.Reload(doc)
	})
	export("cleanup", func([]js.Value) error {
		a.Cleanup()
		return nil
	})
	js.Global().Set(GlobalName, api)

	a.doc.Call("dispatchEvent", js.Global().Get("Event").New(ReadyEvent))
}

// decodeDocument converts the page's EXERCISE_DATA object.
func decodeDocument(args []js.Value) (*domain.ExerciseDocument, error) {
	if len(args) == 0 || args[0].IsUndefined() || args[0].IsNull() {
		return nil, fmt.Errorf("%w: no exercise data", domain.ErrInvalidDocument)
	}
	raw := js.Global().Get("JSON").Call("stringify", args[0]).String()
	var doc domain.ExerciseDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}
	return &doc, nil
}

// Initialize builds the engine for doc and renders it. Calling it again
// replaces the previous exercise.
func (a *App) Initialize(doc *domain.ExerciseDocument) error {
	a.Cleanup()

	r, err := newRenderer(a.doc, handlers{
		drop:     a.drop,
		toPool:   a.toPool,
		toggle:   a.toggle,
		validate: a.validate,
		volume:   a.setVolume,
	})
	if err != nil {
		return err
	}

	audioEl := a.doc.Call("getElementById", idAudio)
	if audioEl.IsNull() {
		audioEl = a.doc.Call("createElement", "audio")
		a.doc.Get("body").Call("appendChild", audioEl)
	}
	player := NewAudioPlayer(audioEl, a.log)

	dispatcher := domain.NewEventDispatcher()
	result.NewRecorder(NewLocalStorageStore(), a.log).Attach(dispatcher)

	opts := append([]engine.Option{
		engine.WithPlayer(player),
		engine.WithLogger(a.log),
		engine.WithDispatcher(dispatcher),
	}, a.opts...)
	eng, err := engine.New(doc, opts...)
	if err != nil {
		r.close()
		_ = player.Close()
		return err
	}

	a.eng, a.player, a.renderer = eng, player, r
	a.view = eng.View()
	r.render(a.view)

	eng.OnChange(a.onChange)
	eng.OnCompleted(a.onCompleted)
	a.log.Info("exercise initialized", "title", doc.Title, "items", doc.TotalItems())
	return nil
}

// Reload swaps in a new document, keeping the page bindings.
func (a *App) Reload(doc *domain.ExerciseDocument) error {
	if a.eng == nil {
		return a.Initialize(doc)
	}
	return a.eng.Reload(doc)
}

// Cleanup stops playback, detaches listeners and releases the engine. The
// engine closes the player.
func (a *App) Cleanup() {
	if a.eng != nil {
		_ = a.eng.Close()
		a.eng = nil
	}
	a.player = nil
	if a.renderer != nil {
		a.renderer.close()
		a.renderer = nil
	}
	a.view = engine.View{}
}

func (a *App) onChange(v engine.View) {
	if a.renderer == nil {
		return
	}
	prev := a.view
	a.view = v
	a.renderer.apply(prev, v)
}

func (a *App) onCompleted(c engine.Completion) {
	eventInit := js.Global().Get("Object").New()
	eventInit.Set("detail", js.ValueOf(completionDetail(c)))
	a.doc.Call("dispatchEvent", js.Global().Get("CustomEvent").New(CompletedEvent, eventInit))
}

func (a *App) drop(data string, target engine.Slot) {
	if a.eng == nil {
		return
	}
	res := a.eng.DropRaw([]byte(data), target)
	if res.Op == engine.OpIgnored {
		a.log.Warn("drop ignored", "target", target.String(), "reason", res.Reason)
	}
}

func (a *App) toPool(data string) {
	if a.eng == nil {
		return
	}
	p, err := engine.ParsePayload([]byte(data))
	if err != nil {
		a.log.Warn("ignoring drop on pool", "error", err)
		return
	}
	if p.Kind() == engine.KindPlaced {
		a.eng.Return(p.ItemID())
	}
}

func (a *App) toggle(itemID int) {
	if a.eng == nil {
		return
	}
	if err := a.eng.TogglePlayback(context.Background(), itemID); err != nil {
		a.log.Warn("playback toggle failed", "item_id", itemID, "error", err)
	}
}

func (a *App) validate() {
	if a.eng == nil {
		a.log.Error("validate", "error", errNotInitialized)
		return
	}
	if _, err := a.eng.Validate(); err != nil {
		a.log.Warn("validate", "error", err)
	}
}

func (a *App) setVolume(v float64) {
	if a.eng != nil {
		a.eng.SetVolume(v)
	}
}
