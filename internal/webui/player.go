//go:build js && wasm

package webui

import (
	"context"
	"errors"
	"log/slog"
	"syscall/js"
)

var errNoAudioElement = errors.New("audio element is not available")

// AudioPlayer plays clips through one <audio> element. It implements
// engine.Player.
type AudioPlayer struct {
	el      js.Value
	log     *slog.Logger
	gen     uint64
	onEnded func()
	ended   js.Func
	closed  bool
}

// NewAudioPlayer binds el.
func NewAudioPlayer(el js.Value, log *slog.Logger) *AudioPlayer {
	p := &AudioPlayer{el: el, log: log}
	p.ended = js.FuncOf(func(js.Value, []js.Value) any {
		p.finish(p.gen)
		return nil
	})
	el.Call("addEventListener", "ended", p.ended)
	return p
}

// finish fires the end callback for generation gen at most once.
func (p *AudioPlayer) finish(gen uint64) {
	if gen != p.gen || p.onEnded == nil {
		return
	}
	fn := p.onEnded
	p.onEnded = nil
	fn()
}

func (p *AudioPlayer) Play(_ context.Context, source string, onEnded func()) error {
	if p.el.IsUndefined() || p.el.IsNull() {
		return errNoAudioElement
	}
	p.gen++
	p.onEnded = onEnded
	p.el.Call("pause")
	p.el.Set("src", source)
	p.el.Set("currentTime", 0)
	p.start()
	return nil
}

// start calls play() and logs a rejected promise. A rejected start ends the
// clip so the play control goes back to idle.
func (p *AudioPlayer) start() {
	promise := p.el.Call("play")
	if promise.IsUndefined() || promise.Get("then").IsUndefined() {
		return
	}
	gen := p.gen
	var ok, fail js.Func
	release := func() {
		ok.Release()
		fail.Release()
	}
	ok = js.FuncOf(func(js.Value, []js.Value) any {
		release()
		return nil
	})
	fail = js.FuncOf(func(_ js.Value, args []js.Value) any {
		release()
		reason := "unknown"
		if len(args) > 0 {
			reason = args[0].Call("toString").String()
		}
		p.log.Error("audio playback rejected", "reason", reason)
		p.finish(gen)
		return nil
	})
	promise.Call("then", ok, fail)
}

func (p *AudioPlayer) Pause() error {
	p.el.Call("pause")
	return nil
}

func (p *AudioPlayer) Resume(context.Context) error {
	p.start()
	return nil
}

func (p *AudioPlayer) Stop() error {
	p.gen++
	p.onEnded = nil
	p.el.Call("pause")
	p.el.Set("currentTime", 0)
	return nil
}

func (p *AudioPlayer) SetVolume(v float64) {
	p.el.Set("volume", v)
}

func (p *AudioPlayer) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	_ = p.Stop()
	p.el.Call("removeEventListener", "ended", p.ended)
	p.ended.Release()
	return nil
}
